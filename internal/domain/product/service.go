package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xeniko/shop-admin/internal/audit"
)

// Service coordinates multi-step product mutations across the database and
// the object store. The row is always mutated first (or, on create, images
// are uploaded first and rolled back on failure); storage deletions are
// compensating cleanup derived from row-state diffs, never the trigger for
// a row mutation.
type Service struct {
	products   Repository
	categories CategoryChecker
	images     ImageStore
	auditlog   audit.Recorder
}

// NewService creates a product Service with the required dependencies.
func NewService(products Repository, categories CategoryChecker, images ImageStore, auditlog audit.Recorder) *Service {
	return &Service{
		products:   products,
		categories: categories,
		images:     images,
		auditlog:   auditlog,
	}
}

// Create uploads the given images, then inserts the product row referencing
// them. If the insert fails after uploads succeeded, the uploaded objects
// are deleted best-effort before the original error is returned, so no
// orphaned storage objects survive a failed create.
func (s *Service) Create(ctx context.Context, params CreateParams, files []ImageFile, actorID string) (*Product, error) {
	ok, err := s.categories.Exists(ctx, params.CategoryID)
	if err != nil {
		return nil, errors.Wrap(err, "check category")
	}
	if !ok {
		return nil, ErrInvalidCategory
	}

	refs, err := s.uploadAll(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "upload images")
	}

	p := &Product{
		ID:          uuid.New().String(),
		Name:        params.Name,
		Description: params.Description,
		Price:       params.Price,
		Stock:       params.Stock,
		Status:      StatusForStock(params.Stock),
		CategoryID:  params.CategoryID,
		Images:      refs,
	}
	if err := s.products.Create(ctx, p); err != nil {
		s.removeImages(ctx, refs, "create rollback")
		return nil, errors.Wrap(err, "insert product")
	}

	audit.Log(ctx, s.auditlog, audit.Entry{
		Entity:   audit.EntityProduct,
		EntityID: p.ID,
		Action:   audit.ActionProductCreated,
		Metadata: map[string]any{"name": p.Name, "category_id": p.CategoryID},
		ActorID:  actorID,
	})
	return p, nil
}

// Update applies a partial update. When params carries an image set, the
// stored set is diffed against it: images dropped from the set are deleted
// from storage only after the row update commits, and images added to the
// set (assumed already uploaded by the caller) are deleted if the row
// update fails. Either way the committed row never references a deleted
// object.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams, actorID string) (*Product, error) {
	if params.CategoryID != nil {
		ok, err := s.categories.Exists(ctx, *params.CategoryID)
		if err != nil {
			return nil, errors.Wrap(err, "check category")
		}
		if !ok {
			return nil, ErrInvalidCategory
		}
	}

	existing, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var removed, added []ImageRef
	if params.HasImages {
		removed, added = diffImages(existing.Images, params.Images)
	}

	updated, err := s.products.Update(ctx, id, params)
	if err != nil {
		s.removeImages(ctx, added, "update rollback")
		return nil, errors.Wrap(err, "update product")
	}

	s.removeImages(ctx, removed, "update cleanup")

	audit.Log(ctx, s.auditlog, audit.Entry{
		Entity:   audit.EntityProduct,
		EntityID: id,
		Action:   audit.ActionProductUpdated,
		Metadata: map[string]any{"images_removed": len(removed), "images_added": len(added)},
		ActorID:  actorID,
	})
	return updated, nil
}

// Delete removes the product and its stored images. Deleting an absent
// product is a no-op success. Storage failures never block the row delete.
func (s *Service) Delete(ctx context.Context, id string, actorID string) error {
	existing, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	s.removeImages(ctx, existing.Images, "delete cleanup")

	if err := s.products.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}

	audit.Log(ctx, s.auditlog, audit.Entry{
		Entity:   audit.EntityProduct,
		EntityID: id,
		Action:   audit.ActionProductDeleted,
		ActorID:  actorID,
	})
	return nil
}

// GetByID returns a single product.
func (s *Service) GetByID(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// List returns products matching the filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Product, error) {
	return s.products.List(ctx, f)
}

// uploadAll uploads every file concurrently. On any failure the uploads
// that did succeed are deleted best-effort and the first error is returned.
func (s *Service) uploadAll(ctx context.Context, files []ImageFile) ([]ImageRef, error) {
	if len(files) == 0 {
		return nil, nil
	}

	refs := make([]ImageRef, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			path, err := s.images.Upload(gctx, f.Name, f.Data, f.ContentType)
			if err != nil {
				return errors.Wrapf(err, "upload %s", f.Name)
			}
			refs[i] = ImageRef{URL: s.images.PublicURL(path), Path: path}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var uploaded []ImageRef
		for _, r := range refs {
			if r.Path != "" {
				uploaded = append(uploaded, r)
			}
		}
		s.removeImages(ctx, uploaded, "upload rollback")
		return nil, err
	}
	return refs, nil
}

// removeImages deletes the given refs from storage. Failures are logged and
// swallowed: compensation must never mask the primary operation's outcome.
func (s *Service) removeImages(ctx context.Context, refs []ImageRef, reason string) {
	if len(refs) == 0 {
		return
	}
	paths := make([]string, len(refs))
	for i, r := range refs {
		paths[i] = r.Path
	}
	if err := s.images.Remove(ctx, paths); err != nil {
		zctx.From(ctx).Warn("Image removal failed",
			zap.String("reason", reason),
			zap.Strings("paths", paths),
			zap.Error(err),
		)
	}
}

// diffImages splits the old and new image sets, keyed by storage path, into
// images no longer referenced and images newly referenced.
func diffImages(old, updated []ImageRef) (removed, added []ImageRef) {
	oldSet := make(map[string]struct{}, len(old))
	for _, r := range old {
		oldSet[r.Path] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(updated))
	for _, r := range updated {
		newSet[r.Path] = struct{}{}
	}

	for _, r := range old {
		if _, ok := newSet[r.Path]; !ok {
			removed = append(removed, r)
		}
	}
	for _, r := range updated {
		if _, ok := oldSet[r.Path]; !ok {
			added = append(added, r)
		}
	}
	return removed, added
}
