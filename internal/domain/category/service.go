package category

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/xeniko/shop-admin/internal/audit"
)

// Service manages the category lifecycle.
type Service struct {
	categories Repository
	auditlog   audit.Recorder
}

// NewService creates a category Service.
func NewService(categories Repository, auditlog audit.Recorder) *Service {
	return &Service{
		categories: categories,
		auditlog:   auditlog,
	}
}

// Create inserts a new ACTIVE category with a slug derived from its name.
func (s *Service) Create(ctx context.Context, name string) (*Category, error) {
	c := &Category{
		ID:     uuid.New().String(),
		Name:   name,
		Slug:   slug.Make(name),
		Status: StatusActive,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create category")
	}
	return c, nil
}

// Rename changes the category name and recomputes its slug.
func (s *Service) Rename(ctx context.Context, id, name string) (*Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Name = name
	c.Slug = slug.Make(name)
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update category")
	}
	return c, nil
}

// SoftDelete marks the category INACTIVE. It is rejected with ErrInUse
// while any product still references the category.
func (s *Service) SoftDelete(ctx context.Context, id string, actorID string) (*Category, error) {
	count, err := s.categories.CountProducts(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "count products")
	}
	if count > 0 {
		return nil, ErrInUse
	}

	c, err := s.categories.SetStatus(ctx, id, StatusInactive)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, s.auditlog, audit.Entry{
		Entity:   audit.EntityCategory,
		EntityID: id,
		Action:   audit.ActionCategoryDeleted,
		ActorID:  actorID,
	})
	return c, nil
}

// GetByID returns a single category.
func (s *Service) GetByID(ctx context.Context, id string) (*Category, error) {
	return s.categories.GetByID(ctx, id)
}

// List returns all categories, newest first.
func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.categories.List(ctx)
}
