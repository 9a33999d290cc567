package service

import (
	"context"

	"github.com/snaplink/snaplink/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockLinkRepository struct {
	mock.Mock
}

func (r *MockLinkRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	args := r.Called(ctx, link)
	created, _ := args.Get(0).(*models.Link)
	return created, args.Error(1)
}

func (r *MockLinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	args := r.Called(ctx, slug)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) ConsumeClick(ctx context.Context, slug string) (*models.Link, error) {
	args := r.Called(ctx, slug)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) MarkExpired(ctx context.Context, slug string) error {
	args := r.Called(ctx, slug)
	return args.Error(0)
}

func (r *MockLinkRepository) UpdateSafety(ctx context.Context, slug string, score int, verdict string, flagged bool) error {
	args := r.Called(ctx, slug, score, verdict, flagged)
	return args.Error(0)
}

func (r *MockLinkRepository) ListForSafetyRescan(ctx context.Context, onlyMissing bool) ([]*models.Link, error) {
	args := r.Called(ctx, onlyMissing)
	links, _ := args.Get(0).([]*models.Link)
	return links, args.Error(1)
}
