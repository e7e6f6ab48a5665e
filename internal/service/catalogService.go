package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "github.com/bookstack-dev/library-reservations/internal/database/postgres"
	"github.com/bookstack-dev/library-reservations/internal/entity"
)

type catalogService struct {
	catalog repository.CatalogRepository
}

func NewCatalogService(catalog repository.CatalogRepository) CatalogService {
	return &catalogService{catalog: catalog}
}

func (s *catalogService) AddResource(ctx context.Context, req *AddResourceRequest) (*entity.Resource, error) {
	resource := &entity.Resource{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Author:    req.Author,
		Category:  req.Category,
		Status:    entity.ResourceStatusAvailable,
		CreatedAt: time.Now(),
	}

	if err := s.catalog.Create(ctx, resource); err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"resource_id": resource.ID,
		"title":       resource.Title,
	}).Info("resource added to catalog")

	return resource, nil
}

func (s *catalogService) GetResource(ctx context.Context, id string) (*entity.Resource, error) {
	return s.catalog.GetByID(ctx, id)
}

func (s *catalogService) ListResources(ctx context.Context) ([]*entity.Resource, error) {
	return s.catalog.GetAll(ctx)
}

func (s *catalogService) SearchResources(ctx context.Context, title string) ([]*entity.Resource, error) {
	return s.catalog.SearchByTitle(ctx, title)
}

func (s *catalogService) RemoveResource(ctx context.Context, id string) error {
	return s.catalog.Delete(ctx, id)
}
