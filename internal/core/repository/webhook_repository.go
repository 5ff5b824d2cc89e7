package repository

import (
	"context"

	"github.com/tablohq/backupd/internal/core/domain"
)

type WebhookRepository interface {
	Create(ctx context.Context, reg *domain.WebhookRegistration) error
	FindByID(ctx context.Context, id int64) (*domain.WebhookRegistration, error)
	Update(ctx context.Context, reg *domain.WebhookRegistration) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*domain.WebhookRegistration, error)
}
