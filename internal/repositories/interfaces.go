package repositories

import (
	"context"
	"time"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ShopPaymentConfigRepository stores each shop's revenue-sharing policy, keyed by shop id.
type ShopPaymentConfigRepository interface {
	Get(ctx context.Context, shopID string) (domain.ShopPaymentConfig, error)
	Save(ctx context.Context, cfg domain.ShopPaymentConfig) (domain.ShopPaymentConfig, error)
}

// PaymentRepository persists payment records and their computed breakdowns.
type PaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	FindByID(ctx context.Context, paymentID string) (domain.Payment, error)
	UpdateStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, updatedAt time.Time) error
	ListByShop(ctx context.Context, shopID string, filter PaymentListFilter) (domain.PaymentPage, error)
}

// PaymentListFilter narrows payment listings.
type PaymentListFilter struct {
	Status         domain.PaymentStatus
	PageSize       int
	AfterCreatedAt time.Time
	AfterPaymentID string
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
