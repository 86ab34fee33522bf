//go:build integration

package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/domain"
	pconfig "github.com/farhanyousaf786/fans-munch-sub000/internal/platform/config"
	pfirestore "github.com/farhanyousaf786/fans-munch-sub000/internal/platform/firestore"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/pagination"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/repositories"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

func newEmulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(
		pconfig.FirebaseConfig{ProjectID: "munch-repo-test"},
		pconfig.FirestoreConfig{EmulatorHost: host},
	)
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func TestPaymentRepositoryIntegration(t *testing.T) {
	provider := newEmulatorProvider(t)
	repo, err := NewPaymentRepository(provider)
	if err != nil {
		t.Fatalf("NewPaymentRepository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shopID := "shop_" + time.Now().Format("150405.000000")
	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	for i, id := range []string{"p1", "p2", "p3"} {
		payment := domain.Payment{
			ID:        shopID + "_" + id,
			ShopID:    shopID,
			Status:    domain.PaymentStatusRequiresPayment,
			Amount:    int64(1000 * (i + 1)),
			Currency:  "ILS",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base,
		}
		if err := repo.Insert(ctx, payment); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	err = repo.Insert(ctx, domain.Payment{ID: shopID + "_p1", ShopID: shopID})
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict on duplicate insert, got %v", err)
	}

	first, err := repo.ListByShop(ctx, shopID, repositories.PaymentListFilter{PageSize: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Items) != 2 || first.Items[0].ID != shopID+"_p3" || first.NextPageToken == "" {
		t.Fatalf("unexpected first page %+v", first)
	}

	cursor, err := pagination.DecodeToken(first.NextPageToken)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	second, err := repo.ListByShop(ctx, shopID, repositories.PaymentListFilter{PageSize: 2, AfterCreatedAt: cursor.CreatedAt, AfterPaymentID: cursor.ID})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].ID != shopID+"_p1" || second.NextPageToken != "" {
		t.Fatalf("unexpected second page %+v", second)
	}

	if err := repo.UpdateStatus(ctx, shopID+"_p1", domain.PaymentStatusSucceeded, base.Add(time.Hour)); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := repo.FindByID(ctx, shopID+"_p1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != domain.PaymentStatusSucceeded {
		t.Fatalf("expected succeeded, got %q", got.Status)
	}

	_, err = repo.FindByID(ctx, "missing-payment")
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestShopPaymentConfigRepositoryIntegration(t *testing.T) {
	provider := newEmulatorProvider(t)
	repo, err := NewShopPaymentConfigRepository(provider)
	if err != nil {
		t.Fatalf("NewShopPaymentConfigRepository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	saved, err := repo.Save(ctx, domain.ShopPaymentConfig{
		ShopID: "gate-a-grill",
		Config: splits.MerchantPaymentConfig{Model: "3-way", PlatformFee: 0.1, HotelFee: 0.05, VendorFee: 0.85, HotelID: "hotel_1"},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Get(ctx, "gate-a-grill")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Config.HotelID != "hotel_1" || got.Config.SplitModel() != splits.ModelThreeWay {
		t.Fatalf("unexpected config %+v", got.Config)
	}
	if !got.UpdatedAt.Equal(saved.UpdatedAt) {
		t.Fatalf("expected updatedAt %v, got %v", saved.UpdatedAt, got.UpdatedAt)
	}
}
