//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	pconfig "github.com/farhanyousaf786/fans-munch-sub000/internal/platform/config"
	pfirestore "github.com/farhanyousaf786/fans-munch-sub000/internal/platform/firestore"
)

type shopDoc struct {
	Name    string  `firestore:"name"`
	Percent float64 `firestore:"percent"`
}

func TestCollectionAgainstEmulator(t *testing.T) {
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	provider := pfirestore.NewProvider(
		pconfig.FirebaseConfig{ProjectID: "munch-test"},
		pconfig.FirestoreConfig{EmulatorHost: host},
	)
	t.Cleanup(func() { _ = provider.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	shops := pfirestore.NewCollection[shopDoc](provider, "it_shops")
	if _, err := shops.Set(ctx, "shop-1", shopDoc{Name: "Gate A Grill", Percent: 0.2}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	doc, err := shops.Get(ctx, "shop-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if doc.Data.Name != "Gate A Grill" || doc.UpdateTime.IsZero() {
		t.Fatalf("unexpected document: %#v", doc)
	}

	if _, err := shops.Create(ctx, "shop-1", shopDoc{Name: "dup"}); err == nil {
		t.Fatalf("expected conflict on duplicate create")
	} else {
		var cls interface{ IsConflict() bool }
		if !errors.As(err, &cls) || !cls.IsConflict() {
			t.Fatalf("expected conflict classification, got %v", err)
		}
	}

	if _, err := shops.Get(ctx, "missing"); err == nil {
		t.Fatalf("expected not found error")
	} else {
		var cls interface{ IsNotFound() bool }
		if !errors.As(err, &cls) || !cls.IsNotFound() {
			t.Fatalf("expected not found classification, got %v", err)
		}
	}

	err = provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := shops.Doc(ctx, "shop-1")
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := pfirestore.DecodeSnapshot[shopDoc](snap)
		if err != nil {
			return err
		}
		current.Data.Percent = 0.25
		return tx.Set(ref, current.Data)
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	docs, err := shops.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("percent", "==", 0.25)
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected one matching document, got %d", len(docs))
	}
}
