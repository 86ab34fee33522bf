package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/domain"
	pfirestore "github.com/farhanyousaf786/fans-munch-sub000/internal/platform/firestore"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/repositories"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

const shopPaymentConfigCollection = "shopPaymentConfigs"

// ShopPaymentConfigRepository stores shop payment policies, one document per shop id.
type ShopPaymentConfigRepository struct {
	coll *pfirestore.Collection[shopPaymentConfigDocument]
	now  func() time.Time
}

var _ repositories.ShopPaymentConfigRepository = (*ShopPaymentConfigRepository)(nil)

// NewShopPaymentConfigRepository constructs a Firestore-backed shop payment config repository.
func NewShopPaymentConfigRepository(provider *pfirestore.Provider) (*ShopPaymentConfigRepository, error) {
	if provider == nil {
		return nil, errors.New("shop payment config repository requires firestore provider")
	}
	return &ShopPaymentConfigRepository{
		coll: pfirestore.NewCollection[shopPaymentConfigDocument](provider, shopPaymentConfigCollection),
		now:  time.Now,
	}, nil
}

// Get loads the policy of shopID.
func (r *ShopPaymentConfigRepository) Get(ctx context.Context, shopID string) (domain.ShopPaymentConfig, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return domain.ShopPaymentConfig{}, errors.New("shop payment config repository: shop id is required")
	}
	doc, err := r.coll.Get(ctx, shopID)
	if err != nil {
		return domain.ShopPaymentConfig{}, err
	}
	cfg := doc.Data.toDomain(doc.ID)
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = doc.UpdateTime.UTC()
	}
	return cfg, nil
}

// Save upserts the policy and returns it with the stored update time.
func (r *ShopPaymentConfigRepository) Save(ctx context.Context, cfg domain.ShopPaymentConfig) (domain.ShopPaymentConfig, error) {
	shopID := strings.TrimSpace(cfg.ShopID)
	if shopID == "" {
		return domain.ShopPaymentConfig{}, errors.New("shop payment config repository: shop id is required")
	}
	cfg.ShopID = shopID
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = r.now().UTC()
	}
	if _, err := r.coll.Set(ctx, shopID, newShopPaymentConfigDocument(cfg)); err != nil {
		return domain.ShopPaymentConfig{}, err
	}
	return cfg, nil
}

// Ping reads at most one policy, for readiness checks.
func (r *ShopPaymentConfigRepository) Ping(ctx context.Context) error {
	_, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Limit(1)
	})
	return err
}

type shopPaymentConfigDocument struct {
	Model               string           `firestore:"model"`
	PlatformFee         float64          `firestore:"platformFee"`
	VendorFee           float64          `firestore:"vendorFee"`
	HotelFee            float64          `firestore:"hotelFee"`
	DeliveryDestination string           `firestore:"deliveryDestination,omitempty"`
	TipDestination      string           `firestore:"tipDestination,omitempty"`
	DeliverySplit       *splits.ShareMap `firestore:"deliverySplit,omitempty"`
	TipSplit            *splits.ShareMap `firestore:"tipSplit,omitempty"`
	VendorID            string           `firestore:"vendorId,omitempty"`
	HotelID             string           `firestore:"hotelId,omitempty"`
	UpdatedAt           time.Time        `firestore:"updatedAt"`
}

func newShopPaymentConfigDocument(cfg domain.ShopPaymentConfig) shopPaymentConfigDocument {
	c := cfg.Config
	return shopPaymentConfigDocument{
		Model:               strings.TrimSpace(c.Model),
		PlatformFee:         c.PlatformFee,
		VendorFee:           c.VendorFee,
		HotelFee:            c.HotelFee,
		DeliveryDestination: strings.TrimSpace(c.DeliveryDestination),
		TipDestination:      strings.TrimSpace(c.TipDestination),
		DeliverySplit:       c.DeliverySplit,
		TipSplit:            c.TipSplit,
		VendorID:            strings.TrimSpace(c.VendorID),
		HotelID:             strings.TrimSpace(c.HotelID),
		UpdatedAt:           cfg.UpdatedAt.UTC(),
	}
}

func (d shopPaymentConfigDocument) toDomain(shopID string) domain.ShopPaymentConfig {
	return domain.ShopPaymentConfig{
		ShopID: shopID,
		Config: splits.MerchantPaymentConfig{
			Model:               d.Model,
			PlatformFee:         d.PlatformFee,
			VendorFee:           d.VendorFee,
			HotelFee:            d.HotelFee,
			DeliveryDestination: d.DeliveryDestination,
			TipDestination:      d.TipDestination,
			DeliverySplit:       d.DeliverySplit,
			TipSplit:            d.TipSplit,
			VendorID:            d.VendorID,
			HotelID:             d.HotelID,
		},
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}
