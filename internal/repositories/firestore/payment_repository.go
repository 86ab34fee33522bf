package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/domain"
	pfirestore "github.com/farhanyousaf786/fans-munch-sub000/internal/platform/firestore"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/pagination"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/repositories"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

const (
	paymentCollection      = "payments"
	defaultPaymentPageSize = 20
)

// PaymentRepository persists payment records in Firestore.
type PaymentRepository struct {
	coll *pfirestore.Collection[paymentDocument]
}

var _ repositories.PaymentRepository = (*PaymentRepository)(nil)

// NewPaymentRepository constructs a Firestore-backed payment repository.
func NewPaymentRepository(provider *pfirestore.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	return &PaymentRepository{
		coll: pfirestore.NewCollection[paymentDocument](provider, paymentCollection),
	}, nil
}

// Insert creates the payment document. An existing id is reported as a conflict.
func (r *PaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	id := strings.TrimSpace(payment.ID)
	if id == "" {
		return errors.New("payment repository: payment id is required")
	}
	_, err := r.coll.Create(ctx, id, newPaymentDocument(payment))
	return err
}

// FindByID loads a payment by id.
func (r *PaymentRepository) FindByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	doc, err := r.coll.Get(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		return domain.Payment{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// UpdateStatus records a provider status change.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, updatedAt time.Time) error {
	ref, err := r.coll.Doc(ctx, strings.TrimSpace(paymentID))
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	})
	return pfirestore.WrapError("payments.update_status", err)
}

// ListByShop returns the shop's payments newest first, continuing after the filter cursor.
func (r *PaymentRepository) ListByShop(ctx context.Context, shopID string, filter repositories.PaymentListFilter) (domain.PaymentPage, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return domain.PaymentPage{}, errors.New("payment repository: shop id is required")
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPaymentPageSize
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("shopId", "==", shopID)
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if !filter.AfterCreatedAt.IsZero() && filter.AfterPaymentID != "" {
			q = q.StartAfter(filter.AfterCreatedAt.UTC(), filter.AfterPaymentID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.PaymentPage{}, err
	}

	page := domain.PaymentPage{}
	for i, doc := range docs {
		if i == pageSize {
			last := page.Items[len(page.Items)-1]
			token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			if err != nil {
				return domain.PaymentPage{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	return page, nil
}

type shareDocument struct {
	Platform float64 `firestore:"platform"`
	Hotel    float64 `firestore:"hotel"`
	Vendor   float64 `firestore:"vendor"`
}

type breakdownDocument struct {
	Model       string        `firestore:"model"`
	Gross       shareDocument `firestore:"gross"`
	Fees        shareDocument `firestore:"fees"`
	FeeTotal    float64       `firestore:"feeTotal"`
	Final       shareDocument `firestore:"final"`
	ItemsTotal  float64       `firestore:"itemsTotal"`
	COG         float64       `firestore:"cog"`
	Profit      float64       `firestore:"profit"`
	DeliveryFee float64       `firestore:"deliveryFee"`
	Tip         float64       `firestore:"tip"`
	Total       float64       `firestore:"total"`
}

type paymentItemDocument struct {
	ItemID          string  `firestore:"itemId"`
	Name            string  `firestore:"name"`
	Quantity        int     `firestore:"quantity"`
	Price           float64 `firestore:"price"`
	DiscountedPrice float64 `firestore:"discountedPrice,omitempty"`
	Cost            float64 `firestore:"cost,omitempty"`
}

type paymentDocument struct {
	ShopID         string                `firestore:"shopId"`
	VendorID       string                `firestore:"vendorId,omitempty"`
	HotelID        string                `firestore:"hotelId,omitempty"`
	Provider       string                `firestore:"provider"`
	ProviderRef    string                `firestore:"providerRef"`
	Status         string                `firestore:"status"`
	Amount         int64                 `firestore:"amount"`
	Currency       string                `firestore:"currency"`
	Breakdown      breakdownDocument     `firestore:"breakdown"`
	Items          []paymentItemDocument `firestore:"items,omitempty"`
	CustomerEmail  string                `firestore:"customerEmail,omitempty"`
	Note           string                `firestore:"note,omitempty"`
	IdempotencyKey string                `firestore:"idempotencyKey,omitempty"`
	CreatedAt      time.Time             `firestore:"createdAt"`
	UpdatedAt      time.Time             `firestore:"updatedAt"`
}

func newPaymentDocument(p domain.Payment) paymentDocument {
	b := p.Breakdown
	doc := paymentDocument{
		ShopID:      strings.TrimSpace(p.ShopID),
		VendorID:    strings.TrimSpace(p.VendorID),
		HotelID:     strings.TrimSpace(p.HotelID),
		Provider:    p.Provider,
		ProviderRef: p.ProviderRef,
		Status:      string(p.Status),
		Amount:      p.Amount,
		Currency:    strings.ToUpper(p.Currency),
		Breakdown: breakdownDocument{
			Model:       b.Splits.Model.Tag(),
			Gross:       shareDocument{Platform: b.Splits.Platform, Hotel: b.Splits.Hotel, Vendor: b.Splits.Vendor},
			Fees:        shareDocument{Platform: b.StripeFees.Platform, Hotel: b.StripeFees.Hotel, Vendor: b.StripeFees.Vendor},
			FeeTotal:    b.StripeFees.Total,
			Final:       shareDocument{Platform: b.FinalAmounts.Platform, Hotel: b.FinalAmounts.Hotel, Vendor: b.FinalAmounts.Vendor},
			ItemsTotal:  b.Breakdown.ItemsTotal,
			COG:         b.Breakdown.COG,
			Profit:      b.Breakdown.Profit,
			DeliveryFee: b.Breakdown.DeliveryFee,
			Tip:         b.Breakdown.Tip,
			Total:       b.Breakdown.Total,
		},
		CustomerEmail:  p.CustomerEmail,
		Note:           p.Note,
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
	for _, item := range p.Items {
		doc.Items = append(doc.Items, paymentItemDocument{
			ItemID:          item.ItemID,
			Name:            item.Name,
			Quantity:        item.Quantity,
			Price:           item.Price,
			DiscountedPrice: item.DiscountedPrice,
			Cost:            item.Cost,
		})
	}
	return doc
}

func (d paymentDocument) toDomain(id string) domain.Payment {
	b := d.Breakdown
	payment := domain.Payment{
		ID:          id,
		ShopID:      d.ShopID,
		VendorID:    d.VendorID,
		HotelID:     d.HotelID,
		Provider:    d.Provider,
		ProviderRef: d.ProviderRef,
		Status:      domain.PaymentStatus(d.Status),
		Amount:      d.Amount,
		Currency:    d.Currency,
		Breakdown: splits.PaymentBreakdown{
			Splits:       splits.Splits{Platform: b.Gross.Platform, Hotel: b.Gross.Hotel, Vendor: b.Gross.Vendor, Model: splits.ParseSplitModel(b.Model)},
			StripeFees:   splits.FeeShares{Platform: b.Fees.Platform, Hotel: b.Fees.Hotel, Vendor: b.Fees.Vendor, Total: b.FeeTotal},
			FinalAmounts: splits.FinalAmounts{Platform: b.Final.Platform, Hotel: b.Final.Hotel, Vendor: b.Final.Vendor, StripeFeeTotal: b.FeeTotal},
			Breakdown: splits.Composition{
				ItemsTotal:  b.ItemsTotal,
				COG:         b.COG,
				Profit:      b.Profit,
				DeliveryFee: b.DeliveryFee,
				Tip:         b.Tip,
				Total:       b.Total,
			},
		},
		CustomerEmail:  d.CustomerEmail,
		Note:           d.Note,
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	for _, item := range d.Items {
		payment.Items = append(payment.Items, domain.CartItem{
			ItemID:          item.ItemID,
			Name:            item.Name,
			Quantity:        item.Quantity,
			Price:           item.Price,
			DiscountedPrice: item.DiscountedPrice,
			Cost:            item.Cost,
		})
	}
	return payment
}
