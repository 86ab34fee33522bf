package splits

import "strings"

// SplitModel identifies the revenue-sharing policy applied to an order.
type SplitModel int

const (
	// ModelTwoWay divides revenue between the platform and the vendor.
	ModelTwoWay SplitModel = iota
	// ModelCOGBased pays the vendor's cost of goods first, then splits the profit two ways.
	ModelCOGBased
	// ModelThreeWay pays cost of goods first, then splits the profit between platform, hotel and vendor.
	ModelThreeWay
	// ModelThreeWayFallback is a 3-way configuration without a hotel. It settles as ModelTwoWay.
	ModelThreeWayFallback
)

const (
	tagTwoWay   = "2-way"
	tagCOGBased = "cog-based"
	tagThreeWay = "3-way"
)

// ParseSplitModel maps a stored model tag onto a SplitModel. Unrecognised or empty tags resolve to
// ModelTwoWay.
func ParseSplitModel(tag string) SplitModel {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case tagCOGBased:
		return ModelCOGBased
	case tagThreeWay:
		return ModelThreeWay
	default:
		return ModelTwoWay
	}
}

// Tag returns the wire name of the policy that is actually applied.
func (m SplitModel) Tag() string {
	switch m {
	case ModelCOGBased:
		return tagCOGBased
	case ModelThreeWay:
		return tagThreeWay
	case ModelTwoWay, ModelThreeWayFallback:
		return tagTwoWay
	default:
		return tagTwoWay
	}
}

func (m SplitModel) String() string {
	if m == ModelThreeWayFallback {
		return "3-way-fallback"
	}
	return m.Tag()
}

// MarshalText renders the applied policy tag.
func (m SplitModel) MarshalText() ([]byte, error) {
	return []byte(m.Tag()), nil
}

// UnmarshalText parses a policy tag.
func (m *SplitModel) UnmarshalText(text []byte) error {
	*m = ParseSplitModel(string(text))
	return nil
}

// Destination names where a delivery fee or tip is routed.
type Destination string

const (
	DestinationPlatform Destination = "platform"
	DestinationVendor   Destination = "vendor"
	DestinationHotel    Destination = "hotel"
	DestinationSplit    Destination = "split"
)

// ParseDestination normalises a stored destination. Empty values default to the platform.
func ParseDestination(value string) Destination {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return DestinationPlatform
	}
	return Destination(trimmed)
}

// Valid reports whether the destination is one of the known kinds.
func (d Destination) Valid() bool {
	switch d {
	case DestinationPlatform, DestinationVendor, DestinationHotel, DestinationSplit:
		return true
	default:
		return false
	}
}

// ShareMap holds fractional shares per party. Missing parties are zero.
type ShareMap struct {
	Platform float64 `json:"platform" firestore:"platform"`
	Hotel    float64 `json:"hotel,omitempty" firestore:"hotel,omitempty"`
	Vendor   float64 `json:"vendor" firestore:"vendor"`
}

// defaultShareMap is applied to "split" destinations configured without a map.
var defaultShareMap = ShareMap{Platform: 1, Vendor: 0}

// OrderSummary is the monetary composition of a single checkout.
type OrderSummary struct {
	ItemsTotal  float64 `json:"itemsTotal"`
	DeliveryFee float64 `json:"deliveryFee"`
	Tip         float64 `json:"tip"`
	COG         float64 `json:"cog"`
}

// Total is the amount charged to the payer. Cost of goods is not part of it.
func (o OrderSummary) Total() float64 {
	return o.ItemsTotal + o.DeliveryFee + o.Tip
}

// Profit is the item revenue left after the vendor's cost of goods.
func (o OrderSummary) Profit() float64 {
	return o.ItemsTotal - o.COG
}

// MerchantPaymentConfig is a shop's revenue-sharing policy.
type MerchantPaymentConfig struct {
	Model               string    `json:"model"`
	PlatformFee         float64   `json:"platformFee"`
	VendorFee           float64   `json:"vendorFee"`
	HotelFee            float64   `json:"hotelFee,omitempty"`
	DeliveryDestination string    `json:"deliveryDestination,omitempty"`
	TipDestination      string    `json:"tipDestination,omitempty"`
	DeliverySplit       *ShareMap `json:"deliverySplit,omitempty"`
	TipSplit            *ShareMap `json:"tipSplit,omitempty"`
	VendorID            string    `json:"vendorId,omitempty"`
	HotelID             string    `json:"hotelId,omitempty"`
}

// SplitModel resolves the policy variant, including the hotel-less 3-way fallback.
func (c MerchantPaymentConfig) SplitModel() SplitModel {
	model := ParseSplitModel(c.Model)
	if model == ModelThreeWay && strings.TrimSpace(c.HotelID) == "" {
		return ModelThreeWayFallback
	}
	return model
}

// Splits are gross per-party amounts before processor fees.
type Splits struct {
	Platform float64    `json:"platform"`
	Hotel    float64    `json:"hotel"`
	Vendor   float64    `json:"vendor"`
	Model    SplitModel `json:"model"`
}

// Total sums the gross amounts.
func (s Splits) Total() float64 {
	return s.Platform + s.Hotel + s.Vendor
}

// FeeShares are the processor fee portions attributed to each party.
type FeeShares struct {
	Platform float64 `json:"platform"`
	Hotel    float64 `json:"hotel"`
	Vendor   float64 `json:"vendor"`
	Total    float64 `json:"total"`
}

// FinalAmounts are the payable amounts after fees.
type FinalAmounts struct {
	Platform       float64 `json:"platform"`
	Hotel          float64 `json:"hotel"`
	Vendor         float64 `json:"vendor"`
	StripeFeeTotal float64 `json:"stripeFeeTotal"`
}

// Composition echoes the order inputs for auditing.
type Composition struct {
	ItemsTotal  float64 `json:"itemsTotal"`
	COG         float64 `json:"cog"`
	Profit      float64 `json:"profit"`
	DeliveryFee float64 `json:"deliveryFee"`
	Tip         float64 `json:"tip"`
	Total       float64 `json:"total"`
}

// PaymentBreakdown is the complete result of a split calculation.
type PaymentBreakdown struct {
	Splits       Splits       `json:"splits"`
	StripeFees   FeeShares    `json:"stripeFees"`
	FinalAmounts FinalAmounts `json:"finalAmounts"`
	Breakdown    Composition  `json:"breakdown"`
}
