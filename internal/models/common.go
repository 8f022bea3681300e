// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Enums
type PaymentType string

const (
	PaymentTypeSale PaymentType = "SALE"
	PaymentTypeFree PaymentType = "FREE"
	PaymentTypeRent PaymentType = "RENT"
)

type EscrowType string

const (
	EscrowTypeMAD EscrowType = "MAD"
	EscrowTypeNOP EscrowType = "NOP"
)

type CryptoAddressType string

const (
	CryptoAddressTypeNormal  CryptoAddressType = "NORMAL"
	CryptoAddressTypeStealth CryptoAddressType = "STEALTH"
)

type ShippingAvailability string

const (
	ShippingAvailabilityShips       ShippingAvailability = "SHIPS"
	ShippingAvailabilityDoesNotShip ShippingAvailability = "DOES_NOT_SHIP"
	ShippingAvailabilityAsk         ShippingAvailability = "ASK"
)

type ObjectType string

const (
	ObjectTypeTable    ObjectType = "TABLE"
	ObjectTypeDropdown ObjectType = "DROPDOWN"
)

type BidAction string

const (
	BidActionBid    BidAction = "MPA_BID"
	BidActionAccept BidAction = "MPA_ACCEPT"
	BidActionReject BidAction = "MPA_REJECT"
	BidActionCancel BidAction = "MPA_CANCEL"
)

type OrderStatus string

const (
	OrderStatusAwaitingEscrow OrderStatus = "AWAITING_ESCROW"
	OrderStatusEscrowLocked   OrderStatus = "ESCROW_LOCKED"
	OrderStatusShipping       OrderStatus = "SHIPPING"
	OrderStatusComplete       OrderStatus = "COMPLETE"
)

type ImageVersion string

const (
	ImageVersionOriginal  ImageVersion = "ORIGINAL"
	ImageVersionLarge     ImageVersion = "LARGE"
	ImageVersionMedium    ImageVersion = "MEDIUM"
	ImageVersionThumbnail ImageVersion = "THUMBNAIL"
)

type ImageSize struct {
	Height int
	Width  int
}

// ImageVersions holds the target dimensions per version. ORIGINAL keeps the
// uploaded size.
var ImageVersions = map[ImageVersion]ImageSize{
	ImageVersionOriginal:  {},
	ImageVersionLarge:     {Height: 960, Width: 960},
	ImageVersionMedium:    {Height: 400, Width: 400},
	ImageVersionThumbnail: {Height: 200, Width: 200},
}
