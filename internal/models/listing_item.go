// internal/models/listing_item.go
package models

import (
	"github.com/google/uuid"
)

type ListingItemTemplate struct {
	BaseModel
	Hash      string    `json:"hash" gorm:"size:64;index"`
	ProfileID uuid.UUID `json:"profile_id" gorm:"type:uuid;not null;index"`

	// Relationships
	Profile              *Profile               `json:"profile,omitempty" gorm:"foreignKey:ProfileID"`
	ItemInformation      *ItemInformation       `json:"item_information,omitempty" gorm:"foreignKey:ListingItemTemplateID"`
	PaymentInformation   *PaymentInformation    `json:"payment_information,omitempty" gorm:"foreignKey:ListingItemTemplateID"`
	MessagingInformation []MessagingInformation `json:"messaging_information,omitempty" gorm:"foreignKey:ListingItemTemplateID"`
	ListingItemObjects   []ListingItemObject    `json:"listing_item_objects,omitempty" gorm:"foreignKey:ListingItemTemplateID"`
	ListingItems         []ListingItem          `json:"listing_items,omitempty" gorm:"foreignKey:ListingItemTemplateID"`
}

type ListingItem struct {
	BaseModel
	Hash                  string     `json:"hash" gorm:"size:64;not null;uniqueIndex"`
	MarketID              uuid.UUID  `json:"market_id" gorm:"type:uuid;not null;index"`
	Seller                string     `json:"seller" gorm:"size:100;not null;index"`
	ListingItemTemplateID *uuid.UUID `json:"listing_item_template_id" gorm:"type:uuid;index"`

	// Relationships
	Market               *Market                `json:"market,omitempty" gorm:"foreignKey:MarketID"`
	ListingItemTemplate  *ListingItemTemplate   `json:"listing_item_template,omitempty" gorm:"foreignKey:ListingItemTemplateID"`
	ItemInformation      *ItemInformation       `json:"item_information,omitempty" gorm:"foreignKey:ListingItemID"`
	PaymentInformation   *PaymentInformation    `json:"payment_information,omitempty" gorm:"foreignKey:ListingItemID"`
	MessagingInformation []MessagingInformation `json:"messaging_information,omitempty" gorm:"foreignKey:ListingItemID"`
	ListingItemObjects   []ListingItemObject    `json:"listing_item_objects,omitempty" gorm:"foreignKey:ListingItemID"`
	Bids                 []Bid                  `json:"bids,omitempty" gorm:"foreignKey:ListingItemID"`
	ActionMessages       []ActionMessage        `json:"action_messages,omitempty" gorm:"foreignKey:ListingItemID"`
}

type ItemInformation struct {
	BaseModel
	ListingItemID         *uuid.UUID `json:"listing_item_id" gorm:"type:uuid;index"`
	ListingItemTemplateID *uuid.UUID `json:"listing_item_template_id" gorm:"type:uuid;index"`
	Title                 string     `json:"title" gorm:"size:255;not null"`
	ShortDescription      string     `json:"short_description" gorm:"type:text"`
	LongDescription       string     `json:"long_description" gorm:"type:text"`
	ItemCategoryID        *uuid.UUID `json:"item_category_id" gorm:"type:uuid;index"`
	LocationCountry       string     `json:"location_country" gorm:"size:8"`
	LocationAddress       string     `json:"location_address" gorm:"type:text"`

	// Relationships
	ItemCategory         *ItemCategory         `json:"item_category,omitempty" gorm:"foreignKey:ItemCategoryID"`
	ShippingDestinations []ShippingDestination `json:"shipping_destinations,omitempty" gorm:"foreignKey:ItemInformationID"`
	ItemImages           []ItemImage           `json:"item_images,omitempty" gorm:"foreignKey:ItemInformationID"`
}

type ShippingDestination struct {
	BaseModel
	ItemInformationID    uuid.UUID            `json:"item_information_id" gorm:"type:uuid;not null;index"`
	Country              string               `json:"country" gorm:"size:8;not null"`
	ShippingAvailability ShippingAvailability `json:"shipping_availability" gorm:"type:varchar(20);not null"`
}

type ItemImage struct {
	BaseModel
	ItemInformationID uuid.UUID `json:"item_information_id" gorm:"type:uuid;not null;index"`
	Hash              string    `json:"hash" gorm:"size:64;index"`

	// Relationships
	ItemImageDatas []ItemImageData `json:"item_image_datas,omitempty" gorm:"foreignKey:ItemImageID"`
}

type ItemImageData struct {
	BaseModel
	ItemImageID  uuid.UUID    `json:"item_image_id" gorm:"type:uuid;not null;index"`
	DataID       string       `json:"data_id" gorm:"size:255"`
	Protocol     string       `json:"protocol" gorm:"size:20"`
	Encoding     string       `json:"encoding" gorm:"size:20"`
	Data         string       `json:"data" gorm:"type:text"`
	ImageVersion ImageVersion `json:"image_version" gorm:"type:varchar(20);not null"`
}

type PaymentInformation struct {
	BaseModel
	ListingItemID              *uuid.UUID        `json:"listing_item_id" gorm:"type:uuid;index"`
	ListingItemTemplateID      *uuid.UUID        `json:"listing_item_template_id" gorm:"type:uuid;index"`
	Type                       PaymentType       `json:"type" gorm:"type:varchar(20);not null"`
	EscrowType                 EscrowType        `json:"escrow_type" gorm:"type:varchar(20)"`
	EscrowBuyerRatio           float64           `json:"escrow_buyer_ratio" gorm:"type:decimal(10,4);default:0"`
	EscrowSellerRatio          float64           `json:"escrow_seller_ratio" gorm:"type:decimal(10,4);default:0"`
	Currency                   string            `json:"currency" gorm:"size:10"`
	BasePrice                  float64           `json:"base_price" gorm:"type:decimal(20,8);default:0"`
	DomesticShippingPrice      float64           `json:"domestic_shipping_price" gorm:"type:decimal(20,8);default:0"`
	InternationalShippingPrice float64           `json:"international_shipping_price" gorm:"type:decimal(20,8);default:0"`
	AddressType                CryptoAddressType `json:"address_type" gorm:"type:varchar(20)"`
	Address                    string            `json:"address" gorm:"size:100"`
}

type MessagingInformation struct {
	BaseModel
	ListingItemID         *uuid.UUID `json:"listing_item_id" gorm:"type:uuid;index"`
	ListingItemTemplateID *uuid.UUID `json:"listing_item_template_id" gorm:"type:uuid;index"`
	Protocol              string     `json:"protocol" gorm:"size:20;not null"`
	PublicKey             string     `json:"public_key" gorm:"size:255;not null"`
}

type ListingItemObject struct {
	BaseModel
	ListingItemID         *uuid.UUID `json:"listing_item_id" gorm:"type:uuid;index"`
	ListingItemTemplateID *uuid.UUID `json:"listing_item_template_id" gorm:"type:uuid;index"`
	Type                  ObjectType `json:"type" gorm:"type:varchar(20);not null"`
	Description           string     `json:"description" gorm:"type:text"`
	Order                 int        `json:"order" gorm:"column:sort_order;default:0"`

	// Relationships
	ListingItemObjectDatas []ListingItemObjectData `json:"listing_item_object_datas,omitempty" gorm:"foreignKey:ListingItemObjectID"`
}

type ListingItemObjectData struct {
	BaseModel
	ListingItemObjectID uuid.UUID `json:"listing_item_object_id" gorm:"type:uuid;not null;index"`
	Key                 string    `json:"key" gorm:"size:255;not null"`
	Value               string    `json:"value" gorm:"type:text"`
}
