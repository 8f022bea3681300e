// internal/models/bid.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Bid struct {
	BaseModel
	Action        BidAction `json:"action" gorm:"type:varchar(20);not null;index"`
	Bidder        string    `json:"bidder" gorm:"size:100;not null;index"`
	ListingItemID uuid.UUID `json:"listing_item_id" gorm:"type:uuid;not null;index"`

	// ParentBidID links an accept, reject or cancel to the bid it answers.
	// A bid has at most one answer.
	ParentBidID *uuid.UUID `json:"parent_bid_id,omitempty" gorm:"type:uuid;uniqueIndex"`

	// Relationships
	ListingItem *ListingItem `json:"listing_item,omitempty" gorm:"foreignKey:ListingItemID"`
	BidDatas    []BidData    `json:"bid_datas,omitempty" gorm:"foreignKey:BidID"`
}

type BidData struct {
	BaseModel
	BidID     uuid.UUID `json:"bid_id" gorm:"type:uuid;not null;index"`
	DataID    string    `json:"data_id" gorm:"size:255;not null"`
	DataValue string    `json:"data_value" gorm:"type:text"`
	Position  int       `json:"position" gorm:"default:0"`
}

type Order struct {
	BaseModel
	Hash   string `json:"hash" gorm:"size:64;not null;uniqueIndex"`
	Buyer  string `json:"buyer" gorm:"size:100;not null;index"`
	Seller string `json:"seller" gorm:"size:100;not null;index"`

	// Relationships
	OrderItems []OrderItem `json:"order_items,omitempty" gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	BaseModel
	OrderID  uuid.UUID   `json:"order_id" gorm:"type:uuid;not null;index"`
	BidID    uuid.UUID   `json:"bid_id" gorm:"type:uuid;not null;uniqueIndex"`
	ItemHash string      `json:"item_hash" gorm:"size:64;not null;index"`
	Status   OrderStatus `json:"status" gorm:"type:varchar(20);default:'AWAITING_ESCROW';index"`

	// Relationships
	Bid *Bid `json:"bid,omitempty" gorm:"foreignKey:BidID"`
}

// ActionObject is one id/value pair carried by a received action.
type ActionObject struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// ActionMessage records a received envelope for replay and debugging.
type ActionMessage struct {
	BaseModel
	Action        string         `json:"action" gorm:"size:50;not null;index"`
	Objects       []ActionObject `json:"objects" gorm:"serializer:json"`
	MsgID         string         `json:"msgid" gorm:"column:msgid;size:100;not null;uniqueIndex"`
	Version       string         `json:"version" gorm:"size:20"`
	Received      time.Time      `json:"received"`
	Sent          time.Time      `json:"sent"`
	From          string         `json:"from" gorm:"column:from_address;size:100;index"`
	To            string         `json:"to" gorm:"column:to_address;size:100;index"`
	ListingItemID uuid.UUID      `json:"listing_item_id" gorm:"type:uuid;not null;index"`

	// Relationships
	ListingItem *ListingItem `json:"listing_item,omitempty" gorm:"foreignKey:ListingItemID"`
}
