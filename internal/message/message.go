// internal/message/message.go
//
// Package message defines the envelope and payloads exchanged between nodes.
// Field names are part of the protocol shared with peers and must stay stable.
package message

import (
	"encoding/json"
	"time"
)

const ProtocolVersion = "0.1.0.0"

type ActionType string

const (
	ActionListingItemAdd ActionType = "MP_ITEM_ADD"
	ActionBid            ActionType = "MPA_BID"
	ActionAcceptBid      ActionType = "MPA_ACCEPT"
	ActionRejectBid      ActionType = "MPA_REJECT"
	ActionCancelBid      ActionType = "MPA_CANCEL"
)

// Known reports whether a is an action this node processes.
func (a ActionType) Known() bool {
	switch a {
	case ActionListingItemAdd, ActionBid, ActionAcceptBid, ActionRejectBid, ActionCancelBid:
		return true
	}
	return false
}

// MarketplaceMessage is the envelope. Exactly one of Item and MPAction is set.
type MarketplaceMessage struct {
	Version  string              `json:"version"`
	Item     *ListingItemMessage `json:"item,omitempty"`
	MPAction *ActionMessage      `json:"mpaction,omitempty"`
	Market   string              `json:"market,omitempty"`
}

// Action returns the action the envelope carries, or "" when it carries none.
func (m *MarketplaceMessage) Action() ActionType {
	switch {
	case m.Item != nil && m.MPAction == nil:
		return ActionListingItemAdd
	case m.MPAction != nil && m.Item == nil:
		return m.MPAction.Action
	default:
		return ""
	}
}

type ListingItemMessage struct {
	Hash        string             `json:"hash"`
	Information InformationMessage `json:"information"`
	Payment     PaymentMessage     `json:"payment"`
	Messaging   []MessagingMessage `json:"messaging" validate:"dive"`
	Objects     []ObjectMessage    `json:"objects,omitempty" validate:"dive"`
}

type InformationMessage struct {
	Title                string           `json:"title" validate:"required,max=255"`
	ShortDescription     string           `json:"shortDescription"`
	LongDescription      string           `json:"longDescription"`
	Category             []string         `json:"category" validate:"required,min=1,dive,required"`
	Location             *LocationMessage `json:"location,omitempty"`
	ShippingDestinations []string         `json:"shippingDestinations,omitempty" validate:"dive,required"`
	Images               []ImageMessage   `json:"images,omitempty" validate:"dive"`
}

type LocationMessage struct {
	CountryCode string `json:"countryCode"`
	Address     string `json:"address,omitempty"`
}

type ImageMessage struct {
	Hash string             `json:"hash"`
	Data []ImageDataMessage `json:"data" validate:"required,min=1,dive"`
}

type ImageDataMessage struct {
	Protocol string `json:"protocol"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
	DataID   string `json:"dataId,omitempty"`
}

type PaymentMessage struct {
	Type      string            `json:"type" validate:"required,oneof=SALE FREE RENT"`
	Escrow    *EscrowMessage    `json:"escrow,omitempty"`
	ItemPrice *ItemPriceMessage `json:"itemPrice,omitempty"`
}

type EscrowMessage struct {
	Type  string       `json:"type" validate:"required"`
	Ratio RatioMessage `json:"ratio"`
}

type RatioMessage struct {
	Buyer  float64 `json:"buyer"`
	Seller float64 `json:"seller"`
}

type ItemPriceMessage struct {
	Currency      string                `json:"currency"`
	BasePrice     float64               `json:"basePrice" validate:"gte=0"`
	ShippingPrice *ShippingPriceMessage `json:"shippingPrice,omitempty"`
	Address       CryptoAddressMessage  `json:"address"`
}

type ShippingPriceMessage struct {
	Domestic      float64 `json:"domestic"`
	International float64 `json:"international"`
}

type CryptoAddressMessage struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

type MessagingMessage struct {
	Protocol  string `json:"protocol" validate:"required"`
	PublicKey string `json:"publicKey" validate:"required"`
}

// ObjectMessage is either a TABLE of key/value rows or a named DROPDOWN.
type ObjectMessage struct {
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Order       int               `json:"order"`
	Table       []KeyValueMessage `json:"table,omitempty"`
	Options     []OptionMessage   `json:"options,omitempty"`
}

type KeyValueMessage struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type OptionMessage struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ActionMessage carries a bid-family action against a listing identified by hash.
type ActionMessage struct {
	Action  ActionType   `json:"action" validate:"required"`
	Item    string       `json:"item" validate:"required"`
	Objects []ObjectPair `json:"objects,omitempty"`
}

type ObjectPair struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Metadata is what the transport knows about a received message.
type Metadata struct {
	MsgID    string
	From     string
	To       string
	Sent     time.Time
	Received time.Time
}

// Parse decodes an envelope. Unknown top-level fields are ignored.
func Parse(payload string) (*MarketplaceMessage, error) {
	var m MarketplaceMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func Encode(m *MarketplaceMessage) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
