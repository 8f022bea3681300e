// internal/services/container.go
package services

import (
	"gorm.io/gorm"
)

// Transport is everything the services need from the daemon.
type Transport interface {
	Sender
	Wallet
}

// Container holds one instance of every service, wired together.
type Container struct {
	Markets        *MarketService
	Profiles       *ProfileService
	Categories     *ItemCategoryService
	Templates      *ListingItemTemplateService
	ListingItems   *ListingItemService
	Bids           *BidService
	Orders         *OrderService
	ActionMessages *ActionMessageService
	Escrow         *EscrowService
	ListingActions *ListingItemActionService
	BidActions     *BidActionService
	Notifications  *NotificationService
}

func NewContainer(db *gorm.DB, transport Transport, emitter Emitter, version string) *Container {
	c := &Container{
		Markets:        NewMarketService(db),
		Profiles:       NewProfileService(db, transport),
		Categories:     NewItemCategoryService(db),
		ListingItems:   NewListingItemService(db),
		Bids:           NewBidService(db),
		ActionMessages: NewActionMessageService(db),
		Escrow:         NewEscrowService(transport),
		Notifications:  NewNotificationService(nil),
	}
	c.Templates = NewListingItemTemplateService(db, c.Categories, c.Profiles)
	c.Orders = NewOrderService(db, c.Bids, emitter)
	c.ListingActions = NewListingItemActionService(c.Templates, c.ListingItems, c.Markets, c.Categories, c.ActionMessages, transport, emitter, version)
	c.BidActions = NewBidActionService(db, c.Bids, c.ListingItems, c.Markets, c.Profiles, c.Orders, c.ActionMessages, c.Escrow, transport, version)
	return c
}

// Register subscribes every inbound handler and listener to bus.
func (c *Container) Register(bus Subscriber) {
	c.ListingActions.Register(bus)
	c.BidActions.Register(bus)
	c.Notifications.Register(bus)
}
