// internal/translator/order.go
package translator

import (
	"github.com/google/uuid"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/message"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/objecthash"
	"github.com/javajoker/mpnode/internal/utils"
)

// BidFromMessage builds an unsaved Bid for a received bid-family action.
func BidFromMessage(msg *message.ActionMessage, bidder string, listingItemID uuid.UUID) (*models.Bid, error) {
	if err := utils.ValidateStruct(msg); err != nil {
		return nil, apperr.Malformed("invalid bid message").WithDetails(utils.GetValidationErrors(err))
	}

	action := models.BidAction(msg.Action)
	switch action {
	case models.BidActionBid, models.BidActionAccept, models.BidActionReject, models.BidActionCancel:
	default:
		return nil, apperr.Malformed("unknown bid action %q", msg.Action)
	}

	bid := &models.Bid{
		Action:        action,
		Bidder:        bidder,
		ListingItemID: listingItemID,
	}
	for i, o := range msg.Objects {
		bid.BidDatas = append(bid.BidDatas, models.BidData{
			DataID:    o.ID,
			DataValue: o.Value,
			Position:  i,
		})
	}
	return bid, nil
}

func BidToMessage(action models.BidAction, itemHash string, datas []models.BidData) *message.ActionMessage {
	msg := &message.ActionMessage{
		Action: message.ActionType(action),
		Item:   itemHash,
	}
	for _, d := range datas {
		msg.Objects = append(msg.Objects, message.ObjectPair{ID: d.DataID, Value: d.DataValue})
	}
	return msg
}

// OrderFromBid derives an Order from an accepted Bid. The bid must have its
// ListingItem loaded. Any action other than accept is a protocol violation.
// The hash covers the parties and the listing, not the local bid row, so the
// buyer's and the seller's copies of the order share it.
func OrderFromBid(bid *models.Bid) (*models.Order, error) {
	if bid.Action != models.BidActionAccept {
		return nil, apperr.ProtocolViolation("cannot create an order from a bid with action %s", bid.Action)
	}
	if bid.ListingItem == nil {
		return nil, apperr.New(apperr.KindInternal, "bid %s has no listing item loaded", bid.ID)
	}

	hash, err := objecthash.HashOrder(objecthash.Order{
		Buyer:      bid.Bidder,
		Seller:     bid.ListingItem.Seller,
		ItemHashes: []string{bid.ListingItem.Hash},
	})
	if err != nil {
		return nil, err
	}

	return &models.Order{
		Hash:   hash,
		Buyer:  bid.Bidder,
		Seller: bid.ListingItem.Seller,
		OrderItems: []models.OrderItem{{
			BidID:    bid.ID,
			ItemHash: bid.ListingItem.Hash,
			Status:   models.OrderStatusAwaitingEscrow,
		}},
	}, nil
}
