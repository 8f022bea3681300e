// internal/services/bid_action_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/daemon"
	"github.com/javajoker/mpnode/internal/database"
	"github.com/javajoker/mpnode/internal/events"
	"github.com/javajoker/mpnode/internal/message"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/translator"
	"github.com/javajoker/mpnode/internal/utils"
)

// EscrowAddressDataID names the bid data entry carrying the buyer's escrow address.
const EscrowAddressDataID = "escrow_address"

// errAlreadyProcessed rolls back an inbound action whose msgid is on record.
var errAlreadyProcessed = errors.New("message already processed")

// BidActionService sends bid-family actions and applies received ones.
//
// Routing: bids and cancels travel from the bidder to the seller, accepts
// and rejects from the seller back to the bidder.
type BidActionService struct {
	db             *gorm.DB
	bids           *BidService
	items          *ListingItemService
	markets        *MarketService
	profiles       *ProfileService
	orders         *OrderService
	actionMessages *ActionMessageService
	escrow         *EscrowService
	sender         Sender
	version        string
	log            *logrus.Entry
}

type SendBidRequest struct {
	Data []BidDataInput `json:"data" validate:"dive"`
}

type BidDataInput struct {
	ID    string `json:"id" validate:"required"`
	Value string `json:"value"`
}

// BidOutcome is what an outbound action returns: the transport response and,
// when the message went out, the stored entities.
type BidOutcome struct {
	Result *daemon.SendResult `json:"result"`
	Bid    *models.Bid        `json:"bid,omitempty"`
	Order  *models.Order      `json:"order,omitempty"`
}

func NewBidActionService(
	db *gorm.DB,
	bids *BidService,
	items *ListingItemService,
	markets *MarketService,
	profiles *ProfileService,
	orders *OrderService,
	actionMessages *ActionMessageService,
	escrow *EscrowService,
	sender Sender,
	version string,
) *BidActionService {
	return &BidActionService{
		db:             db,
		bids:           bids,
		items:          items,
		markets:        markets,
		profiles:       profiles,
		orders:         orders,
		actionMessages: actionMessages,
		escrow:         escrow,
		sender:         sender,
		version:        version,
		log:            logrus.WithField("component", "bid_action"),
	}
}

func (s *BidActionService) Register(bus Subscriber) {
	bus.Subscribe(events.BidReceived, s.ProcessBidReceived)
	bus.Subscribe(events.BidAccepted, s.ProcessAcceptBidReceived)
	bus.Subscribe(events.BidRejected, s.ProcessRejectBidReceived)
	bus.Subscribe(events.BidCancelled, s.ProcessCancelBidReceived)
}

// Send places a bid on a listing from the default profile.
func (s *BidActionService) Send(ctx context.Context, listingItemID uuid.UUID, req *SendBidRequest) (*BidOutcome, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperr.Malformed("invalid bid").WithDetails(utils.GetValidationErrors(err))
	}

	item, err := s.items.FindOne(ctx, listingItemID, true)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.FindDefault(ctx)
	if err != nil {
		return nil, err
	}
	market, err := s.markets.FindOne(ctx, item.MarketID)
	if err != nil {
		return nil, err
	}

	datas := make([]models.BidData, 0, len(req.Data)+1)
	for _, d := range req.Data {
		datas = append(datas, models.BidData{DataID: d.ID, DataValue: d.Value})
	}
	if pay := item.PaymentInformation; pay != nil && pay.EscrowType == models.EscrowTypeMAD && s.escrow != nil {
		address, err := s.escrow.NewEscrowAddress(ctx, "_escrow_"+item.Hash)
		if err != nil {
			return nil, err
		}
		datas = append(datas, models.BidData{DataID: EscrowAddressDataID, DataValue: address})
	}
	for i := range datas {
		datas[i].Position = i
	}

	res, err := s.sendAction(ctx, models.BidActionBid, item, datas, profile.Address, item.Seller, market.Address)
	if err != nil {
		return nil, err
	}
	if !res.Sent() {
		return &BidOutcome{Result: res}, nil
	}

	bid, err := s.bids.Create(ctx, &models.Bid{
		Action:        models.BidActionBid,
		Bidder:        profile.Address,
		ListingItemID: item.ID,
		BidDatas:      datas,
	})
	if err != nil {
		return nil, err
	}
	return &BidOutcome{Result: res, Bid: bid}, nil
}

// Accept answers a received bid on one of our listings and creates the order.
func (s *BidActionService) Accept(ctx context.Context, bidID uuid.UUID) (*BidOutcome, error) {
	bid, item, market, profile, err := s.loadAnswerable(ctx, bidID, "accept")
	if err != nil {
		return nil, err
	}

	res, err := s.sendAction(ctx, models.BidActionAccept, item, nil, profile.Address, bid.Bidder, market.Address)
	if err != nil {
		return nil, err
	}
	if !res.Sent() {
		return &BidOutcome{Result: res}, nil
	}

	var (
		accept  *models.Bid
		order   *models.Order
		created bool
	)
	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		accept, err = s.bids.WithTx(tx).Create(ctx, &models.Bid{
			Action:        models.BidActionAccept,
			Bidder:        bid.Bidder,
			ListingItemID: item.ID,
			ParentBidID:   &bid.ID,
		})
		if err != nil {
			return err
		}
		order, created, err = s.orders.WithTx(tx).deriveFromBid(ctx, accept.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.orders.announce(order)
	}
	return &BidOutcome{Result: res, Bid: accept, Order: order}, nil
}

// Reject answers a received bid on one of our listings.
func (s *BidActionService) Reject(ctx context.Context, bidID uuid.UUID) (*BidOutcome, error) {
	bid, item, market, profile, err := s.loadAnswerable(ctx, bidID, "reject")
	if err != nil {
		return nil, err
	}

	res, err := s.sendAction(ctx, models.BidActionReject, item, nil, profile.Address, bid.Bidder, market.Address)
	if err != nil {
		return nil, err
	}
	if !res.Sent() {
		return &BidOutcome{Result: res}, nil
	}

	reject, err := s.bids.Create(ctx, &models.Bid{
		Action:        models.BidActionReject,
		Bidder:        bid.Bidder,
		ListingItemID: item.ID,
		ParentBidID:   &bid.ID,
	})
	if err != nil {
		return nil, err
	}
	return &BidOutcome{Result: res, Bid: reject}, nil
}

// Cancel withdraws one of our own bids.
func (s *BidActionService) Cancel(ctx context.Context, bidID uuid.UUID) (*BidOutcome, error) {
	bid, err := s.bids.FindOne(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Action != models.BidActionBid {
		return nil, apperr.ProtocolViolation("cannot cancel bid %s with action %s", bidID, bid.Action)
	}
	profile, err := s.profiles.FindDefault(ctx)
	if err != nil {
		return nil, err
	}
	if bid.Bidder != profile.Address {
		return nil, apperr.ProtocolViolation("bid %s was not placed by this node", bidID)
	}
	if bid.ListingItem == nil {
		return nil, apperr.NotFound("listing item", bid.ListingItemID)
	}
	if err := s.ensureOpen(ctx, bid); err != nil {
		return nil, err
	}
	market, err := s.markets.FindOne(ctx, bid.ListingItem.MarketID)
	if err != nil {
		return nil, err
	}

	res, err := s.sendAction(ctx, models.BidActionCancel, bid.ListingItem, nil, profile.Address, bid.ListingItem.Seller, market.Address)
	if err != nil {
		return nil, err
	}
	if !res.Sent() {
		return &BidOutcome{Result: res}, nil
	}

	cancel, err := s.bids.Create(ctx, &models.Bid{
		Action:        models.BidActionCancel,
		Bidder:        bid.Bidder,
		ListingItemID: bid.ListingItemID,
		ParentBidID:   &bid.ID,
	})
	if err != nil {
		return nil, err
	}
	return &BidOutcome{Result: res, Bid: cancel}, nil
}

func (s *BidActionService) ProcessBidReceived(ctx context.Context, e events.Event) error {
	return s.processReceived(ctx, e, models.BidActionBid)
}

// ProcessAcceptBidReceived stores the seller's accept and derives the order.
func (s *BidActionService) ProcessAcceptBidReceived(ctx context.Context, e events.Event) error {
	return s.processReceived(ctx, e, models.BidActionAccept)
}

func (s *BidActionService) ProcessRejectBidReceived(ctx context.Context, e events.Event) error {
	return s.processReceived(ctx, e, models.BidActionReject)
}

func (s *BidActionService) ProcessCancelBidReceived(ctx context.Context, e events.Event) error {
	return s.processReceived(ctx, e, models.BidActionCancel)
}

// processReceived is the shared inbound path. The bidder is the sender of
// bids and cancels and the recipient of accepts and rejects. Everything but
// a bid answers the latest open bid by the same bidder.
//
// The bid, the order an accept derives and the audit row commit together.
// The audit row is written last; losing the msgid race rolls back the rest.
func (s *BidActionService) processReceived(ctx context.Context, e events.Event, expected models.BidAction) error {
	if e.Envelope == nil || e.Envelope.MPAction == nil {
		return apperr.Malformed("bid event without action")
	}
	action := e.Envelope.MPAction
	if models.BidAction(action.Action) != expected {
		return apperr.ProtocolViolation("expected %s, got %s", expected, action.Action)
	}
	if e.Meta.MsgID == "" {
		return apperr.Malformed("%s without msgid", expected)
	}

	item, err := s.items.FindOneByHash(ctx, action.Item, false)
	if err != nil {
		return err
	}
	if err := checkParties(expected, item, e.Meta); err != nil {
		return err
	}

	bidder := e.Meta.From
	if expected == models.BidActionAccept || expected == models.BidActionReject {
		bidder = e.Meta.To
	}

	bid, err := translator.BidFromMessage(action, bidder, item.ID)
	if err != nil {
		return err
	}

	var (
		order   *models.Order
		created bool
	)
	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		bids := s.bids.WithTx(tx)
		audit := s.actionMessages.WithTx(tx)

		seen, err := audit.Seen(ctx, e.Meta.MsgID)
		if err != nil {
			return err
		}
		if seen {
			return errAlreadyProcessed
		}

		repeated := false
		if expected != models.BidActionBid {
			parent, err := bids.FindLatest(ctx, item.ID, bidder, models.BidActionBid)
			if err != nil {
				return fmt.Errorf("%s without a matching bid: %w", expected, err)
			}
			answer, err := bids.FindAnswer(ctx, parent.ID)
			if err != nil {
				return err
			}
			switch {
			case answer == nil:
				bid.ParentBidID = &parent.ID
			case answer.Action == expected:
				// Another copy of the answer already stored.
				repeated = true
			default:
				return apperr.ProtocolViolation("bid %s was already answered with %s", parent.ID, answer.Action)
			}
		}

		if !repeated {
			stored, err := bids.Create(ctx, bid)
			if err != nil {
				return err
			}
			if expected == models.BidActionAccept {
				order, created, err = s.orders.WithTx(tx).deriveFromBid(ctx, stored.ID)
				if err != nil {
					return err
				}
			}
		}

		recorded, err := audit.Record(ctx, action.Action, action.Objects, e.Envelope.Version, e.Meta, item.ID)
		if err != nil {
			return err
		}
		if !recorded {
			return errAlreadyProcessed
		}
		return nil
	})
	if errors.Is(err, errAlreadyProcessed) {
		s.log.WithField("msgid", e.Meta.MsgID).Debug("Message already processed")
		return nil
	}
	if err != nil {
		return err
	}

	if created {
		s.orders.announce(order)
	}
	s.log.WithFields(logrus.Fields{
		"action": expected,
		"bidder": bidder,
		"item":   item.Hash,
		"msgid":  e.Meta.MsgID,
	}).Info("Bid action received")
	return nil
}

// checkParties ties the transport addresses to the listing: the seller
// sends accepts and rejects and receives bids and cancels.
func checkParties(action models.BidAction, item *models.ListingItem, meta message.Metadata) error {
	switch action {
	case models.BidActionAccept, models.BidActionReject:
		if meta.From != item.Seller {
			return apperr.ProtocolViolation("%s for %s sent by %s, not the seller", action, item.Hash, meta.From)
		}
	default:
		if meta.To != item.Seller {
			return apperr.ProtocolViolation("%s for %s addressed to %s, not the seller", action, item.Hash, meta.To)
		}
	}
	return nil
}

// ensureOpen fails with a conflict once bid has an accept, reject or cancel.
func (s *BidActionService) ensureOpen(ctx context.Context, bid *models.Bid) error {
	answer, err := s.bids.FindAnswer(ctx, bid.ID)
	if err != nil {
		return err
	}
	if answer != nil {
		return apperr.New(apperr.KindConflict, "bid %s was already answered with %s", bid.ID, answer.Action)
	}
	return nil
}

// loadAnswerable loads a bid this node may accept or reject: an open plain
// bid on a listing sold by the default profile.
func (s *BidActionService) loadAnswerable(ctx context.Context, bidID uuid.UUID, verb string) (*models.Bid, *models.ListingItem, *models.Market, *models.Profile, error) {
	bid, err := s.bids.FindOne(ctx, bidID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if bid.Action != models.BidActionBid {
		return nil, nil, nil, nil, apperr.ProtocolViolation("cannot %s bid %s with action %s", verb, bidID, bid.Action)
	}
	profile, err := s.profiles.FindDefault(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	item := bid.ListingItem
	if item == nil {
		return nil, nil, nil, nil, apperr.NotFound("listing item", bid.ListingItemID)
	}
	if item.Seller != profile.Address {
		return nil, nil, nil, nil, apperr.ProtocolViolation("listing %s is not sold by this node", item.Hash)
	}
	if err := s.ensureOpen(ctx, bid); err != nil {
		return nil, nil, nil, nil, err
	}
	market, err := s.markets.FindOne(ctx, item.MarketID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return bid, item, market, profile, nil
}

func (s *BidActionService) sendAction(ctx context.Context, action models.BidAction, item *models.ListingItem, datas []models.BidData, from, to, marketAddress string) (*daemon.SendResult, error) {
	res, err := send(ctx, s.sender, s.version, from, to, &message.MarketplaceMessage{
		MPAction: translator.BidToMessage(action, item.Hash, datas),
		Market:   marketAddress,
	})
	if err != nil {
		return nil, err
	}
	if !res.Sent() {
		s.log.WithFields(logrus.Fields{
			"action": action,
			"item":   item.Hash,
			"result": res.Result,
		}).Warn("Bid action was not sent")
	}
	return res, nil
}
