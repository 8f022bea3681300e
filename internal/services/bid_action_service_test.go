package services

import (
	"sync"

	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/events"
	"github.com/javajoker/mpnode/internal/message"
	"github.com/javajoker/mpnode/internal/models"
)

func (s *ServiceSuite) TestSendBidGoesToSellerWithEscrowAddress() {
	item := s.receiveListing("Guitar", "pRemoteSeller", "MAD")

	out, err := s.bidActions.Send(s.ctx, item.ID, &SendBidRequest{
		Data: []BidDataInput{{ID: "ship.name", Value: "Alice"}},
	})
	s.Require().NoError(err)
	s.True(out.Result.Sent())
	s.Require().NotNil(out.Bid)

	sent := s.sender.last()
	s.Equal(s.profile.Address, sent.From)
	s.Equal("pRemoteSeller", sent.To)
	s.Equal(testMarketAddress, sent.Envelope.Market)
	s.Require().NotNil(sent.Envelope.MPAction)
	s.Equal(message.ActionBid, sent.Envelope.MPAction.Action)
	s.Equal(item.Hash, sent.Envelope.MPAction.Item)
	s.Require().Len(sent.Envelope.MPAction.Objects, 2)
	s.Equal(EscrowAddressDataID, sent.Envelope.MPAction.Objects[1].ID)
	s.Equal("pAddr2", sent.Envelope.MPAction.Objects[1].Value)

	s.Equal(models.BidActionBid, out.Bid.Action)
	s.Equal(s.profile.Address, out.Bid.Bidder)
	s.Require().Len(out.Bid.BidDatas, 2)
	s.Equal("ship.name", out.Bid.BidDatas[0].DataID)
}

func (s *ServiceSuite) TestSendBidWithoutEscrowCarriesOnlyRequestData() {
	item := s.receiveListing("Book", "pRemoteSeller", "NOP")

	out, err := s.bidActions.Send(s.ctx, item.ID, &SendBidRequest{})
	s.Require().NoError(err)
	s.Empty(s.sender.last().Envelope.MPAction.Objects)
	s.Empty(out.Bid.BidDatas)
}

func (s *ServiceSuite) TestUnsentBidIsNotStored() {
	item := s.receiveListing("Drum", "pRemoteSeller", "NOP")
	s.sender.result = "Send failed."

	out, err := s.bidActions.Send(s.ctx, item.ID, &SendBidRequest{})
	s.Require().NoError(err)
	s.False(out.Result.Sent())
	s.Nil(out.Bid)
	s.Equal(int64(0), s.count(&models.Bid{}))
}

func (s *ServiceSuite) TestBuyerSideAcceptCreatesOrder() {
	item := s.receiveListing("Piano", "pRemoteSeller", "MAD")
	_, err := s.bidActions.Send(s.ctx, item.ID, &SendBidRequest{})
	s.Require().NoError(err)

	accept := actionEvent(events.BidAccepted, message.ActionAcceptBid, item.Hash, "acc-1", "pRemoteSeller", s.profile.Address)
	s.Require().NoError(s.bidActions.ProcessAcceptBidReceived(s.ctx, accept))

	orders, total, err := s.orders.Search(s.ctx, OrderSearchParams{Buyer: s.profile.Address})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(orders, 1)
	order := orders[0]
	s.Equal("pRemoteSeller", order.Seller)
	s.Require().Len(order.OrderItems, 1)
	s.Equal(models.OrderStatusAwaitingEscrow, order.OrderItems[0].Status)
	s.Equal(item.Hash, order.OrderItems[0].ItemHash)

	s.Contains(s.emitter.kinds(), events.OrderCreated)
}

func (s *ServiceSuite) TestSellerSideAcceptAnswersBidder() {
	item := s.receiveListing("Violin", s.profile.Address, "MAD")

	bid := actionEvent(events.BidReceived, message.ActionBid, item.Hash, "bid-1", "pBuyer", s.profile.Address,
		message.ObjectPair{ID: EscrowAddressDataID, Value: "pBuyerEscrow"})
	s.Require().NoError(s.bidActions.ProcessBidReceived(s.ctx, bid))

	received, err := s.bids.FindLatest(s.ctx, item.ID, "pBuyer", models.BidActionBid)
	s.Require().NoError(err)
	s.Require().Len(received.BidDatas, 1)
	s.Equal("pBuyerEscrow", received.BidDatas[0].DataValue)

	out, err := s.bidActions.Accept(s.ctx, received.ID)
	s.Require().NoError(err)
	s.Require().NotNil(out.Order)
	s.Equal("pBuyer", out.Order.Buyer)
	s.Equal(s.profile.Address, out.Order.Seller)
	s.Equal(models.BidActionAccept, out.Bid.Action)

	sent := s.sender.last()
	s.Equal(s.profile.Address, sent.From)
	s.Equal("pBuyer", sent.To)
	s.Equal(message.ActionAcceptBid, sent.Envelope.MPAction.Action)

	// Deriving the order again returns the stored one.
	again, err := s.orders.CreateFromBid(s.ctx, out.Bid.ID)
	s.Require().NoError(err)
	s.Equal(out.Order.ID, again.ID)
}

func (s *ServiceSuite) TestAcceptOnForeignListingIsRejected() {
	item := s.receiveListing("Flute", "pRemoteSeller", "NOP")
	bid := actionEvent(events.BidReceived, message.ActionBid, item.Hash, "bid-1", "pBuyer", "pRemoteSeller")
	s.Require().NoError(s.bidActions.ProcessBidReceived(s.ctx, bid))

	received, err := s.bids.FindLatest(s.ctx, item.ID, "pBuyer", models.BidActionBid)
	s.Require().NoError(err)

	_, err = s.bidActions.Accept(s.ctx, received.ID)
	s.True(apperr.Is(err, apperr.KindProtocolViolation))
	s.Equal(0, s.sender.count())
}

func (s *ServiceSuite) TestAcceptWithoutBidIsNotFound() {
	item := s.receiveListing("Harp", "pRemoteSeller", "NOP")

	accept := actionEvent(events.BidAccepted, message.ActionAcceptBid, item.Hash, "acc-1", "pRemoteSeller", "pStranger")
	err := s.bidActions.ProcessAcceptBidReceived(s.ctx, accept)
	s.True(apperr.Is(err, apperr.KindNotFound))
	s.Equal(int64(0), s.count(&models.Order{}))
	s.Equal(int64(0), s.count(&models.Bid{}))
}

func (s *ServiceSuite) TestBidForUnknownListingIsNotFound() {
	bid := actionEvent(events.BidReceived, message.ActionBid, "deadbeef", "bid-1", "pBuyer", s.profile.Address)
	err := s.bidActions.ProcessBidReceived(s.ctx, bid)
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *ServiceSuite) TestMismatchedActionIsProtocolViolation() {
	item := s.receiveListing("Oboe", "pRemoteSeller", "NOP")
	e := actionEvent(events.BidReceived, message.ActionRejectBid, item.Hash, "x-1", "pBuyer", s.profile.Address)

	err := s.bidActions.ProcessBidReceived(s.ctx, e)
	s.True(apperr.Is(err, apperr.KindProtocolViolation))
}

func (s *ServiceSuite) TestRepeatedBidMessageIsSkipped() {
	item := s.receiveListing("Cello", s.profile.Address, "NOP")
	bid := actionEvent(events.BidReceived, message.ActionBid, item.Hash, "bid-1", "pBuyer", s.profile.Address)

	s.Require().NoError(s.bidActions.ProcessBidReceived(s.ctx, bid))
	s.Require().NoError(s.bidActions.ProcessBidReceived(s.ctx, bid))

	_, total, err := s.bids.Search(s.ctx, BidSearchParams{ListingItemID: &item.ID})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
}

func (s *ServiceSuite) TestRejectAndCancelFlow() {
	item := s.receiveListing("Trumpet", s.profile.Address, "NOP")
	bid := actionEvent(events.BidReceived, message.ActionBid, item.Hash, "bid-1", "pBuyer", s.profile.Address)
	s.Require().NoError(s.bidActions.ProcessBidReceived(s.ctx, bid))
	received, err := s.bids.FindLatest(s.ctx, item.ID, "pBuyer", models.BidActionBid)
	s.Require().NoError(err)

	out, err := s.bidActions.Reject(s.ctx, received.ID)
	s.Require().NoError(err)
	s.Equal(models.BidActionReject, out.Bid.Action)
	s.Equal("pBuyer", s.sender.last().To)

	// Only our own bids can be cancelled.
	_, err = s.bidActions.Cancel(s.ctx, received.ID)
	s.True(apperr.Is(err, apperr.KindProtocolViolation))

	foreign := s.receiveListing("Tuba", "pRemoteSeller", "NOP")
	mine, err := s.bidActions.Send(s.ctx, foreign.ID, &SendBidRequest{})
	s.Require().NoError(err)

	cancelled, err := s.bidActions.Cancel(s.ctx, mine.Bid.ID)
	s.Require().NoError(err)
	s.Equal(models.BidActionCancel, cancelled.Bid.Action)
	s.Equal("pRemoteSeller", s.sender.last().To)
	s.Equal(message.ActionCancelBid, s.sender.last().Envelope.MPAction.Action)

	// The rejected bid is closed; the buyer bids again and withdraws that one.
	again := actionEvent(events.BidReceived, message.ActionBid, item.Hash, "bid-2", "pBuyer", s.profile.Address)
	s.Require().NoError(s.bidActions.ProcessBidReceived(s.ctx, again))
	second, err := s.bids.FindLatest(s.ctx, item.ID, "pBuyer", models.BidActionBid)
	s.Require().NoError(err)
	s.NotEqual(received.ID, second.ID)

	cancel := actionEvent(events.BidCancelled, message.ActionCancelBid, item.Hash, "cnl-1", "pBuyer", s.profile.Address)
	s.Require().NoError(s.bidActions.ProcessCancelBidReceived(s.ctx, cancel))
	withdrawn, err := s.bids.FindLatest(s.ctx, item.ID, "pBuyer", models.BidActionCancel)
	s.Require().NoError(err)
	s.Require().NotNil(withdrawn.ParentBidID)
	s.Equal(second.ID, *withdrawn.ParentBidID)
}

func (s *ServiceSuite) TestOrderFromNonAcceptBidIsRejected() {
	item := s.receiveListing("Banjo", s.profile.Address, "NOP")
	bid := actionEvent(events.BidReceived, message.ActionBid, item.Hash, "bid-1", "pBuyer", s.profile.Address)
	s.Require().NoError(s.bidActions.ProcessBidReceived(s.ctx, bid))
	received, err := s.bids.FindLatest(s.ctx, item.ID, "pBuyer", models.BidActionBid)
	s.Require().NoError(err)

	_, err = s.orders.CreateFromBid(s.ctx, received.ID)
	s.True(apperr.Is(err, apperr.KindProtocolViolation))
	s.Equal(int64(0), s.count(&models.Order{}))
}

func (s *ServiceSuite) receiveBid(item *models.ListingItem, msgid, bidder string) *models.Bid {
	e := actionEvent(events.BidReceived, message.ActionBid, item.Hash, msgid, bidder, item.Seller)
	s.Require().NoError(s.bidActions.ProcessBidReceived(s.ctx, e))
	bid, err := s.bids.FindLatest(s.ctx, item.ID, bidder, models.BidActionBid)
	s.Require().NoError(err)
	return bid
}

func (s *ServiceSuite) TestAcceptingAnsweredBidIsConflict() {
	item := s.receiveListing("Sitar", s.profile.Address, "NOP")
	bid := s.receiveBid(item, "bid-1", "pBuyer")

	first, err := s.bidActions.Accept(s.ctx, bid.ID)
	s.Require().NoError(err)
	s.Require().NotNil(first.Order)
	s.Require().NotNil(first.Bid.ParentBidID)
	s.Equal(bid.ID, *first.Bid.ParentBidID)
	sent := s.sender.count()

	_, err = s.bidActions.Accept(s.ctx, bid.ID)
	s.True(apperr.Is(err, apperr.KindConflict))
	_, err = s.bidActions.Reject(s.ctx, bid.ID)
	s.True(apperr.Is(err, apperr.KindConflict))

	s.Equal(sent, s.sender.count())
	s.Equal(int64(1), s.count(&models.Order{}))
	s.Equal(int64(2), s.count(&models.Bid{}))
}

func (s *ServiceSuite) TestCancellingAnsweredBidIsConflict() {
	item := s.receiveListing("Lute", "pRemoteSeller", "NOP")
	mine, err := s.bidActions.Send(s.ctx, item.ID, &SendBidRequest{})
	s.Require().NoError(err)

	reject := actionEvent(events.BidRejected, message.ActionRejectBid, item.Hash, "rej-1", "pRemoteSeller", s.profile.Address)
	s.Require().NoError(s.bidActions.ProcessRejectBidReceived(s.ctx, reject))

	_, err = s.bidActions.Cancel(s.ctx, mine.Bid.ID)
	s.True(apperr.Is(err, apperr.KindConflict))
	s.Equal(1, s.sender.count())
}

func (s *ServiceSuite) TestRepeatedAcceptMessagesCreateOneOrder() {
	item := s.receiveListing("Zither", "pRemoteSeller", "NOP")
	_, err := s.bidActions.Send(s.ctx, item.ID, &SendBidRequest{})
	s.Require().NoError(err)

	for _, msgid := range []string{"acc-1", "acc-2"} {
		accept := actionEvent(events.BidAccepted, message.ActionAcceptBid, item.Hash, msgid, "pRemoteSeller", s.profile.Address)
		s.Require().NoError(s.bidActions.ProcessAcceptBidReceived(s.ctx, accept))
	}

	s.Equal(int64(1), s.count(&models.Order{}))
	s.Equal(int64(1), s.count(&models.OrderItem{}))
	accepts := models.BidActionAccept
	_, total, err := s.bids.Search(s.ctx, BidSearchParams{ListingItemID: &item.ID, Action: &accepts})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	// The listing plus both accepts.
	s.Equal(int64(3), s.count(&models.ActionMessage{}))

	created := 0
	for _, kind := range s.emitter.kinds() {
		if kind == events.OrderCreated {
			created++
		}
	}
	s.Equal(1, created)
}

func (s *ServiceSuite) TestRejectAfterAcceptIsProtocolViolation() {
	item := s.receiveListing("Kazoo", "pRemoteSeller", "NOP")
	_, err := s.bidActions.Send(s.ctx, item.ID, &SendBidRequest{})
	s.Require().NoError(err)

	accept := actionEvent(events.BidAccepted, message.ActionAcceptBid, item.Hash, "acc-1", "pRemoteSeller", s.profile.Address)
	s.Require().NoError(s.bidActions.ProcessAcceptBidReceived(s.ctx, accept))
	audited := s.count(&models.ActionMessage{})

	reject := actionEvent(events.BidRejected, message.ActionRejectBid, item.Hash, "rej-1", "pRemoteSeller", s.profile.Address)
	err = s.bidActions.ProcessRejectBidReceived(s.ctx, reject)
	s.True(apperr.Is(err, apperr.KindProtocolViolation))
	s.Equal(audited, s.count(&models.ActionMessage{}))
	s.Equal(int64(1), s.count(&models.Order{}))
}

func (s *ServiceSuite) TestAnswersFromOtherThanSellerAreProtocolViolations() {
	item := s.receiveListing("Ocarina", "pRemoteSeller", "NOP")
	_, err := s.bidActions.Send(s.ctx, item.ID, &SendBidRequest{})
	s.Require().NoError(err)
	bids := s.count(&models.Bid{})

	accept := actionEvent(events.BidAccepted, message.ActionAcceptBid, item.Hash, "acc-1", "pMallory", s.profile.Address)
	err = s.bidActions.ProcessAcceptBidReceived(s.ctx, accept)
	s.True(apperr.Is(err, apperr.KindProtocolViolation))

	reject := actionEvent(events.BidRejected, message.ActionRejectBid, item.Hash, "rej-1", "pMallory", s.profile.Address)
	err = s.bidActions.ProcessRejectBidReceived(s.ctx, reject)
	s.True(apperr.Is(err, apperr.KindProtocolViolation))

	s.Equal(int64(0), s.count(&models.Order{}))
	s.Equal(bids, s.count(&models.Bid{}))
}

func (s *ServiceSuite) TestBidsNotAddressedToSellerAreProtocolViolations() {
	item := s.receiveListing("Bagpipe", s.profile.Address, "NOP")

	bid := actionEvent(events.BidReceived, message.ActionBid, item.Hash, "bid-1", "pBuyer", "pElsewhere")
	s.True(apperr.Is(s.bidActions.ProcessBidReceived(s.ctx, bid), apperr.KindProtocolViolation))

	s.receiveBid(item, "bid-2", "pBuyer")
	cancel := actionEvent(events.BidCancelled, message.ActionCancelBid, item.Hash, "cnl-1", "pBuyer", "pElsewhere")
	s.True(apperr.Is(s.bidActions.ProcessCancelBidReceived(s.ctx, cancel), apperr.KindProtocolViolation))

	s.Equal(int64(1), s.count(&models.Bid{}))
}

func (s *ServiceSuite) TestBidActionWithoutMsgIDIsMalformed() {
	item := s.receiveListing("Fiddle", s.profile.Address, "NOP")
	bid := actionEvent(events.BidReceived, message.ActionBid, item.Hash, "", "pBuyer", s.profile.Address)

	err := s.bidActions.ProcessBidReceived(s.ctx, bid)
	s.True(apperr.Is(err, apperr.KindMalformed))
	s.Equal(int64(0), s.count(&models.Bid{}))
}

func (s *ServiceSuite) TestLostMsgIDRaceRollsBackBidAndOrder() {
	item := s.receiveListing("Marimba", "pRemoteSeller", "NOP")
	_, err := s.bidActions.Send(s.ctx, item.ID, &SendBidRequest{})
	s.Require().NoError(err)
	bids := s.count(&models.Bid{})

	// Another handler records acc-1 between the Seen check and the audit write.
	var once sync.Once
	s.Require().NoError(s.db.Callback().Create().Before("gorm:create").Register("test:record_concurrently", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*models.Order); !ok {
			return
		}
		once.Do(func() {
			row := &models.ActionMessage{Action: string(message.ActionAcceptBid), MsgID: "acc-1", ListingItemID: item.ID}
			s.Require().NoError(tx.Session(&gorm.Session{NewDB: true}).Create(row).Error)
		})
	}))
	defer func() {
		s.Require().NoError(s.db.Callback().Create().Remove("test:record_concurrently"))
	}()

	accept := actionEvent(events.BidAccepted, message.ActionAcceptBid, item.Hash, "acc-1", "pRemoteSeller", s.profile.Address)
	s.Require().NoError(s.bidActions.ProcessAcceptBidReceived(s.ctx, accept))

	s.Equal(bids, s.count(&models.Bid{}))
	s.Equal(int64(0), s.count(&models.Order{}))
	s.NotContains(s.emitter.kinds(), events.OrderCreated)
}
