package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/config"
	"github.com/javajoker/mpnode/internal/daemon"
	"github.com/javajoker/mpnode/internal/database/dbtest"
	"github.com/javajoker/mpnode/internal/events"
	"github.com/javajoker/mpnode/internal/message"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/translator"
)

const (
	testMarketAddress = "pMarketAddress"
	testVersion       = "0.1.0.0"
)

type sentMessage struct {
	From, To string
	Envelope *message.MarketplaceMessage
}

// fakeSender records envelopes and answers with a fixed result.
type fakeSender struct {
	mu     sync.Mutex
	result string
	err    error
	sent   []sentMessage
}

func (f *fakeSender) Send(_ context.Context, from, to, payload string) (*daemon.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	env, err := message.Parse(payload)
	if err != nil {
		return nil, err
	}
	f.sent = append(f.sent, sentMessage{From: from, To: to, Envelope: env})
	return &daemon.SendResult{Result: f.result, MsgID: fmt.Sprintf("out-%d", len(f.sent))}, nil
}

func (f *fakeSender) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeWallet hands out sequential addresses.
type fakeWallet struct {
	mu     sync.Mutex
	next   int
	labels []string
}

func (w *fakeWallet) NewAddress(_ context.Context, opts daemon.AddressOptions) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	w.labels = append(w.labels, opts.Label)
	return fmt.Sprintf("pAddr%d", w.next), nil
}

func (w *fakeWallet) AddMultisigAddress(_ context.Context, required int, keys []string, label string) (*daemon.MultisigAddress, error) {
	return &daemon.MultisigAddress{Address: fmt.Sprintf("pMultisig-%d-%d", required, len(keys))}, nil
}

func (w *fakeWallet) CreateRawTransaction(context.Context, []daemon.Outpoint, map[string]float64) (string, error) {
	return "rawhex", nil
}

func (w *fakeWallet) SignRawTransactionWithWallet(_ context.Context, hex string) (*daemon.SignedTransaction, error) {
	return &daemon.SignedTransaction{Hex: hex + "-signed", Complete: false}, nil
}

func (w *fakeWallet) SendRawTransaction(context.Context, string) (string, error) {
	return "txid", nil
}

func (w *fakeWallet) DecodeRawTransaction(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{"txid":"txid"}`), nil
}

func (w *fakeWallet) ListUnspent(context.Context, int, int, []string) ([]daemon.Unspent, error) {
	return nil, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *recordingEmitter) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []events.Kind
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// ServiceSuite wires every service over a fresh sqlite database per test.
type ServiceSuite struct {
	suite.Suite
	ctx context.Context
	db  *gorm.DB

	sender  *fakeSender
	wallet  *fakeWallet
	emitter *recordingEmitter

	markets        *MarketService
	profiles       *ProfileService
	categories     *ItemCategoryService
	templates      *ListingItemTemplateService
	items          *ListingItemService
	bids           *BidService
	orders         *OrderService
	actionMessages *ActionMessageService
	escrow         *EscrowService
	listings       *ListingItemActionService
	bidActions     *BidActionService

	market  *models.Market
	root    *models.ItemCategory
	profile *models.Profile
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = dbtest.New(s.T())

	s.sender = &fakeSender{result: "Sent."}
	s.wallet = &fakeWallet{}
	s.emitter = &recordingEmitter{}

	s.markets = NewMarketService(s.db)
	s.profiles = NewProfileService(s.db, s.wallet)
	s.categories = NewItemCategoryService(s.db)
	s.templates = NewListingItemTemplateService(s.db, s.categories, s.profiles)
	s.items = NewListingItemService(s.db)
	s.bids = NewBidService(s.db)
	s.orders = NewOrderService(s.db, s.bids, s.emitter)
	s.actionMessages = NewActionMessageService(s.db)
	s.escrow = NewEscrowService(s.wallet)
	s.listings = NewListingItemActionService(s.templates, s.items, s.markets, s.categories, s.actionMessages, s.sender, s.emitter, testVersion)
	s.bidActions = NewBidActionService(s.db, s.bids, s.items, s.markets, s.profiles, s.orders, s.actionMessages, s.escrow, s.sender, testVersion)

	var err error
	s.market, err = s.markets.SeedDefaultMarket(s.ctx, config.MarketConfig{
		Name:       "DEFAULT",
		Address:    testMarketAddress,
		PrivateKey: "market-private-key",
	})
	s.Require().NoError(err)
	s.root, err = s.categories.SeedDefaultCategories(s.ctx, s.market)
	s.Require().NoError(err)
	s.profile, err = s.profiles.SeedDefaultProfile(s.ctx)
	s.Require().NoError(err)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func listingMessage(title string, escrow string) *message.ListingItemMessage {
	msg := &message.ListingItemMessage{
		Information: message.InformationMessage{
			Title:                title,
			ShortDescription:     "short " + title,
			LongDescription:      "long " + title,
			Category:             []string{RootCategoryKey, "cat_electronics", "Gadgets"},
			ShippingDestinations: []string{"FI", "-US"},
		},
		Payment: message.PaymentMessage{
			Type:   "SALE",
			Escrow: &message.EscrowMessage{Type: escrow, Ratio: message.RatioMessage{Buyer: 100, Seller: 100}},
			ItemPrice: &message.ItemPriceMessage{
				Currency:  "PART",
				BasePrice: 10,
				Address:   message.CryptoAddressMessage{Type: "NORMAL", Address: "pPayTo"},
			},
		},
		Messaging: []message.MessagingMessage{{Protocol: "SMSG", PublicKey: "seller-pubkey"}},
	}
	hash, err := translator.HashMessage(msg)
	if err != nil {
		panic(err)
	}
	msg.Hash = hash
	return msg
}

func listingEvent(msg *message.ListingItemMessage, msgid, from string) events.Event {
	now := time.Now().UTC()
	return events.Event{
		Kind: events.ListingItemReceived,
		Envelope: &message.MarketplaceMessage{
			Version: testVersion,
			Item:    msg,
			Market:  testMarketAddress,
		},
		Meta: message.Metadata{MsgID: msgid, From: from, To: testMarketAddress, Sent: now, Received: now},
	}
}

func actionEvent(kind events.Kind, action message.ActionType, itemHash, msgid, from, to string, objects ...message.ObjectPair) events.Event {
	now := time.Now().UTC()
	return events.Event{
		Kind: kind,
		Envelope: &message.MarketplaceMessage{
			Version:  testVersion,
			MPAction: &message.ActionMessage{Action: action, Item: itemHash, Objects: objects},
			Market:   testMarketAddress,
		},
		Meta: message.Metadata{MsgID: msgid, From: from, To: to, Sent: now, Received: now},
	}
}

// receiveListing stores a listing as if it arrived from seller.
func (s *ServiceSuite) receiveListing(title, seller, escrow string) *models.ListingItem {
	msg := listingMessage(title, escrow)
	require.NoError(s.T(), s.listings.ProcessListingItemReceived(s.ctx, listingEvent(msg, "in-"+uuid.NewString(), seller)))
	item, err := s.items.FindOneByHash(s.ctx, msg.Hash, true)
	require.NoError(s.T(), err)
	return item
}

func (s *ServiceSuite) count(model interface{}) int64 {
	var n int64
	require.NoError(s.T(), s.db.Model(model).Count(&n).Error)
	return n
}
