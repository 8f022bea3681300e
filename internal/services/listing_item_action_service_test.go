package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/events"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/translator"
)

func (s *ServiceSuite) TestReceivedListingIsStoredOncePerHash() {
	msg := listingMessage("Camera", "MAD")

	s.Require().NoError(s.listings.ProcessListingItemReceived(s.ctx, listingEvent(msg, "m1", "pRemoteSeller")))
	s.Require().NoError(s.listings.ProcessListingItemReceived(s.ctx, listingEvent(msg, "m2", "pRemoteSeller")))

	s.Equal(int64(1), s.count(&models.ListingItem{}))
	s.Equal(int64(2), s.count(&models.ActionMessage{}))

	item, err := s.items.FindOneByHash(s.ctx, msg.Hash, true)
	s.Require().NoError(err)
	s.Equal("pRemoteSeller", item.Seller)
	s.Equal(s.market.ID, item.MarketID)
	s.Require().NotNil(item.ItemInformation)
	s.Equal("Camera", item.ItemInformation.Title)
	s.Len(item.ItemInformation.ShippingDestinations, 2)

	audit, err := s.actionMessages.FindByListingItem(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Len(audit, 2)

	s.Equal([]events.Kind{events.ListingItemStored}, s.emitter.kinds())
}

func (s *ServiceSuite) TestRepeatedMessageIDIsSkipped() {
	msg := listingMessage("Lamp", "MAD")

	s.Require().NoError(s.listings.ProcessListingItemReceived(s.ctx, listingEvent(msg, "same", "pRemoteSeller")))
	s.Require().NoError(s.listings.ProcessListingItemReceived(s.ctx, listingEvent(msg, "same", "pRemoteSeller")))

	s.Equal(int64(1), s.count(&models.ListingItem{}))
	s.Equal(int64(1), s.count(&models.ActionMessage{}))
}

func (s *ServiceSuite) TestListingWithoutMsgIDIsMalformed() {
	err := s.listings.ProcessListingItemReceived(s.ctx, listingEvent(listingMessage("Rug", "MAD"), "", "pRemoteSeller"))
	s.True(apperr.Is(err, apperr.KindMalformed))
	s.Equal(int64(0), s.count(&models.ListingItem{}))
	s.Equal(int64(0), s.count(&models.ActionMessage{}))
	s.Empty(s.emitter.kinds())
}

func (s *ServiceSuite) TestListingForUnknownMarketIsDropped() {
	e := listingEvent(listingMessage("Chair", "MAD"), "m1", "pRemoteSeller")
	e.Envelope.Market = "pNoSuchMarket"

	err := s.listings.ProcessListingItemReceived(s.ctx, e)
	s.True(apperr.Is(err, apperr.KindNotFound))
	s.Equal(int64(0), s.count(&models.ListingItem{}))
	s.Equal(int64(0), s.count(&models.ActionMessage{}))
}

func (s *ServiceSuite) TestListingWithTamperedHashIsMalformed() {
	msg := listingMessage("Table", "MAD")
	msg.Information.Title = "Other table"

	err := s.listings.ProcessListingItemReceived(s.ctx, listingEvent(msg, "m1", "pRemoteSeller"))
	s.True(apperr.Is(err, apperr.KindMalformed))
	s.Equal(int64(0), s.count(&models.ListingItem{}))
}

func (s *ServiceSuite) TestListingWithForeignRootIsMalformed() {
	msg := listingMessage("Desk", "MAD")
	msg.Information.Category = []string{"cat_OTHER", "Desks"}

	err := s.listings.ProcessListingItemReceived(s.ctx, listingEvent(msg, "m1", "pRemoteSeller"))
	s.True(apperr.Is(err, apperr.KindMalformed))
}

func (s *ServiceSuite) createTemplate(title string) *models.ListingItemTemplate {
	template, err := s.templates.Create(s.ctx, &CreateTemplateRequest{
		Title:                title,
		ShortDescription:     "short " + title,
		LongDescription:      "long " + title,
		Category:             []string{RootCategoryKey, "cat_electronics", "Gadgets"},
		MarketID:             s.market.ID,
		ShippingDestinations: []string{"FI", "*SE"},
		Payment: TemplatePaymentRequest{
			Type:       models.PaymentTypeSale,
			EscrowType: models.EscrowTypeMAD,
			Currency:   "PART",
			BasePrice:  25,
			Address:    "pPayTo",
		},
		Messaging: []TemplateMessagingInput{{Protocol: "SMSG", PublicKey: "my-pubkey"}},
		Objects: []TemplateObjectInput{{
			Type: models.ObjectTypeTable,
			Data: map[string]string{"weight": "1kg", "color": "black"},
		}},
	})
	s.Require().NoError(err)
	return template
}

func (s *ServiceSuite) TestPostedTemplateIsRelinkedWhenListingArrives() {
	template := s.createTemplate("Speaker")

	res, err := s.listings.Post(s.ctx, template.ID, s.market.ID)
	s.Require().NoError(err)
	s.True(res.Sent())

	out := s.sender.last()
	s.Equal(s.profile.Address, out.From)
	s.Equal(testMarketAddress, out.To)
	s.Equal(testMarketAddress, out.Envelope.Market)
	s.Equal(testVersion, out.Envelope.Version)
	s.Require().NotNil(out.Envelope.Item)
	s.Equal([]string{RootCategoryKey, "cat_electronics", "Gadgets"}, out.Envelope.Item.Information.Category)

	posted, err := s.templates.FindOne(s.ctx, template.ID)
	s.Require().NoError(err)
	s.Equal(out.Envelope.Item.Hash, posted.Hash)

	// The market echoes the listing back to every node, including ours.
	e := listingEvent(out.Envelope.Item, "echo", s.profile.Address)
	s.Require().NoError(s.listings.ProcessListingItemReceived(s.ctx, e))

	item, err := s.items.FindOneByHash(s.ctx, posted.Hash, false)
	s.Require().NoError(err)
	s.Require().NotNil(item.ListingItemTemplateID)
	s.Equal(template.ID, *item.ListingItemTemplateID)
	s.Equal(s.profile.Address, item.Seller)
}

func (s *ServiceSuite) TestPostToUnknownMarketIsProtocolViolation() {
	template := s.createTemplate("Phone")

	_, err := s.listings.Post(s.ctx, template.ID, uuid.New())
	s.True(apperr.Is(err, apperr.KindProtocolViolation))
	s.Equal(0, s.sender.count())
}

func (s *ServiceSuite) TestUnsentPostLeavesTemplateUntouched() {
	template := s.createTemplate("Tablet")
	s.sender.result = "Send failed."

	res, err := s.listings.Post(s.ctx, template.ID, s.market.ID)
	s.Require().NoError(err)
	s.False(res.Sent())
	s.Equal("Send failed.", res.Result)

	again, err := s.templates.FindOne(s.ctx, template.ID)
	s.Require().NoError(err)
	s.Equal(template.Hash, again.Hash)
}

func (s *ServiceSuite) TestTemplateDraftsGetDistinctHashes() {
	first := s.createTemplate("Clock")
	second := s.createTemplate("Clock")

	s.NotEqual(first.Hash, second.Hash)
	s.Require().Len(first.ListingItemObjects, 1)
	datas := first.ListingItemObjects[0].ListingItemObjectDatas
	s.Require().Len(datas, 2)
	s.Equal("color", datas[0].Key)
}

func (s *ServiceSuite) TestCreateIfAbsentUnderConcurrency() {
	tr := translator.NewListingItemTranslator(s.categories)
	msg := listingMessage("Bicycle", "MAD")

	const writers = 8
	copies := make([]*models.ListingItem, writers)
	for i := range copies {
		item, err := tr.ToModel(s.ctx, msg, s.market.ID, "pRemoteSeller", s.root)
		s.Require().NoError(err)
		copies[i] = item
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[uuid.UUID]bool{}
	)
	for _, item := range copies {
		wg.Add(1)
		go func(item *models.ListingItem) {
			defer wg.Done()
			stored, ok, err := s.items.CreateIfAbsent(s.ctx, item)
			s.NoError(err)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[stored.ID] = true
			if ok {
				created++
			}
		}(item)
	}
	wg.Wait()

	s.Equal(1, created)
	s.Len(ids, 1)
	s.Equal(int64(1), s.count(&models.ListingItem{}))
}

func (s *ServiceSuite) TestSearchListingsFiltersByPriceAndTitle() {
	s.receiveListing("Red kettle", "pRemoteSeller", "MAD")
	s.receiveListing("Blue kettle", "pRemoteSeller", "MAD")

	params := ListingItemSearchParams{}
	params.Page, params.Limit, params.Search = 1, 10, "red"
	items, total, err := s.items.Search(s.ctx, params)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(items, 1)
	s.Equal("Red kettle", items[0].ItemInformation.Title)

	max := 5.0
	params = ListingItemSearchParams{PriceMax: &max}
	params.Page, params.Limit = 1, 10
	_, total, err = s.items.Search(s.ctx, params)
	s.Require().NoError(err)
	s.Equal(int64(0), total)
}
