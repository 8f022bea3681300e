// internal/services/listing_item_action_service.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/daemon"
	"github.com/javajoker/mpnode/internal/events"
	"github.com/javajoker/mpnode/internal/message"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/translator"
)

type Subscriber interface {
	Subscribe(kind events.Kind, h events.Handler)
}

// ListingItemActionService posts local templates and materializes listings
// received from the network.
type ListingItemActionService struct {
	templates      *ListingItemTemplateService
	items          *ListingItemService
	markets        *MarketService
	categories     *ItemCategoryService
	actionMessages *ActionMessageService
	translator     *translator.ListingItemTranslator
	sender         Sender
	emitter        Emitter
	version        string
	log            *logrus.Entry
}

func NewListingItemActionService(
	templates *ListingItemTemplateService,
	items *ListingItemService,
	markets *MarketService,
	categories *ItemCategoryService,
	actionMessages *ActionMessageService,
	sender Sender,
	emitter Emitter,
	version string,
) *ListingItemActionService {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &ListingItemActionService{
		templates:      templates,
		items:          items,
		markets:        markets,
		categories:     categories,
		actionMessages: actionMessages,
		translator:     translator.NewListingItemTranslator(categories),
		sender:         sender,
		emitter:        emitter,
		version:        version,
		log:            logrus.WithField("component", "listing_item_action"),
	}
}

func (s *ListingItemActionService) Register(bus Subscriber) {
	bus.Subscribe(events.ListingItemReceived, s.ProcessListingItemReceived)
}

// Post publishes a template to a market. The transport's answer is returned
// unchanged, including when it reports a failed send.
func (s *ListingItemActionService) Post(ctx context.Context, templateID, marketID uuid.UUID) (*daemon.SendResult, error) {
	template, err := s.templates.FindOne(ctx, templateID)
	if err != nil {
		return nil, err
	}

	market, err := s.markets.FindOne(ctx, marketID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.ProtocolViolation("cannot post template %s: no market %s", templateID, marketID)
	}
	if err != nil {
		return nil, err
	}

	if template.Profile == nil {
		return nil, apperr.New(apperr.KindInternal, "template %s has no profile", templateID)
	}

	item, err := s.translator.ToMessage(ctx, translator.TemplateContent(template))
	if err != nil {
		return nil, err
	}

	res, err := send(ctx, s.sender, s.version, template.Profile.Address, market.Address, &message.MarketplaceMessage{
		Item:   item,
		Market: market.Address,
	})
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"template": template.ID,
		"hash":     item.Hash,
		"market":   market.Name,
		"msgid":    res.MsgID,
	})
	if !res.Sent() {
		entry.WithField("result", res.Result).Warn("Listing was not sent")
		return res, nil
	}

	if err := s.templates.MarkPosted(ctx, template.ID, item.Hash); err != nil {
		return nil, err
	}
	entry.Info("Listing posted")
	return res, nil
}

// ProcessListingItemReceived stores a received listing once per hash and
// audits every distinct transport message that carried it.
func (s *ListingItemActionService) ProcessListingItemReceived(ctx context.Context, e events.Event) error {
	if e.Envelope == nil || e.Envelope.Item == nil {
		return apperr.Malformed("listing event without item")
	}
	if e.Meta.MsgID == "" {
		return apperr.Malformed("listing event without msgid")
	}

	seen, err := s.actionMessages.Seen(ctx, e.Meta.MsgID)
	if err != nil {
		return err
	}
	if seen {
		s.log.WithField("msgid", e.Meta.MsgID).Debug("Message already processed")
		return nil
	}

	market, err := s.markets.FindByAddress(ctx, e.Envelope.Market)
	if err != nil {
		return err
	}

	root, err := s.categories.FindRoot(ctx, market.ID)
	if err != nil {
		return err
	}

	item, err := s.translator.ToModel(ctx, e.Envelope.Item, market.ID, e.Meta.From, root)
	if err != nil {
		return err
	}

	stored, created, err := s.items.CreateIfAbsent(ctx, item)
	if err != nil {
		return err
	}

	if _, err := s.actionMessages.Record(ctx, message.ActionListingItemAdd, nil, e.Envelope.Version, e.Meta, stored.ID); err != nil {
		return err
	}

	if !created {
		s.log.WithFields(logrus.Fields{"hash": stored.Hash, "msgid": e.Meta.MsgID}).Debug("Listing item already known")
		return nil
	}

	if err := s.relinkTemplate(ctx, stored); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"hash":   stored.Hash,
		"market": market.Name,
		"seller": stored.Seller,
	}).Info("Listing item received")

	s.emitter.Emit(events.Event{Kind: events.ListingItemStored, Meta: e.Meta, Payload: stored})
	return nil
}

// relinkTemplate attaches the item to the local template it was posted from.
func (s *ListingItemActionService) relinkTemplate(ctx context.Context, item *models.ListingItem) error {
	template, err := s.templates.FindOneByHash(ctx, item.Hash)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.items.LinkTemplate(ctx, item.ID, template.ID); err != nil {
		return err
	}
	item.ListingItemTemplateID = &template.ID
	return nil
}
