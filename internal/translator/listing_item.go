// internal/translator/listing_item.go
package translator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/message"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/objecthash"
	"github.com/javajoker/mpnode/internal/utils"
)

const (
	shipsNotPrefix = "-"
	shipsAskPrefix = "*"
)

// CategoryTree resolves category paths against the persisted tree.
type CategoryTree interface {
	CreateCategoriesFromPath(ctx context.Context, root *models.ItemCategory, path []string) (*models.ItemCategory, error)
	CategoryPath(ctx context.Context, categoryID uuid.UUID) ([]string, error)
}

// ListingContent is the part of a listing shared by templates and items.
type ListingContent struct {
	Information *models.ItemInformation
	Payment     *models.PaymentInformation
	Messaging   []models.MessagingInformation
	Objects     []models.ListingItemObject
}

func TemplateContent(t *models.ListingItemTemplate) ListingContent {
	return ListingContent{
		Information: t.ItemInformation,
		Payment:     t.PaymentInformation,
		Messaging:   t.MessagingInformation,
		Objects:     t.ListingItemObjects,
	}
}

func ItemContent(l *models.ListingItem) ListingContent {
	return ListingContent{
		Information: l.ItemInformation,
		Payment:     l.PaymentInformation,
		Messaging:   l.MessagingInformation,
		Objects:     l.ListingItemObjects,
	}
}

type ListingItemTranslator struct {
	categories CategoryTree
}

func NewListingItemTranslator(categories CategoryTree) *ListingItemTranslator {
	return &ListingItemTranslator{categories: categories}
}

// ToMessage flattens a persisted listing into its wire form, including its hash.
func (t *ListingItemTranslator) ToMessage(ctx context.Context, content ListingContent) (*message.ListingItemMessage, error) {
	if content.Information == nil || content.Payment == nil {
		return nil, apperr.Malformed("listing is missing item or payment information")
	}

	info := content.Information
	msg := &message.ListingItemMessage{
		Information: message.InformationMessage{
			Title:                info.Title,
			ShortDescription:     info.ShortDescription,
			LongDescription:      info.LongDescription,
			ShippingDestinations: ShippingDestinationsToMessage(info.ShippingDestinations),
		},
		Payment:   paymentToMessage(content.Payment),
		Messaging: messagingToMessage(content.Messaging),
	}

	if info.ItemCategoryID != nil {
		path, err := t.categories.CategoryPath(ctx, *info.ItemCategoryID)
		if err != nil {
			return nil, fmt.Errorf("failed to build category path: %w", err)
		}
		msg.Information.Category = path
	}

	if info.LocationCountry != "" || info.LocationAddress != "" {
		msg.Information.Location = &message.LocationMessage{
			CountryCode: info.LocationCountry,
			Address:     info.LocationAddress,
		}
	}

	for _, image := range info.ItemImages {
		if im, ok := imageToMessage(image); ok {
			msg.Information.Images = append(msg.Information.Images, im)
		}
	}

	objects, err := ObjectsToMessage(content.Objects)
	if err != nil {
		return nil, err
	}
	msg.Objects = objects

	hash, err := HashContent(content)
	if err != nil {
		return nil, err
	}
	msg.Hash = hash

	return msg, nil
}

// ToModel expands a received listing into an unsaved ListingItem. Market and
// seller come from the envelope and the receiving node, never from the payload.
func (t *ListingItemTranslator) ToModel(ctx context.Context, msg *message.ListingItemMessage, marketID uuid.UUID, seller string, root *models.ItemCategory) (*models.ListingItem, error) {
	if err := utils.ValidateStruct(msg); err != nil {
		return nil, apperr.Malformed("invalid listing item message").WithDetails(utils.GetValidationErrors(err))
	}

	hash, err := HashMessage(msg)
	if err != nil {
		return nil, err
	}
	if msg.Hash != "" && msg.Hash != hash {
		return nil, apperr.Malformed("listing item hash mismatch: message says %s, content hashes to %s", msg.Hash, hash)
	}

	category, err := t.categories.CreateCategoriesFromPath(ctx, root, msg.Information.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve category path: %w", err)
	}

	destinations, err := ShippingDestinationsFromMessage(msg.Information.ShippingDestinations)
	if err != nil {
		return nil, err
	}

	images, err := imagesFromMessage(msg.Information.Images)
	if err != nil {
		return nil, err
	}

	objects, err := ObjectsFromMessage(msg.Objects)
	if err != nil {
		return nil, err
	}

	info := &models.ItemInformation{
		Title:                msg.Information.Title,
		ShortDescription:     msg.Information.ShortDescription,
		LongDescription:      msg.Information.LongDescription,
		ItemCategoryID:       &category.ID,
		ShippingDestinations: destinations,
		ItemImages:           images,
	}
	if loc := msg.Information.Location; loc != nil {
		info.LocationCountry = loc.CountryCode
		info.LocationAddress = loc.Address
	}

	return &models.ListingItem{
		Hash:                 hash,
		MarketID:             marketID,
		Seller:               seller,
		ItemInformation:      info,
		PaymentInformation:   paymentFromMessage(msg.Payment),
		MessagingInformation: messagingFromMessage(msg.Messaging),
		ListingItemObjects:   objects,
	}, nil
}

// Projection selects the hashed fields of a persisted listing.
func Projection(content ListingContent) objecthash.Listing {
	var p objecthash.Listing
	if info := content.Information; info != nil {
		p.Title = info.Title
		p.ShortDescription = info.ShortDescription
		p.LongDescription = info.LongDescription
	}
	if pay := content.Payment; pay != nil {
		p.BasePrice = pay.BasePrice
		p.PaymentAddress = pay.Address
	}
	if len(content.Messaging) > 0 {
		p.MessagingPublicKey = content.Messaging[0].PublicKey
	}
	return p
}

// MessageProjection selects the hashed fields of a wire listing.
func MessageProjection(msg *message.ListingItemMessage) objecthash.Listing {
	p := objecthash.Listing{
		Title:            msg.Information.Title,
		ShortDescription: msg.Information.ShortDescription,
		LongDescription:  msg.Information.LongDescription,
	}
	if price := msg.Payment.ItemPrice; price != nil {
		p.BasePrice = price.BasePrice
		p.PaymentAddress = price.Address.Address
	}
	if len(msg.Messaging) > 0 {
		p.MessagingPublicKey = msg.Messaging[0].PublicKey
	}
	return p
}

func HashContent(content ListingContent) (string, error) {
	return objecthash.HashListing(Projection(content))
}

func HashMessage(msg *message.ListingItemMessage) (string, error) {
	return objecthash.HashListing(MessageProjection(msg))
}

// ShippingDestinationsFromMessage expands the signed list: a bare country
// ships, "-XX" does not ship and "*XX" ships on request.
func ShippingDestinationsFromMessage(destinations []string) ([]models.ShippingDestination, error) {
	result := make([]models.ShippingDestination, 0, len(destinations))
	for _, d := range destinations {
		availability := models.ShippingAvailabilityShips
		country := d
		switch {
		case strings.HasPrefix(d, shipsNotPrefix):
			availability = models.ShippingAvailabilityDoesNotShip
			country = strings.TrimPrefix(d, shipsNotPrefix)
		case strings.HasPrefix(d, shipsAskPrefix):
			availability = models.ShippingAvailabilityAsk
			country = strings.TrimPrefix(d, shipsAskPrefix)
		}
		if country == "" {
			return nil, apperr.Malformed("invalid shipping destination %q", d)
		}
		result = append(result, models.ShippingDestination{
			Country:              country,
			ShippingAvailability: availability,
		})
	}
	return result, nil
}

func ShippingDestinationsToMessage(destinations []models.ShippingDestination) []string {
	if len(destinations) == 0 {
		return nil
	}
	result := make([]string, 0, len(destinations))
	for _, d := range destinations {
		switch d.ShippingAvailability {
		case models.ShippingAvailabilityDoesNotShip:
			result = append(result, shipsNotPrefix+d.Country)
		case models.ShippingAvailabilityAsk:
			result = append(result, shipsAskPrefix+d.Country)
		default:
			result = append(result, d.Country)
		}
	}
	return result
}

// ObjectsFromMessage maps TABLE and DROPDOWN objects. Any other type, or a
// missing one, is rejected.
func ObjectsFromMessage(objects []message.ObjectMessage) ([]models.ListingItemObject, error) {
	result := make([]models.ListingItemObject, 0, len(objects))
	for _, o := range objects {
		object := models.ListingItemObject{
			Type:        models.ObjectType(o.Type),
			Description: o.Description,
			Order:       o.Order,
		}
		switch object.Type {
		case models.ObjectTypeTable:
			for _, row := range o.Table {
				object.ListingItemObjectDatas = append(object.ListingItemObjectDatas, models.ListingItemObjectData{
					Key:   row.Key,
					Value: row.Value,
				})
			}
		case models.ObjectTypeDropdown:
			for _, option := range o.Options {
				object.ListingItemObjectDatas = append(object.ListingItemObjectDatas, models.ListingItemObjectData{
					Key:   option.Name,
					Value: option.Value,
				})
			}
		default:
			return nil, apperr.Malformed("unknown listing item object type %q", o.Type)
		}
		result = append(result, object)
	}
	return result, nil
}

func ObjectsToMessage(objects []models.ListingItemObject) ([]message.ObjectMessage, error) {
	if len(objects) == 0 {
		return nil, nil
	}

	sorted := make([]models.ListingItemObject, len(objects))
	copy(sorted, objects)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	result := make([]message.ObjectMessage, 0, len(sorted))
	for _, o := range sorted {
		object := message.ObjectMessage{
			Type:        string(o.Type),
			Description: o.Description,
			Order:       o.Order,
		}
		switch o.Type {
		case models.ObjectTypeTable:
			for _, d := range o.ListingItemObjectDatas {
				object.Table = append(object.Table, message.KeyValueMessage{Key: d.Key, Value: d.Value})
			}
		case models.ObjectTypeDropdown:
			for _, d := range o.ListingItemObjectDatas {
				object.Options = append(object.Options, message.OptionMessage{Name: d.Key, Value: d.Value})
			}
		default:
			return nil, apperr.Malformed("unknown listing item object type %q", o.Type)
		}
		result = append(result, object)
	}
	return result, nil
}

func paymentToMessage(p *models.PaymentInformation) message.PaymentMessage {
	msg := message.PaymentMessage{
		Type: string(p.Type),
		ItemPrice: &message.ItemPriceMessage{
			Currency:  p.Currency,
			BasePrice: p.BasePrice,
			Address: message.CryptoAddressMessage{
				Type:    string(p.AddressType),
				Address: p.Address,
			},
		},
	}
	if p.DomesticShippingPrice != 0 || p.InternationalShippingPrice != 0 {
		msg.ItemPrice.ShippingPrice = &message.ShippingPriceMessage{
			Domestic:      p.DomesticShippingPrice,
			International: p.InternationalShippingPrice,
		}
	}
	if p.EscrowType != "" {
		msg.Escrow = &message.EscrowMessage{
			Type: string(p.EscrowType),
			Ratio: message.RatioMessage{
				Buyer:  p.EscrowBuyerRatio,
				Seller: p.EscrowSellerRatio,
			},
		}
	}
	return msg
}

func paymentFromMessage(msg message.PaymentMessage) *models.PaymentInformation {
	p := &models.PaymentInformation{Type: models.PaymentType(msg.Type)}
	if e := msg.Escrow; e != nil {
		p.EscrowType = models.EscrowType(e.Type)
		p.EscrowBuyerRatio = e.Ratio.Buyer
		p.EscrowSellerRatio = e.Ratio.Seller
	}
	if price := msg.ItemPrice; price != nil {
		p.Currency = price.Currency
		p.BasePrice = price.BasePrice
		p.AddressType = models.CryptoAddressType(price.Address.Type)
		p.Address = price.Address.Address
		if sp := price.ShippingPrice; sp != nil {
			p.DomesticShippingPrice = sp.Domestic
			p.InternationalShippingPrice = sp.International
		}
	}
	return p
}

func messagingToMessage(infos []models.MessagingInformation) []message.MessagingMessage {
	result := make([]message.MessagingMessage, 0, len(infos))
	for _, m := range infos {
		result = append(result, message.MessagingMessage{Protocol: m.Protocol, PublicKey: m.PublicKey})
	}
	return result
}

func messagingFromMessage(msgs []message.MessagingMessage) []models.MessagingInformation {
	result := make([]models.MessagingInformation, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, models.MessagingInformation{Protocol: m.Protocol, PublicKey: m.PublicKey})
	}
	return result
}

// imageToMessage embeds only the ORIGINAL version; resized copies are local.
func imageToMessage(image models.ItemImage) (message.ImageMessage, bool) {
	for _, d := range image.ItemImageDatas {
		if d.ImageVersion != models.ImageVersionOriginal {
			continue
		}
		return message.ImageMessage{
			Hash: image.Hash,
			Data: []message.ImageDataMessage{{
				Protocol: d.Protocol,
				Encoding: d.Encoding,
				Data:     d.Data,
				DataID:   d.DataID,
			}},
		}, true
	}
	return message.ImageMessage{}, false
}

func imagesFromMessage(images []message.ImageMessage) ([]models.ItemImage, error) {
	result := make([]models.ItemImage, 0, len(images))
	for _, im := range images {
		image := models.ItemImage{Hash: im.Hash}
		for _, d := range im.Data {
			image.ItemImageDatas = append(image.ItemImageDatas, models.ItemImageData{
				DataID:       d.DataID,
				Protocol:     d.Protocol,
				Encoding:     d.Encoding,
				Data:         d.Data,
				ImageVersion: models.ImageVersionOriginal,
			})
		}
		if image.Hash == "" && len(im.Data) > 0 && im.Data[0].Data != "" {
			hash, err := objecthash.HashImage(im.Data[0].Data)
			if err != nil {
				return nil, err
			}
			image.Hash = hash
		}
		result = append(result, image)
	}
	return result, nil
}
