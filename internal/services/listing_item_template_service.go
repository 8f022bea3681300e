// internal/services/listing_item_template_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/objecthash"
	"github.com/javajoker/mpnode/internal/translator"
	"github.com/javajoker/mpnode/internal/utils"
)

type ListingItemTemplateService struct {
	db         *gorm.DB
	categories *ItemCategoryService
	profiles   *ProfileService
	now        func() time.Time
}

type CreateTemplateRequest struct {
	ProfileID            *uuid.UUID               `json:"profile_id,omitempty"`
	Title                string                   `json:"title" validate:"required,max=255"`
	ShortDescription     string                   `json:"short_description"`
	LongDescription      string                   `json:"long_description"`
	Category             []string                 `json:"category" validate:"required,min=1,dive,required"`
	MarketID             uuid.UUID                `json:"market_id" validate:"required"`
	LocationCountry      string                   `json:"location_country" validate:"omitempty,len=2"`
	LocationAddress      string                   `json:"location_address"`
	ShippingDestinations []string                 `json:"shipping_destinations" validate:"dive,required"`
	Payment              TemplatePaymentRequest   `json:"payment"`
	Messaging            []TemplateMessagingInput `json:"messaging" validate:"dive"`
	Objects              []TemplateObjectInput    `json:"objects" validate:"dive"`
}

type TemplatePaymentRequest struct {
	Type                       models.PaymentType       `json:"type" validate:"required,oneof=SALE FREE RENT"`
	EscrowType                 models.EscrowType        `json:"escrow_type" validate:"omitempty,oneof=MAD NOP"`
	EscrowBuyerRatio           float64                  `json:"escrow_buyer_ratio" validate:"gte=0"`
	EscrowSellerRatio          float64                  `json:"escrow_seller_ratio" validate:"gte=0"`
	Currency                   string                   `json:"currency" validate:"required"`
	BasePrice                  float64                  `json:"base_price" validate:"gte=0"`
	DomesticShippingPrice      float64                  `json:"domestic_shipping_price" validate:"gte=0"`
	InternationalShippingPrice float64                  `json:"international_shipping_price" validate:"gte=0"`
	AddressType                models.CryptoAddressType `json:"address_type" validate:"omitempty,oneof=NORMAL STEALTH"`
	Address                    string                   `json:"address" validate:"required"`
}

type TemplateMessagingInput struct {
	Protocol  string `json:"protocol" validate:"required"`
	PublicKey string `json:"public_key" validate:"required"`
}

type TemplateObjectInput struct {
	Type        models.ObjectType `json:"type" validate:"required,oneof=TABLE DROPDOWN"`
	Description string            `json:"description"`
	Order       int               `json:"order"`
	Data        map[string]string `json:"data"`
}

func NewListingItemTemplateService(db *gorm.DB, categories *ItemCategoryService, profiles *ProfileService) *ListingItemTemplateService {
	return &ListingItemTemplateService{
		db:         db,
		categories: categories,
		profiles:   profiles,
		now:        time.Now,
	}
}

func withTemplateRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Profile").
		Preload("ItemInformation.ItemCategory").
		Preload("ItemInformation.ShippingDestinations").
		Preload("ItemInformation.ItemImages.ItemImageDatas").
		Preload("PaymentInformation").
		Preload("MessagingInformation").
		Preload("ListingItemObjects.ListingItemObjectDatas")
}

func (s *ListingItemTemplateService) FindOne(ctx context.Context, id uuid.UUID) (*models.ListingItemTemplate, error) {
	var template models.ListingItemTemplate
	if err := withTemplateRelations(s.db.WithContext(ctx)).First(&template, "id = ?", id).Error; err != nil {
		return nil, lookupError(err, "listing item template", id)
	}
	return &template, nil
}

func (s *ListingItemTemplateService) FindOneByHash(ctx context.Context, hash string) (*models.ListingItemTemplate, error) {
	var template models.ListingItemTemplate
	if err := s.db.WithContext(ctx).Where("hash = ?", hash).First(&template).Error; err != nil {
		return nil, lookupError(err, "listing item template", hash)
	}
	return &template, nil
}

// Create stores a draft. Drafts get a timestamped hash so two identical
// drafts stay distinct until one is posted.
func (s *ListingItemTemplateService) Create(ctx context.Context, req *CreateTemplateRequest) (*models.ListingItemTemplate, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperr.Malformed("invalid template").WithDetails(utils.GetValidationErrors(err))
	}

	profile, err := s.resolveProfile(ctx, req.ProfileID)
	if err != nil {
		return nil, err
	}

	root, err := s.categories.FindRoot(ctx, req.MarketID)
	if err != nil {
		return nil, err
	}
	category, err := s.categories.CreateCategoriesFromPath(ctx, root, req.Category)
	if err != nil {
		return nil, err
	}

	destinations, err := translator.ShippingDestinationsFromMessage(req.ShippingDestinations)
	if err != nil {
		return nil, err
	}

	template := &models.ListingItemTemplate{
		ProfileID: profile.ID,
		ItemInformation: &models.ItemInformation{
			Title:                req.Title,
			ShortDescription:     req.ShortDescription,
			LongDescription:      req.LongDescription,
			ItemCategoryID:       &category.ID,
			LocationCountry:      req.LocationCountry,
			LocationAddress:      req.LocationAddress,
			ShippingDestinations: destinations,
		},
		PaymentInformation: &models.PaymentInformation{
			Type:                       req.Payment.Type,
			EscrowType:                 req.Payment.EscrowType,
			EscrowBuyerRatio:           req.Payment.EscrowBuyerRatio,
			EscrowSellerRatio:          req.Payment.EscrowSellerRatio,
			Currency:                   req.Payment.Currency,
			BasePrice:                  req.Payment.BasePrice,
			DomesticShippingPrice:      req.Payment.DomesticShippingPrice,
			InternationalShippingPrice: req.Payment.InternationalShippingPrice,
			AddressType:                req.Payment.AddressType,
			Address:                    req.Payment.Address,
		},
	}
	if template.PaymentInformation.AddressType == "" {
		template.PaymentInformation.AddressType = models.CryptoAddressTypeNormal
	}
	for _, m := range req.Messaging {
		template.MessagingInformation = append(template.MessagingInformation, models.MessagingInformation{
			Protocol:  m.Protocol,
			PublicKey: m.PublicKey,
		})
	}
	for _, o := range req.Objects {
		object := models.ListingItemObject{Type: o.Type, Description: o.Description, Order: o.Order}
		keys := make([]string, 0, len(o.Data))
		for k := range o.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			object.ListingItemObjectDatas = append(object.ListingItemObjectDatas, models.ListingItemObjectData{Key: k, Value: o.Data[k]})
		}
		template.ListingItemObjects = append(template.ListingItemObjects, object)
	}

	hash, err := objecthash.HashTemplate(translator.Projection(translator.TemplateContent(template)), s.now())
	if err != nil {
		return nil, err
	}
	template.Hash = hash

	if err := s.db.WithContext(ctx).Create(template).Error; err != nil {
		return nil, fmt.Errorf("failed to create listing item template: %w", err)
	}

	return s.FindOne(ctx, template.ID)
}

// MarkPosted replaces the draft hash with the hash of the posted listing so
// the listing can be matched back when it arrives.
func (s *ListingItemTemplateService) MarkPosted(ctx context.Context, id uuid.UUID, listingHash string) error {
	err := s.db.WithContext(ctx).Model(&models.ListingItemTemplate{}).
		Where("id = ?", id).
		Update("hash", listingHash).Error
	if err != nil {
		return fmt.Errorf("failed to update template hash: %w", err)
	}
	return nil
}

func (s *ListingItemTemplateService) resolveProfile(ctx context.Context, id *uuid.UUID) (*models.Profile, error) {
	if id != nil {
		return s.profiles.FindOne(ctx, *id)
	}
	return s.profiles.FindDefault(ctx)
}
