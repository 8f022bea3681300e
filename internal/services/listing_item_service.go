// internal/services/listing_item_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/database"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/utils"
)

type ListingItemService struct {
	db *gorm.DB
	// mu makes check-then-create atomic within the process; the unique hash
	// index covers anything else writing to the same database.
	mu sync.Mutex
}

type ListingItemSearchParams struct {
	utils.PaginationParams
	MarketID *uuid.UUID `json:"market_id,omitempty"`
	Seller   string     `json:"seller,omitempty"`
	PriceMin *float64   `json:"price_min,omitempty"`
	PriceMax *float64   `json:"price_max,omitempty"`
}

func NewListingItemService(db *gorm.DB) *ListingItemService {
	return &ListingItemService{db: db}
}

func withListingRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ItemInformation.ItemCategory").
		Preload("ItemInformation.ShippingDestinations").
		Preload("ItemInformation.ItemImages.ItemImageDatas").
		Preload("PaymentInformation").
		Preload("MessagingInformation").
		Preload("ListingItemObjects.ListingItemObjectDatas")
}

func (s *ListingItemService) FindOne(ctx context.Context, id uuid.UUID, withRelated bool) (*models.ListingItem, error) {
	query := s.db.WithContext(ctx)
	if withRelated {
		query = withListingRelations(query)
	}

	var item models.ListingItem
	if err := query.First(&item, "id = ?", id).Error; err != nil {
		return nil, lookupError(err, "listing item", id)
	}
	return &item, nil
}

func (s *ListingItemService) FindOneByHash(ctx context.Context, hash string, withRelated bool) (*models.ListingItem, error) {
	query := s.db.WithContext(ctx)
	if withRelated {
		query = withListingRelations(query)
	}

	var item models.ListingItem
	if err := query.Where("hash = ?", hash).First(&item).Error; err != nil {
		return nil, lookupError(err, "listing item", hash)
	}
	return &item, nil
}

// CreateIfAbsent stores item unless a listing with the same hash exists, in
// which case the existing row is returned and created is false.
func (s *ListingItemService) CreateIfAbsent(ctx context.Context, item *models.ListingItem) (stored *models.ListingItem, created bool, err error) {
	if item.Hash == "" {
		return nil, false, errors.New("listing item has no hash")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var existing models.ListingItem
		err := tx.Where("hash = ?", item.Hash).First(&existing).Error
		if err == nil {
			stored = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(item).Error; err != nil {
			return err
		}
		stored, created = item, true
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with another writer on the same database.
		existing, findErr := s.FindOneByHash(ctx, item.Hash, false)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create listing item: %w", err)
	}
	return stored, created, nil
}

// LinkTemplate records that item was posted from templateID.
func (s *ListingItemService) LinkTemplate(ctx context.Context, itemID, templateID uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&models.ListingItem{}).
		Where("id = ?", itemID).
		Update("listing_item_template_id", templateID).Error
	if err != nil {
		return fmt.Errorf("failed to link listing item to template: %w", err)
	}
	return nil
}

func (s *ListingItemService) Search(ctx context.Context, params ListingItemSearchParams) ([]models.ListingItem, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ListingItem{}).
		Joins("JOIN item_informations ON item_informations.listing_item_id = listing_items.id AND item_informations.deleted_at IS NULL").
		Joins("JOIN payment_informations ON payment_informations.listing_item_id = listing_items.id AND payment_informations.deleted_at IS NULL")

	if params.MarketID != nil {
		query = query.Where("listing_items.market_id = ?", *params.MarketID)
	}

	if params.Seller != "" {
		query = query.Where("listing_items.seller = ?", params.Seller)
	}

	if params.Category != "" {
		query = query.Joins("JOIN item_categories ON item_categories.id = item_informations.item_category_id").
			Where("item_categories.key = ? OR item_categories.name = ?", params.Category, params.Category)
	}

	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(item_informations.title) LIKE ? OR LOWER(item_informations.short_description) LIKE ?", searchTerm, searchTerm)
	}

	if params.PriceMin != nil {
		query = query.Where("payment_informations.base_price >= ?", *params.PriceMin)
	}

	if params.PriceMax != nil {
		query = query.Where("payment_informations.base_price <= ?", *params.PriceMax)
	}

	// Get total count
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count listing items: %w", err)
	}

	sortFields := map[string]string{
		"created_at": "listing_items.created_at",
		"updated_at": "listing_items.updated_at",
		"title":      "item_informations.title",
		"price":      "payment_informations.base_price",
	}
	query = utils.ApplySort(query, params.PaginationParams, sortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var items []models.ListingItem
	if err := withListingRelations(query.Select("listing_items.*")).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch listing items: %w", err)
	}

	return items, total, nil
}
