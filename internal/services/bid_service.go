// internal/services/bid_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/utils"
)

type BidService struct {
	db *gorm.DB
}

type BidSearchParams struct {
	utils.PaginationParams
	ListingItemID *uuid.UUID        `json:"listing_item_id,omitempty"`
	Bidder        string            `json:"bidder,omitempty"`
	Action        *models.BidAction `json:"action,omitempty"`
}

func NewBidService(db *gorm.DB) *BidService {
	return &BidService{db: db}
}

// WithTx returns a copy of the service bound to tx.
func (s *BidService) WithTx(tx *gorm.DB) *BidService {
	return &BidService{db: tx}
}

func (s *BidService) Create(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	if err := s.db.WithContext(ctx).Create(bid).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && bid.ParentBidID != nil {
			return nil, apperr.New(apperr.KindConflict, "bid %s was already answered", *bid.ParentBidID)
		}
		return nil, fmt.Errorf("failed to create bid: %w", err)
	}
	return s.FindOne(ctx, bid.ID)
}

// FindOne loads a bid with its data and listing.
func (s *BidService) FindOne(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := s.db.WithContext(ctx).
		Preload("ListingItem").
		Preload("BidDatas", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&bid, "id = ?", id).Error
	if err != nil {
		return nil, lookupError(err, "bid", id)
	}
	return &bid, nil
}

// FindLatest returns the newest bid by bidder on a listing with the given action.
func (s *BidService) FindLatest(ctx context.Context, listingItemID uuid.UUID, bidder string, action models.BidAction) (*models.Bid, error) {
	var bid models.Bid
	err := s.db.WithContext(ctx).
		Preload("ListingItem").
		Preload("BidDatas", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("listing_item_id = ? AND bidder = ? AND action = ?", listingItemID, bidder, action).
		Order("created_at DESC").
		First(&bid).Error
	if err != nil {
		return nil, lookupError(err, "bid", fmt.Sprintf("%s by %s on %s", action, bidder, listingItemID))
	}
	return &bid, nil
}

// FindAnswer returns the accept, reject or cancel linked to bidID, or nil
// while the bid is still open.
func (s *BidService) FindAnswer(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	var answers []models.Bid
	err := s.db.WithContext(ctx).
		Where("parent_bid_id = ?", bidID).
		Limit(1).
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load answer to bid %s: %w", bidID, err)
	}
	if len(answers) == 0 {
		return nil, nil
	}
	return &answers[0], nil
}

func (s *BidService) Search(ctx context.Context, params BidSearchParams) ([]models.Bid, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Bid{})

	if params.ListingItemID != nil {
		query = query.Where("listing_item_id = ?", *params.ListingItemID)
	}
	if params.Bidder != "" {
		query = query.Where("bidder = ?", params.Bidder)
	}
	if params.Action != nil {
		query = query.Where("action = ?", *params.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bids: %w", err)
	}

	query = utils.ApplySort(query, params.PaginationParams, map[string]string{"created_at": "created_at"})
	query = utils.ApplyPagination(query, params.PaginationParams)

	var bids []models.Bid
	if err := query.Preload("BidDatas").Find(&bids).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch bids: %w", err)
	}
	return bids, total, nil
}
