// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/events"
	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/translator"
	"github.com/javajoker/mpnode/internal/utils"
)

type OrderService struct {
	db      *gorm.DB
	bids    *BidService
	emitter Emitter
}

type OrderSearchParams struct {
	utils.PaginationParams
	Buyer  string              `json:"buyer,omitempty"`
	Seller string              `json:"seller,omitempty"`
	Status *models.OrderStatus `json:"status,omitempty"`
}

func NewOrderService(db *gorm.DB, bids *BidService, emitter Emitter) *OrderService {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &OrderService{
		db:      db,
		bids:    bids,
		emitter: emitter,
	}
}

// WithTx returns a copy of the service bound to tx. It does not emit; the
// caller announces created orders once the transaction commits.
func (s *OrderService) WithTx(tx *gorm.DB) *OrderService {
	return &OrderService{db: tx, bids: s.bids.WithTx(tx), emitter: noopEmitter{}}
}

// CreateFromBid derives and stores the order for an accepted bid. It is the
// only way an order comes into existence. Repeating it for the same bid, or
// for another accept between the same parties on the same listing, returns
// the order created the first time.
func (s *OrderService) CreateFromBid(ctx context.Context, bidID uuid.UUID) (*models.Order, error) {
	order, created, err := s.deriveFromBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if created {
		s.announce(order)
	}
	return order, nil
}

// deriveFromBid stores the order for bidID unless it exists. The bool
// reports whether a row was inserted.
func (s *OrderService) deriveFromBid(ctx context.Context, bidID uuid.UUID) (*models.Order, bool, error) {
	bid, err := s.bids.FindOne(ctx, bidID)
	if err != nil {
		return nil, false, err
	}

	order, err := translator.OrderFromBid(bid)
	if err != nil {
		return nil, false, err
	}

	if existing, err := s.findByBid(ctx, bid.ID); err == nil {
		return existing, false, nil
	}
	if existing, err := s.findByHash(ctx, order.Hash); err == nil {
		return existing, false, nil
	}

	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, err := s.findByHash(ctx, order.Hash)
			return existing, false, err
		}
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	stored, err := s.FindOne(ctx, order.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

func (s *OrderService) announce(order *models.Order) {
	logrus.WithFields(logrus.Fields{
		"order":  order.Hash,
		"buyer":  order.Buyer,
		"seller": order.Seller,
	}).Info("Order created")
	s.emitter.Emit(events.Event{Kind: events.OrderCreated, Payload: order})
}

func (s *OrderService) FindOne(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("OrderItems").First(&order, "id = ?", id).Error; err != nil {
		return nil, lookupError(err, "order", id)
	}
	return &order, nil
}

func (s *OrderService) findByBid(ctx context.Context, bidID uuid.UUID) (*models.Order, error) {
	var item models.OrderItem
	if err := s.db.WithContext(ctx).Where("bid_id = ?", bidID).First(&item).Error; err != nil {
		return nil, lookupError(err, "order for bid", bidID)
	}
	return s.FindOne(ctx, item.OrderID)
}

func (s *OrderService) findByHash(ctx context.Context, hash string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("OrderItems").First(&order, "hash = ?", hash).Error; err != nil {
		return nil, lookupError(err, "order", hash)
	}
	return &order, nil
}

func (s *OrderService) Search(ctx context.Context, params OrderSearchParams) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})

	if params.Buyer != "" {
		query = query.Where("buyer = ?", params.Buyer)
	}
	if params.Seller != "" {
		query = query.Where("seller = ?", params.Seller)
	}
	if params.Status != nil {
		query = query.Where("id IN (?)", s.db.Model(&models.OrderItem{}).Select("order_id").Where("status = ?", *params.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query = utils.ApplySort(query, params.PaginationParams, map[string]string{"created_at": "created_at"})
	query = utils.ApplyPagination(query, params.PaginationParams)

	var orders []models.Order
	if err := query.Preload("OrderItems").Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, total, nil
}
