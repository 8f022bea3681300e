// internal/services/market_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/config"
	"github.com/javajoker/mpnode/internal/models"
)

const marketCacheSize = 64

type MarketService struct {
	db        *gorm.DB
	byAddress *lru.Cache[string, models.Market]
}

func NewMarketService(db *gorm.DB) *MarketService {
	cache, _ := lru.New[string, models.Market](marketCacheSize)
	return &MarketService{
		db:        db,
		byAddress: cache,
	}
}

// FindByAddress resolves the market an envelope targets.
func (s *MarketService) FindByAddress(ctx context.Context, address string) (*models.Market, error) {
	if address == "" {
		return nil, apperr.NotFound("market", "(no address)")
	}
	if m, ok := s.byAddress.Get(address); ok {
		return &m, nil
	}

	var market models.Market
	if err := s.db.WithContext(ctx).Where("address = ?", address).First(&market).Error; err != nil {
		return nil, lookupError(err, "market", address)
	}
	s.byAddress.Add(address, market)
	return &market, nil
}

func (s *MarketService) FindOne(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	var market models.Market
	if err := s.db.WithContext(ctx).First(&market, "id = ?", id).Error; err != nil {
		return nil, lookupError(err, "market", id)
	}
	return &market, nil
}

func (s *MarketService) FindByName(ctx context.Context, name string) (*models.Market, error) {
	var market models.Market
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&market).Error; err != nil {
		return nil, lookupError(err, "market", name)
	}
	return &market, nil
}

// SeedDefaultMarket creates the configured market, or brings its key and
// address up to date when it already exists.
func (s *MarketService) SeedDefaultMarket(ctx context.Context, cfg config.MarketConfig) (*models.Market, error) {
	if cfg.Address == "" || cfg.PrivateKey == "" {
		return nil, apperr.New(apperr.KindInternal, "default market %q has no address or private key configured", cfg.Name)
	}

	market, err := s.FindByName(ctx, cfg.Name)
	switch {
	case err == nil:
		if market.Address == cfg.Address && market.PrivateKey == cfg.PrivateKey {
			return market, nil
		}
		old := market.Address
		market.Address = cfg.Address
		market.PrivateKey = cfg.PrivateKey
		if err := s.db.WithContext(ctx).Save(market).Error; err != nil {
			return nil, fmt.Errorf("failed to update default market: %w", err)
		}
		s.byAddress.Remove(old)
		logrus.WithField("market", cfg.Name).Info("Updated default market")
		return market, nil
	case apperr.Is(err, apperr.KindNotFound):
	default:
		return nil, err
	}

	market = &models.Market{
		Name:       cfg.Name,
		PrivateKey: cfg.PrivateKey,
		Address:    cfg.Address,
	}
	if err := s.db.WithContext(ctx).Create(market).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.FindByName(ctx, cfg.Name)
		}
		return nil, fmt.Errorf("failed to create default market: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"market":  market.Name,
		"address": market.Address,
	}).Info("Default market created")
	return market, nil
}
