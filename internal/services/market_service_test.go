package services

import (
	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/config"
)

func (s *ServiceSuite) TestFindMarketByAddressIsCached() {
	m, err := s.markets.FindByAddress(s.ctx, testMarketAddress)
	s.Require().NoError(err)
	s.Equal(s.market.ID, m.ID)

	cached, ok := s.markets.byAddress.Get(testMarketAddress)
	s.True(ok)
	s.Equal(s.market.ID, cached.ID)
}

func (s *ServiceSuite) TestUnknownMarketAddressIsNotFound() {
	_, err := s.markets.FindByAddress(s.ctx, "pNowhere")
	s.True(apperr.Is(err, apperr.KindNotFound))

	_, err = s.markets.FindByAddress(s.ctx, "")
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *ServiceSuite) TestReseedingMarketUpdatesAddress() {
	_, err := s.markets.FindByAddress(s.ctx, testMarketAddress)
	s.Require().NoError(err)

	updated, err := s.markets.SeedDefaultMarket(s.ctx, config.MarketConfig{
		Name:       "DEFAULT",
		Address:    "pMovedMarket",
		PrivateKey: "rotated-key",
	})
	s.Require().NoError(err)
	s.Equal(s.market.ID, updated.ID)
	s.Equal("rotated-key", updated.PrivateKey)

	_, err = s.markets.FindByAddress(s.ctx, testMarketAddress)
	s.True(apperr.Is(err, apperr.KindNotFound))

	moved, err := s.markets.FindByAddress(s.ctx, "pMovedMarket")
	s.Require().NoError(err)
	s.Equal(s.market.ID, moved.ID)
}

func (s *ServiceSuite) TestSeedingMarketNeedsKeyAndAddress() {
	_, err := s.markets.SeedDefaultMarket(s.ctx, config.MarketConfig{Name: "EMPTY"})
	s.Error(err)
}

func (s *ServiceSuite) TestDefaultProfileIsSeededOnce() {
	again, err := s.profiles.SeedDefaultProfile(s.ctx)
	s.Require().NoError(err)
	s.Equal(s.profile.ID, again.ID)
	s.Equal([]string{"_profile_" + DefaultProfileName}, s.wallet.labels)
}
