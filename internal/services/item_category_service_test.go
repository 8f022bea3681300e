package services

import (
	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/config"
	"github.com/javajoker/mpnode/internal/models"
)

func (s *ServiceSuite) TestSeedDefaultCategoriesIsIdempotent() {
	before := s.count(&models.ItemCategory{})

	root, err := s.categories.SeedDefaultCategories(s.ctx, s.market)
	s.Require().NoError(err)
	s.Equal(s.root.ID, root.ID)
	s.Equal(before, s.count(&models.ItemCategory{}))
}

func (s *ServiceSuite) TestCategoryPathCreatesMissingNodesOnce() {
	path := []string{RootCategoryKey, "cat_electronics", "Audio", "Headphones"}

	leaf, err := s.categories.CreateCategoriesFromPath(s.ctx, s.root, path)
	s.Require().NoError(err)
	s.Equal("Headphones", leaf.Name)
	s.Nil(leaf.Key)
	s.Require().NotNil(leaf.MarketID)
	s.Equal(s.market.ID, *leaf.MarketID)

	before := s.count(&models.ItemCategory{})
	again, err := s.categories.CreateCategoriesFromPath(s.ctx, s.root, path)
	s.Require().NoError(err)
	s.Equal(leaf.ID, again.ID)
	s.Equal(before, s.count(&models.ItemCategory{}))

	got, err := s.categories.CategoryPath(s.ctx, leaf.ID)
	s.Require().NoError(err)
	s.Equal(path, got)
}

func (s *ServiceSuite) TestSeededKeyIsMatchedNotDuplicated() {
	before := s.count(&models.ItemCategory{})

	leaf, err := s.categories.CreateCategoriesFromPath(s.ctx, s.root, []string{RootCategoryKey, "cat_high_value", "cat_high_real_estate"})
	s.Require().NoError(err)
	s.Equal("Real Estate", leaf.Name)
	s.Equal(before, s.count(&models.ItemCategory{}))
}

func (s *ServiceSuite) TestCategoryPathValidation() {
	_, err := s.categories.CreateCategoriesFromPath(s.ctx, s.root, nil)
	s.True(apperr.Is(err, apperr.KindMalformed))

	_, err = s.categories.CreateCategoriesFromPath(s.ctx, s.root, []string{"cat_elsewhere", "Things"})
	s.True(apperr.Is(err, apperr.KindMalformed))

	_, err = s.categories.CreateCategoriesFromPath(s.ctx, s.root, []string{RootCategoryKey, "", "Things"})
	s.True(apperr.Is(err, apperr.KindMalformed))
}

func (s *ServiceSuite) TestEachMarketHasItsOwnRoot() {
	other, err := s.markets.SeedDefaultMarket(s.ctx, config.MarketConfig{
		Name:       "SECOND",
		Address:    "pSecondMarket",
		PrivateKey: "second-key",
	})
	s.Require().NoError(err)

	_, err = s.categories.FindRoot(s.ctx, other.ID)
	s.True(apperr.Is(err, apperr.KindNotFound))

	root, err := s.categories.SeedDefaultCategories(s.ctx, other)
	s.Require().NoError(err)
	s.NotEqual(s.root.ID, root.ID)
}
