// internal/services/item_category_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/apperr"
	"github.com/javajoker/mpnode/internal/database"
	"github.com/javajoker/mpnode/internal/models"
)

const (
	RootCategoryKey = "cat_ROOT"
	categoryKeyTag  = "cat_"
)

type defaultCategory struct {
	key      string
	name     string
	children []defaultCategory
}

var defaultCategories = []defaultCategory{
	{key: "cat_high_value", name: "High Value (10,000$+)", children: []defaultCategory{
		{key: "cat_high_business_corporate", name: "Business/Corporate"},
		{key: "cat_high_vehicles_aircraft_yachts", name: "Vehicles/Aircraft/Yachts and Water Craft"},
		{key: "cat_high_real_estate", name: "Real Estate"},
		{key: "cat_high_luxyry_items", name: "Luxury Items"},
		{key: "cat_high_services", name: "Services"},
	}},
	{key: "cat_housing_travel_vacation", name: "Housing, Travel & Vacation", children: []defaultCategory{
		{key: "cat_housing_vacation_rentals", name: "Vacation Rentals"},
		{key: "cat_housing_travel_services", name: "Travel Services"},
	}},
	{key: "cat_apparel_accessories", name: "Apparel & Accessories", children: []defaultCategory{
		{key: "cat_apparel_adult", name: "Adult"},
		{key: "cat_apparel_children", name: "Children"},
		{key: "cat_apparel_bags_luggage", name: "Bags & Luggage"},
	}},
	{key: "cat_electronics", name: "Electronics and Technology", children: []defaultCategory{
		{key: "cat_electronics_computers", name: "Computers"},
		{key: "cat_electronics_phones", name: "Phones & Tablets"},
	}},
	{key: "cat_home_kitchen", name: "Home and Kitchen"},
	{key: "cat_services_corporate", name: "Services"},
	{key: "cat_wholesale_science_industrial", name: "Wholesale, Science & Industrial Products"},
}

// ItemCategoryService owns the category tree. Each market has its own root.
type ItemCategoryService struct {
	db *gorm.DB
	// mu serializes find-or-create walks so concurrent messages with the
	// same new path create it once.
	mu sync.Mutex
}

func NewItemCategoryService(db *gorm.DB) *ItemCategoryService {
	return &ItemCategoryService{db: db}
}

func (s *ItemCategoryService) FindOne(ctx context.Context, id uuid.UUID) (*models.ItemCategory, error) {
	var category models.ItemCategory
	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, lookupError(err, "item category", id)
	}
	return &category, nil
}

// FindRoot returns the root category of marketID.
func (s *ItemCategoryService) FindRoot(ctx context.Context, marketID uuid.UUID) (*models.ItemCategory, error) {
	var root models.ItemCategory
	err := s.db.WithContext(ctx).
		Where("key = ? AND market_id = ? AND parent_item_category_id IS NULL", RootCategoryKey, marketID).
		First(&root).Error
	if err != nil {
		return nil, lookupError(err, "root item category for market", marketID)
	}
	return &root, nil
}

// SeedDefaultCategories creates the market root and the default tree below
// it. Existing nodes are left untouched.
func (s *ItemCategoryService) SeedDefaultCategories(ctx context.Context, market *models.Market) (*models.ItemCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var root *models.ItemCategory
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var err error
		root, err = s.findOrCreateRoot(tx, market.ID)
		if err != nil {
			return err
		}
		return s.seedChildren(tx, root, defaultCategories)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed default categories: %w", err)
	}

	logrus.WithField("market", market.Name).Debug("Default categories in place")
	return root, nil
}

func (s *ItemCategoryService) findOrCreateRoot(tx *gorm.DB, marketID uuid.UUID) (*models.ItemCategory, error) {
	var root models.ItemCategory
	err := tx.Where("key = ? AND market_id = ? AND parent_item_category_id IS NULL", RootCategoryKey, marketID).
		First(&root).Error
	if err == nil {
		return &root, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	key := RootCategoryKey
	root = models.ItemCategory{
		Key:      &key,
		Name:     "ROOT",
		MarketID: &marketID,
	}
	if err := tx.Create(&root).Error; err != nil {
		return nil, err
	}
	return &root, nil
}

func (s *ItemCategoryService) seedChildren(tx *gorm.DB, parent *models.ItemCategory, children []defaultCategory) error {
	for _, c := range children {
		child, err := s.findOrCreateChild(tx, parent, c.key, c.name)
		if err != nil {
			return err
		}
		if err := s.seedChildren(tx, child, c.children); err != nil {
			return err
		}
	}
	return nil
}

// CreateCategoriesFromPath walks path from root, creating every missing
// node. Elements starting with "cat_" match keys, others match names. The
// first element names the root itself.
func (s *ItemCategoryService) CreateCategoriesFromPath(ctx context.Context, root *models.ItemCategory, path []string) (*models.ItemCategory, error) {
	if len(path) == 0 {
		return nil, apperr.Malformed("empty category path")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var leaf *models.ItemCategory
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		current := root
		if current == nil {
			var err error
			current, err = s.findOrCreateOrphanRoot(tx, path[0])
			if err != nil {
				return err
			}
		} else if current.PathElement() != path[0] {
			return apperr.Malformed("category path starts at %q, expected %q", path[0], current.PathElement())
		}

		for _, element := range path[1:] {
			if element == "" {
				return apperr.Malformed("empty element in category path %v", path)
			}
			key, name := splitPathElement(element)
			child, err := s.findOrCreateChild(tx, current, key, name)
			if err != nil {
				return err
			}
			current = child
		}
		leaf = current
		return nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create category path %v: %w", path, err)
	}
	return leaf, nil
}

// CategoryPath returns the elements from the root down to categoryID.
func (s *ItemCategoryService) CategoryPath(ctx context.Context, categoryID uuid.UUID) ([]string, error) {
	var path []string
	id := &categoryID
	for depth := 0; id != nil; depth++ {
		if depth > 64 {
			return nil, apperr.New(apperr.KindInternal, "category %s has a cyclic parent chain", categoryID)
		}
		category, err := s.FindOne(ctx, *id)
		if err != nil {
			return nil, err
		}
		path = append(path, category.PathElement())
		id = category.ParentItemCategoryID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func (s *ItemCategoryService) findOrCreateOrphanRoot(tx *gorm.DB, element string) (*models.ItemCategory, error) {
	key, name := splitPathElement(element)
	query := tx.Where("parent_item_category_id IS NULL AND market_id IS NULL")
	if key != "" {
		query = query.Where("key = ?", key)
	} else {
		query = query.Where("name = ?", name)
	}

	var root models.ItemCategory
	err := query.First(&root).Error
	if err == nil {
		return &root, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	root = models.ItemCategory{Name: name}
	if key != "" {
		root.Key = &key
	}
	if err := tx.Create(&root).Error; err != nil {
		return nil, err
	}
	return &root, nil
}

func (s *ItemCategoryService) findOrCreateChild(tx *gorm.DB, parent *models.ItemCategory, key, name string) (*models.ItemCategory, error) {
	query := tx.Where("parent_item_category_id = ?", parent.ID)
	if key != "" {
		query = query.Where("key = ?", key)
	} else {
		query = query.Where("name = ?", name)
	}

	var child models.ItemCategory
	err := query.First(&child).Error
	if err == nil {
		return &child, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	child = models.ItemCategory{
		Name:                 name,
		ParentItemCategoryID: &parent.ID,
		MarketID:             parent.MarketID,
	}
	if key != "" {
		child.Key = &key
	}
	if err := tx.Create(&child).Error; err != nil {
		return nil, err
	}
	return &child, nil
}

// splitPathElement returns the key for "cat_" elements, otherwise the name.
// A key-only element is also used as the display name.
func splitPathElement(element string) (key, name string) {
	if strings.HasPrefix(element, categoryKeyTag) {
		return element, element
	}
	return "", element
}
