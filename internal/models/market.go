// internal/models/market.go
package models

import (
	"github.com/google/uuid"
)

type Market struct {
	BaseModel
	Name       string `json:"name" gorm:"size:100;not null;uniqueIndex"`
	PrivateKey string `json:"-" gorm:"size:255;not null"`
	Address    string `json:"address" gorm:"size:100;not null;uniqueIndex"`

	// Relationships
	ListingItems []ListingItem `json:"listing_items,omitempty" gorm:"foreignKey:MarketID"`
}

type Profile struct {
	BaseModel
	Name    string `json:"name" gorm:"size:100;not null;uniqueIndex"`
	Address string `json:"address" gorm:"size:100;not null"`

	// Relationships
	ListingItemTemplates []ListingItemTemplate `json:"listing_item_templates,omitempty" gorm:"foreignKey:ProfileID"`
}

type ItemCategory struct {
	BaseModel
	Key                  *string    `json:"key,omitempty" gorm:"size:100;index"`
	Name                 string     `json:"name" gorm:"size:100;not null"`
	Description          string     `json:"description" gorm:"type:text"`
	ParentItemCategoryID *uuid.UUID `json:"parent_item_category_id" gorm:"type:uuid;index"`
	MarketID             *uuid.UUID `json:"market_id" gorm:"type:uuid;index"`

	// Relationships
	ParentItemCategory  *ItemCategory  `json:"parent_item_category,omitempty" gorm:"foreignKey:ParentItemCategoryID"`
	ChildItemCategories []ItemCategory `json:"child_item_categories,omitempty" gorm:"foreignKey:ParentItemCategoryID"`
}

// PathElement is the string that identifies the category inside a message path.
func (c *ItemCategory) PathElement() string {
	if c.Key != nil && *c.Key != "" {
		return *c.Key
	}
	return c.Name
}
