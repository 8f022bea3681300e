// internal/handlers/listing.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/mpnode/internal/services"
	"github.com/javajoker/mpnode/internal/utils"
)

type ListingHandler struct {
	listingService *services.ListingItemService
	auditService   *services.ActionMessageService
}

func NewListingHandler(listingService *services.ListingItemService, auditService *services.ActionMessageService) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		auditService:   auditService,
	}
}

// GET /v1/listings
func (h *ListingHandler) GetListings(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	searchParams := services.ListingItemSearchParams{
		PaginationParams: params,
		Seller:           c.Query("seller"),
	}

	if marketIDStr := c.Query("market_id"); marketIDStr != "" {
		marketID, err := uuid.Parse(marketIDStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid market ID", nil)
			return
		}
		searchParams.MarketID = &marketID
	}

	if minStr := c.Query("price_min"); minStr != "" {
		if price, err := strconv.ParseFloat(minStr, 64); err == nil {
			searchParams.PriceMin = &price
		}
	}
	if maxStr := c.Query("price_max"); maxStr != "" {
		if price, err := strconv.ParseFloat(maxStr, 64); err == nil {
			searchParams.PriceMax = &price
		}
	}

	items, total, err := h.listingService.Search(c.Request.Context(), searchParams)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(items, total, params))
}

// GET /v1/listings/:hash
func (h *ListingHandler) GetListing(c *gin.Context) {
	item, err := h.listingService.FindOneByHash(c.Request.Context(), c.Param("hash"), true)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"listing": item})
}

// GET /v1/listings/:hash/messages
func (h *ListingHandler) GetListingMessages(c *gin.Context) {
	item, err := h.listingService.FindOneByHash(c.Request.Context(), c.Param("hash"), false)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	messages, err := h.auditService.FindByListingItem(c.Request.Context(), item.ID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"messages": messages})
}
