// internal/handlers/bid.go
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/services"
	"github.com/javajoker/mpnode/internal/utils"
)

type BidHandler struct {
	actionService *services.BidActionService
	bidService    *services.BidService
}

func NewBidHandler(actionService *services.BidActionService, bidService *services.BidService) *BidHandler {
	return &BidHandler{
		actionService: actionService,
		bidService:    bidService,
	}
}

// POST /v1/listing-items/:id/bids
func (h *BidHandler) SendBid(c *gin.Context) {
	listingItemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid listing ID", nil)
		return
	}

	var req services.SendBidRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid bid", err.Error())
			return
		}
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	outcome, err := h.actionService.Send(c.Request.Context(), listingItemID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, outcome)
}

// GET /v1/bids
func (h *BidHandler) GetBids(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	searchParams := services.BidSearchParams{
		PaginationParams: params,
		Bidder:           c.Query("bidder"),
	}

	if idStr := c.Query("listing_item_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid listing ID", nil)
			return
		}
		searchParams.ListingItemID = &id
	}
	if action := c.Query("action"); action != "" {
		a := models.BidAction(action)
		searchParams.Action = &a
	}

	bids, total, err := h.bidService.Search(c.Request.Context(), searchParams)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(bids, total, params))
}

// POST /v1/bids/:id/accept
func (h *BidHandler) AcceptBid(c *gin.Context) {
	h.answer(c, h.actionService.Accept)
}

// POST /v1/bids/:id/reject
func (h *BidHandler) RejectBid(c *gin.Context) {
	h.answer(c, h.actionService.Reject)
}

// POST /v1/bids/:id/cancel
func (h *BidHandler) CancelBid(c *gin.Context) {
	h.answer(c, h.actionService.Cancel)
}

func (h *BidHandler) answer(c *gin.Context, action func(context.Context, uuid.UUID) (*services.BidOutcome, error)) {
	bidID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid bid ID", nil)
		return
	}

	outcome, err := action(c.Request.Context(), bidID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, outcome)
}
