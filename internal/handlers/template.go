// internal/handlers/template.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/mpnode/internal/services"
	"github.com/javajoker/mpnode/internal/utils"
)

type TemplateHandler struct {
	templateService *services.ListingItemTemplateService
	actionService   *services.ListingItemActionService
}

func NewTemplateHandler(templateService *services.ListingItemTemplateService, actionService *services.ListingItemActionService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		actionService:   actionService,
	}
}

type PostTemplateRequest struct {
	MarketID uuid.UUID `json:"market_id" validate:"required"`
}

// POST /v1/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req services.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid template", err.Error())
		return
	}

	template, err := h.templateService.Create(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"template": template})
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid template ID", nil)
		return
	}

	template, err := h.templateService.FindOne(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"template": template})
}

// POST /v1/templates/:id/post
func (h *TemplateHandler) PostTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid template ID", nil)
		return
	}

	var req PostTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.actionService.Post(c.Request.Context(), id, req.MarketID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"result": result})
}
