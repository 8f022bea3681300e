// internal/handlers/order.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/javajoker/mpnode/internal/models"
	"github.com/javajoker/mpnode/internal/services"
	"github.com/javajoker/mpnode/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// GET /v1/orders
func (h *OrderHandler) GetOrders(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	searchParams := services.OrderSearchParams{
		PaginationParams: params,
		Buyer:            c.Query("buyer"),
		Seller:           c.Query("seller"),
	}
	if status := c.Query("status"); status != "" {
		s := models.OrderStatus(status)
		searchParams.Status = &s
	}

	orders, total, err := h.orderService.Search(c.Request.Context(), searchParams)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(orders, total, params))
}

// GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	order, err := h.orderService.FindOne(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}
