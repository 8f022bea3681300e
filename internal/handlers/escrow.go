// internal/handlers/escrow.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/mpnode/internal/services"
	"github.com/javajoker/mpnode/internal/utils"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
}

func NewEscrowHandler(escrowService *services.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService}
}

type RawTransactionRequest struct {
	Hex string `json:"hex" validate:"required,hexadecimal"`
}

// GET /v1/escrow/unspent?addresses=a,b
func (h *EscrowHandler) GetUnspent(c *gin.Context) {
	var addresses []string
	for _, a := range strings.Split(c.Query("addresses"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			addresses = append(addresses, a)
		}
	}

	unspent, err := h.escrowService.ListUnspent(c.Request.Context(), addresses)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"unspent": unspent})
}

// POST /v1/escrow/multisig
func (h *EscrowHandler) CreateMultisig(c *gin.Context) {
	var req services.CreateMultisigRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.escrowService.CreateMultisig(c.Request.Context(), req.PublicKeys, req.Label)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"multisig": res})
}

// POST /v1/escrow/transactions
func (h *EscrowHandler) BuildTransaction(c *gin.Context) {
	var req services.BuildTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	signed, err := h.escrowService.BuildAndSign(c.Request.Context(), req.Inputs, req.Outputs)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": signed})
}

// POST /v1/escrow/transactions/broadcast
func (h *EscrowHandler) BroadcastTransaction(c *gin.Context) {
	var req RawTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	txid, err := h.escrowService.Broadcast(c.Request.Context(), req.Hex)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"txid": txid})
}

// POST /v1/escrow/transactions/decode
func (h *EscrowHandler) DecodeTransaction(c *gin.Context) {
	var req RawTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	decoded, err := h.escrowService.Decode(c.Request.Context(), req.Hex)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": decoded})
}

// bindAndValidate writes the error response itself and reports whether to continue.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, "Invalid request", err.Error())
		return false
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}
