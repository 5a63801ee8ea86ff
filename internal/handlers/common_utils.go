package handlers

import (
	"errors"
	"net/http"

	"hashfund/internal/escrow"

	"github.com/gin-gonic/gin"
)

// eng is the escrow engine shared by the fund handlers; set once at
// startup via Init.
var eng *escrow.Engine

// Init wires the escrow engine into the handler package.
func Init(e *escrow.Engine) {
	eng = e
}

// Engine returns the wired engine, for route-level checks.
func Engine() *escrow.Engine {
	return eng
}

// respondEscrowError maps engine errors onto HTTP responses. The body
// always names which condition failed; half-complete operations carry
// the transaction id so support can reconcile.
func respondEscrowError(c *gin.Context, err error) {
	var phaseErr *escrow.PhaseError
	var settleErr *escrow.SettlementError

	switch {
	case errors.Is(err, escrow.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, escrow.ErrNotCreator):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, escrow.ErrInsufficientFunds):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "insufficient_funds"})
	case errors.Is(err, escrow.ErrAssociationRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "association_required"})
	case errors.Is(err, escrow.ErrAlreadyPaid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "already_paid"})
	case errors.Is(err, escrow.ErrDeadlinePassed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "deadline_passed"})
	case errors.Is(err, escrow.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation"})
	case errors.Is(err, escrow.ErrPayoutPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "payout_pending"})
	case errors.As(err, &phaseErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":          phaseErr.Error(),
			"code":           "phase_" + phaseErr.Phase,
			"transaction_id": phaseErr.TxID,
		})
	case errors.As(err, &settleErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": settleErr.Error(),
			"code":  "settlement_" + settleErr.Kind.String(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
