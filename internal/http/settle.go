package http

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"finance-ledger-go/internal/database"
	"finance-ledger-go/internal/settlement"
)

func settlementStatus(c *gin.Context, err error) {
	switch {
	case errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrUnknownAdjustment),
		errors.Is(err, settlement.ErrUnknownTerminal),
		errors.Is(err, settlement.ErrNoTaggedFunds),
		errors.Is(err, settlement.ErrAdjustmentExceedsFunds),
		errors.Is(err, settlement.ErrAdjustmentExceedsOwed),
		errors.Is(err, settlement.ErrUnresolvedResidual),
		errors.Is(err, settlement.ErrSettlementIncomplete):
		c.JSON(422, gin.H{"error": err.Error()})
	default:
		ledgerStatus(c, err)
	}
}

// GET /v1/liabilities/:id/settlement — what still stands between this
// liability and deletion.
func (s *Server) settlementPreview(c *gin.Context) {
	userID := currentUserID(c)
	li, ok := s.loadLiability(c)
	if !ok {
		return
	}
	snap, err := settlement.Build(database.DB, userID, li)
	if err != nil {
		ledgerStatus(c, err)
		return
	}
	c.JSON(200, gin.H{
		"snapshot":     snap,
		"tagged_total": snap.TaggedTotal(),
		"balanced":     snap.Balanced(),
	})
}

// POST /v1/liabilities/:id/settle — run a settlement plan and, when both
// residuals reach zero, soft-delete the liability.
func (s *Server) settleLiability(c *gin.Context) {
	userID := currentUserID(c)
	li, ok := s.loadLiability(c)
	if !ok {
		return
	}

	body, ok := s.validateBody(c, s.settlementSchema)
	if !ok {
		return
	}
	var input struct {
		Adjustments []struct {
			Kind      settlement.AdjustmentKind `json:"kind"`
			AccountID uint                      `json:"account_id"`
			Amount    decimal.Decimal           `json:"amount"`
		} `json:"adjustments"`
		Terminal settlement.TerminalAction `json:"terminal"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	snap, err := settlement.Build(database.DB, userID, li)
	if err != nil {
		ledgerStatus(c, err)
		return
	}

	adjs := make([]settlement.Adjustment, len(input.Adjustments))
	for i, a := range input.Adjustments {
		adjs[i] = settlement.Adjustment{Kind: a.Kind, AccountID: a.AccountID, Amount: a.Amount}
	}

	res, err := settlement.Plan(*snap, adjs, input.Terminal)
	if err != nil {
		settlementStatus(c, err)
		return
	}

	if err := settlement.Execute(database.DB, userID, li, res); err != nil {
		settlementStatus(c, err)
		return
	}

	liabilitiesSettled.Inc()
	c.JSON(200, gin.H{"resolution": res})
}
