package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-ledger-go/internal/database"
	"finance-ledger-go/internal/ledger"
	"finance-ledger-go/internal/models"
)

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(400, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return uint(id), true
}

// ledgerStatus maps ledger sentinels to HTTP statuses. Validation failures
// mutate nothing; invariant violations mean the write was aborted.
func ledgerStatus(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrBucketNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(404, gin.H{"error": "not_found"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(422, gin.H{"error": "insufficient_funds"})
	case errors.Is(err, ledger.ErrTransferNotAllowed):
		c.JSON(422, gin.H{"error": "transfer_not_allowed"})
	case errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(422, gin.H{"error": "invalid_amount"})
	case errors.Is(err, ledger.ErrInvariantViolation):
		c.JSON(500, gin.H{"error": "ledger_inconsistent"})
	default:
		c.JSON(500, gin.H{"error": err.Error()})
	}
}

// POST /v1/accounts
func (s *Server) createAccount(c *gin.Context) {
	userID := currentUserID(c)

	var input struct {
		Type       models.AccountType `json:"type" binding:"required"`
		Name       string             `json:"name" binding:"required"`
		Color      string             `json:"color"`
		Provider   string             `json:"provider"`
		Identifier string             `json:"identifier"`
		Currency   string             `json:"currency"`
		Balance    decimal.Decimal    `json:"balance"`
		IsDefault  bool               `json:"is_default"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if input.Balance.IsNegative() {
		c.JSON(422, gin.H{"error": "invalid_amount"})
		return
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}

	acct := models.Account{
		UUID:       uuid.New().String(),
		UserID:     userID,
		Type:       input.Type,
		Name:       input.Name,
		Color:      input.Color,
		Provider:   input.Provider,
		Identifier: input.Identifier,
		Currency:   input.Currency,
		Balance:    input.Balance,
		IsDefault:  input.IsDefault,
		Active:     true,
	}
	if err := database.DB.Create(&acct).Error; err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(201, acct)
}

// GET /v1/accounts
func (s *Server) listAccounts(c *gin.Context) {
	userID := currentUserID(c)
	var accounts []models.Account
	if err := database.DB.Where("user_id = ? AND active", userID).
		Order("id").Find(&accounts).Error; err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, accounts)
}

// GET /v1/accounts/:id
func (s *Server) getAccount(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var acct models.Account
	err := database.DB.Where("id = ? AND user_id = ? AND active", id, userID).First(&acct).Error
	if err != nil {
		ledgerStatus(c, err)
		return
	}
	c.JSON(200, acct)
}

// DELETE /v1/accounts/:id — soft archive; refused while the account still
// holds tagged funds.
func (s *Server) archiveAccount(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var tagged int64
	if err := database.DB.Model(&models.FundBucket{}).
		Where("account_id = ? AND user_id = ?", id, userID).
		Count(&tagged).Error; err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	if tagged > 0 {
		c.JSON(422, gin.H{"error": "account_has_tagged_funds"})
		return
	}

	res := database.DB.Model(&models.Account{}).
		Where("id = ? AND user_id = ? AND active", id, userID).
		Update("active", false)
	if res.Error != nil {
		c.JSON(500, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(404, gin.H{"error": "not_found"})
		return
	}
	c.JSON(200, gin.H{"archived": true})
}

// GET /v1/accounts/:id/breakdown
func (s *Server) getBreakdown(c *gin.Context) {
	userID := currentUserID(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	bd, err := ledger.Breakdown(database.DB, userID, id)
	if err != nil {
		ledgerStatus(c, err)
		return
	}
	c.JSON(200, bd)
}

// POST /v1/goals
func (s *Server) createGoal(c *gin.Context) {
	userID := currentUserID(c)
	var input struct {
		Name         string          `json:"name" binding:"required"`
		TargetAmount decimal.Decimal `json:"target_amount"`
		TargetDate   *time.Time      `json:"target_date"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	goal := models.SavingsGoal{
		UUID:         uuid.New().String(),
		UserID:       userID,
		Name:         input.Name,
		TargetAmount: input.TargetAmount,
		TargetDate:   input.TargetDate,
		Active:       true,
	}
	if err := database.DB.Create(&goal).Error; err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(201, goal)
}

// GET /v1/goals
func (s *Server) listGoals(c *gin.Context) {
	userID := currentUserID(c)
	var goals []models.SavingsGoal
	if err := database.DB.Where("user_id = ? AND active", userID).
		Order("id").Find(&goals).Error; err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	// Attach saved-so-far from goal buckets.
	type goalWithSaved struct {
		models.SavingsGoal
		Saved decimal.Decimal `json:"saved"`
	}
	out := make([]goalWithSaved, len(goals))
	for i, g := range goals {
		var sum decimal.NullDecimal
		database.DB.Model(&models.FundBucket{}).
			Where("user_id = ? AND type = ? AND reference_id = ?", userID, models.BucketGoal, g.UUID).
			Select("SUM(amount)").Scan(&sum)
		out[i] = goalWithSaved{SavingsGoal: g}
		if sum.Valid {
			out[i].Saved = sum.Decimal
		}
	}
	c.JSON(200, out)
}

// POST /v1/transfers
func (s *Server) createTransfer(c *gin.Context) {
	userID := currentUserID(c)
	var input struct {
		From   ledger.BucketRef `json:"from" binding:"required"`
		To     ledger.BucketRef `json:"to" binding:"required"`
		Amount decimal.Decimal  `json:"amount"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := ledger.Transfer(database.DB, userID, input.From, input.To, input.Amount); err != nil {
		if errors.Is(err, ledger.ErrTransferNotAllowed) || errors.Is(err, ledger.ErrInsufficientFunds) {
			transfersRejected.Inc()
		}
		ledgerStatus(c, err)
		return
	}
	c.JSON(200, gin.H{"transferred": true})
}
