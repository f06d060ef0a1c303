package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-ledger-go/internal/amortize"
	"finance-ledger-go/internal/database"
	"finance-ledger-go/internal/ledger"
	"finance-ledger-go/internal/models"
)

func mutationStatus(c *gin.Context, err error) {
	switch {
	case errors.Is(err, amortize.ErrEntryNotFound):
		c.JSON(404, gin.H{"error": "entry_not_found"})
	case errors.Is(err, amortize.ErrEntryNotMutable):
		c.JSON(422, gin.H{"error": "entry_not_mutable"})
	case errors.Is(err, amortize.ErrDateOutOfRange):
		c.JSON(422, gin.H{"error": "date_out_of_range"})
	case errors.Is(err, amortize.ErrInvalidAmount),
		errors.Is(err, amortize.ErrPaymentTooSmall),
		errors.Is(err, amortize.ErrNoUpcomingEntries),
		errors.Is(err, amortize.ErrFinalEntryPinned),
		errors.Is(err, amortize.ErrUnknownPolicy):
		c.JSON(422, gin.H{"error": err.Error()})
	case errors.Is(err, amortize.ErrInvariantViolation):
		c.JSON(500, gin.H{"error": "schedule_inconsistent"})
	default:
		ledgerStatus(c, err)
	}
}

// loadScheduleFor returns the liability plus all of its entries in
// payment-number order.
func (s *Server) loadScheduleFor(c *gin.Context) (*models.Liability, []models.ScheduleEntry, bool) {
	li, ok := s.loadLiability(c)
	if !ok {
		return nil, nil, false
	}
	var entries []models.ScheduleEntry
	err := database.DB.Where("liability_id = ? AND user_id = ?", li.ID, li.UserID).
		Order("payment_number").Find(&entries).Error
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	return li, entries, true
}

func saveEntries(tx *gorm.DB, entries ...*models.ScheduleEntry) error {
	for _, e := range entries {
		if err := tx.Save(e).Error; err != nil {
			return err
		}
	}
	return nil
}

// POST /v1/liabilities/:id/schedule/:entry/skip
func (s *Server) skipEntry(c *gin.Context) {
	li, entries, ok := s.loadScheduleFor(c)
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entry")
	if !ok {
		return
	}

	var input struct {
		Policy amortize.SkipPolicy `json:"policy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	res, err := amortize.Skip(li, entries, entryID, input.Policy)
	if err != nil {
		mutationStatus(c, err)
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := saveEntries(tx, res.Cancelled); err != nil {
			return err
		}
		if err := saveEntries(tx, res.Updated...); err != nil {
			return err
		}
		if res.Appended != nil {
			if err := tx.Create(res.Appended).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, res)
}

// POST /v1/liabilities/:id/schedule/:entry/postpone
func (s *Server) postponeEntry(c *gin.Context) {
	li, entries, ok := s.loadScheduleFor(c)
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entry")
	if !ok {
		return
	}

	var input struct {
		NewDate time.Time `json:"new_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	res, err := amortize.Postpone(li, entries, entryID, input.NewDate, time.Now().UTC())
	if err != nil {
		mutationStatus(c, err)
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := saveEntries(tx, res.Entry); err != nil {
			return err
		}
		if res.NextDueChanged {
			return tx.Model(&models.Liability{}).
				Where("id = ?", li.ID).
				Update("next_due_date", res.NextDue).Error
		}
		return nil
	})
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, res)
}

// POST /v1/liabilities/:id/schedule/:entry/amount
func (s *Server) changeEntryAmount(c *gin.Context) {
	li, entries, ok := s.loadScheduleFor(c)
	if !ok {
		return
	}
	entryID, ok := pathID(c, "entry")
	if !ok {
		return
	}

	var input struct {
		NewAmount decimal.Decimal      `json:"new_amount"`
		Scope     amortize.AmountScope `json:"scope" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	res, err := amortize.ChangeAmount(li, entries, entryID, input.NewAmount, input.Scope)
	if err != nil {
		mutationStatus(c, err)
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		return saveEntries(tx, res.Updated...)
	})
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, res)
}

// POST /v1/liabilities/:id/extra-payment
func (s *Server) extraPayment(c *gin.Context) {
	userID := currentUserID(c)
	li, entries, ok := s.loadScheduleFor(c)
	if !ok {
		return
	}

	body, ok := s.validateBody(c, s.extraSchema)
	if !ok {
		return
	}
	var input struct {
		AccountID uint                      `json:"account_id"`
		Amount    decimal.Decimal           `json:"amount"`
		Mode      amortize.ExtraPaymentMode `json:"mode"`
		SkipCount int                       `json:"skip_count"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	res, err := amortize.ExtraPayment(li, entries, input.Amount, input.Mode, input.SkipCount)
	if err != nil {
		mutationStatus(c, err)
		return
	}

	// The balance reduction, the payment record, the account debit and the
	// schedule rewrite commit together.
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := ledger.PayFromAccount(tx, userID, input.AccountID, li.UUID, input.Amount); err != nil {
			return err
		}
		payment := models.LiabilityPayment{
			UserID:        userID,
			LiabilityID:   li.ID,
			AccountID:     input.AccountID,
			Amount:        input.Amount,
			Principal:     input.Amount,
			Date:          time.Now().UTC(),
			TransactionID: uuid.New().String(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"current_balance": res.NewBalance,
			"payment_amount":  res.NewPaymentAmount,
		}
		if res.NewBalance.IsZero() {
			updates["status"] = models.LiabilityPaidOff
		}
		if err := tx.Model(&models.Liability{}).
			Where("id = ? AND user_id = ?", li.ID, userID).
			Updates(updates).Error; err != nil {
			return err
		}

		if err := saveEntries(tx, res.Cancelled...); err != nil {
			return err
		}
		if len(res.ReplacedIDs) > 0 {
			if err := tx.Where("id IN ? AND status = ?", res.ReplacedIDs, models.EntryUpcoming).
				Delete(&models.ScheduleEntry{}).Error; err != nil {
				return err
			}
			rows := entriesToModels(res.Tail, li)
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
			return tx.Model(&models.Liability{}).
				Where("id = ?", li.ID).
				Update("next_due_date", rows[0].DueDate).Error
		}
		if len(res.Cancelled) > 0 {
			// Cancelled entries may have carried the cached next due date.
			var next models.ScheduleEntry
			err := tx.Where("liability_id = ? AND status = ?", li.ID, models.EntryUpcoming).
				Order("due_date").First(&next).Error
			switch {
			case err == nil:
				return tx.Model(&models.Liability{}).
					Where("id = ?", li.ID).
					Update("next_due_date", next.DueDate).Error
			case errors.Is(err, gorm.ErrRecordNotFound):
				return tx.Model(&models.Liability{}).
					Where("id = ?", li.ID).
					Update("next_due_date", nil).Error
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		mutationStatus(c, err)
		return
	}

	paymentsRecorded.Inc()
	if len(res.Tail) > 0 {
		schedulesRegenerated.Inc()
	}
	c.JSON(200, res)
}
