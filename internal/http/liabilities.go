package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-ledger-go/internal/allocation"
	"finance-ledger-go/internal/amortize"
	"finance-ledger-go/internal/database"
	"finance-ledger-go/internal/ledger"
	"finance-ledger-go/internal/models"
)

var errOverpayment = errors.New("principal exceeds remaining balance")

type disbursementInput struct {
	AccountID uint            `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type initialPaymentInput struct {
	AccountID uint            `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// POST /v1/liabilities
func (s *Server) createLiability(c *gin.Context) {
	userID := currentUserID(c)

	var input struct {
		Name             string                `json:"name" binding:"required"`
		Lender           string                `json:"lender"`
		OriginalAmount   decimal.Decimal       `json:"original_amount"`
		AnnualRatePct    decimal.Decimal       `json:"annual_rate_pct"`
		PaymentAmount    decimal.Decimal       `json:"payment_amount"`
		Frequency        models.Frequency      `json:"frequency" binding:"required"`
		InterestIncluded *bool                 `json:"interest_included"`
		StartDate        time.Time             `json:"start_date" binding:"required"`
		TargetPayoffDate *time.Time            `json:"target_payoff_date"`
		Disbursements    []disbursementInput   `json:"disbursements"`
		InitialPayments  []initialPaymentInput `json:"initial_payments"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	interestIncluded := true
	if input.InterestIncluded != nil {
		interestIncluded = *input.InterestIncluded
	}

	entries, err := amortize.GenerateSchedule(amortize.ScheduleInput{
		Principal:             input.OriginalAmount,
		AnnualRatePct:         input.AnnualRatePct,
		PaymentAmount:         input.PaymentAmount,
		StartDate:             input.StartDate,
		EndDate:               input.TargetPayoffDate,
		Frequency:             input.Frequency,
		InterestIncluded:      interestIncluded,
		StartingPaymentNumber: 1,
	})
	if err != nil {
		c.JSON(422, gin.H{"error": err.Error()})
		return
	}

	li := models.Liability{
		UUID:             uuid.New().String(),
		UserID:           userID,
		Name:             input.Name,
		Lender:           input.Lender,
		OriginalAmount:   input.OriginalAmount,
		CurrentBalance:   input.OriginalAmount,
		AnnualRatePct:    input.AnnualRatePct,
		PaymentAmount:    entries[0].Amount,
		Frequency:        input.Frequency,
		InterestIncluded: interestIncluded,
		StartDate:        input.StartDate,
		TargetPayoffDate: input.TargetPayoffDate,
		NextDueDate:      &entries[0].DueDate,
		Status:           models.LiabilityActive,
	}
	if !input.PaymentAmount.IsZero() {
		li.PaymentAmount = input.PaymentAmount
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&li).Error; err != nil {
			return err
		}
		for _, d := range input.Disbursements {
			if err := ledger.Disburse(tx, userID, d.AccountID, li.UUID, d.Amount); err != nil {
				return err
			}
		}
		rows := entriesToModels(entries, &li)
		return tx.Create(&rows).Error
	})
	if err != nil {
		ledgerStatus(c, err)
		return
	}

	// Initial payments commit leg by leg after creation; the response names
	// any leg that failed so the caller can retry just that leg.
	report := &allocation.Report{}
	for _, p := range input.InitialPayments {
		leg := allocation.Allocation{
			LiabilityUUID: li.UUID,
			Amount:        p.Amount,
			Principal:     p.Amount,
		}
		report.Record(li.UUID, s.applyPaymentLeg(userID, &li, p.AccountID, leg, li.StartDate))
	}

	slog.Info("liability created", "liability", li.UUID, "entries", len(entries))
	c.JSON(201, gin.H{"liability": li, "payments": report})
}

func entriesToModels(entries []amortize.Entry, li *models.Liability) []models.ScheduleEntry {
	rows := make([]models.ScheduleEntry, len(entries))
	for i, e := range entries {
		rows[i] = models.ScheduleEntry{
			UserID:        li.UserID,
			LiabilityID:   li.ID,
			DueDate:       e.DueDate,
			Amount:        e.Amount,
			Principal:     e.Principal,
			Interest:      e.Interest,
			PaymentNumber: e.PaymentNumber,
			Status:        models.EntryUpcoming,
		}
	}
	return rows
}

// GET /v1/liabilities
func (s *Server) listLiabilities(c *gin.Context) {
	userID := currentUserID(c)
	var liabilities []models.Liability
	err := database.DB.Where("user_id = ? AND status <> ?", userID, models.LiabilityDeleted).
		Order("id").Find(&liabilities).Error
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, liabilities)
}

func (s *Server) loadLiability(c *gin.Context) (*models.Liability, bool) {
	userID := currentUserID(c)
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	var li models.Liability
	err := database.DB.Where("id = ? AND user_id = ? AND status <> ?", id, userID, models.LiabilityDeleted).
		First(&li).Error
	if err != nil {
		ledgerStatus(c, err)
		return nil, false
	}
	return &li, true
}

// GET /v1/liabilities/:id
func (s *Server) getLiability(c *gin.Context) {
	li, ok := s.loadLiability(c)
	if !ok {
		return
	}
	c.JSON(200, li)
}

// GET /v1/liabilities/:id/schedule?status=upcoming
func (s *Server) listSchedule(c *gin.Context) {
	li, ok := s.loadLiability(c)
	if !ok {
		return
	}
	q := database.DB.Where("liability_id = ? AND user_id = ?", li.ID, li.UserID)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var entries []models.ScheduleEntry
	if err := q.Order("payment_number").Find(&entries).Error; err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, entries)
}

// currentEntryInterest returns the interest component of the liability's
// soonest upcoming entry, used as the allocation default.
func currentEntryInterest(li *models.Liability) decimal.Decimal {
	var entry models.ScheduleEntry
	err := database.DB.Where("liability_id = ? AND status = ?", li.ID, models.EntryUpcoming).
		Order("due_date").First(&entry).Error
	if err != nil {
		return decimal.Zero
	}
	return entry.Interest
}

// applyPaymentLeg commits one payment leg atomically: the account/bucket
// debit, the payment record, the liability balance decrement and the
// schedule-entry state all land in one transaction or not at all.
func (s *Server) applyPaymentLeg(userID uint, li *models.Liability, accountID uint, leg allocation.Allocation, date time.Time) error {
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := ledger.PayFromAccount(tx, userID, accountID, li.UUID, leg.Amount); err != nil {
			return err
		}

		payment := models.LiabilityPayment{
			UserID:        userID,
			LiabilityID:   li.ID,
			AccountID:     accountID,
			Amount:        leg.Amount,
			Principal:     leg.Principal,
			Interest:      leg.Interest,
			Fees:          leg.Fees,
			Date:          date,
			TransactionID: uuid.New().String(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		// Only the principal component reduces the balance, and never
		// below zero.
		if leg.Principal.IsPositive() {
			res := tx.Model(&models.Liability{}).
				Where("id = ? AND user_id = ? AND current_balance >= ?", li.ID, userID, leg.Principal).
				Update("current_balance", gorm.Expr("current_balance - ?", leg.Principal))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errOverpayment
			}
		}

		// Settle the soonest upcoming entry and refresh the cached next
		// due date.
		var entry models.ScheduleEntry
		err := tx.Where("liability_id = ? AND status = ?", li.ID, models.EntryUpcoming).
			Order("due_date").First(&entry).Error
		if err == nil {
			if err := tx.Model(&entry).Update("status", models.EntryPaid).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var fresh models.Liability
		if err := tx.Where("id = ?", li.ID).First(&fresh).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{}
		var next models.ScheduleEntry
		err = tx.Where("liability_id = ? AND status = ?", li.ID, models.EntryUpcoming).
			Order("due_date").First(&next).Error
		if err == nil {
			updates["next_due_date"] = next.DueDate
		} else if errors.Is(err, gorm.ErrRecordNotFound) {
			updates["next_due_date"] = nil
		} else {
			return err
		}
		if fresh.CurrentBalance.IsZero() {
			updates["status"] = models.LiabilityPaidOff
		}
		return tx.Model(&models.Liability{}).Where("id = ?", li.ID).Updates(updates).Error
	})
	if err == nil {
		paymentsRecorded.Inc()
	}
	return err
}

// POST /v1/liabilities/:id/payments
func (s *Server) recordPayment(c *gin.Context) {
	userID := currentUserID(c)
	li, ok := s.loadLiability(c)
	if !ok {
		return
	}

	var input struct {
		AccountID uint             `json:"account_id" binding:"required"`
		Amount    decimal.Decimal  `json:"amount"`
		Interest  *decimal.Decimal `json:"interest"`
		Fees      *decimal.Decimal `json:"fees"`
		Date      *time.Time       `json:"date"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	// Single-liability payment is the N=1 case of the allocator.
	allocs, err := allocation.AutoAllocate(input.Amount, []allocation.Candidate{{
		LiabilityUUID:   li.UUID,
		Expected:        li.PaymentAmount,
		DefaultInterest: currentEntryInterest(li),
	}})
	if err != nil {
		c.JSON(422, gin.H{"error": err.Error()})
		return
	}
	leg := allocs[0]
	if input.Interest != nil || input.Fees != nil {
		interest, fees := leg.Interest, leg.Fees
		if input.Interest != nil {
			interest = *input.Interest
		}
		if input.Fees != nil {
			fees = *input.Fees
		}
		if err := leg.Override(interest, fees); err != nil {
			c.JSON(422, gin.H{"error": err.Error()})
			return
		}
	}

	date := time.Now().UTC()
	if input.Date != nil {
		date = *input.Date
	}

	if err := s.applyPaymentLeg(userID, li, input.AccountID, leg, date); err != nil {
		if errors.Is(err, errOverpayment) {
			c.JSON(422, gin.H{"error": "overpayment"})
			return
		}
		ledgerStatus(c, err)
		return
	}
	c.JSON(200, gin.H{"allocation": leg})
}

// POST /v1/payments/lump — one payment split across several liabilities.
// Legs commit independently: a failed leg never rolls back a committed one,
// and the report names each leg's outcome.
func (s *Server) recordLumpPayment(c *gin.Context) {
	userID := currentUserID(c)

	var input struct {
		AccountID      uint            `json:"account_id" binding:"required"`
		Total          decimal.Decimal `json:"total"`
		LiabilityUUIDs []string        `json:"liability_uuids"`
		Overrides      []struct {
			LiabilityUUID string          `json:"liability_uuid"`
			Interest      decimal.Decimal `json:"interest"`
			Fees          decimal.Decimal `json:"fees"`
		} `json:"overrides"`
		Date *time.Time `json:"date"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	q := database.DB.Where("user_id = ? AND status = ?", userID, models.LiabilityActive)
	if len(input.LiabilityUUIDs) > 0 {
		q = q.Where("uuid IN ?", input.LiabilityUUIDs)
	}
	var liabilities []models.Liability
	if err := q.Order("id").Find(&liabilities).Error; err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	if len(liabilities) == 0 {
		c.JSON(404, gin.H{"error": "no_active_liabilities"})
		return
	}

	byUUID := map[string]*models.Liability{}
	candidates := make([]allocation.Candidate, len(liabilities))
	for i := range liabilities {
		li := &liabilities[i]
		byUUID[li.UUID] = li
		candidates[i] = allocation.Candidate{
			LiabilityUUID:   li.UUID,
			Expected:        li.PaymentAmount,
			DefaultInterest: currentEntryInterest(li),
		}
	}

	allocs, err := allocation.AutoAllocate(input.Total, candidates)
	if err != nil {
		c.JSON(422, gin.H{"error": err.Error()})
		return
	}
	for _, o := range input.Overrides {
		for i := range allocs {
			if allocs[i].LiabilityUUID == o.LiabilityUUID {
				if err := allocs[i].Override(o.Interest, o.Fees); err != nil {
					c.JSON(422, gin.H{"error": err.Error()})
					return
				}
			}
		}
	}
	if err := allocation.ValidateSum(allocs, input.Total); err != nil {
		c.JSON(422, gin.H{"error": err.Error()})
		return
	}

	date := time.Now().UTC()
	if input.Date != nil {
		date = *input.Date
	}

	report := &allocation.Report{}
	for _, leg := range allocs {
		li := byUUID[leg.LiabilityUUID]
		err := s.applyPaymentLeg(userID, li, input.AccountID, leg, date)
		if err != nil {
			paymentLegsFailed.Inc()
			slog.Warn("payment leg failed", "liability", leg.LiabilityUUID, "error", err)
		}
		report.Record(leg.LiabilityUUID, err)
	}

	status := 200
	if !report.AllOK() {
		status = 207
	}
	c.JSON(status, gin.H{"allocations": allocs, "report": report})
}
