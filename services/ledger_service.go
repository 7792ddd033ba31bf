package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"prediction-contest/models"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const historyPageSize = 10

type LedgerService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewLedgerService(db *gorm.DB, clock clockwork.Clock) *LedgerService {
	return &LedgerService{DB: db, Clock: clock}
}

// HistoryPage is one page of a user's balance history, newest first.
type HistoryPage struct {
	Entries []models.BalanceHistory `json:"entries"`
	Page    int                     `json:"page"`
	Pages   int                     `json:"pages"`
	Total   int64                   `json:"total"`
}

func pageCount(total int64, size int) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

func (s *LedgerService) History(ctx context.Context, userID string, page int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	q := s.DB.WithContext(ctx).Model(&models.BalanceHistory{}).Where("user_id = ?", userID)

	out := &HistoryPage{Page: page}
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, err
	}
	out.Pages = pageCount(out.Total, historyPageSize)
	err := q.Order("created_at DESC").
		Offset((page - 1) * historyPageSize).
		Limit(historyPageSize).
		Find(&out.Entries).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdminAdjust changes a user's balance by a signed amount with an
// admin_adjustment ledger entry.
func (s *LedgerService) AdminAdjust(ctx context.Context, userID string, amount decimal.Decimal, note string) (*models.BalanceHistory, error) {
	amount = amount.Truncate(2)
	if amount.IsZero() {
		return nil, fmt.Errorf("amount must be non-zero")
	}
	description := "Admin adjustment"
	if note = strings.TrimSpace(note); note != "" {
		description += ": " + note
	}

	var entry *models.BalanceHistory
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = PostLedger(ctx, NewGormStore(tx), LedgerPosting{
			UserID:      userID,
			Amount:      amount,
			Kind:        models.LedgerKindAdminAdjustment,
			Description: description,
		}, s.Clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🛠️ [LEDGER] Admin adjustment of %s for %s (balance %s)", amount.StringFixed(2), userID, entry.BalanceAfter.StringFixed(2))
	return entry, nil
}

func (s *LedgerService) GetBalanceHistory(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	history, err := s.History(c.UserContext(), userID(c), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(history)
}

func (s *LedgerService) AdjustUserBalance(c *fiber.Ctx) error {
	var body struct {
		Amount decimal.Decimal `json:"amount"`
		Note   string          `json:"note"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Amount.Truncate(2).IsZero() {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be non-zero"})
	}
	entry, err := s.AdminAdjust(c.UserContext(), c.Params("id"), body.Amount, body.Note)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}
