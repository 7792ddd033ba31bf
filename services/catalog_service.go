package services

import (
	"strconv"

	"prediction-contest/models"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// CatalogService serves the mirrored fixture catalogue to organizers.
type CatalogService struct {
	DB      *gorm.DB
	Clock   clockwork.Clock
	Leagues []int64
}

func NewCatalogService(db *gorm.DB, clock clockwork.Clock, leagues []int64) *CatalogService {
	return &CatalogService{DB: db, Clock: clock, Leagues: leagues}
}

func (s *CatalogService) ListLeagues(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"leagues": s.Leagues})
}

// ListFixtures returns upcoming catalogue fixtures of one league.
func (s *CatalogService) ListFixtures(c *fiber.Ctx) error {
	leagueID, err := strconv.ParseInt(c.Query("league_id"), 10, 64)
	if err != nil || leagueID <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "league_id is required"})
	}

	var fixtures []models.CatalogFixture
	err = s.DB.WithContext(c.UserContext()).
		Where("league_id = ? AND kickoff > ?", leagueID, s.Clock.Now()).
		Order("kickoff ASC").
		Limit(200).
		Find(&fixtures).Error
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fixtures)
}
