package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"prediction-contest/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// UserRole returns the locally granted role of a user.
func (s *UserService) UserRole(ctx context.Context, id string) (models.Role, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Select("id", "role").First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoleUser, ErrUserNotFound
		}
		return models.RoleUser, err
	}
	return user.Role, nil
}

// GrantRole sets a user's role by username. It reports false when the user
// already had it.
func (s *UserService) GrantRole(ctx context.Context, username string, role models.Role) (bool, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	if user.Role == role {
		return false, nil
	}
	if err := s.DB.WithContext(ctx).Model(&user).Update("role", role).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) GetMe(c *fiber.Ctx) error {
	var user models.User
	if err := s.DB.WithContext(c.UserContext()).First(&user, "id = ?", userID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "user not synced yet"})
		}
		return respondError(c, err)
	}
	return c.JSON(user)
}

// SearchUsers searches the local user mirror by username or email.
func (s *UserService) SearchUsers(c *fiber.Ctx) error {
	query := c.Query("q", "")
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	db := s.DB.WithContext(c.UserContext()).Model(&models.User{}).Limit(limit)
	if query != "" {
		searchTerm := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", searchTerm, searchTerm)
	}

	var users []models.User
	if err := db.Order("username ASC").Find(&users).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "search failed", "details": err.Error()})
	}

	type UserSummary struct {
		ID       string      `json:"id"`
		Username string      `json:"username"`
		Role     models.Role `json:"role"`
	}
	res := make([]UserSummary, len(users))
	for i, u := range users {
		res[i] = UserSummary{ID: u.ID, Username: u.Username, Role: u.Role}
	}
	return c.JSON(res)
}

func (s *UserService) SetUserRole(c *fiber.Ctx) error {
	var body struct {
		Role models.Role `json:"role"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	switch body.Role {
	case models.RoleUser, models.RoleOrganizer, models.RoleAdmin:
	default:
		return c.Status(400).JSON(fiber.Map{"error": "role must be user, organizer or admin"})
	}
	res := s.DB.WithContext(c.UserContext()).Model(&models.User{}).Where("id = ?", c.Params("id")).Update("role", body.Role)
	if res.Error != nil {
		return respondError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "user not found"})
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "role": body.Role})
}
