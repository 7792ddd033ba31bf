package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// ErrorStatus maps service errors to HTTP status codes.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrTournamentNotFound), errors.Is(err, ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrUnknownFixture), errors.Is(err, ErrInvalidScore):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotAttendee):
		return fiber.StatusForbidden
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	case errors.Is(err, ErrAlreadyJoined), errors.Is(err, ErrAlreadyPaid),
		errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrTournamentFull), errors.Is(err, ErrPredictionClosed):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := ErrorStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
