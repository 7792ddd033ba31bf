package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"prediction-contest/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleTable map[string]models.Role

func (t roleTable) UserRole(_ context.Context, id string) (models.Role, error) {
	role, ok := t[id]
	if !ok {
		return models.RoleUser, errors.New("not found")
	}
	return role, nil
}

func status(t *testing.T, app *fiber.App, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/x", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func okHandler(c *fiber.Ctx) error { return c.SendString("ok") }

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/x", GatewayAuthMiddleware("s3cret"), okHandler)

	assert.Equal(t, 401, status(t, app, nil))
	assert.Equal(t, 401, status(t, app, map[string]string{"Authorization": "Bearer nope"}))
	assert.Equal(t, 401, status(t, app, map[string]string{"Authorization": "Bearer "}))
	assert.Equal(t, 200, status(t, app, map[string]string{"Authorization": "Bearer s3cret"}))
	assert.Equal(t, 200, status(t, app, map[string]string{"Authorization": "s3cret"}))
}

func TestGatewayToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"abc", "abc", true},
		{"  Bearer abc  ", "abc", true},
		{"", "", false},
		{"Bearer ", "", false},
	}
	for _, tc := range cases {
		got, ok := gatewayToken(tc.header)
		assert.Equal(t, tc.want, got, tc.header)
		assert.Equal(t, tc.ok, ok, tc.header)
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/x", UserContextMiddleware(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": c.Locals("user_id"), "roles": c.Locals("user_roles")})
	})

	assert.Equal(t, 401, status(t, app, nil))
	assert.Equal(t, 200, status(t, app, map[string]string{"X-User-ID": "u-1", "X-User-Roles": "user, organizer"}))
}

func TestRequireRole(t *testing.T) {
	lookup := roleTable{"org": models.RoleOrganizer, "adm": models.RoleAdmin, "plain": models.RoleUser}

	app := fiber.New()
	app.Get("/x", UserContextMiddleware(), RequireRole(lookup, models.RoleOrganizer), okHandler)

	cases := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"local organizer", map[string]string{"X-User-ID": "org"}, 200},
		{"local admin", map[string]string{"X-User-ID": "adm"}, 200},
		{"plain user", map[string]string{"X-User-ID": "plain"}, 403},
		{"unknown user", map[string]string{"X-User-ID": "ghost"}, 403},
		{"gateway role", map[string]string{"X-User-ID": "ghost", "X-User-Roles": "organizer"}, 200},
		{"gateway admin", map[string]string{"X-User-ID": "plain", "X-User-Roles": "admin"}, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, status(t, app, tc.headers))
		})
	}
}
