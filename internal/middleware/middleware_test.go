package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"github.com/gekymedia/gekychat-sub007/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-only"

func signToken(t *testing.T, userID uint, secret string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	app.Get("/me", AuthRequired(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("userID")})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + signToken(t, 7, testSecret, time.Hour), 200},
		{"missing", "", 401},
		{"bad format", "Token abc", 401},
		{"wrong secret", "Bearer " + signToken(t, 7, "other", time.Hour), 401},
		{"expired", "Bearer " + signToken(t, 7, testSecret, -time.Minute), 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

type stubAuthenticator struct{}

func (stubAuthenticator) AuthenticateClient(ctx context.Context, clientID, secret string) (*models.PlatformClient, error) {
	if clientID == "crm" && secret == "s3cret" {
		return &models.PlatformClient{ID: 1, ClientID: "crm", OwnerUserID: 5}, nil
	}
	return nil, apperr.ErrInvalidCredentials
}

func TestPlatformAuth(t *testing.T) {
	app := fiber.New()
	app.Post("/hook", PlatformAuth(stubAuthenticator{}), func(c *fiber.Ctx) error {
		client := c.Locals("platformClient").(*models.PlatformClient)
		return c.SendString(PlatformClientKey(c) + "/" + client.ClientID)
	})

	send := func(id, secret string) int {
		req := httptest.NewRequest("POST", "/hook", nil)
		if id != "" {
			req.Header.Set(HeaderClientID, id)
		}
		if secret != "" {
			req.Header.Set(HeaderClientSecret, secret)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, 200, send("crm", "s3cret"))
	assert.Equal(t, 401, send("crm", "wrong"))
	assert.Equal(t, 401, send("", ""))
}

type stubLoader map[uint]*models.User

func (l stubLoader) LoadUser(ctx context.Context, id uint) (*models.User, error) {
	if u, ok := l[id]; ok {
		return u, nil
	}
	return nil, apperr.ErrUserNotFound
}

func TestLoadUserAndRequireAdmin(t *testing.T) {
	users := stubLoader{
		1: {ID: 1, IsAdmin: true},
		2: {ID: 2},
		3: {ID: 3, IsBanned: true},
	}
	app := fiber.New()
	app.Use(AuthRequired(testSecret), LoadUser(users))
	app.Get("/inbox", func(c *fiber.Ctx) error { return c.SendStatus(200) })
	app.Get("/admin", RequireAdmin(), func(c *fiber.Ctx) error { return c.SendStatus(200) })

	do := func(path string, userID uint) int {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID, testSecret, time.Hour))
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, 200, do("/inbox", 2))
	assert.Equal(t, 200, do("/admin", 1))
	assert.Equal(t, 403, do("/admin", 2))
	assert.Equal(t, 403, do("/inbox", 3))
	assert.Equal(t, 404, do("/inbox", 99))
}

func TestOriginAllowed(t *testing.T) {
	app := fiber.New()
	app.Use(OriginAllowed([]string{"https://web.gekychat.com"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	for origin, want := range map[string]int{
		"":                         200,
		"https://web.gekychat.com": 200,
		"https://evil.example":     403,
	} {
		req := httptest.NewRequest("GET", "/", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, origin)
	}
}
