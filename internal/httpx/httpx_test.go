package httpx

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", apperr.ErrEmptyMessage, 422, "EMPTY_MESSAGE", "message body or attachments are required"},
		{"not found", apperr.ErrRecipientNotFound, 404, "USER_NOT_FOUND", "recipient is not registered"},
		{"permission", apperr.ErrNotAMember, 403, "NOT_A_MEMBER", ""},
		{"credentials", apperr.ErrInvalidCredentials, 401, "INVALID_CLIENT_CREDENTIALS", ""},
		{"transient", apperr.Transient(errors.New("deadlock detected")), 503, "TRANSIENT_STORE_ERROR", ""},
		{"internal hides cause", apperr.Internal(errors.New("pq: secret table name")), 500, "INTERNAL", "Internal server error"},
		{"foreign error", errors.New("boom"), 500, "INTERNAL", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return FromError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Error)
			}
			assert.NotContains(t, body.Error, "deadlock")
			assert.NotContains(t, body.Error, "secret")
		})
	}
}

func TestParamUint(t *testing.T) {
	app := fiber.New()
	app.Get("/m/:id", func(c *fiber.Ctx) error {
		id, err := ParamUint(c, "id")
		if err != nil {
			return BadRequest(c, "invalid_id", err.Error())
		}
		return c.JSON(fiber.Map{"id": id})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/m/42", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/m/0", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/m/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}
