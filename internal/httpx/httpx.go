package httpx

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gekymedia/gekychat-sub007/internal/apperr"
	"github.com/gofiber/fiber/v2"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func requestID(c *fiber.Ctx) string {
	if v := c.Locals("requestid"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Error(c *fiber.Ctx, status int, code string, message string) error {
	if message == "" {
		message = "Request failed"
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
	})
}

func BadRequest(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusBadRequest, code, message)
}

func Unauthorized(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func NotFound(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusNotFound, code, message)
}

func Unprocessable(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnprocessableEntity, code, message)
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

// FromError writes the response for an error returned by the service layer.
// Only AppError messages reach the client; everything else is a generic 500.
func FromError(c *fiber.Ctx, err error) error {
	ae, ok := apperr.As(err)
	if !ok {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return Error(c, fe.Code, "", fe.Message)
		}
		return Internal(c, string(apperr.CodeInternal))
	}

	code := string(ae.Code)
	switch ae.Kind {
	case apperr.KindValidation:
		return Unprocessable(c, code, ae.Message)
	case apperr.KindNotFound:
		return NotFound(c, code, ae.Message)
	case apperr.KindPermission:
		if ae.Code == apperr.CodeInvalidCredentials {
			return Unauthorized(c, code, ae.Message)
		}
		return Forbidden(c, code, ae.Message)
	case apperr.KindTransient:
		c.Set(fiber.HeaderRetryAfter, "1")
		return Error(c, fiber.StatusServiceUnavailable, code, ae.Message)
	default:
		return Internal(c, code)
	}
}

func LocalUint(c *fiber.Ctx, key string) (uint, error) {
	v := c.Locals(key)
	if v == nil {
		return 0, fmt.Errorf("missing local %s", key)
	}
	u, ok := v.(uint)
	if !ok {
		return 0, fmt.Errorf("invalid local %s", key)
	}
	return u, nil
}

// ParamUint parses a positive integer route parameter.
func ParamUint(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(v), nil
}
