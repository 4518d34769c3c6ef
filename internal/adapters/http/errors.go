package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/siteboundary/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status     int                      `json:"status"`
	Code       string                   `json:"code"`    // Error code: bad_request, not_found, parse_failure, etc.
	Message    string                   `json:"message"` // Human-readable message
	RequestID  string                   `json:"request_id,omitempty"`
	Validation *domain.ValidationReport `json:"validation,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, 503, "unavailable", msg)
}

// errValidation returns a 422 carrying the validation report of a rejected import.
func errValidation(c *fiber.Ctx, report domain.ValidationReport) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(422).JSON(APIError{
		Status:     422,
		Code:       "validation_failed",
		Message:    domain.ErrValidationFailed.Error(),
		RequestID:  reqID,
		Validation: &report,
	})
}

// errFromDomain maps use case errors to API errors.
func errFromDomain(c *fiber.Ctx, err error) error {
	var fe *domain.FormatError
	switch {
	case errors.As(err, &fe):
		return newError(c, 422, domain.KindSlug(fe.Kind), err.Error())
	case errors.Is(err, domain.ErrUnknownFormat), errors.Is(err, domain.ErrExportUnsupported):
		return newError(c, 400, "unsupported_format", err.Error())
	case errors.Is(err, domain.ErrInvalidSession):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNoPolygon):
		return newError(c, 404, "no_polygon", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "no boundary set for this session")
	case errors.Is(err, domain.ErrRevisionConflict):
		return newError(c, 409, "revision_conflict", "boundary was changed concurrently, retry the request")
	}
	LoggerFromCtx(c.UserContext()).Error("request failed", "error", err)
	return errInternal(c, "internal error")
}
