package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/siteboundary/internal/core/codec"
	"github.com/samirrijal/siteboundary/internal/core/domain"
	"github.com/samirrijal/siteboundary/internal/core/usecases"
	"github.com/samirrijal/siteboundary/internal/workflows"
)

var errEmptyPayload = errors.New("request body is empty")

// BoundaryResponse is the active polygon of a session.
type BoundaryResponse struct {
	SessionID string                 `json:"session_id"`
	Revision  int64                  `json:"revision"`
	Polygon   domain.BoundaryPolygon `json:"polygon"`
	Summary   domain.BoundarySummary `json:"summary"`
}

// ValidationResponse pairs a validation report with the polygon's measurements.
type ValidationResponse struct {
	Validation domain.ValidationReport `json:"validation"`
	Summary    domain.BoundarySummary  `json:"summary"`
}

// DrawRequest carries vertices placed on the map.
type DrawRequest struct {
	Vertices []domain.Coordinate `json:"vertices"`
	Metadata map[string]string   `json:"metadata,omitempty"`
}

// ListFormatsHandler returns decode/encode support per format.
func ListFormatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(deps.Boundaries.Capabilities())
	}
}

// ListSessionsHandler returns known sessions, paginated.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		ctx := c.UserContext()
		sessions, err := deps.Boundaries.List(ctx, limit, offset)
		if err != nil {
			return errFromDomain(c, err)
		}
		total, err := deps.Boundaries.CountSessions(ctx)
		if err != nil {
			return errFromDomain(c, err)
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: sessions, Pagination: pg})
	}
}

// GetBoundaryHandler returns the session's active polygon.
func GetBoundaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		p, rev, err := deps.Boundaries.Current(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(BoundaryResponse{
			SessionID: id,
			Revision:  rev,
			Polygon:   p,
			Summary:   usecases.Summarize(p),
		})
	}
}

// PutBoundaryHandler replaces the session's polygon with drawn vertices.
func PutBoundaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req DrawRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Vertices) == 0 {
			return errBadRequest(c, "vertices are required")
		}

		res, err := deps.Boundaries.Draw(c.UserContext(), c.Params("id"), req.Vertices, req.Metadata)
		return importResponse(c, res, err)
	}
}

// DeleteBoundaryHandler clears the session's polygon.
func DeleteBoundaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		change, err := deps.Boundaries.Clear(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(change)
	}
}

// ImportBoundaryHandler decodes an uploaded file and replaces the session's polygon.
// The payload is a multipart "file" field or the raw body; ?format= overrides
// routing by file extension.
func ImportBoundaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, filename, data, err := readPayload(c)
		if err != nil {
			return payloadError(c, err)
		}
		reject, err := rejectOverride(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res, err := deps.Boundaries.Import(c.UserContext(), usecases.ImportRequest{
			SessionID:     c.Params("id"),
			Format:        f,
			Filename:      filename,
			Data:          data,
			RejectInvalid: reject,
		})
		return importResponse(c, res, err)
	}
}

// ImportWKTHandler imports a WKT string sent as the request body.
//
// Deprecated: use POST /v1/sessions/:id/boundary/import?format=wkt.
func ImportWKTHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := bytes.TrimSpace(c.Body())
		if len(body) == 0 {
			return errBadRequest(c, errEmptyPayload.Error())
		}
		res, err := deps.Boundaries.ImportWKT(c.UserContext(), c.Params("id"), string(body))
		return importResponse(c, res, err)
	}
}

// StartImportHandler queues an asynchronous import workflow.
func StartImportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Imports == nil {
			return errUnavailable(c, "asynchronous imports are not enabled")
		}

		id := c.Params("id")
		if err := usecases.ValidateSessionID(id); err != nil {
			return errFromDomain(c, err)
		}
		f, filename, data, err := readPayload(c)
		if err != nil {
			return payloadError(c, err)
		}
		if f == "" {
			if f, err = codec.FormatFromExtension(filename); err != nil {
				return errFromDomain(c, err)
			}
		}
		reject, err := rejectOverride(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		input := workflows.ImportInput{
			SessionID:     id,
			Format:        f,
			Filename:      filename,
			Data:          data,
			RejectInvalid: deps.Boundaries.RejectsInvalid(),
		}
		if reject != nil {
			input.RejectInvalid = *reject
		}

		workflowID, runID, err := deps.Imports.StartImport(c.UserContext(), input)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("start import workflow", "session", id, "error", err)
			return errUnavailable(c, "could not start import")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"session_id":  id,
			"workflow_id": workflowID,
			"run_id":      runID,
		})
	}
}

// ExportBoundaryHandler encodes the session's polygon in the requested format.
func ExportBoundaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Query("format")
		if name == "" {
			return errBadRequest(c, "format query parameter is required")
		}
		f, err := domain.ParseFormat(name)
		if err != nil {
			return errFromDomain(c, err)
		}

		id := c.Params("id")
		data, err := deps.Boundaries.Export(c.UserContext(), id, f)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Content-Type", f.ContentType())
		c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="boundary-%s.%s"`, id, f.Extension()))
		c.Set("Cache-Control", "private, no-cache")
		return c.Send(data)
	}
}

// ValidateBoundaryHandler validates the session's active polygon.
func ValidateBoundaryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, _, err := deps.Boundaries.Current(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "private, no-cache")
		return c.JSON(ValidationResponse{
			Validation: deps.Boundaries.Validate(p),
			Summary:    usecases.Summarize(p),
		})
	}
}

// ValidatePolygonHandler validates a polygon without storing it. With ?format=
// the body is decoded as that format; otherwise it is a DrawRequest.
func ValidatePolygonHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p domain.BoundaryPolygon
		if c.Query("format") != "" {
			f, filename, data, err := readPayload(c)
			if err != nil {
				return payloadError(c, err)
			}
			if p, _, err = deps.Boundaries.Decode(c.UserContext(), f, filename, data); err != nil {
				return errFromDomain(c, err)
			}
		} else {
			var req DrawRequest
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
			p = domain.NewBoundaryPolygon(req.Vertices, req.Metadata)
		}

		return c.JSON(ValidationResponse{
			Validation: deps.Boundaries.Validate(p),
			Summary:    usecases.Summarize(p),
		})
	}
}

// HistoryHandler returns archived changes of a session, newest first.
func HistoryHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries, err := deps.Boundaries.History(c.UserContext(), c.Params("id"), c.QueryInt("limit", 20))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(entries)
	}
}

func importResponse(c *fiber.Ctx, res *usecases.ImportResult, err error) error {
	if errors.Is(err, domain.ErrValidationFailed) && res != nil {
		return errValidation(c, res.Report)
	}
	if err != nil {
		return errFromDomain(c, err)
	}
	return c.JSON(res)
}

// readPayload returns the declared format (empty when not given), the file
// name used for extension routing and the payload bytes.
func readPayload(c *fiber.Ctx) (domain.Format, string, []byte, error) {
	var f domain.Format
	if name := c.Query("format"); name != "" {
		parsed, err := domain.ParseFormat(name)
		if err != nil {
			return "", "", nil, err
		}
		f = parsed
	}

	if fh, err := c.FormFile("file"); err == nil {
		file, err := fh.Open()
		if err != nil {
			return "", "", nil, fmt.Errorf("open upload: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", "", nil, fmt.Errorf("read upload: %w", err)
		}
		if len(data) == 0 {
			return "", "", nil, errEmptyPayload
		}
		return f, fh.Filename, data, nil
	}

	data := bytes.Clone(c.Body())
	if len(bytes.TrimSpace(data)) == 0 {
		return "", "", nil, errEmptyPayload
	}
	return f, c.Query("filename"), data, nil
}

func payloadError(c *fiber.Ctx, err error) error {
	if errors.Is(err, errEmptyPayload) {
		return errBadRequest(c, err.Error())
	}
	return errFromDomain(c, err)
}

func rejectOverride(c *fiber.Ctx) (*bool, error) {
	raw := c.Query("reject_invalid")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("reject_invalid must be a boolean, got %q", raw)
	}
	return &v, nil
}
