package handlers

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/quantlake/ohlcv-gateway/internal/mediator"
	"github.com/quantlake/ohlcv-gateway/internal/models"
	"github.com/quantlake/ohlcv-gateway/internal/preview"
)

// maxPreviewRows caps how many rows one preview request can ask for.
const maxPreviewRows = 1000

// PreviewObject decodes the leading rows of a parquet partition to JSON
// GET /v1/object/preview?key=...&limit=10 (coordinate params also accepted)
func (h *Handler) PreviewObject(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return h.respondError(c, err)
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > maxPreviewRows {
		limit = maxPreviewRows
	}

	grant, err := h.resolveRead(c, true, h.mediator.DefaultExpiry())
	if err != nil {
		return h.respondError(c, err)
	}

	if grant.Mode != mediator.GrantStream {
		// The object exceeded the stream size cap; decoding it would pin the
		// same memory the cap protects.
		return h.respondError(c, fmt.Errorf("object %s too large to preview: %w",
			grant.Ref.Key, mediator.ErrTooLarge))
	}
	defer func() { _ = grant.Body.Close() }()

	data, err := io.ReadAll(grant.Body)
	if err != nil {
		return h.respondError(c, err)
	}

	rows, err := preview.Rows(data, limit)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(models.PreviewResponse{
		Key:   grant.Ref.Key,
		Rows:  rows,
		Count: len(rows),
	})
}
