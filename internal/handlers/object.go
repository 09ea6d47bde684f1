package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quantlake/ohlcv-gateway/internal/mediator"
	"github.com/quantlake/ohlcv-gateway/internal/models"
)

// GetObject resolves a coordinate or explicit key and delivers the object
// GET /v1/object?key=... | ?timeframe=...&symbol=...&year=...&month=...&day=...
// mode=stream (default) sends the bytes, mode=redirect answers 302 with a
// presigned Location, mode=url answers a JSON grant.
func (h *Handler) GetObject(c *fiber.Ctx) error {
	mode := c.Query("mode", "stream")
	if mode != "stream" && mode != "redirect" && mode != "url" {
		return h.respondError(c, &paramError{param: "mode", value: mode})
	}

	expiresIn, err := h.expiryFromQuery(c)
	if err != nil {
		return h.respondError(c, err)
	}

	grant, err := h.resolveRead(c, mode == "stream", expiresIn)
	if err != nil {
		return h.respondError(c, err)
	}

	if grant.Mode == mediator.GrantStream {
		c.Set(fiber.HeaderContentType, "application/octet-stream")
		c.Set(fiber.HeaderContentLength, strconv.FormatInt(grant.Ref.Size, 10))
		return c.SendStream(grant.Body, int(grant.Ref.Size))
	}

	if mode == "redirect" || mode == "stream" {
		// Oversized objects requested as stream also land here
		return c.Redirect(grant.URL, fiber.StatusFound)
	}

	return c.JSON(models.GrantResponse{
		Key:       grant.Ref.Key,
		URL:       grant.URL,
		Method:    fiber.MethodGet,
		ExpiresAt: grant.ExpiresAt,
		Fields:    grant.Fields,
	})
}

// resolveRead dispatches between key and coordinate addressing.
func (h *Handler) resolveRead(c *fiber.Ctx, wantStream bool, expiresIn time.Duration) (mediator.Grant, error) {
	if key := c.Query("key"); key != "" {
		return h.mediator.ReadByKey(c.Context(), key, wantStream, expiresIn)
	}

	coord, err := h.coordFromQuery(c)
	if err != nil {
		return mediator.Grant{}, err
	}

	return h.mediator.ResolveForRead(c.Context(), coord, wantStream, expiresIn)
}

// expiryFromQuery reads expires_in (seconds), falling back to the configured
// default when absent. An explicit value is validated downstream.
func (h *Handler) expiryFromQuery(c *fiber.Ctx) (time.Duration, error) {
	raw := c.Query("expires_in")
	if raw == "" {
		return h.mediator.DefaultExpiry(), nil
	}

	seconds, err := queryInt(c, "expires_in")
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}
