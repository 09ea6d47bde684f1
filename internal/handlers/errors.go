package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/quantlake/ohlcv-gateway/internal/mediator"
	"github.com/quantlake/ohlcv-gateway/internal/models"
	"github.com/quantlake/ohlcv-gateway/internal/objstore"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
	"github.com/quantlake/ohlcv-gateway/internal/preview"
)

// respondError translates domain sentinels into the HTTP error taxonomy.
// Anything unrecognized is treated as a store-side failure.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	var pErr *paramError

	code := fiber.StatusBadGateway
	errorCode := "STORE_ERROR"

	switch {
	case errors.As(err, &pErr):
		code, errorCode = fiber.StatusBadRequest, "INVALID_PARAMETER"
	case errors.Is(err, pathcodec.ErrInvalidCoordinate):
		code, errorCode = fiber.StatusBadRequest, "INVALID_COORDINATE"
	case errors.Is(err, pathcodec.ErrUnparsablePath):
		code, errorCode = fiber.StatusBadRequest, "UNPARSABLE_PATH"
	case errors.Is(err, mediator.ErrAmbiguousCoordinate):
		code, errorCode = fiber.StatusBadRequest, "AMBIGUOUS_COORDINATE"
	case errors.Is(err, mediator.ErrInvalidExpiry):
		code, errorCode = fiber.StatusBadRequest, "INVALID_EXPIRY"
	case errors.Is(err, mediator.ErrTooLarge):
		code, errorCode = fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.Is(err, preview.ErrInvalidFormat):
		code, errorCode = fiber.StatusUnprocessableEntity, "NOT_PARQUET"
	case errors.Is(err, objstore.ErrNotFound):
		code, errorCode = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, objstore.ErrConflict):
		code, errorCode = fiber.StatusConflict, "CONFLICT"
	case errors.Is(err, objstore.ErrTimeout):
		code, errorCode = fiber.StatusGatewayTimeout, "STORE_TIMEOUT"
	}

	if code >= fiber.StatusInternalServerError {
		h.logger.Error("Request failed",
			"path", c.Path(), "method", c.Method(), "status", code, "error", err)
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    errorCode,
			Message: err.Error(),
		},
	})
}
