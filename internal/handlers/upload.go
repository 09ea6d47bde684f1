package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/quantlake/ohlcv-gateway/internal/models"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
)

// PresignUpload issues a write-capable presigned URL
// POST /v1/presign/upload with a JSON body naming a key or a coordinate
func (h *Handler) PresignUpload(c *fiber.Ctx) error {
	var req models.PresignUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_JSON",
				Message: "Failed to parse JSON body",
				Details: map[string]interface{}{"error": err.Error()},
			},
		})
	}

	key, err := h.uploadKey(req)
	if err != nil {
		return h.respondError(c, err)
	}

	expiresIn := h.mediator.DefaultExpiry()
	if req.ExpiresInSeconds != nil {
		expiresIn = time.Duration(*req.ExpiresInSeconds) * time.Second
	}

	grant, err := h.mediator.ResolveForWrite(c.Context(), key, expiresIn)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(models.GrantResponse{
		Key:       key,
		URL:       grant.URL,
		Method:    fiber.MethodPut,
		ExpiresAt: grant.ExpiresAt,
		Fields:    grant.Fields,
	})
}

// Upload accepts a server-mediated multipart upload
// POST /v1/upload with form file "file" plus a key or coordinate fields
func (h *Handler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "MISSING_FILE",
				Message: "Multipart form must carry a \"file\" part",
			},
		})
	}

	key, err := h.uploadKey(models.PresignUploadRequest{
		Key:       c.FormValue("key"),
		Timeframe: c.FormValue("timeframe"),
		Exchange:  c.FormValue("exchange"),
		Symbol:    c.FormValue("symbol"),
		Year:      formInt(c, "year"),
		Month:     formInt(c, "month"),
		Day:       formInt(c, "day"),
		Filename:  fileHeader.Filename,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.respondError(c, err)
	}
	defer func() { _ = file.Close() }()

	ref, err := h.mediator.UploadDirect(c.Context(), key, file)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.UploadResponse{
		Key:       ref.Key,
		Size:      ref.Size,
		RequestID: uuid.NewString(),
	})
}

// uploadKey derives the object key for a write: an explicit key wins, else
// the coordinate is encoded and the filename appended.
func (h *Handler) uploadKey(req models.PresignUploadRequest) (string, error) {
	if req.Key != "" {
		return req.Key, nil
	}

	exchange := req.Exchange
	if exchange == "" {
		exchange = h.layout.Exchange
	}

	coord := pathcodec.Coordinate{
		Timeframe: req.Timeframe,
		Exchange:  exchange,
		Symbol:    pathcodec.NormalizeSymbol(req.Symbol, exchange),
		Year:      req.Year,
		Month:     req.Month,
		Day:       req.Day,
	}
	if !coord.Complete() {
		return "", fmt.Errorf("%w: upload coordinate must be fully specified",
			pathcodec.ErrInvalidCoordinate)
	}

	prefix, err := h.template.Encode(coord)
	if err != nil {
		return "", err
	}

	filename := req.Filename
	if filename == "" {
		filename = "part-" + uuid.NewString() + ".parquet"
	}

	return prefix + filename, nil
}

// formInt parses an optional integer form value; malformed values read as
// zero and surface later as an incomplete coordinate.
func formInt(c *fiber.Ctx, name string) int {
	n, err := strconv.Atoi(c.FormValue(name))
	if err != nil {
		return 0
	}
	return n
}
