package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quantlake/ohlcv-gateway/internal/models"
	"github.com/quantlake/ohlcv-gateway/internal/objstore"
	"github.com/quantlake/ohlcv-gateway/internal/partindex"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
)

// ListSymbols handles symbol enumeration
// GET /v1/symbols?fresh=true
func (h *Handler) ListSymbols(c *fiber.Ctx) error {
	fresh := c.QueryBool("fresh", false)

	symbols, err := h.index.ListSymbols(c.Context(), fresh)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(models.SymbolListResponse{
		Symbols: symbols,
		Count:   len(symbols),
	})
}

// ListPartitions handles partition listing for one symbol. Absolute filters
// (year/month/day) and a relative range (7d, 2w, 3m, 1y back from today) can
// both narrow the result.
// GET /v1/symbols/:symbol/partitions?timeframe=1d&range=7d&page_size=100&page_token=xxx
func (h *Handler) ListPartitions(c *fiber.Ctx) error {
	filter, err := h.coordFromQuery(c)
	if err != nil {
		return h.respondError(c, err)
	}

	if filter.Exchange == "" {
		filter.Exchange = h.layout.Exchange
	}
	filter.Symbol = pathcodec.NormalizeSymbol(c.Params("symbol"), filter.Exchange)

	cutoff, err := rangeCutoff(c.Query("range"), time.Now().UTC())
	if err != nil {
		return h.respondError(c, err)
	}

	pageSize, err := queryInt(c, "page_size")
	if err != nil {
		return h.respondError(c, err)
	}
	token := c.Query("page_token")
	fresh := c.QueryBool("fresh", false)

	page, err := h.index.ListPartitions(c.Context(), filter, pageSize, token, fresh)
	if err != nil {
		return h.respondError(c, err)
	}

	if !cutoff.IsZero() {
		page.Partitions = partitionsSince(page.Partitions, cutoff)
	}

	// Nothing found at all is a miss; an empty page mid-pagination is not,
	// the client follows the token.
	if len(page.Partitions) == 0 && token == "" && page.NextToken == "" {
		return h.respondError(c, fmt.Errorf("no partitions found for symbol %s: %w",
			filter.Symbol, objstore.ErrNotFound))
	}

	return c.JSON(models.PartitionListResponse{
		Partitions: page.Partitions,
		Count:      len(page.Partitions),
		NextToken:  page.NextToken,
	})
}

// rangeCutoff resolves a relative range like 7d, 2w, 3m or 1y to the oldest
// partition date it still covers. Empty means no range filter.
func rangeCutoff(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if len(raw) < 2 {
		return time.Time{}, &paramError{param: "range", value: raw}
	}

	n, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || n <= 0 {
		return time.Time{}, &paramError{param: "range", value: raw}
	}

	switch raw[len(raw)-1] {
	case 'd':
		return now.AddDate(0, 0, -n), nil
	case 'w':
		return now.AddDate(0, 0, -7*n), nil
	case 'm':
		return now.AddDate(0, -n, 0), nil
	case 'y':
		return now.AddDate(-n, 0, 0), nil
	}
	return time.Time{}, &paramError{param: "range", value: raw}
}

// partitionsSince keeps partitions dated on or after the cutoff day.
func partitionsSince(partitions []partindex.Partition, cutoff time.Time) []partindex.Partition {
	day := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]partindex.Partition, 0, len(partitions))
	for _, p := range partitions {
		coord := p.Coordinate
		date := time.Date(coord.Year, time.Month(coord.Month), coord.Day, 0, 0, 0, 0, time.UTC)
		if !date.Before(day) {
			out = append(out, p)
		}
	}
	return out
}
