package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/quantlake/ohlcv-gateway/internal/config"
	"github.com/quantlake/ohlcv-gateway/internal/logging"
	"github.com/quantlake/ohlcv-gateway/internal/mediator"
	"github.com/quantlake/ohlcv-gateway/internal/partindex"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger   *logging.Logger
	template *pathcodec.Template
	index    *partindex.Index
	mediator *mediator.Mediator
	layout   config.LayoutConfig
}

// New creates a new handler instance
func New(logger *logging.Logger, template *pathcodec.Template, index *partindex.Index,
	med *mediator.Mediator, layout config.LayoutConfig,
) *Handler {
	return &Handler{
		logger:   logger,
		template: template,
		index:    index,
		mediator: med,
		layout:   layout,
	}
}

// coordFromQuery builds a filter coordinate from query parameters. A missing
// parameter stays a wildcard; a malformed numeric one is an invalid
// coordinate.
func (h *Handler) coordFromQuery(c *fiber.Ctx) (pathcodec.Coordinate, error) {
	coord := pathcodec.Coordinate{
		Timeframe: c.Query("timeframe"),
		Exchange:  c.Query("exchange"),
	}

	if symbol := c.Query("symbol"); symbol != "" {
		if coord.Exchange == "" {
			coord.Exchange = h.layout.Exchange
		}
		coord.Symbol = pathcodec.NormalizeSymbol(symbol, coord.Exchange)
	}

	var err error
	if coord.Year, err = queryInt(c, "year"); err != nil {
		return pathcodec.Coordinate{}, err
	}
	if coord.Month, err = queryInt(c, "month"); err != nil {
		return pathcodec.Coordinate{}, err
	}
	if coord.Day, err = queryInt(c, "day"); err != nil {
		return pathcodec.Coordinate{}, err
	}

	return coord, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{param: name, value: raw}
	}
	return n, nil
}

// paramError marks a malformed request parameter.
type paramError struct {
	param string
	value string
}

func (e *paramError) Error() string {
	return "invalid value " + strconv.Quote(e.value) + " for parameter " + e.param
}
