package models

import (
	"time"

	"github.com/quantlake/ohlcv-gateway/internal/partindex"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SymbolListResponse represents the symbol enumeration response
type SymbolListResponse struct {
	Symbols []string `json:"symbols"`
	Count   int      `json:"count"`
}

// PartitionListResponse represents one page of partition listings
type PartitionListResponse struct {
	Partitions []partindex.Partition `json:"partitions"`
	Count      int                   `json:"count"`
	NextToken  string                `json:"next_token,omitempty"`
}

// GrantResponse represents a presigned access grant
type GrantResponse struct {
	Key       string            `json:"key"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	ExpiresAt time.Time         `json:"expires_at"`
	Fields    map[string]string `json:"fields"`
}

// UploadResponse represents a completed direct upload
type UploadResponse struct {
	Key       string `json:"key"`
	Size      int64  `json:"size"`
	RequestID string `json:"request_id"`
}

// PreviewResponse represents decoded parquet rows
type PreviewResponse struct {
	Key   string           `json:"key"`
	Rows  []map[string]any `json:"rows"`
	Count int              `json:"count"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
