package models

// PresignUploadRequest represents a request for a write-capable presigned
// URL. Either Key addresses the object directly, or the coordinate fields
// plus Filename build the key through the layout template.
type PresignUploadRequest struct {
	Key string `json:"key,omitempty"`

	Timeframe string `json:"timeframe,omitempty"`
	Exchange  string `json:"exchange,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Year      int    `json:"year,omitempty"`
	Month     int    `json:"month,omitempty"`
	Day       int    `json:"day,omitempty"`
	Filename  string `json:"filename,omitempty"`

	// Pointer so an explicit 0 is distinguishable from an absent field and
	// can be rejected instead of silently taking the default.
	ExpiresInSeconds *int `json:"expires_in_seconds,omitempty"`
}
