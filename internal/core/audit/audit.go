package audit

import (
	"context"
	"encoding/json"
	"time"
)

// PACCall is the audit record of one HTTP exchange with the PAC.
type PACCall struct {
	ID              int64
	CorrelationID   string
	Provider        string
	Environment     string
	Operation       string
	Method          string
	URL             string
	RequestHeaders  map[string]string
	RequestBody     json.RawMessage
	ResponseStatus  *int
	ResponseHeaders map[string]string
	ResponseBody    json.RawMessage
	DurationMs      int64
	ErrorMessage    string
	CreatedAt       time.Time
}

// Succeeded reports whether the call completed with a 2xx status.
func (c PACCall) Succeeded() bool {
	return c.ErrorMessage == "" && c.ResponseStatus != nil && *c.ResponseStatus < 300 && *c.ResponseStatus >= 200
}

// Repository stores PAC audit records.
type Repository interface {
	Save(ctx context.Context, call PACCall) error
	FindByCorrelationID(ctx context.Context, correlationID string) ([]PACCall, error)
}
