package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"3tcapital/ms_cartaporte_core/internal/core/audit"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository implements audit.Repository using PostgreSQL.
type Repository struct {
	db  DB
	log *slog.Logger
}

// NewRepository creates a new PostgreSQL audit repository. log may be nil.
func NewRepository(db DB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Save persists one PAC call.
func (r *Repository) Save(ctx context.Context, call audit.PACCall) error {
	query := `
		INSERT INTO pac_audit_log (
			correlation_id, provider, environment, operation, request_method, request_url,
			request_headers, request_body, response_status, response_headers,
			response_body, duration_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	requestHeadersJSON, err := marshalHeaders(call.RequestHeaders)
	if err != nil {
		return fmt.Errorf("marshal request headers: %w", err)
	}
	responseHeadersJSON, err := marshalHeaders(call.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("marshal response headers: %w", err)
	}

	_, err = r.db.Exec(ctx, query,
		call.CorrelationID,
		call.Provider,
		call.Environment,
		call.Operation,
		call.Method,
		call.URL,
		requestHeadersJSON,
		nullableJSON(call.RequestBody),
		call.ResponseStatus,
		responseHeadersJSON,
		nullableJSON(call.ResponseBody),
		call.DurationMs,
		call.ErrorMessage,
	)
	if err != nil {
		if r.log != nil {
			r.log.ErrorContext(ctx, "Failed to insert PAC audit record",
				"correlation_id", call.CorrelationID,
				"operation", call.Operation,
				"response_status", call.ResponseStatus,
				"error", err,
			)
		}
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// FindByCorrelationID returns the calls made for one request, newest first.
func (r *Repository) FindByCorrelationID(ctx context.Context, correlationID string) ([]audit.PACCall, error) {
	query := `
		SELECT id, correlation_id, provider, environment, operation, request_method, request_url,
		       request_headers, request_body, response_status, response_headers,
		       response_body, duration_ms, error_message, created_at
		FROM pac_audit_log
		WHERE correlation_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var calls []audit.PACCall
	for rows.Next() {
		var (
			call                                    audit.PACCall
			requestHeadersJSON, responseHeadersJSON []byte
			requestBodyJSON, responseBodyJSON       []byte
		)
		if err := rows.Scan(
			&call.ID,
			&call.CorrelationID,
			&call.Provider,
			&call.Environment,
			&call.Operation,
			&call.Method,
			&call.URL,
			&requestHeadersJSON,
			&requestBodyJSON,
			&call.ResponseStatus,
			&responseHeadersJSON,
			&responseBodyJSON,
			&call.DurationMs,
			&call.ErrorMessage,
			&call.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}

		if err := json.Unmarshal(requestHeadersJSON, &call.RequestHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal request headers: %w", err)
		}
		if err := json.Unmarshal(responseHeadersJSON, &call.ResponseHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal response headers: %w", err)
		}
		call.RequestBody = requestBodyJSON
		call.ResponseBody = responseBodyJSON

		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return calls, nil
}

func marshalHeaders(h map[string]string) ([]byte, error) {
	if h == nil {
		h = map[string]string{}
	}
	return json.Marshal(h)
}

// nullableJSON maps an empty body to SQL NULL.
func nullableJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
