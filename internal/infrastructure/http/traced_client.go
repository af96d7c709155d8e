package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"3tcapital/ms_cartaporte_core/internal/core/audit"
	ctxutil "3tcapital/ms_cartaporte_core/internal/infrastructure/context"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/metrics"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/security"

	"github.com/google/uuid"
)

const auditSaveTimeout = 10 * time.Second

// TracedClient wraps an HTTP client so every PAC exchange is logged with
// sanitized bodies, measured, and persisted as an audit.PACCall.
type TracedClient struct {
	client       *http.Client
	log          *slog.Logger
	auditRepo    audit.Repository
	provider     string
	environment  string
	auditEnabled bool
	logReqBody   bool
	logRespBody  bool
	maxBodySize  int
	pending      sync.WaitGroup
}

// TracedClientConfig holds configuration for the traced HTTP client.
type TracedClientConfig struct {
	Timeout         time.Duration
	Environment     string
	AuditEnabled    bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int
	MaxConnsPerHost int // 0 means 50
}

// NewTracedClient creates a traced HTTP client with its own pooled transport.
func NewTracedClient(cfg *TracedClientConfig, log *slog.Logger, auditRepo audit.Repository, provider string) *TracedClient {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 102400
	}

	maxConnsPerHost := cfg.MaxConnsPerHost
	if maxConnsPerHost == 0 {
		maxConnsPerHost = 50
	}

	responseHeaderTimeout := cfg.Timeout
	if responseHeaderTimeout < 60*time.Second {
		responseHeaderTimeout = 60 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &TracedClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		log:          log,
		auditRepo:    auditRepo,
		provider:     provider,
		environment:  cfg.Environment,
		auditEnabled: cfg.AuditEnabled,
		logReqBody:   cfg.LogRequestBody,
		logRespBody:  cfg.LogResponseBody,
		maxBodySize:  cfg.MaxBodySize,
	}
}

// Do executes req, tracing it and persisting the audit record in the
// background. The returned response body can be read as usual.
func (c *TracedClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	correlationID := ctxutil.CorrelationID(ctx)
	operation := c.extractOperation(req)
	start := time.Now()

	if correlationID != "" {
		req.Header.Set(ctxutil.CorrelationHeader, correlationID)
	}

	var requestBody []byte
	if req.Body != nil {
		var err error
		requestBody, err = io.ReadAll(req.Body)
		if err != nil {
			c.log.Error("Failed to read request body for tracing",
				"error", err,
				"correlation_id", correlationID,
			)
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(requestBody))
	}

	c.logRequest(correlationID, operation, req, requestBody)

	resp, err := c.client.Do(req)
	duration := time.Since(start)

	var responseBody []byte
	if resp != nil && resp.Body != nil {
		responseBody, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(responseBody))
	}

	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	metrics.PACRequestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())

	c.logResponse(correlationID, operation, req, resp, err, duration, responseBody)

	if !c.auditEnabled || c.auditRepo == nil {
		return resp, err
	}

	if correlationID == "" {
		correlationID = "audit-" + uuid.NewString()
		c.log.Warn("Missing correlation ID, generated fallback",
			"fallback_id", correlationID,
			"operation", operation,
		)
	}

	call := c.buildAuditRecord(correlationID, operation, req, resp, err, duration, requestBody, responseBody)

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("Panic in audit persistence",
					"panic", r,
					"correlation_id", call.CorrelationID,
					"operation", call.Operation,
				)
			}
		}()

		// The request context ends with the response, so the save gets its own.
		saveCtx, cancel := context.WithTimeout(context.Background(), auditSaveTimeout)
		defer cancel()

		if saveErr := c.auditRepo.Save(saveCtx, call); saveErr != nil {
			c.log.Error("Failed to persist PAC audit record",
				"error", saveErr,
				"correlation_id", call.CorrelationID,
				"operation", call.Operation,
				"response_status", call.ResponseStatus,
				"duration_ms", call.DurationMs,
			)
			return
		}
		c.log.Debug("PAC audit record persisted",
			"correlation_id", call.CorrelationID,
			"operation", call.Operation,
		)
	}()

	return resp, err
}

// Wait blocks until in-flight audit records have been saved.
func (c *TracedClient) Wait() {
	c.pending.Wait()
}

func (c *TracedClient) logRequest(correlationID, operation string, req *http.Request, body []byte) {
	attrs := []any{
		"correlation_id", correlationID,
		"provider", c.provider,
		"environment", c.environment,
		"operation", operation,
		"method", req.Method,
		"url", security.SanitizeURL(req.URL.String()),
	}
	if id := ctxutil.IDCCP(req.Context()); id != "" {
		attrs = append(attrs, "id_ccp", id)
	}
	if c.logReqBody && len(body) > 0 {
		attrs = append(attrs, "request_body", string(security.SanitizeBody(body, c.maxBodySize)))
	}
	c.log.Info("pac_request", attrs...)
}

func (c *TracedClient) logResponse(correlationID, operation string, req *http.Request, resp *http.Response, err error, duration time.Duration, body []byte) {
	attrs := []any{
		"correlation_id", correlationID,
		"provider", c.provider,
		"environment", c.environment,
		"operation", operation,
		"method", req.Method,
		"url", security.SanitizeURL(req.URL.String()),
		"duration_ms", duration.Milliseconds(),
	}
	if id := ctxutil.IDCCP(req.Context()); id != "" {
		attrs = append(attrs, "id_ccp", id)
	}

	if err != nil {
		attrs = append(attrs, "error", err.Error())
		c.log.Error("pac_request_failed", attrs...)
		return
	}

	attrs = append(attrs, "status", resp.StatusCode, "response_size_bytes", len(body))
	if c.logRespBody && len(body) > 0 {
		attrs = append(attrs, "response_body", string(security.SanitizeBody(body, c.maxBodySize)))
	}

	switch {
	case resp.StatusCode >= 500:
		c.log.Error("pac_response", attrs...)
	case resp.StatusCode >= 400:
		c.log.Warn("pac_response", attrs...)
	default:
		c.log.Info("pac_response", attrs...)
	}
}

func (c *TracedClient) buildAuditRecord(correlationID, operation string, req *http.Request, resp *http.Response, err error, duration time.Duration, requestBody, responseBody []byte) audit.PACCall {
	call := audit.PACCall{
		CorrelationID:  correlationID,
		Provider:       c.provider,
		Environment:    c.environment,
		Operation:      operation,
		Method:         req.Method,
		URL:            security.SanitizeURL(req.URL.String()),
		RequestHeaders: security.SanitizeHeaders(req.Header),
		RequestBody:    security.SanitizeBody(requestBody, c.maxBodySize),
		DurationMs:     duration.Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}
	if resp != nil {
		status := resp.StatusCode
		call.ResponseStatus = &status
		call.ResponseHeaders = security.SanitizeHeaders(resp.Header)
		call.ResponseBody = security.SanitizeBody(responseBody, c.maxBodySize)
	}
	if err != nil {
		call.ErrorMessage = err.Error()
	}
	return call
}

// extractOperation names the call after the last path segment, e.g. "timbrar".
func (c *TracedClient) extractOperation(req *http.Request) string {
	parts := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if last := parts[len(parts)-1]; last != "" {
		return strings.ToLower(last)
	}
	return strings.ToLower(req.Method) + "_" + c.provider
}
