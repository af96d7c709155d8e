package pac

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// Config holds the PAC client settings.
type Config struct {
	BaseURL               string
	Username              string
	Password              string
	TokenTTL              time.Duration
	RateLimitRPS          float64
	MaxConcurrentRequests int64
	CircuitMaxFailures    int
	CircuitCooldown       time.Duration
	// Location interprets PAC timestamps that carry no offset.
	Location *time.Location
}

// Client stamps CFDI documents through the PAC HTTP API.
type Client struct {
	baseURL  string
	auth     *AuthManager
	http     HTTPClient
	log      *slog.Logger
	limiter  *rate.Limiter
	inflight *semaphore.Weighted
	breaker  *CircuitBreaker
	location *time.Location
}

// NewClient creates a PAC client. httpClient is normally the traced client so
// every exchange is audited.
func NewClient(cfg Config, httpClient HTTPClient, log *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = 20
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 50 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	burst := int(cfg.RateLimitRPS)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:  baseURL,
		auth:     NewAuthManager(baseURL, cfg.Username, cfg.Password, cfg.TokenTTL, httpClient, log),
		http:     httpClient,
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst),
		inflight: semaphore.NewWeighted(cfg.MaxConcurrentRequests),
		breaker:  NewCircuitBreaker("pac", cfg.CircuitMaxFailures, cfg.CircuitCooldown),
		location: cfg.Location,
	}
}

type stampRequest struct {
	XML string `json:"xml"`
}

type stampResponse struct {
	UUID          string `json:"uuid"`
	SignedXML     string `json:"signedXml"`
	SelloCFD      string `json:"selloCFD"`
	FechaTimbrado string `json:"fechaTimbrado"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Stamp sends the unsigned CFDI to the PAC and returns its UUID and signed XML.
func (c *Client) Stamp(ctx context.Context, cfdiXML string) (*cartaporte.StampResult, error) {
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for pac slot: %w", err)
	}
	defer c.inflight.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for pac rate limit: %w", err)
	}

	var result *cartaporte.StampResult
	err := c.breaker.Execute(func() error {
		var err error
		result, err = c.stamp(ctx, cfdiXML, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() State {
	return c.breaker.State()
}

func (c *Client) stamp(ctx context.Context, cfdiXML string, retryOnUnauthorized bool) (*cartaporte.StampResult, error) {
	token, err := c.auth.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(stampRequest{XML: cfdiXML})
	if err != nil {
		return nil, fmt.Errorf("marshal stamp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/timbrar", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && retryOnUnauthorized {
		c.auth.ClearToken()
		c.log.WarnContext(ctx, "PAC rejected token, retrying with a fresh one")
		return c.stamp(ctx, cfdiXML, false)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, parseError(resp.StatusCode, body)
	}

	var sr stampResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("unmarshal stamp response: %w", err)
	}
	return c.toResult(ctx, sr), nil
}

func (c *Client) toResult(ctx context.Context, sr stampResponse) *cartaporte.StampResult {
	res := &cartaporte.StampResult{
		UUID:      strings.ToUpper(sr.UUID),
		SignedXML: sr.SignedXML,
		SelloCFD:  sr.SelloCFD,
	}

	if (res.UUID == "" || res.SelloCFD == "") && sr.SignedXML != "" {
		uuid, sello, err := extractStampFields(sr.SignedXML)
		if err != nil {
			c.log.WarnContext(ctx, "signed xml could not be inspected", "error", err)
		}
		if res.UUID == "" {
			res.UUID = strings.ToUpper(uuid)
		}
		if res.SelloCFD == "" {
			res.SelloCFD = sello
		}
	}

	if sr.FechaTimbrado != "" {
		t, err := parseTimestamp(sr.FechaTimbrado, c.location)
		if err != nil {
			c.log.WarnContext(ctx, "unparseable fechaTimbrado from pac", "value", sr.FechaTimbrado)
		} else {
			res.FechaTimbrado = t
		}
	}
	return res
}

func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", value, loc)
}

// extractStampFields reads the TimbreFiscalDigital UUID and the Comprobante
// seal from a signed CFDI.
func extractStampFields(signed string) (uuid, sello string, err error) {
	dec := xml.NewDecoder(strings.NewReader(signed))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return uuid, sello, nil
		}
		if err != nil {
			return uuid, sello, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "Comprobante":
			sello = attr(start, "Sello")
		case "TimbreFiscalDigital":
			uuid = attr(start, "UUID")
		}
	}
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func parseError(status int, body []byte) *cartaporte.PACError {
	pacErr := &cartaporte.PACError{StatusCode: status}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		pacErr.Code = er.Code
		pacErr.Message = er.Message
		if pacErr.Message == "" {
			pacErr.Message = er.Error
		}
	}
	if pacErr.Message == "" {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = http.StatusText(status)
		}
		pacErr.Message = msg
	}
	return pacErr
}
