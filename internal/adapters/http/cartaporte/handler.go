package cartaporte

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appstamping "3tcapital/ms_cartaporte_core/internal/application/stamping"
	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
	httperrors "3tcapital/ms_cartaporte_core/internal/infrastructure/http"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/http/middleware"
)

const (
	defaultMaxBatchSize = 100
	maxBodyBytes        = 10 << 20
)

// Service is the stamping use case surface the handler drives.
type Service interface {
	Validate(ctx context.Context, doc *cartaporte.Document) cartaporte.ValidationResult
	ValidateBatch(ctx context.Context, docs []*cartaporte.Document) ([]cartaporte.ValidationResult, error)
	Preview(ctx context.Context, doc *cartaporte.Document) (*appstamping.Preview, error)
	Stamp(ctx context.Context, doc *cartaporte.Document) (*cartaporte.StampedDocument, error)
	Get(ctx context.Context, uuid string) (*cartaporte.StampedDocument, error)
}

// Handler bridges HTTP traffic with the stamping application service.
type Handler struct {
	service      Service
	validate     *validator.Validate
	maxBatchSize int
	log          *slog.Logger
}

// NewHandler creates a Carta Porte HTTP handler. maxBatchSize <= 0 falls
// back to 100 documents per batch.
func NewHandler(service Service, maxBatchSize int, log *slog.Logger) *Handler {
	if maxBatchSize <= 0 {
		maxBatchSize = defaultMaxBatchSize
	}
	return &Handler{
		service:      service,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		maxBatchSize: maxBatchSize,
		log:          log,
	}
}

// BatchRequest is the body of POST /api/v1/carta-porte/validar/lote.
type BatchRequest struct {
	Documentos []*cartaporte.Document `json:"documentos" validate:"required,min=1,dive,required"`
}

// BatchResponse lists one result per submitted document, in input order.
type BatchResponse struct {
	Total      int                           `json:"total"`
	Validos    int                           `json:"validos"`
	Resultados []cartaporte.ValidationResult `json:"resultados"`
}

// Validate handles POST /api/v1/carta-porte/validar. A rejected document is
// still a successful call: the findings are the payload.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.decodeDocument(w, r)
	if !ok {
		return
	}

	result := h.service.Validate(r.Context(), doc)
	httperrors.WriteJSON(w, http.StatusOK, result, h.log)
}

// ValidateBatch handles POST /api/v1/carta-porte/validar/lote.
func (h *Handler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.validate.Struct(req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Error de Validación", []string{"documentos debe contener al menos un documento"}, h.log)
		return
	}
	if len(req.Documentos) > h.maxBatchSize {
		httperrors.WriteError(w, http.StatusBadRequest, "Error de Validación",
			[]string{"documentos no puede exceder " + strconv.Itoa(h.maxBatchSize) + " elementos"}, h.log)
		return
	}

	results, err := h.service.ValidateBatch(r.Context(), req.Documentos)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := BatchResponse{Total: len(results), Resultados: results}
	for _, res := range results {
		if res.Valid {
			resp.Validos++
		}
	}
	httperrors.WriteJSON(w, http.StatusOK, resp, h.log)
}

// PreviewXML handles POST /api/v1/carta-porte/xml and answers with the
// unsigned CFDI.
func (h *Handler) PreviewXML(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.decodeDocument(w, r)
	if !ok {
		return
	}

	preview, err := h.service.Preview(r.Context(), doc)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("X-IdCCP", preview.IDCCP)
	w.Header().Set("X-CartaPorte-Version", preview.Version)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(preview.XML))
}

// Stamp handles POST /api/v1/carta-porte/timbrar.
func (h *Handler) Stamp(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.decodeDocument(w, r)
	if !ok {
		return
	}

	stamped, err := h.service.Stamp(r.Context(), doc)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.log.InfoContext(r.Context(), "carta porte stamped",
		"uuid", stamped.UUID,
		"subject", middleware.Subject(r.Context()))

	w.Header().Set("Location", "/api/v1/carta-porte/"+stamped.UUID)
	httperrors.WriteJSON(w, http.StatusCreated, stamped, h.log)
}

// Get handles GET /api/v1/carta-porte/{uuid}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	uuid := strings.TrimSpace(chi.URLParam(r, "uuid"))
	if err := h.validate.Var(strings.ToLower(uuid), "required,uuid"); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Error de Validación", []string{"uuid no es un folio fiscal válido"}, h.log)
		return
	}

	doc, err := h.service.Get(r.Context(), strings.ToUpper(uuid))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, doc, h.log)
}

func (h *Handler) decodeDocument(w http.ResponseWriter, r *http.Request) (*cartaporte.Document, bool) {
	var doc cartaporte.Document
	if !h.decode(w, r, &doc) {
		return nil, false
	}
	return &doc, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		httperrors.WriteError(w, http.StatusMethodNotAllowed, "Método no permitido", []string{"Este endpoint solo acepta POST"}, h.log)
		return false
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperrors.WriteError(w, http.StatusRequestEntityTooLarge, "Error de Validación", []string{"El cuerpo de la petición excede el tamaño permitido"}, h.log)
			return false
		}
		httperrors.WriteError(w, http.StatusBadRequest, "Error de Validación", []string{"El cuerpo de la petición no es válido"}, h.log)
		return false
	}
	return true
}

// handleError maps domain and PAC errors to HTTP responses.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *cartaporte.ValidationFailedError
		identityErr   *cartaporte.IdentityMismatchError
		pacErr        *cartaporte.PACError
	)

	switch {
	case errors.As(err, &validationErr):
		httperrors.WriteValidationError(w, http.StatusUnprocessableEntity, "Error de Validación", validationErr.Result, h.log)
	case errors.As(err, &identityErr):
		httperrors.WriteValidationError(w, http.StatusUnprocessableEntity, "Error de Identidad Fiscal",
			cartaporte.NewValidationResult(identityErr.Records), h.log)
	case errors.Is(err, cartaporte.ErrDocumentNotFound):
		httperrors.WriteError(w, http.StatusNotFound, "No Encontrado", []string{"No existe una Carta Porte timbrada con ese UUID"}, h.log)
	case errors.As(err, &pacErr):
		h.log.WarnContext(r.Context(), "pac rejected request", "status", pacErr.StatusCode, "code", pacErr.Code, "error", err)
		httperrors.WriteError(w, http.StatusBadGateway, "Error del PAC", []string{pacErr.Message}, h.log)
	case errors.Is(err, cartaporte.ErrCircuitOpen):
		httperrors.WriteError(w, http.StatusServiceUnavailable, "Servicio No Disponible", []string{"El PAC no está disponible temporalmente, intente más tarde"}, h.log)
	case errors.Is(err, cartaporte.ErrStamperUnavailable), errors.Is(err, cartaporte.ErrRepositoryUnavailable):
		httperrors.WriteError(w, http.StatusServiceUnavailable, "Servicio No Disponible", []string{"El timbrado no está habilitado en este ambiente"}, h.log)
	case errors.Is(err, context.DeadlineExceeded):
		httperrors.WriteError(w, http.StatusGatewayTimeout, "Tiempo de Espera Agotado", []string{"La operación excedió el tiempo permitido"}, h.log)
	default:
		h.log.ErrorContext(r.Context(), "carta porte request failed", "path", r.URL.Path, "error", err)
		httperrors.WriteError(w, http.StatusInternalServerError, "Error Interno del Servidor", []string{"Ha ocurrido un error interno"}, h.log)
	}
}
