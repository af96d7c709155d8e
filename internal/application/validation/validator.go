package validation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"3tcapital/ms_cartaporte_core/internal/application/cfdi"
	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

// Record codes returned in ErrorRecord.Code.
const (
	CodeRequired            = "REQUIRED_FIELD"
	CodeInvalidTipoCFDI     = "INVALID_TIPO_CFDI"
	CodeUnsupportedVersion  = "UNSUPPORTED_VERSION"
	CodeInvalidRFC          = "INVALID_RFC"
	CodeNameTooShort        = "NAME_TOO_SHORT"
	CodeInvalidPostalCode   = "INVALID_POSTAL_CODE"
	CodePostalCodeNotFound  = "POSTAL_CODE_NOT_FOUND"
	CodePostalCodeLookup    = "POSTAL_CODE_LOOKUP_FAILED"
	CodeUbicacionesMin      = "UBICACIONES_MIN"
	CodeOrigenRequired      = "ORIGEN_REQUIRED"
	CodeDestinoRequired     = "DESTINO_REQUIRED"
	CodeDuplicateOrigen     = "DUPLICATE_ORIGEN"
	CodeDuplicateDestino    = "DUPLICATE_DESTINO"
	CodeInvalidTipoUbic     = "INVALID_TIPO_UBICACION"
	CodeInvalidDateTime     = "INVALID_DATETIME"
	CodeInvalidDistance     = "INVALID_DISTANCE"
	CodeInvalidBienesTransp = "INVALID_BIENES_TRANSP"
	CodeDescriptionShort    = "DESCRIPTION_TOO_SHORT"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInvalidWeight       = "INVALID_WEIGHT"
	CodeNegativeValue       = "NEGATIVE_VALUE"
	CodeHazardousCode       = "HAZARDOUS_CODE_REQUIRED"
	CodeProtectedSpecies    = "PROTECTED_SPECIES_DESCRIPTION"
	CodeWildlifeKeyword     = "WILDLIFE_KEYWORD"
	CodeUnknownCatalogCode  = "UNKNOWN_CATALOG_CODE"
	CodeInvalidModelYear    = "INVALID_MODEL_YEAR"
	CodeVehicleWeight       = "VEHICLE_WEIGHT_MISSING"
	CodeOperadorRequired    = "OPERADOR_REQUIRED"
	CodeLicenseRequired     = "LICENSE_REQUIRED"
	CodeEntradaSalida       = "INVALID_ENTRADA_SALIDA"
	CodeFraccionRecommended = "FRACCION_RECOMMENDED"
	CodeConceptosRequired   = "CONCEPTOS_REQUIRED"
	CodeInvalidCharacter    = "INVALID_CHARACTER"
	CodeInternal            = "VALIDATION_INTERNAL"
)

const (
	minNameLength             = 5
	minDescriptionLength      = 5
	minProtectedSpeciesLength = 50
	minModelYear              = 1990
)

var (
	rfcPattern         = regexp.MustCompile(`^[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}$`)
	postalCodePattern  = regexp.MustCompile(`^\d{5}$`)
	claveProdServRegex = regexp.MustCompile(`^\d{8}$`)
)

// Validator is the pre-stamping validator. It reports findings and never
// changes the document it inspects.
type Validator struct {
	postal cartaporte.PostalCodeCatalog
	codes  cartaporte.CodeCatalog
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for the model-year window.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a validator. Either catalog may be nil, in which case
// the checks that depend on it are skipped.
func NewValidator(postal cartaporte.PostalCodeCatalog, codes cartaporte.CodeCatalog, logger *slog.Logger, opts ...Option) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Validator{
		postal: postal,
		codes:  codes,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every pass in order and collects all findings. Data problems
// are reported as records; an unexpected panic is converted into a single
// internal error record.
func (v *Validator) Validate(ctx context.Context, doc *cartaporte.Document) (result cartaporte.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.ErrorContext(ctx, "validation panicked", "panic", fmt.Sprint(r))
			result = cartaporte.NewValidationResult([]cartaporte.ErrorRecord{{
				Field:    "documento",
				Message:  "Error interno durante la validación; intente nuevamente o contacte a soporte",
				Severity: cartaporte.SeverityError,
				Code:     CodeInternal,
			}})
		}
	}()

	f := &findings{}
	if doc == nil {
		f.fail("documento", "", CodeRequired, "El documento es requerido", "")
		return cartaporte.NewValidationResult(f.records)
	}

	present := v.checkRequired(doc, f)
	checkText(doc, f)
	v.checkEmisor(ctx, doc, f)
	v.checkReceptor(ctx, doc, f)
	if present.ubicaciones {
		v.checkUbicaciones(doc, f)
	}
	if present.mercancias {
		v.checkMercancias(ctx, doc, f)
	}
	if present.conceptos {
		v.checkConceptos(doc, f)
	}
	if present.autotransporte {
		v.checkAutotransporte(ctx, doc.Autotransporte, f)
	}
	if present.figuras {
		v.checkFiguras(ctx, doc.Figuras, f)
	}
	if present.ubicaciones {
		v.checkPostalCodes(ctx, doc.Ubicaciones, f)
	}
	if doc.TransporteInternacional {
		v.checkInternacional(ctx, doc, f)
	}

	result = cartaporte.NewValidationResult(f.records)
	v.logger.DebugContext(ctx, "document validated",
		"valid", result.Valid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings))
	return result
}

// sections tells later passes which top-level collections exist.
type sections struct {
	ubicaciones    bool
	mercancias     bool
	autotransporte bool
	figuras        bool
	conceptos      bool
}

// checkRequired is the only short-circuiting pass: a missing collection
// disables the per-entry checks of that section.
func (v *Validator) checkRequired(doc *cartaporte.Document, f *findings) sections {
	required := []struct {
		field string
		value string
		label string
	}{
		{"rfc_emisor", doc.RFCEmisor, "El RFC del emisor"},
		{"nombre_emisor", doc.NombreEmisor, "El nombre del emisor"},
		{"rfc_receptor", doc.RFCReceptor, "El RFC del receptor"},
		{"nombre_receptor", doc.NombreReceptor, "El nombre del receptor"},
	}
	for _, r := range required {
		if isBlank(r.value) {
			f.fail(r.field, "", CodeRequired, r.label+" es requerido", "")
		}
	}

	s := sections{
		ubicaciones:    len(doc.Ubicaciones) > 0,
		mercancias:     len(doc.Mercancias) > 0,
		autotransporte: doc.Autotransporte != nil,
		figuras:        len(doc.Figuras) > 0,
	}
	if !s.ubicaciones {
		f.fail("ubicaciones", "", CodeRequired, "Se requieren al menos 2 ubicaciones (Origen y Destino)", "Agregue una ubicación de Origen y una de Destino")
	}
	if !s.mercancias {
		f.fail("mercancias", "", CodeRequired, "Se requiere al menos una mercancía", "")
	}
	if !s.autotransporte {
		f.fail("autotransporte", "", CodeRequired, "La información de autotransporte es requerida", "")
	}
	if !s.figuras {
		f.fail("figuras", "", CodeRequired, "Se requiere al menos una figura de transporte", "Agregue el operador (tipo_figura 01)")
	}

	switch doc.TipoCFDI {
	case "", cartaporte.TipoTraslado:
	case cartaporte.TipoIngreso:
		if len(doc.Conceptos) == 0 {
			f.fail("conceptos", "", CodeConceptosRequired, "Un CFDI de Ingreso requiere al menos un concepto", "")
		} else {
			s.conceptos = true
		}
		if isBlank(doc.UsoCFDI) {
			f.fail("uso_cfdi", "", CodeRequired, "El uso de CFDI es requerido para CFDI de Ingreso", "")
		}
	default:
		f.fail("tipo_cfdi", string(doc.TipoCFDI), CodeInvalidTipoCFDI, "Tipo de CFDI inválido", "Use Ingreso o Traslado")
	}

	if doc.CartaPorteVersion != "" && !cfdi.SupportedVersion(doc.CartaPorteVersion) {
		f.fail("cartaporte_version", doc.CartaPorteVersion, CodeUnsupportedVersion, "Versión de Carta Porte no soportada", "Use 3.0 o 3.1")
	}
	return s
}

func (v *Validator) checkEmisor(ctx context.Context, doc *cartaporte.Document, f *findings) {
	if !isBlank(doc.RFCEmisor) {
		checkRFC(f, "rfc_emisor", doc.RFCEmisor)
	}
	if !isBlank(doc.NombreEmisor) {
		checkName(f, "nombre_emisor", doc.NombreEmisor)
	}
	if isBlank(doc.RegimenFiscalEmisor) {
		f.fail("regimen_fiscal_emisor", "", CodeRequired, "El régimen fiscal del emisor es requerido", "")
	} else {
		v.checkCatalog(ctx, f, cartaporte.CatalogRegimenFiscal, "regimen_fiscal_emisor", doc.RegimenFiscalEmisor)
	}
}

func (v *Validator) checkReceptor(ctx context.Context, doc *cartaporte.Document, f *findings) {
	if !isBlank(doc.RFCReceptor) {
		checkRFC(f, "rfc_receptor", doc.RFCReceptor)
	}
	if !isBlank(doc.NombreReceptor) {
		checkName(f, "nombre_receptor", doc.NombreReceptor)
	}
	if isBlank(doc.RegimenFiscalReceptor) {
		f.fail("regimen_fiscal_receptor", "", CodeRequired, "El régimen fiscal del receptor es requerido", "")
	} else {
		v.checkCatalog(ctx, f, cartaporte.CatalogRegimenFiscal, "regimen_fiscal_receptor", doc.RegimenFiscalReceptor)
	}
	switch {
	case isBlank(doc.DomicilioFiscalReceptor):
		f.fail("domicilio_fiscal_receptor", "", CodeRequired, "El código postal del domicilio fiscal del receptor es requerido", "")
	case !postalCodePattern.MatchString(doc.DomicilioFiscalReceptor):
		f.fail("domicilio_fiscal_receptor", doc.DomicilioFiscalReceptor, CodeInvalidPostalCode, "El código postal debe tener 5 dígitos", "")
	}
}

// checkCatalog reports codes missing from the injected catalog as warnings.
// Lookup failures are logged and skipped.
func (v *Validator) checkCatalog(ctx context.Context, f *findings, kind cartaporte.CatalogKind, field, code string) {
	if v.codes == nil || code == "" {
		return
	}
	ok, err := v.codes.HasCode(ctx, kind, code)
	if err != nil {
		v.logger.DebugContext(ctx, "catalog lookup failed", "catalog", string(kind), "code", code, "error", err)
		return
	}
	if !ok {
		f.warn(field, code, CodeUnknownCatalogCode,
			fmt.Sprintf("La clave %q no se encuentra en el catálogo %s", code, kind),
			"Verifique la clave contra el catálogo vigente del SAT")
	}
}

func checkRFC(f *findings, field, rfc string) {
	if rfcPattern.MatchString(rfc) {
		return
	}
	suggestion := "El RFC debe tener 12 (persona moral) o 13 (persona física) caracteres en mayúsculas"
	if upper := strings.ToUpper(strings.TrimSpace(rfc)); upper != rfc && rfcPattern.MatchString(upper) {
		suggestion = fmt.Sprintf("¿Quiso decir %s?", upper)
	}
	f.fail(field, rfc, CodeInvalidRFC, "Formato de RFC inválido", suggestion)
}

func checkName(f *findings, field, name string) {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < minNameLength {
		f.fail(field, name, CodeNameTooShort,
			fmt.Sprintf("El nombre debe tener al menos %d caracteres", minNameLength),
			"Use la razón social completa tal como aparece en la constancia de situación fiscal")
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// findings accumulates records in pass order.
type findings struct {
	records []cartaporte.ErrorRecord
}

func (f *findings) fail(field, value, code, message, suggestion string) {
	f.add(cartaporte.SeverityError, field, value, code, message, suggestion)
}

func (f *findings) warn(field, value, code, message, suggestion string) {
	f.add(cartaporte.SeverityWarning, field, value, code, message, suggestion)
}

func (f *findings) add(sev cartaporte.Severity, field, value, code, message, suggestion string) {
	f.records = append(f.records, cartaporte.ErrorRecord{
		Field:      field,
		Value:      value,
		Message:    message,
		Suggestion: suggestion,
		Severity:   sev,
		Code:       code,
	})
}
