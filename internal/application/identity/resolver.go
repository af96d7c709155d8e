package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

// Record codes for identity findings. Every identity finding is critical.
const (
	CodeIdentityUnresolved = "IDENTITY_UNRESOLVED"
	CodeIdentityMismatch   = "IDENTITY_MISMATCH"
)

// Resolver reconciles a document against the authoritative emitter identity.
// Resolution failures fail closed.
type Resolver struct {
	env       cartaporte.Environment
	source    cartaporte.IdentitySource
	emisorRFC string
	logger    *slog.Logger
}

// NewResolver creates a resolver. When emisorRFC is set it is the RFC looked
// up regardless of what the document claims.
func NewResolver(env cartaporte.Environment, source cartaporte.IdentitySource, emisorRFC string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		env:       env,
		source:    source,
		emisorRFC: strings.ToUpper(strings.TrimSpace(emisorRFC)),
		logger:    logger,
	}
}

// Resolve looks up the authoritative identity and compares the document's
// identity fields with it. Any returned record blocks stamping.
func (r *Resolver) Resolve(ctx context.Context, doc *cartaporte.Document) (cartaporte.Identity, []cartaporte.ErrorRecord) {
	rfc := r.emisorRFC
	if rfc == "" && doc != nil {
		rfc = strings.ToUpper(strings.TrimSpace(doc.RFCEmisor))
	}
	if rfc == "" {
		return cartaporte.Identity{}, []cartaporte.ErrorRecord{unresolved("",
			"No hay RFC de emisor para resolver contra la fuente de verdad",
			"Configure STAMPING_EMISOR_RFC o capture rfc_emisor")}
	}
	if r.source == nil {
		return cartaporte.Identity{}, []cartaporte.ErrorRecord{unresolved(rfc,
			"No hay una fuente de verdad configurada para el ambiente "+string(r.env),
			"Revise la configuración del servicio")}
	}

	id, err := r.source.ResolveIdentity(ctx, rfc)
	if err != nil {
		r.logger.WarnContext(ctx, "identity resolution failed",
			"environment", string(r.env),
			"rfc", rfc,
			"error", err)
		return cartaporte.Identity{}, []cartaporte.ErrorRecord{r.resolutionFailure(rfc, err)}
	}

	if doc == nil {
		return id, nil
	}
	return id, Compare(doc, id)
}

func (r *Resolver) resolutionFailure(rfc string, err error) cartaporte.ErrorRecord {
	switch {
	case errors.Is(err, cartaporte.ErrIdentityNotFound) && r.env == cartaporte.EnvironmentSandbox:
		return unresolved(rfc,
			fmt.Sprintf("El RFC %s no pertenece a los RFC de prueba publicados por el SAT", rfc),
			"En sandbox use un RFC de prueba del SAT, por ejemplo EKU9003173C9")
	case errors.Is(err, cartaporte.ErrIdentityNotFound):
		return unresolved(rfc,
			fmt.Sprintf("El RFC %s no tiene una validación registrada contra el padrón del SAT", rfc),
			"Valide el RFC y su razón social contra el SAT antes de timbrar")
	case errors.Is(err, cartaporte.ErrIdentityNotValidated):
		return unresolved(rfc,
			fmt.Sprintf("El RFC %s aún no ha sido validado contra el padrón del SAT", rfc),
			"Espere a que concluya la validación del RFC o solicítela nuevamente")
	default:
		return unresolved(rfc,
			"No fue posible consultar la fuente de verdad del emisor",
			"Intente nuevamente en unos minutos")
	}
}

// Compare checks every identity field of doc against id. RFCs are compared
// with SameRFC and every other value after Normalize; the document is never
// modified.
func Compare(doc *cartaporte.Document, id cartaporte.Identity) []cartaporte.ErrorRecord {
	var records []cartaporte.ErrorRecord
	check := func(field, label, actual, expected string) {
		if expected == "" || Equal(actual, expected) {
			return
		}
		records = append(records, mismatch(field, label, actual, expected))
	}

	if id.RFC != "" && !SameRFC(doc.RFCEmisor, id.RFC) {
		records = append(records, mismatch("rfc_emisor", "El RFC del emisor", doc.RFCEmisor, id.RFC))
	}
	check("nombre_emisor", "El nombre del emisor", doc.NombreEmisor, id.Name)
	check("regimen_fiscal_emisor", "El régimen fiscal del emisor", doc.RegimenFiscalEmisor, id.FiscalRegime)

	// A receptor with the emitter's own RFC (self-addressed Traslado) must
	// carry the same identity.
	if SameRFC(doc.RFCReceptor, id.RFC) {
		check("nombre_receptor", "El nombre del receptor", doc.NombreReceptor, id.Name)
		check("regimen_fiscal_receptor", "El régimen fiscal del receptor", doc.RegimenFiscalReceptor, id.FiscalRegime)
		check("domicilio_fiscal_receptor", "El domicilio fiscal del receptor", doc.DomicilioFiscalReceptor, id.PostalCode)
	}
	return records
}

func mismatch(field, label, actual, expected string) cartaporte.ErrorRecord {
	return cartaporte.ErrorRecord{
		Field:      field,
		Value:      actual,
		Message:    fmt.Sprintf("%s no coincide con la fuente de verdad: se recibió %q, se esperaba %q", label, actual, expected),
		Suggestion: fmt.Sprintf("Capture %q en %s tal como aparece en la constancia de situación fiscal", expected, field),
		Severity:   cartaporte.SeverityCritical,
		Code:       CodeIdentityMismatch,
	}
}

func unresolved(rfc, message, suggestion string) cartaporte.ErrorRecord {
	return cartaporte.ErrorRecord{
		Field:      "rfc_emisor",
		Value:      rfc,
		Message:    message,
		Suggestion: suggestion,
		Severity:   cartaporte.SeverityCritical,
		Code:       CodeIdentityUnresolved,
	}
}
