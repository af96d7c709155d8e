package stamping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"3tcapital/ms_cartaporte_core/internal/application/cfdi"
	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
	ctxutil "3tcapital/ms_cartaporte_core/internal/infrastructure/context"
	"3tcapital/ms_cartaporte_core/internal/infrastructure/metrics"
)

const defaultBatchConcurrency = 8

// Validator is the pre-stamping validation step.
type Validator interface {
	Validate(ctx context.Context, doc *cartaporte.Document) cartaporte.ValidationResult
}

// IdentityResolver reconciles the document with the authoritative identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, doc *cartaporte.Document) (cartaporte.Identity, []cartaporte.ErrorRecord)
}

// Options configures a Service.
type Options struct {
	Validator  Validator
	Resolver   IdentityResolver
	Stamper    cartaporte.Stamper
	Repository cartaporte.DocumentRepository
	Logger     *slog.Logger

	Environment cartaporte.Environment
	// DefaultVersion is the complement version for documents that do not name one.
	DefaultVersion   string
	Location         *time.Location
	BatchConcurrency int

	Now      func() time.Time
	NewIDCCP func() string
}

// Service orchestrates validate, resolve, build, stamp and persist.
type Service struct {
	validator  Validator
	resolver   IdentityResolver
	stamper    cartaporte.Stamper
	repository cartaporte.DocumentRepository
	logger     *slog.Logger

	env              cartaporte.Environment
	version          string
	location         *time.Location
	batchConcurrency int

	now      func() time.Time
	newIDCCP func() string
}

// NewService creates a stamping service. Validator and Resolver are required;
// Stamper and Repository may be nil, in which case only validation and
// preview are available.
func NewService(opts Options) (*Service, error) {
	if opts.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("identity resolver is required")
	}
	s := &Service{
		validator:        opts.Validator,
		resolver:         opts.Resolver,
		stamper:          opts.Stamper,
		repository:       opts.Repository,
		logger:           opts.Logger,
		env:              opts.Environment,
		version:          opts.DefaultVersion,
		location:         opts.Location,
		batchConcurrency: opts.BatchConcurrency,
		now:              opts.Now,
		newIDCCP:         opts.NewIDCCP,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.version == "" {
		s.version = cartaporte.Version31
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.batchConcurrency <= 0 {
		s.batchConcurrency = defaultBatchConcurrency
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newIDCCP == nil {
		s.newIDCCP = cfdi.NewIDCCP
	}
	return s, nil
}

// Validate runs the pre-stamping validator.
func (s *Service) Validate(ctx context.Context, doc *cartaporte.Document) cartaporte.ValidationResult {
	result := s.validator.Validate(ctx, doc)
	outcome := "valid"
	if !result.Valid {
		outcome = "invalid"
	}
	metrics.Validations.WithLabelValues(outcome).Inc()
	return result
}

// ValidateBatch validates docs concurrently and returns results in input order.
func (s *Service) ValidateBatch(ctx context.Context, docs []*cartaporte.Document) ([]cartaporte.ValidationResult, error) {
	results := make([]cartaporte.ValidationResult, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.Validate(gctx, doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch validation: %w", err)
	}
	return results, nil
}

// Preview is an unsigned CFDI ready for display or PDF rendering.
type Preview struct {
	XML        string
	IDCCP      string
	Version    string
	Fecha      time.Time
	Identity   cartaporte.Identity
	Validation cartaporte.ValidationResult
}

// Preview validates, reconciles and builds doc without stamping it.
func (s *Service) Preview(ctx context.Context, doc *cartaporte.Document) (*Preview, error) {
	idCCP := s.newIDCCP()
	return s.prepare(ctxutil.WithIDCCP(ctx, idCCP), doc, idCCP)
}

// prepare builds the unsigned CFDI. The emitter, and a receptor with the
// emitter's RFC, are written from the resolved identity.
func (s *Service) prepare(ctx context.Context, doc *cartaporte.Document, idCCP string) (*Preview, error) {
	result := s.Validate(ctx, doc)
	if !result.Valid {
		return nil, &cartaporte.ValidationFailedError{Result: result}
	}

	id, records := s.resolver.Resolve(ctx, doc)
	if len(records) > 0 {
		return nil, &cartaporte.IdentityMismatchError{Records: records}
	}

	p := &Preview{
		IDCCP:      idCCP,
		Version:    cfdi.EffectiveVersion(doc, s.version),
		Fecha:      s.now().In(s.location),
		Identity:   id,
		Validation: result,
	}
	xml, err := cfdi.Build(doc, cfdi.BuildContext{
		Fecha:           p.Fecha,
		IDCCP:           p.IDCCP,
		DefaultVersion:  s.version,
		LugarExpedicion: id.PostalCode,
		Emisor:          id,
	})
	if err != nil {
		return nil, fmt.Errorf("building cfdi: %w", err)
	}
	p.XML = xml
	return p, nil
}

// Stamp runs the full pipeline and persists the stamped document. Nothing is
// sent to the PAC unless validation and identity reconciliation pass.
func (s *Service) Stamp(ctx context.Context, doc *cartaporte.Document) (*cartaporte.StampedDocument, error) {
	if s.stamper == nil {
		return nil, cartaporte.ErrStamperUnavailable
	}
	if s.repository == nil {
		return nil, cartaporte.ErrRepositoryUnavailable
	}

	idCCP := s.newIDCCP()
	ctx = ctxutil.WithIDCCP(ctx, idCCP)

	p, err := s.prepare(ctx, doc, idCCP)
	if err != nil {
		s.recordStamp(stampOutcome(err))
		return nil, err
	}

	res, err := s.stamper.Stamp(ctx, p.XML)
	if err != nil {
		s.recordStamp("pac_error")
		s.logger.ErrorContext(ctx, "pac stamping failed", "error", err)
		return nil, fmt.Errorf("stamping cfdi: %w", err)
	}
	if res == nil || res.UUID == "" {
		s.recordStamp("pac_error")
		return nil, fmt.Errorf("stamping cfdi: pac returned no uuid")
	}

	stamped := s.stampedDocument(ctx, doc, p, res)
	if err := s.repository.Save(ctx, stamped); err != nil {
		s.recordStamp("persist_error")
		// The CFDI is already valid at SAT; losing it here needs manual recovery.
		s.logger.ErrorContext(ctx, "stamped document could not be persisted",
			"uuid", stamped.UUID,
			"error", err)
		return nil, fmt.Errorf("persisting stamped document %s: %w", stamped.UUID, err)
	}

	s.recordStamp("stamped")
	s.logger.InfoContext(ctx, "cfdi stamped",
		"uuid", stamped.UUID,
		"environment", string(s.env),
		"version", stamped.CartaPorteVersion)
	return &stamped, nil
}

func (s *Service) stampedDocument(ctx context.Context, doc *cartaporte.Document, p *Preview, res *cartaporte.StampResult) cartaporte.StampedDocument {
	fechaTimbrado := res.FechaTimbrado
	if fechaTimbrado.IsZero() {
		fechaTimbrado = s.now().In(s.location)
	}
	total := cfdi.Total(doc)
	rfcEmisor, rfcReceptor := doc.RFCEmisor, doc.RFCReceptor
	if p.Identity.RFC != "" {
		if strings.EqualFold(strings.TrimSpace(rfcReceptor), p.Identity.RFC) {
			rfcReceptor = p.Identity.RFC
		}
		rfcEmisor = p.Identity.RFC
	}

	urlCFDI, err := cfdi.CFDIVerificationURL(cfdi.CFDIVerification{
		UUID:        res.UUID,
		RFCEmisor:   rfcEmisor,
		RFCReceptor: rfcReceptor,
		Total:       total,
		SelloCFD:    res.SelloCFD,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "cfdi verification url not built", "uuid", res.UUID, "error", err)
	}

	urlCCP, err := cfdi.CCPVerificationURL(cfdi.CCPVerification{
		IDCCP:         p.IDCCP,
		FechaOrigen:   fechaOrigen(doc),
		FechaTimbrado: fechaTimbrado,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "carta porte verification url not built", "uuid", res.UUID, "error", err)
	}

	return cartaporte.StampedDocument{
		UUID:              res.UUID,
		IDCCP:             p.IDCCP,
		RFCEmisor:         rfcEmisor,
		RFCReceptor:       rfcReceptor,
		Total:             total.StringFixed(2),
		Environment:       s.env,
		CartaPorteVersion: p.Version,
		XML:               p.XML,
		SignedXML:         res.SignedXML,
		FechaEmision:      p.Fecha,
		FechaTimbrado:     fechaTimbrado,
		URLVerificacion:   urlCFDI,
		URLVerificaCCP:    urlCCP,
		CreatedAt:         s.now(),
	}
}

// fechaOrigen is the departure timestamp of the Origen stop.
func fechaOrigen(doc *cartaporte.Document) time.Time {
	for _, u := range doc.Ubicaciones {
		if u.TipoUbicacion != cartaporte.UbicacionOrigen {
			continue
		}
		t, err := time.Parse(cfdi.DateTimeLayout, u.FechaHoraSalidaLlegada)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}

// Get returns a previously stamped document.
func (s *Service) Get(ctx context.Context, uuid string) (*cartaporte.StampedDocument, error) {
	if s.repository == nil {
		return nil, cartaporte.ErrRepositoryUnavailable
	}
	doc, err := s.repository.FindByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) recordStamp(outcome string) {
	metrics.StampAttempts.WithLabelValues(outcome, string(s.env)).Inc()
}

func stampOutcome(err error) string {
	var vErr *cartaporte.ValidationFailedError
	var idErr *cartaporte.IdentityMismatchError
	switch {
	case errors.As(err, &vErr):
		return "validation_failed"
	case errors.As(err, &idErr):
		return "identity_mismatch"
	default:
		return "build_error"
	}
}
