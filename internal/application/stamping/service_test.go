package stamping

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"3tcapital/ms_cartaporte_core/internal/adapters/catalog/static"
	"3tcapital/ms_cartaporte_core/internal/application/identity"
	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
	ctxutil "3tcapital/ms_cartaporte_core/internal/infrastructure/context"
	"3tcapital/ms_cartaporte_core/internal/testutil"
)

const testIDCCP = "CCC2822E-396D-4725-8521-CDC4BDD20CCF"

var testNow = time.Date(2026, 10, 15, 13, 30, 0, 0, time.UTC)

type stubValidator struct {
	fn    func(doc *cartaporte.Document) cartaporte.ValidationResult
	calls int32
}

func (v *stubValidator) Validate(ctx context.Context, doc *cartaporte.Document) cartaporte.ValidationResult {
	atomic.AddInt32(&v.calls, 1)
	if v.fn != nil {
		return v.fn(doc)
	}
	return cartaporte.NewValidationResult(nil)
}

type stubResolver struct {
	id      cartaporte.Identity
	records []cartaporte.ErrorRecord
}

func (r *stubResolver) Resolve(ctx context.Context, doc *cartaporte.Document) (cartaporte.Identity, []cartaporte.ErrorRecord) {
	return r.id, r.records
}

var kemper = cartaporte.Identity{RFC: "EKU9003173C9", Name: "ESCUELA KEMPER URGATE", FiscalRegime: "601", PostalCode: "26015"}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	if opts.Validator == nil {
		opts.Validator = &stubValidator{}
	}
	if opts.Resolver == nil {
		opts.Resolver = &stubResolver{id: kemper}
	}
	if opts.Logger == nil {
		opts.Logger = testutil.NewNullLogger()
	}
	opts.Environment = cartaporte.EnvironmentSandbox
	opts.Location = time.FixedZone("CST", -6*60*60)
	opts.Now = func() time.Time { return testNow }
	opts.NewIDCCP = func() string { return testIDCCP }

	s, err := NewService(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	if _, err := NewService(Options{Resolver: &stubResolver{}}); err == nil || !strings.Contains(err.Error(), "validator is required") {
		t.Errorf("expected validator error, got %v", err)
	}
	if _, err := NewService(Options{Validator: &stubValidator{}}); err == nil || !strings.Contains(err.Error(), "identity resolver is required") {
		t.Errorf("expected resolver error, got %v", err)
	}
}

func TestService_Preview(t *testing.T) {
	s := newTestService(t, Options{})

	p, err := s.Preview(context.Background(), testutil.ValidDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.IDCCP != testIDCCP {
		t.Errorf("expected IdCCP %s, got %s", testIDCCP, p.IDCCP)
	}
	if !strings.Contains(p.XML, `Fecha="2026-10-15T07:30:00"`) {
		t.Errorf("expected emission date in the configured zone:\n%s", p.XML)
	}
	if !strings.Contains(p.XML, `LugarExpedicion="26015"`) {
		t.Error("expected LugarExpedicion from the resolved identity")
	}
	if p.Version != cartaporte.Version31 {
		t.Errorf("expected version 3.1, got %s", p.Version)
	}
}

func TestService_PreviewWritesResolvedIdentity(t *testing.T) {
	resolver := identity.NewResolver(cartaporte.EnvironmentSandbox, static.NewSandboxIdentities(), "", testutil.NewNullLogger())
	s := newTestService(t, Options{Resolver: resolver})

	doc := testutil.ValidDocument()
	doc.NombreEmisor = "Escuela  Kémper urgate"
	doc.NombreReceptor = "escuela kemper urgate"

	p, err := s.Preview(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(p.XML, `<cfdi:Emisor Rfc="EKU9003173C9" Nombre="ESCUELA KEMPER URGATE" RegimenFiscal="601"/>`) {
		t.Errorf("expected emitter from the sandbox identity:\n%s", p.XML)
	}
	if !strings.Contains(p.XML, `<cfdi:Receptor Rfc="EKU9003173C9" Nombre="ESCUELA KEMPER URGATE" DomicilioFiscalReceptor="26015"`) {
		t.Errorf("expected self-addressed receptor from the sandbox identity:\n%s", p.XML)
	}
	if strings.Contains(p.XML, "Kémper") || strings.Contains(p.XML, "escuela kemper") {
		t.Error("captured names must not reach the XML")
	}
	if doc.NombreEmisor != "Escuela  Kémper urgate" {
		t.Error("the document must not be modified")
	}
}

func TestService_Stamp(t *testing.T) {
	var sentXML, sentIDCCP string
	var saved cartaporte.StampedDocument

	stamper := &testutil.MockStamper{
		StampFunc: func(ctx context.Context, xml string) (*cartaporte.StampResult, error) {
			sentXML = xml
			sentIDCCP = ctxutil.IDCCP(ctx)
			return &cartaporte.StampResult{
				UUID:          "5FB2822E-396D-4725-8521-CDC4BDD20CCF",
				SignedXML:     "<cfdi:Comprobante Sello=\"abc\"/>",
				SelloCFD:      "c2VsbG9kZXBydWViYQ==",
				FechaTimbrado: time.Date(2026, 10, 15, 7, 31, 0, 0, time.UTC),
			}, nil
		},
	}
	repo := &testutil.MockDocumentRepository{
		SaveFunc: func(ctx context.Context, doc cartaporte.StampedDocument) error {
			saved = doc
			return nil
		},
	}
	s := newTestService(t, Options{Stamper: stamper, Repository: repo})

	got, err := s.Stamp(context.Background(), testutil.ValidDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(sentXML, `IdCCP="`+testIDCCP+`"`) {
		t.Error("expected the built XML to be sent to the PAC")
	}
	if sentIDCCP != testIDCCP {
		t.Errorf("expected the PAC call context to carry IdCCP %s, got %q", testIDCCP, sentIDCCP)
	}
	if got.UUID != "5FB2822E-396D-4725-8521-CDC4BDD20CCF" || saved.UUID != got.UUID {
		t.Errorf("expected persisted uuid, got %+v", got)
	}
	if saved.XML != sentXML {
		t.Error("expected the unsigned XML to be persisted")
	}
	if saved.Total != "0.00" {
		t.Errorf("expected total 0.00, got %s", saved.Total)
	}
	wantCFDI := "https://verificacfdi.facturaelectronica.sat.gob.mx/default.aspx?id=5FB2822E-396D-4725-8521-CDC4BDD20CCF&re=EKU9003173C9&rr=EKU9003173C9&tt=0&fe=dWViYQ=="
	if saved.URLVerificacion != wantCFDI {
		t.Errorf("unexpected cfdi url\n got %s\nwant %s", saved.URLVerificacion, wantCFDI)
	}
	wantCCP := "https://verificacfdi.facturaelectronica.sat.gob.mx/verificaccp/default.aspx?IdCCP=" + testIDCCP +
		"&FechaOrig=2026-10-14T08:00:00&FechaTimb=2026-10-15T07:31:00"
	if saved.URLVerificaCCP != wantCCP {
		t.Errorf("unexpected ccp url\n got %s\nwant %s", saved.URLVerificaCCP, wantCCP)
	}
	if saved.Environment != cartaporte.EnvironmentSandbox {
		t.Errorf("expected sandbox environment, got %s", saved.Environment)
	}
}

func TestService_StampStopsBeforePAC(t *testing.T) {
	tests := []struct {
		name      string
		validator *stubValidator
		resolver  *stubResolver
		check     func(t *testing.T, err error)
	}{
		{
			name: "validation failure",
			validator: &stubValidator{fn: func(doc *cartaporte.Document) cartaporte.ValidationResult {
				return cartaporte.NewValidationResult([]cartaporte.ErrorRecord{{Field: "rfc_emisor", Severity: cartaporte.SeverityError}})
			}},
			check: func(t *testing.T, err error) {
				var vErr *cartaporte.ValidationFailedError
				if !errors.As(err, &vErr) || len(vErr.Result.Errors) != 1 {
					t.Errorf("expected ValidationFailedError, got %v", err)
				}
			},
		},
		{
			name: "identity mismatch",
			resolver: &stubResolver{records: []cartaporte.ErrorRecord{{
				Field: "nombre_emisor", Severity: cartaporte.SeverityCritical, Message: "mismatch",
			}}},
			check: func(t *testing.T, err error) {
				var idErr *cartaporte.IdentityMismatchError
				if !errors.As(err, &idErr) || idErr.Records[0].Field != "nombre_emisor" {
					t.Errorf("expected IdentityMismatchError, got %v", err)
				}
			},
		},
		{
			name:     "resolved identity without postal code cannot build",
			resolver: &stubResolver{id: cartaporte.Identity{RFC: "EKU9003173C9"}},
			check: func(t *testing.T, err error) {
				if err == nil || !strings.Contains(err.Error(), "LugarExpedicion") {
					t.Errorf("expected build error naming LugarExpedicion, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stamped int32
			stamper := &testutil.MockStamper{
				StampFunc: func(ctx context.Context, xml string) (*cartaporte.StampResult, error) {
					atomic.AddInt32(&stamped, 1)
					return &cartaporte.StampResult{UUID: "x"}, nil
				},
			}
			opts := Options{Stamper: stamper, Repository: &testutil.MockDocumentRepository{}}
			if tt.validator != nil {
				opts.Validator = tt.validator
			}
			if tt.resolver != nil {
				opts.Resolver = tt.resolver
			}
			s := newTestService(t, opts)

			_, err := s.Stamp(context.Background(), testutil.ValidDocument())
			tt.check(t, err)
			if stamped != 0 {
				t.Error("PAC must not be called")
			}
		})
	}
}

func TestService_StampErrors(t *testing.T) {
	pacErr := errors.New("pac down")
	okStamper := &testutil.MockStamper{
		StampFunc: func(ctx context.Context, xml string) (*cartaporte.StampResult, error) {
			return &cartaporte.StampResult{UUID: "5FB2822E-396D-4725-8521-CDC4BDD20CCF", SelloCFD: "12345678"}, nil
		},
	}

	tests := []struct {
		name    string
		stamper cartaporte.Stamper
		repo    cartaporte.DocumentRepository
		wantErr error
		wantMsg string
	}{
		{name: "no stamper", repo: &testutil.MockDocumentRepository{}, wantErr: cartaporte.ErrStamperUnavailable},
		{name: "no repository", stamper: okStamper, wantErr: cartaporte.ErrRepositoryUnavailable},
		{
			name: "pac error is wrapped",
			stamper: &testutil.MockStamper{StampFunc: func(ctx context.Context, xml string) (*cartaporte.StampResult, error) {
				return nil, pacErr
			}},
			repo:    &testutil.MockDocumentRepository{},
			wantErr: pacErr,
		},
		{
			name:    "pac without uuid",
			stamper: &testutil.MockStamper{},
			repo:    &testutil.MockDocumentRepository{},
			wantMsg: "no uuid",
		},
		{
			name:    "persist failure names uuid",
			stamper: okStamper,
			repo: &testutil.MockDocumentRepository{SaveFunc: func(ctx context.Context, doc cartaporte.StampedDocument) error {
				return errors.New("db down")
			}},
			wantMsg: "5FB2822E-396D-4725-8521-CDC4BDD20CCF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, Options{Stamper: tt.stamper, Repository: tt.repo})

			_, err := s.Stamp(context.Background(), testutil.ValidDocument())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error to contain %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestService_ValidateBatchKeepsOrder(t *testing.T) {
	validator := &stubValidator{fn: func(doc *cartaporte.Document) cartaporte.ValidationResult {
		if doc.Folio == "bad" {
			return cartaporte.NewValidationResult([]cartaporte.ErrorRecord{{Field: "folio", Severity: cartaporte.SeverityError}})
		}
		return cartaporte.NewValidationResult(nil)
	}}
	s := newTestService(t, Options{Validator: validator, BatchConcurrency: 3})

	docs := make([]*cartaporte.Document, 10)
	for i := range docs {
		docs[i] = testutil.ValidDocument()
		if i%3 == 0 {
			docs[i].Folio = "bad"
		}
	}

	results, err := s.ValidateBatch(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(docs) {
		t.Fatalf("expected %d results, got %d", len(docs), len(results))
	}
	for i, r := range results {
		if want := i%3 != 0; r.Valid != want {
			t.Errorf("result %d: expected valid=%v", i, want)
		}
	}
	if validator.calls != int32(len(docs)) {
		t.Errorf("expected %d validations, got %d", len(docs), validator.calls)
	}
}

func TestService_ValidateBatchCancelled(t *testing.T) {
	s := newTestService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.ValidateBatch(ctx, []*cartaporte.Document{testutil.ValidDocument()}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestService_Get(t *testing.T) {
	repo := &testutil.MockDocumentRepository{
		FindByUUIDFunc: func(ctx context.Context, uuid string) (*cartaporte.StampedDocument, error) {
			if uuid == "known" {
				return &cartaporte.StampedDocument{UUID: uuid}, nil
			}
			return nil, cartaporte.ErrDocumentNotFound
		},
	}
	s := newTestService(t, Options{Repository: repo})

	doc, err := s.Get(context.Background(), "known")
	if err != nil || doc.UUID != "known" {
		t.Errorf("expected known document, got %v, %v", doc, err)
	}
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, cartaporte.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}
