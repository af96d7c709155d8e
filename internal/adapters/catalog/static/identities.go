// Package static provides in-memory SAT catalogs and the sandbox identity
// table used when stamping against the PAC test environment.
package static

import (
	"context"
	"strings"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

// sandboxIdentities are the test taxpayers SAT publishes for CFDI 4.0. The
// names are exactly as registered, including the misspellings.
var sandboxIdentities = []cartaporte.Identity{
	{RFC: "EKU9003173C9", Name: "ESCUELA KEMPER URGATE", FiscalRegime: "601", PostalCode: "26015"},
	{RFC: "XIA190128J61", Name: "XENON INDUSTRIAL ARTICLES", FiscalRegime: "601", PostalCode: "76343"},
	{RFC: "CACX7605101P8", Name: "XOCHILT CASAS CHAVEZ", FiscalRegime: "612", PostalCode: "36257"},
	{RFC: "IIA040805DZ4", Name: "INDISTRIA ILUMINADORA DE ALMACENES", FiscalRegime: "601", PostalCode: "62661"},
	{RFC: "URE180429TM6", Name: "UNIVERSIDAD ROBOTICA ESPAÑOLA", FiscalRegime: "601", PostalCode: "65000"},
}

// SandboxIdentities resolves RFCs against the SAT test taxpayer table.
type SandboxIdentities struct {
	byRFC map[string]cartaporte.Identity
}

// NewSandboxIdentities creates the sandbox identity source.
func NewSandboxIdentities() *SandboxIdentities {
	byRFC := make(map[string]cartaporte.Identity, len(sandboxIdentities))
	for _, id := range sandboxIdentities {
		byRFC[id.RFC] = id
	}
	return &SandboxIdentities{byRFC: byRFC}
}

// ResolveIdentity returns cartaporte.ErrIdentityNotFound for any RFC outside
// the test table.
func (s *SandboxIdentities) ResolveIdentity(ctx context.Context, rfc string) (cartaporte.Identity, error) {
	id, ok := s.byRFC[strings.ToUpper(strings.TrimSpace(rfc))]
	if !ok {
		return cartaporte.Identity{}, cartaporte.ErrIdentityNotFound
	}
	return id, nil
}
