// Package postgres backs the production SAT catalogs and identity source
// with PostgreSQL tables.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of *pgxpool.Pool the catalogs use.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostalCodes implements cartaporte.PostalCodeCatalog over sat_codigo_postal.
type PostalCodes struct {
	db  Querier
	log *slog.Logger
}

// NewPostalCodes creates the postal-code catalog.
func NewPostalCodes(db Querier, log *slog.Logger) *PostalCodes {
	return &PostalCodes{db: db, log: log}
}

// PostalCodeExists reports whether code is in c_CodigoPostal.
func (p *PostalCodes) PostalCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sat_codigo_postal WHERE codigo_postal = $1)`,
		code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query postal code %s: %w", code, err)
	}
	return exists, nil
}

// Identities implements cartaporte.IdentitySource over rfc_validado, the
// cache of RFCs already checked against the SAT registry.
type Identities struct {
	db  Querier
	log *slog.Logger
}

// NewIdentities creates the production identity source.
func NewIdentities(db Querier, log *slog.Logger) *Identities {
	return &Identities{db: db, log: log}
}

// ResolveIdentity returns cartaporte.ErrIdentityNotFound when the RFC has no
// row and cartaporte.ErrIdentityNotValidated when the row is still pending.
func (s *Identities) ResolveIdentity(ctx context.Context, rfc string) (cartaporte.Identity, error) {
	rfc = strings.ToUpper(strings.TrimSpace(rfc))

	var (
		id        cartaporte.Identity
		validated bool
	)
	err := s.db.QueryRow(ctx,
		`SELECT rfc, razon_social, regimen_fiscal, codigo_postal, validado
		   FROM rfc_validado
		  WHERE rfc = $1`,
		rfc,
	).Scan(&id.RFC, &id.Name, &id.FiscalRegime, &id.PostalCode, &validated)
	if errors.Is(err, pgx.ErrNoRows) {
		return cartaporte.Identity{}, cartaporte.ErrIdentityNotFound
	}
	if err != nil {
		return cartaporte.Identity{}, fmt.Errorf("query rfc %s: %w", rfc, err)
	}
	if !validated {
		if s.log != nil {
			s.log.WarnContext(ctx, "rfc pending registry validation", "rfc", rfc)
		}
		return cartaporte.Identity{}, cartaporte.ErrIdentityNotValidated
	}
	return id, nil
}
