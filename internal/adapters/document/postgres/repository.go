package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements cartaporte.DocumentRepository using PostgreSQL.
type Repository struct {
	db  DB
	log *slog.Logger
}

// NewRepository creates a new stamped-document repository.
func NewRepository(db DB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Save inserts a stamped document. A UUID is stored once.
func (r *Repository) Save(ctx context.Context, doc cartaporte.StampedDocument) error {
	query := `
		INSERT INTO carta_porte_documento (
			uuid, id_ccp, rfc_emisor, rfc_receptor, total, environment,
			cartaporte_version, xml, signed_xml, fecha_emision, fecha_timbrado,
			url_verificacion_cfdi, url_verificacion_ccp, created_at
		) VALUES ($1::text::uuid, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Exec(ctx, query,
		doc.UUID,
		doc.IDCCP,
		doc.RFCEmisor,
		doc.RFCReceptor,
		doc.Total,
		string(doc.Environment),
		doc.CartaPorteVersion,
		doc.XML,
		doc.SignedXML,
		doc.FechaEmision,
		doc.FechaTimbrado,
		doc.URLVerificacion,
		doc.URLVerificaCCP,
		doc.CreatedAt,
	)
	if err != nil {
		if r.log != nil {
			r.log.ErrorContext(ctx, "Failed to insert stamped document",
				"uuid", doc.UUID,
				"id_ccp", doc.IDCCP,
				"error", err,
			)
		}
		return fmt.Errorf("insert stamped document: %w", err)
	}
	return nil
}

// FindByUUID returns cartaporte.ErrDocumentNotFound for unknown UUIDs.
func (r *Repository) FindByUUID(ctx context.Context, uuid string) (*cartaporte.StampedDocument, error) {
	query := `
		SELECT upper(uuid::text), id_ccp, rfc_emisor, rfc_receptor, total::text, environment,
		       cartaporte_version, xml, signed_xml, fecha_emision, fecha_timbrado,
		       url_verificacion_cfdi, url_verificacion_ccp, created_at
		FROM carta_porte_documento
		WHERE uuid = $1::text::uuid
	`

	var (
		doc cartaporte.StampedDocument
		env string
	)
	err := r.db.QueryRow(ctx, query, uuid).Scan(
		&doc.UUID,
		&doc.IDCCP,
		&doc.RFCEmisor,
		&doc.RFCReceptor,
		&doc.Total,
		&env,
		&doc.CartaPorteVersion,
		&doc.XML,
		&doc.SignedXML,
		&doc.FechaEmision,
		&doc.FechaTimbrado,
		&doc.URLVerificacion,
		&doc.URLVerificaCCP,
		&doc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cartaporte.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query stamped document %s: %w", uuid, err)
	}
	doc.Environment = cartaporte.Environment(env)
	return &doc, nil
}
