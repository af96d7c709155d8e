package cartaporte

import (
	"context"
	"time"
)

// Environment selects which authoritative identity source and PAC endpoint
// a stamping run uses.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// Valid reports whether the environment is one of the supported values.
func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// CatalogKind names a SAT code catalog.
type CatalogKind string

const (
	CatalogTipoEmbalaje      CatalogKind = "c_TipoEmbalaje"
	CatalogConfigAutotransp  CatalogKind = "c_ConfigAutotransporte"
	CatalogSubTipoRem        CatalogKind = "c_SubTipoRem"
	CatalogTipoPermiso       CatalogKind = "c_TipoPermiso"
	CatalogFiguraTransporte  CatalogKind = "c_FiguraTransporte"
	CatalogMaterialPeligroso CatalogKind = "c_MaterialPeligroso"
	CatalogRegimenFiscal     CatalogKind = "c_RegimenFiscal"
	CatalogRegimenAduanero   CatalogKind = "c_RegimenAduanero"
	CatalogDocumentoAduanero CatalogKind = "c_DocumentoAduanero"
)

// PostalCodeCatalog answers postal-code existence against SAT's c_CodigoPostal.
type PostalCodeCatalog interface {
	PostalCodeExists(ctx context.Context, code string) (bool, error)
}

// CodeCatalog answers membership in the smaller SAT code catalogs.
type CodeCatalog interface {
	HasCode(ctx context.Context, kind CatalogKind, code string) (bool, error)
}

// Identity is the authoritative emitter tuple every downstream field is
// reconciled against.
type Identity struct {
	RFC          string `json:"rfc"`
	Name         string `json:"name"`
	FiscalRegime string `json:"fiscal_regime"`
	PostalCode   string `json:"postal_code"`
}

// IdentitySource resolves an RFC to its authoritative identity. It returns
// ErrIdentityNotFound or ErrIdentityNotValidated when the RFC cannot be used.
type IdentitySource interface {
	ResolveIdentity(ctx context.Context, rfc string) (Identity, error)
}

// StampResult is what the PAC hands back for a successfully stamped XML.
type StampResult struct {
	UUID          string
	SignedXML     string
	SelloCFD      string
	FechaTimbrado time.Time
}

// Stamper sends a well-formed, unsigned CFDI to the PAC.
type Stamper interface {
	Stamp(ctx context.Context, xml string) (*StampResult, error)
}

// StampedDocument is the persisted outcome of a stamping run.
type StampedDocument struct {
	UUID              string      `json:"uuid"`
	IDCCP             string      `json:"id_ccp"`
	RFCEmisor         string      `json:"rfc_emisor"`
	RFCReceptor       string      `json:"rfc_receptor"`
	Total             string      `json:"total"`
	Environment       Environment `json:"environment"`
	CartaPorteVersion string      `json:"cartaporte_version"`
	XML               string      `json:"-"`
	SignedXML         string      `json:"signed_xml"`
	FechaEmision      time.Time   `json:"fecha_emision"`
	FechaTimbrado     time.Time   `json:"fecha_timbrado"`
	URLVerificacion   string      `json:"url_verificacion_cfdi"`
	URLVerificaCCP    string      `json:"url_verificacion_ccp"`
	CreatedAt         time.Time   `json:"created_at"`
}

// DocumentRepository persists stamped documents.
type DocumentRepository interface {
	Save(ctx context.Context, doc StampedDocument) error
	FindByUUID(ctx context.Context, uuid string) (*StampedDocument, error)
}
