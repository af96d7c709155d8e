package static

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

// ErrCatalogNotLoaded is returned for catalogs this table does not carry.
// Callers treat it like any other lookup failure.
var ErrCatalogNotLoaded = errors.New("catalog not loaded")

var defaultCodes = map[cartaporte.CatalogKind][]string{
	cartaporte.CatalogTipoPermiso: {
		"TPAF01", "TPAF02", "TPAF03", "TPAF04", "TPAF05", "TPAF06", "TPAF07",
		"TPAF08", "TPAF09", "TPAF10", "TPAF11", "TPAF12", "TPAF13", "TPAF14",
		"TPAF15", "TPAF16", "TPAF17", "TPAF18", "TPAF19", "TPXX00",
	},
	cartaporte.CatalogConfigAutotransp: {
		"VL", "C2", "C3", "C2R2", "C3R2", "C2R3", "C3R3",
		"T2S1", "T2S2", "T2S3", "T3S1", "T3S2", "T3S3",
		"T2S1R2", "T2S2R2", "T2S1R3", "T3S1R2", "T3S1R3", "T3S2R2", "T3S2R3", "T3S2R4",
		"T2S2S2", "T3S2S2", "T3S3S2",
		"OTROEVGP", "OTROSG",
		"GPLUTA", "GPLUTB", "GPLUTC", "GPLUTD", "GPLATA", "GPLATB", "GPLATC", "GPLATD",
	},
	cartaporte.CatalogSubTipoRem: sequence("CTR", 1, 31, 3),
	cartaporte.CatalogFiguraTransporte: {
		"01", "02", "03", "04", "05",
	},
	cartaporte.CatalogTipoEmbalaje: {
		"1A1", "1A2", "1B1", "1B2", "1D", "1G", "1H1", "1H2", "1N1", "1N2",
		"3A1", "3A2", "3B1", "3B2", "3H1", "3H2",
		"4A", "4B", "4C1", "4C2", "4D", "4F", "4G", "4H1", "4H2",
		"5H1", "5H2", "5H3", "5H4", "5L1", "5L2", "5L3", "5M1", "5M2",
		"6HA1", "6HB1", "6HG1", "6HH1", "6PA1", "6PG1",
		"Z01",
	},
	cartaporte.CatalogRegimenFiscal: {
		"601", "603", "605", "606", "607", "608", "610", "611", "612", "614",
		"615", "616", "620", "621", "622", "623", "624", "625", "626",
	},
	cartaporte.CatalogRegimenAduanero: {
		"IMD", "EXD", "ITR", "ITE", "ETR", "ETE", "DFI", "RFE", "RFS", "TRA",
	},
	cartaporte.CatalogDocumentoAduanero: sequence("", 1, 20, 2),
}

// Codes is a read-only in-memory CodeCatalog.
type Codes struct {
	tables map[cartaporte.CatalogKind]map[string]struct{}
}

// NewCodes returns the built-in SAT catalog subset.
func NewCodes() *Codes {
	return NewCodesFrom(defaultCodes)
}

// NewCodesFrom builds a catalog from explicit tables.
func NewCodesFrom(tables map[cartaporte.CatalogKind][]string) *Codes {
	c := &Codes{tables: make(map[cartaporte.CatalogKind]map[string]struct{}, len(tables))}
	for kind, codes := range tables {
		set := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			set[code] = struct{}{}
		}
		c.tables[kind] = set
	}
	return c
}

// HasCode reports membership of code in the kind catalog.
func (c *Codes) HasCode(ctx context.Context, kind cartaporte.CatalogKind, code string) (bool, error) {
	set, ok := c.tables[kind]
	if !ok {
		return false, fmt.Errorf("%s: %w", kind, ErrCatalogNotLoaded)
	}
	_, found := set[strings.ToUpper(strings.TrimSpace(code))]
	return found, nil
}

// sequence renders prefix+n zero-padded to width for n in [from, to].
func sequence(prefix string, from, to, width int) []string {
	out := make([]string, 0, to-from+1)
	for n := from; n <= to; n++ {
		out = append(out, fmt.Sprintf("%s%0*d", prefix, width, n))
	}
	return out
}
