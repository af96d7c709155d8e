package cfdi

import (
	"fmt"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

const (
	cfdiNamespace      = "http://www.sat.gob.mx/cfd/4"
	cfdiSchemaLocation = "http://www.sat.gob.mx/sitio_internet/cfd/4/cfdv40.xsd"
	xsiNamespace       = "http://www.w3.org/2001/XMLSchema-instance"
)

// schema holds what differs between CartaPorte complement versions.
type schema struct {
	version   string
	prefix    string
	namespace string
	location  string
	// regimenAsChild switches RegimenAduanero from a CartaPorte attribute
	// (3.0) to a RegimenesAduaneros child list (3.1).
	regimenAsChild bool
	// documentacionAduanera enables per-mercancia customs documents.
	documentacionAduanera bool
	tipoMateria           bool
}

var schemas = map[string]schema{
	cartaporte.Version30: {
		version:   cartaporte.Version30,
		prefix:    "cartaporte30",
		namespace: "http://www.sat.gob.mx/CartaPorte30",
		location:  "http://www.sat.gob.mx/sitio_internet/cfd/CartaPorte/CartaPorte30.xsd",
	},
	cartaporte.Version31: {
		version:               cartaporte.Version31,
		prefix:                "cartaporte31",
		namespace:             "http://www.sat.gob.mx/CartaPorte31",
		location:              "http://www.sat.gob.mx/sitio_internet/cfd/CartaPorte/CartaPorte31.xsd",
		regimenAsChild:        true,
		documentacionAduanera: true,
		tipoMateria:           true,
	},
}

func schemaFor(version string) (schema, error) {
	s, ok := schemas[version]
	if !ok {
		return schema{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	return s, nil
}

// SupportedVersion reports whether the complement version can be built.
func SupportedVersion(version string) bool {
	_, ok := schemas[version]
	return ok
}

func (s schema) el(local string) string {
	return s.prefix + ":" + local
}

func (s schema) schemaLocation() string {
	return cfdiNamespace + " " + cfdiSchemaLocation + " " + s.namespace + " " + s.location
}
