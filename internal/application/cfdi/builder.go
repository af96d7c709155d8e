package cfdi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

const (
	unidadPesoKGM       = "KGM"
	monedaSinMoneda     = "XXX"
	monedaDefault       = "MXN"
	usoCFDITraslado     = "S01"
	exportacionNoAplica = "01"
	objetoImpNoObjeto   = "01"
)

var (
	// ErrMissingField is returned when a structurally required value is absent.
	// Validation should have caught it; reaching the builder means a defect
	// upstream.
	ErrMissingField = errors.New("missing required field")
	// ErrUnsupportedVersion is returned for unknown complement versions.
	ErrUnsupportedVersion = errors.New("unsupported cartaporte version")
	// ErrEncoding is returned when a value cannot be written as XML 1.0.
	ErrEncoding = errors.New("xml encoding failed")
	// ErrInvalidIDCCP is returned when BuildContext.IDCCP lacks the SAT shape.
	ErrInvalidIDCCP = errors.New("malformed IdCCP")
)

// BuildContext carries the values the caller fixes for one build so the
// output is reproducible: same document plus same context yields the same bytes.
type BuildContext struct {
	// Fecha is the emission timestamp, already in the issuer's local zone.
	Fecha time.Time
	// IDCCP is the complement identifier, see NewIDCCP.
	IDCCP string
	// DefaultVersion applies when the document does not name a version.
	DefaultVersion string
	// LugarExpedicion applies when the document does not carry one; usually
	// the resolved emitter postal code.
	LugarExpedicion string
	// Emisor is the resolved authoritative identity. Its values are written
	// into cfdi:Emisor, and into cfdi:Receptor when the receptor carries the
	// same RFC, in place of what the document captured.
	Emisor cartaporte.Identity
}

// EffectiveVersion returns the complement version a build of doc will use.
func EffectiveVersion(doc *cartaporte.Document, fallback string) string {
	if doc != nil && doc.CartaPorteVersion != "" {
		return doc.CartaPorteVersion
	}
	if fallback != "" {
		return fallback
	}
	return cartaporte.Version31
}

// Total returns the CFDI Total the builder will emit for doc.
func Total(doc *cartaporte.Document) decimal.Decimal {
	if doc == nil || doc.TipoCFDI != cartaporte.TipoIngreso {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, c := range doc.Conceptos {
		total = total.Add(conceptoImporte(c))
	}
	return total
}

// Build serializes a validated document into a CFDI 4.0 with the CartaPorte
// complement. It performs no semantic validation.
func Build(doc *cartaporte.Document, bc BuildContext) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("%w: document", ErrMissingField)
	}
	s, err := schemaFor(EffectiveVersion(doc, bc.DefaultVersion))
	if err != nil {
		return "", err
	}
	if bc.IDCCP != "" && !ValidIDCCP(bc.IDCCP) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIDCCP, bc.IDCCP)
	}

	root := comprobante(doc, bc, s)
	if missing := root.missing(); len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	var b strings.Builder
	b.WriteString(xmlHeader)
	if err := root.render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func comprobante(doc *cartaporte.Document, bc BuildContext, s schema) *element {
	traslado := doc.TipoCFDI != cartaporte.TipoIngreso
	subTotal, total, moneda := "0", "0", monedaSinMoneda
	if !traslado {
		sum := formatMoney(Total(doc))
		subTotal, total = sum, sum
		moneda = firstNonEmpty(doc.Moneda, monedaDefault)
	}
	lugar := firstNonEmpty(doc.LugarExpedicion, bc.LugarExpedicion)

	a := newAttrs("Comprobante").
		req("xmlns:cfdi", cfdiNamespace).
		req("xmlns:xsi", xsiNamespace).
		req("xmlns:"+s.prefix, s.namespace).
		req("xsi:schemaLocation", s.schemaLocation()).
		req("Version", "4.0").
		opt("Serie", doc.Serie).
		opt("Folio", doc.Folio).
		req("Fecha", formatDateTime(bc.Fecha)).
		when(!traslado, "FormaPago", doc.FormaPago).
		req("SubTotal", subTotal).
		req("Moneda", moneda).
		req("Total", total).
		req("TipoDeComprobante", doc.TipoCFDI.Code()).
		req("Exportacion", exportacionNoAplica).
		when(!traslado, "MetodoPago", doc.MetodoPago).
		req("LugarExpedicion", lugar)

	root := newElement("cfdi:Comprobante", a)
	root.add(emisor(doc, bc.Emisor), receptor(doc, bc.Emisor, traslado), conceptos(doc, traslado))

	complemento := newElement("cfdi:Complemento", nil)
	complemento.add(cartaPorte(doc, bc, s))
	root.add(complemento)
	return root
}

func emisor(doc *cartaporte.Document, id cartaporte.Identity) *element {
	return newElement("cfdi:Emisor", newAttrs("Emisor").
		req("Rfc", firstNonEmpty(id.RFC, doc.RFCEmisor)).
		req("Nombre", firstNonEmpty(id.Name, doc.NombreEmisor)).
		req("RegimenFiscal", firstNonEmpty(id.FiscalRegime, doc.RegimenFiscalEmisor)))
}

func receptor(doc *cartaporte.Document, id cartaporte.Identity, traslado bool) *element {
	uso := doc.UsoCFDI
	if uso == "" && traslado {
		uso = usoCFDITraslado
	}
	rfc, nombre := doc.RFCReceptor, doc.NombreReceptor
	domicilio, regimen := doc.DomicilioFiscalReceptor, doc.RegimenFiscalReceptor
	if id.RFC != "" && strings.EqualFold(strings.TrimSpace(rfc), id.RFC) {
		rfc = id.RFC
		nombre = firstNonEmpty(id.Name, nombre)
		domicilio = firstNonEmpty(id.PostalCode, domicilio)
		regimen = firstNonEmpty(id.FiscalRegime, regimen)
	}
	return newElement("cfdi:Receptor", newAttrs("Receptor").
		req("Rfc", rfc).
		req("Nombre", nombre).
		req("DomicilioFiscalReceptor", domicilio).
		req("RegimenFiscalReceptor", regimen).
		req("UsoCFDI", uso))
}

func conceptos(doc *cartaporte.Document, traslado bool) *element {
	a := newAttrs("Conceptos")
	el := newElement("cfdi:Conceptos", a)

	if traslado {
		if len(doc.Mercancias) == 0 {
			a.missing = append(a.missing, "Conceptos/Concepto")
		}
		for i, m := range doc.Mercancias {
			el.add(newElement("cfdi:Concepto", newAttrs(fmt.Sprintf("Conceptos/Concepto[%d]", i)).
				req("ClaveProdServ", m.BienesTransp).
				req("Cantidad", formatQuantity(m.Cantidad)).
				req("ClaveUnidad", m.ClaveUnidad).
				opt("Unidad", m.Unidad).
				req("Descripcion", m.Descripcion).
				req("ValorUnitario", formatMoney(decimal.Zero)).
				req("Importe", formatMoney(decimal.Zero)).
				req("ObjetoImp", objetoImpNoObjeto)))
		}
		return el
	}

	if len(doc.Conceptos) == 0 {
		a.missing = append(a.missing, "Conceptos/Concepto")
	}
	for i, c := range doc.Conceptos {
		el.add(newElement("cfdi:Concepto", newAttrs(fmt.Sprintf("Conceptos/Concepto[%d]", i)).
			req("ClaveProdServ", c.ClaveProdServ).
			req("Cantidad", formatQuantity(c.Cantidad)).
			req("ClaveUnidad", c.ClaveUnidad).
			opt("Unidad", c.Unidad).
			req("Descripcion", c.Descripcion).
			req("ValorUnitario", formatMoney(c.ValorUnitario)).
			req("Importe", formatMoney(conceptoImporte(c))).
			req("ObjetoImp", firstNonEmpty(c.ObjetoImp, objetoImpNoObjeto))))
	}
	return el
}

func conceptoImporte(c cartaporte.Concepto) decimal.Decimal {
	if !c.Importe.IsZero() {
		return roundMoney(c.Importe)
	}
	return roundMoney(c.Cantidad.Mul(c.ValorUnitario))
}

func cartaPorte(doc *cartaporte.Document, bc BuildContext, s schema) *element {
	intl := doc.TransporteInternacional

	a := newAttrs("CartaPorte").
		req("Version", s.version).
		req("IdCCP", bc.IDCCP).
		req("TranspInternac", siNo(intl)).
		when(intl && !s.regimenAsChild, "RegimenAduanero", doc.RegimenAduanero).
		when(intl, "EntradaSalidaMerc", doc.EntradaSalidaMerc).
		when(intl, "PaisOrigenDestino", doc.PaisOrigenDestino).
		when(intl, "ViaEntradaSalida", doc.ViaEntradaSalida)
	if dist := totalDistance(doc.Ubicaciones); dist.IsPositive() {
		a.opt("TotalDistRec", formatMoney(dist))
	}

	el := newElement(s.el("CartaPorte"), a)
	if intl && s.regimenAsChild && doc.RegimenAduanero != "" {
		regs := newElement(s.el("RegimenesAduaneros"), nil)
		regs.add(newElement(s.el("RegimenAduaneroCCP"), newAttrs("RegimenAduaneroCCP").
			req("RegimenAduanero", doc.RegimenAduanero)))
		el.add(regs)
	}
	el.add(ubicaciones(doc, s), mercancias(doc, s), figuras(doc, s))
	return el
}

// totalDistance sums the rounded distances of every non-Origen stop so the
// aggregate matches the serialized children.
func totalDistance(us []cartaporte.Ubicacion) decimal.Decimal {
	total := decimal.Zero
	for _, u := range us {
		if u.TipoUbicacion == cartaporte.UbicacionOrigen {
			continue
		}
		total = total.Add(roundMoney(u.DistanciaRecorrida))
	}
	return total
}

// xmlTipoUbicacion maps intermediate stops onto Destino: the SAT catalog
// only knows Origen and Destino.
func xmlTipoUbicacion(t cartaporte.TipoUbicacion) string {
	if t == cartaporte.UbicacionPasoIntermedio {
		return string(cartaporte.UbicacionDestino)
	}
	return string(t)
}

func ubicaciones(doc *cartaporte.Document, s schema) *element {
	a := newAttrs("Ubicaciones")
	if len(doc.Ubicaciones) == 0 {
		a.missing = append(a.missing, "Ubicaciones/Ubicacion")
	}
	el := newElement(s.el("Ubicaciones"), a)
	for i, u := range doc.Ubicaciones {
		path := fmt.Sprintf("Ubicaciones/Ubicacion[%d]", i)
		foreign := u.NumRegIdTrib != ""
		ua := newAttrs(path).
			req("TipoUbicacion", xmlTipoUbicacion(u.TipoUbicacion)).
			opt("IDUbicacion", u.IDUbicacion)
		if foreign {
			ua.opt("RFCRemitenteDestinatario", u.RFCRemitenteDestinatario)
		} else {
			ua.req("RFCRemitenteDestinatario", u.RFCRemitenteDestinatario)
		}
		ua.opt("NombreRemitenteDestinatario", u.NombreRemitenteDestinatario).
			opt("NumRegIdTrib", u.NumRegIdTrib).
			opt("ResidenciaFiscal", u.ResidenciaFiscal).
			req("FechaHoraSalidaLlegada", u.FechaHoraSalidaLlegada)
		if u.TipoUbicacion != cartaporte.UbicacionOrigen {
			distancia := ""
			if d := roundMoney(u.DistanciaRecorrida); d.IsPositive() {
				distancia = formatMoney(d)
			}
			ua.req("DistanciaRecorrida", distancia)
		}

		ue := newElement(s.el("Ubicacion"), ua)
		if u.Domicilio == nil {
			ua.missing = append(ua.missing, path+"/Domicilio")
		} else {
			ue.add(domicilio(s, path, u.Domicilio))
		}
		el.add(ue)
	}
	return el
}

func domicilio(s schema, parent string, d *cartaporte.Domicilio) *element {
	return newElement(s.el("Domicilio"), newAttrs(parent+"/Domicilio").
		opt("Calle", d.Calle).
		opt("NumeroExterior", d.NumeroExterior).
		opt("NumeroInterior", d.NumeroInterior).
		opt("Colonia", d.Colonia).
		opt("Localidad", d.Localidad).
		opt("Referencia", d.Referencia).
		opt("Municipio", d.Municipio).
		req("Estado", d.Estado).
		req("Pais", d.Pais).
		req("CodigoPostal", d.CodigoPostal))
}

func mercancias(doc *cartaporte.Document, s schema) *element {
	intl := doc.TransporteInternacional
	peso := decimal.Zero
	for _, m := range doc.Mercancias {
		peso = peso.Add(roundWeight(m.PesoKg))
	}

	a := newAttrs("Mercancias").
		req("PesoBrutoTotal", formatWeight(peso)).
		req("UnidadPeso", unidadPesoKGM).
		req("NumTotalMercancias", strconv.Itoa(len(doc.Mercancias)))
	if len(doc.Mercancias) == 0 {
		a.missing = append(a.missing, "Mercancias/Mercancia")
	}
	el := newElement(s.el("Mercancias"), a)

	for i, m := range doc.Mercancias {
		path := fmt.Sprintf("Mercancias/Mercancia[%d]", i)
		ma := newAttrs(path).
			req("BienesTransp", m.BienesTransp).
			req("Descripcion", m.Descripcion).
			req("Cantidad", formatQuantity(m.Cantidad)).
			req("ClaveUnidad", m.ClaveUnidad).
			opt("Unidad", m.Unidad)
		if m.MaterialPeligroso != nil {
			ma.opt("MaterialPeligroso", siNo(*m.MaterialPeligroso)).
				when(*m.MaterialPeligroso, "CveMaterialPeligroso", m.CveMaterialPeligroso)
		}
		ma.opt("Embalaje", m.Embalaje).
			opt("DescripEmbalaje", m.DescripEmbalaje).
			req("PesoEnKg", formatWeight(m.PesoKg))
		if valor := formatOptionalMoney(m.ValorMercancia); valor != "" {
			ma.opt("ValorMercancia", valor).
				opt("Moneda", firstNonEmpty(m.Moneda, monedaDefault))
		}
		ma.when(intl, "FraccionArancelaria", m.FraccionArancelaria).
			when(intl, "UUIDComercioExt", m.UUIDComercioExt).
			when(intl && s.tipoMateria, "TipoMateria", m.TipoMateria)

		me := newElement(s.el("Mercancia"), ma)
		if intl && s.documentacionAduanera {
			for j, d := range m.DocumentacionAduanera {
				me.add(newElement(s.el("DocumentacionAduanera"), newAttrs(fmt.Sprintf("%s/DocumentacionAduanera[%d]", path, j)).
					req("TipoDocumento", d.TipoDocumento).
					opt("NumPedimento", d.NumPedimento).
					opt("IdentDocAduanero", d.IdentDocAduanero).
					opt("RFCImpo", d.RFCImpo)))
			}
		}
		el.add(me)
	}

	el.add(autotransporte(doc.Autotransporte, a, s))
	return el
}

func autotransporte(at *cartaporte.Autotransporte, parent *attrs, s schema) *element {
	if at == nil {
		parent.missing = append(parent.missing, "Mercancias/Autotransporte")
		return nil
	}
	const path = "Mercancias/Autotransporte"

	el := newElement(s.el("Autotransporte"), newAttrs(path).
		req("PermSCT", at.PermSCT).
		req("NumPermisoSCT", at.NumPermisoSCT))

	pesoVehicular := ""
	if peso := roundMoney(at.PesoBrutoVehicular); peso.IsPositive() {
		pesoVehicular = formatMoney(peso)
	}
	anio := ""
	if at.AnioModeloVM > 0 {
		anio = strconv.Itoa(at.AnioModeloVM)
	}
	el.add(newElement(s.el("IdentificacionVehicular"), newAttrs(path+"/IdentificacionVehicular").
		req("ConfigVehicular", at.ConfigVehicular).
		req("PesoBrutoVehicular", pesoVehicular).
		req("PlacaVM", at.PlacaVM).
		req("AnioModeloVM", anio)))

	el.add(newElement(s.el("Seguros"), newAttrs(path+"/Seguros").
		req("AseguraRespCivil", at.AseguraRespCivil).
		req("PolizaRespCivil", at.PolizaRespCivil).
		opt("AseguraMedAmbiente", at.AseguraMedAmbiente).
		opt("PolizaMedAmbiente", at.PolizaMedAmbiente).
		opt("AseguraCarga", at.AseguraCarga).
		opt("PolizaCarga", at.PolizaCarga)))

	if len(at.Remolques) > 0 {
		rem := newElement(s.el("Remolques"), nil)
		for i, r := range at.Remolques {
			rem.add(newElement(s.el("Remolque"), newAttrs(fmt.Sprintf("%s/Remolques/Remolque[%d]", path, i)).
				req("SubTipoRem", r.SubTipoRem).
				req("Placa", r.Placa)))
		}
		el.add(rem)
	}
	return el
}

func figuras(doc *cartaporte.Document, s schema) *element {
	a := newAttrs("FiguraTransporte")
	if len(doc.Figuras) == 0 {
		a.missing = append(a.missing, "FiguraTransporte/TiposFigura")
	}
	el := newElement(s.el("FiguraTransporte"), a)
	for i, f := range doc.Figuras {
		path := fmt.Sprintf("FiguraTransporte/TiposFigura[%d]", i)
		fa := newAttrs(path).req("TipoFigura", f.TipoFigura)
		if f.NumRegIdTribFigura != "" {
			fa.opt("RFCFigura", f.RFCFigura)
		} else {
			fa.req("RFCFigura", f.RFCFigura)
		}
		fa.opt("NumLicencia", f.NumLicencia).
			req("NombreFigura", f.NombreFigura).
			opt("NumRegIdTribFigura", f.NumRegIdTribFigura).
			opt("ResidenciaFiscalFigura", f.ResidenciaFiscalFigura)

		fe := newElement(s.el("TiposFigura"), fa)
		if f.Domicilio != nil {
			fe.add(domicilio(s, path, f.Domicilio))
		}
		el.add(fe)
	}
	return el
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
