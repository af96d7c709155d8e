package validation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

// wildlifeKeywords hint at goods that usually need the protected-species flag.
var wildlifeKeywords = []string{
	"fauna silvestre",
	"vida silvestre",
	"flora silvestre",
	"especie protegida",
	"especies protegidas",
	"animales silvestres",
}

func (v *Validator) checkMercancias(ctx context.Context, doc *cartaporte.Document, f *findings) {
	for i, m := range doc.Mercancias {
		path := fmt.Sprintf("mercancias[%d]", i)

		switch {
		case isBlank(m.BienesTransp):
			f.fail(path+".bienes_transp", "", CodeRequired, "La clave de producto o servicio es requerida", "")
		case !claveProdServRegex.MatchString(m.BienesTransp):
			f.fail(path+".bienes_transp", m.BienesTransp, CodeInvalidBienesTransp,
				"La clave de producto o servicio debe tener exactamente 8 dígitos",
				"Use una clave del catálogo c_ClaveProdServCP")
		}

		descripcion := strings.TrimSpace(m.Descripcion)
		if utf8.RuneCountInString(descripcion) < minDescriptionLength {
			f.fail(path+".descripcion", m.Descripcion, CodeDescriptionShort,
				fmt.Sprintf("La descripción debe tener al menos %d caracteres", minDescriptionLength), "")
		}

		if !m.Cantidad.IsPositive() {
			f.fail(path+".cantidad", m.Cantidad.String(), CodeInvalidQuantity, "La cantidad debe ser mayor a 0", "")
		}
		if !m.PesoKg.IsPositive() {
			f.fail(path+".peso_kg", m.PesoKg.String(), CodeInvalidWeight, "El peso en kilogramos debe ser mayor a 0", "")
		}
		if isBlank(m.ClaveUnidad) {
			f.fail(path+".clave_unidad", "", CodeRequired, "La clave de unidad es requerida", "Use una clave del catálogo c_ClaveUnidad, por ejemplo KGM")
		}
		if m.ValorMercancia.IsNegative() {
			f.fail(path+".valor_mercancia", m.ValorMercancia.String(), CodeNegativeValue, "El valor de la mercancía no puede ser negativo", "")
		}

		if m.IsMaterialPeligroso() {
			if isBlank(m.CveMaterialPeligroso) {
				f.fail(path+".cve_material_peligroso", "", CodeHazardousCode,
					"La clave de material peligroso es requerida cuando material_peligroso es verdadero",
					"Use una clave del catálogo c_MaterialPeligroso")
			} else {
				v.checkCatalog(ctx, f, cartaporte.CatalogMaterialPeligroso, path+".cve_material_peligroso", m.CveMaterialPeligroso)
			}
		}

		if m.EspecieProtegida {
			if utf8.RuneCountInString(descripcion) < minProtectedSpeciesLength {
				f.fail(path+".descripcion", m.Descripcion, CodeProtectedSpecies,
					fmt.Sprintf("Para especies protegidas la descripción debe tener al menos %d caracteres", minProtectedSpeciesLength),
					"Incluya nombre científico, número de permiso SEMARNAT y número de ejemplares")
			}
		} else if keyword := wildlifeKeyword(descripcion); keyword != "" {
			f.warn(path+".especie_protegida", keyword, CodeWildlifeKeyword,
				fmt.Sprintf("La descripción menciona %q pero la mercancía no está marcada como especie protegida", keyword),
				"Si transporta fauna o flora silvestre marque especie_protegida y use la clave de producto correspondiente")
		}

		if !isBlank(m.Embalaje) {
			v.checkCatalog(ctx, f, cartaporte.CatalogTipoEmbalaje, path+".embalaje", m.Embalaje)
		}
	}
}

func wildlifeKeyword(descripcion string) string {
	lower := strings.ToLower(descripcion)
	for _, k := range wildlifeKeywords {
		if strings.Contains(lower, k) {
			return k
		}
	}
	return ""
}

func (v *Validator) checkConceptos(doc *cartaporte.Document, f *findings) {
	for i, c := range doc.Conceptos {
		path := fmt.Sprintf("conceptos[%d]", i)
		if !claveProdServRegex.MatchString(c.ClaveProdServ) {
			f.fail(path+".clave_prod_serv", c.ClaveProdServ, CodeInvalidBienesTransp,
				"La clave de producto o servicio debe tener exactamente 8 dígitos", "")
		}
		if isBlank(c.Descripcion) {
			f.fail(path+".descripcion", "", CodeRequired, "La descripción del concepto es requerida", "")
		}
		if isBlank(c.ClaveUnidad) {
			f.fail(path+".clave_unidad", "", CodeRequired, "La clave de unidad es requerida", "")
		}
		if !c.Cantidad.IsPositive() {
			f.fail(path+".cantidad", c.Cantidad.String(), CodeInvalidQuantity, "La cantidad debe ser mayor a 0", "")
		}
		if c.ValorUnitario.IsNegative() {
			f.fail(path+".valor_unitario", c.ValorUnitario.String(), CodeNegativeValue, "El valor unitario no puede ser negativo", "")
		}
		if c.Importe.IsNegative() {
			f.fail(path+".importe", c.Importe.String(), CodeNegativeValue, "El importe no puede ser negativo", "")
		}
	}
}
