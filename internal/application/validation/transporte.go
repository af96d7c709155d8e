package validation

import (
	"context"
	"fmt"
	"strconv"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

func (v *Validator) checkAutotransporte(ctx context.Context, at *cartaporte.Autotransporte, f *findings) {
	required := []struct {
		field string
		value string
		label string
	}{
		{"autotransporte.perm_sct", at.PermSCT, "El tipo de permiso SCT"},
		{"autotransporte.num_permiso_sct", at.NumPermisoSCT, "El número de permiso SCT"},
		{"autotransporte.config_vehicular", at.ConfigVehicular, "La configuración vehicular"},
		{"autotransporte.placa_vm", at.PlacaVM, "La placa del vehículo"},
		{"autotransporte.asegura_resp_civil", at.AseguraRespCivil, "La aseguradora de responsabilidad civil"},
		{"autotransporte.poliza_resp_civil", at.PolizaRespCivil, "La póliza de responsabilidad civil"},
	}
	for _, r := range required {
		if isBlank(r.value) {
			f.fail(r.field, "", CodeRequired, r.label+" es requerido", "")
		}
	}

	v.checkCatalog(ctx, f, cartaporte.CatalogTipoPermiso, "autotransporte.perm_sct", at.PermSCT)
	v.checkCatalog(ctx, f, cartaporte.CatalogConfigAutotransp, "autotransporte.config_vehicular", at.ConfigVehicular)

	maxYear := v.now().Year() + 1
	switch {
	case at.AnioModeloVM == 0:
		f.fail("autotransporte.anio_modelo_vm", "", CodeRequired, "El año modelo del vehículo es requerido", "")
	case at.AnioModeloVM < minModelYear || at.AnioModeloVM > maxYear:
		f.fail("autotransporte.anio_modelo_vm", strconv.Itoa(at.AnioModeloVM), CodeInvalidModelYear,
			fmt.Sprintf("El año modelo debe estar entre %d y %d", minModelYear, maxYear), "")
	}

	if !at.PesoBrutoVehicular.Round(2).IsPositive() {
		f.fail("autotransporte.peso_bruto_vehicular", at.PesoBrutoVehicular.String(), CodeVehicleWeight,
			"El peso bruto vehicular es requerido y debe ser mayor a 0", "Capture el peso bruto vehicular en toneladas")
	}

	for i, r := range at.Remolques {
		path := fmt.Sprintf("autotransporte.remolques[%d]", i)
		if isBlank(r.SubTipoRem) {
			f.fail(path+".sub_tipo_rem", "", CodeRequired, "El subtipo de remolque es requerido", "")
		} else {
			v.checkCatalog(ctx, f, cartaporte.CatalogSubTipoRem, path+".sub_tipo_rem", r.SubTipoRem)
		}
		if isBlank(r.Placa) {
			f.fail(path+".placa", "", CodeRequired, "La placa del remolque es requerida", "")
		}
	}
}

func (v *Validator) checkFiguras(ctx context.Context, figuras []cartaporte.FiguraTransporte, f *findings) {
	operador := false
	for i, fig := range figuras {
		path := fmt.Sprintf("figuras[%d]", i)

		if isBlank(fig.TipoFigura) {
			f.fail(path+".tipo_figura", "", CodeRequired, "El tipo de figura es requerido", "")
		} else {
			v.checkCatalog(ctx, f, cartaporte.CatalogFiguraTransporte, path+".tipo_figura", fig.TipoFigura)
		}
		if fig.TipoFigura == cartaporte.TipoFiguraOperador {
			operador = true
			if isBlank(fig.NumLicencia) {
				f.fail(path+".num_licencia", "", CodeLicenseRequired, "El número de licencia es requerido para el operador", "")
			}
		}

		switch {
		case !isBlank(fig.RFCFigura):
			checkRFC(f, path+".rfc_figura", fig.RFCFigura)
		case isBlank(fig.NumRegIdTribFigura):
			f.fail(path+".rfc_figura", "", CodeRequired, "El RFC de la figura es requerido",
				"Para residentes en el extranjero capture num_reg_id_trib_figura")
		}

		if isBlank(fig.NombreFigura) {
			f.fail(path+".nombre_figura", "", CodeRequired, "El nombre de la figura es requerido", "")
		} else {
			checkName(f, path+".nombre_figura", fig.NombreFigura)
		}

		if fig.Domicilio != nil {
			checkDomicilio(f, path+".domicilio", fig.Domicilio)
		}
	}

	if !operador {
		f.fail("figuras", "", CodeOperadorRequired, "Se requiere al menos una figura de tipo 01 (Operador)", "Agregue al operador del vehículo")
	}
}

var entradaSalida = map[string]bool{"Entrada": true, "Salida": true}

func (v *Validator) checkInternacional(ctx context.Context, doc *cartaporte.Document, f *findings) {
	if !entradaSalida[doc.EntradaSalidaMerc] {
		f.fail("entrada_salida_merc", doc.EntradaSalidaMerc, CodeEntradaSalida,
			"Debe indicar si la mercancía entra o sale del país", "Use Entrada o Salida")
	}
	if isBlank(doc.PaisOrigenDestino) {
		f.fail("pais_origen_destino", "", CodeRequired, "El país de origen o destino es requerido para transporte internacional", "")
	}
	if isBlank(doc.ViaEntradaSalida) {
		f.fail("via_entrada_salida", "", CodeRequired, "La vía de entrada o salida es requerida para transporte internacional", "Use 01 para autotransporte")
	}
	if isBlank(doc.RegimenAduanero) {
		f.warn("regimen_aduanero", "", CodeRequired, "No se capturó el régimen aduanero", "Use una clave del catálogo c_RegimenAduanero")
	} else {
		v.checkCatalog(ctx, f, cartaporte.CatalogRegimenAduanero, "regimen_aduanero", doc.RegimenAduanero)
	}

	for i, m := range doc.Mercancias {
		path := fmt.Sprintf("mercancias[%d]", i)
		if isBlank(m.FraccionArancelaria) {
			f.warn(path+".fraccion_arancelaria", "", CodeFraccionRecommended,
				"No se capturó la fracción arancelaria para transporte internacional", "Capture la fracción arancelaria de la TIGIE")
		}
		for j, d := range m.DocumentacionAduanera {
			docPath := fmt.Sprintf("%s.documentacion_aduanera[%d]", path, j)
			if isBlank(d.TipoDocumento) {
				f.fail(docPath+".tipo_documento", "", CodeRequired, "El tipo de documento aduanero es requerido", "")
				continue
			}
			v.checkCatalog(ctx, f, cartaporte.CatalogDocumentoAduanero, docPath+".tipo_documento", d.TipoDocumento)
		}
	}
}
