package validation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"3tcapital/ms_cartaporte_core/internal/application/cfdi"
	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

const minUbicaciones = 2

func (v *Validator) checkUbicaciones(doc *cartaporte.Document, f *findings) {
	us := doc.Ubicaciones
	if len(us) < minUbicaciones {
		f.fail("ubicaciones", fmt.Sprint(len(us)), CodeUbicacionesMin,
			fmt.Sprintf("Se requieren al menos %d ubicaciones", minUbicaciones),
			"Agregue una ubicación de Origen y una de Destino")
	}

	var origenes, destinos int
	for i, u := range us {
		path := fmt.Sprintf("ubicaciones[%d]", i)

		switch u.TipoUbicacion {
		case cartaporte.UbicacionOrigen:
			origenes++
			if origenes == 2 {
				f.fail(path+".tipo_ubicacion", string(u.TipoUbicacion), CodeDuplicateOrigen,
					"Solo puede existir una ubicación de Origen", "Cambie la ubicación adicional a PasoIntermedio")
			}
		case cartaporte.UbicacionDestino:
			destinos++
			if destinos == 2 {
				f.fail(path+".tipo_ubicacion", string(u.TipoUbicacion), CodeDuplicateDestino,
					"Solo puede existir una ubicación de Destino", "Cambie las paradas previas a PasoIntermedio")
			}
		case cartaporte.UbicacionPasoIntermedio:
		default:
			f.fail(path+".tipo_ubicacion", string(u.TipoUbicacion), CodeInvalidTipoUbic,
				"Tipo de ubicación inválido", "Use Origen, Destino o PasoIntermedio")
		}

		checkUbicacion(f, path, u)
	}

	if origenes == 0 {
		f.fail("ubicaciones", "", CodeOrigenRequired, "Falta la ubicación de Origen", "Agregue una ubicación con tipo_ubicacion Origen")
	}
	if destinos == 0 {
		f.fail("ubicaciones", "", CodeDestinoRequired, "Falta la ubicación de Destino", "Agregue una ubicación con tipo_ubicacion Destino")
	}
}

func checkUbicacion(f *findings, path string, u cartaporte.Ubicacion) {
	if u.Domicilio == nil {
		f.fail(path+".domicilio", "", CodeRequired, "El domicilio de la ubicación es requerido", "")
	} else {
		checkDomicilio(f, path+".domicilio", u.Domicilio)
	}

	switch {
	case !isBlank(u.RFCRemitenteDestinatario):
		checkRFC(f, path+".rfc_remitente_destinatario", u.RFCRemitenteDestinatario)
	case isBlank(u.NumRegIdTrib):
		f.fail(path+".rfc_remitente_destinatario", "", CodeRequired,
			"El RFC del remitente o destinatario es requerido",
			"Para residentes en el extranjero capture num_reg_id_trib")
	}

	switch {
	case isBlank(u.FechaHoraSalidaLlegada):
		f.fail(path+".fecha_hora_salida_llegada", "", CodeRequired, "La fecha y hora de salida o llegada es requerida", "")
	default:
		if _, err := time.Parse(cfdi.DateTimeLayout, u.FechaHoraSalidaLlegada); err != nil {
			f.fail(path+".fecha_hora_salida_llegada", u.FechaHoraSalidaLlegada, CodeInvalidDateTime,
				"Formato de fecha inválido", "Use el formato AAAA-MM-DDTHH:MM:SS")
		}
	}

	// Every stop after Origen is serialized with DistanciaRecorrida, whose
	// SAT minimum is 0.01 km.
	switch u.TipoUbicacion {
	case cartaporte.UbicacionDestino, cartaporte.UbicacionPasoIntermedio:
		if !u.DistanciaRecorrida.Round(2).IsPositive() {
			f.fail(path+".distancia_recorrida", u.DistanciaRecorrida.String(), CodeInvalidDistance,
				"La distancia recorrida debe ser de al menos 0.01 km en cada ubicación posterior al Origen",
				"Capture los kilómetros recorridos desde la ubicación anterior")
		}
	}
}

func checkDomicilio(f *findings, path string, d *cartaporte.Domicilio) {
	switch {
	case isBlank(d.CodigoPostal):
		f.fail(path+".codigo_postal", "", CodeRequired, "El código postal es requerido", "")
	case !postalCodePattern.MatchString(d.CodigoPostal):
		f.fail(path+".codigo_postal", d.CodigoPostal, CodeInvalidPostalCode, "El código postal debe tener 5 dígitos", "")
	}
	if isBlank(d.Estado) {
		f.fail(path+".estado", "", CodeRequired, "El estado es requerido", "Use la clave de estado del catálogo c_Estado")
	}
	if isBlank(d.Pais) {
		f.fail(path+".pais", "", CodeRequired, "El país es requerido", "Use MEX para domicilios nacionales")
	}
}

// checkPostalCodes looks up each well-formed postal code once. Lookup
// failures fail open: they become warnings and never block stamping.
func (v *Validator) checkPostalCodes(ctx context.Context, us []cartaporte.Ubicacion, f *findings) {
	if v.postal == nil {
		return
	}

	first := make(map[string]string)
	for i, u := range us {
		if u.Domicilio == nil || !postalCodePattern.MatchString(u.Domicilio.CodigoPostal) {
			continue
		}
		if _, seen := first[u.Domicilio.CodigoPostal]; !seen {
			first[u.Domicilio.CodigoPostal] = fmt.Sprintf("ubicaciones[%d].domicilio.codigo_postal", i)
		}
	}

	codes := make([]string, 0, len(first))
	for code := range first {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		field := first[code]
		exists, err := v.postal.PostalCodeExists(ctx, code)
		if err != nil {
			v.logger.WarnContext(ctx, "postal code lookup failed", "postal_code", code, "error", err)
			f.warn(field, code, CodePostalCodeLookup,
				"No fue posible verificar el código postal en el catálogo del SAT", "Verifique el código postal manualmente")
			continue
		}
		if !exists {
			f.fail(field, code, CodePostalCodeNotFound,
				"El código postal no existe en el catálogo c_CodigoPostal del SAT", "Verifique el código postal del domicilio")
		}
	}
}
