package testutil

import (
	"github.com/shopspring/decimal"

	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

// ValidDocument returns a complete Traslado document issued by the SAT
// sandbox RFC EKU9003173C9. Each call returns a fresh value.
func ValidDocument() *cartaporte.Document {
	return &cartaporte.Document{
		RFCEmisor:               "EKU9003173C9",
		NombreEmisor:            "ESCUELA KEMPER URGATE",
		RegimenFiscalEmisor:     "601",
		RFCReceptor:             "EKU9003173C9",
		NombreReceptor:          "ESCUELA KEMPER URGATE",
		RegimenFiscalReceptor:   "601",
		DomicilioFiscalReceptor: "26015",
		UsoCFDI:                 "S01",
		TipoCFDI:                cartaporte.TipoTraslado,
		CartaPorteVersion:       cartaporte.Version31,
		Ubicaciones: []cartaporte.Ubicacion{
			{
				TipoUbicacion:               cartaporte.UbicacionOrigen,
				IDUbicacion:                 "OR000001",
				RFCRemitenteDestinatario:    "EKU9003173C9",
				NombreRemitenteDestinatario: "ESCUELA KEMPER URGATE",
				FechaHoraSalidaLlegada:      "2026-10-14T08:00:00",
				Domicilio: &cartaporte.Domicilio{
					Calle:        "Av. Juarez",
					Municipio:    "035",
					Estado:       "COA",
					Pais:         "MEX",
					CodigoPostal: "26015",
				},
			},
			{
				TipoUbicacion:               cartaporte.UbicacionDestino,
				IDUbicacion:                 "DE000001",
				RFCRemitenteDestinatario:    "XIA190128J61",
				NombreRemitenteDestinatario: "XENON INDUSTRIAL ARTICLES",
				FechaHoraSalidaLlegada:      "2026-10-14T12:00:00",
				DistanciaRecorrida:          decimal.NewFromInt(120),
				Domicilio: &cartaporte.Domicilio{
					Calle:        "Calle Hidalgo",
					Municipio:    "039",
					Estado:       "NLE",
					Pais:         "MEX",
					CodigoPostal: "64000",
				},
			},
		},
		Mercancias: []cartaporte.Mercancia{
			{
				BienesTransp: "78101800",
				Descripcion:  "Transporte de granel",
				Cantidad:     decimal.NewFromInt(1),
				ClaveUnidad:  "KGM",
				PesoKg:       decimal.NewFromInt(500),
			},
		},
		Autotransporte: &cartaporte.Autotransporte{
			PermSCT:            "TPAF01",
			NumPermisoSCT:      "0X2XTXZ0X5X0X3X2X1X0",
			ConfigVehicular:    "C2",
			PesoBrutoVehicular: decimal.RequireFromString("15.5"),
			PlacaVM:            "501AAA",
			AnioModeloVM:       2020,
			AseguraRespCivil:   "SEGUROS DEL NORTE SA",
			PolizaRespCivil:    "POL-123456",
		},
		Figuras: []cartaporte.FiguraTransporte{
			{
				TipoFigura:   cartaporte.TipoFiguraOperador,
				RFCFigura:    "CACX7605101P8",
				NombreFigura: "Juan Perez Lopez",
				NumLicencia:  "ABC123",
			},
		},
	}
}
