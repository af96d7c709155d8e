package cartaporte

import "github.com/shopspring/decimal"

// TipoComprobante is the CFDI document type a Carta Porte travels on.
type TipoComprobante string

const (
	TipoIngreso  TipoComprobante = "Ingreso"
	TipoTraslado TipoComprobante = "Traslado"
)

// Code returns the single-letter TipoDeComprobante used in the CFDI envelope.
func (t TipoComprobante) Code() string {
	switch t {
	case TipoIngreso:
		return "I"
	case TipoTraslado, "":
		return "T"
	default:
		return ""
	}
}

// TipoUbicacion distinguishes the stops of a trip.
type TipoUbicacion string

const (
	UbicacionOrigen         TipoUbicacion = "Origen"
	UbicacionDestino        TipoUbicacion = "Destino"
	UbicacionPasoIntermedio TipoUbicacion = "PasoIntermedio"
)

// Supported complement schema versions.
const (
	Version30 = "3.0"
	Version31 = "3.1"
)

// TipoFiguraOperador is the figure type code for the vehicle operator.
const TipoFiguraOperador = "01"

// Document is the editable Carta Porte record produced by the data-entry UI.
// Services receive it read-only: nothing in this module writes back into it.
type Document struct {
	RFCEmisor           string `json:"rfc_emisor"`
	NombreEmisor        string `json:"nombre_emisor"`
	RegimenFiscalEmisor string `json:"regimen_fiscal_emisor"`

	RFCReceptor             string `json:"rfc_receptor"`
	NombreReceptor          string `json:"nombre_receptor"`
	RegimenFiscalReceptor   string `json:"regimen_fiscal_receptor"`
	DomicilioFiscalReceptor string `json:"domicilio_fiscal_receptor"`
	UsoCFDI                 string `json:"uso_cfdi"`

	TipoCFDI          TipoComprobante `json:"tipo_cfdi"`
	CartaPorteVersion string          `json:"cartaporte_version"`
	Serie             string          `json:"serie,omitempty"`
	Folio             string          `json:"folio,omitempty"`
	LugarExpedicion   string          `json:"lugar_expedicion,omitempty"`
	Moneda            string          `json:"moneda,omitempty"`
	FormaPago         string          `json:"forma_pago,omitempty"`
	MetodoPago        string          `json:"metodo_pago,omitempty"`

	TransporteInternacional bool   `json:"transporte_internacional"`
	EntradaSalidaMerc       string `json:"entrada_salida_merc,omitempty"`
	PaisOrigenDestino       string `json:"pais_origen_destino,omitempty"`
	ViaEntradaSalida        string `json:"via_entrada_salida,omitempty"`
	RegimenAduanero         string `json:"regimen_aduanero,omitempty"`

	Ubicaciones    []Ubicacion        `json:"ubicaciones"`
	Mercancias     []Mercancia        `json:"mercancias"`
	Autotransporte *Autotransporte    `json:"autotransporte"`
	Figuras        []FiguraTransporte `json:"figuras"`

	// Conceptos are only read for Ingreso documents; Traslado derives its
	// concept lines from the mercancias.
	Conceptos []Concepto `json:"conceptos,omitempty"`
}

// Domicilio is the postal address shape shared by ubicaciones and figuras.
type Domicilio struct {
	Calle          string `json:"calle,omitempty"`
	NumeroExterior string `json:"numero_exterior,omitempty"`
	NumeroInterior string `json:"numero_interior,omitempty"`
	Colonia        string `json:"colonia,omitempty"`
	Localidad      string `json:"localidad,omitempty"`
	Referencia     string `json:"referencia,omitempty"`
	Municipio      string `json:"municipio,omitempty"`
	Estado         string `json:"estado"`
	Pais           string `json:"pais"`
	CodigoPostal   string `json:"codigo_postal"`
}

type Ubicacion struct {
	TipoUbicacion               TipoUbicacion `json:"tipo_ubicacion"`
	IDUbicacion                 string        `json:"id_ubicacion,omitempty"`
	RFCRemitenteDestinatario    string        `json:"rfc_remitente_destinatario,omitempty"`
	NombreRemitenteDestinatario string        `json:"nombre_remitente_destinatario,omitempty"`
	NumRegIdTrib                string        `json:"num_reg_id_trib,omitempty"`
	ResidenciaFiscal            string        `json:"residencia_fiscal,omitempty"`
	FechaHoraSalidaLlegada      string        `json:"fecha_hora_salida_llegada"`
	// DistanciaRecorrida is read only on non-Origen stops.
	DistanciaRecorrida decimal.Decimal `json:"distancia_recorrida"`
	Domicilio          *Domicilio      `json:"domicilio"`
}

type Mercancia struct {
	BienesTransp    string          `json:"bienes_transp"`
	Descripcion     string          `json:"descripcion"`
	ClaveUnidad     string          `json:"clave_unidad"`
	Unidad          string          `json:"unidad,omitempty"`
	Cantidad        decimal.Decimal `json:"cantidad"`
	PesoKg          decimal.Decimal `json:"peso_kg"`
	ValorMercancia  decimal.Decimal `json:"valor_mercancia"`
	Moneda          string          `json:"moneda,omitempty"`
	TipoMateria     string          `json:"tipo_materia,omitempty"`
	Embalaje        string          `json:"embalaje,omitempty"`
	DescripEmbalaje string          `json:"descrip_embalaje,omitempty"`

	// MaterialPeligroso is tri-state: nil means the attribute is not declared.
	MaterialPeligroso    *bool  `json:"material_peligroso,omitempty"`
	CveMaterialPeligroso string `json:"cve_material_peligroso,omitempty"`
	EspecieProtegida     bool   `json:"especie_protegida,omitempty"`

	FraccionArancelaria   string              `json:"fraccion_arancelaria,omitempty"`
	UUIDComercioExt       string              `json:"uuid_comercio_ext,omitempty"`
	DocumentacionAduanera []DocumentoAduanero `json:"documentacion_aduanera,omitempty"`
}

// IsMaterialPeligroso reports whether the hazardous flag is explicitly set.
func (m Mercancia) IsMaterialPeligroso() bool {
	return m.MaterialPeligroso != nil && *m.MaterialPeligroso
}

// DocumentoAduanero is a customs document reference carried by a mercancia
// under international transport.
type DocumentoAduanero struct {
	TipoDocumento    string `json:"tipo_documento"`
	NumPedimento     string `json:"num_pedimento,omitempty"`
	IdentDocAduanero string `json:"ident_doc_aduanero,omitempty"`
	RFCImpo          string `json:"rfc_impo,omitempty"`
}

type Autotransporte struct {
	PermSCT            string          `json:"perm_sct"`
	NumPermisoSCT      string          `json:"num_permiso_sct"`
	ConfigVehicular    string          `json:"config_vehicular"`
	PesoBrutoVehicular decimal.Decimal `json:"peso_bruto_vehicular"`
	PlacaVM            string          `json:"placa_vm"`
	AnioModeloVM       int             `json:"anio_modelo_vm"`
	AseguraRespCivil   string          `json:"asegura_resp_civil"`
	PolizaRespCivil    string          `json:"poliza_resp_civil"`
	AseguraMedAmbiente string          `json:"asegura_med_ambiente,omitempty"`
	PolizaMedAmbiente  string          `json:"poliza_med_ambiente,omitempty"`
	AseguraCarga       string          `json:"asegura_carga,omitempty"`
	PolizaCarga        string          `json:"poliza_carga,omitempty"`
	Remolques          []Remolque      `json:"remolques,omitempty"`
}

type Remolque struct {
	SubTipoRem string `json:"sub_tipo_rem"`
	Placa      string `json:"placa"`
}

type FiguraTransporte struct {
	TipoFigura             string     `json:"tipo_figura"`
	RFCFigura              string     `json:"rfc_figura,omitempty"`
	NombreFigura           string     `json:"nombre_figura"`
	NumLicencia            string     `json:"num_licencia,omitempty"`
	NumRegIdTribFigura     string     `json:"num_reg_id_trib_figura,omitempty"`
	ResidenciaFiscalFigura string     `json:"residencia_fiscal_figura,omitempty"`
	Domicilio              *Domicilio `json:"domicilio,omitempty"`
}

// Concepto is an explicit CFDI concept line for Ingreso documents.
type Concepto struct {
	ClaveProdServ string          `json:"clave_prod_serv"`
	Cantidad      decimal.Decimal `json:"cantidad"`
	ClaveUnidad   string          `json:"clave_unidad"`
	Unidad        string          `json:"unidad,omitempty"`
	Descripcion   string          `json:"descripcion"`
	ValorUnitario decimal.Decimal `json:"valor_unitario"`
	Importe       decimal.Decimal `json:"importe"`
	ObjetoImp     string          `json:"objeto_imp,omitempty"`
}
