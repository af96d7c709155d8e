package cfdi

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	verificaCFDIURL = "https://verificacfdi.facturaelectronica.sat.gob.mx/default.aspx"
	verificaCCPURL  = "https://verificacfdi.facturaelectronica.sat.gob.mx/verificaccp/default.aspx"

	selloTailLength = 8
	totalMaxPlaces  = 6
)

var errMissingVerificationField = errors.New("verification url: missing field")

// CFDIVerification is the input of the post-stamping CFDI QR URL.
type CFDIVerification struct {
	UUID        string
	RFCEmisor   string
	RFCReceptor string
	Total       decimal.Decimal
	SelloCFD    string
}

// CCPVerification is the input of the Carta Porte QR URL.
type CCPVerification struct {
	IDCCP         string
	FechaOrigen   time.Time
	FechaTimbrado time.Time
}

// CFDIVerificationURL builds the SAT CFDI verification URL with parameters
// in the published order: id, re, rr, tt, fe.
func CFDIVerificationURL(v CFDIVerification) (string, error) {
	if v.UUID == "" || v.RFCEmisor == "" || v.RFCReceptor == "" || len(v.SelloCFD) < selloTailLength {
		return "", errMissingVerificationField
	}
	return buildQuery(verificaCFDIURL, [][2]string{
		{"id", v.UUID},
		{"re", v.RFCEmisor},
		{"rr", v.RFCReceptor},
		{"tt", formatVerificationTotal(v.Total)},
		{"fe", v.SelloCFD[len(v.SelloCFD)-selloTailLength:]},
	}), nil
}

// CCPVerificationURL builds the SAT Carta Porte verification URL with
// parameters in the published order: IdCCP, FechaOrig, FechaTimb.
func CCPVerificationURL(v CCPVerification) (string, error) {
	if v.IDCCP == "" || v.FechaOrigen.IsZero() || v.FechaTimbrado.IsZero() {
		return "", errMissingVerificationField
	}
	return buildQuery(verificaCCPURL, [][2]string{
		{"IdCCP", v.IDCCP},
		{"FechaOrig", formatDateTime(v.FechaOrigen)},
		{"FechaTimb", formatDateTime(v.FechaTimbrado)},
	}), nil
}

// formatVerificationTotal writes the total with up to six decimals and no
// non-significant zeros.
func formatVerificationTotal(total decimal.Decimal) string {
	return total.Truncate(totalMaxPlaces).String()
}

// buildQuery keeps parameter order; url.Values would sort the keys.
func buildQuery(base string, params [][2]string) string {
	var b strings.Builder
	b.WriteString(base)
	for i, p := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(queryValue(p[1]))
	}
	return b.String()
}

// queryUnescaped restores characters that are legal inside a query value
// and appear literally in SAT verification URLs: timestamp colons and the
// base64 alphabet of the seal tail.
var queryUnescaped = strings.NewReplacer("%3A", ":", "%2F", "/", "%3D", "=")

func queryValue(s string) string {
	return queryUnescaped.Replace(url.QueryEscape(s))
}
