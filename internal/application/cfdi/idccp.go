package cfdi

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var idCCPPattern = regexp.MustCompile(`^CCC[a-fA-F0-9]{5}-[a-fA-F0-9]{4}-4[a-fA-F0-9]{3}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

// NewIDCCP returns a fresh complement identifier: a version 4 UUID whose
// first three characters are replaced by the literal "CCC".
func NewIDCCP() string {
	return IDCCPFromUUID(uuid.New())
}

// IDCCPFromUUID derives the identifier from a caller-chosen UUID.
func IDCCPFromUUID(id uuid.UUID) string {
	return "CCC" + strings.ToUpper(id.String()[3:])
}

// ValidIDCCP reports whether s has the SAT IdCCP shape.
func ValidIDCCP(s string) bool {
	return idCCPPattern.MatchString(s)
}
