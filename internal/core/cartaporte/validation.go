package cartaporte

// Severity grades a validation finding.
type Severity string

const (
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ErrorRecord is a single finding about a document field. Suggestion is
// advisory text for a human; it is never applied automatically.
type ErrorRecord struct {
	Field      string   `json:"field"`
	Value      string   `json:"value,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"`
}

// Blocking reports whether the record prevents stamping.
func (r ErrorRecord) Blocking() bool {
	return r.Severity == SeverityError || r.Severity == SeverityCritical
}

// ValidationResult is the outcome of a pre-stamping validation run.
type ValidationResult struct {
	Valid    bool          `json:"valid"`
	Errors   []ErrorRecord `json:"errors"`
	Warnings []ErrorRecord `json:"warnings"`
}

// NewValidationResult splits findings by severity and computes Valid.
func NewValidationResult(records []ErrorRecord) ValidationResult {
	result := ValidationResult{
		Errors:   make([]ErrorRecord, 0),
		Warnings: make([]ErrorRecord, 0),
	}
	for _, r := range records {
		if r.Blocking() {
			result.Errors = append(result.Errors, r)
			continue
		}
		result.Warnings = append(result.Warnings, r)
	}
	result.Valid = len(result.Errors) == 0
	return result
}

// Messages flattens the blocking findings into "field: message" strings for
// the standard HTTP error body.
func (v ValidationResult) Messages() []string {
	out := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		out = append(out, e.Field+": "+e.Message)
	}
	return out
}
