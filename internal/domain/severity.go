package domain

import "fmt"

// Severity is one classification verdict for a parameter or a reading.
type Severity int

const (
	// SeverityNoData marks a missing measurement.
	SeverityNoData Severity = iota
	// SeverityNormal marks value inside its band.
	SeverityNormal
	// SeverityExcellent marks turbidity below the ideal bound.
	SeverityExcellent
	// SeverityAcceptable marks turbidity between ideal and max.
	SeverityAcceptable
	// SeverityWarning marks excursion inside the hysteresis margin.
	SeverityWarning
	// SeverityCritical marks excursion beyond the hysteresis margin.
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityNoData:     "no_data",
	SeverityNormal:     "normal",
	SeverityExcellent:  "excellent",
	SeverityAcceptable: "acceptable",
	SeverityWarning:    "warning",
	SeverityCritical:   "critical",
}

// String returns snake-case severity name.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText encodes severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes severity from its name.
func (s *Severity) UnmarshalText(raw []byte) error {
	for value, name := range severityNames {
		if name == string(raw) {
			*s = value
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(raw))
}

// Rank orders severities for aggregation.
// Params: none.
// Returns: NoData=0, Normal/Excellent/Acceptable=1, Warning=2, Critical=3.
func (s Severity) Rank() int {
	switch s {
	case SeverityNormal, SeverityExcellent, SeverityAcceptable:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// IsAlert reports whether severity produces an alert.
func (s Severity) IsAlert() bool {
	return s == SeverityWarning || s == SeverityCritical
}

// MaxSeverity returns the higher-ranked severity, keeping a on ties.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
