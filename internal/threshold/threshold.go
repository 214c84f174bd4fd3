package threshold

import (
	"errors"
	"fmt"
	"strconv"

	"waterwatch/internal/domain"
)

// ErrDegenerateBand marks a band that cannot classify any value sensibly.
var ErrDegenerateBand = errors.New("degenerate band")

// Kind selects which classification rule applies to a band.
type Kind int

const (
	// KindTwoSided has both lower and upper bounds.
	KindTwoSided Kind = iota
	// KindMaxOnly has only an upper bound.
	KindMaxOnly
	// KindMinOnly has only a lower bound.
	KindMinOnly
	// KindLadder has ideal and max upper bounds (turbidity style).
	KindLadder
)

// Band is the acceptable numeric range for one parameter.
// Params: optional min, max and idealMax bounds.
// Returns: immutable band used by the classifier.
type Band struct {
	Min      domain.Value
	Max      domain.Value
	IdealMax domain.Value
}

// TwoSided builds [min, max] band.
func TwoSided(min, max float64) Band {
	return Band{Min: domain.Present(min), Max: domain.Present(max)}
}

// MaxOnly builds (-, max] band.
func MaxOnly(max float64) Band {
	return Band{Max: domain.Present(max)}
}

// MinOnly builds [min, -) band.
func MinOnly(min float64) Band {
	return Band{Min: domain.Present(min)}
}

// Ladder builds ideal/max upper-bound ladder.
func Ladder(idealMax, max float64) Band {
	return Band{IdealMax: domain.Present(idealMax), Max: domain.Present(max)}
}

// Kind returns classification rule for band shape.
// Params: none.
// Returns: ladder when idealMax is set, otherwise by present min/max bounds.
func (b Band) Kind() Kind {
	switch {
	case b.IdealMax.IsPresent():
		return KindLadder
	case b.Min.IsPresent() && b.Max.IsPresent():
		return KindTwoSided
	case b.Max.IsPresent():
		return KindMaxOnly
	default:
		return KindMinOnly
	}
}

// Validate rejects bands that cannot be classified.
// Params: none.
// Returns: ErrDegenerateBand wrapped with reason, or nil.
func (b Band) Validate() error {
	if !b.Min.IsPresent() && !b.Max.IsPresent() && !b.IdealMax.IsPresent() {
		return fmt.Errorf("%w: no bounds", ErrDegenerateBand)
	}
	min, hasMin := b.Min.Get()
	max, hasMax := b.Max.Get()
	if hasMin && hasMax && min >= max {
		return fmt.Errorf("%w: min %s >= max %s", ErrDegenerateBand, b.Min, b.Max)
	}
	if ideal, ok := b.IdealMax.Get(); ok {
		if !hasMax {
			return fmt.Errorf("%w: ideal_max requires max", ErrDegenerateBand)
		}
		if hasMin {
			return fmt.Errorf("%w: ideal_max cannot be combined with min", ErrDegenerateBand)
		}
		if ideal > max {
			return fmt.Errorf("%w: ideal_max %s > max %s", ErrDegenerateBand, b.IdealMax, b.Max)
		}
	}
	if b.Kind() == KindMaxOnly && max <= 0 {
		return fmt.Errorf("%w: max-only bound must be positive", ErrDegenerateBand)
	}
	return nil
}

// RangeText renders acceptable range for alert messages.
// Params: parameter used for value precision.
// Returns: strings like "22.0-26.5", "≤600" or "<1.0 ideal, ≤5.0".
func (b Band) RangeText(p domain.Parameter) string {
	format := func(v domain.Value) string {
		return strconv.FormatFloat(v.Or(0), 'f', p.Precision(), 64)
	}
	switch b.Kind() {
	case KindLadder:
		return "<" + format(b.IdealMax) + " ideal, ≤" + format(b.Max)
	case KindTwoSided:
		return format(b.Min) + "-" + format(b.Max)
	case KindMaxOnly:
		return "≤" + format(b.Max)
	default:
		return "≥" + format(b.Min)
	}
}

// Table holds exactly one band per parameter and is read-only after construction.
type Table struct {
	bands map[domain.Parameter]Band
}

// NewTable validates and freezes per-parameter bands.
// Params: band per parameter; all six parameters are required.
// Returns: read-only table or validation error.
func NewTable(bands map[domain.Parameter]Band) (Table, error) {
	frozen := make(map[domain.Parameter]Band, len(domain.ParameterOrder))
	for name := range bands {
		if !name.Valid() {
			return Table{}, fmt.Errorf("unknown parameter %q", name)
		}
	}
	for _, param := range domain.ParameterOrder {
		band, ok := bands[param]
		if !ok {
			return Table{}, fmt.Errorf("missing band for %s", param)
		}
		if err := band.Validate(); err != nil {
			return Table{}, fmt.Errorf("band %s: %w", param, err)
		}
		frozen[param] = band
	}
	return Table{bands: frozen}, nil
}

// DefaultBands returns deployment default bands.
// Params: none.
// Returns: fresh map safe for caller mutation.
func DefaultBands() map[domain.Parameter]Band {
	return map[domain.Parameter]Band{
		domain.ParamTemperature:  TwoSided(22.0, 26.5),
		domain.ParamPH:           TwoSided(6.5, 8.5),
		domain.ParamConductivity: TwoSided(400, 2500),
		domain.ParamTDS:          MaxOnly(600),
		domain.ParamTurbidity:    Ladder(1.0, 5.0),
		domain.ParamORP:          TwoSided(650, 750),
	}
}

// Default returns table built from DefaultBands.
// Panics when the built-in bands fail validation; that is a programmer error,
// never a runtime condition. Configured bands go through NewTable instead.
func Default() Table {
	table, err := NewTable(DefaultBands())
	if err != nil {
		panic(err)
	}
	return table
}

// Band returns configured band for parameter.
// Params: parameter key.
// Returns: band and true when configured.
func (t Table) Band(p domain.Parameter) (Band, bool) {
	band, ok := t.bands[p]
	return band, ok
}
