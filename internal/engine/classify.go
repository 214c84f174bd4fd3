package engine

import (
	"math"

	"waterwatch/internal/domain"
	"waterwatch/internal/threshold"
)

const (
	// DefaultCriticalLowFactor scales a violated lower bound into the critical cutoff.
	DefaultCriticalLowFactor = 0.8
	// DefaultCriticalHighFactor scales a violated upper bound into the critical cutoff.
	DefaultCriticalHighFactor = 1.2
)

// Classifier maps one measurement and band into severity and display position.
// Params: hysteresis factors applied around violated bounds.
// Returns: stateless classifier safe for concurrent use.
type Classifier struct {
	LowFactor  float64
	HighFactor float64
}

// DefaultClassifier returns classifier with 0.8/1.2 hysteresis margins.
func DefaultClassifier() Classifier {
	return Classifier{LowFactor: DefaultCriticalLowFactor, HighFactor: DefaultCriticalHighFactor}
}

// Classify evaluates one value against one band.
// Params: optional measurement and band.
// Returns: severity and normalized position in [0,1] for progress rendering.
func (c Classifier) Classify(value domain.Value, band threshold.Band) (domain.Severity, float64) {
	v, ok := value.Get()
	if !ok || math.IsNaN(v) {
		return domain.SeverityNoData, 0
	}
	min := band.Min.Or(0)
	max := band.Max.Or(0)

	switch band.Kind() {
	case threshold.KindLadder:
		ideal := band.IdealMax.Or(0)
		position := clamp(1 - v/max)
		switch {
		case v < ideal:
			return domain.SeverityExcellent, position
		case v <= max:
			return domain.SeverityAcceptable, position
		default:
			return domain.SeverityCritical, position
		}
	case threshold.KindTwoSided:
		if max == min {
			switch {
			case v == min:
				return domain.SeverityNormal, 0.5
			case v < min:
				return domain.SeverityCritical, 0
			default:
				return domain.SeverityCritical, 1
			}
		}
		position := clamp((v - min) / (max - min))
		switch {
		case v >= min && v <= max:
			return domain.SeverityNormal, position
		case v < min*c.lowFactor() || v > max*c.highFactor():
			return domain.SeverityCritical, position
		default:
			return domain.SeverityWarning, position
		}
	case threshold.KindMaxOnly:
		position := clamp(v / max)
		switch {
		case v <= max:
			return domain.SeverityNormal, position
		case v > max*c.highFactor():
			return domain.SeverityCritical, position
		default:
			return domain.SeverityWarning, position
		}
	default:
		position := 1.0
		if min > 0 {
			position = clamp(v / min)
		}
		switch {
		case v >= min:
			return domain.SeverityNormal, position
		case v < min*c.lowFactor():
			return domain.SeverityCritical, position
		default:
			return domain.SeverityWarning, position
		}
	}
}

func (c Classifier) lowFactor() float64 {
	if c.LowFactor <= 0 {
		return DefaultCriticalLowFactor
	}
	return c.LowFactor
}

func (c Classifier) highFactor() float64 {
	if c.HighFactor <= 0 {
		return DefaultCriticalHighFactor
	}
	return c.HighFactor
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
