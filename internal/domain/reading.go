package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parameter names one monitored water-quality channel.
type Parameter string

const (
	// ParamTemperature is water temperature in °C.
	ParamTemperature Parameter = "temperature"
	// ParamPH is acidity (unitless).
	ParamPH Parameter = "ph"
	// ParamConductivity is electrical conductivity in µS/cm.
	ParamConductivity Parameter = "conductivity"
	// ParamTDS is total dissolved solids in ppm.
	ParamTDS Parameter = "tds"
	// ParamTurbidity is turbidity in NTU.
	ParamTurbidity Parameter = "turbidity"
	// ParamORP is oxidation-reduction potential in mV.
	ParamORP Parameter = "orp"
)

// ParameterOrder is the fixed evaluation and display order.
var ParameterOrder = []Parameter{
	ParamTemperature,
	ParamPH,
	ParamConductivity,
	ParamTDS,
	ParamTurbidity,
	ParamORP,
}

type parameterMeta struct {
	label     string
	unit      string
	precision int
}

var parameterRegistry = map[Parameter]parameterMeta{
	ParamTemperature:  {label: "Temperature", unit: "°C", precision: 1},
	ParamPH:           {label: "pH", unit: "", precision: 2},
	ParamConductivity: {label: "Conductivity", unit: "µS/cm", precision: 0},
	ParamTDS:          {label: "TDS", unit: "ppm", precision: 0},
	ParamTurbidity:    {label: "Turbidity", unit: "NTU", precision: 1},
	ParamORP:          {label: "ORP", unit: "mV", precision: 0},
}

// Label returns human-readable parameter name.
func (p Parameter) Label() string {
	if meta, ok := parameterRegistry[p]; ok {
		return meta.label
	}
	return string(p)
}

// Unit returns measurement unit suffix (empty for pH).
func (p Parameter) Unit() string {
	return parameterRegistry[p].unit
}

// Precision returns number of decimals used when formatting values.
func (p Parameter) Precision() int {
	return parameterRegistry[p].precision
}

// Valid reports whether parameter is one of the six known channels.
func (p Parameter) Valid() bool {
	_, ok := parameterRegistry[p]
	return ok
}

// FormatValue renders a measurement with the parameter's precision and unit.
// Params: numeric measurement.
// Returns: display string such as "30.0°C" or "650 ppm".
func (p Parameter) FormatValue(v float64) string {
	number := fmt.Sprintf("%.*f", p.Precision(), v)
	switch unit := p.Unit(); unit {
	case "":
		return number
	case "°C":
		return number + unit
	default:
		return number + " " + unit
	}
}

// Reading is one immutable snapshot from the sensor feed.
// Params: six optional measurements keyed by feed field names.
// Returns: reading consumed once per arrival.
type Reading struct {
	Temperature  Value `json:"tempC"`
	PH           Value `json:"pH"`
	Conductivity Value `json:"ec_uS"`
	TDS          Value `json:"tds_ppm"`
	Turbidity    Value `json:"ntu"`
	ORP          Value `json:"orp_mV"`
}

// Value returns measurement for one parameter.
// Params: parameter key.
// Returns: present or absent measurement.
func (r Reading) Value(p Parameter) Value {
	switch p {
	case ParamTemperature:
		return r.Temperature
	case ParamPH:
		return r.PH
	case ParamConductivity:
		return r.Conductivity
	case ParamTDS:
		return r.TDS
	case ParamTurbidity:
		return r.Turbidity
	case ParamORP:
		return r.ORP
	default:
		return Absent()
	}
}

// DecodeReading decodes one feed payload.
// Params: JSON object, or JSON null / empty body when the feed has no data.
// Returns: reading, presence flag (false for no-data), or decode error.
func DecodeReading(raw []byte) (Reading, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Reading{}, false, nil
	}
	var reading Reading
	if err := json.Unmarshal(trimmed, &reading); err != nil {
		return Reading{}, false, fmt.Errorf("decode reading: %w", err)
	}
	return reading, true, nil
}
