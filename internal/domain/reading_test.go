package domain

import (
	"encoding/json"
	"testing"
)

func TestDecodeReadingNullAndMissingFieldsAreAbsent(t *testing.T) {
	t.Parallel()

	reading, present, err := DecodeReading([]byte(`{"tempC":24.5,"pH":null,"ec_uS":1200}`))
	if err != nil {
		t.Fatalf("decode reading: %v", err)
	}
	if !present {
		t.Fatalf("object payload must be present")
	}
	if got, ok := reading.Temperature.Get(); !ok || got != 24.5 {
		t.Fatalf("unexpected temperature %s", reading.Temperature)
	}
	if reading.PH.IsPresent() {
		t.Fatalf("null pH must decode absent, got %s", reading.PH)
	}
	for _, param := range []Parameter{ParamTDS, ParamTurbidity, ParamORP} {
		if reading.Value(param).IsPresent() {
			t.Fatalf("missing %s must decode absent", param)
		}
	}
}

func TestDecodeReadingEmptyPayload(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "  ", "null"} {
		reading, present, err := DecodeReading([]byte(raw))
		if err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		if present {
			t.Fatalf("payload %q must report no data", raw)
		}
		if reading.Temperature.IsPresent() {
			t.Fatalf("payload %q must yield empty reading", raw)
		}
	}
}

func TestDecodeReadingRejectsNonNumericField(t *testing.T) {
	t.Parallel()

	tests := []string{
		`{"tempC":"hot"}`,
		`{"pH":true}`,
		`{"ntu":[1]}`,
		`{"tempC":`,
	}
	for _, raw := range tests {
		if _, _, err := DecodeReading([]byte(raw)); err == nil {
			t.Fatalf("expected decode error for %s", raw)
		}
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	t.Parallel()

	in := Reading{Temperature: Present(25.25), ORP: Present(-12)}
	body, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"tempC":25.25,"pH":null,"ec_uS":null,"tds_ppm":null,"ntu":null,"orp_mV":-12}`
	if string(body) != want {
		t.Fatalf("marshal = %s, want %s", body, want)
	}

	var out Reading
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestSeverityTextRoundTrip(t *testing.T) {
	t.Parallel()

	for severity, name := range severityNames {
		text, err := severity.MarshalText()
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		if string(text) != name {
			t.Fatalf("marshal %d = %q, want %q", int(severity), text, name)
		}
		var decoded Severity
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if decoded != severity {
			t.Fatalf("round trip %q = %s", name, decoded)
		}
	}

	var decoded Severity
	if err := decoded.UnmarshalText([]byte("fatal")); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}

func TestSeverityJSONInsideAlert(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(Alert{Parameter: ParamPH, Severity: SeverityWarning, Text: "pH high", Value: 8.7})
	if err != nil {
		t.Fatalf("marshal alert: %v", err)
	}
	var decoded Alert
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal alert: %v", err)
	}
	if decoded.Severity != SeverityWarning || decoded.Parameter != ParamPH {
		t.Fatalf("unexpected alert %+v from %s", decoded, body)
	}
}
