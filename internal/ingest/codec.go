package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"waterwatch/internal/domain"
)

// ReadingSink receives decoded feed updates in arrival order.
// Params: reading, or no-data marker via PushEmpty.
// Returns: processing error (e.g. session stopped).
type ReadingSink interface {
	Push(reading domain.Reading) error
	PushEmpty() error
}

// frame is one decoded feed update.
type frame struct {
	reading domain.Reading
	present bool
}

// decodePayload auto-detects single update vs buffered batch.
// Params: raw bytes with one object, null, empty body, or an array of those.
// Returns: frames in payload order.
func decodePayload(raw []byte) ([]frame, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 || payload[0] != '[' {
		reading, present, err := domain.DecodeReading(payload)
		if err != nil {
			return nil, err
		}
		return []frame{{reading: reading, present: present}}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	var items []json.RawMessage
	if err := decoder.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode reading batch: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("reading batch must contain at least one reading")
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	frames := make([]frame, 0, len(items))
	for i, item := range items {
		reading, present, err := domain.DecodeReading(item)
		if err != nil {
			return nil, fmt.Errorf("reading[%d]: %w", i, err)
		}
		frames = append(frames, frame{reading: reading, present: present})
	}
	return frames, nil
}

// ensureJSONEOF rejects trailing tokens after a decoded JSON payload.
// Params: decoder positioned after primary decode.
// Returns: nil on EOF or error on trailing tokens.
func ensureJSONEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode trailing json: %w", err)
	}
	return errors.New("unexpected trailing json tokens")
}

// pushFrames sends frames to sink in order.
// Params: reading sink and decoded frames.
// Returns: first push error or nil.
func pushFrames(sink ReadingSink, frames []frame) error {
	for _, f := range frames {
		var err error
		if f.present {
			err = sink.Push(f.reading)
		} else {
			err = sink.PushEmpty()
		}
		if err != nil {
			return err
		}
	}
	return nil
}
