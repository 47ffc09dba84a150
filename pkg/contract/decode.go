package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var errTrailingData = errors.New("unexpected text after JSON object")

// decodeStrict decodes a single JSON object into v, rejecting unknown fields
// and anything that follows the object.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

// missingFieldError names a required contract field absent from the reply.
type missingFieldError struct {
	Field string
}

func (e *missingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

func requireFields(fields map[string]bool) error {
	for _, name := range sortedKeys(fields) {
		if !fields[name] {
			return &missingFieldError{Field: name}
		}
	}
	return nil
}
