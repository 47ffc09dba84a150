package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/state"
)

var ErrParseFailure = errors.New("reply does not match the response contract")

// decodeReply prints the display parts and state change of a reply. A parse
// failure is printed too and returned as ErrParseFailure.
func decodeReply(w io.Writer, version, raw string) error {
	c, err := contract.Lookup(version)
	if err != nil {
		return err
	}

	result := contract.Parse(c, raw)
	d := contract.Render(result)

	if !result.OK() {
		fmt.Fprintf(w, "Contract: %s\n", c.Version())
		fmt.Fprintf(w, "Parse failure: %s\n\n", result.Failure.Reason)
		fmt.Fprintf(w, "Shown to the player as-is:\n%s\n", d.Raw)
		return ErrParseFailure
	}

	fmt.Fprintf(w, "Contract: %s\n\n", c.Version())
	if d.Scene != "" {
		fmt.Fprintf(w, "Scene:\n%s\n\n", d.Scene)
	}
	if d.Dialogue != "" {
		fmt.Fprintf(w, "Dialogue:\n%s\n\n", d.Dialogue)
	}
	if d.Feedback != "" {
		fmt.Fprintf(w, "Feedback:\n%s\n\n", d.Feedback)
	}

	change, err := json.MarshalIndent(result.Payload.StateChange, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state change: %w", err)
	}
	fmt.Fprintf(w, "State change:\n%s\n", change)
	return nil
}

// SeedValidator collects every problem in a seed file instead of stopping at
// the first.
type SeedValidator struct {
	errors []string
}

func (v *SeedValidator) Validate(data []byte) error {
	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file contains invalid JSON")
	}

	var seed state.Seed
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&seed); err != nil {
		return fmt.Errorf("failed strict JSON unmarshaling: %w", err)
	}

	v.validateSeed(&seed)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *SeedValidator) validateSeed(seed *state.Seed) {
	if seed.TargetLanguage != "" && strings.TrimSpace(seed.TargetLanguage) == "" {
		v.addError("target_language is blank")
	}
	if seed.Health != nil && *seed.Health <= 0 {
		v.addError(fmt.Sprintf("health %d would start the session in game over", *seed.Health))
	}
	if seed.Standing != nil && *seed.Standing < 0 {
		v.addError(fmt.Sprintf("standing %d cannot be negative", *seed.Standing))
	}

	for i, item := range seed.Inventory {
		switch {
		case strings.TrimSpace(item) == "":
			v.addError(fmt.Sprintf("inventory[%d] is empty", i))
		case item[0] == state.InventoryAdd || item[0] == state.InventoryRemove:
			v.addError(fmt.Sprintf("inventory[%d] %q looks like a delta token; seeds list items by name", i, item))
		}
	}
}

func (v *SeedValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}
