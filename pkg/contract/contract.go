// Package contract decodes narrator replies against a versioned JSON response
// contract. Decoding never fails loudly: every reply yields a Result that is
// either a Payload or a ParseFailure carrying the raw text.
package contract

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jwebster45206/lingua-quest/pkg/state"
)

// Contract versions.
const (
	VersionScene     = "scene.v1"
	VersionEvaluator = "evaluator.v2"

	DefaultVersion = VersionEvaluator
)

var ErrUnknownContract = errors.New("unknown response contract")

// Contract is one response shape the narrator is instructed to produce.
type Contract interface {
	// Version identifies the contract; it is stored on the game state.
	Version() string
	// Instructions tells the narrator what JSON to emit.
	Instructions() string
	// Decode strictly decodes an unfenced reply.
	Decode(data []byte) (*Payload, error)
}

// Payload is a decoded narrator reply, normalised across contract shapes.
type Payload struct {
	Version     string            `json:"version"`
	Scene       string            `json:"scene,omitempty"`
	NPCDialogue string            `json:"npc_dialogue,omitempty"`
	Evaluation  string            `json:"evaluation,omitempty"`
	StateChange state.StateChange `json:"state_change"`
}

// ParseFailure is the expected, recoverable outcome of an undecodable reply.
type ParseFailure struct {
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// Result holds exactly one of Payload or Failure.
type Result struct {
	Payload *Payload      `json:"payload,omitempty"`
	Failure *ParseFailure `json:"failure,omitempty"`
}

// OK reports whether the reply decoded.
func (r Result) OK() bool {
	return r.Payload != nil
}

var registry = map[string]Contract{
	VersionScene:     sceneContract{},
	VersionEvaluator: evaluatorContract{},
}

// Lookup returns the contract for a version. An empty version selects the default.
func Lookup(version string) (Contract, error) {
	if version == "" {
		version = DefaultVersion
	}
	c, ok := registry[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownContract, version, Versions())
	}
	return c, nil
}

// Versions lists the registered contract versions.
func Versions() []string {
	versions := make([]string, 0, len(registry))
	for v := range registry {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Parse strips an optional code fence and decodes raw against c.
func Parse(c Contract, raw string) Result {
	payload, err := c.Decode([]byte(StripFence(raw)))
	if err != nil {
		return Result{Failure: &ParseFailure{Raw: raw, Reason: err.Error()}}
	}
	payload.Version = c.Version()
	return Result{Payload: payload}
}
