package contract

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evaluatorReply = `{
  "internalEvaluation": "Good sentence.",
  "npcDialogue": "Guard: \"Mind the gap.\"",
  "sceneDescription": "A busy concourse.",
  "stateChange": {"health": -10, "inventory": ["+Ticket", "-Umbrella"], "location": "Platform 1"}
}`

func mustLookup(t *testing.T, version string) Contract {
	t.Helper()
	c, err := Lookup(version)
	require.NoError(t, err)
	return c
}

func TestLookup(t *testing.T) {
	c, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, c.Version())

	c, err = Lookup(VersionScene)
	require.NoError(t, err)
	assert.Equal(t, VersionScene, c.Version())

	_, err = Lookup("freeform.v0")
	assert.True(t, errors.Is(err, ErrUnknownContract))
}

func TestVersions(t *testing.T) {
	assert.Equal(t, []string{VersionEvaluator, VersionScene}, Versions())
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"no tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"space before tag", "``` json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence on one line", "```{\"a\":1}```", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"plain text", "Hello traveler", "Hello traveler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFence(tt.input); got != tt.expected {
				t.Errorf("StripFence(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParse_FencedAndUnfencedAreIdentical(t *testing.T) {
	for _, version := range Versions() {
		t.Run(version, func(t *testing.T) {
			c := mustLookup(t, version)
			reply := evaluatorReply
			if version == VersionScene {
				reply = `{"narrativeScene":"Rain.","linguisticFeedback":"Fine.","stateChange":{"health":-10}}`
			}

			plain := Parse(c, reply)
			fenced := Parse(c, "```json\n"+reply+"\n```")
			bare := Parse(c, "```\n"+reply+"\n```")
			spaced := Parse(c, "``` json\n"+reply+"\n```")

			require.True(t, plain.OK(), "plain reply should decode: %+v", plain.Failure)
			if diff := cmp.Diff(plain, fenced); diff != "" {
				t.Errorf("json-fenced payload differs (-plain +fenced):\n%s", diff)
			}
			if diff := cmp.Diff(plain, bare); diff != "" {
				t.Errorf("bare-fenced payload differs (-plain +fenced):\n%s", diff)
			}
			if diff := cmp.Diff(plain, spaced); diff != "" {
				t.Errorf("spaced-tag payload differs (-plain +fenced):\n%s", diff)
			}
		})
	}
}

func TestParse_Evaluator(t *testing.T) {
	result := Parse(mustLookup(t, VersionEvaluator), evaluatorReply)
	require.True(t, result.OK())

	p := result.Payload
	assert.Equal(t, VersionEvaluator, p.Version)
	assert.Equal(t, "A busy concourse.", p.Scene)
	assert.Equal(t, `Guard: "Mind the gap."`, p.NPCDialogue)
	assert.Equal(t, "Good sentence.", p.Evaluation)
	require.NotNil(t, p.StateChange.Health)
	assert.Equal(t, -10, *p.StateChange.Health)
	assert.Nil(t, p.StateChange.Standing)
	assert.Equal(t, []string{"+Ticket", "-Umbrella"}, p.StateChange.Inventory)
	require.NotNil(t, p.StateChange.Location)
	assert.Equal(t, "Platform 1", *p.StateChange.Location)
}

func TestParse_SceneMissionFallback(t *testing.T) {
	c := mustLookup(t, VersionScene)

	top := Parse(c, `{"narrativeScene":"s","linguisticFeedback":"f","stateChange":{},"currentMission":"Find a pub"}`)
	require.True(t, top.OK())
	require.NotNil(t, top.Payload.StateChange.CurrentMission)
	assert.Equal(t, "Find a pub", *top.Payload.StateChange.CurrentMission)
	assert.Equal(t, "f", top.Payload.Evaluation)

	nested := Parse(c, `{"narrativeScene":"s","linguisticFeedback":"f","stateChange":{"currentMission":"Inner"},"currentMission":"Outer"}`)
	require.True(t, nested.OK())
	assert.Equal(t, "Inner", *nested.Payload.StateChange.CurrentMission)
}

func TestParse_ExplicitZeroIsPresent(t *testing.T) {
	result := Parse(mustLookup(t, VersionScene), `{"narrativeScene":"s","linguisticFeedback":"f","stateChange":{"health":0}}`)
	require.True(t, result.OK())
	require.NotNil(t, result.Payload.StateChange.Health)
	assert.Equal(t, 0, *result.Payload.StateChange.Health)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name    string
		version string
		raw     string
		reason  string
	}{
		{"plain text", VersionEvaluator, "Hello traveler", "invalid JSON"},
		{"empty", VersionEvaluator, "", "invalid JSON"},
		{"wrong shape", VersionEvaluator, `{"narrativeScene":"s","linguisticFeedback":"f","stateChange":{}}`, "unknown field"},
		{"missing field", VersionEvaluator, `{"internalEvaluation":"e","npcDialogue":"n","stateChange":{}}`, "sceneDescription"},
		{"null field", VersionScene, `{"narrativeScene":null,"linguisticFeedback":"f","stateChange":{}}`, "narrativeScene"},
		{"unknown state field", VersionScene, `{"narrativeScene":"s","linguisticFeedback":"f","stateChange":{"mana":3}}`, "unknown field"},
		{"wrong type", VersionScene, `{"narrativeScene":"s","linguisticFeedback":"f","stateChange":{"health":"-10"}}`, "invalid JSON"},
		{"trailing commentary", VersionScene, `{"narrativeScene":"s","linguisticFeedback":"f","stateChange":{}} Hope this helps!`, "unexpected text"},
		{"array", VersionScene, `[]`, "invalid JSON"},
		{"null", VersionScene, `null`, "missing required field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse(mustLookup(t, tt.version), tt.raw)
			require.False(t, result.OK())
			require.NotNil(t, result.Failure)
			assert.Equal(t, tt.raw, result.Failure.Raw)
			assert.Contains(t, result.Failure.Reason, tt.reason)
		})
	}
}

func TestInstructions_CarrySchemaAndExample(t *testing.T) {
	for _, version := range Versions() {
		c := mustLookup(t, version)
		text := c.Instructions()
		assert.Contains(t, text, "JSON schema:")
		assert.Contains(t, text, `"stateChange"`)

		// The embedded example must satisfy its own contract
		idx := strings.Index(text, "Example:\n")
		require.GreaterOrEqual(t, idx, 0)
		example := text[idx+len("Example:\n"):]
		assert.True(t, Parse(c, example).OK(), "example for %s does not decode", version)
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema(VersionEvaluator)
	require.NoError(t, err)

	var doc struct {
		Title      string                     `json:"title"`
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc.Title, VersionEvaluator)
	assert.ElementsMatch(t, []string{"internalEvaluation", "npcDialogue", "sceneDescription", "stateChange"}, doc.Required)
	assert.Contains(t, doc.Properties, "stateChange")

	_, err = Schema("nope")
	assert.ErrorIs(t, err, ErrUnknownContract)
}

func TestRender(t *testing.T) {
	ok := Parse(mustLookup(t, VersionEvaluator), evaluatorReply)
	d := Render(ok)
	assert.Equal(t, "A busy concourse.", d.Scene)
	assert.Equal(t, "Good sentence.", d.Feedback)
	assert.Equal(t, "A busy concourse.\n\n"+`Guard: "Mind the gap."`, d.Narration())

	failed := Parse(mustLookup(t, VersionEvaluator), "  Hello traveler ")
	d = Render(failed)
	assert.Equal(t, "Hello traveler", d.Raw)
	assert.Equal(t, "Hello traveler", d.Narration())
	assert.Empty(t, d.Feedback)

	assert.Equal(t, Display{}, Render(Result{}))
}
