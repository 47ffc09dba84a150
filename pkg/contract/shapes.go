package contract

import (
	"sort"

	"github.com/jwebster45206/lingua-quest/pkg/state"
)

// SceneReply is the scene.v1 reply shape: narration plus feedback, with an
// optional top-level mission.
type SceneReply struct {
	NarrativeScene     *string            `json:"narrativeScene" jsonschema:"required,description=What the player sees and hears in the target language"`
	LinguisticFeedback *string            `json:"linguisticFeedback" jsonschema:"required,description=Short assessment of the player's last message"`
	StateChange        *state.StateChange `json:"stateChange" jsonschema:"required"`
	CurrentMission     *string            `json:"currentMission,omitempty" jsonschema:"description=New mission when it changes"`
}

// EvaluatorReply is the evaluator.v2 reply shape. The evaluation is written
// before the dialogue so the narrator judges the player's language first.
type EvaluatorReply struct {
	InternalEvaluation *string            `json:"internalEvaluation" jsonschema:"required,description=Assessment of grammar and vocabulary in the player's last message"`
	NPCDialogue        *string            `json:"npcDialogue" jsonschema:"required,description=What the characters say in the target language"`
	SceneDescription   *string            `json:"sceneDescription" jsonschema:"required,description=Short description of the scene"`
	StateChange        *state.StateChange `json:"stateChange" jsonschema:"required"`
}

type sceneContract struct{}

func (sceneContract) Version() string { return VersionScene }

func (c sceneContract) Instructions() string {
	return instructions(&SceneReply{}, sceneExample)
}

func (sceneContract) Decode(data []byte) (*Payload, error) {
	var reply SceneReply
	if err := decodeStrict(data, &reply); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]bool{
		"narrativeScene":     reply.NarrativeScene != nil,
		"linguisticFeedback": reply.LinguisticFeedback != nil,
		"stateChange":        reply.StateChange != nil,
	}); err != nil {
		return nil, err
	}

	change := *reply.StateChange
	if change.CurrentMission == nil && reply.CurrentMission != nil {
		change.CurrentMission = reply.CurrentMission
	}
	return &Payload{
		Scene:       *reply.NarrativeScene,
		Evaluation:  *reply.LinguisticFeedback,
		StateChange: change,
	}, nil
}

type evaluatorContract struct{}

func (evaluatorContract) Version() string { return VersionEvaluator }

func (c evaluatorContract) Instructions() string {
	return instructions(&EvaluatorReply{}, evaluatorExample)
}

func (evaluatorContract) Decode(data []byte) (*Payload, error) {
	var reply EvaluatorReply
	if err := decodeStrict(data, &reply); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]bool{
		"internalEvaluation": reply.InternalEvaluation != nil,
		"npcDialogue":        reply.NPCDialogue != nil,
		"sceneDescription":   reply.SceneDescription != nil,
		"stateChange":        reply.StateChange != nil,
	}); err != nil {
		return nil, err
	}
	return &Payload{
		Scene:       *reply.SceneDescription,
		NPCDialogue: *reply.NPCDialogue,
		Evaluation:  *reply.InternalEvaluation,
		StateChange: *reply.StateChange,
	}, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const sceneExample = `{
  "narrativeScene": "The ticket barrier beeps. A guard in a high-visibility vest looks up.",
  "linguisticFeedback": "Good use of 'could you'. 'Where is the exit' needs a question mark.",
  "stateChange": {"health": 0, "inventory": ["-Oyster Card"]},
  "currentMission": "Find the exit to Euston Road."
}`

const evaluatorExample = `{
  "internalEvaluation": "Correct word order. 'I would like a pint' is polite and natural.",
  "npcDialogue": "Barman: \"Coming right up. That'll be five pounds.\"",
  "sceneDescription": "A crowded pub near the station. Rain taps on the windows.",
  "stateChange": {"standing": 5, "inventory": ["+Pint of ale"], "location": "The Parcel Yard pub"}
}`
