package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lingua-quest/pkg/state"
)

// TestSuite defines a complete integration test scenario.
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name     string     `json:"name"`
	Contract string     `json:"contract,omitempty"` // Empty uses the server default
	Seed     state.Seed `json:"seed,omitempty"`

	// Opening is checked after the narrator's first scene
	Opening *Expectations `json:"opening,omitempty"`
	Steps   []TestStep    `json:"steps,omitempty"`
	Cases   []string      `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single player turn and its expected outcomes
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	UserPrompt   string       `json:"user_prompt"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a turn completes
type Expectations struct {
	// Session properties, aligned with pkg/state/gamestate.go
	Location          *string  `json:"location,omitempty"`
	Inventory         []string `json:"inventory,omitempty"`          // Full inventory contents (order independent)
	InventoryContains []string `json:"inventory_contains,omitempty"` // Items that must be carried
	TurnCounter       *int     `json:"turn_counter,omitempty"`
	HealthMin         *int     `json:"health_min,omitempty"`
	HealthMax         *int     `json:"health_max,omitempty"`
	StandingMin       *int     `json:"standing_min,omitempty"`
	StandingMax       *int     `json:"standing_max,omitempty"`
	GameOver          *bool    `json:"game_over,omitempty"`

	// Parsed asserts whether the reply matched the response contract
	Parsed      *bool `json:"parsed,omitempty"`
	HasFeedback *bool `json:"has_feedback,omitempty"`

	// Response analysis runs against the rendered narration
	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ResponseRegex       string   `json:"response_regex,omitempty"`
	ResponseMinLength   *int     `json:"response_min_length,omitempty"`
	ResponseMaxLength   *int     `json:"response_max_length,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	RequestID    string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	GameState uuid.UUID // ID of the session used for this test
}
