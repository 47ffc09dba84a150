package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lingua-quest/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running api and worker
type Runner struct {
	BaseURL string
	Client  *http.Client
	// StreamClient holds the long-lived event stream open; it has no timeout
	StreamClient      *http.Client
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	ContractOverride  string // If set, overrides the contract for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		StreamClient:      &http.Client{},
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite creates a session, plays its opening turn and then every step
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)+1),
	}

	contractVersion := suite.Contract
	if r.ContractOverride != "" {
		contractVersion = r.ContractOverride
	}

	session, err := CreateSession(ctx, r.Client, r.BaseURL, contractVersion, suite.Seed)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.GameState = session.ID

	stream, err := OpenEventStream(ctx, r.StreamClient, r.BaseURL, session.ID)
	if err != nil {
		result.Error = fmt.Errorf("failed to open event stream: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	defer func() { _ = stream.Close() }()

	opening := TestStep{Name: "opening scene"}
	if suite.Opening != nil {
		opening.Expectations = *suite.Opening
	}
	steps := append([]TestStep{opening}, suite.Steps...)

	for i, step := range steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(steps), step.Name)
		stepResult := r.executeStep(ctx, stream, session.ID, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			// The opening turn gates every later step
			if i == 0 || r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// executeStep queues one turn, waits for its outcome and checks expectations
func (r *Runner) executeStep(ctx context.Context, stream *EventStream, gameStateID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
	}

	requestID, err := PostTurn(ctx, r.Client, r.BaseURL, gameStateID, step.UserPrompt)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	result.RequestID = requestID

	outcome, err := stream.WaitForTurn(ctx, requestID)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	result.ResponseText = outcome.Narration

	// Read back what was saved rather than trusting the event alone
	session, err := GetSession(ctx, r.Client, r.BaseURL, gameStateID)
	if err != nil {
		result.Error = fmt.Errorf("failed to read session after turn: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if err := CheckExpectations(step.Expectations, session.GameState, outcome); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// CheckExpectations validates the test expectations against the saved state
// and the turn's outcome
func CheckExpectations(exp Expectations, postState *state.GameState, outcome *TurnOutcome) error {
	if postState == nil {
		return fmt.Errorf("no session state")
	}
	if outcome == nil {
		outcome = &TurnOutcome{}
	}

	if exp.Location != nil {
		if !strings.EqualFold(postState.Location, *exp.Location) {
			return fmt.Errorf("expected location %s, got %s", *exp.Location, postState.Location)
		}
	}

	// Full inventory check (order independent)
	if len(exp.Inventory) > 0 {
		expected := make(map[string]bool)
		for _, item := range exp.Inventory {
			expected[strings.ToLower(item)] = true
		}

		actual := make(map[string]bool)
		for _, item := range postState.Inventory {
			actual[strings.ToLower(item)] = true
		}

		for expectedItem := range expected {
			if !actual[expectedItem] {
				return fmt.Errorf("expected inventory to contain '%s', but it's missing. Actual inventory: %v", expectedItem, postState.Inventory)
			}
		}
		for actualItem := range actual {
			if !expected[actualItem] {
				return fmt.Errorf("inventory contains unexpected item '%s'. Expected inventory: %v, Actual: %v", actualItem, exp.Inventory, postState.Inventory)
			}
		}
	}

	for _, want := range exp.InventoryContains {
		found := false
		for _, item := range postState.Inventory {
			if strings.EqualFold(item, want) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("expected inventory to contain '%s'. Actual inventory: %v", want, postState.Inventory)
		}
	}

	if exp.TurnCounter != nil && postState.TurnCounter != *exp.TurnCounter {
		return fmt.Errorf("expected turn_counter to be %d, got %d", *exp.TurnCounter, postState.TurnCounter)
	}
	if exp.HealthMin != nil && postState.Health < *exp.HealthMin {
		return fmt.Errorf("expected health >= %d, got %d", *exp.HealthMin, postState.Health)
	}
	if exp.HealthMax != nil && postState.Health > *exp.HealthMax {
		return fmt.Errorf("expected health <= %d, got %d", *exp.HealthMax, postState.Health)
	}
	if exp.StandingMin != nil && postState.Standing < *exp.StandingMin {
		return fmt.Errorf("expected standing >= %d, got %d", *exp.StandingMin, postState.Standing)
	}
	if exp.StandingMax != nil && postState.Standing > *exp.StandingMax {
		return fmt.Errorf("expected standing <= %d, got %d", *exp.StandingMax, postState.Standing)
	}
	if exp.GameOver != nil && postState.IsGameOver() != *exp.GameOver {
		return fmt.Errorf("expected game_over to be %t, got %t", *exp.GameOver, postState.IsGameOver())
	}

	if exp.Parsed != nil && outcome.Parsed != *exp.Parsed {
		return fmt.Errorf("expected parsed to be %t, got %t", *exp.Parsed, outcome.Parsed)
	}
	if exp.HasFeedback != nil {
		has := postState.LinguisticEvaluation != ""
		if has != *exp.HasFeedback {
			return fmt.Errorf("expected feedback present to be %t, got %q", *exp.HasFeedback, postState.LinguisticEvaluation)
		}
	}

	responseText := outcome.Narration
	lowerResponse := strings.ToLower(responseText)
	for _, expectedText := range exp.ResponseContains {
		if !strings.Contains(lowerResponse, strings.ToLower(expectedText)) {
			return fmt.Errorf("expected response to contain '%s', but it didn't", expectedText)
		}
	}
	for _, unexpectedText := range exp.ResponseNotContains {
		if strings.Contains(lowerResponse, strings.ToLower(unexpectedText)) {
			return fmt.Errorf("expected response to NOT contain '%s', but it did", unexpectedText)
		}
	}

	if exp.ResponseRegex != "" {
		matched, err := regexp.MatchString(exp.ResponseRegex, responseText)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("response didn't match regex pattern: %s", exp.ResponseRegex)
		}
	}

	if exp.ResponseMinLength != nil && len(responseText) < *exp.ResponseMinLength {
		return fmt.Errorf("expected response length >= %d, got %d", *exp.ResponseMinLength, len(responseText))
	}
	if exp.ResponseMaxLength != nil && len(responseText) > *exp.ResponseMaxLength {
		return fmt.Errorf("expected response length <= %d, got %d", *exp.ResponseMaxLength, len(responseText))
	}

	return nil
}
