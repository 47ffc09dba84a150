//go:build integration

package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jwebster45206/lingua-quest/integration/runner"
)

const casesDir = "cases"

var (
	caseFlag     = flag.String("case", "", "Comma-separated case files to run from integration/cases/ (default: all)")
	errFlag      = flag.String("err", "continue", "Step failure handling: 'continue' or 'exit'")
	contractFlag = flag.String("contract", "", "Play every case under this response contract (e.g. 'scene.v1')")
)

// stackEnv locates the api under test. A worker must be consuming the same Redis.
type stackEnv struct {
	BaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	Timeout time.Duration `env:"TEST_TIMEOUT" envDefault:"10m"`
}

// TestCases plays each case file against a live api and worker. Every case
// becomes a subtest so -run can pick one by name as well.
func TestCases(t *testing.T) {
	var stack stackEnv
	if err := env.Parse(&stack); err != nil {
		t.Fatalf("Invalid environment: %v", err)
	}

	mode := runner.ErrorHandlingMode(*errFlag)
	if mode != runner.ErrorHandlingExit && mode != runner.ErrorHandlingContinue {
		t.Fatalf("Invalid -err value %q (want 'exit' or 'continue')", *errFlag)
	}

	files, err := caseFiles(*caseFlag)
	if err != nil {
		t.Fatalf("Failed to find cases: %v", err)
	}

	var jobs []runner.TestJob
	for _, file := range files {
		expanded, err := runner.LoadTestSuiteWithExpansion(file, casesDir)
		if err != nil {
			t.Fatalf("Failed to load %s: %v", file, err)
		}
		jobs = append(jobs, expanded...)
	}
	if len(jobs) == 0 {
		t.Fatal("No cases to run")
	}

	r := runner.NewRunner(stack.BaseURL)
	r.ErrorHandlingMode = mode
	r.ContractOverride = *contractFlag
	r.Logger = func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}

	t.Logf("Playing %d case(s) against %s (contract: %s)", len(jobs), stack.BaseURL, contractLabel(r.ContractOverride))

	ctx, cancel := context.WithTimeout(context.Background(), stack.Timeout)
	defer cancel()

	for _, job := range jobs {
		t.Run(job.Name, func(t *testing.T) {
			result, err := r.RunSuite(ctx, job.Suite)
			t.Logf("Session %s (%s, %v)", result.GameState, job.CaseFile, result.Duration.Round(time.Millisecond))

			for _, step := range result.Results {
				if step.Success {
					t.Logf("  ok   %-28s request=%s %v", step.StepName, step.RequestID, step.Duration.Round(time.Millisecond))
					continue
				}
				t.Errorf("  FAIL %-28s request=%s: %v", step.StepName, step.RequestID, step.Error)
				if step.ResponseText != "" {
					t.Logf("       narrator said: %s", step.ResponseText)
				}
			}

			if err != nil && len(result.Results) == 0 {
				t.Errorf("Case did not start: %v", err)
			}
		})
	}
}

// caseFiles resolves -case names, or every JSON file in the cases directory.
func caseFiles(names string) ([]string, error) {
	if strings.TrimSpace(names) == "" {
		return filepath.Glob(filepath.Join(casesDir, "*.json"))
	}

	var files []string
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			name += ".json"
		}
		path := filepath.Join(casesDir, name)
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func contractLabel(override string) string {
	if override == "" {
		return "per case"
	}
	return override
}
