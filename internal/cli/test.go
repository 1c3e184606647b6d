package cli

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yu-iskw/dbt-fusion/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool
	Filter    string // glob over scenario file names without extension
	GoldenDir string
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarizes a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run selection scenarios",
		Long: `Run selection scenarios using the harness framework.

Each scenario file fixes a node snapshot and named selectors, then lists
cases with their expected selections. Cases run on the in-memory evaluator
and, unless the scenario needs the dependency graph, on a sqlite catalog;
both must agree. Results are compared with golden files when present.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  dbtsel test ./scenarios
  dbtsel test ./scenarios --filter "bronze*"
  dbtsel test ./scenarios --update
  dbtsel test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory (default <scenarios-dir>/../golden)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return exitf(ExitCommandError, "scenarios directory not found: %s", scenariosDir)
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden")
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return exitf(ExitCommandError, "failed to find scenarios: %v", err)
	}

	jsonOut := opts.Format == "json"
	r := &scenarioRunner{
		cmd:       cmd,
		goldenDir: goldenDir,
		update:    opts.Update,
	}
	if !jsonOut {
		r.progress = cmd.OutOrStdout()
	}

	if len(files) == 0 && !jsonOut {
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(files)}
	for _, file := range files {
		res := r.run(file)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, res)
	}

	if jsonOut {
		if err := writeTestJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		writeTestSummary(cmd.OutOrStdout(), result)
	}
	if result.Failed > 0 {
		return exitf(ExitFailure, "%d scenario(s) failed", result.Failed)
	}
	return nil
}

// findScenarioFiles returns the .yaml and .yml files under dir, sorted.
// filter matches the file name without its extension.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// scenarioRunner runs scenario files and checks them against golden files.
type scenarioRunner struct {
	cmd       *cobra.Command
	goldenDir string
	update    bool
	progress  io.Writer // per-scenario lines; nil in JSON mode
}

func (r *scenarioRunner) run(file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.report(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.Run(r.cmd.Context(), scenario)
	if err != nil {
		return r.report(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	snapshot, err := harness.MarshalSnapshot(harness.Snapshot{Scenario: scenario.Name, Cases: result.Cases})
	if err != nil {
		return r.report(scenario.Name, fmt.Sprintf("failed to render snapshot: %v", err))
	}
	goldenPath := filepath.Join(r.goldenDir, scenario.Name+".golden")

	if r.update {
		if err := writeGoldenFile(goldenPath, snapshot); err != nil {
			return r.report(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		r.printf("✓ %s (golden updated)\n", scenario.Name)
		return ScenarioResult{Name: scenario.Name, Pass: true}
	}

	errs := append([]string(nil), result.Errors...)
	if msg := compareGolden(goldenPath, snapshot); msg != "" {
		errs = append(errs, msg)
	}
	return r.report(scenario.Name, errs...)
}

// report prints and returns the outcome; no errors means a pass.
func (r *scenarioRunner) report(name string, errs ...string) ScenarioResult {
	if len(errs) == 0 {
		r.printf("✓ %s\n", name)
		return ScenarioResult{Name: name, Pass: true}
	}
	r.printf("✗ %s\n", name)
	for _, e := range errs {
		r.printf("  %s\n", e)
	}
	return ScenarioResult{Name: name, Errors: errs}
}

func (r *scenarioRunner) printf(format string, args ...any) {
	if r.progress != nil {
		fmt.Fprintf(r.progress, format, args...)
	}
}

// compareGolden returns a failure message, or "" when the snapshot matches
// or there is no golden file yet.
func compareGolden(path string, snapshot []byte) string {
	golden, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return ""
	case err != nil:
		return fmt.Sprintf("failed to read golden file: %v", err)
	case !bytes.Equal(golden, snapshot):
		return "selection does not match golden file (run with --update to regenerate)"
	}
	return ""
}

func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func writeTestJSON(w io.Writer, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	return (&OutputFormatter{Format: "json", Writer: w}).writeJSON(resp)
}

func writeTestSummary(w io.Writer, result TestResult) {
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
