package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"proctor/internal/platform/logger"
	"proctor/internal/proctoring/monitor"
	"proctor/internal/proctoring/sim"
	"proctor/internal/proctoring/tracer"
)

var (
	runFormat  string
	runVerbose bool
	runTrace   string
)

var errScenariosFailed = errors.New("one or more scenarios failed")

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "text", "Output format (text|json)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Log monitor activity to stderr")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Trace monitor spans (spans|otel). otel uses the global tracer provider")
}

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>...",
	Short: "Run scenario files and check their expectations",
	Long: "Loads each scenario, drives a monitor through its steps on a simulated\n" +
		"platform with a manual clock, and compares the outcome with the\n" +
		"scenario's expect block. Exits non-zero if any scenario fails.",
	Args: cobra.MinimumNArgs(1),
	RunE: runScenarios,
}

type scenarioReport struct {
	File       string   `json:"file"`
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	Violations int      `json:"violations"`
	Submits    []bool   `json:"submits"`
	State      string   `json:"state"`
	Phase      string   `json:"phase"`
	Warnings   []string `json:"warnings,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	Failures   []string `json:"failures,omitempty"`
	Spans      []string `json:"spans,omitempty"`
}

func runScenarios(cmd *cobra.Command, args []string) error {
	if runFormat != "text" && runFormat != "json" {
		return fmt.Errorf("unknown format %q", runFormat)
	}
	switch runTrace {
	case "", "spans", "otel":
	default:
		return fmt.Errorf("unknown trace mode %q", runTrace)
	}
	var log *slog.Logger
	if runVerbose {
		log = logger.NewWithWriter(cmd.ErrOrStderr(), "debug")
	}

	reports := make([]scenarioReport, 0, len(args))
	for _, path := range args {
		report, err := runFile(cmd, path, log)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		reports = append(reports, report)
	}

	out := cmd.OutOrStdout()
	if runFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		writeText(out, reports)
	}

	for _, r := range reports {
		if !r.Passed {
			return errScenariosFailed
		}
	}
	return nil
}

func runFile(cmd *cobra.Command, path string, log *slog.Logger) (scenarioReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return scenarioReport{}, err
	}
	defer f.Close()

	sc, err := sim.LoadScenario(f)
	if err != nil {
		return scenarioReport{}, err
	}
	var (
		opts []monitor.Option
		rec  *tracer.Recorder
	)
	switch runTrace {
	case "spans":
		rec = tracer.NewRecorder()
		opts = append(opts, monitor.WithTracer(rec))
	case "otel":
		opts = append(opts, monitor.WithTracer(tracer.NewOTel()))
	}
	res, err := sim.Run(cmd.Context(), sc, log, opts...)
	if err != nil {
		return scenarioReport{}, err
	}
	report := scenarioReport{
		File:       path,
		Name:       res.Name,
		Passed:     res.Passed(),
		Violations: len(res.Violations),
		Submits:    res.Submits,
		State:      string(res.State),
		Phase:      string(res.Phase),
		Warnings:   res.Warnings,
		Errors:     res.Errors,
		Failures:   res.Failures,
	}
	if rec != nil {
		for _, span := range rec.Spans() {
			name := span.Name
			if span.Err != nil {
				name += " (error)"
			}
			report.Spans = append(report.Spans, name)
		}
	}
	return report, nil
}

func writeText(w io.Writer, reports []scenarioReport) {
	passed := 0
	for _, r := range reports {
		status := "FAIL"
		if r.Passed {
			status = "PASS"
			passed++
		}
		fmt.Fprintf(w, "%s  %s (%s)\n", status, r.Name, r.File)
		fmt.Fprintf(w, "      violations=%d state=%s phase=%s submits=%v\n", r.Violations, r.State, r.Phase, r.Submits)
		if len(r.Warnings) > 0 {
			fmt.Fprintf(w, "      warnings: %s\n", strings.Join(r.Warnings, " -> "))
		}
		for _, e := range r.Errors {
			fmt.Fprintf(w, "      error: %s\n", e)
		}
		for _, f := range r.Failures {
			fmt.Fprintf(w, "      expected %s\n", f)
		}
		if len(r.Spans) > 0 {
			fmt.Fprintf(w, "      spans: %s\n", strings.Join(r.Spans, ", "))
		}
	}
	fmt.Fprintf(w, "\n%d/%d scenarios passed\n", passed, len(reports))
}
