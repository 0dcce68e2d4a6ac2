// Package report writes the on-disk output layout for one analysis run:
// a timestamped directory holding the redacted configuration, the full
// machine-readable result, per-agent result files, and a human-readable
// markdown report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"stpasec/internal/config"
	"stpasec/internal/logging"
	"stpasec/internal/types"
)

// Writer owns one run directory under the configured output root.
type Writer struct {
	runDir string
}

// NewWriter creates <outputDir>/<timestamp>/ and its results/ subdirectory.
func NewWriter(outputDir string) (*Writer, error) {
	runDir := filepath.Join(outputDir, time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(filepath.Join(runDir, "results"), 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &Writer{runDir: runDir}, nil
}

// Dir returns the run directory path.
func (w *Writer) Dir() string { return w.runDir }

// WriteConfig persists the redacted configuration used for the run.
func (w *Writer) WriteConfig(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return err
	}
	return w.write("analysis-config.yaml", data)
}

// WriteResults persists the full analysis result and one JSON file per
// agent under results/.
func (w *Writer) WriteResults(res *types.AnalysisResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := w.write("analysis-results.json", data); err != nil {
		return err
	}
	for agentType, ar := range res.AgentResults {
		data, err := json.MarshalIndent(ar, "", "  ")
		if err != nil {
			return err
		}
		if err := w.write(filepath.Join("results", agentType+".json"), data); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) write(name string, data []byte) error {
	path := filepath.Join(w.runDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	logging.L(logging.CategoryReport).Debugw("output written", "path", path, "bytes", len(data))
	return nil
}
