// stpasec is the command-line entry point for the STPA-Sec analysis engine.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stpasec/internal/config"
	"stpasec/internal/logging"
)

// Exit codes.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitVerifyError   = 2
	exitAnalysisError = 3
)

var (
	// Global flags
	cfgPath string
	debug   bool
	dbName  string
)

// verificationError marks a model verification failure for exit code 2.
type verificationError struct{ cause error }

func (e *verificationError) Error() string { return e.cause.Error() }
func (e *verificationError) Unwrap() error { return e.cause }

var rootCmd = &cobra.Command{
	Use:   "stpasec",
	Short: "STPA-Sec multi-agent security analysis engine",
	Long: `stpasec runs Systems-Theoretic Process Analysis for Security over a
system description using a team of LLM analysis agents.

Step 1 frames the security problem: mission, losses, hazards, stakeholders,
security constraints, and system boundaries. Step 2 models the control
structure: components, control actions, contexts, feedback, trust
boundaries, and process models.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "analysis configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbName, "use-database", "stpasec", "analysis database name")
	rootCmd.AddCommand(analyzeCmd, demoCmd, listCmd)
}

// databasePath resolves a database name under the output root.
func databasePath(outputDir, name string) (string, error) {
	dir := filepath.Join(outputDir, "databases")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating database directory: %w", err)
	}
	return filepath.Join(dir, name+".db"), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitOK)
}

func exitCode(err error) int {
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return exitConfigError
	}
	var verifyErr *verificationError
	if errors.As(err, &verifyErr) {
		return exitVerifyError
	}
	return exitAnalysisError
}
