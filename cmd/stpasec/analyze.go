package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stpasec/internal/config"
	"stpasec/internal/coordinator"
	"stpasec/internal/llm"
	"stpasec/internal/logging"
	"stpasec/internal/prompts"
	"stpasec/internal/report"
	"stpasec/internal/store"
	"stpasec/internal/types"
)

var (
	flagEnhanced    bool
	flagStep        int
	flagInputs      []string
	flagSavePrompts bool
	flagParent      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run an STPA-Sec analysis",
	Long: `Runs all phases of one analysis step and writes the results under the
configured output directory. Step 2 builds on the most recent completed
Step 1 analysis unless --parent selects one explicitly.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&flagEnhanced, "enhanced", false, "run task-appropriate cognitive style pairs per agent")
	analyzeCmd.Flags().IntVar(&flagStep, "step", 1, "analysis step to run (1 or 2)")
	analyzeCmd.Flags().StringArrayVar(&flagInputs, "input", nil, "system description file(s); overrides the configured input")
	analyzeCmd.Flags().BoolVar(&flagSavePrompts, "save-prompts", false, "capture every LLM prompt and response")
	analyzeCmd.Flags().StringVar(&flagParent, "parent", "", "step 1 analysis id a step 2 run builds on")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if flagEnhanced {
		cfg.Execution.Mode = config.ModeEnhanced
	}
	if flagSavePrompts {
		cfg.Execution.SavePrompts = true
	}
	if err := logging.Init(cfg.Logging.Debug || debug); err != nil {
		return err
	}

	step := types.Step(flagStep)
	if step != types.Step1 && step != types.Step2 {
		return &config.ConfigError{Key: "step", Reason: fmt.Sprintf("invalid step %d (valid: 1, 2)", flagStep)}
	}

	input, err := resolveInput(cfg, flagInputs)
	if err != nil {
		return err
	}

	dbPath, err := databasePath(cfg.Analysis.OutputDir, dbName)
	if err != nil {
		return err
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		return err
	}
	verifyCtx, cancelVerify := context.WithTimeout(cmd.Context(), 30*time.Second)
	err = llm.VerifyClient(verifyCtx, client)
	cancelVerify()
	if err != nil {
		return &verificationError{cause: err}
	}

	writer, err := report.NewWriter(cfg.Analysis.OutputDir)
	if err != nil {
		return err
	}

	var saver *llm.PromptSaver
	if cfg.Execution.SavePrompts {
		saver, err = llm.NewPromptSaver(writer.Dir(), cfg.Analysis.Name)
		if err != nil {
			return err
		}
	}
	adapter := llm.NewAdapter(llm.AdapterConfig{
		Client:        client,
		Saver:         saver,
		MaxConcurrent: cfg.Execution.MaxConcurrentLLM,
		CallTimeout:   time.Duration(cfg.Execution.LLMTimeoutSeconds) * time.Second,
	})

	loader, err := prompts.NewLoader(cfg.Execution.PromptOverrideDir)
	if err != nil {
		return err
	}
	defer loader.Close()

	coord := coordinator.New(coordinator.Options{
		Store:        s,
		Adapter:      adapter,
		Prompts:      loader,
		Mode:         cfg.Execution.Mode,
		AgentTimeout: time.Duration(cfg.Execution.AgentTimeoutSeconds) * time.Second,
		TotalTimeout: time.Duration(cfg.Execution.TotalTimeoutSeconds) * time.Second,
	})
	go printProgress(coord.Events())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := coord.Run(ctx, coordinator.RunInput{
		Name:             cfg.Analysis.Name,
		Step:             step,
		Input:            input,
		ParentAnalysisID: flagParent,
	})

	if saver != nil {
		if err := saver.Flush(); err != nil {
			logging.L(logging.CategoryLLM).Warnw("prompt index write failed", "error", err)
		}
	}
	if res != nil {
		if err := writer.WriteConfig(cfg); err != nil {
			return err
		}
		if err := writer.WriteResults(res); err != nil {
			return err
		}
		if err := writer.WriteMarkdown(s, res); err != nil {
			return err
		}
		printSummary(res, writer.Dir(), s.Path())
	}
	if runErr != nil {
		return fmt.Errorf("analysis failed: %w", runErr)
	}
	return nil
}

// resolveInput assembles the system description from flags or configuration.
func resolveInput(cfg *config.Config, flagInputs []string) (types.ProcessedInput, error) {
	if len(flagInputs) > 0 {
		return readFiles(flagInputs)
	}
	switch cfg.Input.Type {
	case config.InputFile:
		return readFiles([]string{cfg.Input.Path})
	case config.InputInline:
		paths := make([]string, 0, len(cfg.Input.Inputs))
		for _, entry := range cfg.Input.Inputs {
			paths = append(paths, entry.Path)
		}
		return readFiles(paths)
	case config.InputDirectory:
		return readDirectory(cfg.Input.Path, cfg.Input.Exclude)
	default:
		return types.ProcessedInput{}, &config.ConfigError{
			Key: "input", Reason: "no input configured (set input.type or pass --input)",
		}
	}
}

func readFiles(paths []string) (types.ProcessedInput, error) {
	var parts []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return types.ProcessedInput{}, &config.ConfigError{Key: "input", Reason: err.Error()}
		}
		parts = append(parts, strings.TrimSpace(string(data)))
	}
	input := types.ProcessedInput{
		Content:    strings.Join(parts, "\n\n---\n\n"),
		SourceType: "file",
	}
	if len(paths) == 1 {
		input.SourcePath = paths[0]
	}
	return input, nil
}

func readDirectory(dir string, exclude []string) (types.ProcessedInput, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		for _, pattern := range exclude {
			if ok, _ := filepath.Match(pattern, d.Name()); ok {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return types.ProcessedInput{}, &config.ConfigError{Key: "input.path", Reason: err.Error()}
	}
	if len(paths) == 0 {
		return types.ProcessedInput{}, &config.ConfigError{Key: "input.path", Reason: "no .md or .txt files found in " + dir}
	}
	sort.Strings(paths)
	input, err := readFiles(paths)
	input.SourceType = "directory"
	input.SourcePath = dir
	return input, err
}

func printProgress(events <-chan types.ProgressEvent) {
	for ev := range events {
		switch ev.Status {
		case types.ProgressStarted:
			fmt.Printf("  [%s] %s started\n", ev.Phase, ev.Agent)
		case types.ProgressCompleted:
			fmt.Printf("  [%s] %s completed %s\n", ev.Phase, ev.Agent, ev.Message)
		case types.ProgressFailed:
			fmt.Printf("  [%s] %s FAILED: %s\n", ev.Phase, ev.Agent, ev.Message)
		}
	}
}

// printSummary renders the result table and artifact locations.
func printSummary(res *types.AnalysisResult, runDir, dbPath string) {
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Analysis\t%s\n", res.Analysis.ID)
	fmt.Fprintf(w, "Step\t%d\n", res.Analysis.Step)
	fmt.Fprintf(w, "Status\t%s\n", res.Status)
	if res.OverallStatus != "" {
		fmt.Fprintf(w, "Overall\t%s\n", res.OverallStatus)
	}
	if res.Analysis.QualityScore > 0 {
		fmt.Fprintf(w, "Quality\t%.1f\n", res.Analysis.QualityScore)
	}
	if res.CompletenessCheck != nil {
		fmt.Fprintf(w, "Complete\t%t\n", res.CompletenessCheck.IsComplete)
	}
	w.Flush()

	fmt.Println()
	agents := make([]string, 0, len(res.AgentResults))
	for name := range res.AgentResults {
		agents = append(agents, name)
	}
	sort.Strings(agents)
	w = tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tRESULT\tSTYLES")
	for _, name := range agents {
		ar := res.AgentResults[name]
		status := "ok"
		if !ar.Success {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, status, strings.Join(ar.StylesUsed, ","))
	}
	w.Flush()

	fmt.Println()
	fmt.Println("Results: ", runDir)
	fmt.Println("Database:", dbPath)
}
