package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"stpasec/internal/config"
	"stpasec/internal/logging"
	"stpasec/internal/store"
	"stpasec/internal/types"
)

var (
	flagDemoName string
	flagDemoDir  string
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Load a pre-baked analysis into the store",
	Long: `Loads a pre-baked analysis directory and re-populates the database.
The loaded state is recorded as a committed version with type "loaded", so
it participates in the normal draft and version flow.

The directory <dir>/<name>/ must contain an analysis.json bundle:

  {
    "analysis":  { ... },
    "artifacts": { "loss": [ ... ], "hazard": [ ... ], ... },
    "mappings":  { "hazard_loss_mapping": [ {"a_id": "H-1", "b_id": "L-1"} ] }
  }`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&flagDemoName, "name", "", "demo analysis name (required)")
	demoCmd.Flags().StringVar(&flagDemoDir, "dir", "./demo", "directory holding pre-baked analyses")
	demoCmd.MarkFlagRequired("name")
}

// demoBundle is the on-disk shape of a pre-baked analysis.
type demoBundle struct {
	Analysis  types.Analysis                `json:"analysis"`
	Artifacts map[string][]json.RawMessage  `json:"artifacts"`
	Mappings  map[string][]demoMapping      `json:"mappings"`
}

type demoMapping struct {
	AID   string          `json:"a_id"`
	BID   string          `json:"b_id"`
	Props json.RawMessage `json:"props,omitempty"`
}

func runDemo(cmd *cobra.Command, args []string) error {
	if err := logging.Init(debug); err != nil {
		return err
	}

	path := filepath.Join(flagDemoDir, flagDemoName, "analysis.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return &config.ConfigError{Key: "demo", Reason: err.Error()}
	}
	var bundle demoBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return &config.ConfigError{Key: "demo", Reason: fmt.Sprintf("malformed bundle %s: %v", path, err)}
	}
	if bundle.Analysis.ID == "" {
		return &config.ConfigError{Key: "demo", Reason: "bundle analysis.id is required"}
	}
	if bundle.Analysis.Status == "" {
		bundle.Analysis.Status = types.AnalysisCompleted
	}
	if bundle.Analysis.CreatedAt.IsZero() {
		bundle.Analysis.CreatedAt = time.Now()
	}

	outputDir := "./analyses"
	if cfg, err := config.Load(cfgPath); err == nil {
		outputDir = cfg.Analysis.OutputDir
	}
	dbPath, err := databasePath(outputDir, dbName)
	if err != nil {
		return err
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.InsertAnalysis(&bundle.Analysis); err != nil {
		return err
	}

	tx, err := s.BeginPhase()
	if err != nil {
		return err
	}
	artifactCount, mappingCount := 0, 0
	for _, kind := range sortedKeys(bundle.Artifacts) {
		for _, raw := range bundle.Artifacts[kind] {
			var ident struct {
				Identifier string `json:"identifier"`
			}
			if err := json.Unmarshal(raw, &ident); err != nil {
				tx.Rollback()
				return fmt.Errorf("malformed %s artifact: %w", kind, err)
			}
			if err := tx.InsertArtifact(bundle.Analysis.ID, types.ArtifactKind(kind), ident.Identifier, raw); err != nil {
				tx.Rollback()
				return err
			}
			artifactCount++
		}
	}
	for _, kind := range sortedKeys(bundle.Mappings) {
		for _, m := range bundle.Mappings[kind] {
			if err := tx.InsertMapping(bundle.Analysis.ID, types.ArtifactKind(kind), m.AID, m.BID, m.Props); err != nil {
				tx.Rollback()
				return err
			}
			mappingCount++
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	versionID, err := s.InsertLoadedVersion(bundle.Analysis.ID, "demo")
	if err != nil {
		return err
	}

	fmt.Printf("Loaded analysis %s (%d artifacts, %d mappings) as version %s\n",
		bundle.Analysis.ID, artifactCount, mappingCount, versionID)
	fmt.Println("Database:", s.Path())
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
