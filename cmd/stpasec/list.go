package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stpasec/internal/config"
	"stpasec/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis databases and their analyses",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	outputDir := "./analyses"
	if cfg, err := config.Load(cfgPath); err == nil {
		outputDir = cfg.Analysis.OutputDir
	}
	dbDir := filepath.Join(outputDir, "databases")
	entries, err := os.ReadDir(dbDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No analysis databases found under", dbDir)
			return nil
		}
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATABASE\tANALYSIS\tNAME\tSTEP\tSTATUS\tQUALITY\tCREATED")
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".db")
		s, err := store.Open(filepath.Join(dbDir, entry.Name()))
		if err != nil {
			fmt.Fprintf(w, "%s\t(unreadable: %v)\n", name, err)
			continue
		}
		analyses, err := s.ListAnalyses()
		s.Close()
		if err != nil {
			fmt.Fprintf(w, "%s\t(unreadable: %v)\n", name, err)
			continue
		}
		if len(analyses) == 0 {
			fmt.Fprintf(w, "%s\t(empty)\n", name)
			continue
		}
		for _, a := range analyses {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%.1f\t%s\n",
				name, a.ID, a.Name, a.Step, a.Status, a.QualityScore,
				a.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	return w.Flush()
}
