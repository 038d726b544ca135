package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lazypower/tabpulse/internal/config"
	"github.com/lazypower/tabpulse/internal/hooks"
	"github.com/lazypower/tabpulse/internal/model"
	"github.com/lazypower/tabpulse/internal/server"
	"github.com/lazypower/tabpulse/internal/store"
	"github.com/lazypower/tabpulse/internal/visits"
)

var (
	importLimit  int
	importTop    int
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import <history.jsonl>",
	Short: "Seed usage patterns from a browser history export",
	Long: "Reads a JSONL history export (one {url, title, visitTime} object per line) and " +
		"appends the newest visits to the usage pattern log so predictions start warm. " +
		"A running daemon takes the import itself; otherwise the store is written directly.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().IntVarP(&importLimit, "limit", "n", 0, "maximum visits to import (default: pattern log capacity)")
	importCmd.Flags().IntVar(&importTop, "top", 10, "domains to show in the summary")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and summarize without writing")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	parsed, err := visits.ParseFile(args[0], time.Local)
	if err != nil {
		return err
	}
	if len(parsed) == 0 {
		pterm.Warning.Println("No visits found.")
		return nil
	}

	limit := importLimit
	if limit <= 0 {
		limit = cfg.Storage.MaxPatterns
	}
	patterns := visits.Patterns(parsed, limit)

	if err := renderTable(cmd.OutOrStdout(), visitRows(visits.Summarize(parsed), importTop)); err != nil {
		return err
	}
	if importDryRun {
		pterm.Info.Printfln("Would import %s of %s visits.",
			humanize.Comma(int64(len(patterns))), humanize.Comma(int64(len(parsed))))
		return nil
	}

	via := "store"
	if client := daemonClient(); client.Healthy() {
		if err := importViaDaemon(client, patterns); err != nil {
			return err
		}
		via = "daemon"
	} else if err := importDirect(cmd, cfg.Storage, patterns); err != nil {
		return err
	}
	pterm.Success.Printfln("Imported %s of %s visits (%s).",
		humanize.Comma(int64(len(patterns))), humanize.Comma(int64(len(parsed))), via)
	return nil
}

// importViaDaemon hands patterns to the daemon, which owns the store and
// reloads its predictor.
func importViaDaemon(client *hooks.Client, patterns []model.UsagePattern) error {
	body, err := json.Marshal(patterns)
	if err != nil {
		return err
	}
	data, err := client.Post("/api/patterns/import", body)
	if err != nil {
		return fmt.Errorf("import via daemon: %w", err)
	}
	var resp server.ImportResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("decode import response: %w", err)
	}
	if resp.Imported != len(patterns) {
		return fmt.Errorf("daemon imported %d of %d patterns", resp.Imported, len(patterns))
	}
	return nil
}

// importDirect writes to the store when no daemon is running.
func importDirect(cmd *cobra.Command, cfg config.StorageConfig, patterns []model.UsagePattern) error {
	st, err := store.Connect(cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Patterns.Append(cmd.Context(), patterns...); err != nil {
		return fmt.Errorf("append patterns: %w", err)
	}
	return nil
}
