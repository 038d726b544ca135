package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/lazypower/tabpulse/internal/model"
	"github.com/lazypower/tabpulse/internal/server"
)

var refreshFlag bool

// getJSON fetches path from the daemon and decodes it into v.
func getJSON(path string, v any) error {
	client := daemonClient()
	if !client.Healthy() {
		return fmt.Errorf("daemon not reachable; start it with 'tabpulse serve'")
	}
	if refreshFlag {
		path += "?refresh=true"
	}
	data, err := client.Get(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and memory totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		var health struct {
			Version      string     `json:"version"`
			Uptime       float64    `json:"uptime"`
			StoreOK      bool       `json:"store"`
			StoreBackend string     `json:"store_backend"`
			Tabs         int        `json:"tabs"`
			LastTick     *time.Time `json:"last_tick"`
			HostTotalMB  float64    `json:"host_total_mb"`
		}
		if err := getJSON("/api/health", &health); err != nil {
			return err
		}
		var tabs server.TabsResponse
		if err := getJSON("/api/tabs", &tabs); err != nil {
			return err
		}

		lastTick := "never"
		if health.LastTick != nil {
			lastTick = humanize.Time(*health.LastTick)
		}
		store := health.StoreBackend
		if !health.StoreOK {
			store += " (unreachable)"
		}
		started := time.Now().Add(-time.Duration(health.Uptime * float64(time.Second)))

		pterm.DefaultSection.Println("tabpulse " + health.Version)
		return renderTable(cmd.OutOrStdout(), [][]string{
			{"Item", "Value"},
			{"Up since", humanize.Time(started)},
			{"Store", store},
			{"Tabs tracked", humanize.Comma(int64(health.Tabs))},
			{"Last sample", lastTick},
			{"Tab memory", humanize.IBytes(mbBytes(tabs.TotalMemoryUsageMB))},
			{"Host memory", humanize.IBytes(mbBytes(health.HostTotalMB))},
		})
	},
}

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List tabs with memory and health",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp server.TabsResponse
		if err := getJSON("/api/tabs", &resp); err != nil {
			return err
		}
		if len(resp.Tabs) == 0 {
			pterm.Info.Println("No tabs reported yet.")
			return nil
		}
		return renderTable(cmd.OutOrStdout(), tabRows(resp.Tabs))
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Show which tabs you are likely to keep",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Predictions []model.Prediction `json:"predictions"`
		}
		if err := getJSON("/api/predictions", &resp); err != nil {
			return err
		}
		if len(resp.Predictions) == 0 {
			pterm.Info.Println("No tabs to predict.")
			return nil
		}
		return renderTable(cmd.OutOrStdout(), predictionRows(resp.Predictions))
	},
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Show memory grouped by domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Domains []model.DomainGroup `json:"domains"`
		}
		if err := getJSON("/api/domains", &resp); err != nil {
			return err
		}
		if len(resp.Domains) == 0 {
			pterm.Info.Println("No tabs reported yet.")
			return nil
		}
		return renderTable(cmd.OutOrStdout(), domainRows(resp.Domains))
	},
}

var leaksCmd = &cobra.Command{
	Use:   "leaks",
	Short: "List tabs whose memory keeps growing",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Leaks []model.Leak `json:"leaks"`
		}
		if err := getJSON("/api/leaks", &resp); err != nil {
			return err
		}
		if len(resp.Leaks) == 0 {
			pterm.Success.Println("No leaks detected.")
			return nil
		}
		return renderTable(cmd.OutOrStdout(), leakRows(resp.Leaks))
	},
}

func init() {
	for _, c := range []*cobra.Command{tabsCmd, predictCmd, domainsCmd} {
		c.Flags().BoolVar(&refreshFlag, "refresh", false, "resample before answering")
	}
}
