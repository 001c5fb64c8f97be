package history

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dtnitsch/plugin-stats/pkg/db"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "history-db",
			Usage:    "SQLite database written by 'update --history-db'",
			EnvVars:  []string{"PLUGIN_STATS_HISTORY_DB"},
			Required: true,
		},
		&cli.IntFlag{
			Name:  "limit",
			Value: 10,
			Usage: "max rows to show (0 = all)",
		},
		&cli.StringFlag{
			Name:  "plugin",
			Usage: "show install/fork history for one plugin ID",
		},
		&cli.Int64Flag{
			Name:  "run",
			Usage: "show per-plugin results for one run ID",
		},
		&cli.StringFlag{
			Name:  "format",
			Value: "text",
			Usage: "output format: text or yaml",
		},
	}
}

func HistoryAction(c *cli.Context) error {
	format := strings.ToLower(c.String("format"))
	if format != "text" && format != "yaml" {
		return cli.Exit(fmt.Sprintf("invalid format %q: use text or yaml", c.String("format")), 1)
	}

	database, err := db.Open(c.String("history-db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	out := c.App.Writer
	switch {
	case c.IsSet("plugin"):
		snapshots, err := database.PluginHistory(c.String("plugin"), c.Int("limit"))
		if err != nil {
			return err
		}
		return WritePluginHistory(out, c.String("plugin"), snapshots, format)
	case c.IsSet("run"):
		run, err := database.GetRun(c.Int64("run"))
		if err != nil {
			return err
		}
		snapshots, err := database.GetRunSnapshots(run.RunID)
		if err != nil {
			return err
		}
		return WriteRun(out, *run, snapshots, format)
	default:
		runs, err := database.ListRuns(c.Int("limit"))
		if err != nil {
			return err
		}
		return WriteRuns(out, runs, format)
	}
}

// WriteRuns prints a run listing, most recent first
func WriteRuns(w io.Writer, runs []db.Run, format string) error {
	if format == "yaml" {
		return writeYAML(w, map[string]interface{}{"runs": runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	fmt.Fprintf(w, "%-6s %-20s %-8s %-8s %-8s %-8s %s\n",
		"ID", "Started", "Plugins", "Success", "Failed", "Dry Run", "README")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, r := range runs {
		fmt.Fprintf(w, "%-6d %-20s %-8d %-8d %-8d %-8t %s\n",
			r.RunID,
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			r.PluginCount,
			r.SuccessCount,
			r.FailedCount,
			r.DryRun,
			r.ReadmePath,
		)
	}
	fmt.Fprintf(w, "\nTotal: %d runs\n", len(runs))
	return nil
}

// WriteRun prints the per-plugin outcome of one run
func WriteRun(w io.Writer, run db.Run, snapshots []db.Snapshot, format string) error {
	if format == "yaml" {
		return writeYAML(w, map[string]interface{}{"run": run, "plugins": snapshots})
	}

	fmt.Fprintf(w, "Run %d (%s)\n", run.RunID, run.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Config:   %s\n", run.ConfigPath)
	fmt.Fprintf(w, "README:   %s\n", run.ReadmePath)
	fmt.Fprintf(w, "Plugins:  %d total (%d success, %d failed)\n\n", run.PluginCount, run.SuccessCount, run.FailedCount)

	for i, s := range snapshots {
		if !s.Success {
			fmt.Fprintf(w, "%2d. [failed] %s: %s\n", i+1, s.PluginID, s.ErrorMessage)
			continue
		}
		name := s.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "%2d. [ok] %s %s | installs %s | forks %s\n",
			i+1, s.PluginID, name, humanize.Comma(s.Installs), humanize.Comma(s.Forks))
	}
	return nil
}

// PluginTrend is one row of a plugin's history with change since the previous run
type PluginTrend struct {
	RunID         int64     `yaml:"run_id"`
	At            time.Time `yaml:"at"`
	Installs      int64     `yaml:"installs"`
	Forks         int64     `yaml:"forks"`
	InstallsDelta int64     `yaml:"installs_delta"`
	ForksDelta    int64     `yaml:"forks_delta"`
}

// Trends computes deltas for snapshots ordered most recent first.
// The oldest snapshot has zero deltas.
func Trends(snapshots []db.Snapshot) []PluginTrend {
	trends := make([]PluginTrend, len(snapshots))
	for i, s := range snapshots {
		trends[i] = PluginTrend{RunID: s.RunID, At: s.RunStartedAt, Installs: s.Installs, Forks: s.Forks}
		if i+1 < len(snapshots) {
			prev := snapshots[i+1]
			trends[i].InstallsDelta = s.Installs - prev.Installs
			trends[i].ForksDelta = s.Forks - prev.Forks
		}
	}
	return trends
}

// WritePluginHistory prints install and fork counts over time for one plugin
func WritePluginHistory(w io.Writer, pluginID string, snapshots []db.Snapshot, format string) error {
	trends := Trends(snapshots)
	if format == "yaml" {
		return writeYAML(w, map[string]interface{}{"plugin_id": pluginID, "history": trends})
	}

	if len(trends) == 0 {
		fmt.Fprintf(w, "No successful snapshots for plugin %s\n", pluginID)
		return nil
	}

	fmt.Fprintf(w, "Plugin %s\n", pluginID)
	fmt.Fprintf(w, "%-6s %-16s %-14s %-10s\n", "Run", "When", "Installs", "Forks")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, t := range trends {
		fmt.Fprintf(w, "%-6d %-16s %-14s %-10s\n",
			t.RunID,
			humanize.Time(t.At),
			humanize.Comma(t.Installs)+signed(t.InstallsDelta),
			humanize.Comma(t.Forks)+signed(t.ForksDelta),
		)
	}
	return nil
}

func signed(delta int64) string {
	switch {
	case delta > 0:
		return " (+" + humanize.Comma(delta) + ")"
	case delta < 0:
		return " (" + humanize.Comma(delta) + ")"
	default:
		return ""
	}
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
