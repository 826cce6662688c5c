package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"courier/internal/app"
	"courier/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// confirm asks the user to confirm a destructive action. Returns true
// when the --yes flag was passed, or stdin is a terminal and the user
// answered "y". Non-interactive runs without --yes are refused.
func confirm(cmd *cobra.Command, prompt string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "refusing to proceed without --yes in a non-interactive session")
		return false
	}

	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Messaging client persistence maintenance",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Avatar Dir: %s\n", cfg.Avatars.ImageDir)
		return nil
	},
}

// downloads command
var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "Inspect and maintain the backup attachment download queue",
}

var downloadsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and progress counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DownloadsStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.DownloadsStatus(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Queued downloads: %d\n", status.Count)
		fmt.Printf("Total pending bytes: %s\n", formatBytes(status.TotalBytes))
		fmt.Printf("Remaining bytes: %s\n", formatBytes(status.RemainingBytes))
		fmt.Printf("Completion banner dismissed: %v\n", status.BannerDismissed)
		return nil
	},
}

var downloadsPeekCmd = &cobra.Command{
	Use:   "peek",
	Short: "Show the next queued downloads in service order",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")

		a, err := newApp("PeekDownloads")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.PeekDownloads(cmd.Context(), count)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}

		for _, rec := range records {
			ts := "untimed"
			if rec.ReceivedAtMs != nil {
				ts = time.UnixMilli(int64(*rec.ReceivedAtMs)).UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Printf("#%d  attachment:%d  received:%s\n", rec.InsertionOrderID, rec.AttachmentRowID, ts)
		}
		return nil
	},
}

var downloadsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every queued download",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm(cmd, "Remove all queued downloads?") {
			return nil
		}

		a, err := newApp("ClearDownloads")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ClearDownloads(cmd.Context()); err != nil {
			a.SetError()
			return err
		}

		fmt.Println("Download queue cleared.")
		return nil
	},
}

var downloadsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove queued downloads older than the configured cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		a, err := newApp("PruneDownloads")
		if err != nil {
			return err
		}
		defer a.Close()

		if !cmd.Flags().Changed("days") {
			days = a.PruneAfterDays()
		}

		pruned, err := a.PruneDownloads(cmd.Context(), time.Duration(days)*24*time.Hour)
		if err != nil {
			a.SetError()
			return err
		}

		fmt.Printf("Pruned %d queued download(s)\n", pruned)
		return nil
	},
}

// avatars command
var avatarsCmd = &cobra.Command{
	Use:   "avatars",
	Short: "Inspect and maintain avatar history",
}

var avatarsListCmd = &cobra.Command{
	Use:   "list [CONTEXT]",
	Short: "Show avatar history for a context (default: profile)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contextKey := "profile"
		if len(args) > 0 {
			contextKey = args[0]
		}

		a, err := newApp("ListAvatarHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		models, err := a.ListAvatarHistory(cmd.Context(), contextKey)
		if err != nil {
			return err
		}

		if len(models) == 0 {
			fmt.Println("No avatar history.")
			return nil
		}

		for _, m := range models {
			detail := ""
			switch {
			case m.ImagePath != "":
				detail = m.ImagePath
			case m.Text != "":
				detail = fmt.Sprintf("%q", m.Text)
			}
			fmt.Printf("%-7s %-36s %-12s %s\n", m.Kind, m.Identifier, m.Theme, detail)
		}
		return nil
	},
}

var avatarsGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete avatar image files no history references",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirm(cmd, "Delete unreferenced avatar image files?") {
			return nil
		}

		a, err := newApp("CleanupAvatarImages")
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.CleanupAvatarImages(cmd.Context())
		if err != nil {
			a.SetError()
			return err
		}

		fmt.Printf("Deleted %d orphaned avatar image(s)\n", deleted)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View maintenance operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No maintenance operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-20s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

func formatBytes(v *uint64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *v)
}

func init() {
	configCmd.AddCommand(configInitCmd, configListCmd)

	downloadsPeekCmd.Flags().IntP("count", "n", 10, "number of records to show")
	downloadsClearCmd.Flags().Bool("yes", false, "skip confirmation")
	downloadsPruneCmd.Flags().Int("days", 30, "age cutoff in days")
	downloadsCmd.AddCommand(downloadsStatusCmd, downloadsPeekCmd, downloadsClearCmd, downloadsPruneCmd)

	avatarsGCCmd.Flags().Bool("yes", false, "skip confirmation")
	avatarsCmd.AddCommand(avatarsListCmd, avatarsGCCmd)

	historyCmd.Flags().Int("limit", 20, "maximum operations to show")

	rootCmd.AddCommand(configCmd, downloadsCmd, avatarsCmd, historyCmd)
}
