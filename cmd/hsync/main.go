package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hsync-go/internal/app"
	"hsync-go/internal/catalog"
	"hsync-go/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// Unregister after the first signal so a second one terminates the
		// process with the default signal behavior.
		<-ctx.Done()
		stop()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		os.Exit(1)
	}
}

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "hsync",
	Short:         "Resumable bulk file synchronization",
	Long:          "hsync mirrors a source tree into a destination tree, tracking progress in a SQLite catalog so interrupted runs resume where they left off.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mergedConfig(cmd)
		if err != nil {
			return err
		}

		a, err := app.NewApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Run(cmd.Context())
	},
}

// mergedConfig layers the three settings sources: built-in defaults, then
// the optional TOML file, then any flag the user set explicitly.
func mergedConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Defaults()
	switch {
	case flagConfig != "":
		fileCfg, err := config.ReadFromFile(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	default:
		// No --config given: pick up the well-known config file if present.
		path, err := app.DefaultConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fileCfg, err := config.ReadFromFile(path)
				if err != nil {
					return nil, err
				}
				cfg = fileCfg
			}
		}
	}

	f := cmd.Flags()
	if f.Changed("source") || cfg.Source == "" {
		cfg.Source, _ = f.GetString("source")
	}
	if f.Changed("dest") || cfg.Dest == "" {
		cfg.Dest, _ = f.GetString("dest")
	}
	if f.Changed("db") {
		cfg.DB, _ = f.GetString("db")
	}
	if f.Changed("log") {
		cfg.Log, _ = f.GetString("log")
	}
	if f.Changed("bwlimit") {
		cfg.Bwlimit, _ = f.GetString("bwlimit")
	}
	if f.Changed("checksum") {
		cfg.Checksum, _ = f.GetString("checksum")
	}
	if f.Changed("exclude") {
		cfg.Exclude, _ = f.GetStringSlice("exclude")
	}
	if f.Changed("delete-extras") {
		cfg.DeleteExtras, _ = f.GetBool("delete-extras")
	}
	if f.Changed("rescan") {
		cfg.Rescan, _ = f.GetBool("rescan")
	}
	if f.Changed("block-size") {
		cfg.BlockSize, _ = f.GetString("block-size")
	}
	if f.Changed("queue-capacity") {
		cfg.QueueCap, _ = f.GetInt("queue-capacity")
	}
	if f.Changed("quiet") {
		cfg.Quiet, _ = f.GetBool("quiet")
	}
	return cfg, nil
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		dbPath, _ := cmd.Flags().GetString("db")

		cat, err := catalog.NewSQLiteCatalog(dbPath)
		if err != nil {
			return err
		}
		defer cat.Close()

		ops, err := cat.ListOperations(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-6s  %s  %-12s  %s\n",
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

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("db", "hsync.db", "Path to the SQLite catalog")
	pf.StringVar(&flagConfig, "config", "", "Path to a TOML config file")

	f := rootCmd.Flags()
	f.String("source", "", "Source directory root")
	f.String("dest", "", "Destination directory root")
	f.String("log", "hsync.log", "Path to the append-only audit log")
	f.String("bwlimit", "", "Bandwidth limit in bytes/sec, e.g. 40M (default unlimited)")
	f.String("checksum", "sha256", "Checksum algorithm: md5, sha1, sha256 or blake2b")
	f.StringSlice("exclude", nil, "Glob patterns to leave out of the sync (repeatable)")
	f.Bool("delete-extras", false, "Delete destination files with no source counterpart")
	f.Bool("rescan", false, "Force a fresh scan even when a backlog exists")
	f.String("block-size", "1M", "Transfer block size, e.g. 1M")
	f.Int("queue-capacity", 20, "Maximum blocks buffered between reader and writer")
	f.Bool("quiet", false, "Suppress progress output")

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
