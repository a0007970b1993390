package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhultman/oncodigest/internal/config"
	"github.com/mhultman/oncodigest/internal/llm"
	"github.com/mhultman/oncodigest/internal/mail"
	"github.com/mhultman/oncodigest/internal/pipeline"
	"github.com/mhultman/oncodigest/internal/schedule"
	"github.com/mhultman/oncodigest/internal/server"
	"github.com/mhultman/oncodigest/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "oncodigest",
	Short:   "Periodic oncology research digests",
	Long:    "Oncodigest fetches new oncology publications from bioRxiv and PubMed, filters and summarizes them, and delivers a digest by email at the configured report times.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("oncodigest", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/oncodigest/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, recipients, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run history and registry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		seenCount, err := st.SeenCount()
		if err != nil {
			return fmt.Errorf("reading seen registry: %w", err)
		}

		runsCompleted, articlesTotal, err := st.RunTotals()
		if err != nil {
			return fmt.Errorf("reading run totals: %w", err)
		}

		fmt.Printf("Timezone: %s\n", cfg.Timezone)
		fmt.Printf("Report times: %v\n", cfg.ReportTimes)
		fmt.Printf("Seen articles: %d\n", seenCount)
		fmt.Printf("Runs completed: %d\n", runsCompleted)
		fmt.Printf("Articles processed: %d\n\n", articlesTotal)

		sched, err := schedule.New(cfg, nopRunner{})
		if err == nil {
			sched.Start()
			next := sched.NextRuns()
			sched.Stop()
			if len(next) > 0 {
				fmt.Printf("Next scheduled run: %s\n\n", next[0].In(cfg.Location()).Format("2006-01-02 15:04 MST"))
			}
		}

		runs, err := st.RecentRuns(10)
		if err != nil {
			return fmt.Errorf("reading run history: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		fmt.Println("Recent runs:")
		for _, r := range runs {
			line := fmt.Sprintf("  %s  %-16s fetched=%d matched=%d delivered=%d",
				r.StartedAt.In(cfg.Location()).Format("2006-01-02 15:04"), r.Status, r.Fetched, r.Matched, r.Delivered)
			if r.Error != "" {
				line += "  (" + r.Error + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

type nopRunner struct{}

func (nopRunner) RunScheduled(context.Context, string) {}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one digest cycle now and deliver it",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		pipe := newPipeline(st)
		label := time.Now().In(cfg.Location()).Format("2006-01-02 15:04")

		outcome, err := pipe.Run(context.Background(), pipeline.Options{PeriodLabel: label})
		if outcome != nil {
			printRecord(outcome.Record)
		}
		return err
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run one digest cycle and print it without delivering",
	Long:  "Runs the full pipeline but prints the digest to stdout instead of emailing it. Nothing is persisted or marked as seen.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		pipe := newPipeline(st)
		label := time.Now().In(cfg.Location()).Format("2006-01-02 15:04")

		outcome, err := pipe.Run(context.Background(), pipeline.Options{PeriodLabel: label, Preview: true})
		if err != nil {
			return err
		}

		fmt.Println(outcome.Digest.Markdown())
		printRecord(outcome.Record)
		return nil
	},
}

// --- start command ---

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run in the foreground, generating digests at the configured report times",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		pipe := newPipeline(st)
		sched, err := schedule.New(cfg, &scheduledRunner{pipe: pipe, st: st})
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		for _, n := range sched.NextRuns() {
			fmt.Printf("Next run: %s\n", n.In(cfg.Location()).Format("2006-01-02 15:04 MST"))
		}
		fmt.Println("Running. Press Ctrl+C to stop.")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		fmt.Println("\nShutting down...")
		return nil
	},
}

type scheduledRunner struct {
	pipe *pipeline.Pipeline
	st   *store.Store
}

func (r *scheduledRunner) RunScheduled(ctx context.Context, periodLabel string) {
	outcome, err := r.pipe.Run(ctx, pipeline.Options{PeriodLabel: periodLabel})
	if err != nil {
		log.Printf("Run %s failed: %v", periodLabel, err)
		notifyFailure(periodLabel, err)
		return
	}
	log.Printf("Run %s finished: %s", periodLabel, outcome.Record.Status)
}

func notifyFailure(periodLabel string, runErr error) {
	if !cfg.Email.Enabled {
		return
	}
	m := newMailer()
	if err := m.SendErrorNotification(periodLabel, runErr); err != nil {
		log.Printf("Error notification failed: %v", err)
	}
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server for browsing digests",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(st, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- wiring helpers ---

func openStore() (*store.Store, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return store.Open(filepath.Join(dataDir, "oncodigest.db"))
}

func newPipeline(st *store.Store) *pipeline.Pipeline {
	summ := cfg.Summarizer
	provider := llm.CreateProvider(summ.Provider, summ.Model, summ.OllamaURL, summ.OpenAIModel, summ.APIKeyEnv)

	var deliverer pipeline.Deliverer
	if cfg.Email.Enabled {
		deliverer = newMailer()
	}
	return pipeline.New(cfg, st, provider, deliverer)
}

func newMailer() *mail.Mailer {
	return mail.New(mail.Options{
		Host:        cfg.Email.SMTPHost,
		Port:        cfg.Email.SMTPPort,
		From:        cfg.Email.From,
		Recipients:  cfg.Email.Recipients,
		UsernameEnv: cfg.Email.UsernameEnv,
		PasswordEnv: cfg.Email.PasswordEnv,
	})
}

func printRecord(rec store.RunRecord) {
	fmt.Printf("\nRun %s: %s\n", rec.PeriodLabel, rec.Status)
	fmt.Printf("  Sources: %d/%d succeeded\n", rec.SourcesSucceeded, rec.SourcesAttempted)
	fmt.Printf("  Fetched: %d (malformed: %d)\n", rec.Fetched, rec.Malformed)
	fmt.Printf("  Duplicates dropped: %d\n", rec.Deduplicated)
	fmt.Printf("  Matched topics: %d\n", rec.Matched)
	fmt.Printf("  Summarized: %d (failed: %d)\n", rec.Summarized, rec.SummaryFailed)
	fmt.Printf("  Delivered: %d\n", rec.Delivered)
	if rec.Error != "" {
		fmt.Printf("  Error: %s\n", rec.Error)
	}
}
