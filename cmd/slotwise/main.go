// Slotwise CLI - natural-language calendar assistant.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slotwise/slotwise/internal/api"
	"github.com/slotwise/slotwise/internal/assistant"
	"github.com/slotwise/slotwise/internal/calendar"
	"github.com/slotwise/slotwise/internal/config"
	"github.com/slotwise/slotwise/internal/core"
	"github.com/slotwise/slotwise/internal/history"
	"github.com/slotwise/slotwise/internal/logging"
	"github.com/slotwise/slotwise/internal/planner"
	"github.com/slotwise/slotwise/internal/preference"
	"github.com/slotwise/slotwise/internal/scheduler"
)

var (
	// Flags
	dataDir    string
	configPath string

	// Version
	version = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "slotwise",
		Short: "Slotwise - your scheduling assistant",
		Long: `Slotwise is a natural-language calendar assistant.

Tell it things like "schedule a meeting with Alex tomorrow at 2pm"
or "when am I free on friday" and it resolves times, checks your
calendar for conflicts, and learns your scheduling habits.`,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.slotwise)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(connectCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers the config file and environment, then applies flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// buildStore picks the calendar backend the config names
func buildStore(ctx context.Context, cfg *config.Config) (calendar.Store, error) {
	switch cfg.Store {
	case "google":
		token, err := calendar.LoadToken(tokenPath(cfg))
		if err != nil {
			return nil, fmt.Errorf("no Google token, run 'slotwise connect' first: %w", err)
		}
		client := calendar.NewOAuthClient(calendar.DefaultOAuthConfig())
		service, err := client.Service(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to build calendar service: %w", err)
		}
		return calendar.NewGoogleStore(service, cfg.CalendarID), nil

	case "ics":
		if cfg.ICSPath == "" {
			return nil, fmt.Errorf("store is %q but ics_path is not set", cfg.Store)
		}
		return calendar.NewICSStore(cfg.ICSPath)

	case "memory", "":
		return calendar.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown store %q (want google, ics or memory)", cfg.Store)
	}
}

// buildPlanner maps scheduling policy config onto the planner
func buildPlanner(cfg *config.Config) (*planner.Planner, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return planner.New(planner.Config{
		DefaultDuration: cfg.DefaultDuration(),
		Alternatives:    cfg.ConflictAlternatives,
		WorkdayStart:    cfg.WorkdayStartHour,
		WorkdayEnd:      cfg.WorkdayEndHour,
		Weights: preference.Weights{
			Hour:     cfg.HourWeight,
			Weekday:  cfg.WeekdayWeight,
			Duration: cfg.DurationWeight,
		},
		Location: loc,
	}), nil
}

// buildAssistant wires store, history and preferences into a service.
// The caller owns closing the returned history store.
func buildAssistant(ctx context.Context, cfg *config.Config) (*assistant.Service, *history.Store, *preference.Cache, calendar.Store, error) {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	hist, err := history.Open(history.Config{Path: filepath.Join(cfg.DataDir, "history.db")})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open history: %w", err)
	}

	prefs := preference.NewCache(hist, cfg.HistoryWindow(),
		time.Duration(cfg.RecencyHalfLifeDays*24)*time.Hour)

	pl, err := buildPlanner(cfg)
	if err != nil {
		hist.Close()
		return nil, nil, nil, nil, err
	}

	svc := assistant.New(store, hist, prefs, pl, assistant.Config{
		Lookahead:    time.Duration(cfg.LookaheadDays) * 24 * time.Hour,
		StoreTimeout: cfg.StoreTimeout(),
	})
	return svc, hist, prefs, store, nil
}

func tokenPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "token.json")
}

// serveCmd runs the HTTP API with background learning jobs
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slotwise HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, hist, prefs, store, err := buildAssistant(ctx, cfg)
			if err != nil {
				return err
			}
			defer hist.Close()

			log := logging.WithField("component", "serve")

			// Seed the profile from whatever the calendar already holds
			window := core.Window{
				Start: time.Now().Add(-cfg.HistoryWindow()),
				End:   time.Now(),
			}
			if n, err := hist.Backfill(ctx, store, window); err != nil {
				log.Warn("initial backfill failed: %v", err)
			} else if n > 0 {
				log.Info("backfilled %d past events into history", n)
			}
			if err := prefs.Rebuild(ctx); err != nil {
				log.Warn("initial preference rebuild failed: %v", err)
			}

			runner := scheduler.NewRunner()
			runner.Register(&scheduler.Job{
				ID:       "preference-rebuild",
				Name:     "Relearn preferences from history",
				Interval: cfg.RebuildInterval(),
				Handler:  prefs.Rebuild,
			})
			runner.Register(&scheduler.Job{
				ID:       "history-backfill",
				Name:     "Sync calendar events into history",
				Interval: cfg.RebuildInterval(),
				Handler: func(ctx context.Context) error {
					w := core.Window{
						Start: time.Now().Add(-cfg.HistoryWindow()),
						End:   time.Now(),
					}
					_, err := hist.Backfill(ctx, store, w)
					return err
				},
			})
			runner.Register(&scheduler.Job{
				ID:       "history-prune",
				Name:     "Drop history past the learning window",
				Interval: 24 * time.Hour,
				Handler: func(ctx context.Context) error {
					_, err := hist.Prune(ctx, time.Now().Add(-cfg.HistoryWindow()))
					return err
				},
			})
			if err := runner.Start(); err != nil {
				return fmt.Errorf("failed to start background jobs: %w", err)
			}
			defer runner.Stop()

			server := api.New(api.Config{
				Addr:      cfg.Addr,
				Assistant: svc,
				Prefs:     prefs,
				Runner:    runner,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info("received %s, shutting down", sig)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

// askCmd handles a single natural-language command and prints the outcome
func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [text]",
		Short: "Ask the assistant one thing",
		Example: `  slotwise ask "schedule a meeting with Alex tomorrow at 2pm"
  slotwise ask "when am I free on friday"
  slotwise ask "cancel my 1:1 with Sam"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, hist, _, _, err := buildAssistant(ctx, cfg)
			if err != nil {
				return err
			}
			defer hist.Close()

			resp, err := svc.Handle(ctx, assistant.Request{Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			printAction(resp.Action)
			return nil
		},
	}
}

// connectCmd runs the Google OAuth flow and stores the token
func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect your Google Calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !calendar.IsConfigured() {
				return fmt.Errorf("set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET first")
			}

			fmt.Println("Opening the Google consent flow...")
			client := calendar.NewOAuthClient(calendar.DefaultOAuthConfig())
			token, err := client.Authorize(context.Background())
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			if err := calendar.SaveToken(tokenPath(cfg), token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Println("✅ Google Calendar connected")
			fmt.Printf("   Token saved to %s\n", tokenPath(cfg))
			fmt.Println("   Set store: google in your config to use it.")
			return nil
		},
	}
}

// prefsCmd prints the learned scheduling profile
func prefsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prefs",
		Short: "Show what Slotwise has learned about your schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			hist, err := history.Open(history.Config{Path: filepath.Join(cfg.DataDir, "history.db")})
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer hist.Close()

			prefs := preference.NewCache(hist, cfg.HistoryWindow(),
				time.Duration(cfg.RecencyHalfLifeDays*24)*time.Hour)
			if err := prefs.Rebuild(context.Background()); err != nil {
				return fmt.Errorf("failed to build profile: %w", err)
			}

			profile := prefs.Profile()
			if profile.Empty() {
				fmt.Println("No scheduling history yet.")
				fmt.Println("Book a few meetings and check back.")
				return nil
			}

			fmt.Printf("Learned from %d events\n\n", profile.EventCount)
			fmt.Printf("   Typical meeting length: %s\n", profile.MeanDuration.Round(time.Minute))
			if hours := profile.PreferredHours(); len(hours) > 0 {
				parts := make([]string, len(hours))
				for i, h := range hours {
					parts[i] = fmt.Sprintf("%02d:00", h)
				}
				fmt.Printf("   Favorite start times: %s\n", strings.Join(parts, ", "))
			}
			if contacts := profile.FrequentContacts(5); len(contacts) > 0 {
				names := make([]string, len(contacts))
				for i, c := range contacts {
					names[i] = c.Name
				}
				fmt.Printf("   Frequent contacts: %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the Slotwise version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("slotwise %s\n", version)
		},
	}
}

const slotTimeFormat = "Mon Jan 2 15:04"

// printAction renders a planning outcome for a terminal
func printAction(action core.Action) {
	switch action.Kind {
	case core.ActionCommitted:
		fmt.Printf("✅ %s\n", action.Message)
		if action.Op != nil && !action.Op.Window.IsZero() {
			fmt.Printf("   %s - %s\n",
				action.Op.Window.Start.Format(slotTimeFormat),
				action.Op.Window.End.Format("15:04"))
		}

	case core.ActionConflicted:
		fmt.Printf("⚠️  %s\n", action.Message)
		for _, c := range action.Conflicts {
			fmt.Printf("   busy: %s - %s\n",
				c.Start.Format(slotTimeFormat), c.End.Format("15:04"))
		}
		if len(action.Alternatives) > 0 {
			fmt.Println("   How about:")
			for _, alt := range action.Alternatives {
				fmt.Printf("   • %s - %s\n",
					alt.Window.Start.Format(slotTimeFormat),
					alt.Window.End.Format("15:04"))
			}
		}

	case core.ActionFoundList:
		if len(action.Events) == 0 {
			fmt.Println("No matching events.")
			return
		}
		for _, ev := range action.Events {
			line := fmt.Sprintf("%s - %s  %s",
				ev.Start.Format(slotTimeFormat), ev.End.Format("15:04"), ev.Summary)
			if len(ev.Participants) > 0 {
				line += " (with " + strings.Join(ev.Participants, ", ") + ")"
			}
			fmt.Println(line)
		}

	case core.ActionFreeSlots:
		if len(action.Free) == 0 {
			fmt.Println("No free slots in that window.")
			return
		}
		fmt.Println("Free:")
		for _, w := range action.Free {
			fmt.Printf("   %s - %s\n",
				w.Start.Format(slotTimeFormat), w.End.Format("15:04"))
		}

	case core.ActionFailed:
		fmt.Printf("❌ %s\n", action.Message)

	default:
		fmt.Printf("%+v\n", action)
	}
}
