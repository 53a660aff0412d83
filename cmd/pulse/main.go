// Command pulse is a CLI for an activity-tracking server: inspect buckets
// and events, send heartbeats, run queries, and stream file activity.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/pulse"
	"github.com/bft-labs/pulse/internal/cliconfig"
	"github.com/bft-labs/pulse/internal/watcher"
	pkglog "github.com/bft-labs/pulse/pkg/log"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the resolved configuration and client shared by all commands.
type app struct {
	cfg    cliconfig.Config
	client *pulse.Client
	logger zerolog.Logger
}

func main() {
	a := &app{
		cfg:    cliconfig.DefaultConfig(),
		logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger(),
	}

	var cfgPath string
	var verbose bool

	root := &cobra.Command{
		Use:           "pulse",
		Short:         "Talk to a local activity-tracking server",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first, then env, then flag overrides
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Root().PersistentFlags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
				return err
			}

			if err := a.cfg.Validate(); err != nil {
				return err
			}

			if !verbose {
				a.logger = a.logger.Level(zerolog.InfoLevel)
			}

			client, err := pulse.New(pulse.Config{
				ClientName: a.cfg.ClientName,
				Hostname:   a.cfg.Hostname,
				BaseURL:    a.cfg.ServerURL,
				Testing:    a.cfg.Testing,
				Timeout:    a.cfg.Timeout,
			}, pulse.WithLogger(pkglog.NewZerologLogger(a.logger)))
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}
			a.client = client
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.pulse/config.toml)")
	pf.StringVar(&a.cfg.ServerURL, "server-url", a.cfg.ServerURL, "server base URL (default: http://127.0.0.1:5600)")
	pf.StringVar(&a.cfg.ClientName, "client-name", a.cfg.ClientName, "client name reported to the server")
	pf.StringVar(&a.cfg.Hostname, "hostname", a.cfg.Hostname, "hostname recorded on created buckets")
	pf.BoolVar(&a.cfg.Testing, "testing", a.cfg.Testing, "use the testing server port (5666)")
	pf.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "HTTP request timeout")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.infoCmd(),
		a.bucketsCmd(),
		a.eventsCmd(),
		a.heartbeatCmd(),
		a.queryCmd(),
		a.watchCmd(),
	)

	if err := root.Execute(); err != nil {
		a.logger.Error().Err(err).Msg("pulse")
		os.Exit(1)
	}
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.client.Info(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
}

func (a *app) bucketsCmd() *cobra.Command {
	buckets := &cobra.Command{
		Use:   "buckets",
		Short: "Manage buckets",
	}

	buckets.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all buckets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := a.client.Buckets(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(all)
		},
	})

	buckets.AddCommand(&cobra.Command{
		Use:   "show <bucket-id>",
		Short: "Show one bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, err := a.client.Bucket(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(bucket)
		},
	})

	var bucketType string
	create := &cobra.Command{
		Use:   "create <bucket-id>",
		Short: "Create a bucket (no error if it already exists)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			existed, err := a.client.EnsureBucket(cmd.Context(), args[0], bucketType, "")
			if err != nil {
				return err
			}
			if existed {
				a.logger.Info().Str("bucket", args[0]).Msg("bucket already exists")
			} else {
				a.logger.Info().Str("bucket", args[0]).Msg("bucket created")
			}
			return nil
		},
	}
	create.Flags().StringVar(&bucketType, "type", "unknown", "bucket type")
	buckets.AddCommand(create)

	buckets.AddCommand(&cobra.Command{
		Use:   "delete <bucket-id>",
		Short: "Delete a bucket and all of its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteBucket(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.logger.Info().Str("bucket", args[0]).Msg("bucket deleted")
			return nil
		},
	})

	return buckets
}

func (a *app) eventsCmd() *cobra.Command {
	events := &cobra.Command{
		Use:   "events",
		Short: "List, count, and insert events",
	}

	var limit int
	var startStr, endStr string
	list := &cobra.Command{
		Use:   "list <bucket-id>",
		Short: "List events in a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(startStr, endStr)
			if err != nil {
				return err
			}
			evs, err := a.client.Events(cmd.Context(), args[0], pulse.EventQuery{
				Limit: limit,
				Start: start,
				End:   end,
			})
			if err != nil {
				return err
			}
			return printJSON(evs)
		},
	}
	list.Flags().IntVar(&limit, "limit", 10, "maximum number of events")
	list.Flags().StringVar(&startStr, "start", "", "range start (RFC3339)")
	list.Flags().StringVar(&endStr, "end", "", "range end (RFC3339)")
	events.AddCommand(list)

	var cStartStr, cEndStr string
	count := &cobra.Command{
		Use:   "count <bucket-id>",
		Short: "Count events in a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(cStartStr, cEndStr)
			if err != nil {
				return err
			}
			n, err := a.client.EventCount(cmd.Context(), args[0], start, end)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
	count.Flags().StringVar(&cStartStr, "start", "", "range start (RFC3339)")
	count.Flags().StringVar(&cEndStr, "end", "", "range end (RFC3339)")
	events.AddCommand(count)

	var dataStr, tsStr string
	var duration float64
	insert := &cobra.Command{
		Use:   "insert <bucket-id>",
		Short: "Insert an event into a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := buildEvent(dataStr, tsStr, duration)
			if err != nil {
				return err
			}
			inserted, err := a.client.InsertEvents(cmd.Context(), args[0], event)
			if err != nil {
				return err
			}
			return printJSON(inserted)
		},
	}
	insert.Flags().StringVar(&dataStr, "data", "{}", "event data as JSON")
	insert.Flags().StringVar(&tsStr, "timestamp", "", "event timestamp (RFC3339, default: now)")
	insert.Flags().Float64Var(&duration, "duration", 0, "event duration in seconds")
	events.AddCommand(insert)

	return events
}

func (a *app) heartbeatCmd() *cobra.Command {
	var dataStr, tsStr string
	var pulsetime float64
	cmd := &cobra.Command{
		Use:   "heartbeat <bucket-id>",
		Short: "Send a heartbeat to a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hb, err := buildEvent(dataStr, tsStr, 0)
			if err != nil {
				return err
			}
			processed, err := a.client.Heartbeat(cmd.Context(), args[0], pulsetime, hb)
			if err != nil {
				return err
			}
			return printJSON(processed)
		},
	}
	cmd.Flags().StringVar(&dataStr, "data", "{}", "heartbeat data as JSON")
	cmd.Flags().StringVar(&tsStr, "timestamp", "", "heartbeat timestamp (RFC3339, default: now)")
	cmd.Flags().Float64Var(&pulsetime, "pulsetime", 60, "merge window in seconds, applied server-side")
	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	var startStr, endStr string
	var periods []string
	cmd := &cobra.Command{
		Use:   "query <statement>...",
		Short: "Run a query on the server",
		Long: `Run a query on the server. Statements are passed as arguments; time
periods come from --start/--end or repeated --period "start/end" values.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tps []pulse.TimePeriod
			for _, p := range periods {
				tps = append(tps, pulse.RawPeriod(p))
			}
			if startStr != "" || endStr != "" {
				start, end, err := parseRange(startStr, endStr)
				if err != nil {
					return err
				}
				tps = append(tps, pulse.Period(start, end))
			}
			if len(tps) == 0 {
				return fmt.Errorf("at least one time period is required")
			}
			results, err := a.client.Query(cmd.Context(), tps, args)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
	cmd.Flags().StringVar(&startStr, "start", "", "period start (RFC3339)")
	cmd.Flags().StringVar(&endStr, "end", "", "period end (RFC3339)")
	cmd.Flags().StringArrayVar(&periods, "period", nil, `pre-formatted period "start/end" (repeatable)`)
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var pulsetime float64
	var throttle time.Duration
	cmd := &cobra.Command{
		Use:   "watch <bucket-id> <dir>...",
		Short: "Stream file-activity heartbeats for directories",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := watcher.New(watcher.Config{
				Client:    a.client,
				BucketID:  args[0],
				Dirs:      args[1:],
				Pulsetime: pulsetime,
				Throttle:  throttle,
				Logger:    pkglog.NewZerologLogger(a.logger),
			})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			a.logger.Info().Msg("watch stopped")
			return nil
		},
	}
	cmd.Flags().Float64Var(&pulsetime, "pulsetime", 60, "merge window in seconds, applied server-side")
	cmd.Flags().DurationVar(&throttle, "throttle", time.Second, "minimum gap between heartbeats for the same file")
	return cmd
}

// parseRange parses optional RFC3339 start/end strings.
func parseRange(startStr, endStr string) (start, end time.Time, err error) {
	if startStr != "" {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			return start, end, fmt.Errorf("parse start: %w", err)
		}
	}
	if endStr != "" {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			return start, end, fmt.Errorf("parse end: %w", err)
		}
	}
	return start, end, nil
}

// buildEvent assembles an Event from CLI flag values.
func buildEvent(dataStr, tsStr string, duration float64) (*pulse.Event, error) {
	data := map[string]interface{}{}
	if dataStr != "" {
		if err := json.Unmarshal([]byte(dataStr), &data); err != nil {
			return nil, fmt.Errorf("parse data: %w", err)
		}
	}
	ts := time.Now()
	if tsStr != "" {
		var err error
		ts, err = time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
	}
	return &pulse.Event{Timestamp: ts, Duration: duration, Data: data}, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
