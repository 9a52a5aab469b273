package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/replayer/browser"
	_ "github.com/johnstarich/replayer/browser/chromedpdriver"
	_ "github.com/johnstarich/replayer/browser/playwrightdriver"
	_ "github.com/johnstarich/replayer/browser/roddriver"
	"github.com/johnstarich/replayer/config"
	"github.com/johnstarich/replayer/consts"
	"github.com/johnstarich/replayer/playback"
	"github.com/johnstarich/replayer/queue"
	"github.com/johnstarich/replayer/recording"
	"github.com/johnstarich/replayer/reporter"
	"github.com/johnstarich/replayer/server"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errPlaybackFailed exits with status 1 without printing anything more than the result
var errPlaybackFailed = errors.New("Playback failed")

type globalFlags struct {
	configPath string
	envFile    string
	driver     string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "replayer",
		Short:         "Replays recorded browser sessions as regression checks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Path to a .env file. Skipped if missing.")
	root.PersistentFlags().StringVar(&flags.driver, "driver", "", "Browser driver to use. Overrides the config file.")

	root.AddCommand(
		newServeCmd(&flags),
		newRunCmd(&flags),
		&cobra.Command{
			Use:   "schema",
			Short: "Print the recording JSON schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				schema, err := recording.Schema()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
				return err
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), consts.Version)
			},
		},
	)
	return root
}

// setup loads config and builds the logger shared by every command
func setup(flags *globalFlags) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if flags.driver != "" {
		cfg.Browser.Driver = flags.driver
	}
	logger, err := cfg.NewLogger(os.Getenv("DEVELOPMENT") == "true")
	return cfg, logger, err
}

func newEngine(cfg config.Config, logger *zap.Logger) *playback.Engine {
	return playback.NewWithDriver(cfg.Browser.Driver, playback.Options{
		Browser: browser.Config{
			NoHeadless: cfg.Browser.NoHeadless,
			Channel:    cfg.Browser.Channel,
			ExecPath:   cfg.Browser.ExecPath,
			Debug:      cfg.Browser.Debug,
			Logger:     logger,
		},
		Logger:      logger,
		ArtifactDir: cfg.ArtifactDir,
	})
}

// newSinks returns a Sink for each configured destination and a func to release them
func newSinks(cfg config.Config, logger *zap.Logger) ([]reporter.Sink, func(), error) {
	var sinks []reporter.Sink
	closeAll := func() {}
	if cfg.Reporter.Enabled() {
		sinks = append(sinks, reporter.NewClient(reporter.ClientConfig{
			AuthURL:            cfg.Reporter.AuthURL,
			APIURL:             cfg.Reporter.APIURL,
			Username:           cfg.Reporter.Username,
			Password:           cfg.Reporter.Password,
			TokenTTL:           cfg.Reporter.TokenTTL,
			UploadsPerSecond:   cfg.Reporter.UploadsPerSecond,
			InsecureSkipVerify: cfg.Reporter.InsecureSkipVerify,
			Logger:             logger,
		}))
	} else {
		logger.Info("Ticketing system uploads are disabled")
	}
	if cfg.NATS.URL != "" {
		natsSink, err := reporter.NewNATSSink(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, natsSink)
		closeAll = natsSink.Close
	}
	return sinks, closeAll, nil
}

func newQueue(cfg config.Config) (queue.Queue, func(), error) {
	switch cfg.Queue.Backend {
	case config.RedisQueue:
		client := redis.NewClient(&redis.Options{Addr: cfg.Queue.RedisAddr})
		return queue.NewRedis(client, cfg.Queue.RedisKey), func() { _ = client.Close() }, nil
	case config.MemoryQueue:
		return queue.NewMemory(), func() {}, nil
	default:
		return nil, nil, errors.Errorf("Unknown queue backend: %q", cfg.Queue.Backend)
	}
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and run queued tests until terminated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			q, closeQueue, err := newQueue(cfg)
			if err != nil {
				return err
			}
			defer closeQueue()
			sinks, closeSinks, err := newSinks(cfg, logger)
			if err != nil {
				return err
			}
			defer closeSinks()

			worker := queue.NewWorker(q, newEngine(cfg, logger), sinks, logger)
			gin.SetMode(gin.ReleaseMode)
			err = server.Run(cmd.Context(), cfg.Addr, q, worker, logger)
			if err != nil {
				logger.Error("Server run failed", zap.Error(err))
			}
			return err
		},
	}
}

type runFlags struct {
	report     bool
	testName   string
	suiteTitle string
	testRunID  string
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var run runFlags
	cmd := &cobra.Command{
		Use:   "run RECORDING",
		Short: "Play one recording file and print the result as JSON",
		Long:  "Play one recording file and print the result as JSON. Exits with status 1 if playback fails.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return playFile(cmd.Context(), cmd.OutOrStdout(), args[0], run, cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&run.report, "report", false, "Send the result to the configured reporters")
	cmd.Flags().StringVar(&run.testName, "test-name", "", "Test name used when reporting. Defaults to the recording's title.")
	cmd.Flags().StringVar(&run.suiteTitle, "suite", reporter.DefaultSuiteTitle, "Suite title used when reporting")
	cmd.Flags().StringVar(&run.testRunID, "test-run-id", "", "Test run ID used when reporting")
	return cmd
}

func playFile(ctx context.Context, out io.Writer, path string, run runFlags, cfg config.Config, logger *zap.Logger) error {
	rec, err := recording.Load(path)
	if err != nil {
		return err
	}
	result := newEngine(cfg, logger).Play(ctx, rec)
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return err
	}

	if run.report {
		sinks, closeSinks, err := newSinks(cfg, logger)
		if err != nil {
			return err
		}
		defer closeSinks()
		testName := run.testName
		if testName == "" {
			testName = rec.Title
		}
		report := reporter.Report{Result: result, TestName: testName, SuiteTitle: run.suiteTitle, TestRunId: run.testRunID}
		for _, sink := range sinks {
			if err := sink.Send(ctx, report); err != nil {
				logger.Error("Failed to report result", zap.Error(err))
			}
		}
	}
	if result.Status != playback.Passed {
		return errPlaybackFailed
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if err != errPlaybackFailed {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
