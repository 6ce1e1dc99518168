// Command otto synthesizes speech from the voicebank, locally or through a
// running otto service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AS042971/otto/internal/app"
	"github.com/AS042971/otto/internal/config"
	"github.com/AS042971/otto/internal/tts"
	"github.com/book-expert/logger"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagConfig  = "config"
	flagVerbose = "verbose"
	flagText    = "text"
	flagOutput  = "output"
	flagChunks  = "chunks"
	flagWorkers = "workers"
	flagURL     = "url"
	flagDir     = "dir"
)

// Flag descriptions.
const (
	flagConfigDesc  = "Path to project.toml (defaults to ./project.toml when present)"
	flagVerboseDesc = "Enable verbose logging"
	flagTextDesc    = "Text to convert to speech"
	flagOutputDesc  = "Output file path (.wav), or output directory for chunks"
	flagChunksDesc  = "JSON file containing text chunks to process"
	flagWorkersDesc = "Number of chunks synthesized at the same time"
	flagURLDesc     = "Base URL of the otto service (defaults to the configured listen address)"
	flagDirDesc     = "Local assets directory (defaults to the configured one)"
)

// Error and log messages.
const (
	errEitherTextOrChunks    = "Either --text or --chunks must be provided"
	errCannotSpecifyBoth     = "Cannot specify both --text and --chunks"
	errFmtLoadConfig         = "failed to load configuration: %w"
	errFmtInitLogger         = "failed to initialize logger: %w"
	errFmtProcessText        = "failed to process text: %w"
	errFmtProcessChunks      = "failed to process chunks: %w"
	errFmtHealthCheck        = "health check failed: %w"
	errFmtDescribeOutput     = "failed to inspect %s: %w"
	logCLIStarted            = "otto %s started (config: %s)"
	logProcessingSingleText  = "Processing single text to: %s"
	logProcessingChunks      = "Processing chunks from: %s"
	logOutputDirectory       = "Output directory: %s"
	logSuccessfullyProcessed = "Successfully processed all chunks"
	logCloseFailed           = "error closing logger: %v\n"
	logHealthCheckFailed     = "Health check failed: %v"
	logProcessTextFailed     = "Failed to process text: %v"
	logProcessChunksFailed   = "Failed to process chunks: %v"
)

// File names and paths.
const (
	defaultConfigFile  = "project.toml"
	logFileNameDefault = "otto-cli.log"
	logFileNameVerbose = "otto-cli-verbose.log"
	configSourceNone   = "defaults"
)

var (
	// ErrTextRequired is returned when say has no text to synthesize.
	ErrTextRequired = errors.New("text must be given with --text or as arguments")
	// ErrTextOrChunks is returned when remote gets neither --text nor --chunks.
	ErrTextOrChunks = errors.New(errEitherTextOrChunks)
	// ErrTextAndChunks is returned when both --text and --chunks are given.
	ErrTextAndChunks = errors.New(errCannotSpecifyBoth)
)

// cli holds the state shared by every subcommand of one invocation.
type cli struct {
	out        io.Writer
	configPath string
	verbose    bool
	cfg        *config.Config
	log        *logger.Logger
	conn       *app.Connection
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run executes the command line in args, writing user output to out.
func run(ctx context.Context, args []string, out io.Writer) error {
	state := &cli{out: out}
	defer state.close()

	root := state.rootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)

	return root.ExecuteContext(ctx)
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "otto",
		Short: "Concatenative speech synthesis from a voicebank of recorded clips",
		Long: `otto turns text into speech by cutting it into special phrases and
pinyin syllables and joining the matching recorded clips.

Commands:
  say      - synthesize text locally
  batch    - synthesize a JSON array of texts into numbered WAV files
  remote   - synthesize through a running otto service
  health   - check a running otto service
  segment  - show how text is split into fragments and syllables
  assets   - manage the clip bucket in NATS`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.configPath, flagConfig, "", flagConfigDesc)
	root.PersistentFlags().BoolVarP(&c.verbose, flagVerbose, "v", false, flagVerboseDesc)

	root.AddCommand(
		c.sayCommand(),
		c.batchCommand(),
		c.remoteCommand(),
		c.healthCommand(),
		c.segmentCommand(),
		c.assetsCommand(),
	)

	return root
}

// setup loads the configuration and opens the log file.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, source, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf(errFmtLoadConfig, err)
	}

	logFileName := logFileNameDefault
	if c.verbose {
		logFileName = logFileNameVerbose
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return fmt.Errorf(errFmtInitLogger, err)
	}

	c.cfg = cfg
	c.log = log
	c.log.Info(logCLIStarted, cmd.Name(), source)

	return nil
}

func (c *cli) loadConfig() (*config.Config, string, error) {
	path := c.configPath
	if path == "" {
		_, statErr := os.Stat(defaultConfigFile)
		if statErr != nil {
			return config.Default(), configSourceNone, nil
		}

		path = defaultConfigFile
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// connection dials NATS once per invocation.
func (c *cli) connection() (*app.Connection, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	if c.cfg.NATS.URL == "" {
		return nil, app.ErrNATSRequired
	}

	conn, err := app.Connect(c.cfg.NATS.URL)
	if err != nil {
		return nil, err
	}

	c.conn = conn

	return conn, nil
}

// localSynthesizer builds a synthesizer from the configuration, connecting to
// NATS only when clips are served from a bucket.
func (c *cli) localSynthesizer() (*tts.Synthesizer, error) {
	var conn *app.Connection

	if c.cfg.Otto.AssetSource == config.AssetSourceNATS {
		var err error

		conn, err = c.connection()
		if err != nil {
			return nil, err
		}
	}

	return app.NewSynthesizer(c.cfg, conn, c.log)
}

func (c *cli) close() {
	if c.conn != nil {
		c.conn.Close()
	}

	if c.log != nil {
		closeErr := c.log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, logCloseFailed, closeErr)
		}
	}
}
