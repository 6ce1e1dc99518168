package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AS042971/otto/internal/app"
	"github.com/AS042971/otto/internal/assets"
	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/objectstore"
	"github.com/AS042971/otto/internal/tts"
	"github.com/AS042971/otto/internal/tts/audio"
	"github.com/AS042971/otto/internal/tts/pinyin"
	"github.com/AS042971/otto/internal/tts/text"
	"github.com/AS042971/otto/internal/tts/ttsutils"
	"github.com/spf13/cobra"
)

const (
	remoteTimeout = 2 * time.Minute
	urlScheme     = "http://"

	msgGenerated      = "Generated: %s (%s, %s)\n"
	msgGeneratedFiles = "Generated audio files in: %s\n"
	msgServiceHealthy = "Otto service at %s is healthy\n"
	msgPushed         = "Pushed %d clips to bucket %s\n"
	msgFragment       = "%-8s %-16s %q%s\n"
	msgSyllables      = " -> %s"
)

func (c *cli) sayCommand() *cobra.Command {
	var textFlag, output string

	cmd := &cobra.Command{
		Use:   "say [text...]",
		Short: "Synthesize text locally and write a WAV file",
		Example: `  otto say 你好世界
  otto say --text "haha 你好" --output hello.wav`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := textFlag
			if input == "" {
				input = strings.Join(args, " ")
			}

			if strings.TrimSpace(input) == "" {
				return ErrTextRequired
			}

			synthesizer, err := c.localSynthesizer()
			if err != nil {
				return err
			}

			return c.processText(cmd.Context(), synthesizer, input, output)
		},
	}

	cmd.Flags().StringVar(&textFlag, flagText, "", flagTextDesc)
	cmd.Flags().StringVarP(&output, flagOutput, "o", "", flagOutputDesc)

	return cmd
}

func (c *cli) batchCommand() *cobra.Command {
	var chunks, output string

	var workers int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Synthesize a JSON array of texts locally into chunk_0001.wav, chunk_0002.wav...",
		RunE: func(cmd *cobra.Command, _ []string) error {
			synthesizer, err := c.localSynthesizer()
			if err != nil {
				return err
			}

			return c.processChunks(cmd.Context(), synthesizer, chunks, output, workers)
		},
	}

	cmd.Flags().StringVar(&chunks, flagChunks, "", flagChunksDesc)
	cmd.Flags().StringVarP(&output, flagOutput, "o", "", flagOutputDesc)
	cmd.Flags().IntVar(&workers, flagWorkers, tts.DefaultWorkers, flagWorkersDesc)
	_ = cmd.MarkFlagRequired(flagChunks)

	return cmd
}

func (c *cli) remoteCommand() *cobra.Command {
	var textFlag, chunks, output, url string

	var workers int

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Synthesize through a running otto service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if textFlag == "" && chunks == "" {
				c.log.Error(errEitherTextOrChunks)

				return ErrTextOrChunks
			}

			if textFlag != "" && chunks != "" {
				c.log.Error(errCannotSpecifyBoth)

				return ErrTextAndChunks
			}

			serviceURL, err := c.serviceURL(url)
			if err != nil {
				return err
			}

			client := tts.NewHTTPClient(serviceURL, remoteTimeout)

			if textFlag != "" {
				return c.processText(cmd.Context(), client, textFlag, output)
			}

			return c.processChunks(cmd.Context(), client, chunks, output, workers)
		},
	}

	cmd.Flags().StringVar(&textFlag, flagText, "", flagTextDesc)
	cmd.Flags().StringVar(&chunks, flagChunks, "", flagChunksDesc)
	cmd.Flags().StringVarP(&output, flagOutput, "o", "", flagOutputDesc)
	cmd.Flags().StringVar(&url, flagURL, "", flagURLDesc)
	cmd.Flags().IntVar(&workers, flagWorkers, tts.DefaultWorkers, flagWorkersDesc)

	return cmd
}

func (c *cli) healthCommand() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that an otto service is up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			serviceURL, err := c.serviceURL(url)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), tts.HealthCheckTimeout)
			defer cancel()

			err = tts.NewHTTPClient(serviceURL, tts.HealthCheckTimeout).HealthCheck(ctx)
			if err != nil {
				c.log.Error(logHealthCheckFailed, err)

				return fmt.Errorf(errFmtHealthCheck, err)
			}

			fmt.Fprintf(c.out, msgServiceHealthy, serviceURL)

			return nil
		},
	}

	cmd.Flags().StringVar(&url, flagURL, "", flagURLDesc)

	return cmd
}

func (c *cli) segmentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "segment text...",
		Short: "Print the fragments and syllables otto would use for the text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			bank, _, err := app.LoadVoicebank(c.cfg)
			if err != nil {
				return err
			}

			matcher, err := text.NewMatcher(bank.Patterns())
			if err != nil {
				return err
			}

			style, err := pinyin.ParseStyle(c.cfg.Otto.PinyinStyle)
			if err != nil {
				return err
			}

			converter := pinyin.New(style)

			for _, fragment := range matcher.Segment(strings.Join(args, " ")) {
				detail := ""
				if fragment.Kind == text.Literal {
					detail = fmt.Sprintf(msgSyllables, strings.Join(converter.Syllables(fragment.Text), " "))
				}

				fmt.Fprintf(c.out, msgFragment, fragment.Kind, fragment.Pattern, fragment.Text, detail)
			}

			return nil
		},
	}
}

func (c *cli) assetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage voicebank clips",
	}

	var dir string

	push := &cobra.Command{
		Use:   "push",
		Short: "Upload the local assets directory to the NATS clip bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				_, voicebankDir, err := app.LoadVoicebank(c.cfg)
				if err != nil {
					return err
				}

				dir = app.AssetsDir(c.cfg, voicebankDir)
			}

			local, err := assets.NewDirStore(dir)
			if err != nil {
				return err
			}

			conn, err := c.connection()
			if err != nil {
				return err
			}

			bucket, err := objectstore.New(conn.JetStream, c.cfg.NATS.ClipObjectStore)
			if err != nil {
				return err
			}

			pushed, err := app.PushClips(cmd.Context(), local, bucket, bucket.Bucket(), c.log)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.out, msgPushed, pushed, bucket.Bucket())

			return nil
		},
	}

	push.Flags().StringVar(&dir, flagDir, "", flagDirDesc)
	cmd.AddCommand(push)

	return cmd
}

// processText synthesizes one text and reports the written file.
func (c *cli) processText(ctx context.Context, processor core.TTSProcessor, input, output string) error {
	outputPath := output
	if outputPath == "" {
		outputPath = filepath.Join(c.cfg.Paths.OutputDir, ttsutils.OutputFilename(input))
	}

	c.log.Info(logProcessingSingleText, outputPath)

	err := tts.NewBatch(processor, 1, c.log).ProcessSingle(ctx, input, outputPath)
	if err != nil {
		c.log.Error(logProcessTextFailed, err)

		return fmt.Errorf(errFmtProcessText, err)
	}

	return c.describeOutput(outputPath)
}

// processChunks synthesizes every text of a chunks file.
func (c *cli) processChunks(ctx context.Context, processor core.TTSProcessor, chunks, output string, workers int) error {
	outputDir := output
	if outputDir == "" {
		outputDir = c.cfg.Paths.OutputDir
	}

	c.log.Info(logProcessingChunks, chunks)
	c.log.Info(logOutputDirectory, outputDir)

	err := tts.NewBatch(processor, workers, c.log).ProcessChunks(ctx, chunks, outputDir)
	if err != nil {
		c.log.Error(logProcessChunksFailed, err)

		return fmt.Errorf(errFmtProcessChunks, err)
	}

	c.log.Info(logSuccessfullyProcessed)
	fmt.Fprintf(c.out, msgGeneratedFiles, outputDir)

	return nil
}

func (c *cli) describeOutput(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf(errFmtDescribeOutput, path, err)
	}

	buffer, err := audio.DecodeWAV(data)
	if err != nil {
		return fmt.Errorf(errFmtDescribeOutput, path, err)
	}

	fmt.Fprintf(c.out, msgGenerated, path, ttsutils.FormatDuration(buffer.Duration()), ttsutils.FormatFileSize(int64(len(data))))

	return nil
}

// serviceURL returns the --url flag, or the address the service would listen
// on with the current configuration.
func (c *cli) serviceURL(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	bank, _, err := app.LoadVoicebank(c.cfg)
	if err != nil {
		return "", err
	}

	return urlScheme + app.ListenAddress(c.cfg, bank), nil
}
