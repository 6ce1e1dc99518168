package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/tts/ttsutils"
	"github.com/book-expert/logger"
)

const (
	// HealthCheckTimeout bounds the health check made before a batch starts.
	HealthCheckTimeout = 10 * time.Second

	// DefaultWorkers is used when a batch is created with a non-positive worker count.
	DefaultWorkers = 4

	filePermissions = 0o600
)

// Batch errors.
var (
	ErrChunksPathEmpty = errors.New("chunks path cannot be empty")
	ErrOutputDirEmpty  = errors.New("output directory cannot be empty")
	ErrOutputPathEmpty = errors.New("output path cannot be empty")
	ErrNoChunksFound   = errors.New("no chunks found")
)

const (
	errFmtHealthCheckFailed     = "otto service health check failed: %w"
	errFmtReadChunks            = "failed to read chunks: %w"
	errFmtReadFile              = "failed to read file: %w"
	errFmtParseChunks           = "failed to parse chunks JSON: %w"
	errFmtNoChunks              = "%w in %s"
	errFmtCreateOutputDir       = "failed to create output directory: %w"
	errFmtGenerate              = "failed to generate speech: %w"
	errFmtWriteAudio            = "failed to write audio file: %w"
	errFmtChunkFailed           = "chunk %d failed: %w"
	logFmtBatchStarted          = "Processing %d chunks with %d workers"
	logFmtGeneratedAudio        = "Generated audio: %s (%d bytes)"
	logFmtChunkProcessingFailed = "Failed to process chunk %d: %v"
	logFmtChunkProcessed        = "Processed chunk %d/%d"
	outputFileFormat            = "chunk_%04d.wav"
)

// HealthChecker is implemented by processors that can report availability
// before a batch starts.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Batch writes one WAV file per text, running a bounded number of syntheses
// at a time. The processor is either a local Synthesizer or an HTTPClient.
type Batch struct {
	processor core.TTSProcessor
	workers   int
	log       *logger.Logger
}

// NewBatch creates a batch runner.
func NewBatch(processor core.TTSProcessor, workers int, log *logger.Logger) *Batch {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Batch{processor: processor, workers: workers, log: log}
}

// ProcessChunks reads a JSON array of texts from chunksPath and writes
// chunk_0001.wav, chunk_0002.wav... into outputDir. Failed chunks do not stop
// the others; the last failure is returned.
func (b *Batch) ProcessChunks(ctx context.Context, chunksPath, outputDir string) error {
	if chunksPath == "" {
		return ErrChunksPathEmpty
	}

	if outputDir == "" {
		return ErrOutputDirEmpty
	}

	chunks, err := readChunksFile(chunksPath)
	if err != nil {
		return fmt.Errorf(errFmtReadChunks, err)
	}

	dirErr := ttsutils.EnsureDir(outputDir)
	if dirErr != nil {
		return fmt.Errorf(errFmtCreateOutputDir, dirErr)
	}

	healthErr := b.checkHealth(ctx)
	if healthErr != nil {
		return healthErr
	}

	b.log.Info(logFmtBatchStarted, len(chunks), b.workers)

	return b.processParallel(ctx, chunks, outputDir)
}

// ProcessSingle synthesizes text and writes the WAV file to outputPath.
func (b *Batch) ProcessSingle(ctx context.Context, text, outputPath string) error {
	if text == "" {
		return ErrTextEmpty
	}

	if outputPath == "" {
		return ErrOutputPathEmpty
	}

	dirErr := ttsutils.EnsureDir(filepath.Dir(outputPath))
	if dirErr != nil {
		return fmt.Errorf(errFmtCreateOutputDir, dirErr)
	}

	audioData, err := b.processor.Process(ctx, []byte(text))
	if err != nil {
		return fmt.Errorf(errFmtGenerate, err)
	}

	writeErr := os.WriteFile(outputPath, audioData, filePermissions)
	if writeErr != nil {
		return fmt.Errorf(errFmtWriteAudio, writeErr)
	}

	b.log.Info(logFmtGeneratedAudio, outputPath, len(audioData))

	return nil
}

func (b *Batch) checkHealth(ctx context.Context) error {
	checker, ok := b.processor.(HealthChecker)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	err := checker.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf(errFmtHealthCheckFailed, err)
	}

	return nil
}

// readChunksFile parses a JSON array of strings.
func readChunksFile(chunksPath string) ([]string, error) {
	data, err := os.ReadFile(chunksPath)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadFile, err)
	}

	var chunks []string

	err = json.Unmarshal(data, &chunks)
	if err != nil {
		return nil, fmt.Errorf(errFmtParseChunks, err)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf(errFmtNoChunks, ErrNoChunksFound, chunksPath)
	}

	return chunks, nil
}

func (b *Batch) processParallel(ctx context.Context, chunks []string, outputDir string) error {
	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		lastError error
	)

	workerPool := make(chan struct{}, b.workers)

	for chunkIndex, chunk := range chunks {
		waitGroup.Add(1)

		go func(index int, text string) {
			defer waitGroup.Done()

			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			outputPath := filepath.Join(outputDir, fmt.Sprintf(outputFileFormat, index+1))

			err := b.ProcessSingle(ctx, text, outputPath)
			if err != nil {
				mutex.Lock()
				lastError = fmt.Errorf(errFmtChunkFailed, index+1, err)
				mutex.Unlock()

				b.log.Error(logFmtChunkProcessingFailed, index+1, err)

				return
			}

			b.log.Info(logFmtChunkProcessed, index+1, len(chunks))
		}(chunkIndex, chunk)
	}

	waitGroup.Wait()

	return lastError
}
