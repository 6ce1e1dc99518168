// Package worker provides a NATS worker that turns processed text pages into
// synthesized audio chunks.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AS042971/otto/internal/core"
	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 30 * time.Second

// ErrorHeader carries the failure reason on replies to jobs that could not be processed.
const ErrorHeader = "Otto-Error"

var (
	// ErrTextKeyEmpty indicates that the event does not name a text object.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
	// ErrEmptyText indicates that the downloaded text has nothing to synthesize.
	ErrEmptyText = errors.New("text to synthesize is empty")
)

const (
	audioKeySuffix = ".wav"

	errFmtSubscribe = "failed to subscribe to subject %s: %w"
	errFmtDrain     = "failed to drain subscription: %w"
	errFmtDownload  = "failed to download text data for key '%s': %w"
	errFmtProcess   = "failed to synthesize text for key '%s': %w"
	errFmtUpload    = "failed to upload audio data for key '%s': %w"
	errFmtMarshal   = "failed to marshal reply event: %w"
	errFmtRespond   = "failed to publish reply event: %w"
	errFmtUnmarshal = "failed to unmarshal event: %w"

	logListening = "Listening for text on subject %s (queue %q)"
	logParseFail = "Failed to parse and validate event: %v"
	logJobFail   = "Failed to process job for workflow %s: %v"
	logReplyFail = "Failed to publish reply event for workflow %s: %v"
	logJobDone   = "Workflow %s page %d/%d synthesized to %s"
)

// NatsWorker listens for TextProcessedEvents on a NATS subject, synthesizes the
// referenced text and replies with an AudioChunkCreatedEvent.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	queue          string
	textStore      core.ObjectStore
	audioStore     core.ObjectStore
	processor      core.TTSProcessor
	log            *logger.Logger
}

// NewNatsWorker creates a worker. Text is downloaded from textStore and audio
// uploaded to audioStore; both may be the same store. With a non-empty queue,
// workers sharing the queue name split the jobs between them.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	queue string,
	textStore core.ObjectStore,
	audioStore core.ObjectStore,
	processor core.TTSProcessor,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		queue:          queue,
		textStore:      textStore,
		audioStore:     audioStore,
		processor:      processor,
		log:            log,
	}, nil
}

// Run subscribes and handles messages until ctx is cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	var (
		sub *nats.Subscription
		err error
	)

	if w.queue != "" {
		sub, err = w.natsConnection.QueueSubscribe(w.subject, w.queue, w.handleMessage)
	} else {
		sub, err = w.natsConnection.Subscribe(w.subject, w.handleMessage)
	}

	if err != nil {
		return fmt.Errorf(errFmtSubscribe, w.subject, err)
	}

	w.log.Info(logListening, w.subject, w.queue)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf(errFmtDrain, drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error(logParseFail, err)
		w.respondError(msg, err)

		return
	}

	audioKey, processErr := w.processJob(ctx, event)
	if processErr != nil {
		w.log.Error(logJobFail, event.Header.WorkflowID, processErr)
		w.respondError(msg, processErr)

		return
	}

	w.log.Info(logJobDone, event.Header.WorkflowID, event.PageNumber, event.TotalPages, audioKey)

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error(logReplyFail, event.Header.WorkflowID, err)
	}
}

// processJob downloads the text, synthesizes it and uploads the WAV file.
func (w *NatsWorker) processJob(ctx context.Context, event *events.TextProcessedEvent) (string, error) {
	textData, err := w.textStore.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf(errFmtDownload, event.TextKey, err)
	}

	if strings.TrimSpace(string(textData)) == "" {
		return "", fmt.Errorf(errFmtProcess, event.TextKey, ErrEmptyText)
	}

	audioData, err := w.processor.Process(ctx, textData)
	if err != nil {
		return "", fmt.Errorf(errFmtProcess, event.TextKey, err)
	}

	audioKey := uuid.NewString() + audioKeySuffix

	err = w.audioStore.Upload(ctx, audioKey, audioData)
	if err != nil {
		return "", fmt.Errorf(errFmtUpload, audioKey, err)
	}

	return audioKey, nil
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf(errFmtMarshal, err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf(errFmtRespond, err)
	}

	return nil
}

// respondError answers a request with an empty body and the failure in a header,
// so that callers waiting on a reply do not time out.
func (w *NatsWorker) respondError(msg *nats.Msg, failure error) {
	if msg.Reply == "" {
		return
	}

	reply := nats.NewMsg(msg.Reply)
	reply.Header.Set(ErrorHeader, failure.Error())

	err := msg.RespondMsg(reply)
	if err != nil {
		w.log.Warn(logReplyFail, msg.Reply, err)
	}
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf(errFmtUnmarshal, err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}
