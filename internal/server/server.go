// Package server exposes synthesis over HTTP: GET or POST /otto returns a WAV
// file for the given text, and GET /health reports liveness.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/tts/audio"
	"github.com/AS042971/otto/internal/tts/clip"
	"github.com/book-expert/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Routes and headers.
const (
	RouteOtto       = "/otto"
	RouteHealth     = "/health"
	HeaderRequestID = "X-Request-ID"
	statusOK        = "ok"
)

// Error codes returned in the error_code field of failed responses.
const (
	CodeEmptyText     = "empty_text"
	CodeTextTooLong   = "text_too_long"
	CodeInvalidBody   = "invalid_body"
	CodeRateLimited   = "rate_limited"
	CodeAssetNotFound = "asset_not_found"
	CodeClipDecode    = "clip_decode_failed"
	CodeTimeout       = "timeout"
	CodeSynthesis     = "synthesis_failed"
	CodeInternal      = "internal_error"
)

const (
	msgEmptyText   = "text is required"
	msgInvalidBody = "body must be JSON with a text field"
	msgRateLimited = "too many requests"
	errFmtTooLong  = "text is longer than %d characters"
	errFmtListen   = "failed to listen on %s: %w"
	errFmtShutdown = "failed to shut down HTTP server: %w"
	logRequest     = "[%s] %s %s -> %d in %s"
	logSynthFailed = "[%s] synthesis failed: %v"
	logListening   = "HTTP server listening on %s"
)

// Options configures the HTTP layer.
type Options struct {
	// RateLimit is the sustained number of requests per second; zero disables limiting.
	RateLimit float64
	// RateBurst is the number of requests allowed above the sustained rate.
	RateBurst int
	// MaxTextRunes rejects longer texts; zero means no limit.
	MaxTextRunes int
	// Timeout bounds a single synthesis; zero means no limit.
	Timeout time.Duration
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

type synthesisRequest struct {
	Text string `json:"text"`
}

// Server wraps a fiber application around a TTS processor.
type Server struct {
	app       *fiber.App
	processor core.TTSProcessor
	limiter   *rate.Limiter
	options   Options
	log       *logger.Logger
}

// New builds the application and registers its routes.
func New(processor core.TTSProcessor, options Options, log *logger.Logger) *Server {
	srv := &Server{
		app:       nil,
		processor: processor,
		limiter:   nil,
		options:   options,
		log:       log,
	}

	if options.RateLimit > 0 {
		srv.limiter = rate.NewLimiter(rate.Limit(options.RateLimit), max(options.RateBurst, 1))
	}

	srv.app = fiber.New(fiber.Config{
		AppName:               "otto",
		DisableStartupMessage: true,
		ErrorHandler:          srv.handleError,
	})

	srv.app.Use(srv.requestID, srv.accessLog, srv.rateLimit)
	srv.app.Get(RouteHealth, srv.health)
	srv.app.Get(RouteOtto, srv.synthesizeQuery)
	srv.app.Post(RouteOtto, srv.synthesizeBody)

	return srv
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.System(logListening, addr)

	err := s.app.Listen(addr)
	if err != nil {
		return fmt.Errorf(errFmtListen, addr, err)
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if err != nil {
		return fmt.Errorf(errFmtShutdown, err)
	}

	return nil
}

func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}

	c.Locals(HeaderRequestID, id)
	c.Set(HeaderRequestID, id)

	return c.Next()
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}

	s.log.Info(logRequest, requestIDOf(c), c.Method(), c.Path(), status, time.Since(started))

	return err
}

func (s *Server) rateLimit(c *fiber.Ctx) error {
	if s.limiter != nil && c.Path() != RouteHealth && !s.limiter.Allow() {
		return fiber.NewError(fiber.StatusTooManyRequests, msgRateLimited)
	}

	return c.Next()
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: statusOK})
}

func (s *Server) synthesizeQuery(c *fiber.Ctx) error {
	return s.synthesize(c, c.Query("text"))
}

func (s *Server) synthesizeBody(c *fiber.Ctx) error {
	var req synthesisRequest

	err := c.BodyParser(&req)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, msgInvalidBody, CodeInvalidBody)
	}

	return s.synthesize(c, req.Text)
}

func (s *Server) synthesize(c *fiber.Ctx, input string) error {
	if strings.TrimSpace(input) == "" {
		return respondError(c, fiber.StatusBadRequest, msgEmptyText, CodeEmptyText)
	}

	if s.options.MaxTextRunes > 0 && utf8.RuneCountInString(input) > s.options.MaxTextRunes {
		return respondError(c, fiber.StatusBadRequest, fmt.Sprintf(errFmtTooLong, s.options.MaxTextRunes), CodeTextTooLong)
	}

	ctx := c.UserContext()

	if s.options.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.options.Timeout)
		defer cancel()
	}

	data, err := s.processor.Process(ctx, []byte(input))
	if err != nil {
		s.log.Error(logSynthFailed, requestIDOf(c), err)

		status, code := classify(err)

		return respondError(c, status, err.Error(), code)
	}

	c.Set(fiber.HeaderContentType, audio.FORMAT_WAV.ContentType())

	return c.Status(fiber.StatusOK).Send(data)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := CodeInternal

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		code = ""

		if status == fiber.StatusTooManyRequests {
			code = CodeRateLimited
		}
	}

	return respondError(c, status, err.Error(), code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fiber.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, core.ErrAssetNotFound):
		return fiber.StatusInternalServerError, CodeAssetNotFound
	case errors.Is(err, clip.ErrDecode):
		return fiber.StatusInternalServerError, CodeClipDecode
	default:
		return fiber.StatusInternalServerError, CodeSynthesis
	}
}

func respondError(c *fiber.Ctx, status int, detail, code string) error {
	if detail == "" {
		detail = http.StatusText(status)
	}

	return c.Status(status).JSON(ErrorResponse{Detail: detail, ErrorCode: code})
}

func requestIDOf(c *fiber.Ctx) string {
	id, _ := c.Locals(HeaderRequestID).(string)

	return id
}
