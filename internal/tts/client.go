package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AS042971/otto/internal/core"
)

// API endpoints and paths.
const (
	apiOtto   = "/otto"
	apiHealth = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Error messages.
const (
	errUnexpectedContentType   = "unexpected content type: expected audio/wav, got %s"
	errFmtServiceErrorWithCode = "otto service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "otto service returned non-OK status: %s, body: %s"
	errFmtMarshalRequest       = "failed to marshal request: %w"
	errFmtCreateRequest        = "failed to create request: %w"
	errFmtSendRequest          = "failed to send request to otto service at %s: %w"
	errFmtReadAudio            = "failed to read audio data: %w"
	errFmtHealthRequest        = "failed to create health check request: %w"
	errFmtHealthSend           = "health check failed for service at %s: %w"
	errFmtHealthStatus         = "health check failed with status: %s"
)

// Errors returned by the HTTP client.
var (
	ErrTextEmpty          = errors.New("text cannot be empty")
	ErrEmptyAudioResponse = errors.New("received empty audio data")
)

// HTTPClient talks to a running otto service. It implements core.TTSProcessor
// so that batch jobs can run against a remote service or a local Synthesizer.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

var _ core.TTSProcessor = (*HTTPClient)(nil)

// Request is the JSON body of POST /otto.
type Request struct {
	Text string `json:"text"`
}

// ErrorResponse is the structured error body returned by the service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for the service at baseURL
// (e.g. "http://127.0.0.1:8002"). The timeout applies to every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service address.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Process sends text to the service and returns the WAV file it produces.
func (c *HTTPClient) Process(ctx context.Context, text []byte) ([]byte, error) {
	return c.GenerateSpeech(ctx, Request{Text: string(text)})
}

// GenerateSpeech posts req to /otto and returns the raw WAV data.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextEmpty
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf(errFmtMarshalRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiOtto, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf(errFmtCreateRequest, err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(errFmtSendRequest, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf(errUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadAudio, err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudioResponse
	}

	return audioData, nil
}

// HealthCheck returns an error unless the service answers GET /health with 200.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf(errFmtHealthRequest, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(errFmtHealthSend, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(errFmtHealthStatus, resp.Status)
	}

	return nil
}

// parseErrorResponse decodes the structured error, falling back to the raw body.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
