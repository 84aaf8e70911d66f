package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"presstalk/internal/domain"
)

const (
	DefaultBaseURL   = "http://localhost:8000"
	DefaultPath      = "/process-audio/"
	DefaultFieldName = "audio_file"
	DefaultFileName  = "user_recording.wav"

	nonJSONErrorDetail = "server returned a non-JSON error"
)

// Config controls the backend submission endpoint.
type Config struct {
	BaseURL   string
	Path      string
	FieldName string
	FileName  string
	// Timeout bounds one submission. Zero waits for the backend indefinitely.
	Timeout   time.Duration
	UserAgent string
}

// Client implements ports.Uploader against the transcription/response endpoint.
type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
	log      *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.FieldName == "" {
		cfg.FieldName = DefaultFieldName
	}
	if cfg.FileName == "" {
		cfg.FileName = DefaultFileName
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "presstalk/1.0"
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	endpoint, err := buildEndpointURL(cfg.BaseURL, cfg.Path)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:      cfg,
		endpoint: endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      logger,
	}, nil
}

// Endpoint returns the resolved submission URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Submit posts the recording as a single multipart upload and decodes the reply.
func (c *Client) Submit(ctx context.Context, recording domain.Recording) (domain.Reply, error) {
	body, contentType, err := c.buildMultipart(recording)
	if err != nil {
		return domain.Reply{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("failed to create backend request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if recording.SessionID != "" {
		req.Header.Set("X-Request-ID", recording.SessionID)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("%w: failed to read backend response: %w", domain.ErrNetwork, err)
	}

	c.log.Debug("backend responded",
		"session", recording.SessionID,
		"status", resp.StatusCode,
		"bytes", len(payload),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Reply{}, &domain.ServerError{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Detail:     parseErrorDetail(payload),
		}
	}

	return parseReply(payload)
}

func (c *Client) buildMultipart(recording domain.Recording) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	contentType := recording.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, c.cfg.FieldName, c.cfg.FileName))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create audio form part: %w", err)
	}
	if _, err := part.Write(recording.Audio); err != nil {
		return nil, "", fmt.Errorf("failed to write audio form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

type replyBody struct {
	UserText      *string `json:"user_text"`
	AssistantText *string `json:"llm_response_text"`
	AudioURL      *string `json:"audio_response_data_url"`
}

func parseReply(payload []byte) (domain.Reply, error) {
	var body replyBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return domain.Reply{}, fmt.Errorf("%w: %v", domain.ErrMalformedReply, err)
	}
	return domain.Reply{
		UserText:      deref(body.UserText),
		AssistantText: deref(body.AssistantText),
		AudioURL:      strings.TrimSpace(deref(body.AudioURL)),
	}, nil
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// parseErrorDetail extracts the user-facing detail of an error response. A
// string detail is used verbatim; structured details are shown as compact JSON.
func parseErrorDetail(payload []byte) string {
	if !json.Valid(payload) {
		return nonJSONErrorDetail
	}

	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if len(body.Detail) == 0 || string(body.Detail) == "null" {
		return ""
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		return detail
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body.Detail); err != nil {
		return string(body.Detail)
	}
	return compact.String()
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func buildEndpointURL(base string, path string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid backend base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("backend base URL must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("backend base URL has no host")
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
