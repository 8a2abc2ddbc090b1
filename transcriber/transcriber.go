// Package transcriber sends recordings to a Whisper-compatible speech to
// text API.
package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"dictate/log"
)

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
}

type Transcriber interface {
	Name() string
	// Transcribe uploads one encoded recording. lang is an ISO-639-1 hint;
	// empty lets the API detect it.
	Transcribe(ctx context.Context, audio []byte, format, lang string) (*Result, error)
}

var ErrNoAPIKey = errors.New("missing API key")

// APIError is a non-200 answer from the provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether retrying later might succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Option func(*baseTranscriber)

func WithBaseURL(u string) Option {
	return func(b *baseTranscriber) { b.apiURL = strings.TrimRight(u, "/") + "/audio/transcriptions" }
}

func WithModel(m string) Option {
	return func(b *baseTranscriber) { b.model = m }
}

type baseTranscriber struct {
	client *uploadClient
	name   string
	apiURL string
	model  string
	apiKey string
}

func newBase(name, baseURL, model, apiKey string, opts []Option) baseTranscriber {
	b := baseTranscriber{
		client: newUploadClient(),
		name:   name,
		model:  model,
		apiKey: apiKey,
	}
	WithBaseURL(baseURL)(&b)
	for _, o := range opts {
		o(&b)
	}
	return b
}

func (b *baseTranscriber) Name() string { return b.name }

func (b *baseTranscriber) Model() string { return b.model }

// Warm opens a connection ahead of the first upload so the TLS handshake
// is off the critical path.
func (b *baseTranscriber) Warm() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := b.client.warm(ctx, b.apiURL)
	if err != nil {
		log.Warnf("%s: warming connection: %v", b.name, err)
		return
	}
	log.Infof("%s: connection warm, tls %dms", b.name, d.Milliseconds())
}

func (b *baseTranscriber) post(ctx context.Context, audio []byte, format, lang, responseFormat string) (*response, error) {
	if b.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", b.name, ErrNoAPIKey)
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}

	writer.WriteField("model", b.model)
	writer.WriteField("response_format", responseFormat)
	writer.WriteField("temperature", "0")
	if lang != "" {
		writer.WriteField("language", lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.client.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: b.name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(resp.Body))}
	}
	return resp, nil
}

func rateLimit(h http.Header) string {
	remaining := firstNonEmpty(h, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(h, "x-ratelimit-limit-requests")
	return remaining + "/" + limit
}

// New returns the transcriber for a provider name.
func New(provider, apiKey string, opts ...Option) (Transcriber, error) {
	switch provider {
	case "groq":
		return NewGroq(apiKey, opts...), nil
	case "openai":
		return NewOpenAI(apiKey, opts...), nil
	}
	return nil, fmt.Errorf("unknown transcription provider %q", provider)
}
