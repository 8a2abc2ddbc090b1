package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel   = "whisper-1"
)

type OpenAI struct {
	baseTranscriber
}

func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	return &OpenAI{baseTranscriber: newBase("openai", OpenAIBaseURL, OpenAIModel, apiKey, opts)}
}

func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, format, lang string) (*Result, error) {
	resp, err := o.post(ctx, audio, format, lang, "json")
	if err != nil {
		return nil, err
	}

	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return nil, fmt.Errorf("openai response parse error: %w", err)
	}

	return &Result{
		Text:      oResp.Text,
		Metrics:   resp.Metrics,
		RateLimit: rateLimit(resp.Header),
	}, nil
}
