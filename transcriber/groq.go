package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	GroqBaseURL = "https://api.groq.com/openai/v1"
	GroqModel   = "whisper-large-v3-turbo"
)

type Groq struct {
	baseTranscriber
}

func NewGroq(apiKey string, opts ...Option) *Groq {
	return &Groq{baseTranscriber: newBase("groq", GroqBaseURL, GroqModel, apiKey, opts)}
}

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func (g *Groq) Transcribe(ctx context.Context, audio []byte, format, lang string) (*Result, error) {
	resp, err := g.post(ctx, audio, format, lang, "verbose_json")
	if err != nil {
		return nil, err
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return nil, fmt.Errorf("groq response parse error: %w", err)
	}

	var noSpeechProb, avgLogProb float64
	if len(gResp.Segments) > 0 {
		var logProbSum float64
		for _, seg := range gResp.Segments {
			noSpeechProb = max(noSpeechProb, seg.NoSpeechProb)
			logProbSum += seg.AvgLogProb
		}
		avgLogProb = logProbSum / float64(len(gResp.Segments))
	}

	return &Result{
		Text:         gResp.Text,
		Metrics:      resp.Metrics,
		RateLimit:    rateLimit(resp.Header),
		NoSpeechProb: noSpeechProb,
		AvgLogProb:   avgLogProb,
		Duration:     gResp.Duration,
	}, nil
}
