package transcriber

import (
	"context"
	"strings"
	"sync"

	"dictate/audio"
	"dictate/encoder"
	"dictate/log"
)

// NoSpeechThreshold is the segment no-speech probability above which a
// transcript is treated as empty.
const NoSpeechThreshold = 0.9

// Service encodes a recording, uploads it and returns the transcript.
type Service struct {
	t      Transcriber
	format string

	mu   sync.Mutex
	lang string
}

func NewService(t Transcriber, format string) *Service {
	return &Service{t: t, format: format}
}

func (s *Service) Name() string { return s.t.Name() }

// SetLanguage sets the transcription hint. "" and "auto" mean detect.
func (s *Service) SetLanguage(lang string) {
	if lang == "auto" {
		lang = ""
	}
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
}

func (s *Service) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Warm pre-opens the provider connection when the transcriber supports it.
func (s *Service) Warm() {
	if w, ok := s.t.(interface{ Warm() }); ok {
		go w.Warm()
	}
}

func (s *Service) Transcribe(ctx context.Context, rec audio.Recording) (string, error) {
	enc, err := encoder.New(s.format)
	if err != nil {
		return "", err
	}
	encoded, err := encoder.Encode(enc, rec)
	if err != nil {
		return "", err
	}

	result, err := s.t.Transcribe(ctx, encoded.Data, encoded.Format, s.Language())
	if err != nil {
		return "", err
	}

	m := log.Metrics{
		AudioLengthS:     rec.Duration().Seconds(),
		RawSizeKB:        float64(encoded.RawBytes) / 1024,
		CompressedSizeKB: float64(len(encoded.Data)) / 1024,
		CompressionPct:   encoded.CompressionPct(),
		EncodeTimeMs:     float64(encoded.EncodeTime.Milliseconds()),
	}
	var reused bool
	var proto string
	if nm := result.Metrics; nm != nil {
		m.DNSTimeMs = float64(nm.DNS.Milliseconds())
		m.TLSTimeMs = float64(nm.TLS.Milliseconds())
		m.TTFBMs = float64(nm.TTFB.Milliseconds())
		m.TotalTimeMs = float64(nm.Sum().Milliseconds())
		reused, proto = nm.ConnReused, nm.TLSProtocol
	}
	log.TranscriptionMetrics(m, encoded.Format, s.t.Name(), reused, proto)
	if result.RateLimit != "" {
		log.Infof("transcribe: rate limit %s", result.RateLimit)
	}

	if result.NoSpeechProb > NoSpeechThreshold {
		return "", nil
	}
	return strings.TrimSpace(result.Text), nil
}
