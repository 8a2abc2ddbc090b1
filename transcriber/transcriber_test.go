package transcriber

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dictate/audio"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

type upload struct {
	auth, model, lang, format, filename string
	size                                int
}

func whisperServer(t *testing.T, status int, body string, got *upload) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		got.auth = r.Header.Get("Authorization")
		got.model = r.FormValue("model")
		got.lang = r.FormValue("language")
		got.format = r.FormValue("response_format")
		if f, hdr, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			got.filename, got.size = hdr.Filename, len(data)
		}
		w.Header().Set("x-ratelimit-remaining-requests", "19")
		w.Header().Set("x-ratelimit-limit-requests", "20")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGroqTranscribe(t *testing.T) {
	var got upload
	srv := whisperServer(t, http.StatusOK,
		`{"text":" hello world ","duration":2.0,"segments":[{"text":"hello","no_speech_prob":0.01,"avg_logprob":-0.2},{"text":"world","no_speech_prob":0.05,"avg_logprob":-0.4}]}`,
		&got)

	g := NewGroq("gsk_test", WithBaseURL(srv.URL+"/v1/"))
	res, err := g.Transcribe(context.Background(), []byte("fLaC-data"), "flac", "de")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != " hello world " {
		t.Errorf("Text = %q", res.Text)
	}
	if res.NoSpeechProb != 0.05 {
		t.Errorf("NoSpeechProb = %v", res.NoSpeechProb)
	}
	if res.AvgLogProb < -0.31 || res.AvgLogProb > -0.29 {
		t.Errorf("AvgLogProb = %v", res.AvgLogProb)
	}
	if res.RateLimit != "19/20" {
		t.Errorf("RateLimit = %q", res.RateLimit)
	}
	if res.Metrics == nil {
		t.Error("Metrics missing")
	}
	want := upload{auth: "Bearer gsk_test", model: GroqModel, lang: "de", format: "verbose_json", filename: "audio.flac", size: 9}
	if got != want {
		t.Errorf("upload = %+v, want %+v", got, want)
	}
}

func TestOpenAITranscribe(t *testing.T) {
	var got upload
	srv := whisperServer(t, http.StatusOK, `{"text":"bonjour"}`, &got)

	o := NewOpenAI("sk-test", WithBaseURL(srv.URL+"/v1"), WithModel("whisper-2"))
	res, err := o.Transcribe(context.Background(), []byte("RIFF"), "wav", "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "bonjour" {
		t.Errorf("Text = %q", res.Text)
	}
	if got.model != "whisper-2" || got.lang != "" || got.format != "json" || got.filename != "audio.wav" {
		t.Errorf("upload = %+v", got)
	}
}

func TestTranscribeErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		var got upload
		srv := whisperServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`, &got)
		_, err := NewGroq("k", WithBaseURL(srv.URL+"/v1")).Transcribe(context.Background(), []byte("x"), "flac", "")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("err = %v", err)
		}
		if apiErr.StatusCode != http.StatusTooManyRequests || !apiErr.Temporary() {
			t.Errorf("apiErr = %+v", apiErr)
		}
	})
	t.Run("missing key", func(t *testing.T) {
		_, err := NewOpenAI("").Transcribe(context.Background(), []byte("x"), "flac", "")
		if !errors.Is(err, ErrNoAPIKey) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := NewGroq("k", WithBaseURL(srv.URL)).Transcribe(ctx, []byte("x"), "flac", "")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("unknown provider", func(t *testing.T) {
		if _, err := New("deepgram", "k"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestServiceTranscribe(t *testing.T) {
	tests := []struct {
		name string
		body string
		lang string
		want string
		hint string
	}{
		{name: "trimmed", body: `{"text":"  buy milk \n"}`, lang: "en", want: "buy milk", hint: "en"},
		{name: "auto language", body: `{"text":"hola"}`, lang: "auto", want: "hola", hint: ""},
		{name: "no speech", body: `{"text":"Thank you.","segments":[{"no_speech_prob":0.97}]}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got upload
			srv := whisperServer(t, http.StatusOK, tt.body, &got)
			svc := NewService(NewGroq("k", WithBaseURL(srv.URL+"/v1")), "flac")
			svc.SetLanguage(tt.lang)

			text, err := svc.Transcribe(context.Background(), audio.SilentRecording(time.Second))
			if err != nil {
				t.Fatalf("Transcribe: %v", err)
			}
			if text != tt.want {
				t.Errorf("text = %q, want %q", text, tt.want)
			}
			if got.lang != tt.hint {
				t.Errorf("language hint = %q, want %q", got.lang, tt.hint)
			}
			if got.filename != "audio.flac" || got.size == 0 {
				t.Errorf("upload = %+v", got)
			}
		})
	}
}

func TestFake(t *testing.T) {
	f := NewFake("hello", nil)
	text, err := f.Transcribe(context.Background(), audio.SilentRecording(time.Second))
	if err != nil || text != "hello" {
		t.Fatalf("got %q, %v", text, err)
	}

	f.SetDelay(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := f.Transcribe(ctx, audio.SilentRecording(time.Second)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if f.Calls() != 2 {
		t.Errorf("Calls = %d", f.Calls())
	}
	if f.Last().Duration() != time.Second {
		t.Errorf("Last duration = %v", f.Last().Duration())
	}
}
