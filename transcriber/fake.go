package transcriber

import (
	"context"
	"sync"
	"time"

	"dictate/audio"
)

// Fake stands in for Service. Each call returns the current response
// after Delay, or earlier with ctx's error if ctx ends first.
type Fake struct {
	mu    sync.Mutex
	text  string
	err   error
	delay time.Duration
	calls int
	last  audio.Recording
	lang  string
}

func NewFake(text string, err error) *Fake {
	return &Fake{text: text, err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) SetResponse(text string, err error) {
	f.mu.Lock()
	f.text, f.err = text, err
	f.mu.Unlock()
}

func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

func (f *Fake) SetLanguage(lang string) {
	f.mu.Lock()
	f.lang = lang
	f.mu.Unlock()
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Last is the most recent recording passed to Transcribe.
func (f *Fake) Last() audio.Recording {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *Fake) Transcribe(ctx context.Context, rec audio.Recording) (string, error) {
	f.mu.Lock()
	f.calls++
	f.last = rec
	text, err, delay := f.text, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return text, err
}
