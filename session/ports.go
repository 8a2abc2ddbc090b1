package session

import (
	"context"

	"dictate/audio"
	"dictate/caret"
	"dictate/config"
	"dictate/inject"
	"dictate/mode"
)

// Capturer is the microphone. Start and Stop are called only from the
// controller loop.
type Capturer interface {
	Start() error
	Stop() (audio.Recording, error)
	Abort()
	Level() float64
	Failed() error
}

type Injector interface {
	Inject(ctx context.Context, text string, anchor caret.Anchor) (*inject.Handle, error)
	Reverse(h *inject.Handle) error
	Commit(h *inject.Handle) error
}

type TranscriptionService interface {
	Transcribe(ctx context.Context, rec audio.Recording) (string, error)
}

type TextProcessingService interface {
	Process(ctx context.Context, text string, m mode.Mode) (string, error)
}

// Presenter receives every published ViewState in order. It is called
// from a dedicated goroutine and must not call back into the controller
// synchronously.
type Presenter interface {
	OnStateChange(v ViewState)
}

// Settings is read once per session, at press time.
type Settings interface {
	Snapshot() config.Config
}

type PresenterFunc func(ViewState)

func (f PresenterFunc) OnStateChange(v ViewState) { f(v) }
