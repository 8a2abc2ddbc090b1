package session

import (
	"context"
	"errors"
	"fmt"

	"dictate/audio"
	"dictate/config"
	"dictate/inject"
)

type Kind int

const (
	KindCapture Kind = iota + 1
	KindService
	KindInjection
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindCapture:
		return "CaptureError"
	case KindService:
		return "ServiceError"
	case KindInjection:
		return "InjectionError"
	case KindConfiguration:
		return "ConfigurationError"
	}
	return "Error"
}

// Error is every failure the controller folds into a transition.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ErrNoSpeech ends a session whose transcript came back empty.
var ErrNoSpeech = errors.New("no speech detected")

// failureText is the short message shown in the overlay for err.
func failureText(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong"
	}
	switch e.Kind {
	case KindConfiguration:
		if errors.Is(err, config.ErrMissingCredentials) {
			return "No API key configured"
		}
		return "Configuration problem"
	case KindCapture:
		if errors.Is(err, audio.ErrNoAudio) {
			return "Microphone sent no audio"
		}
		return "Microphone unavailable"
	case KindInjection:
		if errors.Is(err, inject.ErrTargetChanged) {
			if e.Op == "inject" {
				return "Focus changed, text not inserted"
			}
			return "Target changed, text left in place"
		}
		return "Could not insert text"
	}
	switch {
	case errors.Is(err, ErrNoSpeech):
		return "No speech detected"
	case errors.Is(err, context.DeadlineExceeded):
		if e.Op == "process" {
			return "Processing timed out"
		}
		return "Transcription timed out"
	case e.Op == "process":
		return "Processing failed"
	}
	return "Transcription failed"
}
