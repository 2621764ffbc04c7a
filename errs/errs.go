// Package errs holds the error kinds shared by every pipeline stage.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindMediaDecode
	KindTranscription
	KindSubmission
	KindJobFailed
	KindFetch
	KindPollTimeout
	KindParse
	KindCompletion
)

var kindNames = map[Kind]string{
	KindUnknown:       "UnknownError",
	KindInput:         "InputError",
	KindMediaDecode:   "MediaDecodeError",
	KindTranscription: "TranscriptionError",
	KindSubmission:    "SubmissionError",
	KindJobFailed:     "JobFailedError",
	KindFetch:         "FetchError",
	KindPollTimeout:   "PollTimeoutError",
	KindParse:         "ParseError",
	KindCompletion:    "CompletionError",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Fatal reports whether an error of this kind aborts the whole run.
func (k Kind) Fatal() bool {
	return k == KindInput || k == KindMediaDecode
}

// NoClip marks an error that is not tied to a single clip.
const NoClip = -1

type Error struct {
	Kind Kind
	Op   string
	Clip int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Clip != NoClip {
		msg += fmt.Sprintf(" (clip %d)", e.Clip)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an error that is not bound to a clip.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Clip: NoClip, Err: err}
}

// Clip builds an error for the clip at index.
func Clip(kind Kind, op string, index int, err error) *Error {
	return &Error{Kind: kind, Op: op, Clip: index, Err: err}
}

// Errorf is E with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return E(kind, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
