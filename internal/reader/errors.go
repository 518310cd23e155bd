package reader

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither PDF nor EPUB.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEmptyExtraction is returned when no page or chapter produced text.
	ErrEmptyExtraction = errors.New("no text could be extracted")
)

// DecodeError describes a single page or chapter that could not be decoded.
// It is recovered locally and reported as a Warning on the Result.
type DecodeError struct {
	Unit  string // "page" or "chapter"
	Index int    // 1-based
	Ref   string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("decode %s %d (%s): %v", e.Unit, e.Index, e.Ref, e.Err)
	}
	return fmt.Sprintf("decode %s %d: %v", e.Unit, e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Warning is the persisted form of a recovered DecodeError.
type Warning struct {
	Unit    string `json:"unit"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

func warningOf(e *DecodeError) Warning {
	return Warning{Unit: e.Unit, Index: e.Index, Message: e.Error()}
}
