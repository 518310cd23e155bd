package reader

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestDecodeError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &DecodeError{Unit: "chapter", Index: 3, Ref: "ch3.xhtml", Err: io.ErrUnexpectedEOF})

	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("errors.As failed on %v", err)
	}
	if derr.Index != 3 || derr.Unit != "chapter" {
		t.Errorf("got %+v", derr)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("DecodeError should unwrap to its cause")
	}

	want := "decode chapter 3 (ch3.xhtml): unexpected EOF"
	if got := derr.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	w := warningOf(derr)
	if w.Unit != "chapter" || w.Index != 3 || w.Message != want {
		t.Errorf("got warning %+v", w)
	}

	page := &DecodeError{Unit: "page", Index: 2, Err: errors.New("bad stream")}
	if got := page.Error(); got != "decode page 2: bad stream" {
		t.Errorf("got %q", got)
	}
}
