// Package library keeps extracted books and serves them page by page.
package library

import (
	"context"
	"errors"
	"time"

	"github.com/metcalfc/folio/internal/reader"
)

var (
	// ErrNotFound is returned for unknown book IDs.
	ErrNotFound = errors.New("book not found")
	// ErrDuplicate is returned when the same file was already imported.
	ErrDuplicate = errors.New("book already in library")
)

// Book is an extracted document. Content is the normalized text; the raw
// upload is gone by the time a Book exists.
type Book struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Author        string           `json:"author,omitempty"`
	Format        reader.Kind      `json:"format"`
	Content       string           `json:"content"`
	ContentLength int              `json:"content_length"` // runes
	ContentHash   string           `json:"content_hash"`   // sha256 of the raw upload
	Sections      []reader.Section `json:"sections,omitempty"`
	Warnings      []reader.Warning `json:"warnings,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Meta is caller-supplied metadata. Non-empty fields win over what the
// document itself declares.
type Meta struct {
	Title  string
	Author string
}

// Store persists books.
type Store interface {
	Put(ctx context.Context, b *Book) error
	Get(ctx context.Context, id string) (*Book, error)
	List(ctx context.Context) ([]*Book, error)
	Delete(ctx context.Context, id string) error
	// FindByHash returns the book imported from a file with the given
	// content hash, or ErrNotFound.
	FindByHash(ctx context.Context, hash string) (*Book, error)
}
