// Package state persists where each reader left off in each book.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidPage is returned when a page below 1 is saved.
var ErrInvalidPage = errors.New("page must be at least 1")

// DefaultPage is reported when a reader has no saved position.
const DefaultPage = 1

// Record is the saved position of one user in one book.
type Record struct {
	UserID    string    `json:"user_id"`
	BookID    string    `json:"book_id"`
	Page      int       `json:"page"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker stores one Record per (user, book) pair. It does not check pages
// against a book's length; the paginator clamps when the page is rendered.
type Tracker interface {
	GetProgress(ctx context.Context, userID, bookID string) (int, error)
	SetProgress(ctx context.Context, userID, bookID string, page int) error
	DeleteBook(ctx context.Context, bookID string) error
	DeleteUser(ctx context.Context, userID string) error
}

var now = time.Now
