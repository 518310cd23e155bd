package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/metcalfc/folio/internal/paginate"
	"github.com/metcalfc/folio/internal/reader"
	"github.com/metcalfc/folio/internal/state"
)

// PageResponse is one rendered page plus the book metadata a client needs
// to show it.
type PageResponse struct {
	Content            string `json:"content"`
	CurrentPage        int    `json:"currentPage"`
	TotalPages         int    `json:"totalPages"`
	BookTitle          string `json:"bookTitle"`
	BookAuthor         string `json:"bookAuthor"`
	TotalContentLength int    `json:"totalContentLength"`
}

// ContentsEntry is a table of contents line with the page it links to.
type ContentsEntry struct {
	Title     string `json:"title"`
	Level     int    `json:"level"`
	Paragraph int    `json:"paragraph"`
	Page      int    `json:"page"`
}

// Service ties extraction, the book store, pagination and progress together.
type Service struct {
	books     Store
	progress  state.Tracker
	extractor *reader.Extractor
	pageSize  int
	uploadDir string
	logger    *zap.Logger
}

var now = time.Now

func NewService(books Store, progress state.Tracker, extractor *reader.Extractor, pageSize int, uploadDir string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize < 1 {
		pageSize = paginate.DefaultPageSize
	}
	return &Service{
		books:     books,
		progress:  progress,
		extractor: extractor,
		pageSize:  pageSize,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Upload spools r into the upload directory under a fresh name carrying the
// extension of name, then imports it. The spooled copy is gone afterwards
// whether or not the import succeeds.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader, meta Meta) (*Book, error) {
	if _, err := s.extractor.Detect(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	spool := filepath.Join(s.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	f, err := os.OpenFile(spool, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	defer func() {
		if err := os.Remove(spool); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove spooled upload", zap.String("path", spool), zap.Error(err))
		}
	}()

	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}

	return s.importFile(ctx, spool, name, meta)
}

// Import extracts the file at path, which is consumed, and stores the result
// as a new book. A file whose bytes match an imported book is left in place
// and fails with ErrDuplicate.
func (s *Service) Import(ctx context.Context, path string, meta Meta) (*Book, error) {
	return s.importFile(ctx, path, path, meta)
}

// importFile imports path; name is the file name the user knows the book by.
func (s *Service) importFile(ctx context.Context, path, name string, meta Meta) (*Book, error) {
	if _, err := s.extractor.Detect(path); err != nil {
		return nil, err
	}
	hash, err := ComputeHash(path)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	existing, err := s.books.FindByHash(ctx, hash)
	switch {
	case err == nil:
		s.logger.Info("duplicate import",
			zap.String("name", name),
			zap.String("existing", existing.ID))
		return nil, fmt.Errorf("%w: %s is %s (%s)", ErrDuplicate, filepath.Base(name), existing.ID, existing.Title)
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("look up %s: %w", hash, err)
	}

	res, err := s.extractor.ExtractFile(ctx, path)
	if err != nil {
		return nil, err
	}

	book := &Book{
		ID:            uuid.NewString(),
		Title:         firstNonEmpty(meta.Title, res.Title, baseTitle(name)),
		Author:        firstNonEmpty(meta.Author, res.Author),
		Format:        res.Kind,
		Content:       res.Text,
		ContentLength: utf8.RuneCountInString(res.Text),
		ContentHash:   hash,
		Sections:      res.Sections,
		Warnings:      res.Warnings,
		CreatedAt:     now().UTC(),
	}
	if err := s.books.Put(ctx, book); err != nil {
		return nil, fmt.Errorf("store book: %w", err)
	}

	s.logger.Info("book imported",
		zap.String("id", book.ID),
		zap.String("title", book.Title),
		zap.String("format", string(book.Format)),
		zap.Int("length", book.ContentLength),
		zap.Int("sections", len(book.Sections)),
		zap.Int("warnings", len(book.Warnings)))
	return book, nil
}

// Read renders a page of a book for a user. Page 0 means "where the user
// left off". An explicit page is clamped into range and saved as the user's
// new position.
func (s *Service) Read(ctx context.Context, userID, bookID string, page int) (*PageResponse, error) {
	book, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}

	explicit := page != 0
	if !explicit {
		if page, err = s.progress.GetProgress(ctx, userID, bookID); err != nil {
			return nil, fmt.Errorf("load progress: %w", err)
		}
	}

	view := paginate.Paginate(book.Content, page, s.pageSize)
	if explicit {
		if err := s.progress.SetProgress(ctx, userID, bookID, view.Page); err != nil {
			return nil, fmt.Errorf("save progress: %w", err)
		}
	}

	s.logger.Debug("page served",
		zap.String("user", userID),
		zap.String("book", bookID),
		zap.Int("page", view.Page),
		zap.Int("total", view.TotalPages))

	return &PageResponse{
		Content:            view.Content,
		CurrentPage:        view.Page,
		TotalPages:         view.TotalPages,
		BookTitle:          book.Title,
		BookAuthor:         book.Author,
		TotalContentLength: book.ContentLength,
	}, nil
}

// Contents lists a book's sections with the page each starts on.
func (s *Service) Contents(ctx context.Context, bookID string) ([]ContentsEntry, error) {
	book, err := s.books.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	entries := make([]ContentsEntry, 0, len(book.Sections))
	for _, sec := range book.Sections {
		entries = append(entries, ContentsEntry{
			Title:     sec.Title,
			Level:     sec.Level,
			Paragraph: sec.Paragraph,
			Page:      paginate.PageOf(sec.Paragraph, s.pageSize),
		})
	}
	return entries, nil
}

// SetProgress saves a user's page in a known book.
func (s *Service) SetProgress(ctx context.Context, userID, bookID string, page int) error {
	if _, err := s.books.Get(ctx, bookID); err != nil {
		return err
	}
	return s.progress.SetProgress(ctx, userID, bookID, page)
}

func (s *Service) Progress(ctx context.Context, userID, bookID string) (int, error) {
	return s.progress.GetProgress(ctx, userID, bookID)
}

func (s *Service) Books(ctx context.Context) ([]*Book, error) {
	return s.books.List(ctx)
}

func (s *Service) Book(ctx context.Context, id string) (*Book, error) {
	return s.books.Get(ctx, id)
}

// Delete removes a book and every reader's progress in it. Progress goes
// first: when that fails the book is untouched and the delete can be retried,
// and no progress ever outlives its book.
func (s *Service) Delete(ctx context.Context, bookID string) error {
	if _, err := s.books.Get(ctx, bookID); err != nil {
		return err
	}
	if err := s.progress.DeleteBook(ctx, bookID); err != nil {
		return fmt.Errorf("delete progress for %s: %w", bookID, err)
	}
	if err := s.books.Delete(ctx, bookID); err != nil {
		return err
	}
	s.logger.Info("book deleted", zap.String("id", bookID))
	return nil
}

// Formats lists the document formats Upload and Import accept.
func (s *Service) Formats() []string {
	return s.extractor.SupportedFormats()
}

// DeleteUser forgets a user's progress in every book.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.progress.DeleteUser(ctx, userID)
}

func baseTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
