package state

import (
	"context"
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

const stateFileName = "reading_positions.json"

// FileStore keeps reading positions in a JSON file. It suits a single local
// process; BoltStore is the shared backend.
type FileStore struct {
	path string
	data map[string]map[string]Record // user -> book -> record
	mu   sync.RWMutex
}

// NewFileStore creates or loads state from dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	store := &FileStore{
		path: filepath.Join(dir, stateFileName),
		data: make(map[string]map[string]Record),
	}
	if err := store.load(); err != nil {
		// Non-fatal - start with empty state
		store.data = make(map[string]map[string]Record)
	}
	return store, nil
}

// GetProgress returns the saved page, or DefaultPage if none.
func (s *FileStore) GetProgress(_ context.Context, userID, bookID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.data[userID][bookID]; ok {
		return rec.Page, nil
	}
	return DefaultPage, nil
}

// SetProgress saves the page for the pair.
func (s *FileStore) SetProgress(_ context.Context, userID, bookID string, page int) error {
	if page < 1 {
		return ErrInvalidPage
	}
	return s.update(func(data map[string]map[string]Record) {
		books := data[userID]
		if books == nil {
			books = make(map[string]Record)
			data[userID] = books
		}
		books[bookID] = Record{UserID: userID, BookID: bookID, Page: page, UpdatedAt: now().UTC()}
	})
}

// Record returns the full record for the pair.
func (s *FileStore) Record(_ context.Context, userID, bookID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[userID][bookID]
	return rec, ok
}

// DeleteBook removes every user's position in the book.
func (s *FileStore) DeleteBook(_ context.Context, bookID string) error {
	return s.update(func(data map[string]map[string]Record) {
		for user, books := range data {
			delete(books, bookID)
			if len(books) == 0 {
				delete(data, user)
			}
		}
	})
}

// DeleteUser removes all positions of the user.
func (s *FileStore) DeleteUser(_ context.Context, userID string) error {
	return s.update(func(data map[string]map[string]Record) {
		delete(data, userID)
	})
}

// update applies fn to a copy of the positions and swaps the copy in only
// once it is on disk, so a failed write leaves memory matching the file.
func (s *FileStore) update(fn func(data map[string]map[string]Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]map[string]Record, len(s.data))
	for user, books := range s.data {
		next[user] = maps.Clone(books)
	}
	fn(next)
	if err := save(s.path, next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.data)
}

// save writes to a temporary file and renames it so readers of the file
// never see a partial write.
func save(path string, positions map[string]map[string]Record) error {
	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

var _ Tracker = (*FileStore)(nil)
