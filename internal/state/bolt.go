package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/metcalfc/folio/internal/storage"
	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps reading positions in the progress bucket, one nested
// bucket per user keyed by book ID. Each write is a single transaction, so
// concurrent readers see either the old or the new record.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore returns a store on an open database (see storage.Open).
func NewBoltStore(db *bolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

// GetProgress returns the saved page, or DefaultPage if none.
func (s *BoltStore) GetProgress(ctx context.Context, userID, bookID string) (int, error) {
	rec, ok, err := s.Record(ctx, userID, bookID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultPage, nil
	}
	return rec.Page, nil
}

// Record returns the full record for the pair.
func (s *BoltStore) Record(_ context.Context, userID, bookID string) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		users := tx.Bucket(storage.ProgressBucket)
		if users == nil {
			return nil
		}
		books := users.Bucket([]byte(userID))
		if books == nil {
			return nil
		}
		v := books.Get([]byte(bookID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("read progress: %w", err)
	}
	return rec, found, nil
}

// SetProgress upserts the record for the pair.
func (s *BoltStore) SetProgress(_ context.Context, userID, bookID string, page int) error {
	if page < 1 {
		return ErrInvalidPage
	}
	rec := Record{UserID: userID, BookID: bookID, Page: page, UpdatedAt: now().UTC()}
	v, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		users, err := tx.CreateBucketIfNotExists(storage.ProgressBucket)
		if err != nil {
			return err
		}
		books, err := users.CreateBucketIfNotExists([]byte(userID))
		if err != nil {
			return err
		}
		return books.Put([]byte(bookID), v)
	})
}

// DeleteBook removes every user's position in the book.
func (s *BoltStore) DeleteBook(_ context.Context, bookID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(storage.ProgressBucket)
		if users == nil {
			return nil
		}
		return users.ForEachBucket(func(user []byte) error {
			return users.Bucket(user).Delete([]byte(bookID))
		})
	})
}

// DeleteUser removes all positions of the user.
func (s *BoltStore) DeleteUser(_ context.Context, userID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(storage.ProgressBucket)
		if users == nil || users.Bucket([]byte(userID)) == nil {
			return nil
		}
		return users.DeleteBucket([]byte(userID))
	})
}

var _ Tracker = (*BoltStore)(nil)
