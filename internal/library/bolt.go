package library

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/metcalfc/folio/internal/storage"
)

// BoltStore keeps books as JSON values keyed by ID in the books bucket, and
// indexes their content hashes in the hashes bucket.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(db *bolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

func (s *BoltStore) Put(_ context.Context, b *Book) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode book %s: %w", b.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(storage.BooksBucket).Put([]byte(b.ID), data); err != nil {
			return err
		}
		if b.ContentHash == "" {
			return nil
		}
		return tx.Bucket(storage.HashesBucket).Put([]byte(b.ContentHash), []byte(b.ID))
	})
}

func (s *BoltStore) Get(_ context.Context, id string) (*Book, error) {
	var b *Book
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		b, err = getBook(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BoltStore) FindByHash(_ context.Context, hash string) (*Book, error) {
	var b *Book
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(storage.HashesBucket).Get([]byte(hash))
		if id == nil {
			return fmt.Errorf("%w: hash %s", ErrNotFound, hash)
		}
		var err error
		b, err = getBook(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func getBook(tx *bolt.Tx, id string) (*Book, error) {
	v := tx.Bucket(storage.BooksBucket).Get([]byte(id))
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var b Book
	if err := json.Unmarshal(v, &b); err != nil {
		return nil, fmt.Errorf("decode book %s: %w", id, err)
	}
	return &b, nil
}

// List returns every book, oldest first.
func (s *BoltStore) List(_ context.Context) ([]*Book, error) {
	var books []*Book
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(storage.BooksBucket).ForEach(func(k, v []byte) error {
			var b Book
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("decode book %s: %w", k, err)
			}
			books = append(books, &b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].CreatedAt.Before(books[j].CreatedAt)
	})
	return books, nil
}

func (s *BoltStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := getBook(tx, id)
		if err != nil {
			return err
		}
		hashes := tx.Bucket(storage.HashesBucket)
		if b.ContentHash != "" && string(hashes.Get([]byte(b.ContentHash))) == id {
			if err := hashes.Delete([]byte(b.ContentHash)); err != nil {
				return err
			}
		}
		return tx.Bucket(storage.BooksBucket).Delete([]byte(id))
	})
}
