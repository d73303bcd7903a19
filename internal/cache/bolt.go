package cache

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bolt keeps corrections in a local bbolt file, one bucket per namespace.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path, namespace string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	b := &Bolt{db: db, bucket: []byte(namespace)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt create bucket: %w", err)
	}
	return b, nil
}

// Get returns the cached correction for token.
func (b *Bolt) Get(_ context.Context, token string) (string, bool, error) {
	var (
		out   string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if bk == nil {
			return nil
		}
		if v := bk.Get([]byte(token)); v != nil {
			out, found = string(v), true
		}
		return nil
	})
	return out, found, err
}

// Set stores the correction for token.
func (b *Bolt) Set(_ context.Context, token, corrected string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(b.bucket)
		if err != nil {
			return err
		}
		return bk.Put([]byte(token), []byte(corrected))
	})
}

// Len returns the number of entries in the namespace.
func (b *Bolt) Len() (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		if bk := tx.Bucket(b.bucket); bk != nil {
			n = bk.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Close closes the underlying database.
func (b *Bolt) Close() error {
	return b.db.Close()
}
