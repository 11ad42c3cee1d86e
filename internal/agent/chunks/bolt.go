package chunks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	errx "github.com/Chative-rag-chat/server/internal/core/error"
	"go.etcd.io/bbolt"
)

var bucketChunks = []byte("chunks")

// BoltStore serves chunks from a bbolt file keyed by big-endian uint64 id.
type BoltStore struct {
	db *bbolt.DB
	n  int
}

func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open chunk db %s: %w", path, err)
	}

	var n int
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		if b == nil {
			return errors.New("bucket \"chunks\" not found")
		}
		n = b.Stats().KeyN
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open chunk db %s: %w", path, err)
	}

	return &BoltStore{db: db, n: n}, nil
}

func (s *BoltStore) Len() int { return s.n }

func (s *BoltStore) Get(id int64) (string, error) {
	if id < 0 || id >= int64(s.n) {
		return "", errx.Alignment(id, s.n)
	}

	var text string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get(chunkKey(id))
		if data == nil {
			return errx.Alignment(id, s.n)
		}
		text = string(data)
		return nil
	})
	return text, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveBolt writes texts into a fresh chunk db at path, replacing any existing bucket.
func SaveBolt(path string, texts []string) error {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("create chunk db %s: %w", path, err)
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketChunks) != nil {
			if err := tx.DeleteBucket(bucketChunks); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return err
		}
		for i, text := range texts {
			if err := b.Put(chunkKey(int64(i)), []byte(text)); err != nil {
				return err
			}
		}
		return nil
	})
}

func chunkKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
