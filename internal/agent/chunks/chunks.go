// Package chunks holds the text chunks that a vector index points at.
// Chunk i belongs to index id i; a lookup outside the store is reported as an
// index alignment error.
package chunks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errx "github.com/Chative-rag-chat/server/internal/core/error"
	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
	"gopkg.in/yaml.v3"
)

type Store interface {
	Len() int
	Get(id int64) (string, error)
	Close() error
}

// SliceStore keeps every chunk in memory.
type SliceStore struct {
	texts []string
}

func NewSliceStore(texts []string) *SliceStore {
	return &SliceStore{texts: texts}
}

func (s *SliceStore) Len() int { return len(s.texts) }

func (s *SliceStore) Get(id int64) (string, error) {
	if id < 0 || id >= int64(len(s.texts)) {
		return "", errx.Alignment(id, len(s.texts))
	}
	return s.texts[id], nil
}

func (s *SliceStore) Close() error { return nil }

// Texts returns the chunks in id order.
func (s *SliceStore) Texts() []string { return s.texts }

// Load opens a chunk file, choosing the decoder from its extension.
func Load(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".bolt":
		return OpenBolt(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunks %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f, filepath.Base(path))
}

// Decode reads an in-memory chunk list. name is only used for its extension;
// unknown extensions are treated as pickle.
func Decode(r io.Reader, name string) (*SliceStore, error) {
	var (
		texts []string
		err   error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		texts, err = decodeJSON(r)
	case ".yaml", ".yml":
		texts, err = decodeYAML(r)
	default:
		texts, err = DecodePickle(r)
	}
	if err != nil {
		return nil, err
	}
	return NewSliceStore(texts), nil
}

// DecodePickle reads a pickled list or tuple of str.
func DecodePickle(r io.Reader) ([]string, error) {
	u := pickle.NewUnpickler(r)
	obj, err := u.Load()
	if err != nil {
		return nil, fmt.Errorf("unpickle chunks: %w", err)
	}

	var items []interface{}
	switch v := obj.(type) {
	case *types.List:
		items = *v
	case *types.Tuple:
		items = *v
	default:
		return nil, fmt.Errorf("unpickle chunks: expected list of str, got %T", obj)
	}

	texts := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("unpickle chunks: item %d is %T, not str", i, item)
		}
		texts[i] = s
	}
	return texts, nil
}

func decodeJSON(r io.Reader) ([]string, error) {
	var texts []string
	if err := json.NewDecoder(r).Decode(&texts); err != nil {
		return nil, fmt.Errorf("decode json chunks: %w", err)
	}
	return texts, nil
}

func decodeYAML(r io.Reader) ([]string, error) {
	var texts []string
	if err := yaml.NewDecoder(r).Decode(&texts); err != nil {
		return nil, fmt.Errorf("decode yaml chunks: %w", err)
	}
	return texts, nil
}
