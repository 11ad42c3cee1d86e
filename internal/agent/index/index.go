// Package index holds the nearest-neighbour index that retrieval searches.
// Only exact (flat) indexes are supported; their ids are positions in the
// chunk store unless an explicit id map is attached.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Metric mirrors the FAISS metric enumeration.
type Metric int32

const (
	MetricInnerProduct Metric = 0
	MetricL2           Metric = 1
)

func (m Metric) String() string {
	switch m {
	case MetricInnerProduct:
		return "inner_product"
	case MetricL2:
		return "l2"
	default:
		return fmt.Sprintf("metric(%d)", int32(m))
	}
}

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index is the search contract retrieval depends on.
type Index interface {
	Dimension() int
	Len() int
	Metric() Metric
	// Search returns at most k results ordered best first: ascending squared
	// distance for L2, descending inner product otherwise.
	Search(ctx context.Context, query []float32, k int) (distances []float32, ids []int64, err error)
}

// FlatIndex keeps all vectors in one row-major slice and scans them on every search.
type FlatIndex struct {
	dim     int
	metric  Metric
	vectors []float32
	ids     []int64 // nil means ids are row positions
}

// NewFlat creates an empty flat index.
func NewFlat(dim int, metric Metric) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	if metric != MetricL2 && metric != MetricInnerProduct {
		return nil, fmt.Errorf("unsupported metric %s", metric)
	}
	return &FlatIndex{dim: dim, metric: metric}, nil
}

func (f *FlatIndex) Dimension() int { return f.dim }
func (f *FlatIndex) Metric() Metric { return f.metric }
func (f *FlatIndex) Len() int       { return len(f.vectors) / f.dim }

// Add appends vectors; their ids are their row positions.
func (f *FlatIndex) Add(vectors ...[]float32) error {
	if f.ids != nil {
		return errors.New("index has an id map; use AddWithIDs")
	}
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("vector %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), f.dim)
		}
	}
	for _, v := range vectors {
		f.vectors = append(f.vectors, v...)
	}
	return nil
}

// AddWithIDs appends vectors with explicit external ids.
func (f *FlatIndex) AddWithIDs(ids []int64, vectors ...[]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if f.ids == nil && f.Len() > 0 {
		return errors.New("index already holds positional vectors")
	}
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("vector %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), f.dim)
		}
	}
	for _, v := range vectors {
		f.vectors = append(f.vectors, v...)
	}
	if f.ids == nil {
		f.ids = make([]int64, 0, len(ids))
	}
	f.ids = append(f.ids, ids...)
	return nil
}

// HasIDMap reports whether ids come from an explicit id map.
func (f *FlatIndex) HasIDMap() bool {
	return f.ids != nil
}

// Search scans every vector. Ties keep insertion order.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]float32, []int64, error) {
	if k < 1 {
		return nil, nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), f.dim)
	}

	n := f.Len()
	scores := make([]float32, n)
	for row := 0; row < n; row++ {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		vec := f.vectors[row*f.dim : (row+1)*f.dim]
		if f.metric == MetricL2 {
			scores[row] = squaredL2(query, vec)
		} else {
			scores[row] = dot(query, vec)
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if f.metric == MetricL2 {
		sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	} else {
		sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	}

	if k > n {
		k = n
	}
	distances := make([]float32, k)
	ids := make([]int64, k)
	for i := 0; i < k; i++ {
		row := order[i]
		distances[i] = scores[row]
		if f.ids != nil {
			ids[i] = f.ids[row]
		} else {
			ids[i] = int64(row)
		}
	}
	return distances, ids, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

var _ Index = (*FlatIndex)(nil)
