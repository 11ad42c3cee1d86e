package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// FAISS serialises little-endian; the fourcc is written as a uint32.
const (
	fourccFlatL2 = "IxF2"
	fourccFlatIP = "IxFI"
	fourccFlat   = "IxFl"
	fourccIDMap  = "IxMp"
	fourccIDMap2 = "IxM2"

	// faiss writes 1<<20 twice as placeholders in every index header.
	headerDummy int64 = 1 << 20

	maxDimension = 1 << 16
	maxElements  = 1 << 32

	// readBatch bounds each allocation while decoding arrays, so a header
	// claiming more data than the stream holds fails at EOF instead of
	// reserving the claimed size up front.
	readBatch = 1 << 16
)

// ErrUnsupportedIndex is returned for FAISS index types other than flat and id-mapped flat.
var ErrUnsupportedIndex = errors.New("unsupported faiss index type")

type indexHeader struct {
	dim       int32
	ntotal    int64
	isTrained bool
	metric    Metric
	metricArg float32
}

// ReadFile loads a FAISS index written by faiss.write_index.
func ReadFile(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	idx, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	return idx, nil
}

// Read decodes IndexFlatL2, IndexFlatIP and IndexIDMap(2) over either of them.
func Read(r io.Reader) (*FlatIndex, error) {
	fourcc, err := readFourcc(r)
	if err != nil {
		return nil, err
	}

	switch fourcc {
	case fourccFlatL2, fourccFlatIP, fourccFlat:
		return readFlat(r)
	case fourccIDMap, fourccIDMap2:
		return readIDMap(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIndex, fourcc)
	}
}

func readFlat(r io.Reader) (*FlatIndex, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	idx, err := NewFlat(int(h.dim), h.metric)
	if err != nil {
		return nil, err
	}

	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read vector count: %w", err)
	}
	if n != uint64(h.dim)*uint64(h.ntotal) {
		return nil, fmt.Errorf("corrupt flat index: %d floats for %d vectors of dimension %d", n, h.ntotal, h.dim)
	}
	vectors, err := readFloat32s(r, n)
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	idx.vectors = vectors
	return idx, nil
}

func readIDMap(r io.Reader) (*FlatIndex, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	sub, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("read wrapped index: %w", err)
	}
	if sub.HasIDMap() {
		return nil, fmt.Errorf("%w: nested id maps", ErrUnsupportedIndex)
	}

	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read id map size: %w", err)
	}
	if n != uint64(sub.Len()) || int64(n) != h.ntotal {
		return nil, fmt.Errorf("corrupt id map: %d ids for %d vectors", n, sub.Len())
	}
	ids, err := readInt64s(r, n)
	if err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	sub.ids = ids
	return sub, nil
}

func readFloat32s(r io.Reader, n uint64) ([]float32, error) {
	out := make([]float32, 0, min(n, readBatch))
	buf := make([]byte, 4*min(n, readBatch))
	for remaining := n; remaining > 0; {
		batch := min(remaining, readBatch)
		b := buf[:4*batch]
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		for i := uint64(0); i < batch; i++ {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
		}
		remaining -= batch
	}
	return out, nil
}

func readInt64s(r io.Reader, n uint64) ([]int64, error) {
	out := make([]int64, 0, min(n, readBatch))
	buf := make([]byte, 8*min(n, readBatch))
	for remaining := n; remaining > 0; {
		batch := min(remaining, readBatch)
		b := buf[:8*batch]
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		for i := uint64(0); i < batch; i++ {
			out = append(out, int64(binary.LittleEndian.Uint64(b[8*i:])))
		}
		remaining -= batch
	}
	return out, nil
}

func readFourcc(r io.Reader) (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", fmt.Errorf("read fourcc: %w", err)
	}
	return string(b[:]), nil
}

func readHeader(r io.Reader) (indexHeader, error) {
	var raw struct {
		Dim       int32
		NTotal    int64
		Dummy1    int64
		Dummy2    int64
		IsTrained uint8
		Metric    int32
	}
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return indexHeader{}, fmt.Errorf("read header: %w", err)
	}
	h := indexHeader{
		dim:       raw.Dim,
		ntotal:    raw.NTotal,
		isTrained: raw.IsTrained != 0,
		metric:    Metric(raw.Metric),
	}
	if raw.Metric > int32(MetricL2) {
		if err := binary.Read(r, binary.LittleEndian, &h.metricArg); err != nil {
			return indexHeader{}, fmt.Errorf("read metric arg: %w", err)
		}
	}
	if h.dim <= 0 || h.dim > maxDimension {
		return indexHeader{}, fmt.Errorf("invalid dimension %d", h.dim)
	}
	if h.ntotal < 0 || uint64(h.ntotal)*uint64(h.dim) > maxElements {
		return indexHeader{}, fmt.Errorf("invalid vector count %d", h.ntotal)
	}
	return h, nil
}

// WriteFile stores idx in the FAISS on-disk format.
func WriteFile(path string, idx *FlatIndex) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := Write(w, idx); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write encodes idx as IndexFlatL2/IndexFlatIP, wrapped in IndexIDMap when it has explicit ids.
func Write(w io.Writer, idx *FlatIndex) error {
	if idx.HasIDMap() {
		if err := writeHeader(w, fourccIDMap, idx); err != nil {
			return err
		}
	}

	fourcc := fourccFlatL2
	if idx.metric == MetricInnerProduct {
		fourcc = fourccFlatIP
	}
	if err := writeHeader(w, fourcc, idx); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(idx.vectors))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, idx.vectors); err != nil {
		return err
	}

	if idx.HasIDMap() {
		if err := binary.Write(w, binary.LittleEndian, uint64(len(idx.ids))); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, idx.ids)
	}
	return nil
}

func writeHeader(w io.Writer, fourcc string, idx *FlatIndex) error {
	if _, err := io.WriteString(w, fourcc); err != nil {
		return err
	}
	raw := struct {
		Dim       int32
		NTotal    int64
		Dummy1    int64
		Dummy2    int64
		IsTrained uint8
		Metric    int32
	}{
		Dim:       int32(idx.dim),
		NTotal:    int64(idx.Len()),
		Dummy1:    headerDummy,
		Dummy2:    headerDummy,
		IsTrained: 1,
		Metric:    int32(idx.metric),
	}
	return binary.Write(w, binary.LittleEndian, &raw)
}
