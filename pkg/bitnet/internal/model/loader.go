package model

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"github.com/zerfoo/float16"

	bitneterrors "github.com/hyperifyio/ternaryttt/pkg/bitnet/errors"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/internal/config"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

// headerLenBytes is the width of the little-endian length prefix between
// the 4-byte magic and the JSON header (§3).
const headerLenBytes = 8

// WeightFile owns a memory-mapped model file for its entire lifetime: the
// mapping is only released by Close, and a shared flock is held the whole
// time so a concurrent writer can't truncate or replace the file out from
// under a running process.
type WeightFile struct {
	path    string
	file    *os.File
	lock    *flock.Flock
	mapping mmap.MMap
	Header  Header
	payload []byte // mapping[headerEnd:]

	// tensorIndex is built once in parseHeader from Header.Tensors (a JSON
	// array per §6) so every lookup by name is O(1) instead of a scan.
	tensorIndex map[string]TensorEntry
}

// Open memory-maps path, takes a shared advisory lock, and parses the
// header. The caller must call Close when the model is no longer needed.
func Open(path string) (*WeightFile, error) {
	if path == "" {
		return nil, bitneterrors.ErrBadPath
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryRLock()
	if err != nil {
		return nil, bitneterrors.ErrFileLocked
	}
	if !locked {
		return nil, bitneterrors.ErrFileLocked
	}

	f, err := os.Open(path)
	if err != nil {
		lock.Unlock()
		return nil, bitneterrors.ErrBadPath
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		lock.Unlock()
		return nil, bitneterrors.ErrMapFailed
	}

	wf := &WeightFile{path: path, file: f, lock: lock, mapping: m}
	if err := wf.parseHeader(); err != nil {
		wf.Close()
		return nil, err
	}
	return wf, nil
}

func (w *WeightFile) parseHeader() error {
	if len(w.mapping) < len(Magic)+headerLenBytes {
		return bitneterrors.ErrBadHeader
	}
	if string(w.mapping[:len(Magic)]) != Magic {
		return bitneterrors.ErrBadMagic
	}

	lenOffset := len(Magic)
	headerLen := binary.LittleEndian.Uint64(w.mapping[lenOffset : lenOffset+headerLenBytes])
	headerStart := lenOffset + headerLenBytes
	headerEnd := headerStart + int(headerLen)
	if headerEnd > len(w.mapping) || headerEnd < headerStart {
		return bitneterrors.ErrOffsetOutOfRange
	}

	var hdr Header
	if err := json.Unmarshal(w.mapping[headerStart:headerEnd], &hdr); err != nil {
		return bitneterrors.ErrBadHeader
	}
	hdr.Config.ApplyDefaults()
	if err := hdr.Config.Validate(); err != nil {
		return err
	}

	index := make(map[string]TensorEntry, len(hdr.Tensors))
	for _, entry := range hdr.Tensors {
		index[entry.Name] = entry
	}

	for _, name := range RequiredTensors {
		if _, ok := index[name]; !ok {
			return bitneterrors.ErrMissingTensor
		}
	}
	for i := 0; i < hdr.Config.NumLayers; i++ {
		for _, name := range LayerTensorNames(i) {
			if _, ok := index[name]; !ok {
				return bitneterrors.ErrMissingTensor
			}
		}
	}

	w.Header = hdr
	w.tensorIndex = index
	w.payload = w.mapping[headerEnd:]
	return nil
}

// TensorEntry looks up a tensor's directory entry by name.
func (w *WeightFile) TensorEntry(name string) (TensorEntry, bool) {
	entry, ok := w.tensorIndex[name]
	return entry, ok
}

// PackedTensor returns the named tensor as a ternary-packed view directly
// over the mapped bytes; no copy is made.
func (w *WeightFile) PackedTensor(name string) (*tensor.PackedTernaryTensor, error) {
	entry, ok := w.tensorIndex[name]
	if !ok {
		return nil, bitneterrors.ErrMissingTensor
	}
	if entry.Dtype != DtypeTernary2Bit {
		return nil, bitneterrors.ErrUnknownDtype
	}
	if len(entry.Shape) != 2 {
		return nil, bitneterrors.ErrShapeMismatch
	}
	out, in := entry.Shape[0], entry.Shape[1]
	if entry.Offset < 0 || entry.Offset+entry.Bytes > int64(len(w.payload)) {
		return nil, bitneterrors.ErrOffsetOutOfRange
	}
	codes := w.payload[entry.Offset : entry.Offset+entry.Bytes]
	return tensor.NewPackedTernaryTensor(out, in, codes, entry.Scale)
}

// DenseTensor returns the named tensor as a dense float32 view, decoding
// f16 storage through zerfoo/float16 and copying f32 storage directly.
func (w *WeightFile) DenseTensor(name string) (*tensor.DenseTensor, error) {
	entry, ok := w.tensorIndex[name]
	if !ok {
		return nil, bitneterrors.ErrMissingTensor
	}
	if entry.Offset < 0 || entry.Offset+entry.Bytes > int64(len(w.payload)) {
		return nil, bitneterrors.ErrOffsetOutOfRange
	}
	raw := w.payload[entry.Offset : entry.Offset+entry.Bytes]

	var data []float32
	switch entry.Dtype {
	case DtypeF32:
		data = make([]float32, len(raw)/4)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
		}
	case DtypeF16:
		data = make([]float32, len(raw)/2)
		for i := range data {
			bits := binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
			data[i] = float16.Float16(bits).Float32()
		}
	default:
		return nil, bitneterrors.ErrUnknownDtype
	}

	shape := make([]int, len(entry.Shape))
	copy(shape, entry.Shape)
	return tensor.NewDenseTensorFromSlice(tensor.F32, tensor.Host, data, shape...)
}

// Config returns the loaded architectural configuration, defaults applied.
func (w *WeightFile) Config() *config.ModelConfig {
	return &w.Header.Config
}

// Close releases the mapping, the file handle, and the shared lock.
func (w *WeightFile) Close() error {
	var firstErr error
	if w.mapping != nil {
		if err := w.mapping.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.mapping = nil
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.file = nil
	}
	if w.lock != nil {
		if err := w.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.lock = nil
	}
	return firstErr
}
