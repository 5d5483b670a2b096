package model

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/internal/config"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

// testConfig returns a tiny architecture used across loader tests: 4
// hidden dims keeps every packed tensor's in-dimension a multiple of 4
// without padding tricks.
func testConfig() config.ModelConfig {
	return config.ModelConfig{
		Vocab: 8, Hidden: 4, Inner: 4, NumLayers: 1, MLPHidden: 4,
		InnerLR: 0.1, ContextLimit: 16, Eps: 1e-6,
	}
}

func f32Bytes(vals []float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

func packedEntry(t *testing.T, payload *bytes.Buffer, name string, out, in int) TensorEntry {
	t.Helper()
	source := make([]float32, out*in)
	for i := range source {
		source[i] = float32(i%5-2) * 0.3
	}
	p, err := tensor.Pack(source, out, in)
	require.NoError(t, err)

	offset := int64(payload.Len())
	payload.Write(p.Codes())
	return TensorEntry{Name: name, Dtype: DtypeTernary2Bit, Shape: []int{out, in}, Offset: offset, Bytes: int64(len(p.Codes())), Scale: p.Scale()}
}

func denseEntry(payload *bytes.Buffer, name string, shape ...int) TensorEntry {
	n := 1
	for _, d := range shape {
		n *= d
	}
	vals := make([]float32, n)
	for i := range vals {
		vals[i] = 1
	}
	offset := int64(payload.Len())
	b := f32Bytes(vals)
	payload.Write(b)
	return TensorEntry{Name: name, Dtype: DtypeF32, Shape: shape, Offset: offset, Bytes: int64(len(b))}
}

// writeWeightFile assembles a complete, valid BITT file on disk and
// returns its path.
func writeWeightFile(t *testing.T, cfg config.ModelConfig) string {
	t.Helper()

	var payload bytes.Buffer
	tensors := []TensorEntry{
		denseEntry(&payload, "embed.weight", cfg.Vocab, cfg.Hidden),
		denseEntry(&payload, "norm_f.weight", cfg.Hidden),
		packedEntry(t, &payload, "lm_head.weight", cfg.Vocab, cfg.Hidden),
	}
	for i := 0; i < cfg.NumLayers; i++ {
		names := LayerTensorNames(i)
		tensors = append(tensors,
			denseEntry(&payload, names[0], cfg.Hidden),                    // norm1
			denseEntry(&payload, names[1], cfg.Hidden),                    // norm2
			packedEntry(t, &payload, names[2], cfg.Inner, cfg.Hidden),     // ttt.down
			packedEntry(t, &payload, names[3], cfg.Hidden, cfg.Inner),     // ttt.up
			packedEntry(t, &payload, names[4], cfg.MLPHidden, cfg.Hidden), // mlp.gate
			packedEntry(t, &payload, names[5], cfg.MLPHidden, cfg.Hidden), // mlp.up
			packedEntry(t, &payload, names[6], cfg.Hidden, cfg.MLPHidden), // mlp.down
		)
	}

	hdr := Header{
		Config:    cfg,
		Tokenizer: TokenizerSpec{Type: "bytelevel", Special: []string{"bos", "eos", "pad"}},
		Tensors:   tensors,
	}
	hdrJSON, err := json.Marshal(hdr)
	require.NoError(t, err)

	var out bytes.Buffer
	out.WriteString(Magic)
	lenBuf := make([]byte, headerLenBytes)
	binary.LittleEndian.PutUint64(lenBuf, uint64(len(hdrJSON)))
	out.Write(lenBuf)
	out.Write(hdrJSON)
	out.Write(payload.Bytes())

	path := filepath.Join(t.TempDir(), "model.bitt")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

func TestOpenValidFile(t *testing.T) {
	path := writeWeightFile(t, testConfig())
	wf, err := Open(path)
	require.NoError(t, err)
	defer wf.Close()

	assert.Equal(t, 8, wf.Header.Config.Vocab)
	assert.Equal(t, 4, wf.Header.Config.Hidden)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.bitt"))
	assert.Error(t, err)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpenBadMagic(t *testing.T) {
	path := writeWeightFile(t, testConfig())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] = 'X'
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(path)
	assert.Error(t, err)
}

func TestOpenMissingTensor(t *testing.T) {
	cfg := testConfig()
	path := writeWeightFile(t, cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	headerLen := binary.LittleEndian.Uint64(data[len(Magic) : len(Magic)+headerLenBytes])
	headerStart := len(Magic) + headerLenBytes
	var hdr Header
	require.NoError(t, json.Unmarshal(data[headerStart:headerStart+int(headerLen)], &hdr))
	for i, entry := range hdr.Tensors {
		if entry.Name == "lm_head.weight" {
			hdr.Tensors = append(hdr.Tensors[:i], hdr.Tensors[i+1:]...)
			break
		}
	}

	newHdrJSON, err := json.Marshal(hdr)
	require.NoError(t, err)

	var out bytes.Buffer
	out.WriteString(Magic)
	lenBuf := make([]byte, headerLenBytes)
	binary.LittleEndian.PutUint64(lenBuf, uint64(len(newHdrJSON)))
	out.Write(lenBuf)
	out.Write(newHdrJSON)
	out.Write(data[headerStart+int(headerLen):])

	newPath := filepath.Join(t.TempDir(), "broken.bitt")
	require.NoError(t, os.WriteFile(newPath, out.Bytes(), 0o644))

	_, err = Open(newPath)
	assert.Error(t, err)
}

func TestPackedTensorRoundTrip(t *testing.T) {
	path := writeWeightFile(t, testConfig())
	wf, err := Open(path)
	require.NoError(t, err)
	defer wf.Close()

	pt, err := wf.PackedTensor("lm_head.weight")
	require.NoError(t, err)
	out, in := pt.Shape()
	assert.Equal(t, 8, out)
	assert.Equal(t, 4, in)
}

func TestDenseTensorRoundTrip(t *testing.T) {
	path := writeWeightFile(t, testConfig())
	wf, err := Open(path)
	require.NoError(t, err)
	defer wf.Close()

	dt, err := wf.DenseTensor("norm_f.weight")
	require.NoError(t, err)
	data, err := dt.Data()
	require.NoError(t, err)
	assert.Len(t, data, 4)
	for _, v := range data {
		assert.Equal(t, float32(1), v)
	}
}

func TestDenseTensorUnknownName(t *testing.T) {
	path := writeWeightFile(t, testConfig())
	wf, err := Open(path)
	require.NoError(t, err)
	defer wf.Close()

	_, err = wf.DenseTensor("no.such.tensor")
	assert.Error(t, err)
}
