// Package model assembles the per-layer sublayers built by internal/math
// into a full forward pass (§4.7): embedding lookup, the stack of
// transformer blocks, a final RMSNorm, and the LM head projection back to
// vocabulary logits.
package model

import (
	"os"
	"path/filepath"
	"sync"

	bitneterrors "github.com/hyperifyio/ternaryttt/pkg/bitnet/errors"
	bitnetmath "github.com/hyperifyio/ternaryttt/pkg/bitnet/internal/math"
	internalmodel "github.com/hyperifyio/ternaryttt/pkg/bitnet/internal/model"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tokenizer"
)

// Config mirrors the architectural fields a loaded weight file carries;
// it is exposed here so callers can inspect a model's shape without
// reaching into internal/config.
type Config struct {
	Vocab        int
	Hidden       int
	Inner        int
	NumLayers    int
	MLPHidden    int
	InnerLR      float32
	ContextLimit int
	Eps          float32
}

// Model is a fully assembled, ready-to-run inference core. It is
// immutable after Load: every sublayer's weights are shared read-only
// across every sequence built from it.
type Model struct {
	Config    Config
	embedding *Embedding
	layers    []LayerWeights
	blocks    []*bitnetmath.Block
	finalNorm *bitnetmath.RMSNorm
	lmHead    *tensor.PackedTernaryTensor
	tokenizer tokenizer.Tokenizer
	weights   *internalmodel.WeightFile

	closeMu sync.Mutex
	closed  bool
}

// LoadOptions configures device placement and other load-time choices
// (§6's `load(path, options)`).
type LoadOptions struct {
	// AcceleratorCapacityBytes is the usable accelerator memory budget fed
	// to the auto-placement heuristic (§4.8). Zero (the default) places
	// every layer on Host, matching a caller with no accelerator at all.
	AcceleratorCapacityBytes int64
}

// Load opens a weight file and assembles a ready Model. The mapping is
// held open for the model's entire lifetime; call Close to release it.
func Load(path string, opts LoadOptions) (*Model, error) {
	wf, err := internalmodel.Open(path)
	if err != nil {
		return nil, err
	}

	cfg := wf.Header.Config
	m := &Model{
		Config: Config{
			Vocab: cfg.Vocab, Hidden: cfg.Hidden, Inner: cfg.Inner,
			NumLayers: cfg.NumLayers, MLPHidden: cfg.MLPHidden,
			InnerLR: cfg.InnerLR, ContextLimit: cfg.ContextLimit, Eps: cfg.Eps,
		},
		weights: wf,
	}

	if err := m.loadEmbedding(wf); err != nil {
		wf.Close()
		return nil, err
	}
	if err := m.loadLayers(wf, opts); err != nil {
		wf.Close()
		return nil, err
	}
	if err := m.loadFinalNorm(wf); err != nil {
		wf.Close()
		return nil, err
	}
	lmHead, err := wf.PackedTensor("lm_head.weight")
	if err != nil {
		wf.Close()
		return nil, err
	}
	m.lmHead = lmHead

	m.tokenizer = m.buildTokenizer(wf, filepath.Dir(path))

	return m, nil
}

func (m *Model) loadEmbedding(wf *internalmodel.WeightFile) error {
	entry, _ := wf.TensorEntry("embed.weight")
	if entry.Dtype == internalmodel.DtypeTernary2Bit {
		pt, err := wf.PackedTensor("embed.weight")
		if err != nil {
			return err
		}
		m.embedding = NewPackedEmbedding(pt)
		return nil
	}
	dt, err := wf.DenseTensor("embed.weight")
	if err != nil {
		return err
	}
	m.embedding = NewDenseEmbedding(dt)
	return nil
}

// rawLayer holds one layer's just-loaded tensors before device placement
// (§3's DeviceMap) is applied to its packed weights.
type rawLayer struct {
	norm1, norm2                   *bitnetmath.RMSNorm
	down, up, gate, mlpUp, mlpDown *tensor.PackedTernaryTensor
}

func (m *Model) loadLayers(wf *internalmodel.WeightFile, opts LoadOptions) error {
	raw := make([]rawLayer, m.Config.NumLayers)
	for i := 0; i < m.Config.NumLayers; i++ {
		names := internalmodel.LayerTensorNames(i)

		norm1Gain, err := wf.DenseTensor(names[0])
		if err != nil {
			return err
		}
		norm1, err := bitnetmath.NewRMSNorm(m.Config.Hidden, m.Config.Eps)
		if err != nil {
			return err
		}
		if flat, err := norm1Gain.Reshape(m.Config.Hidden); err == nil {
			if err := norm1.SetGain(flat); err != nil {
				return err
			}
		}

		norm2Gain, err := wf.DenseTensor(names[1])
		if err != nil {
			return err
		}
		norm2, err := bitnetmath.NewRMSNorm(m.Config.Hidden, m.Config.Eps)
		if err != nil {
			return err
		}
		if flat, err := norm2Gain.Reshape(m.Config.Hidden); err == nil {
			if err := norm2.SetGain(flat); err != nil {
				return err
			}
		}

		down, err := wf.PackedTensor(names[2])
		if err != nil {
			return err
		}
		up, err := wf.PackedTensor(names[3])
		if err != nil {
			return err
		}
		gate, err := wf.PackedTensor(names[4])
		if err != nil {
			return err
		}
		mlpUp, err := wf.PackedTensor(names[5])
		if err != nil {
			return err
		}
		mlpDown, err := wf.PackedTensor(names[6])
		if err != nil {
			return err
		}

		raw[i] = rawLayer{norm1: norm1, norm2: norm2, down: down, up: up, gate: gate, mlpUp: mlpUp, mlpDown: mlpDown}
	}

	layerSizes := make([]int64, len(raw))
	for i, l := range raw {
		layerSizes[i] = l.down.SizeBytes() + l.up.SizeBytes() + l.gate.SizeBytes() + l.mlpUp.SizeBytes() + l.mlpDown.SizeBytes()
	}
	placement := internalmodel.AutoPlaceLayers(layerSizes, opts.AcceleratorCapacityBytes)

	m.layers = make([]LayerWeights, m.Config.NumLayers)
	m.blocks = make([]*bitnetmath.Block, m.Config.NumLayers)
	for i, l := range raw {
		device := placement[i]
		down := l.down.WithDevice(device)
		up := l.up.WithDevice(device)
		gate := l.gate.WithDevice(device)
		mlpUp := l.mlpUp.WithDevice(device)
		mlpDown := l.mlpDown.WithDevice(device)

		ttt, err := bitnetmath.NewTTTLayer(m.Config.Hidden, m.Config.Inner, down, up, m.Config.InnerLR)
		if err != nil {
			return err
		}
		mlp, err := bitnetmath.NewSwiGLU(m.Config.Hidden, m.Config.MLPHidden, gate, mlpUp, mlpDown)
		if err != nil {
			return err
		}

		m.layers[i] = LayerWeights{Norm1: l.norm1, TTT: ttt, Norm2: l.norm2, MLP: mlp}
		block, err := bitnetmath.NewBlock(l.norm1, ttt, l.norm2, mlp)
		if err != nil {
			return err
		}
		m.blocks[i] = block
	}
	return nil
}

func (m *Model) loadFinalNorm(wf *internalmodel.WeightFile) error {
	gainTensor, err := wf.DenseTensor("norm_f.weight")
	if err != nil {
		return err
	}
	norm, err := bitnetmath.NewRMSNorm(m.Config.Hidden, m.Config.Eps)
	if err != nil {
		return err
	}
	flat, err := gainTensor.Reshape(m.Config.Hidden)
	if err != nil {
		return err
	}
	if err := norm.SetGain(flat); err != nil {
		return err
	}
	m.finalNorm = norm
	return nil
}

func (m *Model) buildTokenizer(wf *internalmodel.WeightFile, weightDir string) tokenizer.Tokenizer {
	spec := wf.Header.Tokenizer
	if spec.Type == "bpe" && spec.Path != "" {
		if bpe, err := internalmodel.NewBPETokenizer(os.DirFS(weightDir), spec.Path); err == nil {
			return bpe
		}
	}
	return tokenizer.NewByteLevelTokenizer(spec.Special...)
}

// NewBlockStates allocates one zeroed TTTState per layer, the required
// initial condition for a fresh sequence (§6).
func (m *Model) NewBlockStates() []*bitnetmath.TTTState {
	states := make([]*bitnetmath.TTTState, len(m.layers))
	for i := range states {
		states[i] = bitnetmath.NewTTTState(m.Config.Inner)
	}
	return states
}

// ForwardOne runs a single token through the full stack, returning logits
// of shape [1, vocab]. states must have one entry per layer and is
// mutated in place by each layer's TTT step.
func (m *Model) ForwardOne(tokenID int, states []*bitnetmath.TTTState) (*tensor.DenseTensor, error) {
	m.closeMu.Lock()
	closed := m.closed
	m.closeMu.Unlock()
	if closed {
		return nil, bitneterrors.ErrHandleFreed
	}
	if len(states) != len(m.layers) {
		return nil, bitneterrors.ErrInvalidShape
	}

	x, err := m.embedding.Lookup(tokenID)
	if err != nil {
		return nil, err
	}

	for i, block := range m.blocks {
		var err error
		x, err = block.Forward(x, states[i])
		if err != nil {
			return nil, err
		}
	}

	normed, err := m.finalNorm.Forward(x)
	if err != nil {
		return nil, err
	}
	tensor.Shared.Release(x)

	logits, err := tensor.Dispatch(normed, m.lmHead)
	if err != nil {
		return nil, err
	}
	tensor.Shared.Release(normed)
	return logits, nil
}

// Tokenizer returns the model's tokenizer.
func (m *Model) Tokenizer() tokenizer.Tokenizer {
	return m.tokenizer
}

// Close releases the memory-mapped weight file. Calling it twice is a
// no-op, matching the idempotent Close contract used across this tree.
func (m *Model) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.weights.Close()
}
