// Package config holds the model's architectural configuration (the
// fields carried in a weight file's JSON header) and the process-level
// runtime configuration (GOMAXPROCS and friends).
package config

import (
	"runtime"

	"github.com/chewxy/math32"

	bitneterrors "github.com/hyperifyio/ternaryttt/pkg/bitnet/errors"
)

// Default RMSNorm epsilon when a weight file header omits one.
const DefaultEps = 1e-5

// ModelConfig is the architectural description carried in a weight file's
// header (§3): vocabulary and hidden sizes, the TTT inner dimension
// (defaulting to hidden when the header omits it, per the Open Questions
// resolution in DESIGN.md), the feed-forward width, the inner learning
// rate, the context window, and the normalization epsilon.
type ModelConfig struct {
	Vocab        int     `json:"vocab" yaml:"vocab"`
	Hidden       int     `json:"hidden" yaml:"hidden"`
	Inner        int     `json:"inner" yaml:"inner"`
	NumLayers    int     `json:"num_layers" yaml:"num_layers"`
	MLPHidden    int     `json:"mlp_hidden" yaml:"mlp_hidden"`
	InnerLR      float32 `json:"inner_lr" yaml:"inner_lr"`
	ContextLimit int     `json:"context_limit" yaml:"context_limit"`
	Eps          float32 `json:"eps" yaml:"eps"`
}

// ApplyDefaults fills in zero-valued optional fields: Inner defaults to
// Hidden (a TTT layer with no dimensionality reduction), and Eps defaults
// to DefaultEps.
func (c *ModelConfig) ApplyDefaults() {
	if c.Inner == 0 {
		c.Inner = c.Hidden
	}
	if c.Eps == 0 {
		c.Eps = DefaultEps
	}
}

// Validate checks the invariants a loaded or overridden config must
// satisfy before a model can be built from it.
func (c *ModelConfig) Validate() error {
	if c.Vocab <= 0 || c.Hidden <= 0 || c.Inner <= 0 || c.NumLayers <= 0 ||
		c.MLPHidden <= 0 || c.ContextLimit <= 0 {
		return bitneterrors.ErrBadHeader
	}
	if c.Hidden%4 != 0 || c.Inner%4 != 0 || c.MLPHidden%4 != 0 {
		return bitneterrors.ErrBadInnerDim
	}
	if math32.IsNaN(c.InnerLR) || math32.IsInf(c.InnerLR, 0) {
		return bitneterrors.ErrNonFiniteRate
	}
	return nil
}

// RuntimeConfig holds process-level runtime configuration, independent of
// any particular model's architecture.
type RuntimeConfig struct {
	MaxProcs int
}

// NewRuntimeConfig pins GOMAXPROCS to the number of available CPUs and
// returns the resulting configuration.
func NewRuntimeConfig() *RuntimeConfig {
	numCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(numCPU)
	return &RuntimeConfig{MaxProcs: numCPU}
}

// Validate checks the runtime configuration.
func (c *RuntimeConfig) Validate() error {
	if c.MaxProcs <= 0 {
		return bitneterrors.ErrUnknownOption
	}
	return nil
}
