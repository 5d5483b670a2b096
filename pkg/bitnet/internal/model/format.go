package model

import (
	"strconv"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/internal/config"
)

// Magic is the 4-byte identifier every weight file must begin with.
const Magic = "BITT"

// TensorDtype names the on-disk encoding of one tensor directory entry.
type TensorDtype string

const (
	DtypeTernary2Bit TensorDtype = "ternary_2bit"
	DtypeF16         TensorDtype = "f16"
	DtypeF32         TensorDtype = "f32"
)

// TensorEntry locates one tensor's bytes within the payload region that
// follows the header, and names its on-disk shape and precision (§6).
type TensorEntry struct {
	Name   string      `json:"name"`
	Dtype  TensorDtype `json:"dtype"`
	Shape  []int       `json:"shape"`
	Offset int64       `json:"offset"`
	Bytes  int64       `json:"bytes"`
	// Scale is the per-tensor dequantization scalar (§4.1); only
	// meaningful when Dtype is DtypeTernary2Bit.
	Scale float32 `json:"scale,omitempty"`
}

// TokenizerSpec names which tokenizer implementation the loader should
// build: "bpe" loads vocab.json/merges.txt/special_tokens.json from Path
// (resolved relative to the weight file's directory); any other value (or
// an absent header field) falls back to the byte-level tokenizer with the
// listed Special token names.
type TokenizerSpec struct {
	Type    string   `json:"type"`
	Path    string   `json:"path,omitempty"`
	Special []string `json:"special,omitempty"`
}

// Header is the full JSON document a weight file carries between its
// 8-byte length prefix and its tensor payload (§3). Tensors is a JSON
// array of named directory entries, matching the literal §6 wire schema,
// rather than a map keyed by name; WeightFile indexes it by name once at
// load time for O(1) lookups (see tensorIndex in loader.go).
type Header struct {
	Config    config.ModelConfig `json:"config"`
	Tokenizer TokenizerSpec      `json:"tokenizer"`
	Tensors   []TensorEntry      `json:"tensors"`
}

// RequiredTensors lists the directory entries every weight file must
// contain for NumLayers-independent tensors; per-layer tensors are
// checked separately against Header.Config.NumLayers.
var RequiredTensors = []string{
	"embed.weight",
	"norm_f.weight",
	"lm_head.weight",
}

// LayerTensorNames returns the tensor directory names a given layer index
// must provide.
func LayerTensorNames(layer int) []string {
	prefix := "layers." + strconv.Itoa(layer) + "."
	return []string{
		prefix + "norm1.weight",
		prefix + "norm2.weight",
		prefix + "ttt.down.weight",
		prefix + "ttt.up.weight",
		prefix + "mlp.gate.weight",
		prefix + "mlp.up.weight",
		prefix + "mlp.down.weight",
	}
}
