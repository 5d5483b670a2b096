package tensor

import (
	"github.com/chewxy/math32"
)

// Ternary 2-bit codes, little-endian within a byte: bit positions 0-1 hold
// the first weight of a group of four, 6-7 the last. 11 is reserved and
// read back as zero so legacy files with that code don't trap.
const (
	code0        byte = 0b00 // weight 0
	codePlusOne  byte = 0b01 // weight +1
	codeMinusOne byte = 0b10 // weight -1
	codeReserved byte = 0b11 // reserved, decodes to 0
)

// PackedTernaryTensor stores a [out, in] ternary weight matrix as 2-bit
// codes plus a single per-tensor scale. It is immutable after Pack/load
// and is shared by reference across every sequence using the model, so it
// carries no mutex: nothing ever writes to it again once built.
type PackedTernaryTensor struct {
	codes  []byte
	out    int
	in     int
	scale  float32
	device Device
}

// Shape returns (out, in).
func (p *PackedTernaryTensor) Shape() (out, in int) {
	return p.out, p.in
}

// Device reports where this tensor's codes are considered resident (§3's
// DeviceMap invariant). Tensors built directly by Pack/NewPackedTernaryTensor
// default to Host until placed by WithDevice.
func (p *PackedTernaryTensor) Device() Device {
	return p.device
}

// WithDevice returns a shallow copy of p tagged as resident on device,
// sharing the same backing codes (placement never copies tensor bytes; an
// actual cross-device move is the caller's job via Migrate). Used by the
// weight loader to apply AutoPlaceLayers' decision per layer.
func (p *PackedTernaryTensor) WithDevice(device Device) *PackedTernaryTensor {
	cp := *p
	cp.device = device
	return &cp
}

// SizeBytes reports the number of packed bytes this tensor occupies,
// the unit AutoPlaceLayers' budget is expressed in.
func (p *PackedTernaryTensor) SizeBytes() int64 {
	return int64(len(p.codes))
}

// Scale returns the per-tensor scalar that, multiplied against a decoded
// ternary code, reconstructs the effective weight.
func (p *PackedTernaryTensor) Scale() float32 {
	return p.scale
}

// ByteStride is the number of packed bytes per row: in/4.
func (p *PackedTernaryTensor) ByteStride() int {
	return p.in / 4
}

// Codes exposes the raw packed bytes for kernels that stream them directly
// rather than calling DequantElement index-by-index.
func (p *PackedTernaryTensor) Codes() []byte {
	return p.codes
}

func decodeCode(c byte) int8 {
	switch c {
	case codePlusOne:
		return 1
	case codeMinusOne:
		return -1
	default: // code0, codeReserved
		return 0
	}
}

func encodeWeight(w int8) byte {
	switch {
	case w > 0:
		return codePlusOne
	case w < 0:
		return codeMinusOne
	default:
		return code0
	}
}

// DequantElement returns the ternary value {-1, 0, +1} at (row, col) via
// pure index arithmetic, for kernels that prefer integer accumulation over
// floating multiplies.
func (p *PackedTernaryTensor) DequantElement(row, col int) (int8, error) {
	if row < 0 || row >= p.out || col < 0 || col >= p.in {
		return 0, ErrIndexOutOfRange
	}
	byteIdx := row*p.ByteStride() + col/4
	bitOffset := uint((col % 4) * 2)
	c := (p.codes[byteIdx] >> bitOffset) & 0x03
	return decodeCode(c), nil
}

// NewPackedTernaryTensor builds a PackedTernaryTensor directly from
// already-quantized codes and a known scale; used by the weight loader,
// which reads the packed bytes straight from the mapped file.
func NewPackedTernaryTensor(out, in int, codes []byte, scale float32) (*PackedTernaryTensor, error) {
	if in%4 != 0 {
		return nil, ErrNotMultipleOfFour
	}
	expected := out * (in / 4)
	if len(codes) != expected {
		return nil, ErrInvalidShape
	}
	return &PackedTernaryTensor{codes: codes, out: out, in: in, scale: scale}, nil
}

// Pack quantizes a dense [out, in] row-major tensor to {-1, 0, +1} codes.
// scale is the mean absolute value of the source; an all-zero source
// (scale == 0) packs to all-zero codes with scale fixed at 1, per §4.1.
func Pack(source []float32, out, in int) (*PackedTernaryTensor, error) {
	if in%4 != 0 {
		return nil, ErrNotMultipleOfFour
	}
	if len(source) != out*in {
		return nil, ErrInvalidShape
	}

	var sumAbs float32
	for _, v := range source {
		sumAbs += math32.Abs(v)
	}
	scale := sumAbs / float32(len(source))

	codes := make([]byte, out*(in/4))
	if scale == 0 {
		return &PackedTernaryTensor{codes: codes, out: out, in: in, scale: 1}, nil
	}

	for i, v := range source {
		normalized := v / scale
		if normalized > 1 {
			normalized = 1
		} else if normalized < -1 {
			normalized = -1
		}
		var w int8
		switch {
		case normalized >= 0.5:
			w = 1
		case normalized <= -0.5:
			w = -1
		default:
			w = 0
		}
		byteIdx := i / 4
		bitOffset := uint((i % 4) * 2)
		codes[byteIdx] |= encodeWeight(w) << bitOffset
	}

	return &PackedTernaryTensor{codes: codes, out: out, in: in, scale: scale}, nil
}

// Dequantize materializes the full dense [out, in] reconstruction
// scale*Q used by property tests and by the dequant-cache kernel variant.
func (p *PackedTernaryTensor) Dequantize() ([]float32, error) {
	result := make([]float32, p.out*p.in)
	for row := 0; row < p.out; row++ {
		for col := 0; col < p.in; col++ {
			q, err := p.DequantElement(row, col)
			if err != nil {
				return nil, err
			}
			result[row*p.in+col] = p.scale * float32(q)
		}
	}
	return result, nil
}
