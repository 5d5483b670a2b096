package math

// TTTState holds one transformer layer's fast-weight matrix W_state, the
// [inner, inner] state that the test-time-training layer updates once per
// token (§4.5). It belongs to a single sequence; generating two sequences
// concurrently means allocating two TTTStates per layer, never sharing one.
type TTTState struct {
	inner int
	w     []float32 // row-major [inner, inner]
}

// NewTTTState allocates a zeroed W_state, the required initial condition
// before the first token of a sequence.
func NewTTTState(inner int) *TTTState {
	return &TTTState{inner: inner, w: make([]float32, inner*inner)}
}

// Reset zeros W_state in place, used when a sequence handle is reused for a
// fresh generation (§6 reset).
func (s *TTTState) Reset() {
	for i := range s.w {
		s.w[i] = 0
	}
}

// Clone returns an independent copy of the state; the copy shares no
// storage with s.
func (s *TTTState) Clone() *TTTState {
	w := make([]float32, len(s.w))
	copy(w, s.w)
	return &TTTState{inner: s.inner, w: w}
}
