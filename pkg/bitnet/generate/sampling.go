package generate

import (
	"math/rand"
	"sort"

	"github.com/chewxy/math32"
)

// SamplingConfig controls how logits are turned into a token id (§4.9).
// Temperature == 0 means greedy argmax and consumes no randomness;
// TopP == 1 and TopK == 0 mean unrestricted sampling over the full
// softmax distribution.
type SamplingConfig struct {
	Temperature float32
	TopK        int
	TopP        float32
	Seed        int64
}

// sampler holds the seeded RNG a SamplingConfig drives. Greedy decoding
// never touches it, so two runs with temperature == 0 are identical
// regardless of seed (S5).
type sampler struct {
	cfg SamplingConfig
	rng *rand.Rand
}

func newSampler(cfg SamplingConfig) *sampler {
	return &sampler{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// next implements one iteration of the sampling algorithm: temperature
// scaling, top-k filtering, nucleus filtering, then a single categorical
// draw. logits is consumed read-only; a scratch copy is made internally.
func (s *sampler) next(logits []float32) int {
	if s.cfg.Temperature <= 0 {
		return argmax(logits)
	}

	scaled := make([]float32, len(logits))
	inv := 1 / s.cfg.Temperature
	for i, v := range logits {
		scaled[i] = v * inv
	}

	cands := make([]candidate, len(scaled))
	for i, v := range scaled {
		cands[i] = candidate{id: i, logit: v}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].logit > cands[j].logit })

	if s.cfg.TopK > 0 && s.cfg.TopK < len(cands) {
		cands = cands[:s.cfg.TopK]
	}

	probs := softmax(cands)
	if s.cfg.TopP > 0 && s.cfg.TopP < 1 {
		cands, probs = nucleusFilter(cands, probs, s.cfg.TopP)
	}

	return sampleFrom(s.rng, cands, probs)
}

func argmax(logits []float32) int {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return best
}

type candidate = struct {
	id    int
	logit float32
}

func softmax(cands []candidate) []float32 {
	if len(cands) == 0 {
		return nil
	}
	max := cands[0].logit
	for _, c := range cands {
		if c.logit > max {
			max = c.logit
		}
	}
	probs := make([]float32, len(cands))
	var sum float32
	for i, c := range cands {
		e := math32.Exp(c.logit - max)
		probs[i] = e
		sum += e
	}
	if sum > 0 {
		for i := range probs {
			probs[i] /= sum
		}
	}
	return probs
}

// nucleusFilter keeps the smallest prefix of cands (already sorted
// descending by logit) whose cumulative probability exceeds p, per §4.9
// step d.
func nucleusFilter(cands []candidate, probs []float32, p float32) ([]candidate, []float32) {
	var cum float32
	cut := len(cands)
	for i, pr := range probs {
		cum += pr
		if cum > p {
			cut = i + 1
			break
		}
	}
	kept := cands[:cut]
	keptProbs := probs[:cut]
	var sum float32
	for _, pr := range keptProbs {
		sum += pr
	}
	if sum > 0 {
		renorm := make([]float32, len(keptProbs))
		for i, pr := range keptProbs {
			renorm[i] = pr / sum
		}
		keptProbs = renorm
	}
	return kept, keptProbs
}

func sampleFrom(rng *rand.Rand, cands []candidate, probs []float32) int {
	if len(cands) == 0 {
		return 0
	}
	r := rng.Float32()
	var cum float32
	for i, pr := range probs {
		cum += pr
		if r <= cum {
			return cands[i].id
		}
	}
	return cands[len(cands)-1].id
}
