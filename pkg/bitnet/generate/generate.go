package generate

import bitneterrors "github.com/hyperifyio/ternaryttt/pkg/bitnet/errors"

// StopSet is a set of token ids that terminate generation when sampled.
type StopSet map[int]struct{}

// NewStopSet builds a StopSet from a list of token ids.
func NewStopSet(ids ...int) StopSet {
	s := make(StopSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s StopSet) contains(id int) bool {
	_, ok := s[id]
	return ok
}

// Callback is invoked once per emitted token, strictly after the
// forward_one that produced it and strictly before the forward_one that
// consumes it as input for the next token (§4.9 ordering guarantee).
// Returning false stops generation.
type Callback func(tokenID int) (keepGoing bool)

// Request bundles one generate() call's inputs (§4.9).
type Request struct {
	Prompt       []int
	MaxNewTokens int
	Sampling     SamplingConfig
	Stop         StopSet
	OnToken      Callback

	// BOSToken, when non-nil, is the token id used to seed generation from
	// an empty prompt. Left nil, an empty Prompt with a positive
	// MaxNewTokens is a configuration error (§8).
	BOSToken *int
}

// Result reports how a generation run concluded.
type Result struct {
	Tokens    []int // only the newly generated tokens, not the prompt
	Cancelled bool  // true if OnToken returned false
	StoppedAt int   // token id that triggered the stop set, if any; -1 otherwise
}

// Run feeds the prompt, then samples up to MaxNewTokens tokens one at a
// time, honoring the stop set and the callback's cooperative cancellation
// (§4.9, §5). Cancellation is checked once per emitted token, never
// mid-layer: forward_one always completes before OnToken is consulted.
func Run(seq *Sequence, req Request) (Result, error) {
	for _, id := range req.Prompt {
		if err := seq.Feed(id); err != nil {
			return Result{}, err
		}
	}

	result := Result{StoppedAt: -1}
	if req.MaxNewTokens <= 0 {
		return result, nil
	}

	samp := newSampler(req.Sampling)
	last, err := lastToken(req.Prompt, req.BOSToken)
	if err != nil {
		return Result{}, err
	}

	for i := 0; i < req.MaxNewTokens; i++ {
		logits, err := seq.ForwardOne(last)
		if err != nil {
			return result, err
		}

		id := samp.next(logits)

		if req.Stop != nil && req.Stop.contains(id) {
			result.StoppedAt = id
			break
		}

		result.Tokens = append(result.Tokens, id)
		last = id

		if req.OnToken != nil && !req.OnToken(id) {
			result.Cancelled = true
			break
		}
	}

	return result, nil
}

func lastToken(prompt []int, bos *int) (int, error) {
	if len(prompt) > 0 {
		return prompt[len(prompt)-1], nil
	}
	if bos != nil {
		return *bos, nil
	}
	return 0, bitneterrors.ErrEmptyPrompt
}
