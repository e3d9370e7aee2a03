// Package tokenizer maps text to vocabulary token ids and back. It is a
// greedy longest-match tokenizer over the checkpoint vocabulary, using
// the leading-byte buckets built at load time.
package tokenizer

import (
	"strings"

	"github.com/samcharles93/petal/internal/ckpt"
)

// unknownID is emitted for bytes no vocabulary token covers.
const unknownID = 0

// Tokenizer encodes and decodes against one immutable vocabulary. Safe
// for concurrent use.
type Tokenizer struct {
	vocab *ckpt.Vocab
}

func New(v *ckpt.Vocab) *Tokenizer {
	return &Tokenizer{vocab: v}
}

// Encode splits text into token ids by repeatedly taking the longest
// vocabulary token that prefixes the remaining input. Space-prefixed
// tokens are matched through their own buckets keyed by the byte after
// the space. A byte matched by no token encodes as the unknown id.
func (t *Tokenizer) Encode(text string) []int {
	ids := make([]int, 0, len(text)/3+1)
	for i := 0; i < len(text); {
		best := ""
		if text[i] == ' ' && i+1 < len(text) {
			best = t.longest(t.vocab.SpaceWords[text[i+1]], text[i:])
		}
		if best == "" {
			best = t.longest(t.vocab.Words[text[i]], text[i:])
		}
		if best == "" {
			ids = append(ids, unknownID)
			i++
			continue
		}
		ids = append(ids, t.vocab.IDs[best])
		i += len(best)
	}
	return ids
}

// Decode joins the token strings for ids. Out-of-range ids contribute
// nothing.
func (t *Tokenizer) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(t.vocab.Token(id))
	}
	return sb.String()
}

// longest returns the longest candidate that prefixes rest, or "".
func (t *Tokenizer) longest(candidates []string, rest string) string {
	best := ""
	for _, c := range candidates {
		if len(c) > len(best) && strings.HasPrefix(rest, c) {
			best = c
		}
	}
	return best
}
