package ckpt

// eosID is the designated end-of-sequence token id.
const eosID = 2

// Vocab is the immutable id<->token mapping read from the checkpoint,
// with tokens bucketed by leading byte for the tokenizer's prefix search.
// Tokens beginning with a space are bucketed separately by their second
// byte.
type Vocab struct {
	Tokens []string
	IDs    map[string]int

	Words      [256][]string
	SpaceWords [256][]string

	EOS int
}

func newVocab(tokens []string) *Vocab {
	v := &Vocab{
		Tokens: tokens,
		IDs:    make(map[string]int, len(tokens)),
		EOS:    eosID,
	}
	for id, tok := range tokens {
		v.IDs[tok] = id
		if len(tok) == 0 {
			continue
		}
		if tok[0] == ' ' {
			if len(tok) > 1 {
				v.SpaceWords[tok[1]] = append(v.SpaceWords[tok[1]], tok)
			}
		} else {
			v.Words[tok[0]] = append(v.Words[tok[0]], tok)
		}
	}
	return v
}

// Token returns the string for id, or the empty string if out of range.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.Tokens) {
		return ""
	}
	return v.Tokens[id]
}

// Size returns the vocabulary size.
func (v *Vocab) Size() int { return len(v.Tokens) }
