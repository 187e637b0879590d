package model

// Vocabulary is the bidirectional token <-> id mapping. It is built once at
// model construction, merging the base vocab with any added tokens, and is
// immutable afterward, so concurrent readers need no locking.
type Vocabulary struct {
	values map[int32]string
	ids    map[string]int32
}

// NewVocabulary builds a vocabulary from the base token table plus added
// tokens. Added tokens win on conflicting ids.
func NewVocabulary(base map[string]int32, added map[string]int32) *Vocabulary {
	v := &Vocabulary{
		values: make(map[int32]string, len(base)+len(added)),
		ids:    make(map[string]int32, len(base)+len(added)),
	}

	for token, id := range base {
		v.values[id] = token
		v.ids[token] = id
	}
	for token, id := range added {
		v.values[id] = token
		v.ids[token] = id
	}

	return v
}

// Encode resolves a token string to its id, or -1 when absent.
func (v *Vocabulary) Encode(token string) int32 {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return -1
}

// Decode resolves an id back to its token string.
func (v *Vocabulary) Decode(id int32) (string, bool) {
	token, ok := v.values[id]
	return token, ok
}

// Contains reports whether token is in the vocabulary.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.ids[token]
	return ok
}

// Size returns the number of entries.
func (v *Vocabulary) Size() int { return len(v.ids) }
