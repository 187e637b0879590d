package model

// trieNode is owned exclusively by its parent; the trie owns the root.
type trieNode struct {
	isLeaf   bool
	id       int32
	children map[rune]*trieNode
}

// trie is a prefix tree over vocabulary token strings, used by the Unigram
// model to enumerate every token starting at a given offset.
type trie struct {
	root *trieNode
}

func newTrie() *trie {
	return &trie{root: &trieNode{}}
}

func (t *trie) insert(token string, id int32) {
	node := t.root
	for _, r := range token {
		if node.children == nil {
			node.children = make(map[rune]*trieNode)
		}
		child, ok := node.children[r]
		if !ok {
			child = &trieNode{}
			node.children[r] = child
		}
		node = child
	}
	node.isLeaf = true
	node.id = id
}

// commonPrefixSearch calls fn for every vocabulary token that is a prefix
// of runes[from:], with its rune length and id, shortest first.
func (t *trie) commonPrefixSearch(runes []rune, from int, fn func(length int, id int32)) {
	node := t.root
	for i := from; i < len(runes); i++ {
		node = node.children[runes[i]]
		if node == nil {
			return
		}
		if node.isLeaf {
			fn(i-from+1, node.id)
		}
	}
}
