package model

// noPrev marks a lattice node with no backpointer.
const noPrev = -1

// latticeNode is one candidate token span. Nodes live in the lattice arena
// and refer to each other by index, so there is no reference aliasing to
// worry about during relaxation.
type latticeNode struct {
	tokenID        int32
	pos            int // rune offset where the span starts
	length         int // span length in runes
	score          float64
	prev           int // arena index of the best predecessor
	backtraceScore float64
}

// lattice is the Viterbi search structure for one tokenize call. Sentinel
// begin-of-sentence and end-of-sentence nodes sit at offsets 0 and len.
type lattice struct {
	runes      []rune
	nodes      []latticeNode
	beginNodes [][]int // node indexes whose span starts at offset
	endNodes   [][]int // node indexes whose span ends at offset
	bos, eos   int
}

func newLattice(runes []rune) *lattice {
	n := len(runes)
	l := &lattice{
		runes:      runes,
		beginNodes: make([][]int, n+1),
		endNodes:   make([][]int, n+1),
	}

	l.bos = l.append(latticeNode{pos: 0, prev: noPrev})
	l.endNodes[0] = append(l.endNodes[0], l.bos)

	l.eos = l.append(latticeNode{pos: n, prev: noPrev})
	l.beginNodes[n] = append(l.beginNodes[n], l.eos)

	return l
}

func (l *lattice) append(node latticeNode) int {
	l.nodes = append(l.nodes, node)
	return len(l.nodes) - 1
}

func (l *lattice) insert(pos, length int, score float64, tokenID int32) {
	idx := l.append(latticeNode{
		tokenID: tokenID,
		pos:     pos,
		length:  length,
		score:   score,
		prev:    noPrev,
	})
	l.beginNodes[pos] = append(l.beginNodes[pos], idx)
	l.endNodes[pos+length] = append(l.endNodes[pos+length], idx)
}

// viterbi relaxes forward then backtracks from the end-of-sentence node.
// It returns the best path's arena indexes, sentinels excluded, or nil when
// the lattice is not traversable.
func (l *lattice) viterbi() []int {
	n := len(l.runes)

	for pos := 0; pos <= n; pos++ {
		if len(l.beginNodes[pos]) == 0 {
			return nil
		}

		for _, ri := range l.beginNodes[pos] {
			rnode := &l.nodes[ri]
			rnode.prev = noPrev

			best := noPrev
			var bestScore float64
			for _, li := range l.endNodes[pos] {
				lnode := l.nodes[li]
				if li != l.bos && lnode.prev == noPrev {
					// unreachable predecessor
					continue
				}

				score := lnode.backtraceScore + rnode.score
				if best == noPrev || score > bestScore {
					best = li
					bestScore = score
				}
			}

			if best == noPrev {
				return nil
			}
			rnode.prev = best
			rnode.backtraceScore = bestScore
		}
	}

	var path []int
	for idx := l.nodes[l.eos].prev; idx != l.bos && idx != noPrev; idx = l.nodes[idx].prev {
		path = append(path, idx)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// surface returns the text span a node covers.
func (l *lattice) surface(idx int) string {
	node := l.nodes[idx]
	return string(l.runes[node.pos : node.pos+node.length])
}

func (l *lattice) tokenID(idx int) int32 {
	return l.nodes[idx].tokenID
}
