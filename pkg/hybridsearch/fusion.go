package hybridsearch

import (
	"sort"

	"github.com/google/uuid"

	"github.com/algojuke/discovery/pkg/isrc"
	"github.com/algojuke/discovery/pkg/vectorstore"
)

// LookupKind tells which index a ranked list came from.
type LookupKind int

const (
	Dense LookupKind = iota
	Sparse
)

func (k LookupKind) String() string {
	if k == Sparse {
		return "sparse"
	}
	return "dense"
}

// RankedList is one lookup's output, best first. Rank is 1 + slice position.
type RankedList struct {
	SubQuery string
	Kind     LookupKind
	Hits     []vectorstore.Hit
}

// candidate accumulates contributions for one indexed document.
type candidate struct {
	id         uuid.UUID
	isrc       string
	score      float64
	payload    vectorstore.TrackPayload
	denseRank  int
	sparseRank int
	queries    []string
}

// fuseRRF sums 1/(rank+c) over every list a document appears in. Documents
// are returned score-descending; equal scores keep first-seen order, where
// lists are visited in slice order. The raw sum is divided by the best
// possible score for totalLists lists so the result lies in [0,1].
func fuseRRF(lists []RankedList, c, totalLists int) []candidate {
	byID := make(map[uuid.UUID]int)
	var order []*candidate

	for _, list := range lists {
		for pos, h := range list.Hits {
			rank := pos + 1
			key := h.ID
			if key == uuid.Nil {
				key = isrc.DocumentID(h.ISRC)
			}
			idx, ok := byID[key]
			if !ok {
				idx = len(order)
				byID[key] = idx
				order = append(order, &candidate{id: key, isrc: isrc.Normalize(h.ISRC), payload: h.Payload})
			}
			cand := order[idx]
			cand.score += 1.0 / float64(rank+c)
			switch list.Kind {
			case Dense:
				if cand.denseRank == 0 || rank < cand.denseRank {
					cand.denseRank = rank
				}
			case Sparse:
				if cand.sparseRank == 0 || rank < cand.sparseRank {
					cand.sparseRank = rank
				}
			}
			cand.addQuery(list.SubQuery)
		}
	}

	maxScore := float64(totalLists) / float64(1+c)
	out := make([]candidate, len(order))
	for i, cand := range order {
		out[i] = *cand
		if maxScore > 0 {
			out[i].score = cand.score / maxScore
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// dedupeByISRC keeps the first (highest-scoring) candidate per normalised ISRC.
// Input must already be score-sorted.
func dedupeByISRC(sorted []candidate) []candidate {
	seen := make(map[string]struct{}, len(sorted))
	out := make([]candidate, 0, len(sorted))
	for _, cand := range sorted {
		key := cand.isrc
		if key == "" {
			key = cand.id.String()
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cand)
	}
	return out
}

// window applies offset/limit last.
func window(items []candidate, offset, limit int) []candidate {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (c *candidate) addQuery(q string) {
	for _, existing := range c.queries {
		if existing == q {
			return
		}
	}
	c.queries = append(c.queries, q)
}
