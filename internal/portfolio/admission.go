package portfolio

import "sort"

// Candidate is a deferred buy awaiting cash admission (§4.3.1 step 2-3):
// the engine reports price/required cash instead of committing.
type Candidate struct {
	Symbol       string
	RequiredCash float64
}

// AdmissionRule orders admission candidates deterministically (§12
// supplement 4 — the spec requires "a stable rule... documented").
type AdmissionRule interface {
	Order(candidates []Candidate) []Candidate
}

// AscendingSymbolRule is the default: candidates are admitted in ascending
// symbol order.
type AscendingSymbolRule struct{}

func (AscendingSymbolRule) Order(candidates []Candidate) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// AscendingLotCountRule admits the symbol with the fewest open lots first,
// to spread capital across the portfolio rather than concentrating it in
// whichever symbol sorts first alphabetically. Ties break by symbol.
type AscendingLotCountRule struct {
	LotCounts map[string]int
}

func (r AscendingLotCountRule) Order(candidates []Candidate) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.Slice(out, func(i, j int) bool {
		ci, cj := r.LotCounts[out[i].Symbol], r.LotCounts[out[j].Symbol]
		if ci != cj {
			return ci < cj
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
