package scoring

import (
	"cmp"
	"slices"

	"github.com/newthinker/predator/internal/core"
)

// Scored is the scorer output for one symbol plus why it may be empty.
type Scored struct {
	Result
	// Err is set when scoring failed. A symbol with too little history has
	// core.ErrInsufficientHistory here and a zero Result.
	Err error
}

// ScoreAll scores each symbol in symbols against series, sharing one
// snapshot built from every series. Results keep the order of symbols.
func (s *Scorer) ScoreAll(symbols []string, series map[string][]core.Bar, benchmark string) []Scored {
	snap := NewSnapshot(benchmark, series)
	out := make([]Scored, 0, len(symbols))
	for _, sym := range symbols {
		bars, ok := series[sym]
		if !ok || len(bars) < MinBars {
			out = append(out, Scored{
				Result: Result{Symbol: sym},
				Err:    core.Errorf(core.ErrInsufficientHistory, "%s has %d bars, need %d", sym, len(bars), MinBars),
			})
			continue
		}
		res, err := s.Score(sym, bars, snap)
		out = append(out, Scored{Result: res, Err: err})
	}
	return out
}

// Rank orders results by descending score, then symbol. Failed
// results sort last.
func Rank(evs []Scored) []Scored {
	ranked := slices.Clone(evs)
	slices.SortStableFunc(ranked, func(a, b Scored) int {
		if (a.Err == nil) != (b.Err == nil) {
			if a.Err == nil {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Symbol, b.Symbol)
	})
	return ranked
}
