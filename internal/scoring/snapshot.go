package scoring

import (
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/indicator"
)

const (
	relativeStrengthBars = 5
	peerTrendPeriod      = 50
)

// Snapshot is the read-only view of peer and benchmark data for one
// evaluation cycle. It is built once and safe for concurrent readers.
type Snapshot struct {
	benchmark string
	peers     map[string]peerStats
}

type peerStats struct {
	ret        float64
	hasRet     bool
	aboveSMA50 bool
}

// NewSnapshot derives the peer statistics from already resampled series.
func NewSnapshot(benchmark string, series map[string][]core.Bar) *Snapshot {
	s := &Snapshot{benchmark: benchmark, peers: make(map[string]peerStats, len(series))}
	for sym, bars := range series {
		closes := core.Closes(bars)
		var ps peerStats
		ps.ret, ps.hasRet = indicator.PercentChange(closes, relativeStrengthBars)
		if sma, ok := indicator.LastSMA(closes, peerTrendPeriod); ok {
			ps.aboveSMA50 = closes[len(closes)-1] > sma
		}
		s.peers[sym] = ps
	}
	return s
}

// Benchmark is the symbol relative strength is measured against.
func (s *Snapshot) Benchmark() string {
	if s == nil {
		return ""
	}
	return s.benchmark
}

// BenchmarkReturn is the benchmark's five-bar return.
func (s *Snapshot) BenchmarkReturn() (float64, bool) {
	if s == nil {
		return 0, false
	}
	ps, ok := s.peers[s.benchmark]
	if !ok || !ps.hasRet {
		return 0, false
	}
	return ps.ret, true
}

// AboveSMA50 reports whether symbol's last close sits above its 50-bar SMA.
// Unknown symbols and short histories report false.
func (s *Snapshot) AboveSMA50(symbol string) bool {
	if s == nil {
		return false
	}
	return s.peers[symbol].aboveSMA50
}

// Has reports whether the snapshot carries data for symbol.
func (s *Snapshot) Has(symbol string) bool {
	if s == nil {
		return false
	}
	_, ok := s.peers[symbol]
	return ok
}
