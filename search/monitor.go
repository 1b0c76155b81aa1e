package search

// SkipReason explains why a document took no part in ranking.
type SkipReason int

const (
	SkipNoEmbedding SkipReason = iota
	SkipDimensionMismatch
)

func (r SkipReason) String() string {
	switch r {
	case SkipNoEmbedding:
		return "no embedding"
	case SkipDimensionMismatch:
		return "dimension mismatch"
	default:
		return "unknown"
	}
}

// SearchMonitor provides hooks to observe the search process.
// All callbacks run on the goroutine that called Search.
type SearchMonitor interface {
	Start(dimensions, corpusSize int)
	Skipped(id string, reason SkipReason)
	Scored(id string, score float64)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ int)                {}
func (n *noopMonitor) Skipped(_ string, _ SkipReason) {}
func (n *noopMonitor) Scored(_ string, _ float64)     {}
func (n *noopMonitor) Finish(_ *Result)               {}
