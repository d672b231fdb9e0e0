package search

import (
	"github.com/citable/quotefind/core"
	"github.com/citable/quotefind/ngram"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(results []*core.SearchResult)
	SemanticShortCircuit(result *core.SearchResult)
	AfterCandidateSelection(candidates []ngram.Candidate)
	StructuralHit(result *core.SearchResult)
	AfterFallbackScan(scanned int)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                 {}
func (n *noopMonitor) AfterSemanticSearch(_ []*core.SearchResult)     {}
func (n *noopMonitor) SemanticShortCircuit(_ *core.SearchResult)      {}
func (n *noopMonitor) AfterCandidateSelection(_ []ngram.Candidate)    {}
func (n *noopMonitor) StructuralHit(_ *core.SearchResult)             {}
func (n *noopMonitor) AfterFallbackScan(_ int)                        {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)                  {}
