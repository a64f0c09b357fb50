package analyzer

import "context"

// Request identifies the contract to analyze. Source may be empty when only
// the on-chain address is known.
type Request struct {
	Subject string // contract address
	Source  string // contract source or bytecode, if available
}

// Result is what an analyzer produces for one contract. Cost is zero for
// the pattern analyzer.
type Result struct {
	RiskScore  int     // 1-10
	Findings   string  // report text
	TokensUsed int     // LLM tokens, zero for pattern analysis
	CostSOL    float64 // actual analysis cost in SOL
}

// Analyzer is the dispatch boundary between the pipeline and an analysis
// engine. Implementations must be safe for concurrent use.
type Analyzer interface {
	// Analyze runs one analysis synchronously. Expected upstream failures
	// (timeouts, API errors) are returned as errors; the pipeline maps
	// them to its analysis-failed outcome without consuming quota.
	Analyze(ctx context.Context, req Request) (*Result, error)
	// Name identifies the engine in logs and metrics.
	Name() string
}
