package metrics

import (
	"time"
)

// Compile-time interface check.
var _ Metrics = (*NopMetrics)(nil)

// NopMetrics is a no-op implementation of the Metrics interface.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// Block metrics (no-op)

func (m *NopMetrics) SetBlockHeight(height uint64)         {}
func (m *NopMetrics) IncBlocksExecuted()                   {}
func (m *NopMetrics) ObserveBlockDuration(d time.Duration) {}
func (m *NopMetrics) SetBlockTxs(count int)                {}

// Transaction metrics (no-op)

func (m *NopMetrics) IncTxsChecked(result string)    {}
func (m *NopMetrics) IncTxsExecuted(kind string)     {}
func (m *NopMetrics) IncTxsFailed(kind, code string) {}

// Claim metrics (no-op)

func (m *NopMetrics) IncClaimsSubmitted()              {}
func (m *NopMetrics) IncClaimsApproved()               {}
func (m *NopMetrics) IncClaimsRejected()               {}
func (m *NopMetrics) ObserveClaimAmount(amount uint64) {}
func (m *NopMetrics) SetClaimsPending(count int)       {}
func (m *NopMetrics) SetTotalProcessed(count uint64)   {}
func (m *NopMetrics) SetTotalDisbursed(amount uint64)  {}

// Query metrics (no-op)

func (m *NopMetrics) IncQueries(path string) {}

// Commit metrics (no-op)

func (m *NopMetrics) ObserveCommitDuration(d time.Duration) {}
func (m *NopMetrics) IncSnapshotsSaved()                    {}
func (m *NopMetrics) IncSnapshotsPruned(count int)          {}

// Handler returns nil since there's nothing to serve.
func (m *NopMetrics) Handler() any {
	return nil
}
