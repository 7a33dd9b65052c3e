// Package metrics defines the node metrics surface and its
// Prometheus and no-op implementations.
package metrics

import (
	"time"
)

// Metrics defines the interface for collecting node metrics.
// All methods are designed to be thread-safe and non-blocking.
type Metrics interface {
	// Block metrics
	SetBlockHeight(height uint64)
	IncBlocksExecuted()
	ObserveBlockDuration(d time.Duration)
	SetBlockTxs(count int)

	// Transaction metrics
	IncTxsChecked(result string)
	IncTxsExecuted(kind string)
	IncTxsFailed(kind, code string)

	// Claim metrics
	IncClaimsSubmitted()
	IncClaimsApproved()
	IncClaimsRejected()
	ObserveClaimAmount(amount uint64)
	SetClaimsPending(count int)
	SetTotalProcessed(count uint64)
	SetTotalDisbursed(amount uint64)

	// Query metrics
	IncQueries(path string)

	// Commit metrics
	ObserveCommitDuration(d time.Duration)
	IncSnapshotsSaved()
	IncSnapshotsPruned(count int)

	// HTTP handler (for serving metrics)
	Handler() any
}

// Mempool gate result labels.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)
