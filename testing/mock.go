// Package subsidytest provides test utilities for the subsidy claim
// engine: configurable mock collaborators, an engine test harness,
// and a reusable behavior suite.
package subsidytest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/types"
)

// Compile-time check that the mocks satisfy the collaborator contracts.
var (
	_ subsidy.Registry            = (*MockRegistry)(nil)
	_ subsidy.EligibilityVerifier = (*MockEligibility)(nil)
	_ subsidy.FundPool            = (*MockPool)(nil)
	_ subsidy.AuditLogger         = (*MockAudit)(nil)
)

// MockRegistry is a configurable registry mock. Unconfigured, every
// farmer is registered.
type MockRegistry struct {
	IsRegisteredFn func(context.Context, types.FarmerID) (bool, error)

	Calls atomic.Int64
}

func (m *MockRegistry) IsRegistered(ctx context.Context, farmer types.FarmerID) (bool, error) {
	m.Calls.Add(1)
	if m.IsRegisteredFn != nil {
		return m.IsRegisteredFn(ctx, farmer)
	}
	return true, nil
}

// MockEligibility is a configurable eligibility verifier mock.
// Unconfigured, every (farmer, period) is eligible.
type MockEligibility struct {
	VerifyEligibilityFn func(context.Context, types.FarmerID, types.Period) (bool, error)

	Calls atomic.Int64
}

func (m *MockEligibility) VerifyEligibility(ctx context.Context, farmer types.FarmerID, period types.Period) (bool, error) {
	m.Calls.Add(1)
	if m.VerifyEligibilityFn != nil {
		return m.VerifyEligibilityFn(ctx, farmer, period)
	}
	return true, nil
}

// MockPool is a configurable fund pool mock. Unconfigured, it holds
// DefaultPoolBalance and approves every disbursement.
type MockPool struct {
	BalanceFn  func(context.Context) (types.Amount, error)
	DisburseFn func(context.Context, types.FarmerID, types.Amount) (bool, error)

	BalanceCalls  atomic.Int64
	DisburseCalls atomic.Int64
}

// DefaultPoolBalance is the balance an unconfigured MockPool reports.
const DefaultPoolBalance types.Amount = 1 << 40

func (m *MockPool) Balance(ctx context.Context) (types.Amount, error) {
	m.BalanceCalls.Add(1)
	if m.BalanceFn != nil {
		return m.BalanceFn(ctx)
	}
	return DefaultPoolBalance, nil
}

func (m *MockPool) Disburse(ctx context.Context, farmer types.FarmerID, amount types.Amount) (bool, error) {
	m.DisburseCalls.Add(1)
	if m.DisburseFn != nil {
		return m.DisburseFn(ctx, farmer, amount)
	}
	return true, nil
}

// AuditEntry is one recorded audit event.
type AuditEntry struct {
	Farmer   types.FarmerID
	Status   string
	Amount   types.Amount
	Metadata []byte
}

// MockAudit is a configurable audit logger mock. Unconfigured, it
// accepts and records every event; Events returns the log.
type MockAudit struct {
	LogEventFn func(context.Context, types.FarmerID, string, types.Amount, []byte) error

	Calls atomic.Int64

	mu      sync.Mutex
	entries []AuditEntry
}

func (m *MockAudit) LogEvent(ctx context.Context, farmer types.FarmerID, status string, amount types.Amount, metadata []byte) error {
	m.Calls.Add(1)
	if m.LogEventFn != nil {
		return m.LogEventFn(ctx, farmer, status, amount, metadata)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, AuditEntry{
		Farmer:   farmer,
		Status:   status,
		Amount:   amount,
		Metadata: append([]byte(nil), metadata...),
	})
	return nil
}

// Events returns a copy of the recorded audit log.
func (m *MockAudit) Events() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEntry(nil), m.entries...)
}

// Mocks bundles one mock of each collaborator.
type Mocks struct {
	Registry    *MockRegistry
	Eligibility *MockEligibility
	Pool        *MockPool
	Audit       *MockAudit
}

// NewMocks returns a permissive mock collaborator set: everyone is
// registered and eligible, the pool is deep, and audit logging
// succeeds.
func NewMocks() *Mocks {
	return &Mocks{
		Registry:    &MockRegistry{},
		Eligibility: &MockEligibility{},
		Pool:        &MockPool{},
		Audit:       &MockAudit{},
	}
}

// Collaborators returns the mock set as an engine collaborator bundle.
func (m *Mocks) Collaborators() subsidy.Collaborators {
	return subsidy.Collaborators{
		Registry:    m.Registry,
		Eligibility: m.Eligibility,
		Pool:        m.Pool,
		Audit:       m.Audit,
	}
}
