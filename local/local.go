// Package local provides in-process collaborator implementations
// backed by memory.
//
// For nodes compiled with their farmer registry and fund pool in the
// same binary, and for development networks, these satisfy the
// collaborator contracts without any transport. All types are safe
// for concurrent use.
package local

import (
	"context"
	"sync"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/logging"
	"github.com/blockberries/subsidy/types"
)

// Compile-time interface checks.
var (
	_ subsidy.Registry            = (*Registry)(nil)
	_ subsidy.EligibilityVerifier = (*Eligibility)(nil)
	_ subsidy.FundPool            = (*Pool)(nil)
	_ subsidy.AuditLogger         = (*AuditLog)(nil)
)

// Registry is a mutable in-memory set of registered farmers.
type Registry struct {
	mu      sync.RWMutex
	farmers map[types.FarmerID]struct{}
}

// NewRegistry creates a registry with the given farmers pre-registered.
func NewRegistry(farmers ...types.FarmerID) *Registry {
	r := &Registry{farmers: make(map[types.FarmerID]struct{}, len(farmers))}
	for _, f := range farmers {
		r.farmers[f] = struct{}{}
	}
	return r
}

// Register adds a farmer to the registry.
func (r *Registry) Register(farmer types.FarmerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.farmers[farmer] = struct{}{}
}

// Deregister removes a farmer from the registry.
func (r *Registry) Deregister(farmer types.FarmerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.farmers, farmer)
}

func (r *Registry) IsRegistered(_ context.Context, farmer types.FarmerID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.farmers[farmer]
	return ok, nil
}

type ruleKey struct {
	farmer types.FarmerID
	period types.Period
}

// Eligibility answers eligibility checks from a rule table with a
// default verdict for pairs no rule covers.
type Eligibility struct {
	mu            sync.RWMutex
	defaultAnswer bool
	rules         map[ruleKey]bool
}

// NewEligibility creates a verifier answering defaultAnswer for every
// farmer and period until rules say otherwise.
func NewEligibility(defaultAnswer bool) *Eligibility {
	return &Eligibility{
		defaultAnswer: defaultAnswer,
		rules:         make(map[ruleKey]bool),
	}
}

// SetRule pins the verdict for one farmer and period.
func (e *Eligibility) SetRule(farmer types.FarmerID, period types.Period, eligible bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[ruleKey{farmer, period}] = eligible
}

// ClearRule removes a pinned verdict, restoring the default.
func (e *Eligibility) ClearRule(farmer types.FarmerID, period types.Period) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, ruleKey{farmer, period})
}

func (e *Eligibility) VerifyEligibility(_ context.Context, farmer types.FarmerID, period types.Period) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if verdict, ok := e.rules[ruleKey{farmer, period}]; ok {
		return verdict, nil
	}
	return e.defaultAnswer, nil
}

// Disbursement records one completed transfer out of a Pool.
type Disbursement struct {
	Farmer types.FarmerID
	Amount types.Amount
}

// Pool is an in-memory fund pool. Disbursements that exceed the
// remaining balance are declined, not errored.
type Pool struct {
	mu      sync.RWMutex
	balance types.Amount
	history []Disbursement
}

// NewPool creates a pool holding the given balance.
func NewPool(balance types.Amount) *Pool {
	return &Pool{balance: balance}
}

// Fund adds to the pool balance.
func (p *Pool) Fund(amount types.Amount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance += amount
}

func (p *Pool) Balance(_ context.Context) (types.Amount, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balance, nil
}

func (p *Pool) Disburse(_ context.Context, farmer types.FarmerID, amount types.Amount) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if amount > p.balance {
		return false, nil
	}
	p.balance -= amount
	p.history = append(p.history, Disbursement{Farmer: farmer, Amount: amount})
	return true, nil
}

// Disbursements returns a copy of the completed transfers in order.
func (p *Pool) Disbursements() []Disbursement {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Disbursement, len(p.history))
	copy(out, p.history)
	return out
}

// AuditEntry is one recorded lifecycle event.
type AuditEntry struct {
	Farmer   types.FarmerID
	Status   string
	Amount   types.Amount
	Metadata []byte
}

// AuditLog is an append-only in-memory audit trail.
type AuditLog struct {
	mu      sync.RWMutex
	log     *logging.Logger
	entries []AuditEntry
}

// NewAuditLog creates a silent audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{log: logging.NewNopLogger()}
}

// NewAuditLogWithLogger creates an audit log that also emits each
// event through the given logger.
func NewAuditLogWithLogger(log *logging.Logger) *AuditLog {
	return &AuditLog{log: log.WithComponent("audit")}
}

func (a *AuditLog) LogEvent(_ context.Context, farmer types.FarmerID, status string, amount types.Amount, metadata []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, AuditEntry{
		Farmer:   farmer,
		Status:   status,
		Amount:   amount,
		Metadata: append([]byte(nil), metadata...),
	})
	a.log.Info("audit event",
		logging.Farmer(farmer),
		logging.Status(status),
		logging.AmountAttr(amount),
	)
	return nil
}

// Entries returns a copy of the recorded events in order.
func (a *AuditLog) Entries() []AuditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}
