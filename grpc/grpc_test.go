package subsidygrpc_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/engine"
	subsidygrpc "github.com/blockberries/subsidy/grpc"
	"github.com/blockberries/subsidy/local"
	subsidytest "github.com/blockberries/subsidy/testing"
	"github.com/blockberries/subsidy/types"
)

// startServer starts a gRPC server on a random port and returns
// the listener address and a cleanup function.
func startServer(t *testing.T, s *subsidygrpc.Server) (string, func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	gs := grpc.NewServer()
	s.Register(gs)

	go func() {
		if err := gs.Serve(lis); err != nil {
			// Ignore errors from graceful stop.
		}
	}()

	return lis.Addr().String(), func() {
		gs.GracefulStop()
	}
}

func dial(t *testing.T, addr string) *subsidygrpc.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := subsidygrpc.Dial(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return client
}

func TestGRPC_Collaborators_RoundTrip(t *testing.T) {
	reg := local.NewRegistry("alice")
	elig := local.NewEligibility(true)
	elig.SetRule("alice", 202502, false)
	pool := local.NewPool(1000)
	audit := local.NewAuditLog()

	addr, cleanup := startServer(t, subsidygrpc.NewServer(subsidy.Collaborators{
		Registry:    reg,
		Eligibility: elig,
		Pool:        pool,
		Audit:       audit,
	}))
	defer cleanup()

	client := dial(t, addr)
	defer client.Close()

	ctx := context.Background()

	// Registry.
	ok, err := client.IsRegistered(ctx, "alice")
	if err != nil {
		t.Fatalf("IsRegistered: %v", err)
	}
	if !ok {
		t.Error("alice should be registered")
	}
	ok, err = client.IsRegistered(ctx, "bob")
	if err != nil {
		t.Fatalf("IsRegistered: %v", err)
	}
	if ok {
		t.Error("bob should not be registered")
	}

	// Eligibility.
	ok, err = client.VerifyEligibility(ctx, "alice", 202501)
	if err != nil {
		t.Fatalf("VerifyEligibility: %v", err)
	}
	if !ok {
		t.Error("alice should be eligible for 202501")
	}
	ok, err = client.VerifyEligibility(ctx, "alice", 202502)
	if err != nil {
		t.Fatalf("VerifyEligibility: %v", err)
	}
	if ok {
		t.Error("rule should deny alice for 202502")
	}

	// Pool.
	balance, err := client.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 1000 {
		t.Errorf("expected balance 1000, got %d", balance)
	}
	ok, err = client.Disburse(ctx, "alice", 700)
	if err != nil {
		t.Fatalf("Disburse: %v", err)
	}
	if !ok {
		t.Error("disburse should succeed")
	}
	ok, err = client.Disburse(ctx, "alice", 700)
	if err != nil {
		t.Fatalf("Disburse: %v", err)
	}
	if ok {
		t.Error("over-balance disburse should be declined")
	}

	// Audit.
	if err := client.LogEvent(ctx, "alice", types.EventSubmitted, 700, []byte("docs")); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	entries := audit.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Status != types.EventSubmitted || string(entries[0].Metadata) != "docs" {
		t.Errorf("unexpected audit entry: %+v", entries[0])
	}
}

func TestGRPC_CodedFailurePassthrough(t *testing.T) {
	mocks := subsidytest.NewMocks()
	addr, cleanup := startServer(t, subsidygrpc.NewServer(mocks.Collaborators()))
	defer cleanup()

	client := dial(t, addr)
	defer client.Close()

	ctx := context.Background()

	// A coded failure crosses the wire with code and info intact.
	mocks.Audit.LogEventFn = func(context.Context, types.FarmerID, string, types.Amount, []byte) error {
		return subsidy.NewError(types.CodeVerificationFailed, "trail sealed")
	}
	err := client.LogEvent(ctx, "alice", types.EventSubmitted, 100, nil)
	serr, ok := subsidy.AsError(err)
	if !ok {
		t.Fatalf("expected coded error, got %v", err)
	}
	if serr.Code != types.CodeVerificationFailed || serr.Info != "trail sealed" {
		t.Errorf("code or info lost in transit: %+v", serr)
	}

	// An uncoded failure surfaces as a transport error without a code.
	mocks.Audit.LogEventFn = func(context.Context, types.FarmerID, string, types.Amount, []byte) error {
		return errors.New("disk full")
	}
	err = client.LogEvent(ctx, "alice", types.EventSubmitted, 100, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := subsidy.CodeOf(err); ok {
		t.Errorf("uncoded failure must not gain a code in transit: %v", err)
	}

	// Coded registry failures behave the same.
	mocks.Registry.IsRegisteredFn = func(context.Context, types.FarmerID) (bool, error) {
		return false, subsidy.NewError(types.CodeInvalidFarmer, "revoked")
	}
	_, err = client.IsRegistered(ctx, "alice")
	if code, ok := subsidy.CodeOf(err); !ok || code != types.CodeInvalidFarmer {
		t.Errorf("expected InvalidFarmer across the wire, got %v", err)
	}
}

// TestGRPC_EngineOverWire wires a claim engine to remote collaborators
// and drives the lifecycle end to end.
func TestGRPC_EngineOverWire(t *testing.T) {
	mocks := subsidytest.NewMocks()
	addr, cleanup := startServer(t, subsidygrpc.NewServer(mocks.Collaborators()))
	defer cleanup()

	ctx := context.Background()
	collab, closeAll, err := subsidygrpc.DialCollaborators(ctx, subsidygrpc.Addrs{
		Registry:    addr,
		Eligibility: addr,
		Pool:        addr,
		Audit:       addr,
	}, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("DialCollaborators: %v", err)
	}
	defer closeAll()

	eng, err := engine.New(types.GenesisState{Admin: subsidytest.DefaultAdmin}, collab)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	h := subsidytest.Wrap(t, eng, mocks)
	h.Advance(10)

	// Full lifecycle across the wire.
	id := h.MustApprove("farmer-1", 500, subsidytest.DefaultPeriod)
	if c := h.Claim(id); c.Status != types.StatusApproved {
		t.Fatalf("expected approved claim, got %s", c.Status)
	}
	events := mocks.Audit.Events()
	if len(events) != 2 || events[0].Status != types.EventSubmitted || events[1].Status != types.EventApproved {
		t.Fatalf("unexpected audit trail: %+v", events)
	}

	// A pool running dry is reported with the funds code.
	mocks.Pool.BalanceFn = func(context.Context) (types.Amount, error) {
		return 10, nil
	}
	id2 := h.MustSubmit("farmer-2", 500, subsidytest.DefaultPeriod)
	h.MustVerify(id2)
	h.RequireCode(h.Engine.Process(ctx, subsidytest.DefaultAdmin, id2, ""), types.CodeInsufficientFunds)

	// A coded collaborator failure keeps its code through transport
	// and engine alike.
	mocks.Pool.BalanceFn = func(context.Context) (types.Amount, error) {
		return 0, subsidy.NewError(types.CodeContractPaused, "pool frozen")
	}
	h.RequireCode(h.Engine.Process(ctx, subsidytest.DefaultAdmin, id2, ""), types.CodeContractPaused)
}
