package subsidygrpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/blockberries/subsidy"
)

// Compile-time interface checks.
var (
	_ RegistryServiceServer    = (*Server)(nil)
	_ EligibilityServiceServer = (*Server)(nil)
	_ FundPoolServiceServer    = (*Server)(nil)
	_ AuditServiceServer       = (*Server)(nil)
)

// Server exposes a collaborator bundle as the four gRPC services.
// No type conversion is needed: domain types are serialized directly
// via cramberry.
type Server struct {
	collab subsidy.Collaborators
}

// NewServer creates a gRPC server wrapping the given collaborators.
func NewServer(collab subsidy.Collaborators) *Server {
	return &Server{collab: collab}
}

// Register adds all four collaborator services to a gRPC server.
func (s *Server) Register(gs *grpc.Server) {
	RegisterRegistryServiceServer(gs, s)
	RegisterEligibilityServiceServer(gs, s)
	RegisterFundPoolServiceServer(gs, s)
	RegisterAuditServiceServer(gs, s)
}

// Serve starts the gRPC server on the given listener.
func (s *Server) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// splitError separates a coded collaborator failure, which rides
// in-band, from an uncoded one, which surfaces as a transport error.
func splitError(err error) (code uint32, info string, transport error) {
	if serr, ok := subsidy.AsError(err); ok {
		return uint32(serr.Code), serr.Info, nil
	}
	return 0, "", err
}

// --- Registry RPCs ---

func (s *Server) IsRegistered(ctx context.Context, req *IsRegisteredRequest) (*VerdictResponse, error) {
	ok, err := s.collab.Registry.IsRegistered(ctx, req.Farmer)
	if err != nil {
		code, info, terr := splitError(err)
		if terr != nil {
			return nil, terr
		}
		return &VerdictResponse{Code: code, Info: info}, nil
	}
	return &VerdictResponse{Ok: ok}, nil
}

// --- Eligibility RPCs ---

func (s *Server) VerifyEligibility(ctx context.Context, req *VerifyEligibilityRequest) (*VerdictResponse, error) {
	ok, err := s.collab.Eligibility.VerifyEligibility(ctx, req.Farmer, req.Period)
	if err != nil {
		code, info, terr := splitError(err)
		if terr != nil {
			return nil, terr
		}
		return &VerdictResponse{Code: code, Info: info}, nil
	}
	return &VerdictResponse{Ok: ok}, nil
}

// --- FundPool RPCs ---

func (s *Server) Balance(ctx context.Context, _ *BalanceRequest) (*BalanceResponse, error) {
	balance, err := s.collab.Pool.Balance(ctx)
	if err != nil {
		code, info, terr := splitError(err)
		if terr != nil {
			return nil, terr
		}
		return &BalanceResponse{Code: code, Info: info}, nil
	}
	return &BalanceResponse{Balance: balance}, nil
}

func (s *Server) Disburse(ctx context.Context, req *DisburseRequest) (*VerdictResponse, error) {
	ok, err := s.collab.Pool.Disburse(ctx, req.Farmer, req.Amount)
	if err != nil {
		code, info, terr := splitError(err)
		if terr != nil {
			return nil, terr
		}
		return &VerdictResponse{Code: code, Info: info}, nil
	}
	return &VerdictResponse{Ok: ok}, nil
}

// --- Audit RPCs ---

func (s *Server) LogEvent(ctx context.Context, req *LogEventRequest) (*LogEventResponse, error) {
	err := s.collab.Audit.LogEvent(ctx, req.Farmer, req.Status, req.Amount, req.Metadata)
	if err != nil {
		code, info, terr := splitError(err)
		if terr != nil {
			return nil, terr
		}
		return &LogEventResponse{Code: code, Info: info}, nil
	}
	return &LogEventResponse{}, nil
}
