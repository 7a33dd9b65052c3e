package subsidygrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// Service names for the four collaborator services.
const (
	registryService    = "github.com/blockberries/subsidy.v1.RegistryService"
	eligibilityService = "github.com/blockberries/subsidy.v1.EligibilityService"
	fundPoolService    = "github.com/blockberries/subsidy.v1.FundPoolService"
	auditService       = "github.com/blockberries/subsidy.v1.AuditService"
)

// RegistryServiceServer is the server-side interface for the farmer
// registry gRPC service.
type RegistryServiceServer interface {
	IsRegistered(context.Context, *IsRegisteredRequest) (*VerdictResponse, error)
}

// EligibilityServiceServer is the server-side interface for the
// eligibility verifier gRPC service.
type EligibilityServiceServer interface {
	VerifyEligibility(context.Context, *VerifyEligibilityRequest) (*VerdictResponse, error)
}

// FundPoolServiceServer is the server-side interface for the fund
// pool gRPC service.
type FundPoolServiceServer interface {
	Balance(context.Context, *BalanceRequest) (*BalanceResponse, error)
	Disburse(context.Context, *DisburseRequest) (*VerdictResponse, error)
}

// AuditServiceServer is the server-side interface for the audit
// logger gRPC service.
type AuditServiceServer interface {
	LogEvent(context.Context, *LogEventRequest) (*LogEventResponse, error)
}

// RegisterRegistryServiceServer registers the registry service on a gRPC server.
func RegisterRegistryServiceServer(s *grpc.Server, srv RegistryServiceServer) {
	s.RegisterService(&registryServiceDesc, srv)
}

// RegisterEligibilityServiceServer registers the eligibility service on a gRPC server.
func RegisterEligibilityServiceServer(s *grpc.Server, srv EligibilityServiceServer) {
	s.RegisterService(&eligibilityServiceDesc, srv)
}

// RegisterFundPoolServiceServer registers the fund pool service on a gRPC server.
func RegisterFundPoolServiceServer(s *grpc.Server, srv FundPoolServiceServer) {
	s.RegisterService(&fundPoolServiceDesc, srv)
}

// RegisterAuditServiceServer registers the audit service on a gRPC server.
func RegisterAuditServiceServer(s *grpc.Server, srv AuditServiceServer) {
	s.RegisterService(&auditServiceDesc, srv)
}

// --- Handler functions ---

func handlerIsRegistered(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(IsRegisteredRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(RegistryServiceServer).IsRegistered(ctx, req)
}

func handlerVerifyEligibility(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(VerifyEligibilityRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(EligibilityServiceServer).VerifyEligibility(ctx, req)
}

func handlerBalance(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(BalanceRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(FundPoolServiceServer).Balance(ctx, req)
}

func handlerDisburse(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(DisburseRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(FundPoolServiceServer).Disburse(ctx, req)
}

func handlerLogEvent(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(LogEventRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(AuditServiceServer).LogEvent(ctx, req)
}

// fullMethod builds the full gRPC method path.
func fullMethod(service, method string) string {
	return fmt.Sprintf("/%s/%s", service, method)
}

// Manual gRPC service descriptors for the collaborator services.
var (
	registryServiceDesc = grpc.ServiceDesc{
		ServiceName: registryService,
		HandlerType: (*RegistryServiceServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "IsRegistered", Handler: handlerIsRegistered},
		},
		Metadata: "github.com/blockberries/subsidy/v1/registry.cram",
	}

	eligibilityServiceDesc = grpc.ServiceDesc{
		ServiceName: eligibilityService,
		HandlerType: (*EligibilityServiceServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "VerifyEligibility", Handler: handlerVerifyEligibility},
		},
		Metadata: "github.com/blockberries/subsidy/v1/eligibility.cram",
	}

	fundPoolServiceDesc = grpc.ServiceDesc{
		ServiceName: fundPoolService,
		HandlerType: (*FundPoolServiceServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Balance", Handler: handlerBalance},
			{MethodName: "Disburse", Handler: handlerDisburse},
		},
		Metadata: "github.com/blockberries/subsidy/v1/fundpool.cram",
	}

	auditServiceDesc = grpc.ServiceDesc{
		ServiceName: auditService,
		HandlerType: (*AuditServiceServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "LogEvent", Handler: handlerLogEvent},
		},
		Metadata: "github.com/blockberries/subsidy/v1/audit.cram",
	}
)
