package subsidygrpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/subsidy"
	"github.com/blockberries/subsidy/types"
)

// Compile-time interface checks.
var (
	_ subsidy.Registry            = (*Client)(nil)
	_ subsidy.EligibilityVerifier = (*Client)(nil)
	_ subsidy.FundPool            = (*Client)(nil)
	_ subsidy.AuditLogger         = (*Client)(nil)
)

// Client implements all four collaborator contracts over gRPC using
// cramberry serialization. A single client can serve every role when
// one endpoint hosts all services, or one client is dialed per
// service address.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a remote collaborator endpoint.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("collaborator client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// Collaborators returns a bundle with this client in every role.
func (c *Client) Collaborators() subsidy.Collaborators {
	return subsidy.Collaborators{
		Registry:    c,
		Eligibility: c,
		Pool:        c,
		Audit:       c,
	}
}

// codedError rebuilds the in-band failure carried by a response.
func codedError(code uint32, info string) error {
	return subsidy.NewError(types.Code(code), info)
}

// --- Registry ---

func (c *Client) IsRegistered(ctx context.Context, farmer types.FarmerID) (bool, error) {
	req := &IsRegisteredRequest{Farmer: farmer}
	resp := new(VerdictResponse)
	if err := c.cc.Invoke(ctx, fullMethod(registryService, "IsRegistered"), req, resp); err != nil {
		return false, err
	}
	if resp.Code != 0 {
		return false, codedError(resp.Code, resp.Info)
	}
	return resp.Ok, nil
}

// --- EligibilityVerifier ---

func (c *Client) VerifyEligibility(ctx context.Context, farmer types.FarmerID, period types.Period) (bool, error) {
	req := &VerifyEligibilityRequest{Farmer: farmer, Period: period}
	resp := new(VerdictResponse)
	if err := c.cc.Invoke(ctx, fullMethod(eligibilityService, "VerifyEligibility"), req, resp); err != nil {
		return false, err
	}
	if resp.Code != 0 {
		return false, codedError(resp.Code, resp.Info)
	}
	return resp.Ok, nil
}

// --- FundPool ---

func (c *Client) Balance(ctx context.Context) (types.Amount, error) {
	req := &BalanceRequest{}
	resp := new(BalanceResponse)
	if err := c.cc.Invoke(ctx, fullMethod(fundPoolService, "Balance"), req, resp); err != nil {
		return 0, err
	}
	if resp.Code != 0 {
		return 0, codedError(resp.Code, resp.Info)
	}
	return resp.Balance, nil
}

func (c *Client) Disburse(ctx context.Context, farmer types.FarmerID, amount types.Amount) (bool, error) {
	req := &DisburseRequest{Farmer: farmer, Amount: amount}
	resp := new(VerdictResponse)
	if err := c.cc.Invoke(ctx, fullMethod(fundPoolService, "Disburse"), req, resp); err != nil {
		return false, err
	}
	if resp.Code != 0 {
		return false, codedError(resp.Code, resp.Info)
	}
	return resp.Ok, nil
}

// --- AuditLogger ---

func (c *Client) LogEvent(ctx context.Context, farmer types.FarmerID, status string, amount types.Amount, metadata []byte) error {
	req := &LogEventRequest{Farmer: farmer, Status: status, Amount: amount, Metadata: metadata}
	resp := new(LogEventResponse)
	if err := c.cc.Invoke(ctx, fullMethod(auditService, "LogEvent"), req, resp); err != nil {
		return err
	}
	if resp.Code != 0 {
		return codedError(resp.Code, resp.Info)
	}
	return nil
}

// Addrs lists the four collaborator service addresses.
type Addrs struct {
	Registry    string
	Eligibility string
	Pool        string
	Audit       string
}

// DialCollaborators connects to the four collaborator services and
// returns the bundle plus a closer releasing every connection.
// Services sharing an address share one connection.
func DialCollaborators(ctx context.Context, addrs Addrs, opts ...grpc.DialOption) (subsidy.Collaborators, func() error, error) {
	clients := make(map[string]*Client, 4)

	dialOnce := func(addr string) (*Client, error) {
		if c, ok := clients[addr]; ok {
			return c, nil
		}
		c, err := Dial(ctx, addr, opts...)
		if err != nil {
			return nil, err
		}
		clients[addr] = c
		return c, nil
	}

	closeAll := func() error {
		var errs []error
		for _, c := range clients {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	registry, err := dialOnce(addrs.Registry)
	if err != nil {
		return subsidy.Collaborators{}, nil, err
	}
	eligibility, err := dialOnce(addrs.Eligibility)
	if err != nil {
		closeAll()
		return subsidy.Collaborators{}, nil, err
	}
	pool, err := dialOnce(addrs.Pool)
	if err != nil {
		closeAll()
		return subsidy.Collaborators{}, nil, err
	}
	audit, err := dialOnce(addrs.Audit)
	if err != nil {
		closeAll()
		return subsidy.Collaborators{}, nil, err
	}

	collab := subsidy.Collaborators{
		Registry:    registry,
		Eligibility: eligibility,
		Pool:        pool,
		Audit:       audit,
	}
	return collab, closeAll, nil
}
