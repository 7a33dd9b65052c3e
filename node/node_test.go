package node

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	bapigrpc "github.com/blockberries/bapi/grpc"
	bapitest "github.com/blockberries/bapi/testing"
	bapitypes "github.com/blockberries/bapi/types"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/subsidy/app"
	"github.com/blockberries/subsidy/config"
	"github.com/blockberries/subsidy/logging"
	"github.com/blockberries/subsidy/types"
)

var proofHash = bytes.Repeat([]byte{0xaa}, types.ProofHashLen)

// testConfig returns a validated config that binds ephemeral ports
// and keeps everything in memory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Collaborators.Local.Farmers = []string{"alice", "bob"}
	cfg.Collaborators.Local.PoolBalance = 50_000
	cfg.Store.Backend = "memory"
	cfg.Metrics.Enabled = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func startNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()
	n, err := New(cfg, WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(func() {
		if n.IsRunning() {
			_ = n.Stop()
		}
	})
	return n
}

func dialNode(t *testing.T, addr string) *bapigrpc.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := bapigrpc.Dial(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testGenesis(t *testing.T, chainID string) bapitypes.GenesisDoc {
	t.Helper()
	doc := bapitest.DefaultGenesis()
	doc.ChainID = chainID
	appState, err := types.GenesisState{Admin: "gov"}.AppStateBytes()
	require.NoError(t, err)
	doc.AppState = appState
	return doc
}

func TestNode_StartStop(t *testing.T) {
	cfg := testConfig(t)
	n := startNode(t, cfg)

	require.True(t, n.IsRunning())
	require.NotEmpty(t, n.BAPIAddr())
	require.Empty(t, n.CollabAddr())
	require.Empty(t, n.MetricsAddr())

	require.ErrorIs(t, n.Start(), ErrAlreadyStarted)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dialNode(t, n.BAPIAddr())

	doc := testGenesis(t, cfg.Node.ChainID)
	resp, err := client.Handshake(ctx, bapitypes.HandshakeRequest{Genesis: &doc})
	require.NoError(t, err)
	require.Nil(t, resp.LastBlock)
	require.NotNil(t, resp.AppHash)

	verdict, err := client.CheckTx(ctx,
		types.SubmitTx("alice", 500, 202501, nil, proofHash),
		bapitypes.MempoolFirstSeen)
	require.NoError(t, err)
	require.True(t, verdict.Accepted())

	outcome, err := client.ExecuteBlock(ctx, bapitest.MakeBlock(1,
		types.SubmitTx("alice", 500, 202501, nil, proofHash)))
	require.NoError(t, err)
	require.Len(t, outcome.TxOutcomes, 1)
	require.True(t, outcome.TxOutcomes[0].OK(), "submit failed: %s", outcome.TxOutcomes[0].Info)

	_, err = client.Commit(ctx)
	require.NoError(t, err)

	res, err := client.Query(ctx, bapitypes.StateQuery{Path: app.PathStats})
	require.NoError(t, err)
	require.Zero(t, res.Code)
	stats, err := types.DecodeStats(res.Value)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.Height)
	require.Equal(t, uint32(1), stats.PendingClaims)

	require.NoError(t, n.Stop())
	require.False(t, n.IsRunning())
	require.NoError(t, n.Wait())
	require.ErrorIs(t, n.Stop(), ErrNotStarted)
}

func TestNode_MetricsEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	require.NoError(t, cfg.Validate())

	n := startNode(t, cfg)
	require.NotEmpty(t, n.MetricsAddr())

	resp, err := http.Get("http://" + n.MetricsAddr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "subsidy_block_height")
}

// TestNode_SharedCollaborators runs one node that exports its local
// collaborators over gRPC and a second node that reaches them in
// grpc mode, then drives a claim through the second node.
func TestNode_SharedCollaborators(t *testing.T) {
	providerCfg := testConfig(t)
	providerCfg.Collaborators.Local.ServeAddr = "127.0.0.1:0"
	provider := startNode(t, providerCfg)
	require.NotEmpty(t, provider.CollabAddr())

	addr := provider.CollabAddr()
	consumerCfg := testConfig(t)
	consumerCfg.Collaborators.Mode = config.CollabGRPC
	consumerCfg.Collaborators.GRPC = config.GRPCCollaboratorsConfig{
		RegistryAddr:    addr,
		EligibilityAddr: addr,
		PoolAddr:        addr,
		AuditAddr:       addr,
		DialTimeout:     config.Duration(3 * time.Second),
	}
	require.NoError(t, consumerCfg.Validate())
	consumer := startNode(t, consumerCfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := dialNode(t, consumer.BAPIAddr())
	doc := testGenesis(t, consumerCfg.Node.ChainID)
	_, err := client.Handshake(ctx, bapitypes.HandshakeRequest{Genesis: &doc})
	require.NoError(t, err)

	outcome, err := client.ExecuteBlock(ctx, bapitest.MakeBlock(1,
		types.SubmitTx("alice", 700, 202501, []byte("shared backends"), proofHash)))
	require.NoError(t, err)
	require.True(t, outcome.TxOutcomes[0].OK(), "submit failed: %s", outcome.TxOutcomes[0].Info)

	_, err = client.Commit(ctx)
	require.NoError(t, err)

	res, err := client.Query(ctx, bapitypes.StateQuery{
		Path: app.PathCanClaim,
		Data: app.RecordKey("alice", 202501),
	})
	require.NoError(t, err)
	require.Zero(t, res.Code)
	require.Equal(t, []byte{0}, res.Value, "alice should be in cooldown after submitting")
}

func TestBuildLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	log, closer, err := BuildLogger(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)
	require.NotNil(t, closer)

	log.Info("boot check")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "boot check")
}

func TestBuildLogger_UnknownLevel(t *testing.T) {
	_, _, err := BuildLogger(config.LoggingConfig{
		Level:  "loud",
		Format: "text",
		Output: "stderr",
	})
	require.Error(t, err)
}

func TestBuildStore_UnknownBackend(t *testing.T) {
	_, err := buildStore(config.StoreConfig{Backend: "papyrus"})
	require.Error(t, err)
}
