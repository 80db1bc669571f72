package deployment

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/chain"
	"github.com/crossrealm/deployer/internal/chain/chaintest"
	"github.com/crossrealm/deployer/internal/orchestrator"
	"github.com/crossrealm/deployer/internal/output"
	"github.com/crossrealm/deployer/internal/signer"
	"github.com/crossrealm/deployer/internal/verify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	anvilKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	anvilAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	oneAddrABI = `[{"type":"constructor","inputs":[{"name":"a","type":"address"}],"stateMutability":"nonpayable"}]`
	rewardsABI = `[{"type":"constructor","inputs":[{"name":"dev","type":"address"}],"stateMutability":"nonpayable"},` +
		`{"type":"function","name":"setHub","inputs":[{"name":"hub","type":"address"}],"outputs":[],"stateMutability":"nonpayable"}]`
)

type fixture struct {
	dir     string
	cfg     configs.Config
	backend *chaintest.Backend
	dials   *atomic.Int32
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	dir := t.TempDir()
	writeContracts(t, filepath.Join(dir, "artifacts", "contracts.json"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "artifacts", "build-info"), 0755))

	cfg, err := configs.DefaultConfig()
	require.NoError(t, err)
	cfg.Network.PrivateKey = anvilKey
	cfg.Network.RPCURL = "http://unused.invalid"
	cfg.Network.ChainID = int(chaintest.ChainID.Int64())
	cfg.Deployment.Plan = configs.PlanNameCore
	cfg.Deployment.Verify = false

	balance := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
	backend := chaintest.New(t, types.GenesisAlloc{
		common.HexToAddress(anvilAddress): {Balance: balance},
	})

	return fixture{dir: dir, cfg: cfg, backend: backend, dials: &atomic.Int32{}}
}

func (f fixture) service(out *bytes.Buffer) *Service {
	return NewService(f.dir, f.cfg, out).WithDialer(func(context.Context, string) (chain.Backend, func(), error) {
		f.dials.Add(1)
		return f.backend, func() {}, nil
	})
}

func writeContracts(t *testing.T, path string) {
	t.Helper()

	entry := func(abiJSON string) map[string]any {
		return map[string]any{"abi": json.RawMessage(abiJSON), "bytecode": chaintest.StopBytecode}
	}
	data, err := json.Marshal(map[string]any{
		"Rewards":       entry(rewardsABI),
		"Hub":           entry(oneAddrABI),
		"CrossRealmNFT": entry(`[]`),
	})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestDeploy_NoSignerSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.cfg.Network.PrivateKey = ""

	var out bytes.Buffer
	result, err := f.service(&out).Deploy(context.Background())
	require.ErrorIs(t, err, signer.ErrNoSigner)
	assert.Nil(t, result)
	assert.Zero(t, f.dials.Load())
	assert.Zero(t, f.backend.SentCount())
	assert.Empty(t, out.String())
}

func TestDeploy_InvalidConfig(t *testing.T) {
	f := newFixture(t)
	f.cfg.Deployment.Plan = "everything"

	_, err := f.service(&bytes.Buffer{}).Deploy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment.plan must be one of")
	assert.Zero(t, f.dials.Load())
}

func TestDeploy_MissingArtifacts(t *testing.T) {
	f := newFixture(t)
	f.cfg.Deployment.Plan = configs.PlanNameFull

	_, err := f.service(&bytes.Buffer{}).Deploy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Staking")
	assert.Zero(t, f.backend.SentCount())
}

func TestDeploy_WrongChainSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.cfg.Network.ChainID = 1116
	f.cfg.Deployment.Output = "core.yaml"

	var out bytes.Buffer
	result, err := f.service(&out).Deploy(context.Background())
	require.ErrorIs(t, err, orchestrator.ErrChainIDMismatch)
	require.NotNil(t, result)
	assert.Equal(t, orchestrator.StageAborted, result.Stage)
	assert.Equal(t, int32(1), f.dials.Load())
	assert.Zero(t, f.backend.SentCount())
	assert.NotContains(t, out.String(), "Deploying with:")
	assert.NoFileExists(t, filepath.Join(f.dir, "core.yaml"))
}

func TestDeploy_CorePlanWritesRecord(t *testing.T) {
	f := newFixture(t)
	f.cfg.Deployment.Output = "deployments/core.yaml"

	var out bytes.Buffer
	result, err := f.service(&out).Deploy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, orchestrator.StageDone, result.Stage)
	assert.Equal(t, 4, f.backend.SentCount())
	assert.Empty(t, result.Verifications)

	console := out.String()
	assert.Contains(t, console, "Deploying with: "+anvilAddress)
	assert.Contains(t, console, "Full deployment complete! Update index.html with:")
	assert.NotContains(t, console, "Verifying...")
	for _, d := range result.Deployments {
		assert.GreaterOrEqual(t, strings.Count(console, d.Address.Hex()), 2, d.StepID)
	}

	record, err := output.ReadRecord(filepath.Join(f.dir, "deployments", "core.yaml"))
	require.NoError(t, err)
	assert.Equal(t, result.RunID.String(), record.RunID)
	assert.Equal(t, "coreMainnet", record.Network)
	require.Len(t, record.Contracts, 3)
	assert.Equal(t, "Rewards", record.Contracts[0].Name)
	assert.Len(t, record.Calls, 1)
}

func TestDeploy_VerificationFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t)

	var submissions atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		submissions.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f.cfg.Deployment.Verify = true
	f.cfg.Explorer.APIKey = "scan-key"
	f.cfg.Explorer.APIURL = server.URL
	f.cfg.Deployment.Output = "core.json"

	var out bytes.Buffer
	result, err := f.service(&out).Deploy(context.Background())
	require.NoError(t, err)

	// No build-info and no compiled standard input: every source lookup fails.
	require.Len(t, result.Verifications, 3)
	for _, v := range result.Verifications {
		assert.False(t, v.Verified)
		assert.Contains(t, v.Reason, verify.ErrNoSource.Error())
	}
	assert.Zero(t, submissions.Load())
	assert.Contains(t, out.String(), "\nVerifying...\n")
	assert.Contains(t, out.String(), "Rewards skip: ")
	assert.Contains(t, out.String(), "Full deployment complete!")

	out.Reset()
	verifications, err := f.service(&out).Reverify(context.Background(), "core.json")
	require.NoError(t, err)
	assert.Len(t, verifications, 3)
	assert.Contains(t, out.String(), "NFT skip: ")
	assert.Equal(t, 4, f.backend.SentCount())
}

func TestReverify_RequiresAPIKey(t *testing.T) {
	f := newFixture(t)
	f.cfg.Deployment.Output = "core.json"

	_, err := f.service(&bytes.Buffer{}).Deploy(context.Background())
	require.NoError(t, err)

	f.cfg.Deployment.Verify = true
	_, err = f.service(&bytes.Buffer{}).Reverify(context.Background(), "core.json")
	assert.ErrorIs(t, err, verify.ErrNoAPIKey)
}

func TestReverify_RejectsZeroPollAttempts(t *testing.T) {
	f := newFixture(t)
	f.cfg.Deployment.Output = "core.json"

	_, err := f.service(&bytes.Buffer{}).Deploy(context.Background())
	require.NoError(t, err)

	f.cfg.Deployment.Verify = true
	f.cfg.Explorer.APIKey = "scan-key"
	f.cfg.Explorer.PollAttempts = 0
	_, err = f.service(&bytes.Buffer{}).Reverify(context.Background(), "core.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explorer.poll-attempts must be positive")
}
