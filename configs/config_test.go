package configs

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.coredao.org", cfg.Network.RPCURL)
	assert.Equal(t, 1116, cfg.Network.ChainID)
	assert.Equal(t, GasPriceAuto, cfg.Network.GasPrice)
	assert.Equal(t, "https://api.scan.coredao.org/api", cfg.Explorer.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Explorer.PollInterval)
	assert.Equal(t, "0.8.24", cfg.Compiler.Version)
	assert.Equal(t, 200, cfg.Compiler.Runs)
	assert.Equal(t, "shanghai", cfg.Compiler.EVMVersion)
	assert.Equal(t, PlanNameFull, cfg.Deployment.Plan)
	assert.True(t, cfg.Deployment.IncludeTournament)
	assert.Empty(t, cfg.Network.PrivateKey)

	assert.NoError(t, cfg.ValidateDeploy())
	assert.NoError(t, cfg.Devnet.Validate())
	assert.NoError(t, cfg.Compiler.Validate())
}

func TestNetwork_Validate(t *testing.T) {
	valid := func() Network {
		return Network{RPCURL: "http://localhost:8545", ChainID: 1116, GasPrice: "auto"}
	}

	tests := []struct {
		name    string
		mutate  func(n *Network)
		wantErr string
	}{
		{name: "valid without key", mutate: func(n *Network) {}},
		{
			name:   "valid with prefixed key",
			mutate: func(n *Network) { n.PrivateKey = "0x" + repeat("ab", 32) },
		},
		{
			name:    "missing rpc url",
			mutate:  func(n *Network) { n.RPCURL = "" },
			wantErr: "network.rpc-url is required",
		},
		{
			name:    "missing chain id",
			mutate:  func(n *Network) { n.ChainID = 0 },
			wantErr: "network.chain-id is required",
		},
		{
			name:    "short key",
			mutate:  func(n *Network) { n.PrivateKey = "abcd" },
			wantErr: "must be 64 hex characters, got 4",
		},
		{
			name:    "bad gas price",
			mutate:  func(n *Network) { n.GasPrice = "fast" },
			wantErr: "network.gas-price must be 'auto'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := valid()
			tc.mutate(&n)
			err := n.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNetwork_GasPriceWei(t *testing.T) {
	price, err := Network{GasPrice: "auto"}.GasPriceWei()
	require.NoError(t, err)
	assert.Nil(t, price)

	price, err = Network{GasPrice: "30000000000"}.GasPriceWei()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30_000_000_000), price)

	_, err = Network{GasPrice: "-1"}.GasPriceWei()
	assert.Error(t, err)
}

func TestDeployment_Validate(t *testing.T) {
	d := Deployment{Plan: "everything"}
	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment.plan must be one of")

	d = Deployment{Plan: PlanNameCore, NativeToken: "native"}
	err = d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment.native-token is not a valid address")

	d = Deployment{Plan: PlanNameNFT, Output: "out.txt"}
	err = d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment.output must end in")

	d = Deployment{Plan: PlanNameNFT, Output: "deployments/core.YAML"}
	assert.NoError(t, d.Validate())
}

func TestExplorer_Validate(t *testing.T) {
	e := Explorer{APIKey: "key"}
	err := e.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explorer.api-url is required")

	e = Explorer{APIKey: "key", APIURL: "https://scan.example/api", PollAttempts: 0}
	err = e.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explorer.poll-attempts must be positive")

	e.PollAttempts = 24
	assert.NoError(t, e.Validate())

	e = Explorer{PollAttempts: -1}
	err = e.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be negative")

	e = Explorer{}
	assert.NoError(t, e.Validate())
}

func TestBindEnv(t *testing.T) {
	t.Setenv("CORE_MAINNET_RPC", "http://rpc.example:8545")
	t.Setenv("CORE_PRIVATE_KEY", repeat("11", 32))
	t.Setenv("ETHERSCAN_API_KEY", "scan-key")

	v := viper.New()
	require.NoError(t, LoadDefaults(v))
	require.NoError(t, BindEnv(v))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "http://rpc.example:8545", cfg.Network.RPCURL)
	assert.Equal(t, repeat("11", 32), cfg.Network.PrivateKey)
	assert.Equal(t, "scan-key", cfg.Explorer.APIKey)
	assert.Equal(t, 1116, cfg.Network.ChainID)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOTENV_TEST_KEEP=from-file\nDOTENV_TEST_NEW=fresh\n"), 0600))

	t.Setenv("DOTENV_TEST_KEEP", "from-env")
	t.Setenv("DOTENV_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("DOTENV_TEST_NEW"))

	exported, err := LoadDotEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 1, exported)
	assert.Equal(t, "from-env", os.Getenv("DOTENV_TEST_KEEP"))
	assert.Equal(t, "fresh", os.Getenv("DOTENV_TEST_NEW"))

	exported, err = LoadDotEnv(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Zero(t, exported)
}

func repeat(s string, n int) string {
	out := ""
	for range n {
		out += s
	}
	return out
}

func TestDeclareFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	MustDeclareFlags(cmd.Flags(), []FlagDef[string]{
		{"test-rpc-url", "test.rpc-url", "", "RPC URL"},
	})
	MustDeclareFlags(cmd.Flags(), []FlagDef[int]{
		{"test-chain-id", "test.chain-id", 7, "chain ID"},
	})
	MustDeclareFlags(cmd.Flags(), []FlagDef[bool]{
		{"test-verify", "test.verify", false, "verify"},
	})

	require.NoError(t, cmd.Flags().Parse([]string{"--test-rpc-url", "http://flag:8545", "--test-verify"}))

	assert.Equal(t, "http://flag:8545", viper.GetString("test.rpc-url"))
	assert.Equal(t, 7, viper.GetInt("test.chain-id"))
	assert.True(t, viper.GetBool("test.verify"))
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, AppName+"/"+Version, UserAgent())
	assert.Equal(t, "deployer/dev", UserAgent())
}
