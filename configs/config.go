package configs

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var Values Config

type (
	PlanName string

	Config struct {
		Log        Log        `mapstructure:"log"`
		Network    Network    `mapstructure:"network"`
		Explorer   Explorer   `mapstructure:"explorer"`
		Compiler   Compiler   `mapstructure:"compiler"`
		Deployment Deployment `mapstructure:"deployment"`
		Metrics    Metrics    `mapstructure:"metrics"`
		Devnet     Devnet     `mapstructure:"devnet"`
	}

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}

	Network struct {
		Name            string        `mapstructure:"name"`
		RPCURL          string        `mapstructure:"rpc-url"`
		ChainID         int           `mapstructure:"chain-id"`
		PrivateKey      string        `mapstructure:"private-key"`
		GasPrice        string        `mapstructure:"gas-price"`
		GasLimit        uint64        `mapstructure:"gas-limit"`
		TxTimeout       time.Duration `mapstructure:"tx-timeout"`
		RPCWaitAttempts int           `mapstructure:"rpc-wait-attempts"`
	}

	Explorer struct {
		APIKey       string        `mapstructure:"api-key"`
		APIURL       string        `mapstructure:"api-url"`
		BrowserURL   string        `mapstructure:"browser-url"`
		BuildInfoDir string        `mapstructure:"build-info-dir"`
		PollInterval time.Duration `mapstructure:"poll-interval"`
		PollAttempts int           `mapstructure:"poll-attempts"`
	}

	Compiler struct {
		Version       string `mapstructure:"version"`
		LongVersion   string `mapstructure:"long-version"`
		Optimizer     bool   `mapstructure:"optimizer"`
		Runs          int    `mapstructure:"runs"`
		EVMVersion    string `mapstructure:"evm-version"`
		Image         string `mapstructure:"image"`
		SourcesDir    string `mapstructure:"sources-dir"`
		ArtifactsDir  string `mapstructure:"artifacts-dir"`
		ContractsFile string `mapstructure:"contracts-file"`
	}

	Deployment struct {
		Plan              PlanName `mapstructure:"plan"`
		NativeToken       string   `mapstructure:"native-token"`
		IncludeTournament bool     `mapstructure:"include-tournament"`
		Verify            bool     `mapstructure:"verify"`
		Output            string   `mapstructure:"output"`
	}

	Metrics struct {
		PushgatewayURL string `mapstructure:"pushgateway-url"`
		Job            string `mapstructure:"job"`
	}

	Devnet struct {
		Image         string `mapstructure:"image"`
		ContainerName string `mapstructure:"container-name"`
		Port          int    `mapstructure:"port"`
		ChainID       int    `mapstructure:"chain-id"`
	}
)

const (
	PlanNameFull PlanName = "full"
	PlanNameCore PlanName = "core"
	PlanNameNFT  PlanName = "nft"

	GasPriceAuto = "auto"
)

// PlanNames lists the deployment plans the deploy command accepts.
var PlanNames = []PlanName{PlanNameFull, PlanNameCore, PlanNameNFT}

// LogValue keeps the signing key out of structured logs.
func (n Network) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", n.Name),
		slog.String("rpc_url", n.RPCURL),
		slog.Int("chain_id", n.ChainID),
		slog.Bool("private_key_set", n.PrivateKey != ""),
		slog.String("gas_price", n.GasPrice),
		slog.Uint64("gas_limit", n.GasLimit),
		slog.Duration("tx_timeout", n.TxTimeout),
	)
}

// LogValue keeps the explorer API key out of structured logs.
func (e Explorer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_url", e.APIURL),
		slog.String("browser_url", e.BrowserURL),
		slog.Bool("api_key_set", e.APIKey != ""),
		slog.String("build_info_dir", e.BuildInfoDir),
	)
}

// GasPriceWei returns nil when the gas price should be queried from the node.
func (n Network) GasPriceWei() (*big.Int, error) {
	value := strings.TrimSpace(n.GasPrice)
	if value == "" || strings.EqualFold(value, GasPriceAuto) {
		return nil, nil
	}

	price, ok := new(big.Int).SetString(value, 10)
	if !ok || price.Sign() < 0 {
		return nil, fmt.Errorf("network.gas-price must be 'auto' or a non-negative wei amount, got '%s'", n.GasPrice)
	}

	return price, nil
}

func (n *Network) Validate() error {
	var errs []error

	if n.RPCURL == "" {
		errs = append(errs, errors.New("network.rpc-url is required"))
	}
	if n.ChainID <= 0 {
		errs = append(errs, errors.New("network.chain-id is required"))
	}
	if _, err := n.GasPriceWei(); err != nil {
		errs = append(errs, err)
	}
	if n.TxTimeout < 0 {
		errs = append(errs, errors.New("network.tx-timeout must not be negative"))
	}

	// An empty key is accepted here: it resolves to zero signers and the
	// deployment fails before anything is sent.
	if key := strings.TrimPrefix(strings.TrimSpace(n.PrivateKey), "0x"); key != "" && len(key) != 64 {
		errs = append(errs, fmt.Errorf("network.private-key must be 64 hex characters, got %d", len(key)))
	}

	if len(errs) > 0 {
		return fmt.Errorf("network configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (e *Explorer) Validate() error {
	var errs []error

	if e.APIKey != "" && e.APIURL == "" {
		errs = append(errs, errors.New("explorer.api-url is required when explorer.api-key is set"))
	}
	if e.PollAttempts < 0 {
		errs = append(errs, errors.New("explorer.poll-attempts must not be negative"))
	} else if e.APIKey != "" && e.PollAttempts == 0 {
		errs = append(errs, errors.New("explorer.poll-attempts must be positive when explorer.api-key is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("explorer configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (d *Deployment) Validate() error {
	var errs []error

	known := false
	for _, name := range PlanNames {
		if d.Plan == name {
			known = true
			break
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("deployment.plan must be one of %v, got '%s'", PlanNames, d.Plan))
	}

	if d.NativeToken != "" && !common.IsHexAddress(d.NativeToken) {
		errs = append(errs, fmt.Errorf("deployment.native-token is not a valid address: '%s'", d.NativeToken))
	}

	if d.Output != "" && !hasAnySuffix(d.Output, ".json", ".yaml", ".yml") {
		errs = append(errs, errors.New("deployment.output must end in .json, .yaml or .yml"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("deployment configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (c *Compiler) Validate() error {
	var errs []error

	if c.Version == "" {
		errs = append(errs, errors.New("compiler.version is required"))
	}
	if c.SourcesDir == "" {
		errs = append(errs, errors.New("compiler.sources-dir is required"))
	}
	if c.Optimizer && c.Runs <= 0 {
		errs = append(errs, errors.New("compiler.runs must be positive when the optimizer is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("compiler configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (d *Devnet) Validate() error {
	var errs []error

	if d.Image == "" {
		errs = append(errs, errors.New("devnet.image is required"))
	}
	if d.Port <= 0 || d.Port > 65535 {
		errs = append(errs, fmt.Errorf("devnet.port is out of range: %d", d.Port))
	}
	if d.ChainID <= 0 {
		errs = append(errs, errors.New("devnet.chain-id is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("devnet configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// ValidateDeploy checks every section the deploy command reads.
func (c *Config) ValidateDeploy() error {
	return errors.Join(c.Network.Validate(), c.Explorer.Validate(), c.Deployment.Validate())
}

func hasAnySuffix(s string, suffixes ...string) bool {
	s = strings.ToLower(s)
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
