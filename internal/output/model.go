package output

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"
)

type (
	// Record is the machine-readable summary of a run.
	Record struct {
		RunID         string               `yaml:"run-id" json:"runId"`
		Plan          string               `yaml:"plan" json:"plan"`
		Network       string               `yaml:"network" json:"network"`
		ChainID       uint64               `yaml:"chain-id" json:"chainId"`
		Deployer      common.Address       `yaml:"deployer" json:"deployer"`
		StartedAt     string               `yaml:"started-at" json:"startedAt"`
		FinishedAt    string               `yaml:"finished-at" json:"finishedAt"`
		Contracts     []ContractRecord     `yaml:"contracts" json:"contracts"`
		Calls         []CallRecord         `yaml:"calls,omitempty" json:"calls,omitempty"`
		Verifications []VerificationRecord `yaml:"verifications,omitempty" json:"verifications,omitempty"`
	}

	ContractRecord struct {
		Step            string             `yaml:"step" json:"step"`
		Name            string             `yaml:"name" json:"name"`
		Label           string             `yaml:"label" json:"label"`
		Address         common.Address     `yaml:"address" json:"address"`
		Implementation  *common.Address    `yaml:"implementation,omitempty" json:"implementation,omitempty"`
		TxHash          common.Hash        `yaml:"tx-hash" json:"txHash"`
		ConstructorArgs hexutil.Bytes      `yaml:"constructor-args,omitempty" json:"constructorArgs,omitempty"`
		Verify          bool               `yaml:"verify" json:"verify"`
		ABI             SingleQuotedString `yaml:"abi,omitempty" json:"abi,omitempty"`
	}

	CallRecord struct {
		Step     string         `yaml:"step" json:"step"`
		Contract string         `yaml:"contract" json:"contract"`
		Target   common.Address `yaml:"target" json:"target"`
		Method   string         `yaml:"method" json:"method"`
		Args     []string       `yaml:"args,omitempty" json:"args,omitempty"`
		TxHash   common.Hash    `yaml:"tx-hash" json:"txHash"`
	}

	VerificationRecord struct {
		Step     string         `yaml:"step" json:"step"`
		Address  common.Address `yaml:"address" json:"address"`
		Verified bool           `yaml:"verified" json:"verified"`
		Reason   string         `yaml:"reason,omitempty" json:"reason,omitempty"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}
