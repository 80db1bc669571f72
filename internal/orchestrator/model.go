package orchestrator

import (
	"math/big"
	"time"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type Stage string

const (
	StageNotStarted Stage = "not_started"
	StageDeploying  Stage = "deploying"
	StageWiring     Stage = "wiring"
	StageVerifying  Stage = "verifying"
	StageDone       Stage = "done"
	StageAborted    Stage = "aborted"
)

type (
	// Deployment is a contract created by one plan step. For proxy steps
	// Address is the proxy and Implementation the logic contract behind it.
	Deployment struct {
		StepID          string
		Contract        contracts.Name
		Label           string
		Address         common.Address
		Implementation  common.Address
		TxHash          common.Hash
		ConstructorArgs []byte
		Verify          bool
	}

	Call struct {
		StepID   string
		Contract contracts.Name
		Target   common.Address
		Method   string
		Args     []string
		TxHash   common.Hash
	}

	Verification struct {
		StepID   string
		Label    string
		Contract contracts.Name
		Address  common.Address
		Verified bool
		Reason   string
	}

	Result struct {
		RunID         uuid.UUID
		Plan          configs.PlanName
		ChainID       *big.Int
		Deployer      common.Address
		Deployments   []Deployment
		Calls         []Call
		Verifications []Verification
		Stage         Stage
		StartedAt     time.Time
		FinishedAt    time.Time
	}
)

// IsProxy reports whether the deployment sits behind an ERC-1967 proxy.
func (d Deployment) IsProxy() bool {
	return d.Implementation != (common.Address{})
}

// VerifyAddress is the address submitted for verification: the
// implementation for proxies, the contract itself otherwise.
func (d Deployment) VerifyAddress() common.Address {
	if d.IsProxy() {
		return d.Implementation
	}
	return d.Address
}

// Address returns the address produced by stepID.
func (r *Result) Address(stepID string) (common.Address, bool) {
	for _, d := range r.Deployments {
		if d.StepID == stepID {
			return d.Address, true
		}
	}
	return common.Address{}, false
}

// Addresses indexes every produced address by step id.
func (r *Result) Addresses() map[string]common.Address {
	addresses := make(map[string]common.Address, len(r.Deployments))
	for _, d := range r.Deployments {
		addresses[d.StepID] = d.Address
	}
	return addresses
}
