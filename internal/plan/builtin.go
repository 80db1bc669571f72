package plan

import (
	"fmt"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

// Step ids used by the built-in plans.
const (
	StepRewards    = "rewards"
	StepNFT        = "nft"
	StepStaking    = "staking"
	StepChess      = "chess_verifier"
	StepCheckers   = "checkers_verifier"
	StepTournament = "tournament"
	StepHub        = "hub"
)

// Options parameterize the built-in plans.
type Options struct {
	// NativeToken stands for the chain's native coin; the zero address by default.
	NativeToken       common.Address
	IncludeTournament bool
}

// OptionsFromConfig reads plan options from the deployment section.
func OptionsFromConfig(cfg configs.Deployment) Options {
	opts := Options{IncludeTournament: cfg.IncludeTournament}
	if cfg.NativeToken != "" {
		opts.NativeToken = common.HexToAddress(cfg.NativeToken)
	}
	return opts
}

// Build returns the named built-in plan.
func Build(name configs.PlanName, opts Options) (Plan, error) {
	switch name {
	case configs.PlanNameFull:
		return Full(opts), nil
	case configs.PlanNameCore:
		return Core(), nil
	case configs.PlanNameNFT:
		return NFT(), nil
	default:
		return Plan{}, fmt.Errorf("unknown plan %q", name)
	}
}

// Full deploys the whole suite with the Hub behind an ERC-1967 proxy and
// registers the chess and checkers verifiers.
func Full(opts Options) Plan {
	native := Address(opts.NativeToken)

	steps := []Step{
		Deploy(StepRewards, contracts.NameRewards, Deployer(), native),
		Deploy(StepNFT, contracts.NameCrossRealmNFT).WithLabel("NFT"),
		Deploy(StepStaking, contracts.NameStaking, native, native),
		Deploy(StepChess, contracts.NameChessVerifier),
		Deploy(StepCheckers, contracts.NameCheckersVerifier),
	}
	if opts.IncludeTournament {
		steps = append(steps, Deploy(StepTournament, contracts.NameTournament, native, native))
	}
	steps = append(steps,
		DeployProxy(StepHub, contracts.NameHub, "initialize", Ref(StepRewards), Ref(StepNFT)),
		Call("rewards_set_hub", StepRewards, contracts.NameRewards, "setHub", Ref(StepHub)),
		Call("hub_register_chess", StepHub, contracts.NameHub, "registerVerifier", String("chess"), Ref(StepChess)),
		Call("hub_register_checkers", StepHub, contracts.NameHub, "registerVerifier", String("checkers"), Ref(StepCheckers)),
	)

	exports := []Export{
		{Variable: "HUB_ADDRESS", StepID: StepHub},
		{Variable: "REWARDS_ADDRESS", StepID: StepRewards},
		{Variable: "NFT_ADDRESS", StepID: StepNFT},
		{Variable: "STAKING_ADDRESS", StepID: StepStaking},
	}
	if opts.IncludeTournament {
		exports = append(exports, Export{Variable: "TOURNAMENT_ADDRESS", StepID: StepTournament})
	}

	return Plan{
		Name:    configs.PlanNameFull,
		Steps:   steps,
		Exports: exports,
		Verifiers: []Game{
			{Key: "chess", StepID: StepChess},
			{Key: "checkers", StepID: StepCheckers},
			{Key: "fighting"},
			{Key: "carrace"},
		},
	}
}

// Core deploys Rewards and a plain Hub, links them, and adds the NFT.
func Core() Plan {
	return Plan{
		Name: configs.PlanNameCore,
		Steps: []Step{
			Deploy(StepRewards, contracts.NameRewards, Deployer()),
			Deploy(StepHub, contracts.NameHub, Ref(StepRewards)),
			Deploy(StepNFT, contracts.NameCrossRealmNFT).WithLabel("NFT"),
			Call("rewards_set_hub", StepRewards, contracts.NameRewards, "setHub", Ref(StepHub)),
		},
		Exports: []Export{
			{Variable: "HUB_ADDRESS", StepID: StepHub},
			{Variable: "REWARDS_ADDR", StepID: StepRewards},
			{Variable: "NFT_ADDRESS", StepID: StepNFT},
		},
	}
}

// NFT deploys only the CrossRealmNFT collection.
func NFT() Plan {
	return Plan{
		Name:    configs.PlanNameNFT,
		Steps:   []Step{Deploy(StepNFT, contracts.NameCrossRealmNFT).WithLabel("NFT")},
		Exports: []Export{{Variable: "NFT_ADDRESS", StepID: StepNFT}},
	}
}
