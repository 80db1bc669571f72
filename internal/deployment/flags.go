package deployment

import (
	"github.com/crossrealm/deployer/configs"
)

var (
	gasStringFlags = []configs.FlagDef[string]{
		{"gas-price", "network.gas-price", "", "Gas price in wei, or 'auto'"},
	}

	deployStringFlags = []configs.FlagDef[string]{
		{"plan", "deployment.plan", "", "Deployment plan: full, core or nft"},
		{"native-token", "deployment.native-token", "", "Token address passed for the native CORE token"},
		{"output", "deployment.output", "", "Write a deployment record to this .json or .yaml file"},
		{"contracts-file", "compiler.contracts-file", "", "contracts.json produced by the compile command"},
		{"artifacts-dir", "compiler.artifacts-dir", "", "Hardhat artifacts directory"},
		{"pushgateway-url", "metrics.pushgateway-url", "", "Prometheus Pushgateway URL"},
	}

	deployBoolFlags = []configs.FlagDef[bool]{
		{"include-tournament", "deployment.include-tournament", false, "Deploy the Tournament contract in the full plan"},
		{"verify", "deployment.verify", false, "Submit deployed contracts for verification"},
	}

	compileStringFlags = []configs.FlagDef[string]{
		{"sources-dir", "compiler.sources-dir", "", "Directory holding the Solidity sources"},
		{"solc-version", "compiler.version", "", "solc version"},
		{"evm-version", "compiler.evm-version", "", "Target EVM version"},
	}

	compileIntFlags = []configs.FlagDef[int]{
		{"optimizer-runs", "compiler.runs", 0, "Optimizer runs"},
	}
)

func init() {
	configs.MustDeclareFlags(DeployCMD.Flags(), gasStringFlags)
	configs.MustDeclareFlags(DeployCMD.Flags(), deployStringFlags)
	configs.MustDeclareFlags(DeployCMD.Flags(), deployBoolFlags)

	configs.MustDeclareFlags(CompileCMD.Flags(), compileStringFlags)
	configs.MustDeclareFlags(CompileCMD.Flags(), compileIntFlags)
}
