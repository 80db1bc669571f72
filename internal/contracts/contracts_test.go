package contracts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/infra/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rewardsABI = `[{"type":"constructor","inputs":[{"name":"owner","type":"address"}],"stateMutability":"nonpayable"},` +
	`{"type":"function","name":"setHub","inputs":[{"name":"hub","type":"address"}],"outputs":[],"stateMutability":"nonpayable"}]`

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestSet_Get(t *testing.T) {
	set := Set{
		NameRewards: {Name: NameRewards, Bytecode: []byte{0x60, 0x01}},
		NameHub:     {Name: NameHub},
	}

	artifact, err := set.Get(NameRewards)
	require.NoError(t, err)
	assert.Equal(t, NameRewards, artifact.Name)

	_, err = set.Get(NameHub)
	assert.ErrorContains(t, err, "empty bytecode")

	_, err = set.Get(NameStaking)
	assert.ErrorContains(t, err, "no compiled artifact for Staking")
}

func TestLoadContractsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ContractsFileName)
	writeTestFile(t, path, `{
		"Rewards": {"abi": `+rewardsABI+`, "bytecode": "0x6001"},
		"SomethingElse": {"abi": [], "bytecode": "0x00"}
	}`)

	set, err := LoadContractsFile(path)
	require.NoError(t, err)
	require.Len(t, set, 1)

	rewards := set[NameRewards]
	assert.Equal(t, []byte{0x60, 0x01}, rewards.Bytecode)
	assert.Contains(t, rewards.ABI.Methods, "setHub")
	assert.JSONEq(t, rewardsABI, rewards.RawABI)
}

func TestLoadContractsFile_BadABI(t *testing.T) {
	path := filepath.Join(t.TempDir(), ContractsFileName)
	writeTestFile(t, path, `{"Hub": {"abi": {"not": "an array"}, "bytecode": "0x"}}`)

	_, err := LoadContractsFile(path)
	assert.ErrorContains(t, err, "failed to parse ABI for Hub")
}

func TestLoadHardhatArtifacts(t *testing.T) {
	dir := t.TempDir()
	artifact := func(name string) string {
		return `{"contractName":"` + name + `","abi":` + rewardsABI + `,"bytecode":"0x6002"}`
	}

	writeTestFile(t, filepath.Join(dir, "contracts", "Rewards.sol", "Rewards.json"), artifact("Rewards"))
	writeTestFile(t, filepath.Join(dir, "contracts", "Rewards.sol", "Rewards.dbg.json"), `{"buildInfo":"../build-info/x.json"}`)
	writeTestFile(t, filepath.Join(dir, "@openzeppelin", "contracts", "proxy", "ERC1967", "ERC1967Proxy.sol", "ERC1967Proxy.json"), artifact("ERC1967Proxy"))
	writeTestFile(t, filepath.Join(dir, "contracts", "Util.sol", "Util.json"), artifact("Util"))
	writeTestFile(t, filepath.Join(dir, "build-info", "Hub.json"), `not json`)

	set, err := LoadHardhatArtifacts(dir)
	require.NoError(t, err)

	assert.Len(t, set, 2)
	assert.Contains(t, set, NameRewards)
	assert.Contains(t, set, NameERC1967Proxy)
}

func TestLoad(t *testing.T) {
	_, err := Load("", "")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), ContractsFileName)
	writeTestFile(t, path, `{"Rewards": {"abi": `+rewardsABI+`, "bytecode": "0x6001"}}`)

	set, err := Load(path, "ignored")
	require.NoError(t, err)
	assert.Contains(t, set, NameRewards)
}

func TestStandardInput_SourcePath(t *testing.T) {
	input := StandardInput{Sources: map[string]SourceEntry{
		"contracts/Hub.sol":      {Content: "pragma solidity ^0.8.24;\n\ncontract Hub is Initializable {\n}\n"},
		"contracts/HubProxy.sol": {Content: "contract HubProxy {}\n"},
		"contracts/IHub.sol":     {Content: "interface IHub {}\n"},
	}}

	path, err := input.SourcePath(NameHub)
	require.NoError(t, err)
	assert.Equal(t, "contracts/Hub.sol", path)

	_, err = input.SourcePath(NameStaking)
	assert.ErrorContains(t, err, "no source declares contract Staking")
}

func TestParseStandardOutput(t *testing.T) {
	t.Run("errors fail compilation", func(t *testing.T) {
		_, err := parseStandardOutput([]byte(`{"errors":[
			{"severity":"warning","formattedMessage":"unused variable"},
			{"severity":"error","formattedMessage":"ParserError: expected ';'"}
		]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ParserError")
		assert.NotContains(t, err.Error(), "unused variable")
	})

	t.Run("known contracts are kept", func(t *testing.T) {
		out, err := parseStandardOutput([]byte(`{"contracts":{
			"contracts/Rewards.sol":{"Rewards":{"abi":[],"evm":{"bytecode":{"object":"6001"}}}},
			"contracts/Lib.sol":{"Lib":{"abi":[],"evm":{"bytecode":{"object":"6002"}}}}
		}}`))
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "0x6001", out[NameRewards].Bytecode)
	})
}

type fakeRunner struct {
	images []string
	opts   docker.RunOptions
	input  StandardInput
	output string
}

func (f *fakeRunner) EnsureImage(_ context.Context, image string) error {
	f.images = append(f.images, image)
	return nil
}

func (f *fakeRunner) Run(_ context.Context, opts docker.RunOptions) (string, error) {
	f.opts = opts
	data, err := os.ReadFile(filepath.Join(opts.CopyIn[0].HostDir, "input.json"))
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, &f.input); err != nil {
		return "", err
	}
	return f.output, nil
}

func TestCompiler_Compile(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "contracts", "Rewards.sol"), "contract Rewards {}\n")
	writeTestFile(t, filepath.Join(root, "contracts", "games", "ChessVerifier.sol"), "contract ChessVerifier {}\n")
	writeTestFile(t, filepath.Join(root, "contracts", "README.md"), "not solidity")
	writeTestFile(t, filepath.Join(root, "node_modules", "@openzeppelin", "contracts", "proxy", "ERC1967", "ERC1967Proxy.sol"), "contract ERC1967Proxy {}\n")

	runner := &fakeRunner{output: `{"contracts":{"contracts/Rewards.sol":{"Rewards":{"abi":` + rewardsABI + `,"evm":{"bytecode":{"object":"6001"}}}}}}`}
	cfg := configs.Compiler{
		Version:      "0.8.24",
		Optimizer:    true,
		Runs:         200,
		EVMVersion:   "shanghai",
		Image:        "ethereum/solc",
		SourcesDir:   "contracts",
		ArtifactsDir: "build",
	}

	set, err := NewCompiler(root, cfg, runner).Compile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ethereum/solc:0.8.24"}, runner.images)
	assert.Equal(t, "ethereum/solc:0.8.24", runner.opts.Image)
	require.Len(t, runner.opts.CopyIn, 2)
	assert.Equal(t, []string{"@openzeppelin"}, runner.opts.CopyIn[1].Include)

	assert.Equal(t, "Solidity", runner.input.Language)
	assert.Equal(t, Optimizer{Enabled: true, Runs: 200}, runner.input.Settings.Optimizer)
	assert.Equal(t, "shanghai", runner.input.Settings.EVMVersion)
	assert.Contains(t, runner.input.Sources, "contracts/Rewards.sol")
	assert.Contains(t, runner.input.Sources, "contracts/games/ChessVerifier.sol")
	assert.Contains(t, runner.input.Sources, proxySourcePath)
	assert.Len(t, runner.input.Sources, 3)

	assert.Contains(t, set, NameRewards)

	written, err := LoadContractsFile(filepath.Join(root, "build", ContractsFileName))
	require.NoError(t, err)
	assert.Equal(t, set[NameRewards].Bytecode, written[NameRewards].Bytecode)

	input, err := LoadStandardInput(filepath.Join(root, "build", StandardInputFileName))
	require.NoError(t, err)
	assert.Len(t, input.Sources, 3)
}

func TestCompiler_BuildInput_NoSources(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "contracts"), 0755))

	_, err := NewCompiler(root, configs.Compiler{SourcesDir: "contracts"}, &fakeRunner{}).BuildInput()
	assert.ErrorContains(t, err, "no Solidity sources found")
}

func TestLoad_PrefersCompiledFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, ContractsFileName), `{"Hub": {"abi": `+rewardsABI+`, "bytecode": "0x6003"}}`)
	writeTestFile(t, filepath.Join(dir, "contracts", "Rewards.sol", "Rewards.json"),
		`{"contractName":"Rewards","abi":`+rewardsABI+`,"bytecode":"0x6002"}`)

	set, err := Load("", dir)
	require.NoError(t, err)
	assert.Contains(t, set, NameHub)
	assert.NotContains(t, set, NameRewards)
}
