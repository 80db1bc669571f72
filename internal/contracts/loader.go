package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const ContractsFileName = "contracts.json"

// Load reads artifacts from contractsFile when it is set, then from the
// contracts.json the compile command leaves in artifactsDir, and finally
// from a Hardhat style artifacts directory.
func Load(contractsFile, artifactsDir string) (Set, error) {
	if contractsFile != "" {
		return LoadContractsFile(contractsFile)
	}
	if artifactsDir != "" {
		if compiled := filepath.Join(artifactsDir, ContractsFileName); exists(compiled) {
			return LoadContractsFile(compiled)
		}
		return LoadHardhatArtifacts(artifactsDir)
	}
	return nil, errors.New("neither compiler.contracts-file nor compiler.artifacts-dir is configured")
}

// LoadContractsFile loads the {Name: {abi, bytecode}} file written by the compile command.
func LoadContractsFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return parseContracts(data)
}

// parseContracts parses contract JSON data into an artifact set, ignoring
// contracts this tool does not deploy.
func parseContracts(data []byte) (Set, error) {
	var result map[string]struct {
		ABI      json.RawMessage `json:"abi"`
		Bytecode string          `json:"bytecode"`
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse compiled contracts: %w", err)
	}

	loaded := make(Set)
	for name, contract := range result {
		if !Name(name).Known() {
			continue
		}

		artifact, err := newArtifact(Name(name), contract.ABI, contract.Bytecode)
		if err != nil {
			return nil, err
		}
		loaded[artifact.Name] = artifact
	}

	return loaded, nil
}

// LoadHardhatArtifacts walks dir for <Source>.sol/<Name>.json files. Debug
// files and build-info are skipped.
func LoadHardhatArtifacts(dir string) (Set, error) {
	loaded := make(Set)

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".json" || strings.HasSuffix(path, ".dbg.json") {
			return nil
		}

		name := Name(strings.TrimSuffix(entry.Name(), ".json"))
		if !name.Known() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var hardhat struct {
			ContractName string          `json:"contractName"`
			ABI          json.RawMessage `json:"abi"`
			Bytecode     string          `json:"bytecode"`
		}
		if err := json.Unmarshal(data, &hardhat); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if hardhat.ContractName != "" && Name(hardhat.ContractName) != name {
			return nil
		}

		artifact, err := newArtifact(name, hardhat.ABI, hardhat.Bytecode)
		if err != nil {
			return err
		}
		if _, dup := loaded[name]; dup {
			return fmt.Errorf("contract %s found in more than one artifact under %s", name, dir)
		}
		loaded[name] = artifact

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts from %s: %w", dir, err)
	}

	return loaded, nil
}

func newArtifact(name Name, rawABI json.RawMessage, bytecode string) (Artifact, error) {
	parsedABI, err := abi.JSON(strings.NewReader(string(rawABI)))
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
	}

	return Artifact{
		Name:     name,
		ABI:      parsedABI,
		RawABI:   string(rawABI),
		Bytecode: common.FromHex(strings.TrimSpace(bytecode)),
	}, nil
}
