package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crossrealm/deployer/internal/contracts"
)

// ErrNoSource is returned when no compiler input declares the contract.
var ErrNoSource = errors.New("no verification source")

type (
	// Source is what the explorer needs to rebuild one contract.
	Source struct {
		Input           contracts.StandardInput
		ContractPath    string
		CompilerVersion string
	}

	// SourceFinder locates the compiler input a contract was built from.
	SourceFinder interface {
		Find(name contracts.Name) (Source, error)
	}

	bundle struct {
		input       contracts.StandardInput
		longVersion string
		// declared maps contract name to source path, when compiler output is known.
		declared map[contracts.Name]string
	}

	// Sources searches build-info bundles first, then a standard-json input
	// written by the compile command.
	Sources struct {
		bundles []bundle
	}
)

// ContractName is the "path:Name" form explorers expect.
func (s Source) ContractName(name contracts.Name) string {
	return s.ContractPath + ":" + string(name)
}

// SourceJSON is the standard-json input serialized for submission.
func (s Source) SourceJSON() ([]byte, error) {
	data, err := json.Marshal(s.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal standard input: %w", err)
	}
	return data, nil
}

// LoadSources reads every Hardhat build-info file in buildInfoDir and, when
// it exists, the standard-json input at standardInputPath compiled with
// longVersion. Missing locations are skipped.
func LoadSources(buildInfoDir, standardInputPath, longVersion string) (*Sources, error) {
	s := &Sources{}

	if buildInfoDir != "" {
		matches, err := filepath.Glob(filepath.Join(buildInfoDir, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", buildInfoDir, err)
		}
		for _, path := range matches {
			b, err := loadBuildInfo(path)
			if err != nil {
				return nil, err
			}
			s.bundles = append(s.bundles, b)
		}
	}

	if standardInputPath != "" {
		if _, err := os.Stat(standardInputPath); err == nil {
			input, err := contracts.LoadStandardInput(standardInputPath)
			if err != nil {
				return nil, err
			}
			s.bundles = append(s.bundles, bundle{input: input, longVersion: longVersion})
		}
	}

	return s, nil
}

func loadBuildInfo(path string) (bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bundle{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var info struct {
		SolcLongVersion string                  `json:"solcLongVersion"`
		Input           contracts.StandardInput `json:"input"`
		Output          struct {
			Contracts map[string]map[string]json.RawMessage `json:"contracts"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return bundle{}, fmt.Errorf("failed to parse build info %s: %w", path, err)
	}

	declared := make(map[contracts.Name]string)
	for sourcePath, byName := range info.Output.Contracts {
		for name := range byName {
			declared[contracts.Name(name)] = sourcePath
		}
	}

	return bundle{input: info.Input, longVersion: info.SolcLongVersion, declared: declared}, nil
}

// Find returns the first bundle that declares name.
func (s *Sources) Find(name contracts.Name) (Source, error) {
	for _, b := range s.bundles {
		path, ok := b.declared[name]
		if !ok && b.declared == nil {
			var err error
			if path, err = b.input.SourcePath(name); err == nil {
				ok = true
			}
		}
		if !ok {
			continue
		}

		return Source{
			Input:           b.input,
			ContractPath:    path,
			CompilerVersion: "v" + strings.TrimPrefix(b.longVersion, "v"),
		}, nil
	}

	return Source{}, fmt.Errorf("%w for %s", ErrNoSource, name)
}
