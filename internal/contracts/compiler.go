package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/infra/docker"
	"github.com/crossrealm/deployer/internal/logger"
)

const (
	StandardInputFileName = "standard-input.json"

	proxySourcePath = "@openzeppelin/contracts/proxy/ERC1967/ERC1967Proxy.sol"
	nodeModulesDir  = "node_modules"
	dependencyRoot  = "@openzeppelin"
)

// ContainerRunner runs one-shot containers.
type ContainerRunner interface {
	EnsureImage(ctx context.Context, image string) error
	Run(ctx context.Context, opts docker.RunOptions) (string, error)
}

// Compiler compiles the Solidity sources with solc inside a container.
type Compiler struct {
	rootDir string
	cfg     configs.Compiler
	runner  ContainerRunner
	logger  *slog.Logger
}

// NewCompiler creates a new contract compiler rooted at the project directory.
func NewCompiler(rootDir string, cfg configs.Compiler, runner ContainerRunner) *Compiler {
	return &Compiler{
		rootDir: rootDir,
		cfg:     cfg,
		runner:  runner,
		logger:  logger.Named("contracts_compiler"),
	}
}

// Compile builds the standard-json input, runs solc and persists both the
// contracts file and the input used.
func (c *Compiler) Compile(ctx context.Context) (Set, error) {
	c.logger.
		With("sources_dir", c.cfg.SourcesDir).
		With("solc", c.cfg.Version).
		Info("starting contract compilation")

	input, err := c.BuildInput()
	if err != nil {
		return nil, err
	}

	image := fmt.Sprintf("%s:%s", c.cfg.Image, c.cfg.Version)
	if err := c.runner.EnsureImage(ctx, image); err != nil {
		return nil, fmt.Errorf("failed to prepare solc image: %w", err)
	}

	stageDir, err := os.MkdirTemp("", "crossrealm-solc-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stageDir)

	inputJSON, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal standard input: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stageDir, "input.json"), inputJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to stage standard input: %w", err)
	}

	copyIn := []docker.CopyIn{{HostDir: stageDir, ContainerPath: "/"}}
	if dir := filepath.Join(c.rootDir, nodeModulesDir); exists(filepath.Join(dir, dependencyRoot)) {
		copyIn = append(copyIn, docker.CopyIn{HostDir: dir, Include: []string{dependencyRoot}, ContainerPath: "/"})
	}

	c.logger.With("image", image).With("sources", len(input.Sources)).Info("running solc")
	output, err := c.runner.Run(ctx, docker.RunOptions{
		Image:  image,
		Cmd:    []string{"--standard-json", "--base-path", "/", "/input.json"},
		CopyIn: copyIn,
	})
	if err != nil {
		return nil, fmt.Errorf("solc run failed: %w", err)
	}

	compiled, err := parseStandardOutput([]byte(output))
	if err != nil {
		return nil, err
	}
	for _, name := range Names {
		if _, ok := compiled[name]; !ok {
			c.logger.With("contract", name).Warn("contract not produced by compilation")
		}
	}

	contractsJSON, err := json.MarshalIndent(compiled, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contracts: %w", err)
	}

	contractsPath := c.ContractsPath()
	if err := writeFile(contractsPath, contractsJSON); err != nil {
		return nil, err
	}
	if err := writeFile(c.StandardInputPath(), inputJSON); err != nil {
		return nil, err
	}

	c.logger.With("path", contractsPath).With("contracts", len(compiled)).Info("contracts compiled successfully")

	return parseContracts(contractsJSON)
}

// ContractsPath is where the compile output is written.
func (c *Compiler) ContractsPath() string {
	if c.cfg.ContractsFile != "" {
		return c.path(c.cfg.ContractsFile)
	}
	return filepath.Join(c.path(c.cfg.ArtifactsDir), ContractsFileName)
}

// StandardInputPath is where the solc input is kept next to the contracts file.
func (c *Compiler) StandardInputPath() string {
	return filepath.Join(filepath.Dir(c.ContractsPath()), StandardInputFileName)
}

// BuildInput collects every .sol file under the sources directory, plus the
// ERC-1967 proxy from node_modules when it is installed.
func (c *Compiler) BuildInput() (StandardInput, error) {
	input := StandardInput{
		Language: "Solidity",
		Sources:  make(map[string]SourceEntry),
		Settings: Settings{
			Optimizer:  Optimizer{Enabled: c.cfg.Optimizer, Runs: c.cfg.Runs},
			EVMVersion: c.cfg.EVMVersion,
			OutputSelection: map[string]map[string][]string{
				"*": {"*": {"abi", "evm.bytecode.object"}},
			},
		},
	}

	sourcesDir := c.path(c.cfg.SourcesDir)
	err := filepath.WalkDir(sourcesDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || filepath.Ext(path) != ".sol" {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		rel, err := filepath.Rel(c.rootDir, path)
		if err != nil {
			return err
		}
		input.Sources[filepath.ToSlash(rel)] = SourceEntry{Content: string(content)}

		return nil
	})
	if err != nil {
		return StandardInput{}, fmt.Errorf("failed to collect sources from %s: %w", sourcesDir, err)
	}
	if len(input.Sources) == 0 {
		return StandardInput{}, fmt.Errorf("no Solidity sources found in %s", sourcesDir)
	}

	proxy := filepath.Join(c.rootDir, nodeModulesDir, filepath.FromSlash(proxySourcePath))
	content, err := os.ReadFile(proxy)
	switch {
	case err == nil:
		input.Sources[proxySourcePath] = SourceEntry{Content: string(content)}
	case errors.Is(err, fs.ErrNotExist):
		c.logger.With("path", proxy).Warn("ERC1967Proxy source not installed; proxy deployments need a precompiled artifact")
	default:
		return StandardInput{}, fmt.Errorf("failed to read %s: %w", proxy, err)
	}

	return input, nil
}

func (c *Compiler) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.rootDir, p)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadStandardInput reads a standard-json input file written by Compile.
func LoadStandardInput(path string) (StandardInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StandardInput{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var input StandardInput
	if err := json.Unmarshal(data, &input); err != nil {
		return StandardInput{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if !strings.EqualFold(input.Language, "Solidity") {
		return StandardInput{}, fmt.Errorf("%s is not a Solidity standard-json input", path)
	}

	return input, nil
}
