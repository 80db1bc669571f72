package contracts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type (
	// StandardInput is solc's standard-json input. It is also the source
	// bundle explorers accept for verification.
	StandardInput struct {
		Language string                 `json:"language"`
		Sources  map[string]SourceEntry `json:"sources"`
		Settings Settings               `json:"settings"`
	}

	SourceEntry struct {
		Content string `json:"content"`
	}

	Settings struct {
		Optimizer       Optimizer                      `json:"optimizer"`
		EVMVersion      string                         `json:"evmVersion,omitempty"`
		Remappings      []string                       `json:"remappings,omitempty"`
		OutputSelection map[string]map[string][]string `json:"outputSelection"`
	}

	Optimizer struct {
		Enabled bool `json:"enabled"`
		Runs    int  `json:"runs"`
	}

	standardOutput struct {
		Errors []struct {
			Severity         string `json:"severity"`
			FormattedMessage string `json:"formattedMessage"`
			Message          string `json:"message"`
		} `json:"errors"`
		Contracts map[string]map[string]struct {
			ABI json.RawMessage `json:"abi"`
			EVM struct {
				Bytecode struct {
					Object string `json:"object"`
				} `json:"bytecode"`
			} `json:"evm"`
		} `json:"contracts"`
	}
)

// SourcePath returns the source unit that declares contract name, e.g.
// "contracts/Hub.sol". Only a single declaration is accepted.
func (in StandardInput) SourcePath(name Name) (string, error) {
	var found []string
	for path, source := range in.Sources {
		if declaresContract(source.Content, string(name)) {
			found = append(found, path)
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("no source declares contract %s", name)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("contract %s is declared in several sources: %v", name, found)
	}
}

func declaresContract(content, name string) bool {
	pattern := regexp.MustCompile(`(?m)^\s*contract\s+` + regexp.QuoteMeta(name) + `\b`)
	return pattern.MatchString(content)
}

// parseStandardOutput extracts the known contracts from solc output. Any
// error-severity diagnostic fails the whole compilation.
func parseStandardOutput(data []byte) (map[Name]compiledOutput, error) {
	var out standardOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse solc output: %w", err)
	}

	var messages []string
	for _, diagnostic := range out.Errors {
		if diagnostic.Severity != "error" {
			continue
		}
		msg := diagnostic.FormattedMessage
		if msg == "" {
			msg = diagnostic.Message
		}
		messages = append(messages, strings.TrimSpace(msg))
	}
	if len(messages) > 0 {
		return nil, fmt.Errorf("solc reported %d error(s):\n%s", len(messages), strings.Join(messages, "\n"))
	}

	result := make(map[Name]compiledOutput)
	for path, byName := range out.Contracts {
		for name, contract := range byName {
			if !Name(name).Known() {
				continue
			}
			if _, dup := result[Name(name)]; dup {
				return nil, fmt.Errorf("contract %s is produced by more than one source (%s)", name, path)
			}
			result[Name(name)] = compiledOutput{
				ABI:      contract.ABI,
				Bytecode: "0x" + strings.TrimPrefix(contract.EVM.Bytecode.Object, "0x"),
			}
		}
	}

	return result, nil
}

type compiledOutput struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode string          `json:"bytecode"`
}
