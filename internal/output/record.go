package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crossrealm/deployer/internal/contracts"
	"github.com/crossrealm/deployer/internal/orchestrator"
	"gopkg.in/yaml.v3"
)

// NewRecord builds the record of a run. Artifacts supply the ABIs; a
// missing artifact leaves the ABI empty.
func NewRecord(network string, result *orchestrator.Result, artifacts contracts.Set) Record {
	record := Record{
		RunID:      result.RunID.String(),
		Plan:       string(result.Plan),
		Network:    network,
		Deployer:   result.Deployer,
		StartedAt:  result.StartedAt.Format(time.RFC3339),
		FinishedAt: result.FinishedAt.Format(time.RFC3339),
	}
	if result.ChainID != nil {
		record.ChainID = result.ChainID.Uint64()
	}

	for _, d := range result.Deployments {
		contract := ContractRecord{
			Step:            d.StepID,
			Name:            string(d.Contract),
			Label:           d.Label,
			Address:         d.Address,
			TxHash:          d.TxHash,
			ConstructorArgs: d.ConstructorArgs,
			Verify:          d.Verify,
			ABI:             SingleQuotedString(compactJSON(artifacts[d.Contract].RawABI)),
		}
		if d.IsProxy() {
			implementation := d.Implementation
			contract.Implementation = &implementation
		}
		record.Contracts = append(record.Contracts, contract)
	}

	for _, c := range result.Calls {
		record.Calls = append(record.Calls, CallRecord{
			Step:     c.StepID,
			Contract: string(c.Contract),
			Target:   c.Target,
			Method:   c.Method,
			Args:     c.Args,
			TxHash:   c.TxHash,
		})
	}

	for _, v := range result.Verifications {
		record.Verifications = append(record.Verifications, VerificationRecord{
			Step:     v.StepID,
			Address:  v.Address,
			Verified: v.Verified,
			Reason:   v.Reason,
		})
	}

	return record
}

// Deployments converts the record back into deployments, for re-verification.
func (r Record) Deployments() []orchestrator.Deployment {
	deployments := make([]orchestrator.Deployment, 0, len(r.Contracts))
	for _, c := range r.Contracts {
		d := orchestrator.Deployment{
			StepID:          c.Step,
			Contract:        contracts.Name(c.Name),
			Label:           c.Label,
			Address:         c.Address,
			TxHash:          c.TxHash,
			ConstructorArgs: c.ConstructorArgs,
			Verify:          c.Verify,
		}
		if c.Implementation != nil {
			d.Implementation = *c.Implementation
		}
		deployments = append(deployments, d)
	}
	return deployments
}

// WriteRecord writes record as YAML or JSON depending on the extension of path.
func WriteRecord(path string, record Record) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(record)
	case ".json":
		data, err = json.MarshalIndent(record, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unsupported record format: %s", path)
	}
	if err != nil {
		return fmt.Errorf("could not marshal deployment record. Err: '%w'", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write deployment record. Err: '%w'", err)
	}

	return nil
}

// ReadRecord loads a record written by WriteRecord.
func ReadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var record Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &record)
	case ".json":
		err = json.Unmarshal(data, &record)
	default:
		return Record{}, fmt.Errorf("unsupported record format: %s", path)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return record, nil
}

func compactJSON(jsonStr string) string {
	if jsonStr == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonStr)); err != nil {
		return jsonStr
	}
	return buf.String()
}
