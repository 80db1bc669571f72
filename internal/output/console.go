package output

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/crossrealm/deployer/internal/chain"
	"github.com/crossrealm/deployer/internal/orchestrator"
	"github.com/crossrealm/deployer/internal/plan"
	"github.com/ethereum/go-ethereum/common"
)

// Console prints the human-readable address listing meant to be copied
// into the front-end.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Started(result *orchestrator.Result, balance *big.Int) {
	c.printf("Deploying with: %s\n", result.Deployer.Hex())
	if balance != nil {
		c.printf("Balance: %s\n", chain.FormatEther(balance))
	}
}

func (c *Console) Deployed(d orchestrator.Deployment) {
	c.printf("%s: %s\n", d.Label, d.Address.Hex())
}

func (c *Console) Wired(call orchestrator.Call) {
	c.printf("%s.%s(%s) done\n", call.Contract, call.Method, strings.Join(call.Args, ", "))
}

func (c *Console) VerificationStarted() {
	c.printf("\nVerifying...\n")
}

func (c *Console) VerificationSkipped(label string, err error) {
	c.printf("%s skip: %s\n", label, err)
}

// Verified is printed by the standalone verify command, which has no final listing.
func (c *Console) Verified(label string, address common.Address) {
	c.printf("%s verified: %s\n", label, address.Hex())
}

// Finished prints the consolidated listing. Every deployed address appears
// again, either through the plan's exports, its verifier map, or a
// generic <LABEL>_ADDRESS line.
func (c *Console) Finished(p plan.Plan, result *orchestrator.Result) {
	c.printf("\nFull deployment complete! Update index.html with:\n")
	for _, line := range Snippet(p, result) {
		c.printf("%s\n", line)
	}
}

// Snippet renders the front-end variable assignments for a finished run.
func Snippet(p plan.Plan, result *orchestrator.Result) []string {
	covered := make(map[string]bool)
	var lines []string

	for _, export := range p.Exports {
		address, ok := result.Address(export.StepID)
		if !ok {
			continue
		}
		covered[export.StepID] = true
		lines = append(lines, fmt.Sprintf("%s = '%s';", export.Variable, address.Hex()))
	}

	if len(p.Verifiers) > 0 {
		entries := make([]string, 0, len(p.Verifiers))
		for _, game := range p.Verifiers {
			address := common.Address{}
			if game.StepID != "" {
				address, _ = result.Address(game.StepID)
				covered[game.StepID] = true
			}
			entries = append(entries, fmt.Sprintf("%s: '%s'", game.Key, address.Hex()))
		}
		lines = append(lines, fmt.Sprintf("VERIFIER_ADDRESSES = { %s };", strings.Join(entries, ", ")))
	}

	for _, d := range result.Deployments {
		if covered[d.StepID] {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s_ADDRESS = '%s';", strings.ToUpper(d.Label), d.Address.Hex()))
	}

	return lines
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.w, format, args...)
}
