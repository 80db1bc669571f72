// Package plan describes what a deployment run does: which contracts are
// created, in which order, with which arguments, and which wiring calls follow.
package plan

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrForwardReference is returned when a step uses an address that no earlier step produces.
	ErrForwardReference = errors.New("forward reference")
	ErrDuplicateStep    = errors.New("duplicate step id")
	// ErrWiringOrder is returned when a deployment follows a wiring call.
	ErrWiringOrder = errors.New("deployment after wiring call")
)

type (
	Kind string

	Step struct {
		ID       string
		Kind     Kind
		Contract contracts.Name
		// Label is printed next to the address, e.g. "NFT" for CrossRealmNFT.
		Label string
		Args  []Arg
		// Initializer is the proxy initializer method, DeployProxy only.
		Initializer string
		// Target and Method identify the wiring call, Call only.
		Target string
		Method string
		Verify bool
	}

	// Export is one "NAME = 'address';" line of the front-end snippet.
	Export struct {
		Variable string
		StepID   string
	}

	// Game maps a game key to its verifier step. An empty StepID prints the zero address.
	Game struct {
		Key    string
		StepID string
	}

	Plan struct {
		Name      configs.PlanName
		Steps     []Step
		Exports   []Export
		Verifiers []Game
	}
)

const (
	KindDeploy      Kind = "deploy"
	KindDeployProxy Kind = "deploy_proxy"
	KindCall        Kind = "call"
)

// Deploy creates a contract with constructor args.
func Deploy(id string, contract contracts.Name, args ...Arg) Step {
	return Step{ID: id, Kind: KindDeploy, Contract: contract, Label: string(contract), Args: args, Verify: true}
}

// DeployProxy creates contract as an implementation and an ERC-1967 proxy
// in front of it, initialized with initializer(args...).
func DeployProxy(id string, contract contracts.Name, initializer string, args ...Arg) Step {
	return Step{ID: id, Kind: KindDeployProxy, Contract: contract, Label: string(contract), Initializer: initializer, Args: args, Verify: true}
}

// Call sends method(args...) to the contract produced by target.
func Call(id, target string, contract contracts.Name, method string, args ...Arg) Step {
	return Step{ID: id, Kind: KindCall, Target: target, Contract: contract, Method: method, Args: args}
}

// WithLabel overrides the printed label.
func (s Step) WithLabel(label string) Step {
	s.Label = label
	return s
}

func (s Step) IsDeployment() bool {
	return s.Kind == KindDeploy || s.Kind == KindDeployProxy
}

// Deployments returns the deploy steps in order.
func (p Plan) Deployments() []Step {
	var steps []Step
	for _, step := range p.Steps {
		if step.IsDeployment() {
			steps = append(steps, step)
		}
	}
	return steps
}

// Calls returns the wiring steps in order.
func (p Plan) Calls() []Step {
	var steps []Step
	for _, step := range p.Steps {
		if step.Kind == KindCall {
			steps = append(steps, step)
		}
	}
	return steps
}

// Contracts lists the artifacts the plan needs, proxies included.
func (p Plan) Contracts() []contracts.Name {
	seen := make(map[contracts.Name]bool)
	var names []contracts.Name
	add := func(name contracts.Name) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, step := range p.Steps {
		add(step.Contract)
		if step.Kind == KindDeployProxy {
			add(contracts.NameERC1967Proxy)
		}
	}

	return names
}

// Validate checks that the plan can run top to bottom: ids are unique, every
// reference points at an earlier deployment and no deployment follows a call.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %s has no steps", p.Name)
	}

	var errs []error
	deployed := make(map[string]bool)
	seen := make(map[string]bool)
	wiring := false

	for i, step := range p.Steps {
		where := fmt.Sprintf("step %d (%s)", i+1, step.ID)

		if step.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", where))
		} else if seen[step.ID] {
			errs = append(errs, fmt.Errorf("%s: %w", where, ErrDuplicateStep))
		}
		seen[step.ID] = true

		if !step.Contract.Known() {
			errs = append(errs, fmt.Errorf("%s: unknown contract %q", where, step.Contract))
		}

		for _, arg := range step.Args {
			if arg.kind == argRef && !deployed[arg.ref] {
				errs = append(errs, fmt.Errorf("%s: argument refers to %q: %w", where, arg.ref, ErrForwardReference))
			}
		}

		switch step.Kind {
		case KindDeploy, KindDeployProxy:
			if wiring {
				errs = append(errs, fmt.Errorf("%s: %w", where, ErrWiringOrder))
			}
			if step.Kind == KindDeployProxy && step.Initializer == "" {
				errs = append(errs, fmt.Errorf("%s: proxy deployment needs an initializer", where))
			}
			deployed[step.ID] = true
		case KindCall:
			wiring = true
			if step.Method == "" {
				errs = append(errs, fmt.Errorf("%s: method is required", where))
			}
			if !deployed[step.Target] {
				errs = append(errs, fmt.Errorf("%s: target %q: %w", where, step.Target, ErrForwardReference))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown step kind %q", where, step.Kind))
		}
	}

	for _, export := range p.Exports {
		if !deployed[export.StepID] {
			errs = append(errs, fmt.Errorf("export %s refers to unknown step %q", export.Variable, export.StepID))
		}
	}
	for _, game := range p.Verifiers {
		if game.StepID != "" && !deployed[game.StepID] {
			errs = append(errs, fmt.Errorf("verifier %s refers to unknown step %q", game.Key, game.StepID))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("plan %s is invalid: %w", p.Name, errors.Join(errs...))
	}

	return nil
}

type argKind int

const (
	argRef argKind = iota
	argDeployer
	argValue
)

// Arg is a constructor, initializer or call argument.
type Arg struct {
	kind  argKind
	ref   string
	value any
}

// Ref is the address produced by the step with id stepID.
func Ref(stepID string) Arg {
	return Arg{kind: argRef, ref: stepID}
}

// Deployer is the signer's address.
func Deployer() Arg {
	return Arg{kind: argDeployer}
}

func Address(address common.Address) Arg {
	return Arg{kind: argValue, value: address}
}

func String(s string) Arg {
	return Arg{kind: argValue, value: s}
}

func Uint(n uint64) Arg {
	return Arg{kind: argValue, value: new(big.Int).SetUint64(n)}
}

// Resolve turns the argument into an ABI value using the addresses produced so far.
func (a Arg) Resolve(deployer common.Address, addresses map[string]common.Address) (any, error) {
	switch a.kind {
	case argRef:
		address, ok := addresses[a.ref]
		if !ok {
			return nil, fmt.Errorf("address of %q is not known yet: %w", a.ref, ErrForwardReference)
		}
		return address, nil
	case argDeployer:
		return deployer, nil
	default:
		return a.value, nil
	}
}

// ResolveAll resolves args in order.
func ResolveAll(args []Arg, deployer common.Address, addresses map[string]common.Address) ([]any, error) {
	values := make([]any, 0, len(args))
	for _, arg := range args {
		value, err := arg.Resolve(deployer, addresses)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func (a Arg) String() string {
	switch a.kind {
	case argRef:
		return "ref(" + a.ref + ")"
	case argDeployer:
		return "deployer"
	default:
		if address, ok := a.value.(common.Address); ok {
			return address.Hex()
		}
		return fmt.Sprint(a.value)
	}
}
