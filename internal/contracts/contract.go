package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

type (
	Name string

	// Artifact is a compiled contract ready to be deployed.
	Artifact struct {
		Name     Name
		ABI      abi.ABI
		RawABI   string
		Bytecode []byte
	}

	// Set indexes artifacts by contract name.
	Set map[Name]Artifact
)

const (
	NameRewards          Name = "Rewards"
	NameCrossRealmNFT    Name = "CrossRealmNFT"
	NameStaking          Name = "Staking"
	NameChessVerifier    Name = "ChessVerifier"
	NameCheckersVerifier Name = "CheckersVerifier"
	NameTournament       Name = "Tournament"
	NameHub              Name = "Hub"
	NameERC1967Proxy     Name = "ERC1967Proxy"
)

// Names lists every contract the deployer knows how to handle.
var Names = []Name{
	NameRewards,
	NameCrossRealmNFT,
	NameStaking,
	NameChessVerifier,
	NameCheckersVerifier,
	NameTournament,
	NameHub,
	NameERC1967Proxy,
}

func (n Name) Known() bool {
	for _, name := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Get returns the artifact for name or an error naming the missing contract.
func (s Set) Get(name Name) (Artifact, error) {
	artifact, ok := s[name]
	if !ok {
		return Artifact{}, fmt.Errorf("no compiled artifact for %s", name)
	}
	if len(artifact.Bytecode) == 0 {
		return Artifact{}, fmt.Errorf("artifact for %s has empty bytecode (abstract contract or interface?)", name)
	}
	return artifact, nil
}
