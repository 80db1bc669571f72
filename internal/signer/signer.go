// Package signer turns the configured credential into transaction signers.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoSigner is returned when a signer is required but no credential was configured.
var ErrNoSigner = errors.New("no signers loaded: set PRIVATE_KEY (64 hex chars) or network.private-key")

// Signer holds one ECDSA key and the address derived from it.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Resolve parses credential into the available signers. An empty credential
// yields an empty set rather than an error.
func Resolve(credential string) ([]*Signer, error) {
	credential = normalize(credential)
	if credential == "" {
		return []*Signer{}, nil
	}

	key, err := crypto.HexToECDSA(credential)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKey, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}

	return []*Signer{{key: key, address: crypto.PubkeyToAddress(*publicKey)}}, nil
}

// First returns the deployer, the first signer of the set.
func First(signers []*Signer) (*Signer, error) {
	if len(signers) == 0 {
		return nil, ErrNoSigner
	}
	return signers[0], nil
}

// FromKey wraps an already parsed key.
func FromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

// KeyLength reports the credential length after trimming, for diagnostics
// that must not print the key itself.
func KeyLength(credential string) int {
	return len(normalize(credential))
}

// AddressFromPrivateKey derives an Ethereum address from a private key
func AddressFromPrivateKey(privateKeyHex string) (string, error) {
	signers, err := Resolve(privateKeyHex)
	if err != nil {
		return "", err
	}

	s, err := First(signers)
	if err != nil {
		return "", err
	}

	return s.Address().Hex(), nil
}

func normalize(credential string) string {
	return strings.TrimPrefix(strings.TrimSpace(credential), "0x")
}
