package signer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// First default anvil/hardhat account.
const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		wantCount  int
		wantErr    bool
	}{
		{name: "empty credential", credential: "", wantCount: 0},
		{name: "whitespace credential", credential: "  ", wantCount: 0},
		{name: "bare hex", credential: testKey, wantCount: 1},
		{name: "0x prefixed", credential: "0x" + testKey, wantCount: 1},
		{name: "not hex", credential: "zz", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			signers, err := Resolve(tc.credential)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, signers, tc.wantCount)
		})
	}
}

func TestFirst(t *testing.T) {
	_, err := First(nil)
	assert.ErrorIs(t, err, ErrNoSigner)

	signers, err := Resolve(testKey)
	require.NoError(t, err)

	s, err := First(signers)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), s.Address())
}

func TestAddressFromPrivateKey(t *testing.T) {
	addr, err := AddressFromPrivateKey("0x" + testKey)
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr)

	_, err = AddressFromPrivateKey("")
	assert.ErrorIs(t, err, ErrNoSigner)
}

func TestKeyLength(t *testing.T) {
	assert.Equal(t, 64, KeyLength("0x"+testKey))
	assert.Equal(t, 0, KeyLength(""))
}
