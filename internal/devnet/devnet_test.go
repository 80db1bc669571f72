package devnet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/infra/docker"
	"github.com/crossrealm/deployer/internal/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	running  bool
	started  []docker.ServiceOptions
	removed  []string
	ensured  []string
	startErr error
}

func (f *fakeRuntime) EnsureImage(_ context.Context, imageName string) error {
	f.ensured = append(f.ensured, imageName)
	return nil
}

func (f *fakeRuntime) StartService(_ context.Context, opts docker.ServiceOptions) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, opts)
	return "abc123", nil
}

func (f *fakeRuntime) ServiceRunning(context.Context, string) (bool, error) {
	return f.running, nil
}

func (f *fakeRuntime) RemoveService(_ context.Context, name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func testConfig() configs.Devnet {
	return configs.Devnet{
		Image:         "ghcr.io/foundry-rs/foundry:latest",
		ContainerName: "crossrealm-devnet",
		Port:          18545,
		ChainID:       1116,
	}
}

func newTestDevnet(runtime Runtime, waitErr error) (*Devnet, *[]string) {
	var waited []string
	d := New(testConfig(), runtime)
	d.wait = func(_ context.Context, url string, _ int, _ time.Duration) error {
		waited = append(waited, url)
		return waitErr
	}
	return d, &waited
}

func TestDevnet_ServiceOptions(t *testing.T) {
	d := New(testConfig(), &fakeRuntime{})
	opts := d.ServiceOptions()

	assert.Equal(t, "crossrealm-devnet", opts.Name)
	assert.Equal(t, []string{"anvil"}, opts.Entrypoint)
	assert.Equal(t, []string{"--host", "0.0.0.0", "--port", "8545", "--chain-id", "1116"}, opts.Cmd)
	assert.Equal(t, 8545, opts.ContainerPort)
	assert.Equal(t, 18545, opts.HostPort)
	assert.Equal(t, "http://127.0.0.1:18545", d.RPCURL())
}

func TestDevnet_Up(t *testing.T) {
	runtime := &fakeRuntime{}
	d, waited := newTestDevnet(runtime, nil)

	info, err := d.Up(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, "abc123", info.ContainerID)
	assert.Equal(t, "http://127.0.0.1:18545", info.RPCURL)
	assert.Equal(t, []string{"ghcr.io/foundry-rs/foundry:latest"}, runtime.ensured)
	assert.Equal(t, []string{"crossrealm-devnet"}, runtime.removed)
	assert.Len(t, runtime.started, 1)
	assert.Equal(t, []string{info.RPCURL}, *waited)

	address, err := signer.AddressFromPrivateKey(info.Key)
	require.NoError(t, err)
	assert.Equal(t, DevAddress, address)
}

func TestDevnet_UpReusesRunningContainer(t *testing.T) {
	runtime := &fakeRuntime{running: true}
	d, waited := newTestDevnet(runtime, nil)

	info, err := d.Up(context.Background(), 5)
	require.NoError(t, err)

	assert.Empty(t, info.ContainerID)
	assert.Empty(t, runtime.started)
	assert.Empty(t, runtime.ensured)
	assert.Len(t, *waited, 1)
}

func TestDevnet_UpErrors(t *testing.T) {
	d, _ := newTestDevnet(&fakeRuntime{}, errors.New("timed out"))
	_, err := d.Up(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "devnet did not become ready")

	d, _ = newTestDevnet(&fakeRuntime{startErr: errors.New("port is already allocated")}, nil)
	_, err = d.Up(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port is already allocated")

	cfg := testConfig()
	cfg.Port = 0
	_, err = New(cfg, &fakeRuntime{}).Up(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "devnet.port is out of range")
}

func TestDevnet_Down(t *testing.T) {
	runtime := &fakeRuntime{}
	require.NoError(t, New(testConfig(), runtime).Down(context.Background()))
	assert.Equal(t, []string{"crossrealm-devnet"}, runtime.removed)
}
