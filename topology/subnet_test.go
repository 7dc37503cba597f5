package topology

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zinrai/seedplan/registry"
)

func TestSubnetAllocatorSequence(t *testing.T) {
	s, err := NewSubnetAllocator(5)
	require.NoError(t, err)
	assert.Equal(t, "10.5.0.0/16", s.Block().String())

	for k := 1; k <= 256; k++ {
		p, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("10.5.%d.0/24", k-1), p.String())
	}
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrSubnetExhausted)
}

func TestSubnetAllocatorLargeASN(t *testing.T) {
	_, err := NewSubnetAllocator(256)
	assert.ErrorIs(t, err, ErrAutoSubnetUnavailable)

	_, err = NewSubnetAllocator(255)
	assert.NoError(t, err)
}

func TestCreateNetworkAuto(t *testing.T) {
	as := NewAutonomousSystem(5, registry.New())

	net0, err := as.CreateNetwork("net0", AutoAddress, nil)
	require.NoError(t, err)
	net1, err := as.CreateNetwork("net1", AutoAddress, nil)
	require.NoError(t, err)

	assert.Equal(t, "10.5.0.0/24", net0.Prefix().String())
	assert.Equal(t, "10.5.1.0/24", net1.Prefix().String())
	assert.Equal(t, NetworkLocal, net0.Type())

	got, err := as.GetNetwork("net1")
	require.NoError(t, err)
	assert.Same(t, net1, got)
	assert.Equal(t, []*Network{net0, net1}, as.Networks())
}

func TestCreateNetworkAutoExhausted(t *testing.T) {
	as := NewAutonomousSystem(9, registry.New())
	for k := 0; k < 256; k++ {
		_, err := as.CreateNetwork(fmt.Sprintf("net%d", k), AutoAddress, nil)
		require.NoError(t, err)
	}
	_, err := as.CreateNetwork("net256", AutoAddress, nil)
	assert.ErrorIs(t, err, ErrSubnetExhausted)
}

func TestCreateNetworkLargeASN(t *testing.T) {
	as := NewAutonomousSystem(11872, registry.New())

	_, err := as.CreateNetwork("net0", AutoAddress, nil)
	assert.ErrorIs(t, err, ErrAutoSubnetUnavailable)

	net, err := as.CreateNetwork("net0", "128.230.0.0/16", nil)
	require.NoError(t, err)
	assert.Equal(t, "128.230.0.0/16", net.Prefix().String())
}

func TestCreateNetworkErrors(t *testing.T) {
	as := NewAutonomousSystem(7, registry.New())

	_, err := as.CreateNetwork("net0", "10.7.0.0/24", nil)
	require.NoError(t, err)

	_, err = as.CreateNetwork("net0", AutoAddress, nil)
	assert.ErrorIs(t, err, registry.ErrExists)

	_, err = as.CreateNetwork("bad", "10.7.0.0", nil)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = as.GetNetwork("missing")
	assert.ErrorIs(t, err, ErrNetworkNotFound)

	// The duplicate did not consume a block.
	net, err := as.CreateNetwork("net1", AutoAddress, nil)
	require.NoError(t, err)
	assert.Equal(t, "10.7.0.0/24", net.Prefix().String())
}
