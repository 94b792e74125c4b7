package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optisync/optiply-target/pkg/config"
	"github.com/optisync/optiply-target/pkg/connector/core"
)

type stubDestination struct{ core.Destination }

func TestRegisterAndCreateDestination(t *testing.T) {
	r := NewRegistry()

	err := r.RegisterDestination("stub", func(cfg *config.BaseConfig) (core.Destination, error) {
		return &stubDestination{}, nil
	})
	require.NoError(t, err)

	assert.True(t, r.HasDestination("stub"))
	assert.Equal(t, []string{"stub"}, r.ListDestinations())

	dest, err := r.CreateDestination("stub", config.NewBaseConfig("stub", "destination"))
	require.NoError(t, err)
	assert.NotNil(t, dest)
}

func TestRegisterDuplicateDestination(t *testing.T) {
	r := NewRegistry()
	factory := func(cfg *config.BaseConfig) (core.Destination, error) { return &stubDestination{}, nil }

	require.NoError(t, r.RegisterDestination("dup", factory))
	assert.Error(t, r.RegisterDestination("dup", factory))
}

func TestCreateUnknownDestination(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateDestination("missing", config.NewBaseConfig("missing", "destination"))
	assert.Error(t, err)
}
