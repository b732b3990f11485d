package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/geometry"
)

func TestRegistry(t *testing.T) {
	Register("fake", func(context.Context) (geometry.Engine, error) {
		return geometry.NewFakeEngine(), nil
	})
	t.Cleanup(func() {
		mu.Lock()
		delete(factories, "fake")
		mu.Unlock()
	})

	assert.True(t, Has("fake"))
	assert.Contains(t, List(), "fake")

	factory, err := Get("fake")
	require.NoError(t, err)
	engine, err := factory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake", engine.Name())

	_, err = Get("postgis")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.Contains(t, err.Error(), "fake")
}
