package experiment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
)

func TestCatalogLoad(t *testing.T) {
	c := NewCatalog()
	c.Register("mnist", func(r *Registry) error {
		return r.Register("SupervisedRunner", func(map[string]any) (Runner, error) { return &recordedRunner{}, nil })
	})

	for _, expdir := range []string{"mnist", "/work/experiments/mnist", "/work/experiments/mnist/"} {
		reg, err := c.Load(expdir)
		require.NoError(t, err, expdir)
		assert.Equal(t, []string{"SupervisedRunner"}, reg.Names())
	}
}

func TestCatalogLoadErrors(t *testing.T) {
	c := NewCatalog()
	cause := errors.New("missing dataset")
	c.Register("broken", func(*Registry) error { return cause })

	_, err := c.Load("/work/unknown")
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "unknown", valErr.Value)

	_, err = c.Load("/work/broken")
	assert.True(t, errors.Is(err, cause))
}

func TestCatalogRegisterPanics(t *testing.T) {
	c := NewCatalog()
	c.Register("mnist", func(*Registry) error { return nil })

	assert.Panics(t, func() { c.Register("mnist", func(*Registry) error { return nil }) })
	assert.Panics(t, func() { c.Register("nil", nil) })
	assert.Equal(t, []string{"mnist"}, c.Names())
}

func TestParams(t *testing.T) {
	p := Params{"num_epochs": 3, "lr": 0.01, "steps": 100.0, "name": "demo", "bad": "x", "env": "5"}

	n, err := p.Int("num_epochs", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = p.Int("steps", 1)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	n, err = p.Int("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = p.Int("env", 1)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	lr, err := p.Float("lr", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.01, lr)

	name, err := p.String("name", "")
	require.NoError(t, err)
	assert.Equal(t, "demo", name)

	_, err = p.Int("bad", 0)
	assert.Error(t, err)
	_, err = p.Int("lr", 0)
	assert.Error(t, err)
	_, err = p.Float("bad", 0)
	assert.Error(t, err)
	_, err = p.String("num_epochs", "")
	assert.Error(t, err)
}
