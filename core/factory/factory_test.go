package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type solverStub struct {
	MaxNodes int
	Path     string
}

type solverStubConf struct {
	MaxNodes int    `json:"max_nodes"`
	Path     string `json:"path"`
}

func newStubRegistry(t *testing.T) *Registry[*solverStub] {
	t.Helper()
	reg := NewRegistry[*solverStub]()
	require.NoError(t, reg.Register("stub", func(conf map[string]any) (*solverStub, error) {
		var c solverStubConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &solverStub{MaxNodes: c.MaxNodes, Path: c.Path}, nil
	}))
	return reg
}

func TestRegistryCreate(t *testing.T) {
	reg := newStubRegistry(t)
	inst, err := reg.Create(ModuleConfig{Type: "stub", Conf: map[string]any{"max_nodes": 3, "path": "/usr/bin/cbc"}})
	require.NoError(t, err)
	assert.Equal(t, 3, inst.MaxNodes)
	assert.Equal(t, "/usr/bin/cbc", inst.Path)
	assert.Equal(t, []string{"stub"}, reg.Types())
}

// Environment overrides arrive as strings.
func TestRegistryCreateWeaklyTyped(t *testing.T) {
	reg := newStubRegistry(t)
	inst, err := reg.Create(ModuleConfig{Type: "stub", Conf: map[string]any{"max_nodes": "250"}})
	require.NoError(t, err)
	assert.Equal(t, 250, inst.MaxNodes)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("y", nil))
	_, err := reg.Create(ModuleConfig{Type: "y"})
	assert.Error(t, err)
}
