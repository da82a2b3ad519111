package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopRun(pc *Context) error { return nil }

func TestNewPluginRegistryRejectsDuplicateAlias(t *testing.T) {
	_, err := NewPluginRegistry(
		&Plugin{Name: "ping", Aliases: []string{"speed"}, Run: noopRun},
		&Plugin{Name: "latency", Aliases: []string{"speed"}, Run: noopRun},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"speed"`)
	assert.Contains(t, err.Error(), `"ping"`)
	assert.Contains(t, err.Error(), `"latency"`)
}

func TestNewPluginRegistryRejectsDuplicateName(t *testing.T) {
	_, err := NewPluginRegistry(
		&Plugin{Name: "ping", Run: noopRun},
		&Plugin{Name: "Ping", Run: noopRun},
	)
	assert.Error(t, err, "names must be unique case-insensitively")
}

func TestNewPluginRegistryRejectsInvalidPlugins(t *testing.T) {
	_, err := NewPluginRegistry(&Plugin{Name: "  ", Run: noopRun})
	assert.Error(t, err)

	_, err = NewPluginRegistry(&Plugin{Name: "ping"})
	assert.Error(t, err)
}

func TestPluginRegistryResolve(t *testing.T) {
	ping := &Plugin{Name: "ping", Aliases: []string{"speed"}, Run: noopRun}
	registry, err := NewPluginRegistry(ping)
	require.NoError(t, err)

	assert.Same(t, ping, registry.Resolve("ping"))
	assert.Same(t, ping, registry.Resolve("speed"))
	assert.Same(t, ping, registry.Resolve("PING"))
	assert.Nil(t, registry.Resolve("unknown"))
}

func TestPluginRegistryListKeepsOrder(t *testing.T) {
	registry, err := NewPluginRegistry(
		&Plugin{Name: "ping", Run: noopRun},
		&Plugin{Name: "uptime", Run: noopRun},
		&Plugin{Name: "menu", Run: noopRun},
	)
	require.NoError(t, err)

	names := make([]string, 0, 3)
	for _, plugin := range registry.List() {
		names = append(names, plugin.Name)
	}
	assert.Equal(t, []string{"ping", "uptime", "menu"}, names)
}

func TestBuiltinPluginsRegisterCleanly(t *testing.T) {
	registry, err := NewPluginRegistry(BuiltinPlugins()...)
	require.NoError(t, err)
	assert.NotNil(t, registry.Resolve("ping"))
	assert.NotNil(t, registry.Resolve("help"))
	assert.NotNil(t, registry.Resolve("setconfig"))
}
