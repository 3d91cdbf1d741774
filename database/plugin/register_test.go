// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin_test

import (
	"errors"
	"testing"

	"github.com/blinklabs-io/vaultguard/database/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPlugin struct {
	started bool
}

func (m *mockPlugin) Start() error {
	m.started = true
	return nil
}

func (m *mockPlugin) Stop() error { return nil }

func TestRegisterAndStart(t *testing.T) {
	pluginName := "test-plugin-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type: plugin.PluginTypeBlob,
		Name: pluginName,
		NewFunc: func(plugin.PluginOptions) plugin.Plugin {
			return &mockPlugin{}
		},
	})
	require.NotNil(t, plugin.GetPlugin(plugin.PluginTypeBlob, pluginName))
	assert.Nil(t, plugin.GetPlugin(plugin.PluginTypeMetadata, pluginName))

	p, err := plugin.StartPlugin(
		plugin.PluginTypeBlob,
		pluginName,
		plugin.PluginOptions{},
	)
	require.NoError(t, err)
	mp, ok := p.(*mockPlugin)
	require.True(t, ok)
	assert.True(t, mp.started)
}

func TestGetPluginsFiltersByType(t *testing.T) {
	blobName := "blob-" + t.Name()
	metaName := "meta-" + t.Name()
	newFunc := func(plugin.PluginOptions) plugin.Plugin { return &mockPlugin{} }
	plugin.Register(plugin.PluginEntry{Type: plugin.PluginTypeBlob, Name: blobName, NewFunc: newFunc})
	plugin.Register(plugin.PluginEntry{Type: plugin.PluginTypeMetadata, Name: metaName, NewFunc: newFunc})

	for _, p := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		assert.Equal(t, plugin.PluginTypeBlob, p.Type)
		assert.NotEqual(t, metaName, p.Name)
	}
	found := false
	for _, p := range plugin.GetPlugins(plugin.PluginTypeMetadata) {
		if p.Name == metaName {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStartPluginUnknown(t *testing.T) {
	_, err := plugin.StartPlugin(plugin.PluginTypeBlob, "does-not-exist", plugin.PluginOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStartPluginError(t *testing.T) {
	pluginName := "error-plugin-" + t.Name()
	startErr := errors.New("boom")
	plugin.Register(plugin.PluginEntry{
		Type: plugin.PluginTypeMetadata,
		Name: pluginName,
		NewFunc: func(plugin.PluginOptions) plugin.Plugin {
			return plugin.NewErrorPlugin(startErr)
		},
	})
	_, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, plugin.PluginOptions{})
	require.ErrorIs(t, err, startErr)
}
