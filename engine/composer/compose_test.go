package composer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestResolveRootConfig(t *testing.T) {
	t.Run("Should load a single root yaml config", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dev-wizard.config.yaml"), `
meta:
  name: demo
  version: "1.0.0"
flows:
  main:
    id: main
    steps:
      - id: hello
        type: message
        text: "hi"
scenarios:
  - id: default
    label: Default
    flow: main
`)
		cfg, res, err := Resolve(Options{CWD: dir})
		require.NoError(t, err)
		assert.Equal(t, "demo", cfg.Meta.Name)
		assert.Equal(t, 1, cfg.Meta.SchemaVersion)
		assert.Len(t, cfg.Scenarios, 1)
		assert.Contains(t, cfg.Flows, "main")
		assert.Empty(t, res.Errors)
	})
}

func TestResolveDirectoryOverlay(t *testing.T) {
	t.Run("Should merge base and environment overlays in order", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dev-wizard-config", "index.yaml"), `
meta:
  name: base
  version: "1.0.0"
flows:
  main:
    id: main
    steps:
      - id: s1
        type: message
        text: "base"
scenarios:
  - id: default
    label: Default
    flow: main
`)
		writeFile(t, filepath.Join(dir, "dev-wizard-config", "environments", "prod", "index.yaml"), `
meta:
  name: base-prod
`)
		cfg, _, err := Resolve(Options{CWD: dir, Environment: "prod"})
		require.NoError(t, err)
		assert.Equal(t, "base-prod", cfg.Meta.Name)
	})
}

func TestResolveDuplicateScenarioFails(t *testing.T) {
	t.Run("Should fail composition on a duplicate scenario id", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dev-wizard-config", "index.yaml"), `
meta:
  name: base
  version: "1.0.0"
flows:
  main:
    id: main
    steps:
      - id: s1
        type: message
        text: "hi"
scenarios:
  - id: default
    label: One
    flow: main
  - id: default
    label: Two
    flow: main
`)
		_, res, err := Resolve(Options{CWD: dir})
		assert.Error(t, err)
		require.NotEmpty(t, res.Errors)
	})
}

func TestResolveJSON5(t *testing.T) {
	t.Run("Should parse a json5 file with comments and trailing commas", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dev-wizard.config.json5"), `{
  // top level metadata
  "meta": { "name": "j5", "version": "1.0.0", },
  "flows": {
    "main": { "id": "main", "steps": [ { "id": "s1", "type": "message", "text": "hi", }, ], },
  },
  "scenarios": [ { "id": "default", "label": "Default", "flow": "main", }, ],
}`)
		cfg, _, err := Resolve(Options{CWD: dir})
		require.NoError(t, err)
		assert.Equal(t, "j5", cfg.Meta.Name)
	})
}

func TestResolveImportCycle(t *testing.T) {
	t.Run("Should report a circular import", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dev-wizard.config.yaml"), `
meta:
  name: a
  version: "1.0.0"
imports: ["b.yaml"]
`)
		writeFile(t, filepath.Join(dir, "b.yaml"), `
meta:
  name: b
  version: "1.0.0"
imports: ["dev-wizard.config.yaml"]
`)
		_, _, err := Resolve(Options{CWD: dir})
		require.Error(t, err)
	})
}

func TestResolveExplicitPathMissing(t *testing.T) {
	t.Run("Should error when an explicit path does not exist", func(t *testing.T) {
		dir := t.TempDir()
		_, res, err := Resolve(Options{CWD: dir, ExplicitPaths: []string{"missing.yaml"}})
		assert.Error(t, err)
		assert.NotEmpty(t, res.Errors)
	})
}

func TestLegacyWarning(t *testing.T) {
	t.Run("Should warn on the legacy shared-maintenance filename", func(t *testing.T) {
		w := legacyWarning("/repo/shared-maintenance.flows.yaml", []byte("meta: {}"))
		assert.NotEmpty(t, w)
	})

	t.Run("Should not warn on an ordinary path", func(t *testing.T) {
		w := legacyWarning("/repo/dev-wizard.config.yaml", []byte("meta: {}"))
		assert.Empty(t, w)
	})
}
