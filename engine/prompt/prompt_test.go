package prompt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mathieu007/dev-wizard-engine/engine/step"
	"github.com/mathieu007/dev-wizard-engine/engine/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	result wizard.CommandResult
	err    error
	calls  int
}

func (f *fakeRunner) Run(context.Context, wizard.RunRequest) (wizard.CommandResult, error) {
	f.calls++
	return f.result, f.err
}

func TestRegistryResolveCommand(t *testing.T) {
	t.Run("Should parse JSON stdout into options", func(t *testing.T) {
		runner := &fakeRunner{result: wizard.CommandResult{ExitCode: 0, Stdout: `[{"value":"a","label":"Alpha"},{"value":"b","label":"Beta"}]`}}
		r := NewRegistry(t.TempDir(), runner)

		opts, err := r.Resolve(context.Background(), &step.DynamicOptions{Type: "command", Config: map[string]any{"command": "list"}})
		require.NoError(t, err)
		require.Len(t, opts, 2)
		assert.Equal(t, "Alpha", opts[0].Label)
	})

	t.Run("Should fail when no runner is wired", func(t *testing.T) {
		r := NewRegistry(t.TempDir(), nil)
		_, err := r.Resolve(context.Background(), &step.DynamicOptions{Type: "command", Config: map[string]any{"command": "list"}})
		assert.Error(t, err)
	})
}

func TestRegistryResolveGlob(t *testing.T) {
	t.Run("Should match files relative to a cwd", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.ts"), []byte(""), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "b.js"), []byte(""), 0o644))

		r := NewRegistry(dir, nil)
		opts, err := r.Resolve(context.Background(), &step.DynamicOptions{
			Type:   "glob",
			Config: map[string]any{"pattern": "**/*.ts", "cwd": "src"},
		})
		require.NoError(t, err)
		require.Len(t, opts, 1)
		assert.Equal(t, "a.ts", opts[0].Value)
	})
}

func TestRegistryResolveJSON(t *testing.T) {
	t.Run("Should traverse a JSON pointer into an array of records", func(t *testing.T) {
		dir := t.TempDir()
		data, _ := json.Marshal(map[string]any{
			"environments": []map[string]any{
				{"value": "staging", "label": "Staging"},
				{"value": "prod", "label": "Production"},
			},
		})
		require.NoError(t, os.WriteFile(filepath.Join(dir, "envs.json"), data, 0o644))

		r := NewRegistry(dir, nil)
		opts, err := r.Resolve(context.Background(), &step.DynamicOptions{
			Type:   "json",
			Config: map[string]any{"path": "envs.json", "pointer": "/environments"},
		})
		require.NoError(t, err)
		require.Len(t, opts, 2)
		assert.Equal(t, "Production", opts[1].Label)
	})
}

func TestRegistryResolveWorkspaceProjects(t *testing.T) {
	t.Run("Should discover directories containing a package.json", func(t *testing.T) {
		dir := t.TempDir()
		mkPkg := func(rel, name string) {
			full := filepath.Join(dir, rel)
			require.NoError(t, os.MkdirAll(full, 0o755))
			data, _ := json.Marshal(map[string]string{"name": name})
			require.NoError(t, os.WriteFile(filepath.Join(full, "package.json"), data, 0o644))
		}
		mkPkg("apps/api", "api")
		mkPkg("apps/web", "web")
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "ignored"), 0o755))

		r := NewRegistry(dir, nil)
		opts, err := r.Resolve(context.Background(), &step.DynamicOptions{Type: "workspace-projects"})
		require.NoError(t, err)
		require.Len(t, opts, 2)
		assert.Equal(t, "apps/api", opts[0].Value)
	})
}

func TestRegistryResolveProjectTsconfigs(t *testing.T) {
	t.Run("Should list tsconfig files plus a custom-path option", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "apps", "api"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "apps", "api", "tsconfig.json"), []byte("{}"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "apps", "api", "tsconfig.build.json"), []byte("{}"), 0o644))

		r := NewRegistry(dir, nil)
		opts, err := r.Resolve(context.Background(), &step.DynamicOptions{
			Type:   "project-tsconfigs",
			Config: map[string]any{"projectDir": "apps/api"},
		})
		require.NoError(t, err)
		require.Len(t, opts, 3)
		assert.Equal(t, "Custom path…", opts[2].Label)
	})

	t.Run("Should omit the custom-path option when disabled", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "apps", "api"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "apps", "api", "tsconfig.json"), []byte("{}"), 0o644))

		r := NewRegistry(dir, nil)
		opts, err := r.Resolve(context.Background(), &step.DynamicOptions{
			Type:   "project-tsconfigs",
			Config: map[string]any{"projectDir": "apps/api", "disableCustomPath": true},
		})
		require.NoError(t, err)
		require.Len(t, opts, 1)
	})
}

func TestRegistryCaching(t *testing.T) {
	t.Run("Should cache session-scoped results across calls on the same Registry", func(t *testing.T) {
		runner := &fakeRunner{result: wizard.CommandResult{ExitCode: 0, Stdout: `[{"value":"a","label":"Alpha"}]`}}
		r := NewRegistry(t.TempDir(), runner)
		dyn := &step.DynamicOptions{
			Type:   "command",
			Config: map[string]any{"command": "list"},
			Cache:  &step.DynamicOptionsCache{Mode: step.CacheSession},
		}

		_, err := r.Resolve(context.Background(), dyn)
		require.NoError(t, err)
		_, err = r.Resolve(context.Background(), dyn)
		require.NoError(t, err)

		assert.Equal(t, 1, runner.calls, "second resolve should hit the session cache")
	})

	t.Run("Should not cache when no cache directive is set", func(t *testing.T) {
		runner := &fakeRunner{result: wizard.CommandResult{ExitCode: 0, Stdout: `[{"value":"a","label":"Alpha"}]`}}
		r := NewRegistry(t.TempDir(), runner)
		dyn := &step.DynamicOptions{Type: "command", Config: map[string]any{"command": "list"}}

		_, err := r.Resolve(context.Background(), dyn)
		require.NoError(t, err)
		_, err = r.Resolve(context.Background(), dyn)
		require.NoError(t, err)

		assert.Equal(t, 2, runner.calls)
	})
}

func TestApplyMapping(t *testing.T) {
	t.Run("Should rewrite raw records through a custom mapping", func(t *testing.T) {
		records := []map[string]any{
			{"id": "a", "name": "Alpha", "archived": true},
		}
		mapping := &step.OptionMapping{Value: "id", Label: "name", DisableWhen: "archived"}

		opts := applyMapping(records, mapping)
		require.Len(t, opts, 1)
		assert.Equal(t, "a", opts[0].Value)
		assert.Equal(t, "Alpha", opts[0].Label)
		assert.True(t, opts[0].Disabled)
	})
}
