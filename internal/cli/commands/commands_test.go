package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
	"github.com/modelgraph/modelgraph/internal/scenario/pets"
	"github.com/modelgraph/modelgraph/internal/serialization"
)

const petsV1Document = `elements:
  - type: http://ttc2020/model/scenario4/1.0#//Container
    id: 6f1c1f0e-3f0b-4d3c-9a54-0c2f7c1e0a01
    root: true
    references:
      persons: [alice, bob]
      dogs: [rex, fido]
  - type: http://ttc2020/model/scenario4/1.0#//Person
    id: 6f1c1f0e-3f0b-4d3c-9a54-0c2f7c1e0a02
    attributes:
      name: alice
    references:
      dogs: [rex]
  - type: http://ttc2020/model/scenario4/1.0#//Person
    id: 6f1c1f0e-3f0b-4d3c-9a54-0c2f7c1e0a03
    attributes:
      name: bob
  - type: http://ttc2020/model/scenario4/1.0#//Dog
    id: 6f1c1f0e-3f0b-4d3c-9a54-0c2f7c1e0a04
    attributes:
      name: rex
  - type: http://ttc2020/model/scenario4/1.0#//Dog
    id: 6f1c1f0e-3f0b-4d3c-9a54-0c2f7c1e0a05
    attributes:
      name: fido
`

// workspace creates a temporary working directory holding the pets document
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(oldWd) })

	require.NoError(t, os.WriteFile("v1.yaml", []byte(petsV1Document), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error", "--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func loadDocument(t *testing.T, path string) *serialization.Document {
	t.Helper()
	reg := meta.NewRegistry()
	require.NoError(t, pets.Declare(reg))
	repo := model.NewRepository(reg)
	require.NoError(t, serialization.Load(repo, path, serialization.Options{}))
	return serialization.Encode(repo)
}

func timingLines(t *testing.T, out string) [][]string {
	t.Helper()
	var lines [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, ";")
		require.Len(t, fields, 4, "timing line %q", line)
		lines = append(lines, fields)
	}
	return lines
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "modelgraph", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"version", "completion", "run", "inspect", "store", "watch"} {
		assert.Contains(t, names, expected)
	}
	for _, flag := range []string{"config", "metamodel", "log-level", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	Version, GitCommit = "1.0.0-test", "abc123"

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "modelgraph version: 1.0.0-test")
	assert.Contains(t, out, "abc123")
}

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		scenario string
		iters    string
	}{
		{"copy", []string{"run", "v1.yaml", "out.yaml"}, "copy-forward", "1"},
		{"pets", []string{"run", "v1.yaml", "out.json", "-t", "pets", "-n", "3"}, "pets-forward", "3"},
		{"identity", []string{"run", "v1.yaml", "out.yaml", "--transformation", "identity", "--backward"}, "identity-backward", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t)
			out, err := execute(t, tt.args...)
			require.NoError(t, err)

			lines := timingLines(t, out)
			require.Len(t, lines, 3)
			for i, phase := range []string{"Load", "Initialize", "Transformation"} {
				assert.Equal(t, []string{tt.scenario, phase, tt.iters}, lines[i][:3])
			}

			output := tt.args[2]
			assert.Equal(t, loadDocument(t, "v1.yaml"), loadDocument(t, output))
		})
	}
}

func TestRunCommand_Errors(t *testing.T) {
	t.Run("unknown transformation", func(t *testing.T) {
		workspace(t)
		_, err := execute(t, "run", "v1.yaml", "out.yaml", "-t", "cpy")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown transformation "cpy"`)
		assert.Equal(t, []string{"copy"}, suggestionsFor(err))
	})

	t.Run("invalid iterations", func(t *testing.T) {
		workspace(t)
		_, err := execute(t, "run", "v1.yaml", "out.yaml", "-n", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "iterations must be at least 1")
	})

	t.Run("missing input", func(t *testing.T) {
		workspace(t)
		_, err := execute(t, "run", "missing.yaml", "out.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open missing.yaml")
		assert.NoFileExists(t, "out.yaml")
	})

	t.Run("wrong argument count", func(t *testing.T) {
		workspace(t)
		_, err := execute(t, "run", "v1.yaml")
		require.Error(t, err)
	})
}

func TestRunCommand_Journal(t *testing.T) {
	workspace(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	t.Setenv("MODELGRAPH_JOURNAL_ENABLED", "true")
	t.Setenv("MODELGRAPH_JOURNAL_REDIS_ADDR", mr.Addr())

	out, err := execute(t, "run", "v1.yaml", "out.yaml", "-t", "pets")
	require.NoError(t, err)
	assert.Len(t, timingLines(t, out), 3)

	t.Run("unreachable redis", func(t *testing.T) {
		down, err := miniredis.Run()
		require.NoError(t, err)
		addr := down.Addr()
		down.Close()
		t.Setenv("MODELGRAPH_JOURNAL_REDIS_ADDR", addr)

		_, err = execute(t, "run", "v1.yaml", "out.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to redis")
	})
}

func TestRunCommand_ConfigFile(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("modelgraph.yaml", []byte("iterations: 2\ntransformation: pets\n"), 0o644))

	out, err := execute(t, "run", "v1.yaml", "out.yaml")
	require.NoError(t, err)
	lines := timingLines(t, out)
	assert.Equal(t, []string{"pets-forward", "Load", "2"}, lines[0][:3])
}

func TestInspectCommand(t *testing.T) {
	workspace(t)

	out, err := execute(t, "inspect", "v1.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Model v1.yaml")
	assert.Contains(t, out, "Elements: 5")
	assert.Contains(t, out, "Roots:    1")
	assert.Contains(t, out, "persons=[alice bob], dogs=[rex fido]")
	assert.Contains(t, out, "dogs=[rex]")
	assert.Contains(t, out, "name=fido")

	t.Run("type filter", func(t *testing.T) {
		out, err := execute(t, "inspect", "v1.yaml", "--type", meta.TypeURI(pets.NamespaceV1, "Person"))
		require.NoError(t, err)
		assert.Contains(t, out, "name=alice")
		assert.NotContains(t, out, "name=rex")
	})

	t.Run("ambiguous type", func(t *testing.T) {
		_, err := execute(t, "inspect", "v1.yaml", "--type", "Dog")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ambiguous")
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := execute(t, "inspect", "v1.yaml", "--type", "Dgo")
		require.Error(t, err)
		assert.ErrorIs(t, err, meta.ErrUnknownType)
		assert.Contains(t, suggestionsFor(err), "Dog")
	})
}

func TestStoreCommands(t *testing.T) {
	dir := workspace(t)
	dsn := "file:" + filepath.Join(dir, "models.db")

	out, err := execute(t, "store", "save", "v1.yaml", "--driver", "sqlite3", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "saved 5 elements to sqlite3")

	out, err = execute(t, "store", "load", "restored.json", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 5 elements to restored.json")

	assert.Equal(t, loadDocument(t, "v1.yaml"), loadDocument(t, "restored.json"))

	t.Run("unsupported driver", func(t *testing.T) {
		_, err := execute(t, "store", "load", "x.yaml", "--driver", "mysql")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported store.driver "mysql"`)
	})
}

func TestWatchCommand(t *testing.T) {
	workspace(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--log-level", "error", "--no-color", "watch", "v1.yaml", "out.yaml", "--delay", "10ms"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat("out.yaml")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	lines := timingLines(t, out.String())
	assert.Equal(t, []string{"copy-forward", "Load", "1"}, lines[0][:3])
}

func TestCompletionCommand(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "modelgraph")
}
