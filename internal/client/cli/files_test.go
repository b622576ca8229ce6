package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/codesync/internal/client/replica"
	"github.com/iudanet/codesync/internal/crdt"
)

func TestFiles_CreateAndList(t *testing.T) {
	c, _, out := newTestCli(t)

	require.NoError(t, run(t, c, "tree"))
	assert.Equal(t, "(empty project)\n", out.String())

	require.NoError(t, run(t, c, "mkdir src/internal"))
	require.NoError(t, run(t, c, "touch src/main.go"))
	require.NoError(t, run(t, c, "touch /src/internal/util.go/"))
	require.NoError(t, run(t, c, "touch README.md"))

	out.Reset()
	require.NoError(t, run(t, c, "tree"))
	assert.Equal(t, "README.md\nsrc/\n  internal/\n    util.go\n  main.go\n", out.String())

	out.Reset()
	require.NoError(t, run(t, c, "cat src/main.go"))
	assert.Equal(t, "// main.go\n", out.String())

	t.Run("existing paths", func(t *testing.T) {
		out.Reset()
		require.NoError(t, run(t, c, "touch src/main.go"))
		require.NoError(t, run(t, c, "mkdir src"))
		assert.Equal(t, "src/main.go already exists\nsrc already exists\n", out.String())
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			want error
			line string
		}{
			{line: "touch missing/a.go", want: crdt.ErrUnknownNode},
			{line: "touch src", want: ErrIsFolder},
			{line: "touch README.md/x", want: replica.ErrNotFolder},
			{line: "mkdir README.md/docs", want: replica.ErrNotFolder},
			{line: "cat src", want: ErrIsFolder},
			{line: "cat nope.txt", want: crdt.ErrUnknownNode},
		}

		for _, tt := range tests {
			t.Run(tt.line, func(t *testing.T) {
				require.ErrorIs(t, run(t, c, tt.line), tt.want)
			})
		}
	})
}

func TestFiles_MoveAndRename(t *testing.T) {
	c, _, out := newTestCli(t)

	require.NoError(t, run(t, c, "mkdir src/pkg"))
	require.NoError(t, run(t, c, "mkdir lib"))
	require.NoError(t, run(t, c, "touch src/a.go"))

	require.NoError(t, run(t, c, "mv src/a.go lib"))
	require.NoError(t, run(t, c, "rename lib/a.go b.go"))
	require.NoError(t, run(t, c, "mv src/pkg /"))

	out.Reset()
	require.NoError(t, run(t, c, "tree"))
	assert.Equal(t, "lib/\n  b.go\npkg/\nsrc/\n", out.String())

	require.ErrorIs(t, run(t, c, "mv lib lib"), crdt.ErrCyclicMove)
	require.ErrorIs(t, run(t, c, "mv pkg lib/b.go"), replica.ErrNotFolder)
	require.ErrorIs(t, run(t, c, "rename lib/b.go a/b"), replica.ErrInvalidName)
}

func TestFiles_Remove(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		c, mock, out := newTestCli(t, "yes")

		require.NoError(t, run(t, c, "mkdir src/pkg"))
		require.NoError(t, run(t, c, "touch src/pkg/a.go"))
		require.NoError(t, run(t, c, "touch keep.txt"))

		require.NoError(t, run(t, c, "rm src"))
		require.Len(t, mock.ReadInputCalls(), 1)
		assert.Contains(t, mock.ReadInputCalls()[0].Prompt, "Remove folder src with 1 item(s)?")
		assert.Contains(t, out.String(), "Removed src (3 item(s))")

		out.Reset()
		require.NoError(t, run(t, c, "tree"))
		assert.Equal(t, "keep.txt\n", out.String())
	})

	t.Run("cancelled", func(t *testing.T) {
		c, _, out := newTestCli(t, "no")

		require.NoError(t, run(t, c, "mkdir src"))
		require.NoError(t, run(t, c, "touch src/a.go"))

		require.NoError(t, run(t, c, "rm src"))
		assert.Contains(t, out.String(), "Cancelled.")

		out.Reset()
		require.NoError(t, run(t, c, "tree"))
		assert.Equal(t, "src/\n  a.go\n", out.String())
	})

	t.Run("forced and files need no confirmation", func(t *testing.T) {
		c, mock, _ := newTestCli(t)

		require.NoError(t, run(t, c, "mkdir src"))
		require.NoError(t, run(t, c, "touch src/a.go"))
		require.NoError(t, run(t, c, "touch b.go"))

		require.NoError(t, run(t, c, "rm b.go"))
		require.NoError(t, run(t, c, "rm -f src"))
		assert.Empty(t, mock.ReadInputCalls())
		assert.Empty(t, c.session.FileTree().Nodes())
	})
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		dir  string
		name string
	}{
		{path: "a.go", dir: "", name: "a.go"},
		{path: "src/a.go", dir: "src", name: "a.go"},
		{path: "/src/pkg/a.go/", dir: "src/pkg", name: "a.go"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			dir, name := splitPath(tt.path)
			assert.Equal(t, tt.dir, dir)
			assert.Equal(t, tt.name, name)
		})
	}
}
