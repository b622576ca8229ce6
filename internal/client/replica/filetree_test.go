package replica

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/codesync/internal/crdt"
	"github.com/iudanet/codesync/internal/models"
)

// offlineTree возвращает дерево сессии без соединения с координатором
func offlineTree(t *testing.T) (*Session, *FileTree) {
	t.Helper()

	h := newHarness(t)
	h.setOffline("a", true)
	s := h.connect("a")

	return s, s.FileTree()
}

func TestFileTree_CreateFile(t *testing.T) {
	_, tree := offlineTree(t)

	src, err := tree.CreateFolder(nil, "src")
	require.NoError(t, err)
	assert.True(t, src.IsFolder())

	file, err := tree.CreateFile(&src.ID, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "main.go", file.Name)
	require.NotNil(t, file.ParentID)
	assert.Equal(t, src.ID, *file.ParentID)

	assert.Equal(t, "// main.go\n", tree.File(file.ID).Text())

	path, err := tree.Path(file.ID)
	require.NoError(t, err)
	assert.Equal(t, "src/main.go", path)
}

func TestFileTree_CreateErrors(t *testing.T) {
	_, tree := offlineTree(t)

	file, err := tree.CreateFile(nil, "README.md")
	require.NoError(t, err)
	unknown := models.OpID{Replica: "nobody", Clock: 42}

	tests := []struct {
		parent *models.OpID
		want   error
		name   string
		node   string
	}{
		{name: "empty name", node: "", want: ErrInvalidName},
		{name: "slash in name", node: "a/b", want: ErrInvalidName},
		{name: "dot", node: ".", want: ErrInvalidName},
		{name: "parent is file", node: "x", parent: &file.ID, want: ErrNotFolder},
		{name: "unknown parent", node: "x", parent: &unknown, want: crdt.ErrUnknownNode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tree.CreateFolder(tt.parent, tt.node)
			require.ErrorIs(t, err, tt.want)
		})
	}

	assert.Len(t, tree.Nodes(), 1)
}

func TestFileTree_RenameAndMove(t *testing.T) {
	_, tree := offlineTree(t)

	src, err := tree.CreateFolder(nil, "src")
	require.NoError(t, err)
	lib, err := tree.CreateFolder(nil, "lib")
	require.NoError(t, err)
	file, err := tree.CreateFile(&src.ID, "util.go")
	require.NoError(t, err)

	require.NoError(t, tree.Rename(file.ID, "helpers.go"))
	require.NoError(t, tree.Move(file.ID, &lib.ID))

	moved, err := tree.Resolve("lib/helpers.go")
	require.NoError(t, err)
	assert.Equal(t, file.ID, moved.ID)

	_, err = tree.Resolve("src/util.go")
	require.ErrorIs(t, err, crdt.ErrUnknownNode)

	require.ErrorIs(t, tree.Rename(file.ID, ""), ErrInvalidName)
	require.ErrorIs(t, tree.Move(src.ID, &file.ID), ErrNotFolder)
	require.ErrorIs(t, tree.Move(src.ID, &src.ID), crdt.ErrCyclicMove)

	// Перенос в корень
	require.NoError(t, tree.Move(file.ID, nil))
	path, err := tree.Path(file.ID)
	require.NoError(t, err)
	assert.Equal(t, "helpers.go", path)

	// Текст файла не зависит от его места в дереве
	assert.Equal(t, "// util.go\n", tree.File(file.ID).Text())
}

func TestFileTree_Render(t *testing.T) {
	_, tree := offlineTree(t)

	src, err := tree.CreateFolder(nil, "src")
	require.NoError(t, err)
	_, err = tree.CreateFile(&src.ID, "main.go")
	require.NoError(t, err)
	internal, err := tree.CreateFolder(&src.ID, "internal")
	require.NoError(t, err)
	_, err = tree.CreateFile(&internal.ID, "a.go")
	require.NoError(t, err)
	_, err = tree.CreateFile(nil, "go.mod")
	require.NoError(t, err)

	want := "go.mod\n" +
		"src/\n" +
		"  internal/\n" +
		"    a.go\n" +
		"  main.go\n"

	if diff := cmp.Diff(want, tree.Render()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestFileTree_Resolve(t *testing.T) {
	_, tree := offlineTree(t)

	src, err := tree.CreateFolder(nil, "src")
	require.NoError(t, err)
	file, err := tree.CreateFile(&src.ID, "main.go")
	require.NoError(t, err)

	tests := []struct {
		want    *models.OpID
		name    string
		path    string
		wantErr bool
	}{
		{name: "folder", path: "src", want: &src.ID},
		{name: "file", path: "src/main.go", want: &file.ID},
		{name: "slashes are trimmed", path: "/src/main.go/", want: &file.ID},
		{name: "missing", path: "src/other.go", wantErr: true},
		{name: "empty", path: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := tree.Resolve(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, crdt.ErrUnknownNode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, *tt.want, node.ID)
		})
	}
}

func TestFileTree_DeleteRecursive(t *testing.T) {
	s, tree := offlineTree(t)

	src, err := tree.CreateFolder(nil, "src")
	require.NoError(t, err)
	main, err := tree.CreateFile(&src.ID, "main.go")
	require.NoError(t, err)
	pkg, err := tree.CreateFolder(&src.ID, "pkg")
	require.NoError(t, err)
	nested, err := tree.CreateFile(&pkg.ID, "nested.go")
	require.NoError(t, err)
	keep, err := tree.CreateFile(nil, "keep.txt")
	require.NoError(t, err)

	n, err := tree.DeleteRecursive(src.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, "keep.txt\n", tree.Render())
	assert.Empty(t, tree.File(main.ID).Text())
	assert.Empty(t, tree.File(nested.ID).Text())
	assert.Equal(t, "// keep.txt\n", tree.File(keep.ID).Text())

	node, ok := tree.Get(src.ID)
	require.True(t, ok)
	assert.True(t, node.Deleted)

	_, err = tree.DeleteRecursive(models.OpID{Replica: s.ReplicaID(), Clock: 999})
	require.ErrorIs(t, err, crdt.ErrUnknownNode)
}

func TestFileTree_Delete(t *testing.T) {
	_, tree := offlineTree(t)

	folder, err := tree.CreateFolder(nil, "docs")
	require.NoError(t, err)
	_, err = tree.CreateFile(&folder.ID, "guide.md")
	require.NoError(t, err)

	require.NoError(t, tree.Delete(folder.ID))
	assert.Empty(t, tree.Render())
	assert.Empty(t, tree.Children(&folder.ID))
}
