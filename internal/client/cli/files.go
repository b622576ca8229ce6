package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/codesync/internal/client/iocli"
	"github.com/iudanet/codesync/internal/client/replica"
	"github.com/iudanet/codesync/internal/models"
)

// ErrIsFolder команда ожидает файл
var ErrIsFolder = errors.New("is a folder")

func (c *Cli) runTree(_ context.Context, _ []string) error {
	out := c.session.FileTree().Render()
	if out == "" {
		c.io.Println("(empty project)")
		return nil
	}
	c.io.Printf("%s", out)
	return nil
}

func (c *Cli) runCat(_ context.Context, args []string) error {
	node, err := c.file(args[0])
	if err != nil {
		return err
	}

	text := c.session.FileTree().File(node.ID).Text()
	c.io.Printf("%s", text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		c.io.Println()
	}
	return nil
}

func (c *Cli) runTouch(_ context.Context, args []string) error {
	tree := c.session.FileTree()
	path := cleanPath(args[0])

	if node, err := tree.Resolve(path); err == nil {
		if node.IsFolder() {
			return fmt.Errorf("%s: %w", path, ErrIsFolder)
		}
		c.io.Printf("%s already exists\n", path)
		return nil
	}

	dir, name := splitPath(path)
	parent, err := c.folder(dir)
	if err != nil {
		return err
	}

	if _, err := tree.CreateFile(parent, name); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	c.io.Printf("Created %s\n", path)
	return nil
}

func (c *Cli) runMkdir(_ context.Context, args []string) error {
	tree := c.session.FileTree()
	path := cleanPath(args[0])
	if path == "" {
		return fmt.Errorf("%w: mkdir <path>", ErrUsage)
	}

	var (
		parent  *models.OpID
		created int
	)
	for _, name := range strings.Split(path, "/") {
		next, ok := childByName(tree, parent, name)
		if ok {
			if !next.IsFolder() {
				return fmt.Errorf("%s: %w", name, replica.ErrNotFolder)
			}
			parent = &next.ID
			continue
		}

		node, err := tree.CreateFolder(parent, name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		parent = &node.ID
		created++
	}

	if created == 0 {
		c.io.Printf("%s already exists\n", path)
		return nil
	}
	c.io.Printf("Created %s/\n", path)
	return nil
}

func (c *Cli) runMove(_ context.Context, args []string) error {
	tree := c.session.FileTree()

	node, err := tree.Resolve(args[0])
	if err != nil {
		return err
	}
	parent, err := c.folder(cleanPath(args[1]))
	if err != nil {
		return err
	}

	if err := tree.Move(node.ID, parent); err != nil {
		return fmt.Errorf("failed to move %s: %w", args[0], err)
	}

	path, err := tree.Path(node.ID)
	if err != nil {
		return err
	}
	c.io.Printf("Moved %s to %s\n", cleanPath(args[0]), path)
	return nil
}

func (c *Cli) runRename(_ context.Context, args []string) error {
	tree := c.session.FileTree()

	node, err := tree.Resolve(args[0])
	if err != nil {
		return err
	}
	if err := tree.Rename(node.ID, args[1]); err != nil {
		return fmt.Errorf("failed to rename %s: %w", args[0], err)
	}

	c.io.Printf("Renamed %s to %s\n", node.Name, args[1])
	return nil
}

func (c *Cli) runRemove(_ context.Context, args []string) error {
	force := false
	if args[0] == "-f" {
		force = true
		args = args[1:]
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: rm [-f] <path>", ErrUsage)
	}

	tree := c.session.FileTree()
	path := cleanPath(args[0])
	node, err := tree.Resolve(path)
	if err != nil {
		return err
	}

	if n := len(tree.Children(&node.ID)); node.IsFolder() && n > 0 && !force {
		ok, err := c.confirm(fmt.Sprintf("Remove folder %s with %d item(s)? (yes/no): ", path, n))
		if err != nil {
			return err
		}
		if !ok {
			c.io.Println("Cancelled.")
			return nil
		}
	}

	removed, err := tree.DeleteRecursive(node.ID)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	c.io.Printf("Removed %s (%d item(s))\n", path, removed)
	return nil
}

func (c *Cli) confirm(prompt string) (bool, error) {
	return confirm(c.io, prompt)
}

func confirm(io iocli.IO, prompt string) (bool, error) {
	answer, err := io.ReadInput(prompt)
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// file находит файл по пути
func (c *Cli) file(path string) (models.FileNode, error) {
	node, err := c.session.FileTree().Resolve(path)
	if err != nil {
		return models.FileNode{}, err
	}
	if node.IsFolder() {
		return models.FileNode{}, fmt.Errorf("%s: %w", cleanPath(path), ErrIsFolder)
	}
	return node, nil
}

// folder находит папку по пути. Пустой путь - корень (nil).
func (c *Cli) folder(path string) (*models.OpID, error) {
	if path == "" {
		return nil, nil
	}

	node, err := c.session.FileTree().Resolve(path)
	if err != nil {
		return nil, err
	}
	if !node.IsFolder() {
		return nil, fmt.Errorf("%s: %w", path, replica.ErrNotFolder)
	}
	return &node.ID, nil
}

// pathOf возвращает путь файла по ID его текстового документа.
// Документы, не связанные с узлом дерева, показываются по ID.
func (c *Cli) pathOf(documentID string) string {
	id, err := models.ParseOpID(documentID)
	if err != nil {
		return documentID
	}
	path, err := c.session.FileTree().Path(id)
	if err != nil {
		return documentID
	}
	return path
}

func childByName(tree *replica.FileTree, parent *models.OpID, name string) (models.FileNode, bool) {
	for _, child := range tree.Children(parent) {
		if child.Name == name {
			return child, true
		}
	}
	return models.FileNode{}, false
}

func cleanPath(path string) string {
	return strings.Trim(path, "/")
}

// splitPath делит "src/pkg/a.go" на "src/pkg" и "a.go"
func splitPath(path string) (string, string) {
	path = cleanPath(path)
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
