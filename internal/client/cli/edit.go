package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

func (c *Cli) runWrite(_ context.Context, args []string) error {
	node, err := c.file(args[0])
	if err != nil {
		return err
	}

	h := c.session.FileTree().File(node.ID)
	text := unescape(joinArgs(args[1:]))

	if n := h.TextLen(); n > 0 {
		if _, err := h.Delete(0, n); err != nil {
			return fmt.Errorf("failed to clear %s: %w", args[0], err)
		}
	}
	if text != "" {
		if _, err := h.Insert(0, text); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[0], err)
		}
	}

	c.io.Printf("Wrote %d character(s) to %s\n", utf8.RuneCountInString(text), cleanPath(args[0]))
	return nil
}

func (c *Cli) runInsert(_ context.Context, args []string) error {
	node, err := c.file(args[0])
	if err != nil {
		return err
	}

	h := c.session.FileTree().File(node.ID)

	pos := h.TextLen()
	if args[1] != "end" {
		if pos, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("%w: invalid position %q", ErrUsage, args[1])
		}
	}

	text := unescape(joinArgs(args[2:]))
	if _, err := h.Insert(pos, text); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", args[0], err)
	}

	c.io.Printf("Inserted %d character(s) at %d\n", utf8.RuneCountInString(text), pos)
	return nil
}

func (c *Cli) runDelete(_ context.Context, args []string) error {
	node, err := c.file(args[0])
	if err != nil {
		return err
	}

	pos, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: invalid position %q", ErrUsage, args[1])
	}
	length, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: invalid length %q", ErrUsage, args[2])
	}

	h := c.session.FileTree().File(node.ID)
	if _, err := h.Delete(pos, length); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", args[0], err)
	}

	c.io.Printf("Deleted %d character(s) at %d\n", length, pos)
	return nil
}

// joinArgs склеивает текст, разбитый оболочкой на несколько аргументов
func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
