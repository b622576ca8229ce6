package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const shellPrompt = "codesync> "

var errUnterminatedQuote = errors.New("unterminated quote")

func (c *Cli) runShell(ctx context.Context, _ []string) error {
	prompt := ""
	if c.io.Interactive() {
		prompt = shellPrompt
		c.io.Println("Type 'help' for commands, 'exit' to quit.")
	}

	for ctx.Err() == nil {
		line, err := c.io.ReadInput(prompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read command: %w", err)
		}

		args, err := splitArgs(line)
		if err != nil {
			c.printError(err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return nil
		case "shell", "watch":
			c.printError(fmt.Errorf("%s is not available inside the shell", args[0]))
			continue
		}

		if err := c.Run(ctx, args); err != nil {
			c.printError(err)
		}
	}

	return nil
}

func (c *Cli) printError(err error) {
	c.io.Println(c.colors.warn.Sprintf("Error: %v", err))
}

// splitArgs делит строку на аргументы по пробелам с учетом одинарных и
// двойных кавычек
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, errUnterminatedQuote
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
