// Package cli команды консольного клиента над сессией проекта
package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/fatih/color"

	"github.com/iudanet/codesync/internal/client/iocli"
	"github.com/iudanet/codesync/internal/client/replica"
	"github.com/iudanet/codesync/pkg/api"
)

var (
	// ErrUsage неверные аргументы команды
	ErrUsage = errors.New("usage")

	// ErrUnknownCommand команда не найдена
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoServer адрес координатора не задан
	ErrNoServer = errors.New("coordinator address is not configured")
)

// Remote служебные запросы к координатору
type Remote interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
	ProjectStats(ctx context.Context, projectID string) (*api.ProjectStats, error)
}

// palette цвета вывода watch и status
type palette struct {
	local  *color.Color
	remote *color.Color
	status *color.Color
	warn   *color.Color
	peer   *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		local:  color.New(color.FgGreen),
		remote: color.New(color.FgCyan),
		status: color.New(color.FgYellow),
		warn:   color.New(color.FgRed, color.Bold),
		peer:   color.New(color.FgMagenta),
	}
	for _, c := range []*color.Color{p.local, p.remote, p.status, p.warn, p.peer} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

type Cli struct {
	io      iocli.IO
	remote  Remote
	session *replica.Session
	colors  palette
}

// New создает клиент команд. colored включает ANSI-цвета в выводе.
func New(io iocli.IO, session *replica.Session, colored bool) *Cli {
	return &Cli{
		io:      io,
		session: session,
		colors:  newPalette(colored),
	}
}

func PrintUsage(io iocli.IO) {
	io.Println("codesync client")
	io.Println()
	io.Println("Usage:")
	io.Println("  codesync [OPTIONS] COMMAND [ARGS]")
	io.Println()
	io.Println("Options:")
	io.Println("  -version            Show version information")
	io.Println("  -server URL         Coordinator URL (default: ws://localhost:8080)")
	io.Println("  -project ID         Project to open (default: demo)")
	io.Println("  -db PATH            Path to local database (default: codesync-client.db)")
	io.Println("  -name NAME          Display name for presence")
	io.Println("  -timeout DURATION   How long to wait for the initial sync (default: 5s)")
	io.Println()
	io.Println("Commands:")
	for _, cmd := range commands {
		io.Printf("  %-28s %s\n", cmd.name+" "+cmd.args, cmd.help)
	}
	io.Println()
	io.Println("Text arguments understand \\n and \\t escapes.")
	io.Println()
	io.Println("Examples:")
	io.Println("  codesync -project demo mkdir src")
	io.Println("  codesync -project demo touch src/main.go")
	io.Println("  codesync -project demo insert src/main.go 0 'package main\\n'")
	io.Println("  codesync -project demo -name alice watch")
}

// WithRemote подключает служебный API координатора для команды server
func (c *Cli) WithRemote(remote Remote) *Cli {
	c.remote = remote
	return c
}

// unescape раскрывает \n, \t и \\ в текстовых аргументах
func unescape(s string) string {
	r := strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\t`, "\t")
	return r.Replace(s)
}
