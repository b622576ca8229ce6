package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/term"

	capi "github.com/iudanet/codesync/internal/client/api"
	"github.com/iudanet/codesync/internal/client/cli"
	"github.com/iudanet/codesync/internal/client/iocli"
	"github.com/iudanet/codesync/internal/client/replica"
	"github.com/iudanet/codesync/internal/client/storage"
	"github.com/iudanet/codesync/internal/client/storage/boltdb"
	"github.com/iudanet/codesync/internal/models"
	"github.com/iudanet/codesync/internal/transport"
	"github.com/iudanet/codesync/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// userColors цвета курсоров участников
var userColors = []string{"#e06c75", "#98c379", "#e5c07b", "#61afef", "#c678dd", "#56b6c2"}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "ws://localhost:8080", "Coordinator URL")
	projectID := flag.String("project", "demo", "Project ID")
	dbPath := flag.String("db", "codesync-client.db", "Path to local database (empty keeps state in memory)")
	name := flag.String("name", os.Getenv("USER"), "Display name")
	timeout := flag.Duration("timeout", 5*time.Second, "How long to wait for the initial sync")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	stdio := iocli.NewStdio()

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage(stdio)
		os.Exit(1)
	}
	if !cli.Known(args[0]) {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		cli.PrintUsage(stdio)
		os.Exit(1)
	}

	if err := validation.ValidateProjectID(*projectID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(*logLevel))); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cli.Detached(args[0]) {
		if err := reset(ctx, stdio, *dbPath, *projectID, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	err := run(ctx, stdio, logger, options{
		server:  *serverURL,
		project: *projectID,
		db:      *dbPath,
		name:    *name,
		timeout: *timeout,
		args:    args,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	server  string
	project string
	db      string
	name    string
	args    []string
	timeout time.Duration
}

func run(ctx context.Context, stdio iocli.IO, logger *slog.Logger, opts options) (err error) {
	endpoint, err := collaborationURL(opts.server, opts.project)
	if err != nil {
		return err
	}
	baseURL, err := capi.BaseURL(opts.server)
	if err != nil {
		return err
	}

	var store storage.Store
	if opts.db != "" {
		db, err := boltdb.New(ctx, opts.db)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.Error("Failed to close database", "error", cerr)
			}
		}()
		store = db
	}

	var lossReported atomic.Bool

	session, err := replica.Connect(ctx, replica.Options{
		ProjectID: opts.project,
		Store:     store,
		Logger:    logger,
		User:      newUser(opts.name),
		Dialer: &transport.WebSocketDialer{
			URL:     endpoint,
			Logger:  logger,
			Options: transport.DefaultOptions(),
		},
		OnStatusChange: func(ev replica.StatusEvent) {
			if errors.Is(ev.Err, replica.ErrDataLoss) {
				lossReported.Store(true)
				fmt.Fprintf(os.Stderr, "Warning: %v\n", ev.Err)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open project: %w", err)
	}
	defer func() {
		err = errors.Join(err, session.Disconnect())
	}()

	if err := session.PublishAwareness(replica.AwarenessState{}); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	if err := session.WaitLive(waitCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: working offline (%v), changes will sync on the next connection\n", err)
	}
	cancel()

	// Потеря, обнаруженная в прошлых запусках, хранится до ack-loss
	if loss := session.DataLoss(); loss != nil && !lossReported.Load() {
		fmt.Fprintf(os.Stderr, "Warning: %v (run ack-loss to dismiss)\n", loss)
	}

	colored := term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	return cli.New(stdio, session, colored).
		WithRemote(capi.NewClient(baseURL)).
		Run(ctx, opts.args)
}

// reset удаляет локальное состояние проекта без подключения к координатору
func reset(ctx context.Context, stdio iocli.IO, dbPath, project string, args []string) error {
	if dbPath == "" {
		return errors.New("reset needs a local database, set -db")
	}

	db, err := boltdb.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	return errors.Join(cli.Reset(ctx, stdio, db, project, args), db.Close())
}

// collaborationURL строит адрес websocket-эндпоинта проекта.
// Схемы http и https заменяются на ws и wss.
func collaborationURL(server, project string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}

	return u.JoinPath("api", "collaboration", project).String(), nil
}

func newUser(name string) models.User {
	if name == "" {
		name = "anonymous"
	}

	var sum int
	for _, r := range name {
		sum += int(r)
	}
	return models.User{Name: name, Color: userColors[sum%len(userColors)]}
}

func printVersion() {
	fmt.Printf("codesync client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
