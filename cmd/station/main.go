package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/branch"
	"github.com/erazemk/scanpoint/internal/config"
	"github.com/erazemk/scanpoint/internal/logging"
	"github.com/erazemk/scanpoint/internal/scanner"
	"github.com/erazemk/scanpoint/internal/transfer"
)

func main() {
	fs := flag.NewFlagSet("station", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	var backendURL string
	fs.StringVar(&backendURL, "backend", "", "")
	fs.StringVar(&backendURL, "b", "", "")

	var username string
	fs.StringVar(&username, "user", "", "")
	fs.StringVar(&username, "u", "", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: station [flags] <warehouse|branch>

Runs a scan station on this terminal. A keyboard-wedge scanner types codes
followed by Enter; lines starting with ':' are commands (:help lists them).

Flags:
  -c, -config <path>      YAML config file (default: none)
  -b, -backend <url>      CRM backend base URL
  -u, -user <name>        username to sign in with (prompted if empty)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

SCANPOINT_TOKEN, when set, is used as the backend access token instead of
signing in.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() != 1 || (fs.Arg(0) != "warehouse" && fs.Arg(0) != "branch") {
		fs.Usage()
		os.Exit(1)
	}
	kind := fs.Arg(0)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if backendURL != "" {
		cfg.Backend.URL = backendURL
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if kind == "branch" && cfg.BranchID == "" {
		fmt.Fprintln(os.Stderr, "error: branch_id is required for a branch station")
		os.Exit(1)
	}

	// Only warnings and errors, so log lines do not interleave with the prompt.
	closeLog, err := logging.Setup(cfg.LogPath, slog.LevelWarn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := bufio.NewReader(os.Stdin)
	client := backend.New(cfg.Backend.URL, cfg.Backend.Timeout, nil)

	token, signedIn := os.Getenv("SCANPOINT_TOKEN"), false
	if token == "" {
		token, err = signIn(ctx, client, in, os.Stdout, username, terminalPassword(os.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		signedIn = true
	}
	client = client.WithTokens(backend.StaticToken(token))

	st := &station{
		in:         in,
		out:        os.Stdout,
		decoder:    scanner.NewZXingDecoder(),
		viewport:   cfg.Camera.Viewport,
		cameraWait: 30 * time.Second,
	}
	if cfg.Camera.SnapshotURL != "" {
		st.camera = &scanner.SnapshotCamera{URL: cfg.Camera.SnapshotURL, Interval: cfg.Camera.Interval}
	}

	var m mode
	switch kind {
	case "warehouse":
		m = &warehouseMode{wf: transfer.New(client), out: os.Stdout}
	case "branch":
		m = &branchMode{wf: branch.New(client, cfg.BranchID), out: os.Stdout}
	}

	runErr := st.run(ctx, m)

	if signedIn {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Logout(logoutCtx); err != nil {
			slog.Warn("backend logout failed", "error", err)
		}
		cancel()
	}
	if runErr != nil {
		slog.Error("station stopped", "error", runErr)
		os.Exit(1)
	}
}

// terminalPassword returns a reader that prompts without echo when f is a
// terminal, or nil when it is not.
func terminalPassword(f *os.File) func() (string, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	return func() (string, error) {
		b, err := term.ReadPassword(fd)
		return string(b), err
	}
}

// signIn prompts for credentials and returns the backend access token. The
// password comes from readPassword when set, otherwise from a line of in.
func signIn(ctx context.Context, client *backend.Client, in *bufio.Reader, out io.Writer, username string, readPassword func() (string, error)) (string, error) {
	if username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	fmt.Fprint(out, "Password: ")
	var password string
	if readPassword != nil {
		p, err := readPassword()
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password = p
	} else {
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if username == "" || password == "" {
		return "", errors.New("username and password are required")
	}

	res, err := client.Login(ctx, username, password)
	if err != nil {
		return "", fmt.Errorf("signing in: %w", err)
	}
	fmt.Fprintf(out, "Signed in as %s (%s)\n", res.User.Username, res.User.Role)
	return res.AccessToken, nil
}
