package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/erazemk/scanpoint/internal/scanner"
)

// mode is what a station does with scanned codes and commands.
type mode interface {
	// callbacks receive codes acquired by the station's scanner.
	callbacks(ctx context.Context) scanner.Callbacks
	// prepare runs before each acquisition.
	prepare()
	command(ctx context.Context, name string, args []string) error
	show()
	help() string
}

var errUnknownCommand = errors.New("unknown command, :help lists commands")

type station struct {
	in       *bufio.Reader
	out      io.Writer
	camera   scanner.Camera
	decoder  scanner.Decoder
	viewport float64
	// cameraWait bounds how long :camera waits for a code.
	cameraWait time.Duration
}

// run reads codes and commands until input ends, :quit or ctx is done.
func (st *station) run(ctx context.Context, m mode) error {
	acquired := make(chan struct{}, 1)
	closed := make(chan struct{}, 1)
	cb := m.callbacks(ctx)
	onSuccess := cb.OnScanSuccess
	cb.OnScanSuccess = func(code string, raw *scanner.Result) {
		notify(acquired)
		if onSuccess != nil {
			onSuccess(code, raw)
		}
	}
	onClose := cb.OnClose
	cb.OnClose = func() {
		if onClose != nil {
			onClose()
		}
		notify(closed)
	}
	onError := cb.OnScanError
	cb.OnScanError = func(err error) {
		if !errors.Is(err, scanner.ErrNoCode) {
			fmt.Fprintf(st.out, "camera: %v\n", err)
		}
		if onError != nil {
			onError(err)
		}
	}

	sc := scanner.New(scanner.Options{
		Camera:    st.camera,
		Decoder:   st.decoder,
		Viewport:  st.viewport,
		Callbacks: cb,
	})
	defer sc.Close()

	fmt.Fprint(st.out, m.help())
	prompt := true
	for {
		if ctx.Err() != nil {
			return nil
		}
		if prompt {
			fmt.Fprint(st.out, "> ")
		}
		prompt = true

		r, _, err := st.in.ReadRune()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		switch r {
		case '\n', '\r':
			continue
		case ' ', '\t':
			prompt = false
			continue
		case ':':
			line, _ := st.in.ReadString('\n')
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			name, args := fields[0], fields[1:]
			switch name {
			case "quit", "q":
				return nil
			case "help", "h":
				fmt.Fprint(st.out, m.help())
			case "camera":
				m.prepare()
				st.cameraScan(ctx, sc, acquired, closed)
			default:
				if err := m.command(ctx, name, args); err != nil {
					fmt.Fprintf(st.out, "error: %v\n", err)
				}
			}
			m.show()
			continue
		}

		if err := st.in.UnreadRune(); err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		m.prepare()
		if err := sc.Open(ctx, scanner.ModeDevice); err != nil {
			return fmt.Errorf("opening scanner: %w", err)
		}
		err = sc.Feed(st.in)
		if errors.Is(err, io.EOF) {
			// A last code without a trailing newline still counts.
			if sc.CanSubmit() {
				sc.Submit()
				m.show()
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading code: %w", err)
		}
		m.show()
	}
}

// cameraScan opens the camera and waits for one code, a timeout or ctx.
// A code is resolved before OnClose fires, so cameraScan returns only after
// that lookup has finished.
func (st *station) cameraScan(ctx context.Context, sc *scanner.Scanner, acquired, closed chan struct{}) {
	if st.camera == nil {
		fmt.Fprintln(st.out, "no camera configured")
		return
	}
	drain(acquired)
	drain(closed)

	if err := sc.Open(ctx, scanner.ModeCamera); err != nil {
		fmt.Fprintf(st.out, "camera: %v\n", err)
		sc.Close()
		return
	}
	fmt.Fprintln(st.out, "camera active, hold the code in view")

	timer := time.NewTimer(st.cameraWait)
	defer timer.Stop()
	select {
	case <-closed:
		return
	case <-timer.C:
	case <-ctx.Done():
	}

	// Closing is a no-op when a code was acquired just before; then OnClose
	// only fires once its lookup is done.
	sc.Close()
	select {
	case <-closed:
	case <-ctx.Done():
		return
	}
	select {
	case <-acquired:
	default:
		fmt.Fprintln(st.out, "no code seen")
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
