package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/ethanbaker/avatar-client/internal/report"
	"github.com/ethanbaker/avatar-client/internal/session"
	"github.com/spf13/cobra"
)

const connectHelp = `Commands:
  mic [on|off]  Toggle or set the microphone
  leave         Leave the call and evaluate the conversation
  new           Start another session from the report
  dismiss       Close the report or error
  status        Show the current session state
  quit          Exit the client`

func newConnectCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Start an interactive avatar session in the terminal",
		Long: `Start an interactive avatar session in the terminal.

A token is requested from the backend, the client joins a fresh room and
prints the conversation as it happens. Type "leave" to end the call; the
evaluation report is printed once the backend has scored the conversation.

` + connectHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, opts)
		},
	}
}

func runConnect(cmd *cobra.Command, opts *rootOptions) error {
	s, err := loadSettings(opts)
	if err != nil {
		return err
	}

	store, err := openArchive(s)
	if err != nil {
		return err
	}
	defer store.Close()

	ctrl, err := newController(s, store)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	printer := newViewPrinter(out, terminalWidth(out))
	unsubscribe := ctrl.Subscribe(printer.Print)
	defer unsubscribe()

	// A failed attempt leaves the error screen up; 'new' retries from there
	if err := ctrl.Connect(ctx); err != nil && ctrl.State() != session.StateError {
		return fmt.Errorf("failed to connect: %w", err)
	}

	return interact(ctx, ctrl, printer, cmd.InOrStdin(), out)
}

// sessionController is what the interactive loop drives
type sessionController interface {
	StartNew(ctx context.Context) error
	Leave() error
	Dismiss() error
	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
	ToggleMicrophone(ctx context.Context) error
	View() session.View
}

// interact reads commands until the user quits. When input ends mid-call the call is
// left and the loop returns once the report or error is shown
func interact(ctx context.Context, ctrl sessionController, printer *viewPrinter, in io.Reader, out io.Writer) error {
	lines := readLines(in)
	eof := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case v := <-printer.settled:
			if eof {
				return resultOf(v)
			}

		case line, ok := <-lines:
			if !ok {
				eof, lines = true, nil

				switch ctrl.View().State {
				case session.StateActive:
					if err := ctrl.Leave(); err != nil {
						return err
					}
				case session.StateConnecting, session.StateEvaluationProcessing:
				default:
					return resultOf(ctrl.View())
				}
				continue
			}

			quit, err := runCommand(ctx, ctrl, out, line)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			if quit {
				return resultOf(ctrl.View())
			}
		}
	}
}

// runCommand runs one line of input. It reports true when the user asked to quit
func runCommand(ctx context.Context, ctrl sessionController, out io.Writer, line string) (bool, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "quit", "q", "exit":
		return true, nil

	case "leave", "l":
		return false, ctrl.Leave()

	case "new", "n":
		return false, ctrl.StartNew(ctx)

	case "dismiss", "d":
		return false, ctrl.Dismiss()

	case "mic", "m":
		if len(fields) == 1 {
			return false, ctrl.ToggleMicrophone(ctx)
		}
		switch fields[1] {
		case "on":
			return false, ctrl.SetMicrophoneEnabled(ctx, true)
		case "off":
			return false, ctrl.SetMicrophoneEnabled(ctx, false)
		}
		return false, fmt.Errorf("usage: mic [on|off]")

	case "status", "s":
		v := ctrl.View()
		fmt.Fprintf(out, "State: %s, room: %s, microphone: %s\n", v.State, orNone(v.Room), onOff(v.MicrophoneEnabled))
		return false, nil

	case "help", "h", "?":
		fmt.Fprintln(out, connectHelp)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command '%s', type 'help' for a list", fields[0])
	}
}

// readLines streams lines from r until it ends
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// resultOf turns the final view into the command's error
func resultOf(v session.View) error {
	if v.State == session.StateError {
		return &SessionFailedError{Message: "session failed: " + v.Error}
	}
	return nil
}

// viewPrinter writes session views to a terminal as they change. The latest report
// or error view is offered on settled
type viewPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	width   int
	screen  session.Screen
	printed int
	settled chan session.View
}

func newViewPrinter(out io.Writer, width int) *viewPrinter {
	return &viewPrinter{
		out:     out,
		width:   width,
		screen:  session.ScreenIdle,
		settled: make(chan session.View, 1),
	}
}

// Print writes whatever changed since the last view
func (p *viewPrinter) Print(v session.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Only live lines are echoed; a reset or a replaced transcript moves the mark
	if v.State == session.StateActive && len(v.Transcript) >= p.printed {
		for _, e := range v.Transcript[p.printed:] {
			fmt.Fprintf(p.out, "%s: %s\n", e.Role, e.Message)
		}
	}
	p.printed = len(v.Transcript)

	if v.Screen == p.screen {
		return
	}
	p.screen = v.Screen

	switch v.Screen {
	case session.ScreenConnecting:
		fmt.Fprintln(p.out, "Connecting...")

	case session.ScreenWaitingForAgent:
		fmt.Fprintf(p.out, "Joined room %s, waiting for the avatar...\n", orNone(v.Room))

	case session.ScreenCall:
		fmt.Fprintln(p.out, "The avatar has joined. Type 'leave' to end the call or 'help' for commands.")

	case session.ScreenEvaluating:
		if v.DisconnectReason != "" {
			fmt.Fprintf(p.out, "Disconnected (%s)\n", v.DisconnectReason)
		}
		fmt.Fprintln(p.out, "Evaluating conversation...")

	case session.ScreenReport:
		fmt.Fprintln(p.out)
		if v.Evaluation != nil {
			if err := report.Build(*v.Evaluation, v.Transcript).WriteTerminal(p.out, p.width); err != nil {
				fmt.Fprintf(p.out, "Error: failed to render report: %v\n", err)
			}
		}
		fmt.Fprintln(p.out, "Type 'new' to start another session or 'quit' to exit.")
		p.offer(v)

	case session.ScreenError:
		fmt.Fprintf(p.out, "Error: %s\n", v.Error)
		fmt.Fprintln(p.out, "Type 'new' to try again or 'quit' to exit.")
		p.offer(v)
	}
}

// offer replaces any unread settled view with v
func (p *viewPrinter) offer(v session.View) {
	select {
	case <-p.settled:
	default:
	}
	p.settled <- v
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
