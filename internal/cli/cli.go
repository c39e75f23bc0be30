// Package cli is a line-oriented chat loop over any reader and writer,
// used by the interactive terminal client.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// DefaultSessionID is the session a terminal chat starts in.
const DefaultSessionID = "cli_session_user"

type Stepper interface {
	Step(ctx context.Context, sessionID, userText string) (string, error)
}

type Chat struct {
	stepper   Stepper
	in        *bufio.Scanner
	out       io.Writer
	sessionID string
	newID     func() string
}

func New(stepper Stepper, in io.Reader, out io.Writer) *Chat {
	return &Chat{
		stepper:   stepper,
		in:        bufio.NewScanner(in),
		out:       out,
		sessionID: DefaultSessionID,
		newID:     NewSessionID,
	}
}

// NewSessionID returns an id of the form cli_<8 hex digits>.
func NewSessionID() string {
	id := uuid.New()
	return "cli_" + strings.ReplaceAll(id.String(), "-", "")[:8]
}

func (c *Chat) SessionID() string {
	return c.sessionID
}

// Run reads one utterance per line until exit, quit, end of input or ctx
// is done. "reset" switches to a new session id; earlier history is kept.
func (c *Chat) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "--- Insurance Assistant (CLI Mode) ---")
	fmt.Fprintln(c.out, "Type 'exit' to quit.")
	fmt.Fprintln(c.out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(c.out, "You: ")
		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			fmt.Fprintln(c.out)
			fmt.Fprintln(c.out, "Goodbye.")
			return nil
		}

		text := strings.TrimSpace(c.in.Text())
		if text == "" {
			continue
		}

		switch strings.ToLower(text) {
		case "exit", "quit":
			fmt.Fprintln(c.out, "Bye.")
			return nil
		case "reset":
			c.sessionID = c.newID()
			fmt.Fprintf(c.out, "Session reset (New ID: %s).\n", c.sessionID)
			continue
		}

		answer, err := c.stepper.Step(ctx, c.sessionID, text)
		if err != nil {
			answer = "Error: " + err.Error()
		}
		fmt.Fprintf(c.out, "Assistant: %s\n\n", answer)
	}
}
