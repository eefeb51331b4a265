package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/dialogmesh/controller"
	"github.com/hupe1980/dialogmesh/intent"
	"github.com/hupe1980/dialogmesh/session"
)

func newChatCmd(a *app) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Free-form chat with confirmation before every action",
		Long: `Reads one message per line from stdin and prints the assistant reply.

Commands:
  /reset   forget the conversation
  /quit    exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.newController()
			if err != nil {
				return err
			}
			return runChat(cmd, c, sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "cli", "session id")

	return cmd
}

func (a *app) newController() (*controller.Controller, error) {
	m, err := newModel(a.cfg)
	if err != nil {
		return nil, err
	}
	classifier, err := a.vocab.ActionClassifier(func(o *intent.Options) { o.Logger = a.log() })
	if err != nil {
		return nil, fmt.Errorf("build action classifier: %w", err)
	}
	return controller.New(func(o *controller.Options) {
		o.Model = m
		o.Classifier = classifier
		o.Replies = a.vocab.Replies
		o.ModelTimeout = a.cfg.ModelTimeout
		o.ForceExecuteOnYes = a.cfg.ForceExecuteOnYes
		o.Store = session.NewInMemoryStore(func(so *session.Options) { so.IdleTTL = a.cfg.SessionIdleTTL })
		o.Logger = a.log()
	})
}

func runChat(cmd *cobra.Command, c *controller.Controller, sessionID string) error {
	out := cmd.OutOrStdout()
	return readLines(cmd.InOrStdin(), out, func(line string) (bool, error) {
		switch line {
		case "/quit":
			return false, nil
		case "/reset":
			if err := c.Reset(sessionID); err != nil {
				return false, err
			}
			fmt.Fprintln(out, "Neues Gespräch.")
			return true, nil
		}

		reply, err := c.HandleUserText(cmd.Context(), line, sessionID)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, reply.Text)
		if len(reply.SuggestedReplies) > 0 {
			fmt.Fprintf(out, "  [%s]\n", strings.Join(reply.SuggestedReplies, " | "))
		}
		return true, nil
	})
}

// readLines feeds every non-empty input line to fn until fn returns false or
// the input ends.
func readLines(in io.Reader, out io.Writer, fn func(line string) (bool, error)) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		more, err := fn(line)
		if err != nil || !more {
			return err
		}
	}
}
