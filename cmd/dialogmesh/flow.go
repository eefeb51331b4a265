package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/dialogmesh/flow"
	"github.com/hupe1980/dialogmesh/intent"
)

func newFlowCmd(a *app) *cobra.Command {
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Guided slot-filling flows (Kundendossier, Rechnung, Rapport)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.newEngine()
			if err != nil {
				return err
			}
			return runFlow(cmd, e, showEvents)
		},
	}
	cmd.Flags().BoolVar(&showEvents, "events", false, "print lifecycle events as JSON")

	return cmd
}

func (a *app) newEngine() (*flow.Engine, error) {
	classifier, err := a.vocab.IntentClassifier(func(o *intent.Options) { o.Logger = a.log() })
	if err != nil {
		return nil, fmt.Errorf("build intent classifier: %w", err)
	}
	catalog := flow.DefaultCatalog()
	return flow.NewEngine(func(o *flow.Options) {
		o.Catalog = catalog
		o.Router = flow.NewClassifierRouter(classifier, catalog)
		o.Logger = a.log()
	})
}

func runFlow(cmd *cobra.Command, e *flow.Engine, showEvents bool) error {
	out := cmd.OutOrStdout()
	return readLines(cmd.InOrStdin(), out, func(line string) (bool, error) {
		switch line {
		case "/quit":
			return false, nil
		case "/reset":
			e.Reset()
			fmt.Fprintln(out, "Neues Gespräch.")
			return true, nil
		}

		res := e.Dispatch(cmd.Context(), flow.Input{Kind: flow.UserText, Text: line})
		if showEvents {
			for _, ev := range res.Events {
				b, err := json.Marshal(ev)
				if err != nil {
					return false, err
				}
				fmt.Fprintf(out, "  %s\n", b)
			}
		}
		if res.Reply != nil {
			fmt.Fprintln(out, res.Reply.Text)
		}
		return true, nil
	})
}
