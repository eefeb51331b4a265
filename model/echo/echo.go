// Package echo provides an offline model.Model used when no provider key is
// configured. It answers with the last user message and never calls tools.
package echo

import (
	"context"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/model"
)

// Prefix marks echoed replies.
const Prefix = "Demo (ohne API-Key): "

// Model echoes the most recent user text.
type Model struct{}

// New returns an echo model.
func New() *Model { return &Model{} }

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	defer close(out)
	defer close(errCh)

	if err := ctx.Err(); err != nil {
		errCh <- err
		return out, errCh
	}
	out <- model.Response{
		Content:      core.NewTextContent(core.RoleAssistant, Prefix+lastUserText(req.Contents)),
		FinishReason: "stop",
	}
	return out, errCh
}

func lastUserText(contents []core.Content) string {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == core.RoleUser {
			return contents[i].Text()
		}
	}
	return ""
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: "echo", Provider: "echo"}
}
