package openai

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/model"
)

func TestBuildMessages_InstructionsAndToolRoundTrip(t *testing.T) {
	req := model.Request{
		Instructions: "Du bist ein Assistent.",
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "Rapport für Max"),
			{Role: core.RoleAssistant, Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "CREATE_RAPPORT", Arguments: `{"kunde":"Max"}`}},
			}},
			core.NewFunctionResponseContent("c1", "CREATE_RAPPORT", map[string]any{"id": "R-1"}, nil),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 4)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "CREATE_RAPPORT", msgs[2].OfAssistant.ToolCalls[0].Function.Name)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
}

func TestBuildMessages_SkipsToolResultWithoutID(t *testing.T) {
	req := model.Request{Contents: []core.Content{
		core.NewFunctionResponseContent("", "X", "ignored", nil),
	}}
	assert.Empty(t, buildMessages(req))
}

func TestToolResultText(t *testing.T) {
	assert.Equal(t, "plain", toolResultText(core.FunctionResponse{Response: "plain"}))
	assert.JSONEq(t, `{"id":"R-1"}`, toolResultText(core.FunctionResponse{Response: map[string]any{"id": "R-1"}}))
	assert.JSONEq(t, `{"ok":false,"error":"kaputt"}`, toolResultText(core.FunctionResponse{Error: "kaputt"}))
}

func TestEmitFinalChunk_OrdersToolCallsByIndex(t *testing.T) {
	out := make(chan model.Response, 1)
	var b strings.Builder
	b.WriteString("ok")
	emitFinalChunk("tool_calls", &b, map[int64]*aggCall{
		1: {id: "b", name: "SECOND", args: "{}"},
		0: {id: "a", name: "FIRST", args: "{}"},
	}, out)

	resp := <-out
	assert.False(t, resp.Partial)
	assert.Equal(t, "ok", resp.Content.Text())
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "FIRST", calls[0].Name)
	assert.Equal(t, "SECOND", calls[1].Name)
}

func TestWrapError_NonAPIError(t *testing.T) {
	err := wrapError(errors.New("dial tcp: timeout"))
	assert.False(t, model.IsTransient(err))
	assert.Contains(t, err.Error(), "openai api error")
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test"; o.Model = "gpt-4o-mini" })
	info := m.Info()
	assert.Equal(t, "openai", info.Provider)
	assert.Equal(t, "gpt-4o-mini", info.Name)
	assert.True(t, info.SupportsTools)
}
