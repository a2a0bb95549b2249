package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneylens/moneylens/core"
	"github.com/moneylens/moneylens/store"
	"github.com/moneylens/moneylens/tools"
)

// fakeModel replays scripted responses (raw API JSON) or errors, recording
// the params of every call.
type fakeModel struct {
	script []interface{} // string (response JSON) or error
	calls  []anthropic.MessageNewParams
}

func (f *fakeModel) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.calls = append(f.calls, params)
	if len(f.calls) > len(f.script) {
		return nil, errors.New("fake model: no scripted response left")
	}
	next := f.script[len(f.calls)-1]
	if err, ok := next.(error); ok {
		return nil, err
	}
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(next.(string)), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// fakeRunner serves canned results per tool name.
type fakeRunner struct {
	results map[string]core.ToolResult
	calls   []core.ToolCall
}

func (f *fakeRunner) Execute(_ context.Context, _ string, call core.ToolCall) core.ToolResult {
	f.calls = append(f.calls, call)
	res, ok := f.results[call.Name]
	if !ok {
		return core.ToolResult{ToolCallID: call.ID, Error: "Unknown function: " + call.Name}
	}
	res.ToolCallID = call.ID
	return res
}

func textResponse(text string) string {
	b, _ := json.Marshal(text)
	return `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","stop_reason":"end_turn","stop_sequence":null,"content":[{"type":"text","text":` + string(b) + `}],"usage":{"input_tokens":10,"output_tokens":10}}`
}

func toolUseResponse(callID, name, input string) string {
	return `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","stop_reason":"tool_use","stop_sequence":null,"content":[{"type":"tool_use","id":"` + callID + `","name":"` + name + `","input":` + input + `}],"usage":{"input_tokens":10,"output_tokens":10}}`
}

func newTestOrchestrator(model *fakeModel, runner *fakeRunner) (*Orchestrator, *store.MemoryConversations) {
	registry := NewToolRegistry()
	registry.RegisterAll(tools.Catalog()...)
	convs := store.NewMemoryConversations()
	o := New(model, runner, registry, convs, Config{}, zerolog.Nop())
	return o, convs
}

func TestRespondDirectAnswer(t *testing.T) {
	model := &fakeModel{script: []interface{}{textResponse("You spent $200 on food.")}}
	o, convs := newTestOrchestrator(model, &fakeRunner{})

	reply, err := o.Respond(context.Background(), "u1", "how much did I spend on food?", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "You spent $200 on food.", reply.Response)
	require.Len(t, model.calls, 1, "no tool request means one round-trip")

	// Catalog goes out on the request, tool_choice auto.
	assert.Len(t, model.calls[0].Tools, len(tools.Catalog()))
	assert.NotNil(t, model.calls[0].ToolChoice.OfAuto)

	// Transcript persisted under a fresh conversation.
	require.NotEmpty(t, reply.ConversationID)
	got, err := convs.Get(context.Background(), reply.ConversationID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, core.RoleUser, got.Messages[0].Role)
	assert.Equal(t, core.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "how much did I spend on food?", got.Conversation.Title)
}

func TestRespondWithToolCalls(t *testing.T) {
	model := &fakeModel{script: []interface{}{
		toolUseResponse("tu_1", "get_net_worth", "{}"),
		textResponse("Your net worth is $12,000."),
	}}
	runner := &fakeRunner{results: map[string]core.ToolResult{
		"get_net_worth": {Data: json.RawMessage(`{"net_worth":12000}`)},
	}}
	o, _ := newTestOrchestrator(model, runner)

	reply, err := o.Respond(context.Background(), "u1", "what's my net worth?", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Your net worth is $12,000.", reply.Response)

	require.Len(t, model.calls, 2)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "get_net_worth", runner.calls[0].Name)

	// Round 2 replays the assistant tool-use turn plus a tool-result turn.
	round2 := model.calls[1].Messages
	require.Len(t, round2, 3)
	assert.Len(t, model.calls[1].Tools, len(tools.Catalog()), "catalog is sent again on round 2")
}

func TestRespondToolFailureIsolated(t *testing.T) {
	model := &fakeModel{script: []interface{}{
		`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","stop_reason":"tool_use","stop_sequence":null,"content":[
			{"type":"tool_use","id":"tu_1","name":"get_net_worth","input":{}},
			{"type":"tool_use","id":"tu_2","name":"explode","input":{}},
			{"type":"tool_use","id":"tu_3","name":"get_account_balances","input":{}}
		],"usage":{"input_tokens":10,"output_tokens":10}}`,
		textResponse("Here is what I could find."),
	}}
	runner := &fakeRunner{results: map[string]core.ToolResult{
		"get_net_worth":        {Data: json.RawMessage(`{"net_worth":1}`)},
		"get_account_balances": {Data: json.RawMessage(`[]`)},
	}}
	o, _ := newTestOrchestrator(model, runner)

	reply, err := o.Respond(context.Background(), "u1", "summarize my finances", nil, "")
	require.NoError(t, err, "one failing tool must not abort the request")
	assert.Equal(t, "Here is what I could find.", reply.Response)
	assert.Len(t, runner.calls, 3, "every requested call runs")
}

func TestRespondRoundTwoFailureFallsBack(t *testing.T) {
	model := &fakeModel{script: []interface{}{
		toolUseResponse("tu_1", "get_net_worth", "{}"),
		errors.New("connection reset"),
	}}
	runner := &fakeRunner{results: map[string]core.ToolResult{
		"get_net_worth": {Data: json.RawMessage(`{"net_worth":1}`)},
	}}
	o, _ := newTestOrchestrator(model, runner)

	reply, err := o.Respond(context.Background(), "u1", "what's my net worth?", nil, "")
	require.NoError(t, err, "round-2 failure degrades, it does not propagate")
	assert.Equal(t, fallbackAnswer, reply.Response)
}

func TestRespondRoundTwoMoreToolsNotReentered(t *testing.T) {
	model := &fakeModel{script: []interface{}{
		toolUseResponse("tu_1", "get_net_worth", "{}"),
		toolUseResponse("tu_2", "get_account_balances", "{}"),
	}}
	runner := &fakeRunner{results: map[string]core.ToolResult{
		"get_net_worth": {Data: json.RawMessage(`{"net_worth":1}`)},
	}}
	o, _ := newTestOrchestrator(model, runner)

	reply, err := o.Respond(context.Background(), "u1", "what's my net worth?", nil, "")
	require.NoError(t, err)
	assert.Equal(t, fallbackAnswer, reply.Response, "no third round-trip")
	require.Len(t, model.calls, 2)
	assert.Len(t, runner.calls, 1, "round-2 tool requests are not executed")
}

func TestRespondRoundOneFailureIsFatal(t *testing.T) {
	model := &fakeModel{script: []interface{}{errors.New("connection reset")}}
	o, _ := newTestOrchestrator(model, &fakeRunner{})

	_, err := o.Respond(context.Background(), "u1", "hello", nil, "")
	var upstream *core.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 500, upstream.Status)
}

func TestClassifyModelError(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeModel{}, &fakeRunner{})

	var upstream *core.UpstreamError
	require.ErrorAs(t, o.classifyModelError(&anthropic.Error{StatusCode: 401}), &upstream)
	assert.Equal(t, 500, upstream.Status)
	assert.Contains(t, upstream.Message, "API key")

	require.ErrorAs(t, o.classifyModelError(&anthropic.Error{StatusCode: 429}), &upstream)
	assert.Equal(t, 429, upstream.Status)
}

func TestRespondReplaysHistory(t *testing.T) {
	model := &fakeModel{script: []interface{}{textResponse("Since last month, yes.")}}
	o, _ := newTestOrchestrator(model, &fakeRunner{})

	history := []core.Message{
		core.NewUserMessage("did I overspend?"),
		core.NewAssistantMessage("You spent $2,100 against $2,000 income."),
	}
	_, err := o.Respond(context.Background(), "u1", "is that worse than before?", nil, "")
	require.NoError(t, err)
	require.Len(t, model.calls[0].Messages, 1)

	model.script = []interface{}{textResponse("Yes.")}
	model.calls = nil
	_, err = o.Respond(context.Background(), "u1", "is that worse than before?", history, "")
	require.NoError(t, err)
	assert.Len(t, model.calls[0].Messages, 3, "history turns precede the new message")
}

func TestRespondPersistsHistoryOnCreate(t *testing.T) {
	model := &fakeModel{script: []interface{}{textResponse("Yes, slightly worse.")}}
	o, convs := newTestOrchestrator(model, &fakeRunner{})

	history := []core.Message{
		core.NewUserMessage("did I overspend?"),
		core.NewAssistantMessage("You spent $2,100 against $2,000 income."),
	}
	reply, err := o.Respond(context.Background(), "u1", "is that worse than before?", history, "")
	require.NoError(t, err)

	// A fresh conversation stores the supplied history ahead of the new
	// exchange, so the transcript reads back complete.
	got, err := convs.Get(context.Background(), reply.ConversationID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, core.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "did I overspend?", got.Messages[0].Content)
	assert.Equal(t, core.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "is that worse than before?", got.Messages[2].Content)
	assert.Equal(t, "Yes, slightly worse.", got.Messages[3].Content)
	assert.Equal(t, "did I overspend?", got.Conversation.Title, "title comes from the first user turn")
}

func TestVisionTurnImage(t *testing.T) {
	turn := visionTurn(core.VisionTarget{URL: "https://files.example/receipt.png", FileType: "image/png"})
	require.Len(t, turn.Content, 2)
	require.NotNil(t, turn.Content[1].OfImage)
	assert.Equal(t, "https://files.example/receipt.png", turn.Content[1].OfImage.Source.OfURL.URL)
}

func TestVisionTurnDocument(t *testing.T) {
	turn := visionTurn(core.VisionTarget{URL: "https://files.example/w2.pdf", FileType: "application/pdf"})
	require.Len(t, turn.Content, 1)
	require.NotNil(t, turn.Content[0].OfText)
	assert.Contains(t, turn.Content[0].OfText.Text, "https://files.example/w2.pdf")
}

func TestRespondVisionTurnInjected(t *testing.T) {
	model := &fakeModel{script: []interface{}{
		toolUseResponse("tu_1", "search_documents", `{"query":"w2"}`),
		textResponse("Your W2 shows $85,000 in wages."),
	}}
	runner := &fakeRunner{results: map[string]core.ToolResult{
		"search_documents": {
			Data:   json.RawMessage(`{"documents":[{"name":"W2"}],"next_step":"vision_read","url":"https://files.example/w2.png"}`),
			Vision: &core.VisionTarget{URL: "https://files.example/w2.png", FileType: "image/png"},
		},
	}}
	o, _ := newTestOrchestrator(model, runner)

	reply, err := o.Respond(context.Background(), "u1", "what does my W2 say?", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Your W2 shows $85,000 in wages.", reply.Response)

	// user msg, assistant tool use, tool results, vision turn.
	round2 := model.calls[1].Messages
	require.Len(t, round2, 4)
	visionBlocks := round2[3].Content
	require.Len(t, visionBlocks, 2)
	assert.NotNil(t, visionBlocks[1].OfImage)
}

func TestToolRegistryOrder(t *testing.T) {
	registry := NewToolRegistry()
	registry.RegisterAll(tools.Catalog()...)

	names := registry.List()
	require.Len(t, names, len(tools.Catalog()))
	for i, def := range tools.Catalog() {
		assert.Equal(t, def.Name, names[i], "registration order is preserved")
	}

	api := registry.ToAPITools()
	require.Len(t, api, len(names))
	for i, name := range names {
		assert.Equal(t, name, api[i].OfTool.Name)
	}
}
