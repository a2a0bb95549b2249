package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/moneylens/moneylens/core"
	"github.com/moneylens/moneylens/store"
)

// systemPrompt is the static instruction set for the assistant.
const systemPrompt = `You are a personal finance assistant with access to the user's accounts, transactions, and financial analytics through tools.

Guidelines:
- Use the tools to answer questions about the user's money; never invent figures.
- Quote amounts in plain dollars and keep answers short and direct.
- When a tool returns an error, say what you could not retrieve and answer with what you have.
- Give practical, non-judgmental guidance. You are not a licensed financial advisor and should say so when asked for investment advice.`

// fallbackAnswer is returned when the final model round fails after tools
// have already run.
const fallbackAnswer = "I gathered your financial data but ran into a problem writing up the answer. Please try asking again."

// ToolRunner executes one tool call. Implemented by executor.Executor.
type ToolRunner interface {
	Execute(ctx context.Context, userID string, call core.ToolCall) core.ToolResult
}

// messenger is the single model entry point the orchestrator needs. It is
// satisfied by anthropic.Client.Messages.
type messenger interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// phase tracks where a request is in the two-round protocol.
type phase int

const (
	awaitingModel phase = iota
	executingTools
	awaitingFinal
)

func (p phase) String() string {
	switch p {
	case awaitingModel:
		return "awaiting_model"
	case executingTools:
		return "executing_tools"
	default:
		return "awaiting_final"
	}
}

// Config configures the orchestrator.
type Config struct {
	// Model is the Claude model to use.
	Model anthropic.Model

	// MaxTokens caps each model response.
	MaxTokens int64

	// MemoryContext is an optional long-term-memory string appended to
	// the system prompt.
	MemoryContext string
}

// Orchestrator drives the conversation protocol: at most two model
// round-trips per request, with tool execution and an optional vision
// turn between them.
type Orchestrator struct {
	model    messenger
	runner   ToolRunner
	registry *ToolRegistry
	convs    store.Conversations
	cfg      Config
	log      zerolog.Logger
}

// New creates an orchestrator. The model client is injected; the
// orchestrator never constructs one itself.
func New(model messenger, runner ToolRunner, registry *ToolRegistry, convs store.Conversations, cfg Config, log zerolog.Logger) *Orchestrator {
	if cfg.Model == "" {
		cfg.Model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	return &Orchestrator{
		model:    model,
		runner:   runner,
		registry: registry,
		convs:    convs,
		cfg:      cfg,
		log:      log,
	}
}

// Reply is the outcome of one orchestrated request.
type Reply struct {
	Response       string
	ConversationID string
}

// Respond answers one user message: model round 1 with the full catalog,
// tool execution, optional vision turn, model round 2, persistence. The
// protocol never exceeds two model round-trips.
func (o *Orchestrator) Respond(ctx context.Context, userID, message string, history []core.Message, conversationID string) (*Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     o.cfg.Model,
		MaxTokens: o.cfg.MaxTokens,
		System:    o.systemBlocks(),
		Messages:  o.buildMessages(history, message),
		Tools:     o.registry.ToAPITools(),
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		},
	}

	state := awaitingModel
	o.logPhase(userID, state)
	resp, err := o.model.New(ctx, params)
	if err != nil {
		// The first round is the only fatal model call.
		return nil, o.classifyModelError(err)
	}

	calls := extractToolCalls(resp)
	answer := extractText(resp)

	if len(calls) > 0 {
		state = executingTools
		o.logPhase(userID, state)
		results := make([]core.ToolResult, len(calls))
		for i, call := range calls {
			results[i] = o.runner.Execute(ctx, userID, call)
			if results[i].IsError() {
				o.log.Warn().Str("user_id", userID).Str("tool", call.Name).Str("error", results[i].Error).Msg("tool call failed")
			}
		}

		params.Messages = append(params.Messages, resp.ToParam())
		params.Messages = append(params.Messages, toolResultTurn(results))
		if target := firstVisionTarget(results); target != nil {
			params.Messages = append(params.Messages, visionTurn(*target))
		}

		state = awaitingFinal
		o.logPhase(userID, state)
		final, err := o.model.New(ctx, params)
		if err != nil {
			// A round-2 failure degrades to a canned answer; the tool
			// work is not thrown away as an error.
			o.log.Error().Err(err).Str("user_id", userID).Msg("final model round failed")
			answer = fallbackAnswer
		} else {
			answer = extractText(final)
			if answer == "" {
				// The model asked for more tools instead of answering.
				// The protocol does not re-enter; degrade to the fallback.
				answer = fallbackAnswer
			}
		}
	}

	convID, err := o.persist(ctx, userID, conversationID, history, message, answer)
	if err != nil {
		o.log.Error().Err(err).Str("user_id", userID).Msg("failed to persist conversation")
	}

	return &Reply{Response: answer, ConversationID: convID}, nil
}

func (o *Orchestrator) logPhase(userID string, p phase) {
	o.log.Debug().Str("user_id", userID).Stringer("phase", p).Msg("orchestration phase")
}

func (o *Orchestrator) systemBlocks() []anthropic.TextBlockParam {
	prompt := systemPrompt
	if o.cfg.MemoryContext != "" {
		prompt = prompt + "\n\nWhat you remember about this user:\n" + o.cfg.MemoryContext
	}
	return []anthropic.TextBlockParam{{Text: prompt}}
}

// buildMessages replays the prior history and appends the new user
// message.
func (o *Orchestrator) buildMessages(history []core.Message, message string) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Role {
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		case core.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))
}

// classifyModelError maps a round-1 failure onto the error contract: bad
// API key and anything unexpected are 500s, rate limiting is a 429.
func (o *Orchestrator) classifyModelError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return &core.UpstreamError{Status: 500, Message: "the assistant is misconfigured: the model API key was rejected"}
		case 429:
			return &core.UpstreamError{Status: 429, Message: "the assistant is receiving too many requests, try again shortly"}
		}
	}
	o.log.Error().Err(err).Msg("model round failed")
	return &core.UpstreamError{Status: 500, Message: "the assistant could not process the request"}
}

// persist appends the user message and final answer, creating the
// conversation (and titling it from the first user message) when no id
// was supplied. A new conversation also stores the client-supplied
// history so the stored transcript is complete.
func (o *Orchestrator) persist(ctx context.Context, userID, conversationID string, history []core.Message, message, answer string) (string, error) {
	if conversationID == "" {
		conv, err := o.convs.Create(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("create conversation: %w", err)
		}
		conversationID = conv.ID
		if err := o.convs.SetTitle(ctx, conversationID, store.TitleFrom(firstUserContent(history, message))); err != nil {
			return conversationID, fmt.Errorf("set title: %w", err)
		}
		for _, msg := range history {
			if msg.Role != core.RoleUser && msg.Role != core.RoleAssistant {
				continue
			}
			if err := o.convs.Append(ctx, conversationID, msg); err != nil {
				return conversationID, fmt.Errorf("append history message: %w", err)
			}
		}
	}

	if err := o.convs.Append(ctx, conversationID, core.NewUserMessage(message)); err != nil {
		return conversationID, fmt.Errorf("append user message: %w", err)
	}
	if err := o.convs.Append(ctx, conversationID, core.NewAssistantMessage(answer)); err != nil {
		return conversationID, fmt.Errorf("append assistant message: %w", err)
	}
	return conversationID, nil
}

// firstUserContent is the first user turn of the full transcript, which
// names the conversation.
func firstUserContent(history []core.Message, message string) string {
	for _, msg := range history {
		if msg.Role == core.RoleUser {
			return msg.Content
		}
	}
	return message
}

// extractToolCalls pulls the tool_use blocks out of a model response, in
// the order received.
func extractToolCalls(msg *anthropic.Message) []core.ToolCall {
	var calls []core.ToolCall
	for _, block := range msg.Content {
		if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			calls = append(calls, core.ToolCall{
				ID:    tu.ID,
				Name:  tu.Name,
				Input: tu.Input,
			})
		}
	}
	return calls
}

// extractText concatenates the text blocks of a model response.
func extractText(msg *anthropic.Message) string {
	var text string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}
	return text
}

// toolResultTurn packs every tool result into one user turn. Results are
// matched to their calls by id; order within the turn does not matter.
func toolResultTurn(results []core.ToolResult) anthropic.MessageParam {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, res := range results {
		blocks = append(blocks, anthropic.NewToolResultBlock(res.ToolCallID, res.Payload(), res.IsError()))
	}
	return anthropic.NewUserMessage(blocks...)
}
