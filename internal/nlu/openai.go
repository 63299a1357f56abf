package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Compile-time interface check
var _ Interpreter = (*OpenAI)(nil)

// ChatService is the slice of the OpenAI client this interpreter calls.
// The abstraction enables testing without the real API.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI resolves utterances with a chat model constrained to the fixed
// command vocabulary.
type OpenAI struct {
	chat  ChatService
	model openai.ChatModel
}

// NewOpenAI creates an interpreter backed by the OpenAI API.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAI{chat: client.Chat.Completions, model: openai.ChatModel(model)}
}

// NewOpenAIWithService injects a chat service directly, used by tests.
func NewOpenAIWithService(chat ChatService, model string) *OpenAI {
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAI{chat: chat, model: openai.ChatModel(model)}
}

const systemPrompt = `You map a user's instruction onto exactly one command.
Reply with JSON only, no prose: {"command":"deploy|list_templates|pick_option|cancel|help|unknown","slug":"...","choice":N}.
"pick_option" requires "choice", a 1-based index into the numbered options shown to the user.
"deploy" requires "slug". Anything you cannot map confidently is "unknown".`

// Interpret implements Interpreter.
func (o *OpenAI) Interpret(ctx context.Context, utterance string, options []string) (Command, error) {
	var sb strings.Builder
	sb.WriteString("Instruction: ")
	sb.WriteString(utterance)
	if len(options) > 0 {
		sb.WriteString("\nNumbered options currently shown:\n")
		for i, opt := range options {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, opt)
		}
	}

	resp, err := o.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.F(o.model),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(sb.String()),
		}),
	})
	if err != nil {
		return Command{}, fmt.Errorf("interpret instruction: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Command{}, fmt.Errorf("interpret instruction: empty completion")
	}

	cmd, err := parseCommand(resp.Choices[0].Message.Content)
	if err != nil {
		return Command{}, err
	}
	if cmd.Kind == CommandPickOption && (cmd.Choice < 1 || cmd.Choice > len(options)) {
		return Command{Kind: CommandUnknown}, nil
	}
	return cmd, nil
}

// parseCommand tolerates models that wrap the JSON in a code fence.
func parseCommand(content string) (Command, error) {
	text := strings.TrimSpace(content)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}
	var cmd Command
	if err := json.Unmarshal([]byte(text), &cmd); err != nil {
		return Command{}, fmt.Errorf("unparseable command %q: %w", content, err)
	}
	switch cmd.Kind {
	case CommandDeploy, CommandListTemplates, CommandPickOption, CommandCancel, CommandHelp, CommandUnknown:
		return cmd, nil
	}
	return Command{Kind: CommandUnknown}, nil
}
