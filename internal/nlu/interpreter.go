// Package nlu turns free-text instructions into the deployment flow's small
// fixed command vocabulary. The deployment engine itself never parses
// natural language; it only consumes the commands produced here.
package nlu

import (
	"context"
	"strconv"
	"strings"
)

// CommandKind enumerates the whole vocabulary the flow understands.
type CommandKind string

const (
	CommandDeploy        CommandKind = "deploy"
	CommandListTemplates CommandKind = "list_templates"
	CommandPickOption    CommandKind = "pick_option"
	CommandCancel        CommandKind = "cancel"
	CommandHelp          CommandKind = "help"
	CommandUnknown       CommandKind = "unknown"
)

// Command is one resolved instruction.
type Command struct {
	Kind CommandKind `json:"command"`
	// Slug names a template for deploy commands.
	Slug string `json:"slug,omitempty"`
	// Choice is a 1-based index into the options the user was shown.
	Choice int `json:"choice,omitempty"`
}

// Interpreter resolves an utterance against the options currently on
// screen.
type Interpreter interface {
	Interpret(ctx context.Context, utterance string, options []string) (Command, error)
}

// RuleInterpreter is the deterministic fallback used when no chat model is
// configured. It covers the vocabulary with plain keyword rules.
type RuleInterpreter struct{}

// Interpret implements Interpreter.
func (RuleInterpreter) Interpret(_ context.Context, utterance string, options []string) (Command, error) {
	text := strings.ToLower(strings.TrimSpace(utterance))
	switch {
	case text == "":
		return Command{Kind: CommandUnknown}, nil
	case text == "cancel" || text == "stop" || text == "abort":
		return Command{Kind: CommandCancel}, nil
	case text == "help" || text == "?":
		return Command{Kind: CommandHelp}, nil
	case text == "templates" || text == "list" || text == "list templates":
		return Command{Kind: CommandListTemplates}, nil
	}

	if n, err := strconv.Atoi(text); err == nil {
		if n >= 1 && n <= len(options) {
			return Command{Kind: CommandPickOption, Choice: n}, nil
		}
		return Command{Kind: CommandUnknown}, nil
	}

	if rest, ok := strings.CutPrefix(text, "deploy "); ok {
		return Command{Kind: CommandDeploy, Slug: strings.TrimSpace(rest)}, nil
	}

	// An utterance matching one option verbatim counts as picking it.
	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), text) {
			return Command{Kind: CommandPickOption, Choice: i + 1}, nil
		}
	}
	return Command{Kind: CommandUnknown}, nil
}
