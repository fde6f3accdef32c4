// Package llm is the language-model collaborator: one completion per call,
// addressed to a sprint role. The engine never talks to the provider
// directly; calls go through the recovery manager's llm operation class.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

// Failure modes surfaced by the collaborator contract.
var (
	ErrTimeout     = errors.New("llm request timed out")
	ErrRateLimited = errors.New("llm rate limited")
	ErrUnavailable = errors.New("llm unavailable")
)

// Role identifies which sprint participant a completion is for. The role's
// system prompt frames every request.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleCoder    Role = "coder"
	RoleTester   Role = "tester"
	RoleReviewer Role = "reviewer"
)

// rolePrompts frame each participant. Kept short: the grounding context
// retrieved per turn carries the project specifics.
var rolePrompts = map[Role]string{
	RolePlanner:  "You plan one development sprint: break the goal into small, testable tasks.",
	RoleCoder:    "You implement the current task. Respond with concrete code changes.",
	RoleTester:   "You write and run tests for the latest changes and report failures precisely.",
	RoleReviewer: "You review the sprint's changes and decide: approve, or request changes with reasons.",
}

// Completer is the collaborator contract the engine consumes.
type Completer interface {
	Complete(ctx context.Context, prompt string, role Role) (string, error)
}

// Client is the langchaingo-backed Completer.
type Client struct {
	model   llms.Model
	rec     *recovery.Manager
	timeout time.Duration
}

// New builds a client against the configured OpenAI-compatible endpoint.
// When cfg.Mock is set the caller should use NewMock instead; New rejects
// it to keep misconfiguration loud.
func New(cfg config.LLMConfig, rec *recovery.Manager) (*Client, error) {
	if cfg.Mock {
		return nil, errors.New("llm.New called with mock mode enabled")
	}
	apiKey := cfg.APIKey.Value()
	if apiKey == "" {
		apiKey = "placeholder"
	}
	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	return &Client{model: model, rec: rec, timeout: cfg.Timeout.Duration()}, nil
}

// Complete returns one completion for prompt, framed by role's system
// prompt. Transient provider failures are retried inside the recovery
// manager; what surfaces here is either text or a final failure.
func (c *Client) Complete(ctx context.Context, prompt string, role Role) (string, error) {
	var out string
	err := c.rec.Execute(ctx, recovery.ClassLLM, func(ctx context.Context) error {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, rolePrompts[role]),
			llms.TextParts(schema.ChatMessageTypeHuman, prompt),
		})
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return recovery.MarkTransient(fmt.Errorf("%w: empty response", ErrUnavailable))
		}
		out = resp.Choices[0].Content
		return nil
	}, nil)
	if err != nil {
		return "", err
	}
	return out, nil
}

// classify maps provider failures onto the recovery taxonomy. Timeouts and
// rate limits are transient; auth and request-shape problems are logic
// errors that retrying cannot fix.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return recovery.MarkTransient(fmt.Errorf("%w: %v", ErrTimeout, err))
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, fmt.Sprint(http.StatusTooManyRequests)), strings.Contains(msg, "rate limit"):
		return recovery.MarkTransient(fmt.Errorf("%w: %v", ErrRateLimited, err))
	case strings.Contains(msg, fmt.Sprint(http.StatusUnauthorized)), strings.Contains(msg, "api key"):
		return recovery.MarkLogic(err)
	default:
		return recovery.MarkTransient(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
}
