package portal

import (
	"context"
	"strings"

	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/helpers"
	"github.com/go-go-golems/parley/pkg/turns"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ContinuationPrompt is the user turn appended when asking the model to go on
// with a truncated candidate.
const ContinuationPrompt = "[continue, but with limits]"

const (
	opChat       = "chat"
	opCompletion = "completion"
)

// Completion returns the single completion text for prompt.
func (c *Client) Completion(ctx context.Context, prompt string, options ...RequestOption) (string, error) {
	cfg := c.requestConfig(helpers.ValueOr(c.settings.Chat.CompletionEngine, ""), options)
	if cfg.N > 1 {
		return "", errors.Wrapf(ErrInvalidRequest, "Completion returns one text, %d requested (use Completions)", cfg.N)
	}
	texts, err := c.completions(ctx, prompt, cfg)
	if err != nil {
		return "", err
	}
	return texts[0], nil
}

// Completions returns every candidate text for prompt, trimmed of
// surrounding whitespace.
func (c *Client) Completions(ctx context.Context, prompt string, options ...RequestOption) ([]string, error) {
	cfg := c.requestConfig(helpers.ValueOr(c.settings.Chat.CompletionEngine, ""), options)
	return c.completions(ctx, prompt, cfg)
}

func (c *Client) completions(ctx context.Context, prompt string, cfg *requestConfig) ([]string, error) {
	t, err := c.transport(cfg.access)
	if err != nil {
		log.Error().Err(err).Msg("unknown access")
		return nil, err
	}

	scope := c.scope(opCompletion, cfg)
	c.publish(scope, events.EventTypeStart, "", nil)

	req := &CompletionRequest{
		Model:      cfg.model,
		Prompt:     prompt,
		Parameters: cfg.Parameters,
	}
	resp, err := withRetries(ctx, c.policy(cfg), scope, func(ctx context.Context) (*CompletionResponse, error) {
		return t.CreateCompletion(ctx, req)
	})
	if err == nil && len(resp.Choices) == 0 {
		err = &APIError{Kind: ErrServiceUnavailable, Message: "response carried no choices"}
	}
	if err != nil {
		c.publish(scope, events.EventTypeError, "", err)
		return nil, err
	}

	ret := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		ret = append(ret, strings.TrimSpace(choice.Text))
	}
	c.publish(scope, events.EventTypeFinal, resp.Choices[0].FinishReason, nil)
	return ret, nil
}

// ChatCompletion returns the single chat candidate for ts, continued until it
// is no longer truncated.
func (c *Client) ChatCompletion(ctx context.Context, ts []turns.Turn, options ...RequestOption) (*Completion, error) {
	cfg := c.requestConfig(helpers.ValueOr(c.settings.Chat.Engine, ""), options)
	if cfg.N > 1 {
		return nil, errors.Wrapf(ErrInvalidRequest, "ChatCompletion returns one candidate, %d requested (use ChatCompletions)", cfg.N)
	}
	completions, err := c.chatCompletions(ctx, ts, cfg)
	if err != nil {
		return nil, err
	}
	return completions[0], nil
}

// ChatCompletions returns every candidate for ts in request order. Each
// truncated candidate is continued independently, at most
// MaxCompletionPieces rounds.
func (c *Client) ChatCompletions(ctx context.Context, ts []turns.Turn, options ...RequestOption) ([]*Completion, error) {
	cfg := c.requestConfig(helpers.ValueOr(c.settings.Chat.Engine, ""), options)
	return c.chatCompletions(ctx, ts, cfg)
}

func (c *Client) chatCompletions(ctx context.Context, ts []turns.Turn, cfg *requestConfig) ([]*Completion, error) {
	t, err := c.transport(cfg.access)
	if err != nil {
		log.Error().Err(err).Msg("unknown access")
		return nil, err
	}

	scope := c.scope(opChat, cfg)
	c.publish(scope, events.EventTypeStart, "", nil)

	resp, err := c.chatRound(ctx, t, cfg, scope, ts, cfg.N)
	if err != nil {
		c.publish(scope, events.EventTypeError, "", err)
		return nil, err
	}

	completions := make([]*Completion, len(resp.Choices))
	for i := range resp.Choices {
		choice := resp.Choices[i]
		if choice.Role == "" {
			choice.Role = string(turns.RoleAssistant)
		}
		completions[i] = &choice
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, completion := range completions {
		if !completion.Truncated() {
			continue
		}
		i, completion := i, completion
		g.Go(func() error {
			candidateScope := scope
			candidateScope.candidate = i
			return c.continueCandidate(gctx, t, cfg, candidateScope, ts, completion)
		})
	}
	if err := g.Wait(); err != nil {
		c.publish(scope, events.EventTypeError, "", err)
		return nil, err
	}

	c.publish(scope, events.EventTypeFinal, completions[0].FinishReason, nil)
	return completions, nil
}

// continueCandidate asks for more content while completion is truncated. It
// only touches completion, so candidates can run concurrently.
func (c *Client) continueCandidate(
	ctx context.Context,
	t Transport,
	cfg *requestConfig,
	scope attemptScope,
	ts []turns.Turn,
	completion *Completion,
) error {
	for piece := 1; completion.Truncated() && piece <= cfg.maxCompletionPieces; piece++ {
		scope.piece = piece
		conversation := make([]turns.Turn, 0, len(ts)+2)
		conversation = append(conversation, ts...)
		conversation = append(conversation,
			turns.Turn{Role: completion.Role, Content: completion.Content},
			turns.Turn{Role: string(turns.RoleUser), Content: ContinuationPrompt},
		)

		resp, err := c.chatRound(ctx, t, cfg, scope, conversation, 1)
		if err != nil {
			return err
		}
		next := resp.Choices[0]
		completion.Content += " " + next.Content
		completion.FinishReason = next.FinishReason

		log.Debug().
			Str("request_id", scope.requestID).
			Int("candidate", scope.candidate).
			Int("piece", piece).
			Str("finish_reason", next.FinishReason).
			Msg("continued truncated candidate")
		c.publish(scope, events.EventTypeContinuation, next.FinishReason, nil)
	}
	return nil
}

// chatRound is one retried chat request asking for n candidates.
func (c *Client) chatRound(
	ctx context.Context,
	t Transport,
	cfg *requestConfig,
	scope attemptScope,
	ts []turns.Turn,
	n int,
) (*ChatResponse, error) {
	req := &ChatRequest{
		Model:      cfg.model,
		Messages:   ts,
		Parameters: cfg.Parameters,
	}
	req.N = n

	resp, err := withRetries(ctx, c.policy(cfg), scope, func(ctx context.Context) (*ChatResponse, error) {
		return t.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &APIError{Kind: ErrServiceUnavailable, Message: "response carried no choices"}
	}
	return resp, nil
}

func (c *Client) requestConfig(model string, options []RequestOption) *requestConfig {
	cfg := newRequestConfig(c.settings, model)
	for _, option := range options {
		option(cfg)
	}
	if cfg.N < 1 {
		cfg.N = 1
	}
	return cfg
}

func (c *Client) scope(op string, cfg *requestConfig) attemptScope {
	return attemptScope{
		requestID: uuid.NewString(),
		op:        op,
		access:    cfg.access,
		model:     cfg.model,
		sink:      c.sink,
	}
}

func (c *Client) publish(scope attemptScope, t events.EventType, finishReason string, err error) {
	e := scope.event(t)
	e.FinishReason = finishReason
	if err != nil {
		e.Error = err.Error()
	}
	events.PublishBlind(c.sink, e)
}
