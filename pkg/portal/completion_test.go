package portal

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/turns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var persona = []turns.Turn{
	turns.NewTurn("system", "You are Max, an assistant professor in astrophysics."),
	turns.NewTurn("user", "Max approaches and introduces himself."),
}

func finishBy(round, needed int) string {
	if round < needed {
		return FinishReasonLength
	}
	return FinishReasonStop
}

// patchTransport makes candidate i need exactly i continuation rounds. Round
// r of candidate i answers "patch r/i".
func patchTransport() *scriptedTransport {
	return &scriptedTransport{
		chat: func(_ int, req *ChatRequest) (*ChatResponse, error) {
			if len(req.Messages) == len(persona) {
				resp := &ChatResponse{}
				for i := 0; i < req.N; i++ {
					resp.Choices = append(resp.Choices, Completion{
						Role:         "assistant",
						Content:      fmt.Sprintf("patch 0/%d", i),
						FinishReason: finishBy(0, i),
					})
				}
				return resp, nil
			}

			accumulated := req.Messages[len(req.Messages)-2].Content
			var candidate int
			_, err := fmt.Sscanf(accumulated, "patch 0/%d", &candidate)
			if err != nil {
				return nil, err
			}
			round := strings.Count(accumulated, "patch ")
			return &ChatResponse{Choices: []Completion{{
				Role:         "assistant",
				Content:      fmt.Sprintf("patch %d/%d", round, candidate),
				FinishReason: finishBy(round, candidate),
			}}}, nil
		},
	}
}

func TestChatCompletionsStitchesTruncatedCandidates(t *testing.T) {
	const n = 5
	transport := patchTransport()
	c, _, sink := newScriptedClient(transport)

	completions, err := c.ChatCompletions(context.Background(), persona, WithN(n))
	require.NoError(t, err)
	require.Len(t, completions, n)

	for i, completion := range completions {
		pieces := make([]string, 0, i+1)
		for r := 0; r <= i; r++ {
			pieces = append(pieces, fmt.Sprintf("patch %d/%d", r, i))
		}
		assert.Equal(t, strings.Join(pieces, " "), completion.Content, "candidate %d", i)
		assert.Equal(t, FinishReasonStop, completion.FinishReason)
		assert.Equal(t, "assistant", completion.Role)
	}

	assert.Equal(t, 1+0+1+2+3+4, transport.chatCalls())
	for _, req := range transport.chatRequests[1:] {
		assert.Equal(t, 1, req.N)
		last := req.Messages[len(req.Messages)-1]
		assert.Equal(t, turns.NewTurn("user", ContinuationPrompt), last)
		assert.Equal(t, persona, req.Messages[:len(persona)])
	}
	assert.Len(t, sink.ofType(events.EventTypeContinuation), 10)
	assert.Len(t, sink.ofType(events.EventTypeFinal), 1)
}

func TestChatCompletionStopsAfterMaxCompletionPieces(t *testing.T) {
	transport := &scriptedTransport{
		chat: func(calls int, req *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{Choices: []Completion{{
				Role:         "assistant",
				Content:      fmt.Sprintf("piece%d", calls),
				FinishReason: FinishReasonLength,
			}}}, nil
		},
	}
	c, _, _ := newScriptedClient(transport)

	completion, err := c.ChatCompletion(context.Background(), persona, WithMaxCompletionPieces(2))
	require.NoError(t, err)
	assert.Equal(t, "piece1 piece2 piece3", completion.Content)
	assert.Equal(t, FinishReasonLength, completion.FinishReason)
	assert.Equal(t, 3, transport.chatCalls())
}

func TestChatCompletionTreatsUnknownFinishReasonAsComplete(t *testing.T) {
	transport := &scriptedTransport{
		chat: func(int, *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{Choices: []Completion{{
				Role: "assistant", Content: "filtered", FinishReason: "content_filter",
			}}}, nil
		},
	}
	c, _, _ := newScriptedClient(transport)

	completion, err := c.ChatCompletion(context.Background(), persona)
	require.NoError(t, err)
	assert.Equal(t, "filtered", completion.Content)
	assert.Equal(t, 1, transport.chatCalls())
}

func TestChatCompletionUsesSettingsDefaults(t *testing.T) {
	transport := patchTransport()
	c, _, _ := newScriptedClient(transport)

	_, err := c.ChatCompletion(context.Background(), persona, WithTemperature(0.8), WithStop("\n"))
	require.NoError(t, err)

	req := transport.chatRequests[0]
	assert.Equal(t, "gpt-4", req.Model)
	assert.Equal(t, 1, req.N)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.8, *req.Temperature, 1e-9)
	assert.Equal(t, []string{"\n"}, req.Stop)
}

func TestChatCompletionRejectsMultipleCandidates(t *testing.T) {
	transport := patchTransport()
	c, _, _ := newScriptedClient(transport)

	_, err := c.ChatCompletion(context.Background(), persona, WithN(2))
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 0, transport.chatCalls())
}

func TestUnknownAccessIsInvalidRequest(t *testing.T) {
	transport := patchTransport()
	c, _, _ := newScriptedClient(transport)

	_, err := c.ChatCompletion(context.Background(), persona, WithAccess("grpc"))
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = c.Completion(context.Background(), "prompt", WithAccess("grpc"))
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 0, transport.chatCalls())
}

func TestContinuationFailureFailsTheCall(t *testing.T) {
	transport := &scriptedTransport{
		chat: func(calls int, req *ChatRequest) (*ChatResponse, error) {
			if calls == 1 {
				return &ChatResponse{Choices: []Completion{
					{Role: "assistant", Content: "done", FinishReason: FinishReasonStop},
					{Role: "assistant", Content: "cut", FinishReason: FinishReasonLength},
				}}, nil
			}
			return nil, &StatusError{StatusCode: 400, Message: "maximum context length"}
		},
	}
	c, _, _ := newScriptedClient(transport)

	_, err := c.ChatCompletions(context.Background(), persona, WithN(2))
	require.ErrorIs(t, err, ErrTooManyTokens)
}

func TestCompletionsTrimText(t *testing.T) {
	transport := &scriptedTransport{
		completion: func(_ int, req *CompletionRequest) (*CompletionResponse, error) {
			resp := &CompletionResponse{}
			for i := 0; i < req.N; i++ {
				resp.Choices = append(resp.Choices, TextChoice{
					Text:         fmt.Sprintf("\n\n summary %d  \n", i),
					FinishReason: FinishReasonStop,
				})
			}
			return resp, nil
		},
	}
	c, _, _ := newScriptedClient(transport)

	text, err := c.Completion(context.Background(), "Summarize the text above.", WithMaxTokens(500))
	require.NoError(t, err)
	assert.Equal(t, "summary 0", text)
	assert.Equal(t, "gpt-3.5-turbo-instruct", transport.completionRequests[0].Model)
	assert.Equal(t, 500, *transport.completionRequests[0].MaxTokens)

	texts, err := c.Completions(context.Background(), "Summarize the text above.", WithN(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"summary 0", "summary 1", "summary 2"}, texts)
	assert.Equal(t, 2, transport.completionCalls())
}

func TestEmptyChoicesAreUnavailable(t *testing.T) {
	transport := &scriptedTransport{
		chat: func(int, *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{}, nil
		},
	}
	c, _, _ := newScriptedClient(transport)

	_, err := c.ChatCompletion(context.Background(), persona)
	require.ErrorIs(t, err, ErrServiceUnavailable)
}
