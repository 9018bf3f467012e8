package portal

import (
	"context"

	"github.com/go-go-golems/parley/pkg/turns"
)

// Access names a transport.
type Access string

const (
	// AccessSDK sends requests through the go-openai client.
	AccessSDK Access = "openai"
	// AccessHTTP sends raw JSON requests over net/http.
	AccessHTTP Access = "http"
)

const (
	FinishReasonStop   = "stop"
	FinishReasonLength = "length"
)

// Transport performs a single network attempt. Non-2xx responses are
// reported as *StatusError so that every transport shares one
// classification.
type Transport interface {
	CreateChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// Parameters are the sampling parameters shared by both request kinds. Nil
// and zero values are left out of the request.
type Parameters struct {
	MaxTokens        *int
	Temperature      *float64
	TopP             *float64
	PresencePenalty  *float64
	FrequencyPenalty *float64
	N                int
	Stop             []string
	LogitBias        map[string]int
	User             string
}

type ChatRequest struct {
	Model    string
	Messages []turns.Turn
	Parameters
}

type ChatResponse struct {
	ID      string
	Model   string
	Choices []Completion
}

type CompletionRequest struct {
	Model  string
	Prompt string
	Parameters
}

type CompletionResponse struct {
	ID      string
	Model   string
	Choices []TextChoice
}

type TextChoice struct {
	Text         string
	FinishReason string
}

// Completion is one chat candidate.
type Completion struct {
	Role         string `json:"role" yaml:"role"`
	Content      string `json:"content" yaml:"content"`
	FinishReason string `json:"finish_reason" yaml:"finish_reason"`
}

// Truncated reports whether the candidate was cut short by the length limit.
func (c *Completion) Truncated() bool {
	return c.FinishReason == FinishReasonLength
}
