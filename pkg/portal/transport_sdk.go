package portal

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/go-go-golems/parley/pkg/helpers"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// SDKTransport is the go-openai based transport.
type SDKTransport struct {
	client *go_openai.Client
}

var _ Transport = (*SDKTransport)(nil)

func NewSDKTransport(cred Credential, baseURL string, httpClient *http.Client) *SDKTransport {
	config := go_openai.DefaultConfig(cred.APIKey)
	config.OrgID = cred.Organization
	config.BaseURL = baseURL
	if httpClient != nil {
		config.HTTPClient = httpClient
	}
	return &SDKTransport{
		client: go_openai.NewClientWithConfig(config),
	}
}

func (t *SDKTransport) CreateChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	messages := make([]go_openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, go_openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	p := req.Parameters
	resp, err := t.client.CreateChatCompletion(ctx, go_openai.ChatCompletionRequest{
		Model:            req.Model,
		Messages:         messages,
		MaxTokens:        helpers.ValueOr(p.MaxTokens, 0),
		Temperature:      sdkFloat(p.Temperature),
		TopP:             sdkFloat(p.TopP),
		PresencePenalty:  sdkFloat(p.PresencePenalty),
		FrequencyPenalty: sdkFloat(p.FrequencyPenalty),
		N:                p.N,
		Stop:             p.Stop,
		LogitBias:        p.LogitBias,
		User:             p.User,
	})
	if err != nil {
		return nil, sdkError(err)
	}

	ret := &ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: make([]Completion, 0, len(resp.Choices)),
	}
	for _, c := range resp.Choices {
		ret.Choices = append(ret.Choices, Completion{
			Role:         c.Message.Role,
			Content:      c.Message.Content,
			FinishReason: string(c.FinishReason),
		})
	}
	return ret, nil
}

func (t *SDKTransport) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	p := req.Parameters
	resp, err := t.client.CreateCompletion(ctx, go_openai.CompletionRequest{
		Model:            req.Model,
		Prompt:           req.Prompt,
		MaxTokens:        helpers.ValueOr(p.MaxTokens, 0),
		Temperature:      sdkFloat(p.Temperature),
		TopP:             sdkFloat(p.TopP),
		PresencePenalty:  sdkFloat(p.PresencePenalty),
		FrequencyPenalty: sdkFloat(p.FrequencyPenalty),
		N:                p.N,
		Stop:             p.Stop,
		LogitBias:        p.LogitBias,
		User:             p.User,
	})
	if err != nil {
		return nil, sdkError(err)
	}

	ret := &CompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Choices: make([]TextChoice, 0, len(resp.Choices)),
	}
	for _, c := range resp.Choices {
		ret.Choices = append(ret.Choices, TextChoice{
			Text:         c.Text,
			FinishReason: c.FinishReason,
		})
	}
	return ret, nil
}

// sdkFloat maps an optional sampling parameter onto go-openai's omitempty
// float32 fields. An explicit 0 is sent as the smallest positive float32 so
// that it reaches the API instead of being dropped.
func sdkFloat(p *float64) float32 {
	if p == nil {
		return 0
	}
	if *p == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(*p)
}

// sdkError turns go-openai HTTP failures into *StatusError. Errors raised
// before a response arrived (network, context, unsupported model) are passed
// through.
func sdkError(err error) error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		se := &StatusError{
			StatusCode: apiErr.HTTPStatusCode,
			Type:       apiErr.Type,
			Message:    apiErr.Message,
		}
		if apiErr.Code != nil {
			se.Code = fmt.Sprint(apiErr.Code)
		}
		return se
	}

	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		se := &StatusError{StatusCode: reqErr.HTTPStatusCode}
		if reqErr.Err != nil {
			se.Message = reqErr.Err.Error()
		}
		return se
	}

	if errors.Is(err, go_openai.ErrCompletionUnsupportedModel) ||
		errors.Is(err, go_openai.ErrCompletionRequestPromptTypeNotSupported) {
		return &APIError{Kind: ErrInvalidRequest, Message: err.Error(), Err: err}
	}

	return err
}
