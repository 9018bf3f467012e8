package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-go-golems/parley/pkg/turns"
	"github.com/pkg/errors"
)

// HTTPTransport posts raw JSON to the OpenAI-compatible REST endpoints.
type HTTPTransport struct {
	httpClient *http.Client
	credential Credential
	baseURL    string
	userAgent  string
}

var _ Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(cred Credential, baseURL string, httpClient *http.Client) *HTTPTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPTransport{
		httpClient: httpClient,
		credential: cred,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type httpParameters struct {
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	N                int            `json:"n,omitempty"`
	Stop             []string       `json:"stop,omitempty"`
	LogitBias        map[string]int `json:"logit_bias,omitempty"`
	User             string         `json:"user,omitempty"`
}

func toHTTPParameters(p Parameters) httpParameters {
	return httpParameters{
		MaxTokens:        p.MaxTokens,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		PresencePenalty:  p.PresencePenalty,
		FrequencyPenalty: p.FrequencyPenalty,
		N:                p.N,
		Stop:             p.Stop,
		LogitBias:        p.LogitBias,
		User:             p.User,
	}
}

type httpChatRequest struct {
	Model    string       `json:"model"`
	Messages []turns.Turn `json:"messages"`
	httpParameters
}

type httpChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int        `json:"index"`
		Message      turns.Turn `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
}

type httpCompletionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	httpParameters
}

type httpCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int    `json:"index"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type httpErrorResponse struct {
	Error *struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

func (t *HTTPTransport) CreateChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var resp httpChatResponse
	err := t.post(ctx, "/chat/completions", &httpChatRequest{
		Model:          req.Model,
		Messages:       req.Messages,
		httpParameters: toHTTPParameters(req.Parameters),
	}, &resp)
	if err != nil {
		return nil, err
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
			FinishReason: c.FinishReason,
		})
	}
	return ret, nil
}

func (t *HTTPTransport) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var resp httpCompletionResponse
	err := t.post(ctx, "/completions", &httpCompletionRequest{
		Model:          req.Model,
		Prompt:         req.Prompt,
		httpParameters: toHTTPParameters(req.Parameters),
	}, &resp)
	if err != nil {
		return nil, err
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

func (t *HTTPTransport) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.credential.APIKey)
	if t.credential.Organization != "" {
		req.Header.Set("OpenAI-Organization", t.credential.Organization)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
}

func (t *HTTPTransport) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &APIError{Kind: ErrInvalidRequest, Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &APIError{Kind: ErrInvalidRequest, Message: err.Error(), Err: err}
	}
	t.setHeaders(req)

	// #nosec G107 -- the base URL is checked with ValidateBaseURL when the client is built.
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "could not read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var errorResp httpErrorResponse
		if json.Unmarshal(respBody, &errorResp) == nil && errorResp.Error != nil {
			se.Message = errorResp.Error.Message
			se.Type = errorResp.Error.Type
			if errorResp.Error.Code != nil {
				se.Code = fmt.Sprint(errorResp.Error.Code)
			}
		} else {
			se.Message = strings.TrimSpace(string(respBody))
		}
		return se
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "could not decode response from %s", path)
	}
	return nil
}
