package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-go-golems/parley/pkg/helpers"
	"github.com/go-go-golems/parley/pkg/settings"
	"github.com/go-go-golems/parley/pkg/turns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	requests atomic.Int32

	mu          sync.Mutex
	temperature *float64
	topP        *float64
}

func (f *fakeAPI) sampling() (temperature, topP *float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.temperature, f.topP
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, errType, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
			"param":   nil,
			"code":    code,
		},
	})
}

// ServeHTTP answers like the OpenAI REST API. The model name selects failure
// scenarios.
func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)

	if r.Header.Get("Authorization") != "Bearer sk-test" {
		writeAPIError(w, http.StatusUnauthorized, "invalid_request_error", "invalid_api_key", "Incorrect API key provided")
		return
	}
	if r.Header.Get("OpenAI-Organization") != "org-test" {
		writeAPIError(w, http.StatusForbidden, "invalid_request_error", "", "wrong organization")
		return
	}

	var body struct {
		Model    string       `json:"model"`
		Prompt   string       `json:"prompt"`
		Messages []turns.Turn `json:"messages"`
		N        int          `json:"n"`

		Temperature *float64 `json:"temperature"`
		TopP        *float64 `json:"top_p"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_request_error", "", err.Error())
		return
	}
	f.mu.Lock()
	f.temperature, f.topP = body.Temperature, body.TopP
	f.mu.Unlock()

	switch body.Model {
	case "too-long":
		writeAPIError(w, http.StatusBadRequest, "invalid_request_error", "context_length_exceeded", "maximum context length is 8192 tokens")
		return
	case "overloaded":
		writeAPIError(w, http.StatusServiceUnavailable, "server_error", "", "the server is overloaded")
		return
	case "broke":
		writeAPIError(w, http.StatusTooManyRequests, "insufficient_quota", "insufficient_quota", "you exceeded your current quota")
		return
	case "garbage":
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
		return
	}

	n := body.N
	if n == 0 {
		n = 1
	}

	switch r.URL.Path {
	case "/v1/chat/completions":
		choices := []map[string]interface{}{}
		for i := 0; i < n; i++ {
			choices = append(choices, map[string]interface{}{
				"index":         i,
				"message":       map[string]string{"role": "assistant", "content": "echo: " + body.Messages[len(body.Messages)-1].Content},
				"finish_reason": "stop",
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": "chatcmpl-1", "object": "chat.completion", "model": body.Model, "choices": choices,
		})
	case "/v1/completions":
		choices := []map[string]interface{}{}
		for i := 0; i < n; i++ {
			choices = append(choices, map[string]interface{}{
				"index": i, "text": "  completed " + body.Prompt + "\n", "finish_reason": "stop",
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": "cmpl-1", "object": "text_completion", "model": body.Model, "choices": choices,
		})
	default:
		writeAPIError(w, http.StatusNotFound, "invalid_request_error", "", "unknown path "+r.URL.Path)
	}
}

func newServerClient(t *testing.T, key string) (*Client, *fakeAPI) {
	api := &fakeAPI{}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	s := settings.NewSettings()
	s.Client.BaseURL = helpers.ToPointer(server.URL + "/v1")
	s.Client.AllowHTTP = true
	s.Client.AllowLocalNetworks = true
	s.Client.HTTPClient = server.Client()

	c, err := NewClient(Credential{APIKey: key, Organization: "org-test"}, s, WithSleeper(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
	require.NoError(t, err)
	return c, api
}

var accesses = []Access{AccessSDK, AccessHTTP}

func TestTransportsChatCompletion(t *testing.T) {
	for _, access := range accesses {
		t.Run(string(access), func(t *testing.T) {
			c, _ := newServerClient(t, "sk-test")
			completions, err := c.ChatCompletions(context.Background(), []turns.Turn{
				turns.NewTurn("user", "hello"),
			}, WithAccess(access), WithN(2), WithModel("gpt-3.5-turbo"))
			require.NoError(t, err)
			require.Len(t, completions, 2)
			assert.Equal(t, Completion{Role: "assistant", Content: "echo: hello", FinishReason: "stop"}, *completions[1])
		})
	}
}

func TestTransportsCompletion(t *testing.T) {
	for _, access := range accesses {
		t.Run(string(access), func(t *testing.T) {
			c, _ := newServerClient(t, "sk-test")
			text, err := c.Completion(context.Background(), "this", WithAccess(access))
			require.NoError(t, err)
			assert.Equal(t, "completed this", text)
		})
	}
}

func TestTransportsShareErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		model    string
		kind     error
		requests int32
	}{
		{name: "bad key", key: "sk-wrong", model: "gpt-4", kind: ErrAuthentication, requests: 1},
		{name: "too long", key: "sk-test", model: "too-long", kind: ErrTooManyTokens, requests: 1},
		{name: "quota", key: "sk-test", model: "broke", kind: ErrServiceUnavailable, requests: 1},
		{name: "overloaded", key: "sk-test", model: "overloaded", kind: ErrServiceUnavailable, requests: 3},
		{name: "non-json error", key: "sk-test", model: "garbage", kind: ErrServiceUnavailable, requests: 3},
	}

	for _, access := range accesses {
		for _, tt := range tests {
			t.Run(string(access)+"/"+tt.name, func(t *testing.T) {
				c, api := newServerClient(t, tt.key)
				_, err := c.ChatCompletion(context.Background(), []turns.Turn{
					turns.NewTurn("user", "hello"),
				}, WithAccess(access), WithModel(tt.model), WithRetries(3))
				require.ErrorIs(t, err, tt.kind)
				assert.Equal(t, tt.requests, api.requests.Load())
			})
		}
	}
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	s := settings.NewSettings()
	s.Client.BaseURL = helpers.ToPointer("http://127.0.0.1:1/v1")
	_, err := NewClient(Credential{APIKey: "sk-test"}, s)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewClient(Credential{}, nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestTransportsSendExplicitZeroSampling(t *testing.T) {
	for _, access := range accesses {
		t.Run(string(access), func(t *testing.T) {
			c, api := newServerClient(t, "sk-test")
			_, err := c.ChatCompletion(context.Background(), []turns.Turn{
				turns.NewTurn("user", "hello"),
			}, WithAccess(access), WithModel("gpt-3.5-turbo"), WithTemperature(0))
			require.NoError(t, err)

			temperature, topP := api.sampling()
			require.NotNil(t, temperature)
			assert.InDelta(t, 0, *temperature, 1e-6)
			assert.Nil(t, topP)
		})
	}
}
