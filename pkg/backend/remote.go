package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Jeevan-04/Invariant/pkg/errs"
	"github.com/Jeevan-04/Invariant/pkg/graph"
)

// RemoteChatBackend forwards prompts to an external OpenAI-compatible
// chat-completion endpoint with stream=true and parses its
// server-sent events into a token stream.
type RemoteChatBackend struct {
	client   *http.Client
	endpoint string // e.g. "https://api.openai.com/v1/chat/completions"
	apiKey   string
}

// NewRemoteChatBackend returns a backend that posts to endpoint with
// apiKey as a bearer token.
func NewRemoteChatBackend(client *http.Client, endpoint, apiKey string) *RemoteChatBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteChatBackend{client: client, endpoint: endpoint, apiKey: apiKey}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	Seed        *int64        `json:"seed,omitempty"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// decodingStrategyToTemperature translates model_spec's decoding
// strategy into the temperature the upstream API expects. "greedy"
// means temperature 0; "temperature=<f>" passes the float through.
func decodingStrategyToTemperature(strategy string) (float64, error) {
	if strategy == "greedy" {
		return 0, nil
	}
	if rest, ok := strings.CutPrefix(strategy, "temperature="); ok {
		t, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid temperature in decoding_strategy %q: %w", strategy, err)
		}
		return t, nil
	}
	return 0, fmt.Errorf("unrecognised decoding_strategy %q", strategy)
}

func (b *RemoteChatBackend) Generate(ctx context.Context, prompt string, model graph.ModelSpec) (TokenStream, error) {
	temp, err := decodingStrategyToTemperature(model.DecodingStrategy())
	if err != nil {
		return nil, errs.Backend("%v", err)
	}
	seed := model.Seed()

	body, err := json.Marshal(chatRequest{
		Model:       model.Name(),
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Stream:      true,
		Temperature: &temp,
		Seed:        &seed,
	})
	if err != nil {
		return nil, errs.Backend("encoding request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, errs.Backend("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errs.Backend("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errs.Backend("upstream returned status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/event-stream") {
		_ = resp.Body.Close()
		return nil, errs.Backend("expected text/event-stream, got %q", contentType)
	}

	return &sseTokenStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// sseTokenStream parses an OpenAI-style server-sent-event stream into
// individual delta-content tokens, one `data: {...}` line at a time.
// A line of `data: [DONE]` ends the stream cleanly.
type sseTokenStream struct {
	body    interface{ Close() error }
	scanner *bufio.Scanner
	done    bool
}

func (s *sseTokenStream) Next() (string, bool, error) {
	if s.done {
		return "", false, nil
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			s.done = true
			return "", false, nil
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", false, errs.Backend("malformed sse chunk: %v", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		tok := chunk.Choices[0].Delta.Content
		if tok == "" {
			if chunk.Choices[0].FinishReason != nil {
				s.done = true
				return "", false, nil
			}
			continue
		}
		return tok, true, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", false, errs.Backend("reading sse stream: %v", err)
	}
	s.done = true
	return "", false, nil
}

func (s *sseTokenStream) Close() error {
	return s.body.Close()
}
