package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"healthmap/core-go/internal/domain"
)

var ErrUpstream = errors.New("insight upstream error")

const (
	DefaultModel   = "gemini-2.5-flash"
	maxErrorBody   = 1024
	maxRelatedList = 12
)

type completionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type completionResponse struct {
	Text string `json:"text"`
}

type ClientOptions struct {
	URL    string
	APIKey string
	Model  string
	// Timeout applies to the underlying HTTP client. Zero means none.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client posts text completion requests to the AI service.
type Client struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
}

func NewClient(opts ClientOptions) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{url: opts.URL, apiKey: opts.APIKey, model: model, http: hc}
}

var (
	_ Source  = (*Client)(nil)
	_ Chatter = (*Client)(nil)
)

func (c *Client) NodeInsight(ctx context.Context, node domain.Node, related []domain.Node) (string, error) {
	return c.complete(ctx, NodePrompt(node, related))
}

// Chat implements Chatter against the same completion endpoint as
// NodeInsight. No route in this service calls it.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	text, err := c.complete(ctx, ChatPrompt(req))
	if err != nil {
		return ChatResponse{}, err
	}
	return ChatResponse{Text: text}, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(completionRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrUpstream)
	}
	return out.Text, nil
}

// NodePrompt asks for a short operational explanation of node in the context
// of its related nodes.
func NodePrompt(node domain.Node, related []domain.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a healthcare operations analyst. Explain in two or three sentences why the %s %q matters right now and what an operator should watch.\n",
		strings.ReplaceAll(string(node.Type), "_", " "), node.Label)
	for _, f := range node.Facts {
		fmt.Fprintf(&b, "- %s: %s\n", f.Label, f.Value)
	}
	if len(related) > 0 {
		b.WriteString("Related:\n")
		for i, r := range related {
			if i == maxRelatedList {
				fmt.Fprintf(&b, "- and %d more\n", len(related)-maxRelatedList)
				break
			}
			fmt.Fprintf(&b, "- %s %s\n", r.Type, r.Label)
		}
	}
	return b.String()
}

func ChatPrompt(req ChatRequest) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant for a healthcare operations team.\n")
	for _, m := range req.History {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	fmt.Fprintf(&b, "%s: %s\n", RoleUser, req.Message)
	return b.String()
}
