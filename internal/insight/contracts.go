// Package insight talks to the generative AI service that explains map nodes
// and backs the chat assistant.
package insight

import (
	"context"

	"healthmap/core-go/internal/domain"
)

// Source explains one node given its related context.
type Source interface {
	NodeInsight(ctx context.Context, node domain.Node, related []domain.Node) (string, error)
}

type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

type ChatRequest struct {
	History []ChatMessage `json:"history"`
	Message string        `json:"message"`
}

type ChatResponse struct {
	Text string `json:"text"`
}

// Chatter is the assistant chat contract. The HTTP API does not route chat;
// the contract is kept for hosts that embed this package next to the map and
// want the same backend for the assistant panel.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

type ImageRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type ImageResponse struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// ImageGenerator produces medical illustrations. No implementation ships
// with this service.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error)
}

type VideoRequest struct {
	Prompt      string `json:"prompt"`
	Resolution  string `json:"resolution,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type VideoResponse struct {
	URI string `json:"uri"`
}

// VideoGenerator is a long-running generation; implementations are expected
// to poll until the operation completes or ctx ends.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, req VideoRequest) (VideoResponse, error)
}
