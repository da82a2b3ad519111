package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/env"
)

// Chatbot relays non-command text to an external responder service.
type Chatbot struct {
	client *resty.Client
	url    string
}

// NewChatbotFromEnv returns nil when no responder is configured; the gateway
// treats a nil chatbot as the feature being unavailable regardless of the
// per-number toggle.
func NewChatbotFromEnv() *Chatbot {
	url := env.GetEnvStringOrDefault("CHATBOT_API_URL", "")
	if url == "" {
		return nil
	}
	client := resty.New().
		SetTimeout(20 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &Chatbot{client: client, url: url}
}

type chatbotResponse struct {
	Reply    string `json:"reply"`
	Response string `json:"response"`
	Message  string `json:"message"`
}

// Ask forwards the text and returns the responder's answer, empty when the
// responder had nothing to say.
func (cb *Chatbot) Ask(ctx context.Context, text string) (string, error) {
	var out chatbotResponse
	resp, err := cb.client.R().
		SetContext(ctx).
		SetQueryParam("message", text).
		SetResult(&out).
		Get(cb.url)
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("chatbot responder returned %s", resp.Status())
	}
	switch {
	case out.Reply != "":
		return out.Reply, nil
	case out.Response != "":
		return out.Response, nil
	default:
		return out.Message, nil
	}
}
