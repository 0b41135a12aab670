package vlm

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// #endregion

// #region types
// Request is one guarded question for the vision-language model.
type Request struct {
	System string
	Prompt string
	Image  []byte
}

// Answer holds the model's reply.
type Answer struct {
	Text       string
	DoneReason string
}

// #endregion types

// #region errors

var (
	// ErrUnavailable means the serving endpoint could not be reached.
	ErrUnavailable = errors.New("model unavailable")
	// ErrTimeout means the call ran past its deadline.
	ErrTimeout = errors.New("model call timed out")
)

// #endregion errors

// #region client-interface

// Client answers direct queries. Implementations must honor ctx deadlines.
type Client interface {
	Answer(ctx context.Context, req Request) (Answer, error)
}

// Chatter is the slice of the ollama API the client needs. Tests inject a
// fake; production uses *api.Client.
type Chatter interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// #endregion client-interface

// #region ollama-client

// OllamaClient talks to an ollama server hosting the vision model.
type OllamaClient struct {
	chat  Chatter
	model string
}

// NewOllamaClient connects to the ollama host, e.g. "http://127.0.0.1:11434".
func NewOllamaClient(host, model string) (*OllamaClient, error) {
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %s: %w", host, err)
	}
	return &OllamaClient{chat: api.NewClient(parsed, http.DefaultClient), model: model}, nil
}

// NewOllamaClientWithChat creates an OllamaClient with an injected chat
// implementation. Used for testing without a running server.
func NewOllamaClientWithChat(chat Chatter, model string) *OllamaClient {
	return &OllamaClient{chat: chat, model: model}
}

// #endregion ollama-client

// #region answer

// Answer sends the request as a single non-streamed chat turn and collects
// the reply.
func (c *OllamaClient) Answer(ctx context.Context, req Request) (Answer, error) {
	stream := false
	var messages []api.Message
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	user := api.Message{Role: "user", Content: req.Prompt}
	if len(req.Image) > 0 {
		user.Images = []api.ImageData{api.ImageData(req.Image)}
	}
	messages = append(messages, user)

	var text strings.Builder
	var doneReason string
	err := c.chat.Chat(ctx, &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		if resp.Done {
			doneReason = resp.DoneReason
		}
		return nil
	})
	if err != nil {
		return Answer{}, classifyErr(err)
	}
	return Answer{Text: text.String(), DoneReason: doneReason}, nil
}

// #endregion answer

// #region classify-err

// classifyErr maps transport failures onto the package sentinels so callers
// can choose a degraded answer without string matching.
func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection reset"):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("model chat: %w", err)
}

// #endregion classify-err
