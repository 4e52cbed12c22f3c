package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	. "github.com/akorchagin/privratnik/internal/logging"
)

// Message is one role-tagged entry of an outbound completion request.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Backend is the opaque model service the bot talks to. One round-trip per
// inbound turn; implementations must respect ctx cancellation.
type Backend interface {
	Complete(ctx context.Context, model string, messages []Message) (string, error)
	Transcribe(ctx context.Context, voice io.Reader) (string, error)
	Speak(ctx context.Context, text string) ([]byte, error)
	PaintImage(ctx context.Context, prompt string) ([]byte, error)
}

// Client implements Backend on the OpenAI API.
type Client struct {
	api     *openai.Client
	timeout time.Duration
}

// NewClient creates an OpenAI-backed client. Every call is bounded by
// timeout so a stuck backend surfaces as an error instead of a hang.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		api:     openai.NewClient(apiKey),
		timeout: timeout,
	}
}

// Complete sends the message sequence to the model and returns the generated
// text, or the refusal text when the model declines.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	spec, known := Lookup(model)
	if !known {
		L_warn("llm: unknown model, sending as-is", "model", model)
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(messages, spec),
	}

	start := time.Now()
	L_debug("llm: completion request", "model", model, "messages", len(messages), "estTokens", estimateTokens(model, messages))

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	msg := resp.Choices[0].Message
	L_info("llm: completion done",
		"model", model,
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if msg.Refusal != "" {
		L_warn("llm: model refused", "model", model)
		return msg.Refusal, nil
	}
	return msg.Content, nil
}

// convertMessages maps our messages onto the wire format. Reasoning models
// reject the system role, so personas are sent as user turns there.
func convertMessages(messages []Message, spec Model) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if spec.Reasoning && role == openai.ChatMessageRoleSystem {
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return out
}

// Transcribe converts a voice recording to text via whisper.
func (c *Client) Transcribe(ctx context.Context, voice io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   voice,
		FilePath: "voice.ogg",
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Text, nil
}

// Speak renders text to mp3 audio.
func (c *Client) Speak(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.VoiceAlloy,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech audio: %w", err)
	}
	return data, nil
}

// PaintImage generates one image for the prompt and returns its bytes.
func (c *Client) PaintImage(ctx context.Context, prompt string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Model:          openai.CreateImageModelDallE3,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("image generation returned no data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return data, nil
}
