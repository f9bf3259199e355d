package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/domain"
)

const captionRequestTimeout = 120 * time.Second

var captionSystemPrompt = strings.Join([]string{
	"You are a strict captioning system for LoRA dataset preparation.",
	"Follow the user's prompt directly and generate a single concise caption or description for the given image.",
	"Rules:",
	"1) Only output captions/descriptions relevant to the image.",
	"2) No questions, no explanations, no meta commentary.",
	"3) Keep it one coherent paragraph, descriptive, and high-signal.",
	"4) Avoid hallucinations, irrelevant filler, or anything outside the caption.",
}, "\n")

// CaptionService talks to a vision-language backend and produces one
// caption per image. It holds no state beyond the shared HTTP client;
// retries happen naturally on the next worker tick because a failed file
// stays uncaptioned.
type CaptionService struct {
	httpClient *http.Client
}

func NewCaptionService() *CaptionService {
	return &CaptionService{
		httpClient: &http.Client{
			Timeout: captionRequestTimeout,
		},
	}
}

// Generate dispatches on the provider name. An empty or unrecognized
// provider yields an empty caption with no error, so a misconfigured run
// never wedges the pipeline.
func (s *CaptionService) Generate(ctx context.Context, imagePath string, cfg domain.CaptionConfig) (string, error) {
	switch cfg.Provider {
	case domain.ProviderOllama:
		return s.generateOllama(ctx, imagePath, cfg)
	case domain.ProviderOpenAI:
		return s.generateChatCompletions(ctx, imagePath, cfg, true)
	case domain.ProviderLMStudio:
		return s.generateChatCompletions(ctx, imagePath, cfg, false)
	default:
		return "", nil
	}
}

func (s *CaptionService) generateOllama(ctx context.Context, imagePath string, cfg domain.CaptionConfig) (string, error) {
	imageB64, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"model": cfg.Model,
		"messages": []map[string]any{
			{"role": "system", "content": captionSystemPrompt},
			{"role": "user", "content": strings.TrimSpace(cfg.Prompt), "images": []string{imageB64}},
		},
		"stream": false,
	}

	body, err := s.post(ctx, strings.TrimRight(cfg.BaseURL, "/")+"/api/chat", payload, "")
	if err != nil {
		return "", err
	}

	// Response shape varies by version: prefer message.content, fall back
	// to the top-level response field.
	var response struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}

	caption := strings.TrimSpace(response.Message.Content)
	if caption == "" {
		caption = strings.TrimSpace(response.Response)
	}
	if caption == "" {
		return "", errors.New("empty caption from model")
	}
	return caption, nil
}

func (s *CaptionService) generateChatCompletions(ctx context.Context, imagePath string, cfg domain.CaptionConfig, auth bool) (string, error) {
	dataURL, err := encodeImageDataURL(imagePath)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"model": cfg.Model,
		"messages": []map[string]any{
			{"role": "system", "content": captionSystemPrompt},
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": strings.TrimSpace(cfg.Prompt)},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
				},
			},
		},
		"temperature": 0.2,
		"max_tokens":  256,
		"top_p":       0.9,
		"stream":      false,
	}

	apiKey := ""
	if auth {
		apiKey = cfg.APIKey
	}

	body, err := s.post(ctx, strings.TrimRight(cfg.BaseURL, "/")+"/chat/completions", payload, apiKey)
	if err != nil {
		return "", err
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("decode completions response: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", errors.New("no caption returned")
	}

	caption := strings.TrimSpace(response.Choices[0].Message.Content)
	if caption == "" {
		return "", errors.New("empty caption from model")
	}
	return caption, nil
}

func (s *CaptionService) post(ctx context.Context, url string, payload map[string]any, apiKey string) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode caption payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, captionRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return nil, fmt.Errorf("create caption request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read caption response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeAPIError(resp.StatusCode, body)
	}

	return body, nil
}

func decodeAPIError(status int, body []byte) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("caption api error: status %d type %s message %s", status, apiErr.Error.Type, apiErr.Error.Message)
	}

	return fmt.Errorf("caption api error: status %d body %s", status, string(body))
}

func encodeImage(imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func encodeImageDataURL(imagePath string) (string, error) {
	b64, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, b64), nil
}
