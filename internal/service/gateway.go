package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"kaikei/pkg/config"

	"go.uber.org/zap"
)

// TextGenerator is the prompt-in, text-out surface the pipeline stages depend
// on. The key-rotation gateway is the production implementation.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VisionGenerator sends a prompt together with an image to the model. The
// text-extraction stage uses it when the local OCR engine fails on an image.
type VisionGenerator interface {
	GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// MultimodalGenerator is what the OCR stage needs: plain prompts for text
// refinement plus image prompts for the degraded path.
type MultimodalGenerator interface {
	TextGenerator
	VisionGenerator
}

// Embedder turns texts into embedding vectors for the retrieval store.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrNoAPIKeys is returned at construction when the credential pool is empty.
// This is a configuration error and should abort startup.
var ErrNoAPIKeys = errors.New("no Gemini API keys configured")

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gateway rotates LLM calls across a pool of API credentials. A logical call
// tries each key at most once, starting from the shared round-robin cursor,
// and returns the first successful response. The cursor advances under a
// mutex so concurrent pipeline runs stay fair.
type Gateway struct {
	keys           []string
	model          string
	embeddingModel string
	baseURL        string
	httpClient     *http.Client
	logger         *zap.Logger

	mu     sync.Mutex
	cursor int
}

func NewGateway(cfg *config.GeminiConfig, embeddingModel string, logger *zap.Logger) (*Gateway, error) {
	var keys []string
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoAPIKeys
	}

	return &Gateway{
		keys:           keys,
		model:          cfg.Model,
		embeddingModel: embeddingModel,
		baseURL:        defaultGeminiBaseURL,
		httpClient:     &http.Client{Timeout: cfg.CallTimeout},
		logger:         logger,
	}, nil
}

// KeyCount returns the size of the credential pool, which bounds the retry
// work of one logical call.
func (g *Gateway) KeyCount() int {
	return len(g.keys)
}

func (g *Gateway) nextKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := g.keys[g.cursor%len(g.keys)]
	g.cursor++
	return key
}

// Generate sends the prompt to the model, rotating through the credential
// pool until one key succeeds. When every key fails, the returned error
// carries the last observed failure.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < len(g.keys); attempt++ {
		key := g.nextKey()
		text, err := g.generateOnce(ctx, key, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		g.logger.Warn("LLM call failed, rotating key",
			zap.Int("attempt", attempt+1),
			zap.Int("pool_size", len(g.keys)),
			zap.Error(err),
		)
	}
	return "", fmt.Errorf("all %d Gemini keys failed: %w", len(g.keys), lastErr)
}

// GenerateWithImage sends the prompt plus an inline image to the model,
// rotating the credential pool the same way Generate does. The image travels
// as an inline_data part next to the text part.
func (g *Gateway) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < len(g.keys); attempt++ {
		key := g.nextKey()
		text, err := g.generateParts(ctx, key, []map[string]interface{}{
			{
				"inline_data": map[string]string{
					"mime_type": mimeType,
					"data":      base64.StdEncoding.EncodeToString(image),
				},
			},
			{"text": prompt},
		})
		if err == nil {
			return text, nil
		}
		lastErr = err
		g.logger.Warn("vision call failed, rotating key",
			zap.Int("attempt", attempt+1),
			zap.Int("pool_size", len(g.keys)),
			zap.Error(err),
		)
	}
	return "", fmt.Errorf("all %d Gemini keys failed: %w", len(g.keys), lastErr)
}

func (g *Gateway) generateOnce(ctx context.Context, key, prompt string) (string, error) {
	return g.generateParts(ctx, key, []map[string]interface{}{{"text": prompt}})
}

func (g *Gateway) generateParts(ctx context.Context, key string, parts []map[string]interface{}) (string, error) {
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": parts,
			},
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, key)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Gemini API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var genResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	return genResp.Candidates[0].Content.Parts[0].Text, nil
}

// Embed computes embeddings for a batch of texts, rotating the credential
// pool the same way Generate does.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < len(g.keys); attempt++ {
		key := g.nextKey()
		vectors, err := g.embedOnce(ctx, key, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		g.logger.Warn("embedding call failed, rotating key",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("all %d Gemini keys failed: %w", len(g.keys), lastErr)
}

func (g *Gateway) embedOnce(ctx context.Context, key string, texts []string) ([][]float32, error) {
	type embedRequest struct {
		Model   string `json:"model"`
		Content struct {
			Parts []map[string]string `json:"parts"`
		} `json:"content"`
	}

	var requests []embedRequest
	for _, text := range texts {
		r := embedRequest{Model: "models/" + g.embeddingModel}
		r.Content.Parts = []map[string]string{{"text": text}}
		requests = append(requests, r)
	}

	jsonData, err := json.Marshal(map[string]interface{}{"requests": requests})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", g.baseURL, g.embeddingModel, key)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var embedResp struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embedResp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(embedResp.Embeddings))
	for i, e := range embedResp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}
