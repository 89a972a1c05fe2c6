package semindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embedder turns texts into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// HTTPEmbedder calls an embedding service compatible with the
// text-embeddings-inference API: POST {"inputs": [...]} returning a float
// matrix.
type HTTPEmbedder struct {
	URL    string
	Dim    int
	Client *http.Client
}

// NewHTTPEmbedder creates an embedder against a service endpoint.
func NewHTTPEmbedder(url string, dim int) *HTTPEmbedder {
	if dim <= 0 {
		dim = 768
	}
	return &HTTPEmbedder{
		URL:    url,
		Dim:    dim,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Dimension returns the vector width the service produces.
func (e *HTTPEmbedder) Dimension() int { return e.Dim }

// Embed requests vectors for a batch of texts.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(map[string]any{"inputs": texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed service status %d: %s", resp.StatusCode, body)
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed service returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.Dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), e.Dim)
		}
	}
	return vectors, nil
}
