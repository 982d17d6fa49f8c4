// internal/llm/embeddings.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// EmbeddingRequest defines the request structure for generating embeddings.
type EmbeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format"`
}

// EmbeddingResponse defines the response structure from the embedding service.
type EmbeddingResponse struct {
	Object string      `json:"object"`
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
}

// Embedding represents a single embedding result.
type Embedding struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbedBatch generates embeddings for the provided text chunks against an
// OpenAI-shape embeddings endpoint (host/model/dims configured via
// internal/config's EmbeddingsConfig). A chunk too short to carry meaning
// gets a zero vector rather than failing the whole batch, since a single
// noisy memory chunk shouldn't abort storage of its siblings.
func EmbedBatch(ctx context.Context, host, apiKey, model string, dims int, chunks []string) ([][]float32, error) {
	results := make([][]float32, len(chunks))
	var wg sync.WaitGroup
	// limit to 5 concurrent embedding requests
	sem := make(chan struct{}, 5)

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if len(strings.TrimSpace(chunk)) < 10 {
				log.Ctx(ctx).Warn().Int("index", i).Msg("chunk too short for embedding, using zero vector")
				results[i] = make([]float32, dims)
				return
			}

			req := EmbeddingRequest{
				Input:          []string{chunk},
				Model:          model,
				EncodingFormat: "float",
			}

			singleEmbedding, err := FetchEmbeddings(ctx, host, req, apiKey)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Int("index", i).Msg("failed to embed chunk, using zero vector")
				results[i] = make([]float32, dims)
			} else if len(singleEmbedding) > 0 {
				results[i] = singleEmbedding[0]
			} else {
				log.Ctx(ctx).Warn().Int("index", i).Msg("empty embedding result, using zero vector")
				results[i] = make([]float32, dims)
			}
		}(i, chunk)
	}

	wg.Wait()
	return results, nil
}

// FetchEmbeddings sends the embedding request to the specified host and parses the response.
func FetchEmbeddings(ctx context.Context, host string, request EmbeddingRequest, apiKey string) ([][]float32, error) {
	b, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", host, bytes.NewBuffer(b))
	if err != nil {
		return nil, err
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	var embeddings [][]float32
	for _, item := range result["data"].([]interface{}) {
		var embedding []float32
		dataMap := item.(map[string]interface{})
		for _, v := range dataMap["embedding"].([]interface{}) {
			embedding = append(embedding, float32(v.(float64)))
		}
		embeddings = append(embeddings, embedding)
	}
	return embeddings, nil
}
