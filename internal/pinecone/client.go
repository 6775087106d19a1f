// Package pinecone implements the vector index gateway: a REST client
// for the index service and an idempotent provisioning layer on top.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// Client is a minimal REST client to the vector index control plane.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// ClientConfig configures the index service client.
type ClientConfig struct {
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
}

// IndexInfo describes one index as reported by the control plane.
type IndexInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// CreateIndexRequest is the control-plane index creation payload.
type CreateIndexRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Spec      struct {
		Serverless struct {
			Cloud  string `json:"cloud"`
			Region string `json:"region"`
		} `json:"serverless"`
	} `json:"spec"`
}

// NewClient creates an index service client. The API key is read from
// the environment.
func NewClient(cfg ClientConfig) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pinecone.io"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  key,
		client:  &http.Client{Timeout: t},
	}, nil
}

// ListIndexes returns all indexes visible to the credentials.
func (c *Client) ListIndexes(ctx context.Context) ([]IndexInfo, error) {
	var out struct {
		Indexes []IndexInfo `json:"indexes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/indexes", nil, &out); err != nil {
		return nil, err
	}
	return out.Indexes, nil
}

// CreateIndex asks the control plane to create an index. Creation is
// asynchronous on the provider side; poll DescribeIndex for readiness.
func (c *Client) CreateIndex(ctx context.Context, req CreateIndexRequest) error {
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/indexes", req, nil)
}

// DescribeIndex returns the current state of a single index.
func (c *Client) DescribeIndex(ctx context.Context, name string) (*IndexInfo, error) {
	var out IndexInfo
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/indexes/"+name, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("index service %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Handle is a connection to one provisioned index's data plane. Handles
// are created by the Gateway and shared process-wide.
type Handle struct {
	name   string
	host   string
	apiKey string
	client *http.Client
}

func newHandle(name, host, apiKey string, httpClient *http.Client) *Handle {
	if !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return &Handle{name: name, host: host, apiKey: apiKey, client: httpClient}
}

// Name returns the index name this handle points at.
func (h *Handle) Name() string { return h.name }

const upsertBatchSize = 100

type wireVector struct {
	ID       string         `json:"id"`
	Values   []float64      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Upsert writes all entries, overwriting by id. Batches are sequential;
// all entries are written before Upsert returns.
func (h *Handle) Upsert(ctx context.Context, entries []domain.IndexedEntry, namespace string) error {
	for start := 0; start < len(entries); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		vectors := make([]wireVector, 0, end-start)
		for _, e := range entries[start:end] {
			vectors = append(vectors, wireVector{
				ID:       e.ID,
				Values:   e.Vector,
				Metadata: metadataToWire(e.Text, e.Metadata),
			})
		}
		body := map[string]any{"vectors": vectors}
		if namespace != "" {
			body["namespace"] = namespace
		}
		if err := h.postJSON(ctx, h.host+"/vectors/upsert", body, nil); err != nil {
			return fmt.Errorf("upsert %d entries: %v: %w", end-start, err, domain.ErrIndexWrite)
		}
	}
	return nil
}

// Query returns up to k chunks ranked by similarity, highest first.
func (h *Handle) Query(ctx context.Context, vector []float64, k int, namespace string) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		k = 5
	}
	body := map[string]any{
		"vector":          vector,
		"topK":            k,
		"includeMetadata": true,
	}
	if namespace != "" {
		body["namespace"] = namespace
	}
	var out struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := h.postJSON(ctx, h.host+"/query", body, &out); err != nil {
		return nil, fmt.Errorf("query top %d: %v: %w", k, err, domain.ErrIndexQuery)
	}
	chunks := make([]domain.RetrievedChunk, 0, len(out.Matches))
	for i, m := range out.Matches {
		text, meta := metadataFromWire(m.Metadata)
		chunks = append(chunks, domain.RetrievedChunk{
			Text:     text,
			Metadata: meta,
			Rank:     i,
			Score:    m.Score,
		})
	}
	return chunks, nil
}

func (h *Handle) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", h.apiKey)
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("index %s POST failed: %s", h.name, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// textKey is the metadata field holding the chunk text, alongside its
// provenance fields.
const textKey = "text"

func metadataToWire(text string, m domain.ChunkMetadata) map[string]any {
	wire := map[string]any{textKey: text}
	if m.Source != "" {
		wire["source"] = m.Source
	}
	if m.FileName != "" {
		wire["fileName"] = m.FileName
	}
	if m.Page != nil {
		wire["page"] = float64(*m.Page)
	}
	if m.PageNumber != nil {
		wire["pageNumber"] = float64(*m.PageNumber)
	}
	if m.Namespace != "" {
		wire["namespace"] = m.Namespace
	}
	return wire
}

func metadataFromWire(wire map[string]any) (string, domain.ChunkMetadata) {
	var meta domain.ChunkMetadata
	text, _ := wire[textKey].(string)
	if v, ok := wire["source"].(string); ok {
		meta.Source = v
	}
	if v, ok := wire["fileName"].(string); ok {
		meta.FileName = v
	}
	if v, ok := wire["page"].(float64); ok {
		p := int(v)
		meta.Page = &p
	}
	if v, ok := wire["pageNumber"].(float64); ok {
		p := int(v)
		meta.PageNumber = &p
	}
	if v, ok := wire["namespace"].(string); ok {
		meta.Namespace = v
	}
	return text, meta
}
