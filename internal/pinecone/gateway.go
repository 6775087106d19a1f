package pinecone

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// GatewayConfig configures index provisioning.
type GatewayConfig struct {
	Index        string
	Dimension    int
	Metric       string
	Cloud        string
	Region       string
	InitTimeout  time.Duration
	PollInterval time.Duration
}

// Gateway owns the lifecycle of the external index: existence check,
// idempotent creation, readiness wait and handle caching. The handle is
// created at most once per process; concurrent first callers are
// coalesced into a single provisioning attempt and all receive the same
// handle or the same error.
type Gateway struct {
	client *Client
	cfg    GatewayConfig

	group  singleflight.Group
	mu     sync.RWMutex
	handle *Handle
}

// NewGateway wraps a client with provisioning state for one index.
func NewGateway(client *Client, cfg GatewayConfig) *Gateway {
	if cfg.Metric == "" {
		cfg.Metric = "cosine"
	}
	if cfg.InitTimeout == 0 {
		cfg.InitTimeout = 4 * time.Minute
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Gateway{client: client, cfg: cfg}
}

// Ensure returns the process-wide handle for the configured index,
// provisioning the index on first use. Safe for concurrent use; a second
// call never issues a second creation.
func (g *Gateway) Ensure(ctx context.Context) (*Handle, error) {
	g.mu.RLock()
	h := g.handle
	g.mu.RUnlock()
	if h != nil {
		return h, nil
	}
	v, err, _ := g.group.Do(g.cfg.Index, func() (any, error) {
		return g.provision(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Upsert writes entries through the process-wide handle, provisioning on
// first use.
func (g *Gateway) Upsert(ctx context.Context, entries []domain.IndexedEntry, namespace string) error {
	h, err := g.Ensure(ctx)
	if err != nil {
		return err
	}
	return h.Upsert(ctx, entries, namespace)
}

// Query runs a similarity search through the process-wide handle.
func (g *Gateway) Query(ctx context.Context, vector []float64, k int, namespace string) ([]domain.RetrievedChunk, error) {
	h, err := g.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	return h.Query(ctx, vector, k, namespace)
}

func (g *Gateway) provision(ctx context.Context) (*Handle, error) {
	// A caller that lost the singleflight race may arrive here after the
	// winner already cached the handle.
	g.mu.RLock()
	h := g.handle
	g.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	indexes, err := g.client.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %v: %w", err, domain.ErrProvisioning)
	}
	exists := false
	for _, info := range indexes {
		if info.Name == g.cfg.Index {
			exists = true
			break
		}
	}
	if !exists {
		req := CreateIndexRequest{
			Name:      g.cfg.Index,
			Dimension: g.cfg.Dimension,
			Metric:    g.cfg.Metric,
		}
		req.Spec.Serverless.Cloud = g.cfg.Cloud
		req.Spec.Serverless.Region = g.cfg.Region
		if err := g.client.CreateIndex(ctx, req); err != nil {
			return nil, fmt.Errorf("create index %s: %v: %w", g.cfg.Index, err, domain.ErrProvisioning)
		}
		log.Printf("created index %s, waiting for readiness", g.cfg.Index)
	}

	info, err := g.waitReady(ctx)
	if err != nil {
		return nil, err
	}
	handle := newHandle(info.Name, info.Host, g.client.apiKey, g.client.client)
	g.mu.Lock()
	g.handle = handle
	g.mu.Unlock()
	return handle, nil
}

// waitReady polls the control plane until the index reports ready,
// bounded by the configured init timeout.
func (g *Gateway) waitReady(ctx context.Context) (*IndexInfo, error) {
	deadline := time.Now().Add(g.cfg.InitTimeout)
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()
	for {
		info, err := g.client.DescribeIndex(ctx, g.cfg.Index)
		if err != nil {
			return nil, fmt.Errorf("describe index %s: %v: %w", g.cfg.Index, err, domain.ErrProvisioning)
		}
		if info.Status.Ready && info.Host != "" {
			return info, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("index %s not ready after %s: %w", g.cfg.Index, g.cfg.InitTimeout, domain.ErrProvisioning)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("index %s readiness wait: %v: %w", g.cfg.Index, ctx.Err(), domain.ErrProvisioning)
		}
	}
}

var _ domain.Index = (*Gateway)(nil)
