// Package app assembles the pipeline components from configuration.
package app

import (
	"time"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/chain"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/chunker"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/config"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/embedding"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/ingest"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/llm"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/pinecone"
)

// Components holds the assembled pipeline.
type Components struct {
	Chain    *chain.Chain
	Pipeline *ingest.Pipeline
	Gateway  *pinecone.Gateway
}

// Build wires embedder, gateway, LLM, chain and ingestion pipeline from
// the configuration. Credentials are read from the environment.
func Build(cfg *config.AppConfig) (*Components, error) {
	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL:    cfg.OpenAI.BaseURL,
		APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
		Model:      cfg.OpenAI.EmbeddingModel,
		Dimension:  cfg.OpenAI.Dimension,
		BatchSize:  cfg.OpenAI.BatchSize,
		MaxRetries: 5,
		Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	indexClient, err := pinecone.NewClient(pinecone.ClientConfig{
		BaseURL:   cfg.Pinecone.BaseURL,
		APIKeyEnv: cfg.Pinecone.APIKeyEnv,
		Timeout:   time.Duration(cfg.Pinecone.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	gateway := pinecone.NewGateway(indexClient, pinecone.GatewayConfig{
		Index:       cfg.Pinecone.Index,
		Dimension:   cfg.OpenAI.Dimension,
		Metric:      cfg.Pinecone.Metric,
		Cloud:       cfg.Pinecone.Cloud,
		Region:      cfg.Pinecone.ResolvedRegion(),
		InitTimeout: time.Duration(cfg.Pinecone.InitTimeoutSecs) * time.Second,
	})

	model, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
		Model:       cfg.OpenAI.ChatModel,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	splitter, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap, cfg.Pinecone.Namespace)
	if err != nil {
		return nil, err
	}

	condenser := chain.NewCondenser(model)
	retriever := chain.NewRetriever(embedder, gateway, cfg.Pinecone.Namespace, cfg.Chain.RetrieveK)
	conversational := chain.New(condenser, retriever, model, chain.Config{
		MaxSources:       cfg.Chain.MaxSources,
		CondenseFallback: cfg.Chain.CondenseFallback,
	})
	pipeline := ingest.New(nil, splitter, embedder, gateway, cfg.Pinecone.Namespace)

	return &Components{
		Chain:    conversational,
		Pipeline: pipeline,
		Gateway:  gateway,
	}, nil
}
