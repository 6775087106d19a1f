package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is against these.
var (
	// ErrValidation marks client-caused input errors. Never retried and
	// rejected before any external call is made.
	ErrValidation = errors.New("invalid request")

	// ErrDependency marks failures of an external service (embeddings,
	// LLM, vector index). Potentially transient.
	ErrDependency = errors.New("dependency failure")

	// ErrProvisioning marks index creation or readiness failures. Fatal
	// for the affected request, not for the process.
	ErrProvisioning = errors.New("index provisioning failed")

	// ErrPipeline marks internal chain-state violations. Seeing one in
	// operation indicates a bug.
	ErrPipeline = errors.New("internal pipeline error")
)

// Stage errors. Each wraps its kind so errors.Is matches both the stage
// and the class.
var (
	ErrChunking   = fmt.Errorf("document chunking failed: %w", ErrValidation)
	ErrEmbedding  = fmt.Errorf("embedding service unavailable: %w", ErrDependency)
	ErrCondense   = fmt.Errorf("question condensation failed: %w", ErrDependency)
	ErrGeneration = fmt.Errorf("answer generation failed: %w", ErrDependency)
	ErrIndexQuery = fmt.Errorf("index query failed: %w", ErrDependency)
	ErrIndexWrite = fmt.Errorf("index write failed: %w", ErrDependency)
)
