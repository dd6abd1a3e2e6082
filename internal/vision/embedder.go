package vision

import (
	"context"
	"image"
	"log"
	"slices"
	"sync/atomic"

	"github.com/mhoracek/homeframe/internal/vector"
)

// Embedder wraps the face embedding model behind the inference service.
// Embedding failures degrade to nil, never an error: the caller skips the
// face and continues with the rest of the photo.
type Embedder struct {
	client    *Client
	model     string
	dim       int
	available atomic.Bool
}

// NewEmbedder creates an embedder for the named model producing vectors of
// the given dimension.
func NewEmbedder(client *Client, model string, dim int) *Embedder {
	if dim <= 0 {
		dim = vector.Dim
	}
	return &Embedder{
		client: client,
		model:  model,
		dim:    dim,
	}
}

// Load checks that the inference service is reachable and serves the
// embedding model. Returns true iff the embedder is usable.
func (e *Embedder) Load(ctx context.Context) bool {
	models, err := e.client.Models(ctx)
	if err != nil {
		log.Printf("face embedding model not available: %v", err)
		e.available.Store(false)
		return false
	}
	if !slices.Contains(models, e.model) {
		log.Printf("face embedding model %q not loaded by vision service", e.model)
		e.available.Store(false)
		return false
	}
	log.Printf("face embedding model loaded: %s", e.model)
	e.available.Store(true)
	return true
}

// Available reports whether the embedding model is loaded.
func (e *Embedder) Available() bool {
	return e.available.Load()
}

// Embed computes the L2-normalized embedding for an aligned face crop.
// Returns nil when the model is unavailable or inference fails. The output is
// always re-normalized so downstream cosine math sees unit vectors even if
// the model output drifts.
func (e *Embedder) Embed(ctx context.Context, crop image.Image) []float32 {
	if !e.Available() {
		return nil
	}

	data, err := EncodeJPEG(crop)
	if err != nil {
		log.Printf("face embedding: failed to encode crop: %v", err)
		return nil
	}

	emb, err := e.client.EmbedFace(ctx, data)
	if err != nil {
		log.Printf("face embedding inference error: %v", err)
		return nil
	}
	if len(emb) != e.dim {
		log.Printf("face embedding: unexpected dimension %d, want %d", len(emb), e.dim)
		return nil
	}

	return vector.Normalize(emb)
}
