// Package worker runs the background ingestion loop that turns uploaded
// photos into face identities: detect, embed, match, persist.
package worker

import (
	"context"
	"errors"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mhoracek/homeframe/internal/cluster"
	"github.com/mhoracek/homeframe/internal/database"
	"github.com/mhoracek/homeframe/internal/vision"
)

// Config holds worker tuning knobs.
type Config struct {
	MatchThreshold float64       // cosine distance for an online match (inclusive)
	PollInterval   time.Duration // queue wait per loop iteration
	StopTimeout    time.Duration // bound on draining the in-flight photo at Stop
}

const (
	defaultPollInterval = 2 * time.Second
	defaultStopTimeout  = 5 * time.Second
)

// Worker is the single consumer of the photo ingestion queue. Construct one
// per process and inject it where needed; there is no package-level instance.
type Worker struct {
	store    database.FaceStore
	photos   database.PhotoStore
	detector *vision.Detector
	embedder *vision.Embedder
	cfg      Config

	queue   *fifo
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a worker. Call Start before enqueueing work.
func New(store database.FaceStore, photos database.PhotoStore, detector *vision.Detector, embedder *vision.Embedder, cfg Config) *Worker {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 0.4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Worker{
		store:    store,
		photos:   photos,
		detector: detector,
		embedder: embedder,
		cfg:      cfg,
		queue:    newFIFO(),
	}
}

// Start loads both models and starts the loop. Returns true iff the pipeline
// is available; without models the worker stays stopped and the feature is
// inert.
func (w *Worker) Start(ctx context.Context) bool {
	detOK := w.detector.Load(ctx)
	embOK := w.embedder.Load(ctx)
	if !detOK || !embOK {
		log.Printf("face models not available, face detection disabled")
		return false
	}

	if !w.running.CompareAndSwap(false, true) {
		return true // already running
	}

	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run()
	log.Printf("ingestion worker started")
	return true
}

// Stop signals the loop to exit after its current photo and waits up to
// StopTimeout for it to finish.
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.stop)
	select {
	case <-w.done:
	case <-time.After(w.cfg.StopTimeout):
		log.Printf("ingestion worker did not stop within %v, abandoning", w.cfg.StopTimeout)
	}
	log.Printf("ingestion worker stopped")
}

// Running reports whether the loop is active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Available reports whether both models are loaded.
func (w *Worker) Available() bool {
	return w.detector.Available() && w.embedder.Available()
}

// QueueDepth returns the number of photos waiting.
func (w *Worker) QueueDepth() int {
	return w.queue.depth()
}

// Enqueue adds a photo to the processing queue. Never blocks. A no-op while
// the models are unavailable; safe to call when the worker is not running
// (queued items are simply not drained until it is).
func (w *Worker) Enqueue(photoID string) {
	if !w.Available() {
		return
	}
	w.queue.push(photoID)
}

// EnqueueBatch adds multiple photos to the processing queue.
func (w *Worker) EnqueueBatch(photoIDs []string) {
	for _, id := range photoIDs {
		w.Enqueue(id)
	}
}

// CatchUp enqueues every unprocessed photo (startup sweep). Returns the
// number enqueued. Safe because processing is idempotent per photo.
func (w *Worker) CatchUp(ctx context.Context) int {
	if !w.Available() {
		return 0
	}
	ids, err := w.photos.ListUnprocessedPhotoIDs(ctx)
	if err != nil {
		log.Printf("catch-up sweep failed: %v", err)
		return 0
	}
	if len(ids) > 0 {
		log.Printf("enqueuing %d unprocessed photos for face detection", len(ids))
		w.EnqueueBatch(ids)
	}
	return len(ids)
}

func (w *Worker) run() {
	defer close(w.done)
	ctx := context.Background()

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		photoID, ok := w.queue.pop(w.cfg.PollInterval, w.stop)
		if !ok {
			continue
		}

		if err := w.ProcessPhoto(ctx, photoID); err != nil {
			// Error isolation: one bad photo never kills the loop.
			log.Printf("failed to process photo %s: %v", photoID, err)
		}
	}
}

// ProcessPhoto runs the full pipeline for one photo: detect faces, embed
// each, match against known identities, persist the occurrence links.
// Idempotent: a photo with existing occurrences is skipped. Exported for the
// catch-up CLI; the worker loop is the usual caller.
func (w *Worker) ProcessPhoto(ctx context.Context, photoID string) error {
	photo, err := w.photos.GetPhoto(ctx, photoID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return err
	}
	if photo.Status != database.PhotoStatusActive || photo.IsVideo {
		return nil
	}

	processed, err := w.store.HasOccurrences(ctx, photoID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	data, err := os.ReadFile(photo.FilePath)
	if err != nil {
		log.Printf("photo file not found: %s", photo.FilePath)
		return nil
	}
	img, err := vision.DecodeImage(data)
	if err != nil {
		log.Printf("failed to decode photo %s: %v", photoID, err)
		return nil
	}

	detected := w.detector.Detect(ctx, img)
	if len(detected) == 0 {
		return nil
	}
	log.Printf("found %d face(s) in photo %s", len(detected), photoID)

	// One snapshot per photo. Identities created for earlier faces in this
	// photo are appended, so a person appearing twice matches the identity
	// created moments before, while two different people stay separate.
	known, err := w.store.ListIdentities(ctx)
	if err != nil {
		return err
	}
	snapshot := cluster.NewSnapshot(known)

	for _, det := range detected {
		embedding := w.embedder.Embed(ctx, det.Crop)
		if embedding == nil {
			continue
		}
		// Each face is a complete match/create/link unit of work.
		if err := w.processFace(ctx, photoID, det, embedding, snapshot); err != nil {
			log.Printf("failed to persist face in photo %s: %v", photoID, err)
		}
	}

	return nil
}

func (w *Worker) processFace(ctx context.Context, photoID string, det vision.DetectedFace, embedding []float32, snapshot *cluster.Snapshot) error {
	occ := &database.Occurrence{
		PhotoID:    photoID,
		BBox:       det.BBox,
		Confidence: det.Confidence,
		Embedding:  embedding,
	}

	result := snapshot.Match(embedding, w.cfg.MatchThreshold)
	if result.Matched {
		ident, err := w.store.GetIdentity(ctx, result.ID)
		if err != nil {
			return err
		}
		ident.Centroid = cluster.UpdatedCentroid(ident.Centroid, embedding)
		ident.PhotoCount++
		occ.IdentityID = ident.ID
		// Count increment and occurrence link commit together, so a
		// failed insert cannot leave the count ahead of the links. The
		// snapshot moves only after the store accepted the write.
		if err := w.store.RecordFace(ctx, ident, false, occ); err != nil {
			return err
		}
		snapshot.Update(ident.ID, ident.Centroid)
		return nil
	}

	ident := &database.Identity{
		ID:         uuid.NewString(),
		Centroid:   embedding,
		PhotoCount: 1,
	}
	occ.IdentityID = ident.ID
	if err := w.store.RecordFace(ctx, ident, true, occ); err != nil {
		return err
	}
	snapshot.Add(ident.ID, ident.Centroid)
	return nil
}
