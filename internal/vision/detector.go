package vision

import (
	"context"
	"image"
	"log"
	"slices"
	"sync/atomic"
)

// DetectedFace is one face found in a photo. BBox is [x, y, w, h] normalized
// to the original image dimensions; Crop is the padded, aligned face region.
type DetectedFace struct {
	BBox       [4]float64
	Confidence float64
	Crop       image.Image
}

// Detector wraps the face detection model behind the inference service.
// Detection failures degrade to an empty result, never an error: a photo
// where detection fails is treated as having no faces.
type Detector struct {
	client     *Client
	model      string
	confidence float64
	available  atomic.Bool
}

// NewDetector creates a detector for the named model with the given
// confidence threshold.
func NewDetector(client *Client, model string, confidence float64) *Detector {
	return &Detector{
		client:     client,
		model:      model,
		confidence: confidence,
	}
}

// Load checks that the inference service is reachable and serves the
// detection model. Returns true iff the detector is usable.
func (d *Detector) Load(ctx context.Context) bool {
	models, err := d.client.Models(ctx)
	if err != nil {
		log.Printf("face detection model not available: %v", err)
		d.available.Store(false)
		return false
	}
	if !slices.Contains(models, d.model) {
		log.Printf("face detection model %q not loaded by vision service", d.model)
		d.available.Store(false)
		return false
	}
	log.Printf("face detection model loaded: %s", d.model)
	d.available.Store(true)
	return true
}

// Available reports whether the detection model is loaded.
func (d *Detector) Available() bool {
	return d.available.Load()
}

// Detect finds faces in an image. Returns detections above the confidence
// threshold with clamped normalized boxes and aligned crops, or nil when the
// model is unavailable or inference fails.
func (d *Detector) Detect(ctx context.Context, img image.Image) []DetectedFace {
	if !d.Available() {
		return nil
	}

	data, err := EncodeJPEG(img)
	if err != nil {
		log.Printf("face detection: failed to encode image: %v", err)
		return nil
	}

	detections, err := d.client.DetectFaces(ctx, data)
	if err != nil {
		log.Printf("face detection inference error: %v", err)
		return nil
	}

	var faces []DetectedFace
	for _, det := range detections {
		if det.DetScore < d.confidence {
			continue
		}
		if len(det.BBox) != 4 {
			continue
		}

		x1 := clamp01(det.BBox[0])
		y1 := clamp01(det.BBox[1])
		x2 := clamp01(det.BBox[2])
		y2 := clamp01(det.BBox[3])
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		crop := cropAligned(img, x1, y1, x2, y2)
		if crop == nil {
			continue
		}

		faces = append(faces, DetectedFace{
			BBox:       [4]float64{x1, y1, x2 - x1, y2 - y1},
			Confidence: det.DetScore,
			Crop:       crop,
		})
	}

	return faces
}
