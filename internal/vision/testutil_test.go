package vision

import (
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newVisionServer creates a fake inference service. The models list drives
// the /health response; detect and embed handlers are optional.
func newVisionServer(t *testing.T, models []string, detect, embed http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy",
			"models": models,
		})
	})
	if detect != nil {
		mux.HandleFunc("/detect/face", detect)
	}
	if embed != nil {
		mux.HandleFunc("/embed/face", embed)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// detectionsHandler responds with the given detections for any image.
func detectionsHandler(detections []Detection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"faces_count": len(detections),
			"faces":       detections,
			"model":       "ultraface-slim-320",
		})
	}
}

// embeddingHandler responds with the given vector for any crop.
func embeddingHandler(embedding []float32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"dim":       len(embedding),
			"embedding": embedding,
			"model":     "mobilefacenet",
		})
	}
}

// testImage creates a solid-color image of the given size.
func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 100, B: 80, A: 255})
		}
	}
	return img
}
