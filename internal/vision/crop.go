package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// AlignSize is the width and height of aligned face crops fed to the
// embedding model.
const AlignSize = 112

// bboxPad is the fraction of box width/height added on each side before
// cropping, to make embeddings robust to imprecise detection boxes.
const bboxPad = 0.15

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// cropAligned cuts the padded face region out of the original image and
// resizes it to AlignSize x AlignSize. The box is [x1, y1, x2, y2] in
// normalized coordinates, already clamped.
func cropAligned(img image.Image, x1, y1, x2, y2 float64) image.Image {
	bounds := img.Bounds()
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	px1 := int(x1 * w)
	py1 := int(y1 * h)
	px2 := int(x2 * w)
	py2 := int(y2 * h)

	// Expand bbox for better alignment
	padW := int(float64(px2-px1) * bboxPad)
	padH := int(float64(py2-py1) * bboxPad)
	px1 = max(0, px1-padW)
	py1 = max(0, py1-padH)
	px2 = min(bounds.Dx(), px2+padW)
	py2 = min(bounds.Dy(), py2+padH)

	if px2 <= px1 || py2 <= py1 {
		return nil
	}

	src := image.Rect(bounds.Min.X+px1, bounds.Min.Y+py1, bounds.Min.X+px2, bounds.Min.Y+py2)
	crop := image.NewRGBA(image.Rect(0, 0, AlignSize, AlignSize))
	draw.CatmullRom.Scale(crop, crop.Bounds(), img, src, draw.Over, nil)
	return crop
}

// DecodeImage decodes JPEG, PNG or BMP image data.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodeJPEG encodes an image as JPEG for the inference service.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
