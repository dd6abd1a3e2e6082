package vector

import (
	"bytes"
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
	}{
		{"unit x", []float32{1, 0, 0}},
		{"unnormalized", []float32{3, 4, 0}},
		{"negative", []float32{-1, 2, -3}},
		{"tiny", []float32{1e-5, 2e-5, 3e-5}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := Normalize(tc.in)
			if got := Norm(out); math.Abs(got-1.0) > 1e-6 {
				t.Errorf("Norm(Normalize(%v)) = %v; want 1.0", tc.in, got)
			}
		})
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	out := Normalize([]float32{0, 0, 0})
	for i, x := range out {
		if x != 0 {
			t.Errorf("Normalize(zero)[%d] = %v; want 0", i, x)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	Normalize(in)
	if in[0] != 3 || in[1] != 4 {
		t.Errorf("Normalize mutated its input: %v", in)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"scaled identical", []float32{1, 1}, []float32{5, 5}, 0},
		{"mismatched length", []float32{1, 0}, []float32{1}, 2},
		{"empty", nil, nil, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineDistance(tc.a, tc.b)
			if math.Abs(got-tc.expected) > 1e-6 {
				t.Errorf("CosineDistance(%v, %v) = %v; want %v", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}

func TestCentroid(t *testing.T) {
	t.Run("single vector unchanged", func(t *testing.T) {
		in := []float32{0.5, 0.5, 0.1}
		out := Centroid(in)
		for i := range in {
			if out[i] != in[i] {
				t.Fatalf("Centroid(one) = %v; want %v", out, in)
			}
		}
	})

	t.Run("mean of two is normalized", func(t *testing.T) {
		out := Centroid([]float32{1, 0}, []float32{0, 1})
		if math.Abs(Norm(out)-1.0) > 1e-6 {
			t.Errorf("centroid norm = %v; want 1", Norm(out))
		}
		if math.Abs(float64(out[0]-out[1])) > 1e-6 {
			t.Errorf("centroid of symmetric inputs not symmetric: %v", out)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if out := Centroid(); out != nil {
			t.Errorf("Centroid() = %v; want nil", out)
		}
	})

	t.Run("mismatched dims", func(t *testing.T) {
		if out := Centroid([]float32{1, 0}, []float32{1}); out != nil {
			t.Errorf("Centroid(mismatched) = %v; want nil", out)
		}
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
	}{
		{"simple", []float32{1, 2, 3}},
		{"negative and fractional", []float32{-0.123, 4.567, -8.9}},
		{"special values", []float32{0, math.MaxFloat32, math.SmallestNonzeroFloat32}},
		{"normalized embedding", Normalize([]float32{0.1, -0.7, 0.3, 0.9})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := Encode(tc.in)
			if len(b) != len(tc.in)*4 {
				t.Fatalf("Encode length = %d; want %d", len(b), len(tc.in)*4)
			}
			out, err := Decode(b)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			for i := range tc.in {
				// Bitwise equality, not approximate
				if math.Float32bits(out[i]) != math.Float32bits(tc.in[i]) {
					t.Errorf("round trip[%d] = %v; want %v", i, out[i], tc.in[i])
				}
			}
		})
	}
}

func TestEncodeEmpty(t *testing.T) {
	if b := Encode(nil); b != nil {
		t.Errorf("Encode(nil) = %v; want nil", b)
	}
	out, err := Decode(nil)
	if err != nil || out != nil {
		t.Errorf("Decode(nil) = %v, %v; want nil, nil", out, err)
	}
}

func TestDecodeInvalidLength(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("Decode with 3 bytes should fail")
	}
}

func TestEncodeLittleEndian(t *testing.T) {
	// 1.0 as float32 is 0x3F800000
	b := Encode([]float32{1.0})
	if !bytes.Equal(b, []byte{0x00, 0x00, 0x80, 0x3F}) {
		t.Errorf("Encode(1.0) = %x; want 0000803f", b)
	}
}
