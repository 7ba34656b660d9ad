package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializeDeserializeVector(t *testing.T) {
	original := []float32{0.1, -0.5, 3.25, 0}

	blob := SerializeVector(original)
	assert.Len(t, blob, len(original)*4)

	restored := DeserializeVector(blob)
	assert.Equal(t, original, restored)
}

func TestSerializeVector_Nil(t *testing.T) {
	assert.Nil(t, SerializeVector(nil))
	assert.Nil(t, DeserializeVector(nil))
	assert.Nil(t, DeserializeVector([]byte{}))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-1))
	assert.Equal(t, 0.0, clampScore(-0.001))
	assert.Equal(t, 0.5, clampScore(0.5))
	assert.Equal(t, 1.0, clampScore(1.0000001))
}
