package eval

import (
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	a := pgvector.NewVector([]float32{1, 0, 0})
	b := pgvector.NewVector([]float32{1, 0, 0})
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)

	c := pgvector.NewVector([]float32{0, 1, 0})
	assert.InDelta(t, 0.0, Cosine(a, c), 1e-9)

	d := pgvector.NewVector([]float32{-1, 0, 0})
	assert.InDelta(t, -1.0, Cosine(a, d), 1e-9)
}

func TestCosineDegenerateInputs(t *testing.T) {
	a := pgvector.NewVector([]float32{1, 2, 3})
	zero := pgvector.NewVector([]float32{0, 0, 0})
	empty := pgvector.NewVector(nil)
	short := pgvector.NewVector([]float32{1})

	assert.Zero(t, Cosine(a, zero))
	assert.Zero(t, Cosine(empty, empty))
	assert.Zero(t, Cosine(a, short))
}

func TestDefaultGoldStandard(t *testing.T) {
	gold := DefaultGoldStandard()
	assert.Equal(t, "100", gold["Calculate 25 times 4."])
	assert.Equal(t, "75 F, Sunny", gold["What is the weather in Dallas?"])
	assert.Equal(t, "I cannot answer that", gold["Who is the President of France?"])
	assert.Equal(t, "Unknown location", gold["What is the weather in Atlantis?"])
}
