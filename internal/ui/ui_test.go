package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTTY_NonFileWriter_IsFalse(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestNewRenderer_NonTTYOutput_ReturnsPlainRenderer(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewRenderer_ForcePlain_ReturnsPlainRenderer(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}, WithForcePlain(true)))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}
