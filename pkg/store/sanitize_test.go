package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "inscrição", sanitizeUTF8("inscrição"))
	assert.Equal(t, "prova", sanitizeUTF8("pro\xffva"))
	assert.Equal(t, "", sanitizeUTF8("\xc3"))
}

func TestApplyDefaults(t *testing.T) {
	config := applyDefaults(VectorStoreConfig{})
	assert.Equal(t, "regulation_chunks", config.TableName)
	assert.Equal(t, 768, config.VectorDim)
	assert.Equal(t, 64, config.BatchSize)
}
