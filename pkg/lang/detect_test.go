package lang_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/pkg/lang"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected models.Language
	}{
		{"portuguese simple", "Qual é a duração da prova?", models.Portuguese},
		{"english simple", "What is the duration of the exam?", models.English},
		{"portuguese pronouns", "E sobre isso? Ele pode fazer aquilo?", models.Portuguese},
		{"english pronouns", "What about this? Can it do that?", models.English},
		{"portuguese regulation terms", "Quais são os critérios do regulamento da olimpíada?", models.Portuguese},
		{"ambiguous defaults to primary", "ABC 123", models.Portuguese},
		{"empty defaults to primary", "", models.Portuguese},
		{"english name question", "What is your name?", models.English},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, lang.Detect(tt.text))
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	text := "Can I use a calculator during the exam?"
	first := lang.Detect(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, lang.Detect(text))
	}
}

func TestDetectTieResolvesToPrimary(t *testing.T) {
	// one keyword from each set
	assert.Equal(t, models.Portuguese, lang.Detect("prova exam"))
}

func TestDetectLongInput(t *testing.T) {
	text := strings.Repeat("what is the exam ", 100000)
	assert.Equal(t, models.English, lang.Detect(text))
}

func TestResolve(t *testing.T) {
	assert.Equal(t, models.English, lang.Resolve("en", "Qual é a duração da prova?"))
	assert.Equal(t, models.Portuguese, lang.Resolve("pt-BR", "What is the exam?"))
	assert.Equal(t, models.English, lang.Resolve("fr", "What is the exam?"))
	assert.Equal(t, models.Portuguese, lang.Resolve("", ""))
}
