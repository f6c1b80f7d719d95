package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/regqa/internal/types"
	"github.com/xhad/regqa/pkg/llm"
)

type fakeModel struct {
	response *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
	deadline bool
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, o := range options {
		o(&m.opts)
	}
	_, m.deadline = ctx.Deadline()
	return m.response, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func textResponse(s string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s}}}
}

func TestNewWithConfig(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:   "testmodel",
		BaseURL: "http://localhost:1234",
	}, nil)
	assert.NoError(t, err)
	assert.NotNil(t, engine)
}

func TestNewWithConfigRejectsUnknownProvider(t *testing.T) {
	_, err := llm.NewWithConfig(llm.ChatConfig{Provider: "nope"}, nil)
	assert.Error(t, err)
}

func TestNewWithConfigRejectsNegativeTimeout(t *testing.T) {
	_, err := llm.NewWithModel(llm.ChatConfig{Timeout: -time.Second}, &fakeModel{}, nil)
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	model := &fakeModel{response: textResponse("  Qual é a duração da prova?  ")}
	engine, err := llm.NewWithModel(llm.ChatConfig{}, model, nil)
	require.NoError(t, err)

	text, err := engine.Generate(context.Background(), types.GenerationRequest{
		System:      "system rules",
		Prompt:      "question",
		Temperature: 0,
		MaxTokens:   300,
	})
	require.NoError(t, err)
	assert.Equal(t, "Qual é a duração da prova?", text)

	require.Len(t, model.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, 300, model.opts.MaxTokens)
	assert.True(t, model.deadline)
}

func TestGenerateWithoutSystemPrompt(t *testing.T) {
	model := &fakeModel{response: textResponse("ok")}
	engine, err := llm.NewWithModel(llm.ChatConfig{}, model, nil)
	require.NoError(t, err)

	_, err = engine.Generate(context.Background(), types.GenerationRequest{Prompt: "q"})
	require.NoError(t, err)
	require.Len(t, model.messages, 1)
}

func TestGenerateEmptyTextIsNotAnError(t *testing.T) {
	engine, err := llm.NewWithModel(llm.ChatConfig{}, &fakeModel{response: textResponse("   ")}, nil)
	require.NoError(t, err)

	text, err := engine.Generate(context.Background(), types.GenerationRequest{Prompt: "q"})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGenerateMalformedResponse(t *testing.T) {
	engine, err := llm.NewWithModel(llm.ChatConfig{}, &fakeModel{response: &llms.ContentResponse{}}, nil)
	require.NoError(t, err)

	_, err = engine.Generate(context.Background(), types.GenerationRequest{Prompt: "q"})
	assert.True(t, types.IsMalformed(err))
}

func TestGenerateProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	engine, err := llm.NewWithModel(llm.ChatConfig{}, &fakeModel{err: cause}, nil)
	require.NoError(t, err)

	_, err = engine.Generate(context.Background(), types.GenerationRequest{Prompt: "q"})
	assert.ErrorIs(t, err, cause)
	assert.False(t, types.IsMalformed(err))
}

func TestGenerateHonorsCancelledContext(t *testing.T) {
	engine, err := llm.NewWithModel(llm.ChatConfig{RequestsPerSecond: 0.001}, &fakeModel{response: textResponse("ok")}, nil)
	require.NoError(t, err)

	// first call consumes the only token
	_, err = engine.Generate(context.Background(), types.GenerationRequest{Prompt: "q"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = engine.Generate(ctx, types.GenerationRequest{Prompt: "q"})
	assert.Error(t, err)
}
