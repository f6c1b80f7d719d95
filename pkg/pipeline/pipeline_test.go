package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/internal/types"
	"github.com/xhad/regqa/pkg/answer"
	"github.com/xhad/regqa/pkg/history"
	"github.com/xhad/regqa/pkg/pipeline"
	"github.com/xhad/regqa/pkg/retriever"
	"github.com/xhad/regqa/pkg/retry"
)

type echoRewriter struct {
	mu        sync.Mutex
	histories []string
}

func (r *echoRewriter) Rewrite(ctx context.Context, question, history string, lang models.Language) models.RewrittenQuery {
	r.mu.Lock()
	r.histories = append(r.histories, history)
	r.mu.Unlock()
	return models.RewrittenQuery{Original: question, Text: question, Language: lang, Variant: models.VariantMinimal}
}

type scriptedRetriever struct {
	mu       sync.Mutex
	calls    int
	errs     []error
	passages []models.Passage
}

func (r *scriptedRetriever) Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return r.passages, nil
}

type failingReranker struct{ calls int }

func (r *failingReranker) Rerank(ctx context.Context, query string, passages []models.Passage, topK int) ([]models.RankedPassage, error) {
	r.calls++
	return nil, errors.New("cross-encoder crashed")
}

type reversingReranker struct{}

func (reversingReranker) Rerank(ctx context.Context, query string, passages []models.Passage, topK int) ([]models.RankedPassage, error) {
	out := make([]models.RankedPassage, 0, len(passages))
	for i := len(passages) - 1; i >= 0 && len(out) < topK; i-- {
		out = append(out, models.RankedPassage{Passage: passages[i], RerankScore: float64(i), Position: i})
	}
	return out, nil
}

type capturingGenerator struct {
	mu       sync.Mutex
	inner    pipeline.Generator
	passages [][]models.Passage
	err      error
	result   *models.PipelineResult
}

func (g *capturingGenerator) Generate(ctx context.Context, question string, passages []models.Passage, lang models.Language) (*models.PipelineResult, error) {
	g.mu.Lock()
	g.passages = append(g.passages, passages)
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return g.inner.Generate(ctx, question, passages, lang)
}

type countingModel struct {
	mu    sync.Mutex
	calls int
	text  string
}

func (m *countingModel) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.text, nil
}

type fixture struct {
	rewriter  *echoRewriter
	retriever *scriptedRetriever
	generator *capturingGenerator
	model     *countingModel
	history   *history.Store
	metrics   *pipeline.Metrics
	deps      pipeline.Deps
}

func newFixture(passages ...models.Passage) *fixture {
	f := &fixture{
		rewriter:  &echoRewriter{},
		retriever: &scriptedRetriever{passages: passages},
		model:     &countingModel{text: "Resposta: A prova dura 3 horas."},
		history:   history.New(),
		metrics:   pipeline.NewMetrics(prometheus.NewRegistry()),
	}
	f.generator = &capturingGenerator{inner: answer.NewWithConfig(answer.GeneratorConfig{}, f.model, nil)}
	f.deps = pipeline.Deps{
		Rewriter:  f.rewriter,
		Retriever: f.retriever,
		Generator: f.generator,
		History:   f.history,
		Metrics:   f.metrics,
		Retry: retry.NewWithConfig(retry.PolicyConfig{
			MaxAttempts: 3,
			MinDelay:    time.Millisecond,
			MaxDelay:    4 * time.Millisecond,
			Multiplier:  2,
		}, pipeline.Retryable, nil),
	}
	return f
}

func (f *fixture) pipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(f.deps)
	require.NoError(t, err)
	return p
}

func regulationPassages() []models.Passage {
	return []models.Passage{
		{ID: "a", Content: "A prova terá duração de", Source: "regulamento.pdf", Page: 4},
		{ID: "b", Content: "três horas.", Source: "regulamento.pdf", Page: 4},
		{ID: "c", Content: "Inscrições até março.", Source: "edital.pdf", Page: 1},
	}
}

func ids(passages []models.Passage) []string {
	out := make([]string, len(passages))
	for i, p := range passages {
		out[i] = p.ID
	}
	return out
}

func TestScenarioNoMatch(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t)

	result, err := p.Process(context.Background(), models.Question{Text: "What is your name?", SessionID: "s"})
	require.NoError(t, err)

	assert.Equal(t, pipeline.NoMatchMessage(models.English), result.Answer)
	assert.Empty(t, result.Sources)
	assert.Equal(t, models.OutcomeNoMatch, result.Outcome)
	assert.Equal(t, 1, f.retriever.calls)
	assert.Zero(t, f.model.calls)
	assert.Empty(t, f.history.Get("s", 5))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("no_match")))
}

func TestScenarioDuplicateChunksCiteOnce(t *testing.T) {
	f := newFixture(regulationPassages()[:2]...)
	p := f.pipeline(t)

	result, err := p.Process(context.Background(), models.Question{Text: "Qual é a duração da prova?"})
	require.NoError(t, err)

	require.Len(t, result.Sources, 1)
	assert.Equal(t, "regulamento", result.Sources[0].Title)
	assert.Equal(t, 4, result.Sources[0].Page)
	assert.Equal(t, 1, strings.Count(result.Answer, "regulamento - página 4"))
	assert.Equal(t, models.OutcomeAnswered, result.Outcome)
}

func TestScenarioNotInitializedIsNotRetried(t *testing.T) {
	f := newFixture(regulationPassages()...)
	f.retriever.errs = []error{retriever.ErrNotInitialized}
	p := f.pipeline(t)

	result, err := p.Process(context.Background(), models.Question{Text: "Qual é a duração da prova?", SessionID: "s"})
	require.NoError(t, err)

	assert.Equal(t, pipeline.NotReadyMessage(models.Portuguese), result.Answer)
	assert.Equal(t, models.OutcomeNotReady, result.Outcome)
	assert.Empty(t, result.Sources)
	assert.Equal(t, 1, f.retriever.calls)
	assert.Zero(t, testutil.ToFloat64(f.metrics.Retries))
	assert.Empty(t, f.history.Get("s", 5))
}

func TestScenarioRerankFailureKeepsRetrievalOrder(t *testing.T) {
	f := newFixture(regulationPassages()...)
	reranker := &failingReranker{}
	f.deps.Reranker = reranker
	f.deps.Config.RerankEnabled = true
	p := f.pipeline(t)

	result, err := p.Process(context.Background(), models.Question{Text: "Qual é a duração da prova?"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 1, reranker.calls)
	require.Len(t, f.generator.passages, 1)
	assert.Equal(t, []string{"a", "b", "c"}, ids(f.generator.passages[0]))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RerankFailures))
}

func TestRerankedOrderReachesGenerator(t *testing.T) {
	f := newFixture(regulationPassages()...)
	f.deps.Reranker = reversingReranker{}
	f.deps.Config.RerankEnabled = true
	f.deps.Config.RerankTopK = 2
	p := f.pipeline(t)

	_, err := p.Process(context.Background(), models.Question{Text: "Qual é a duração da prova?"})
	require.NoError(t, err)

	require.Len(t, f.generator.passages, 1)
	assert.Equal(t, []string{"c", "b"}, ids(f.generator.passages[0]))
}

func TestTransientErrorsAreRetried(t *testing.T) {
	f := newFixture(regulationPassages()...)
	f.retriever.errs = []error{errors.New("connection reset"), errors.New("connection reset")}
	p := f.pipeline(t)

	result, err := p.Process(context.Background(), models.Question{Text: "Qual é a duração da prova?"})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeAnswered, result.Outcome)
	assert.Equal(t, 3, f.retriever.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Retries))
}

func TestRetriesExhausted(t *testing.T) {
	f := newFixture(regulationPassages()...)
	cause := errors.New("model timeout")
	f.generator.err = cause
	p := f.pipeline(t)

	_, err := p.Process(context.Background(), models.Question{Text: "Qual é a duração da prova?", SessionID: "s"})
	require.Error(t, err)

	assert.ErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, f.generator.passages, 3)
	assert.Empty(t, f.history.Get("s", 5))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("error")))
}

func TestInvalidGeneratorResultIsRaised(t *testing.T) {
	f := newFixture(regulationPassages()...)
	f.generator.result = &models.PipelineResult{Answer: "   "}
	p := f.pipeline(t)

	_, err := p.Process(context.Background(), models.Question{Text: "Qual é a duração da prova?"})
	require.Error(t, err)

	assert.ErrorIs(t, err, models.ErrValidation)
	assert.NotErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.Len(t, f.generator.passages, 1)
}

func TestMalformedModelResponseIsRaised(t *testing.T) {
	f := newFixture(regulationPassages()...)
	f.generator.err = types.ErrMalformedResponse
	p := f.pipeline(t)

	_, err := p.Process(context.Background(), models.Question{Text: "Qual é a duração da prova?"})
	assert.True(t, types.IsMalformed(err))
	assert.Len(t, f.generator.passages, 1)
}

func TestEmptyQuestion(t *testing.T) {
	f := newFixture(regulationPassages()...)
	p := f.pipeline(t)

	_, err := p.Process(context.Background(), models.Question{Text: "  "})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, f.retriever.calls)
}

func TestSuccessfulTurnIsRemembered(t *testing.T) {
	f := newFixture(regulationPassages()...)
	p := f.pipeline(t)
	ctx := context.Background()

	_, err := p.Process(ctx, models.Question{Text: "Qual é a duração da prova?", SessionID: "s"})
	require.NoError(t, err)
	_, err = p.Process(ctx, models.Question{Text: "E isso vale para todos?", SessionID: "s"})
	require.NoError(t, err)

	require.Len(t, f.rewriter.histories, 2)
	assert.Empty(t, f.rewriter.histories[0])
	assert.True(t, strings.HasPrefix(f.rewriter.histories[1], "Q: Qual é a duração da prova?\nA: A prova dura 3 horas."))

	p.ClearSession("s")
	assert.Empty(t, f.history.Get("s", 5))
}

func TestDeclaredLanguageWins(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t)

	result, err := p.Process(context.Background(), models.Question{Text: "Qual é a duração da prova?", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, models.English, result.Language)
	assert.Equal(t, pipeline.NoMatchMessage(models.English), result.Answer)
}

func TestNewRequiresReranker(t *testing.T) {
	f := newFixture()
	f.deps.Config.RerankEnabled = true
	_, err := pipeline.New(f.deps)
	assert.Error(t, err)
}

func TestRetryable(t *testing.T) {
	assert.False(t, pipeline.Retryable(retriever.ErrNotInitialized))
	assert.False(t, pipeline.Retryable(models.ErrEmptyQuestion))
	assert.False(t, pipeline.Retryable(types.ErrMalformedResponse))
	assert.True(t, pipeline.Retryable(errors.New("timeout")))
	assert.True(t, pipeline.Retryable(context.DeadlineExceeded))
}
