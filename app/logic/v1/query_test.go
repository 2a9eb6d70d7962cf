package v1

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-ai/curio/pkg/ai"
	"github.com/curio-ai/curio/pkg/cache"
	"github.com/curio-ai/curio/pkg/i18n"
	"github.com/curio-ai/curio/pkg/rank"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"
)

type fakeGenerator struct {
	predict func(task types.AITask, text string) (*ai.PredictResult, error)
	calls   int
}

func (f *fakeGenerator) Predict(_ context.Context, task types.AITask, text string, _ *ai.PredictParams) (*ai.PredictResult, error) {
	f.calls++
	return f.predict(task, text)
}

type fakeAnswerStore struct {
	entries []*types.AnswerEntry
}

func (f *fakeAnswerStore) Upsert(_ context.Context, data types.AnswerEntry) error {
	f.entries = append(f.entries, &data)
	return nil
}

func (f *fakeAnswerStore) GetByNormalized(_ context.Context, agent, normalized string) (*types.AnswerEntry, error) {
	for _, e := range f.entries {
		if e.Agent == agent && e.NormalizedQuestion == normalized {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeAnswerStore) ListByAgent(_ context.Context, agent string, _, _ uint64) ([]*types.AnswerEntry, error) {
	var res []*types.AnswerEntry
	for _, e := range f.entries {
		if e.Agent == agent {
			res = append(res, e)
		}
	}
	return res, nil
}

func (f *fakeAnswerStore) Delete(_ context.Context, agent, id string) error {
	return nil
}

type fakeKnowledgeStore struct {
	items []*types.KnowledgeItem
}

func (f *fakeKnowledgeStore) Create(_ context.Context, data types.KnowledgeItem) error {
	f.items = append(f.items, &data)
	return nil
}

func (f *fakeKnowledgeStore) BatchCreate(_ context.Context, datas []*types.KnowledgeItem) error {
	f.items = append(f.items, datas...)
	return nil
}

func (f *fakeKnowledgeStore) Get(_ context.Context, id string) (*types.KnowledgeItem, error) {
	for _, item := range f.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, nil
}

func (f *fakeKnowledgeStore) ListByKeywords(_ context.Context, keywords []string, _ uint64) ([]*types.KnowledgeItem, error) {
	var res []*types.KnowledgeItem
	for _, item := range f.items {
		doc := strings.ToLower(item.Title + " " + item.Content + " " + item.Topic)
		for _, kw := range keywords {
			if strings.Contains(doc, kw) {
				res = append(res, item)
				break
			}
		}
	}
	return res, nil
}

func (f *fakeKnowledgeStore) ListByTopic(_ context.Context, topic string, _ uint64) ([]*types.KnowledgeItem, error) {
	return nil, nil
}

func (f *fakeKnowledgeStore) ListRecent(_ context.Context, _ uint64) ([]*types.KnowledgeItem, error) {
	return f.items, nil
}

func (f *fakeKnowledgeStore) MarkStale(_ context.Context, topic string) error { return nil }

func (f *fakeKnowledgeStore) MarkStaleBefore(_ context.Context, before int64) (int64, error) {
	return 0, nil
}

func (f *fakeKnowledgeStore) Total(_ context.Context) (int64, error) {
	return int64(len(f.items)), nil
}

type fakeQueryStore struct {
	records []types.UserQueryRecord
}

func (f *fakeQueryStore) Create(_ context.Context, data types.UserQueryRecord) error {
	f.records = append(f.records, data)
	return nil
}

func (f *fakeQueryStore) ListUnresolved(_ context.Context, _ uint64) ([]*types.UserQueryRecord, error) {
	var res []*types.UserQueryRecord
	for i := range f.records {
		if !f.records[i].Resolved {
			res = append(res, &f.records[i])
		}
	}
	return res, nil
}

func (f *fakeQueryStore) MarkResolved(_ context.Context, normalized string) error { return nil }

func testLocalizer(t *testing.T) i18n.Localizer {
	t.Helper()
	return i18n.NewLocalizer("en", "zh-CN")
}

func testRouter(t *testing.T, knowledge *fakeKnowledgeStore, gen *fakeGenerator) *Router {
	t.Helper()
	if knowledge == nil {
		knowledge = &fakeKnowledgeStore{}
	}
	return &Router{
		Authoritative: &AuthoritativeLookup{
			Store:          &fakeAnswerStore{},
			Cache:          cache.NewMemory(),
			Agent:          "default",
			FuzzyThreshold: 0.9,
			CacheTTL:       time.Minute,
		},
		Fetcher: &KnowledgeFetcher{
			Store:    knowledge,
			TopK:     20,
			MinScore: 0.1,
		},
		Classifier:         HeuristicClassifier{},
		Generator:          gen,
		Queries:            &fakeQueryStore{},
		Localizer:          testLocalizer(t),
		RerankOpts:         rank.DefaultOptions(),
		ReferenceThreshold: 0.5,
		ForwardLimit:       5,
	}
}

func TestRouteArithmeticShortCircuit(t *testing.T) {
	gen := &fakeGenerator{predict: func(types.AITask, string) (*ai.PredictResult, error) {
		t.Fatal("generator must not be called for arithmetic")
		return nil, nil
	}}
	r := testRouter(t, nil, gen)

	res := r.Route(context.Background(), QueryRequest{Query: "what is 2 + 2 * 3?"})

	assert.Equal(t, ROUTE_ARITHMETIC, res.Route)
	assert.Equal(t, "8", res.Answer)
	assert.Zero(t, gen.calls)
}

func TestRouteAuthoritativeShortCircuit(t *testing.T) {
	gen := &fakeGenerator{predict: func(types.AITask, string) (*ai.PredictResult, error) {
		t.Fatal("generator must not be called for authoritative answers")
		return nil, nil
	}}
	r := testRouter(t, nil, gen)
	answers := r.Authoritative.Store.(*fakeAnswerStore)
	answers.entries = append(answers.entries, &types.AnswerEntry{
		Agent:              "default",
		Question:           "What is the capital of France?",
		NormalizedQuestion: utils.NormalizeText("What is the capital of France?"),
		Answer:             "Paris.",
	})

	res := r.Route(context.Background(), QueryRequest{Query: "what is the capital of france"})

	assert.Equal(t, ROUTE_AUTHORITATIVE, res.Route)
	assert.Equal(t, "Paris.", res.Answer)
	assert.Equal(t, []string{"authoritative"}, res.Stages)
}

func TestRouteSmalltalk(t *testing.T) {
	gen := &fakeGenerator{predict: func(types.AITask, string) (*ai.PredictResult, error) {
		t.Fatal("generator must not be called for smalltalk")
		return nil, nil
	}}
	r := testRouter(t, nil, gen)

	res := r.Route(context.Background(), QueryRequest{Query: "hello!"})

	assert.Equal(t, ROUTE_SMALLTALK, res.Route)
	assert.NotEmpty(t, res.Answer)
}

func TestSmalltalkDoesNotEatRealQuestions(t *testing.T) {
	assert.Empty(t, MatchSmalltalk("hi, what is tcp congestion control"))
	assert.NotEmpty(t, MatchSmalltalk("hi"))
	assert.NotEmpty(t, MatchSmalltalk("thank you!"))
}

func TestRouteClarifyWithoutKnowledge(t *testing.T) {
	gen := &fakeGenerator{predict: func(types.AITask, string) (*ai.PredictResult, error) {
		t.Fatal("generator must not be called without references")
		return nil, nil
	}}
	r := testRouter(t, &fakeKnowledgeStore{}, gen)

	res := r.Route(context.Background(), QueryRequest{Query: "explain frobnication drift compensation"})

	assert.Equal(t, ROUTE_CLARIFY, res.Route)
	assert.NotEmpty(t, res.Answer)
	queries := r.Queries.(*fakeQueryStore)
	require.Len(t, queries.records, 1)
	assert.False(t, queries.records[0].Resolved)
}

func TestRouteGeneratesOnWeakKnowledge(t *testing.T) {
	// 过了召回线但覆盖度不高的资料：照常生成，只是不作为引用露出
	knowledge := &fakeKnowledgeStore{items: []*types.KnowledgeItem{
		{
			ID: "1", Topic: "capacitor", Title: "capacitor basics",
			Content:    "a capacitor stores electrical energy in an electric field",
			Source:     types.KNOWLEDGE_SOURCE_CRAWLED,
			Confidence: 0.6,
			LearnedAt:  time.Now().Unix(),
		},
	}}
	gen := &fakeGenerator{predict: func(types.AITask, string) (*ai.PredictResult, error) {
		return &ai.PredictResult{Output: "A flux capacitor only exists in fiction.", Confidence: 0.8}, nil
	}}
	r := testRouter(t, knowledge, gen)

	res := r.Route(context.Background(), QueryRequest{Query: "quantum flux capacitor"})

	assert.Equal(t, ROUTE_GENERATED, res.Route)
	assert.NotZero(t, gen.calls)
	assert.Empty(t, res.References)
}

func TestRouteGeneratedWithReferences(t *testing.T) {
	knowledge := &fakeKnowledgeStore{items: []*types.KnowledgeItem{
		{
			ID: "1", Topic: "raft", Title: "raft consensus",
			Content:    "raft is a consensus algorithm designed for understandability",
			Source:     types.KNOWLEDGE_SOURCE_CRAWLED,
			Confidence: 0.6,
			LearnedAt:  time.Now().Unix(),
		},
	}}
	gen := &fakeGenerator{predict: func(task types.AITask, text string) (*ai.PredictResult, error) {
		if strings.Contains(text, "Polish the following answer") {
			return &ai.PredictResult{Output: "Raft is a consensus algorithm built for understandability.", Confidence: 0.9}, nil
		}
		assert.Contains(t, text, "raft consensus")
		return &ai.PredictResult{Output: "raft is a consensus algorithm", Confidence: 0.9}, nil
	}}
	r := testRouter(t, knowledge, gen)

	res := r.Route(context.Background(), QueryRequest{Query: "raft consensus algorithm"})

	assert.Equal(t, ROUTE_GENERATED, res.Route)
	assert.Equal(t, "Raft is a consensus algorithm built for understandability.", res.Answer)
	require.NotEmpty(t, res.References)
	assert.Equal(t, "raft consensus", res.References[0].Title)
	assert.Equal(t, 2, gen.calls) // generation + refinement
	queries := r.Queries.(*fakeQueryStore)
	require.Len(t, queries.records, 1)
	assert.True(t, queries.records[0].Resolved)
}

func TestRouteDegradedWhenModelUnavailable(t *testing.T) {
	knowledge := &fakeKnowledgeStore{items: []*types.KnowledgeItem{
		{
			ID: "1", Topic: "raft", Title: "raft consensus",
			Content:    "raft is a consensus algorithm designed for understandability",
			Source:     types.KNOWLEDGE_SOURCE_CRAWLED,
			Confidence: 0.6,
			LearnedAt:  time.Now().Unix(),
		},
	}}
	gen := &fakeGenerator{predict: func(types.AITask, string) (*ai.PredictResult, error) {
		return nil, ai.ErrUnavailable
	}}
	r := testRouter(t, knowledge, gen)

	res := r.Route(context.Background(), QueryRequest{Query: "raft consensus algorithm"})

	assert.Equal(t, ROUTE_DEGRADED, res.Route)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Answer, "raft is a consensus algorithm")
}

func TestRouteApologyOnGenerationError(t *testing.T) {
	// 非 ErrUnavailable 的生成错误不走降级，直接致歉
	knowledge := &fakeKnowledgeStore{items: []*types.KnowledgeItem{
		{
			ID: "1", Topic: "raft", Title: "raft consensus",
			Content:    "raft is a consensus algorithm designed for understandability",
			Source:     types.KNOWLEDGE_SOURCE_CRAWLED,
			Confidence: 0.6,
			LearnedAt:  time.Now().Unix(),
		},
	}}
	gen := &fakeGenerator{predict: func(types.AITask, string) (*ai.PredictResult, error) {
		return nil, assert.AnError
	}}
	r := testRouter(t, knowledge, gen)

	res := r.Route(context.Background(), QueryRequest{Query: "raft consensus algorithm"})

	assert.Equal(t, ROUTE_APOLOGY, res.Route)
	assert.NotEmpty(t, res.Answer)
}

func TestFuzzyAuthoritativeLookup(t *testing.T) {
	lookup := &AuthoritativeLookup{
		Store: &fakeAnswerStore{entries: []*types.AnswerEntry{{
			Agent:              "default",
			NormalizedQuestion: utils.NormalizeText("what is the capital of france"),
			Answer:             "Paris.",
		}}},
		Agent:          "default",
		FuzzyThreshold: 0.9,
		CacheTTL:       time.Minute,
	}

	// 归一化后与库里的问题不同，但查询词全部被覆盖，走模糊命中
	answer, ok := lookup.Lookup(context.Background(), "What is capital of France?")
	require.True(t, ok)
	assert.Equal(t, "Paris.", answer)

	_, ok = lookup.Lookup(context.Background(), "what is the capital of germany")
	assert.False(t, ok)
}

func TestStripArithPrefix(t *testing.T) {
	cases := map[string]string{
		"what is 2 + 2?":    "2 + 2",
		"Calculate 10 / 4":  "10 / 4",
		"2 ** 8":            "2 ** 8",
		"How much is 3 * 3": "3 * 3",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripArithPrefix(in), in)
	}
}

func TestHeuristicClassifier(t *testing.T) {
	c := HeuristicClassifier{}
	assert.Equal(t, types.INTENT_RELATIONSHIP, c.Classify("what is the difference between tcp and udp"))
	assert.Equal(t, types.INTENT_REALTIME, c.Classify("latest news about the election"))
	assert.Equal(t, types.INTENT_FOLLOW_UP, c.Classify("what about that?"))
	assert.Equal(t, types.INTENT_DEEP, c.Classify("explain how paxos reaches agreement"))
	assert.Equal(t, types.INTENT_FACTUAL, c.Classify("what is the speed of light"))
	assert.Equal(t, types.INTENT_UNKNOWN, c.Classify("frobnicate the wombat"))
}
