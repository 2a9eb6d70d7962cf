package process

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-ai/curio/pkg/research"
	"github.com/curio-ai/curio/pkg/types"
)

type memTopicStore struct {
	mu     sync.Mutex
	topics map[string]*types.Topic
	claims int
}

func newMemTopicStore(names ...string) *memTopicStore {
	s := &memTopicStore{topics: map[string]*types.Topic{}}
	for i, name := range names {
		s.topics[name] = &types.Topic{
			Name:     name,
			Status:   types.TOPIC_STATUS_PENDING,
			Priority: 5,
			Source:   types.TOPIC_SOURCE_DICTIONARY,
			// 保持稳定的认领顺序
			LastAttemptAt: int64(i),
		}
	}
	return s
}

func (s *memTopicStore) CreateIfAbsent(_ context.Context, data types.Topic) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[data.Name]; ok {
		return false, nil
	}
	if data.Status == "" {
		data.Status = types.TOPIC_STATUS_PENDING
	}
	s.topics[data.Name] = &data
	return true, nil
}

func (s *memTopicStore) ClaimNext(_ context.Context) (*types.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *types.Topic
	for _, t := range s.topics {
		if t.Status != types.TOPIC_STATUS_PENDING {
			continue
		}
		if best == nil || t.Priority > best.Priority ||
			(t.Priority == best.Priority && t.LastAttemptAt < best.LastAttemptAt) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Status = types.TOPIC_STATUS_IN_PROGRESS
	s.claims++
	copied := *best
	return &copied, nil
}

func (s *memTopicStore) Requeue(_ context.Context, name, reason string, backoffSeconds int64, maxFailures int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[name]
	if !ok {
		return errors.New("topic not found")
	}
	t.Failures++
	t.LastReason = reason
	t.LastAttemptAt = time.Now().Unix() + backoffSeconds
	if t.Failures >= maxFailures {
		t.Status = types.TOPIC_STATUS_FAILED
	} else {
		t.Status = types.TOPIC_STATUS_PENDING
	}
	return nil
}

func (s *memTopicStore) Complete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.topics[name]; ok {
		t.Status = types.TOPIC_STATUS_DONE
	}
	return nil
}

func (s *memTopicStore) Get(_ context.Context, name string) (*types.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.topics[name]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, nil
}

func (s *memTopicStore) List(_ context.Context, status types.TopicStatus, _, _ uint64) ([]*types.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []*types.Topic
	for _, t := range s.topics {
		if status == "" || t.Status == status {
			copied := *t
			res = append(res, &copied)
		}
	}
	return res, nil
}

func (s *memTopicStore) CountByStatus(_ context.Context) (map[types.TopicStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := map[types.TopicStatus]int64{}
	for _, t := range s.topics {
		res[t.Status]++
	}
	return res, nil
}

type fakeLearner struct {
	mu      sync.Mutex
	learned []string
	err     error
	delay   time.Duration
}

func (f *fakeLearner) Learn(_ context.Context, topic *types.Topic) (int, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.learned = append(f.learned, topic.Name)
	return 1, nil
}

func (f *fakeLearner) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.learned...)
}

func TestCrawlerNoDoubleClaim(t *testing.T) {
	topics := newMemTopicStore("alpha", "beta", "gamma")
	learner := &fakeLearner{delay: time.Millisecond * 5}
	c := NewCrawler(topics, learner, CrawlerOptions{
		Workers:  3,
		Interval: time.Millisecond * 10,
	})

	c.Start()
	time.Sleep(time.Millisecond * 200)
	c.Stop()

	learned := learner.topics()
	seen := map[string]int{}
	for _, name := range learned {
		seen[name]++
	}
	for name, count := range seen {
		assert.Equal(t, 1, count, "topic %s learned more than once", name)
	}
	assert.Len(t, learned, 3)

	counts, err := topics.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[types.TOPIC_STATUS_DONE])
}

func TestCrawlerRequeuesFailedTopicWithBackoff(t *testing.T) {
	topics := newMemTopicStore("alpha")
	learner := &fakeLearner{err: errors.New("source down")}
	c := NewCrawler(topics, learner, CrawlerOptions{
		Workers:        1,
		Interval:       time.Millisecond * 10,
		MaxFailures:    3,
		BackoffSeconds: 60,
		// 熔断阈值拉高，避免干扰本用例
		CooldownAfter: 100,
	})

	c.Start()
	time.Sleep(time.Millisecond * 150)
	c.Stop()

	topic, err := topics.Get(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, types.TOPIC_STATUS_FAILED, topic.Status)
	assert.Equal(t, 3, topic.Failures)
	assert.Equal(t, "source down", topic.LastReason)
}

func TestCrawlerCooldownStopsClaiming(t *testing.T) {
	topics := newMemTopicStore("alpha", "beta", "gamma", "delta")
	learner := &fakeLearner{err: errors.New("source down")}
	c := NewCrawler(topics, learner, CrawlerOptions{
		Workers:       1,
		Interval:      time.Millisecond * 10,
		MaxFailures:   100,
		CooldownAfter: 2,
		Cooldown:      time.Hour,
	})

	c.Start()
	time.Sleep(time.Millisecond * 200)
	c.Stop()

	// 连续两次失败后熔断，后续不再认领
	topics.mu.Lock()
	claims := topics.claims
	topics.mu.Unlock()
	assert.Equal(t, 2, claims)
	assert.Equal(t, int64(1), c.Stats()["cooldowns"])
}

func TestCrawlerPauseResume(t *testing.T) {
	topics := newMemTopicStore("alpha", "beta")
	learner := &fakeLearner{}
	c := NewCrawler(topics, learner, CrawlerOptions{
		Workers:  1,
		Interval: time.Millisecond * 10,
	})

	c.Pause()
	c.Start()
	time.Sleep(time.Millisecond * 100)

	assert.Equal(t, "paused", c.State())
	assert.Empty(t, learner.topics())

	c.Resume()
	time.Sleep(time.Millisecond * 150)
	c.Stop()

	assert.ElementsMatch(t, []string{"alpha", "beta"}, learner.topics())
}

type staticSource struct {
	name    string
	results []research.Result
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Search(_ context.Context, _ string) ([]research.Result, error) {
	return s.results, nil
}

func TestLimitSourcesPassThrough(t *testing.T) {
	limited := LimitSources([]research.Source{
		staticSource{name: "wiki", results: []research.Result{{Title: "t", Content: "c"}}},
	}, 10, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "wiki", limited[0].Name())

	results, err := limited[0].Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestLimitSourcesThrottleAcrossCalls(t *testing.T) {
	limited := LimitSources([]research.Source{
		staticSource{name: "wiki", results: []research.Result{{Title: "t", Content: "c"}}},
	}, 20, 1)

	// 限流器状态跨请求累积，burst 用完后第二次调用要等令牌
	start := time.Now()
	_, err := limited[0].Search(context.Background(), "q")
	require.NoError(t, err)
	_, err = limited[0].Search(context.Background(), "q")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond*40)
}

func TestLearnerExpandsThinResults(t *testing.T) {
	article := strings.Repeat("Raft is a consensus algorithm designed to be easy to understand. ", 20)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Raft Consensus</title></head><body><article><h1>Raft Consensus</h1><p>` + article + `</p></article></body></html>`))
	}))
	defer server.Close()

	knowledge := &memKnowledgeStore{}
	learner := &ResearchLearner{
		Sources: []research.Source{staticSource{name: "wiki", results: []research.Result{{
			Title:   "raft",
			Content: "A consensus algorithm.",
			URL:     server.URL,
		}}}},
		Knowledge: knowledge,
		Reader:    research.NewWebReader(),
	}

	count, err := learner.Learn(context.Background(), &types.Topic{Name: "raft", Source: types.TOPIC_SOURCE_DICTIONARY})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// 摘要被全文替换后再入库
	require.Len(t, knowledge.items, 1)
	assert.Contains(t, knowledge.items[0].Content, "easy to understand")
}

type fakeCrawlMetrics struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeCrawlMetrics) CrawlInc(source, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, source+"/"+result)
}

func (f *fakeCrawlMetrics) CrawlTimer(source string) *prometheus.Timer {
	return prometheus.NewTimer(nil)
}

func (f *fakeCrawlMetrics) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func TestCrawlerReportsCrawlMetrics(t *testing.T) {
	topics := newMemTopicStore("alpha")
	learner := &fakeLearner{}
	c := NewCrawler(topics, learner, CrawlerOptions{
		Workers:  1,
		Interval: time.Millisecond * 10,
	})
	m := &fakeCrawlMetrics{}
	c.Metrics = m

	c.Start()
	time.Sleep(time.Millisecond * 100)
	c.Stop()

	assert.Contains(t, m.take(), "dictionary/succeeded")
}
