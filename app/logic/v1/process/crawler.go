package process

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	v1 "github.com/curio-ai/curio/app/logic/v1"
	"github.com/curio-ai/curio/app/store"
	"github.com/curio-ai/curio/pkg/research"
	"github.com/curio-ai/curio/pkg/safe"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"
)

// Learner 把一个话题变成入库的知识，返回写入条数
type Learner interface {
	Learn(ctx context.Context, topic *types.Topic) (int, error)
}

// ArticleReader 把结果链接抓成全文，见 research.WebReader
type ArticleReader interface {
	Read(ctx context.Context, pageURL string) (title, markdown string, err error)
}

// 摘要短于这个字节数且带链接的结果，值得抓一次全文
const thinContentBytes = 200

// ResearchLearner 用联网检索实现学习
type ResearchLearner struct {
	Sources   []research.Source
	Knowledge store.KnowledgeStore
	Queries   store.UserQueryStore
	Reader    ArticleReader // 可为空，空则只存检索摘要
}

func (l *ResearchLearner) Learn(ctx context.Context, topic *types.Topic) (int, error) {
	results, err := research.SearchAll(ctx, l.Sources, topic.Name)
	if err != nil {
		return 0, err
	}
	results = research.Dedupe(results)
	results = l.expandThinResults(ctx, results)

	items := v1.ResearchToKnowledge(topic.Name, results)
	if len(items) == 0 {
		return 0, fmt.Errorf("no usable results for topic %q", topic.Name)
	}

	if err = l.Knowledge.BatchCreate(ctx, items); err != nil {
		return 0, err
	}

	// 该话题来自用户提问时，顺带把提问标记为已解决
	if l.Queries != nil && topic.Source == types.TOPIC_SOURCE_USER_QUERY {
		if err := l.Queries.MarkResolved(ctx, utils.NormalizeText(topic.Name)); err != nil {
			slog.Warn("failed to mark user query resolved", slog.String("topic", topic.Name), slog.String("error", err.Error()))
		}
	}
	return len(items), nil
}

// expandThinResults 摘要太短但带链接的结果抓一次全文，抓不到就保留摘要
func (l *ResearchLearner) expandThinResults(ctx context.Context, results []research.Result) []research.Result {
	if l.Reader == nil {
		return results
	}
	for i, r := range results {
		if r.URL == "" || len(r.Content) >= thinContentBytes {
			continue
		}
		title, markdown, err := l.Reader.Read(ctx, r.URL)
		if err != nil {
			slog.Debug("full article fetch failed", slog.String("url", r.URL), slog.String("error", err.Error()))
			continue
		}
		if markdown == "" {
			continue
		}
		if title != "" {
			results[i].Title = title
		}
		results[i].Content = markdown
	}
	return results
}

// limitedSource 给检索来源套上限流器
type limitedSource struct {
	inner   research.Source
	limiter *rate.Limiter
}

func (s limitedSource) Name() string {
	return s.inner.Name()
}

func (s limitedSource) Search(ctx context.Context, query string) ([]research.Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Search(ctx, query)
}

// LimitSources 每个来源一个独立限流器
func LimitSources(sources []research.Source, perSecond float64, burst int) []research.Source {
	limited := make([]research.Source, 0, len(sources))
	for _, s := range sources {
		limited = append(limited, limitedSource{
			inner:   s,
			limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		})
	}
	return limited
}

// CrawlerOptions 爬虫参数
type CrawlerOptions struct {
	Workers         int
	Interval        time.Duration // 每个 worker 两次认领之间的间隔
	CooldownAfter   int           // 连续失败次数达到后熔断
	Cooldown        time.Duration
	MaxFailures     int   // 话题失败上限，超过置为 failed
	BackoffSeconds  int64 // 退避基数，按失败次数指数放大
}

// CrawlMetrics 爬虫打点，为空则不上报
type CrawlMetrics interface {
	CrawlInc(source, result string)
	CrawlTimer(source string) *prometheus.Timer
}

// Crawler 学习爬虫。N 个 worker 并发认领话题，
// 连续失败触发熔断，冷却期内暂停认领。
type Crawler struct {
	Metrics CrawlMetrics

	topics  store.TopicStore
	learner Learner
	opts    CrawlerOptions

	stats cmap.ConcurrentMap[string, int64]

	mu            sync.Mutex
	consecutive   int
	cooldownUntil time.Time
	paused        bool

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewCrawler(topics store.TopicStore, learner Learner, opts CrawlerOptions) *Crawler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second * 10
	}
	return &Crawler{
		topics:  topics,
		learner: learner,
		opts:    opts,
		stats:   cmap.New[int64](),
		stop:    make(chan struct{}),
	}
}

func (c *Crawler) Start() {
	for i := 0; i < c.opts.Workers; i++ {
		c.wg.Add(1)
		worker := i
		go safe.RunWithComponent(func() {
			defer c.wg.Done()
			c.loop(worker)
		}, "process.Crawler")
	}
	slog.Info("crawler started", slog.Int("workers", c.opts.Workers))
}

// Stop 优雅停止，等待进行中的话题处理完
func (c *Crawler) Stop() {
	close(c.stop)
	c.wg.Wait()
	slog.Info("crawler stopped")
}

func (c *Crawler) loop(worker int) {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if c.Paused() || c.inCooldown() {
				continue
			}
			c.runOnce(worker)
		}
	}
}

func (c *Crawler) runOnce(worker int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*2)
	defer cancel()

	topic, err := c.topics.ClaimNext(ctx)
	if err != nil {
		slog.Error("failed to claim topic", slog.Int("worker", worker), slog.String("error", err.Error()))
		return
	}
	if topic == nil {
		return
	}
	c.inc("claimed")
	if c.Metrics != nil {
		defer c.Metrics.CrawlTimer(string(topic.Source)).ObserveDuration()
	}

	count, err := c.learner.Learn(ctx, topic)
	if err != nil {
		c.inc("failed")
		c.crawlInc(topic.Source, "failed")
		c.noteFailure()
		backoff := c.opts.BackoffSeconds << uint(topic.Failures)
		if requeueErr := c.topics.Requeue(ctx, topic.Name, err.Error(), backoff, c.opts.MaxFailures); requeueErr != nil {
			slog.Error("failed to requeue topic", slog.String("topic", topic.Name), slog.String("error", requeueErr.Error()))
		}
		slog.Warn("topic learning failed",
			slog.Int("worker", worker),
			slog.String("topic", topic.Name),
			slog.Int("failures", topic.Failures+1),
			slog.String("error", err.Error()))
		return
	}

	c.inc("succeeded")
	c.crawlInc(topic.Source, "succeeded")
	c.noteSuccess()
	if err = c.topics.Complete(ctx, topic.Name); err != nil {
		slog.Error("failed to complete topic", slog.String("topic", topic.Name), slog.String("error", err.Error()))
		return
	}
	slog.Info("topic learned",
		slog.Int("worker", worker),
		slog.String("topic", topic.Name),
		slog.Int("knowledge", count))
}

// Pause 暂停认领，进行中的话题会处理完
func (c *Crawler) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	slog.Info("crawler paused")
}

// Resume 恢复认领并清掉熔断状态
func (c *Crawler) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.consecutive = 0
	c.cooldownUntil = time.Time{}
	slog.Info("crawler resumed")
}

func (c *Crawler) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// State 运维接口展示的运行状态
func (c *Crawler) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.paused:
		return "paused"
	case time.Now().Before(c.cooldownUntil):
		return "cooldown"
	default:
		return "running"
	}
}

func (c *Crawler) inCooldown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.cooldownUntil)
}

func (c *Crawler) noteFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutive++
	if c.opts.CooldownAfter > 0 && c.consecutive >= c.opts.CooldownAfter {
		c.cooldownUntil = time.Now().Add(c.opts.Cooldown)
		c.consecutive = 0
		c.inc("cooldowns")
		slog.Warn("crawler entered cooldown", slog.Duration("for", c.opts.Cooldown))
	}
}

func (c *Crawler) noteSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutive = 0
}

func (c *Crawler) crawlInc(source types.TopicSource, result string) {
	if c.Metrics != nil {
		c.Metrics.CrawlInc(string(source), result)
	}
}

func (c *Crawler) inc(key string) {
	c.stats.Upsert(key, 1, func(exist bool, old, new int64) int64 {
		if !exist {
			return new
		}
		return old + new
	})
}

// Stats 运维接口暴露的计数
func (c *Crawler) Stats() map[string]int64 {
	return c.stats.Items()
}
