package process

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/curio-ai/curio/app/store"
	"github.com/curio-ai/curio/pkg/rank"
	"github.com/curio-ai/curio/pkg/types"
)

// TrendingSource 热点话题来源
type TrendingSource interface {
	Trending(ctx context.Context, limit int) ([]string, error)
}

// DiscoveryWeights 各来源的采样权重
type DiscoveryWeights struct {
	Dictionary int
	UserQuery  int
	Trending   int
	Discovered int
}

// Discovery 话题发现。每轮按权重从四类来源采样，入队去重交给 TopicStore。
type Discovery struct {
	Topics    store.TopicStore
	Queries   store.UserQueryStore
	Knowledge store.KnowledgeStore
	Trending  TrendingSource

	Dictionary []string
	Weights    DiscoveryWeights
	BatchSize  int

	rng *rand.Rand
}

func NewDiscovery(topics store.TopicStore, queries store.UserQueryStore, knowledge store.KnowledgeStore, trending TrendingSource, dictionary []string, weights DiscoveryWeights, batchSize int, seed int64) *Discovery {
	return &Discovery{
		Topics:     topics,
		Queries:    queries,
		Knowledge:  knowledge,
		Trending:   trending,
		Dictionary: dictionary,
		Weights:    weights,
		BatchSize:  batchSize,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Run 采样一批候选话题入队
func (d *Discovery) Run(ctx context.Context) error {
	candidates := d.collect(ctx)
	enqueued := 0
	for i := 0; i < d.BatchSize; i++ {
		source := d.pickSource()
		pool := candidates[source]
		if len(pool) == 0 {
			continue
		}
		name := pool[d.rng.Intn(len(pool))]

		created, err := d.Topics.CreateIfAbsent(ctx, types.Topic{
			Name:   name,
			Source: source,
		})
		if err != nil {
			slog.Error("failed to enqueue topic", slog.String("topic", name), slog.String("error", err.Error()))
			continue
		}
		if created {
			enqueued++
		}
	}
	slog.Info("topic discovery round done", slog.Int("enqueued", enqueued))
	return nil
}

// pickSource 按权重挑选来源
func (d *Discovery) pickSource() types.TopicSource {
	total := d.Weights.Dictionary + d.Weights.UserQuery + d.Weights.Trending + d.Weights.Discovered
	if total <= 0 {
		return types.TOPIC_SOURCE_DICTIONARY
	}
	n := d.rng.Intn(total)
	switch {
	case n < d.Weights.Dictionary:
		return types.TOPIC_SOURCE_DICTIONARY
	case n < d.Weights.Dictionary+d.Weights.UserQuery:
		return types.TOPIC_SOURCE_USER_QUERY
	case n < d.Weights.Dictionary+d.Weights.UserQuery+d.Weights.Trending:
		return types.TOPIC_SOURCE_TRENDING
	default:
		return types.TOPIC_SOURCE_DISCOVERED
	}
}

func (d *Discovery) collect(ctx context.Context) map[types.TopicSource][]string {
	candidates := map[types.TopicSource][]string{
		types.TOPIC_SOURCE_DICTIONARY: d.Dictionary,
	}

	if d.Queries != nil {
		unresolved, err := d.Queries.ListUnresolved(ctx, 50)
		if err != nil {
			slog.Warn("failed to list unresolved queries", slog.String("error", err.Error()))
		}
		candidates[types.TOPIC_SOURCE_USER_QUERY] = lo.FilterMap(unresolved, func(q *types.UserQueryRecord, _ int) (string, bool) {
			topic := rank.TopicFromQuery(q.QueryText)
			return topic, topic != ""
		})
	}

	if d.Trending != nil {
		trending, err := d.Trending.Trending(ctx, 20)
		if err != nil {
			slog.Warn("failed to fetch trending topics", slog.String("error", err.Error()))
		}
		candidates[types.TOPIC_SOURCE_TRENDING] = trending
	}

	if d.Knowledge != nil {
		candidates[types.TOPIC_SOURCE_DISCOVERED] = d.discoverFromKnowledge(ctx)
	}

	return candidates
}

// discoverFromKnowledge 扫描最近入库的知识正文挖新话题，
// 连续大写开头的词组通常是专有名词
func (d *Discovery) discoverFromKnowledge(ctx context.Context) []string {
	recent, err := d.Knowledge.ListRecent(ctx, 50)
	if err != nil {
		slog.Warn("failed to list recent knowledge", slog.String("error", err.Error()))
		return nil
	}
	var found []string
	for _, item := range recent {
		for _, phrase := range capitalizedPhrases(item.Content) {
			if strings.EqualFold(phrase, item.Topic) {
				continue
			}
			found = append(found, phrase)
		}
	}
	return lo.Uniq(found)
}

// capitalizedPhrases 提取正文里连续两个以上首字母大写的词组。
// 句首单词不能作为词组的起点，避免把普通句子开头当成专有名词。
func capitalizedPhrases(content string) []string {
	var phrases []string
	for _, sentence := range strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		words := strings.Fields(sentence)
		var run []string
		flush := func() {
			if len(run) >= 2 {
				phrases = append(phrases, strings.Join(run, " "))
			}
			run = nil
		}
		for i, w := range words {
			trimmed := strings.Trim(w, ",;:\"'()[]")
			if isCapitalizedWord(trimmed) && !(i == 0 && len(run) == 0) {
				run = append(run, trimmed)
				continue
			}
			flush()
		}
		flush()
	}
	return lo.Uniq(phrases)
}

func isCapitalizedWord(w string) bool {
	runes := []rune(w)
	if len(runes) < 2 {
		return false
	}
	return unicode.IsUpper(runes[0]) && unicode.IsLower(runes[1])
}
