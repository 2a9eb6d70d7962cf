package rank

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/curio-ai/curio/pkg/types"
)

// Tokenize 小写分词，标点视为边界
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return lo.Uniq(fields)
}

// Overlap scores a document against a query as the fraction of query tokens
// the document covers. Recall-oriented on purpose: an item that mentions every
// query term beats one that is merely topically close.
func Overlap(query, doc string) float64 {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	docTokens := lo.SliceToMap(Tokenize(doc), func(t string) (string, struct{}) {
		return t, struct{}{}
	})

	hit := 0
	for _, t := range queryTokens {
		if _, ok := docTokens[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(queryTokens))
}

// ScoreItem 对单条知识打分，文档侧拼接 title + content + topic
func ScoreItem(query string, item *types.KnowledgeItem) float64 {
	return Overlap(query, item.Title+" "+item.Content+" "+item.Topic)
}

// TopicFromQuery 从提问里提取话题键，取前几个实词
func TopicFromQuery(query string) string {
	tokens := Tokenize(query)
	stop := map[string]struct{}{
		"what": {}, "is": {}, "the": {}, "a": {}, "an": {}, "of": {}, "to": {},
		"who": {}, "when": {}, "where": {}, "how": {}, "why": {}, "are": {},
		"was": {}, "does": {}, "do": {}, "in": {}, "on": {}, "about": {},
	}
	kept := lo.Filter(tokens, func(t string, _ int) bool {
		_, ok := stop[t]
		return !ok
	})
	if len(kept) > 4 {
		kept = kept[:4]
	}
	if len(kept) == 0 {
		kept = tokens
	}
	return strings.Join(kept, " ")
}

// Options 重排参数，均来自配置
type Options struct {
	TopK           int     // 进入重排的候选上限
	ForwardLimit   int     // 重排后交给下游合成的条数
	RecencyHalfMin float64 // 新鲜度衰减半衰期，分钟
	DiversityDecay float64 // 同话题第 n 条的衰减系数
}

func DefaultOptions() Options {
	return Options{
		TopK:           20,
		ForwardLimit:   5,
		RecencyHalfMin: 60 * 24 * 30,
		DiversityDecay: 0.7,
	}
}

// Rerank reorders already-gated candidates by recency and topic diversity and
// returns at most opts.ForwardLimit of them. It never re-applies the min_score
// gate; whichever items got here stay eligible.
func Rerank(scored []types.ScoredKnowledge, now int64, opts Options) []types.ScoredKnowledge {
	if opts.TopK <= 0 {
		opts = DefaultOptions()
	}

	candidates := make([]types.ScoredKnowledge, len(scored))
	copy(candidates, scored)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Item.LearnedAt > candidates[j].Item.LearnedAt
	})
	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}

	type adjusted struct {
		entry types.ScoredKnowledge
		rank  float64
	}

	topicSeen := make(map[string]int)
	var result []adjusted
	// greedy pick: each round takes the best adjusted score given topics
	// already selected, so near-duplicate context loses to fresh topics
	remaining := candidates
	for len(remaining) > 0 && len(result) < opts.ForwardLimit {
		bestIdx := -1
		bestRank := -1.0
		for i, c := range remaining {
			ageMin := float64(now-c.Item.LearnedAt) / 60
			if ageMin < 0 {
				ageMin = 0
			}
			recency := math.Exp2(-ageMin / opts.RecencyHalfMin)
			diversity := math.Pow(opts.DiversityDecay, float64(topicSeen[c.Item.Topic]))
			rank := c.Score * (0.7 + 0.3*recency) * diversity
			if rank > bestRank {
				bestRank = rank
				bestIdx = i
			}
		}
		picked := remaining[bestIdx]
		topicSeen[picked.Item.Topic]++
		result = append(result, adjusted{entry: picked, rank: bestRank})
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return lo.Map(result, func(a adjusted, _ int) types.ScoredKnowledge {
		return a.entry
	})
}
