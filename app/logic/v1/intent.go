package v1

import (
	"strings"

	"github.com/samber/lo"

	"github.com/curio-ai/curio/pkg/types"
)

// HeuristicClassifier 基于关键词的意图识别
// 后续可以换成训练出来的分类模型，路由只依赖 types.Classifier
type HeuristicClassifier struct{}

var (
	followUpMarkers = []string{
		"what about", "how about", "and the", "tell me more", "more about",
		"它", "他们", "这个", "那个", "继续",
	}
	followUpPronouns = []string{"it", "that", "this", "they", "them", "those", "these", "he", "she"}

	relationshipMarkers = []string{
		"difference between", "compare", " vs ", " versus ", "relationship between",
		"relation between", "similar to", "better than", "区别", "对比", "关系",
	}

	realtimeMarkers = []string{
		"latest", "current", "today", "right now", "this week", "breaking",
		"price of", "weather", "news", "score", "最新", "今天", "现在", "实时",
	}

	deepMarkers = []string{
		"why ", "explain", "how does", "how do", "in detail", "in depth",
		"analysis", "analyze", "walk me through", "为什么", "原理", "详细",
	}

	factualMarkers = []string{
		"what is", "what are", "who is", "who was", "when did", "when was",
		"where is", "which", "define", "是什么", "是谁", "什么时候", "在哪",
	}
)

func (HeuristicClassifier) Classify(text string) types.Intent {
	t := " " + strings.ToLower(strings.TrimSpace(text)) + " "

	contains := func(markers []string) bool {
		return lo.SomeBy(markers, func(m string) bool {
			return strings.Contains(t, m)
		})
	}

	switch {
	case contains(relationshipMarkers):
		return types.INTENT_RELATIONSHIP
	case contains(realtimeMarkers):
		return types.INTENT_REALTIME
	case isFollowUp(t):
		return types.INTENT_FOLLOW_UP
	case contains(deepMarkers):
		return types.INTENT_DEEP
	case contains(factualMarkers):
		return types.INTENT_FACTUAL
	default:
		return types.INTENT_UNKNOWN
	}
}

// isFollowUp 短问题且带指代词，或出现追问惯用语
func isFollowUp(padded string) bool {
	if lo.SomeBy(followUpMarkers, func(m string) bool { return strings.Contains(padded, m) }) {
		return true
	}
	words := strings.Fields(padded)
	if len(words) > 6 {
		return false
	}
	return lo.SomeBy(followUpPronouns, func(p string) bool {
		return strings.Contains(padded, " "+p+" ") || strings.Contains(padded, " "+p+"?")
	})
}
