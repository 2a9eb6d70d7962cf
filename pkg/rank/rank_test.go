package rank_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curio-ai/curio/pkg/rank"
	"github.com/curio-ai/curio/pkg/types"
)

func TestOverlap(t *testing.T) {
	cases := []struct {
		name  string
		query string
		doc   string
		want  float64
	}{
		{"full coverage", "docker install centos", "How to install Docker on CentOS 7", 1},
		{"half coverage", "docker kubernetes", "Docker basics for beginners", 0.5},
		{"no coverage", "quantum physics", "Docker basics", 0},
		{"empty query", "", "anything", 0},
		{"punctuation ignored", "what's docker?", "Docker, what is it: an intro. s", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, rank.Overlap(tc.query, tc.doc), 0.001)
		})
	}
}

// Adding a query token to a document must never lower its score.
func TestOverlapMonotonic(t *testing.T) {
	query := "go concurrency patterns worker pool"
	doc := "Worker pools are a common pattern"

	base := rank.Overlap(query, doc)
	grown := rank.Overlap(query, doc+" concurrency")
	require.GreaterOrEqual(t, grown, base)
}

func item(topic string, score float64, learnedAt int64) types.ScoredKnowledge {
	return types.ScoredKnowledge{
		Item: &types.KnowledgeItem{
			Topic:     topic,
			Title:     topic,
			Content:   "content",
			Source:    types.KNOWLEDGE_SOURCE_CRAWLED,
			LearnedAt: learnedAt,
		},
		Score: score,
	}
}

func TestRerankForwardLimit(t *testing.T) {
	now := time.Now().Unix()
	var scored []types.ScoredKnowledge
	for i := 0; i < 10; i++ {
		scored = append(scored, item("t", 0.9, now))
	}

	got := rank.Rerank(scored, now, rank.DefaultOptions())
	assert.Len(t, got, 5)
}

func TestRerankDiversity(t *testing.T) {
	now := time.Now().Unix()
	scored := []types.ScoredKnowledge{
		item("docker", 0.9, now),
		item("docker", 0.89, now),
		item("docker", 0.88, now),
		item("kubernetes", 0.7, now),
	}

	opts := rank.DefaultOptions()
	opts.ForwardLimit = 2
	got := rank.Rerank(scored, now, opts)

	require.Len(t, got, 2)
	assert.Equal(t, "docker", got[0].Item.Topic)
	// the duplicate-topic penalty should let kubernetes in ahead of the
	// second docker item
	assert.Equal(t, "kubernetes", got[1].Item.Topic)
}

func TestRerankPrefersFresh(t *testing.T) {
	now := time.Now().Unix()
	old := item("a", 0.8, now-3600*24*365)
	fresh := item("b", 0.8, now)

	got := rank.Rerank([]types.ScoredKnowledge{old, fresh}, now, rank.DefaultOptions())
	require.NotEmpty(t, got)
	assert.Equal(t, "b", got[0].Item.Topic)
}

func TestRerankKeepsGatedItems(t *testing.T) {
	// rerank reorders, it never drops an item below the forward limit
	now := time.Now().Unix()
	scored := []types.ScoredKnowledge{item("a", 0.51, now), item("b", 0.52, now)}
	got := rank.Rerank(scored, now, rank.DefaultOptions())
	assert.Len(t, got, 2)
}
