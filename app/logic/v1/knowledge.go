package v1

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"

	pkgerrs "github.com/curio-ai/curio/pkg/errors"
	"github.com/curio-ai/curio/pkg/i18n"
	"github.com/curio-ai/curio/pkg/rank"
	"github.com/curio-ai/curio/pkg/research"
	"github.com/curio-ai/curio/pkg/types"

	"github.com/curio-ai/curio/app/core"
	"github.com/curio-ai/curio/app/store"
)

type KnowledgeLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewKnowledgeLogic(ctx context.Context, core *core.Core) *KnowledgeLogic {
	return &KnowledgeLogic{
		ctx:  ctx,
		core: core,
	}
}

func (l *KnowledgeLogic) ListByTopic(topic string, limit uint64) ([]*types.KnowledgeItem, error) {
	res, err := l.core.Store().KnowledgeStore().ListByTopic(l.ctx, topic, limit)
	if err != nil {
		return nil, pkgerrs.New("KnowledgeLogic.ListByTopic.KnowledgeStore.ListByTopic", i18n.ERROR_INTERNAL, err)
	}
	return res, nil
}

func (l *KnowledgeLogic) ListRecent(limit uint64) ([]*types.KnowledgeItem, error) {
	res, err := l.core.Store().KnowledgeStore().ListRecent(l.ctx, limit)
	if err != nil {
		return nil, pkgerrs.New("KnowledgeLogic.ListRecent.KnowledgeStore.ListRecent", i18n.ERROR_INTERNAL, err)
	}
	return res, nil
}

func (l *KnowledgeLogic) Total() (int64, error) {
	total, err := l.core.Store().KnowledgeStore().Total(l.ctx)
	if err != nil {
		return 0, pkgerrs.New("KnowledgeLogic.Total.KnowledgeStore.Total", i18n.ERROR_INTERNAL, err)
	}
	return total, nil
}

// KnowledgeFetcher 知识召回与打分
type KnowledgeFetcher struct {
	Store store.KnowledgeStore

	TopK     int     // 召回上限
	MinScore float64 // 低于该相关度的候选直接丢弃
}

// Fetch 按查询词召回候选并计算覆盖率得分。
// 同分时新知识优先，最终截断到 TopK。
func (f *KnowledgeFetcher) Fetch(ctx context.Context, query string) ([]types.ScoredKnowledge, error) {
	keywords := rank.Tokenize(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	items, err := f.Store.ListByKeywords(ctx, keywords, uint64(f.TopK*4))
	if err != nil {
		return nil, err
	}

	scored := lo.FilterMap(items, func(item *types.KnowledgeItem, _ int) (types.ScoredKnowledge, bool) {
		score := rank.ScoreItem(query, item)
		if score < f.MinScore {
			return types.ScoredKnowledge{}, false
		}
		return types.ScoredKnowledge{Item: item, Score: score}, true
	})

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.LearnedAt > scored[j].Item.LearnedAt
	})

	if len(scored) > f.TopK {
		scored = scored[:f.TopK]
	}
	return scored, nil
}

// ResearchToKnowledge 把联网检索结果转成可入库的知识条目
func ResearchToKnowledge(topic string, results []research.Result) []*types.KnowledgeItem {
	now := time.Now().Unix()
	return lo.FilterMap(results, func(r research.Result, _ int) (*types.KnowledgeItem, bool) {
		item := &types.KnowledgeItem{
			Topic:      topic,
			Title:      r.Title,
			Content:    r.Content,
			Source:     types.KNOWLEDGE_SOURCE_CRAWLED,
			Confidence: types.KNOWLEDGE_SOURCE_CRAWLED.Reliability(),
			URL:        r.URL,
			LearnedAt:  now,
		}
		if err := item.Validate(); err != nil {
			slog.Debug("skip invalid research result", slog.String("topic", topic), slog.String("error", err.Error()))
			return nil, false
		}
		return item, true
	})
}
