package v1

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pkgerrs "github.com/curio-ai/curio/pkg/errors"
	"github.com/curio-ai/curio/pkg/i18n"
	"github.com/curio-ai/curio/pkg/rank"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"

	"github.com/curio-ai/curio/app/core"
	"github.com/curio-ai/curio/app/store"
)

type AnswerLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewAnswerLogic(ctx context.Context, core *core.Core) *AnswerLogic {
	return &AnswerLogic{
		ctx:  ctx,
		core: core,
	}
}

// Upsert 录入权威问答，同一 agent 下同一问题只保留最新答案
func (l *AnswerLogic) Upsert(agent, question, answer string) error {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return pkgerrs.New("AnswerLogic.Upsert.empty", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	normalized := utils.NormalizeText(question)
	err := l.core.Store().AnswerStore().Upsert(l.ctx, types.AnswerEntry{
		Agent:              agent,
		Question:           question,
		NormalizedQuestion: normalized,
		Answer:             answer,
	})
	if err != nil {
		return pkgerrs.New("AnswerLogic.Upsert.AnswerStore.Upsert", i18n.ERROR_INTERNAL, err)
	}

	// 旧答案缓存立即失效
	if cacheErr := l.core.Cache().Del(l.ctx, answerCacheKey(agent, normalized)); cacheErr != nil {
		slog.Warn("failed to invalidate answer cache", slog.String("error", cacheErr.Error()))
	}
	return nil
}

func (l *AnswerLogic) List(agent string, page, pageSize uint64) ([]*types.AnswerEntry, error) {
	res, err := l.core.Store().AnswerStore().ListByAgent(l.ctx, agent, page, pageSize)
	if err != nil {
		return nil, pkgerrs.New("AnswerLogic.List.AnswerStore.ListByAgent", i18n.ERROR_INTERNAL, err)
	}
	return res, nil
}

func (l *AnswerLogic) Delete(agent, id string) error {
	if err := l.core.Store().AnswerStore().Delete(l.ctx, agent, id); err != nil {
		return pkgerrs.New("AnswerLogic.Delete.AnswerStore.Delete", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

func answerCacheKey(agent, normalized string) string {
	return fmt.Sprintf("answer:%s:%s", agent, utils.MD5(normalized))
}

// AuthoritativeLookup 权威问答命中检查。
// 先查缓存，再精确匹配归一化问题，最后做查询词覆盖率的模糊匹配。
type AuthoritativeLookup struct {
	Store          store.AnswerStore
	Cache          types.Cache
	Agent          string
	FuzzyThreshold float64
	CacheTTL       time.Duration
}

func (a *AuthoritativeLookup) Lookup(ctx context.Context, query string) (string, bool) {
	normalized := utils.NormalizeText(query)
	if normalized == "" {
		return "", false
	}

	key := answerCacheKey(a.Agent, normalized)
	if a.Cache != nil {
		if cached, err := a.Cache.Get(ctx, key); err == nil {
			return cached, true
		}
	}

	entry, err := a.Store.GetByNormalized(ctx, a.Agent, normalized)
	if err != nil {
		slog.Error("authoritative lookup failed", slog.String("error", err.Error()))
		return "", false
	}
	if entry == nil {
		entry = a.fuzzyLookup(ctx, normalized)
	}
	if entry == nil {
		return "", false
	}

	if a.Cache != nil {
		if err := a.Cache.SetEx(ctx, key, entry.Answer, a.CacheTTL); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("failed to cache answer", slog.String("error", err.Error()))
		}
	}
	return entry.Answer, true
}

// fuzzyLookup 遍历 agent 下的问答，取查询词覆盖率最高且达到阈值的一条
func (a *AuthoritativeLookup) fuzzyLookup(ctx context.Context, normalized string) *types.AnswerEntry {
	entries, err := a.Store.ListByAgent(ctx, a.Agent, 0, 0)
	if err != nil {
		slog.Error("authoritative fuzzy lookup failed", slog.String("error", err.Error()))
		return nil
	}

	var (
		best      *types.AnswerEntry
		bestScore float64
	)
	for _, entry := range entries {
		score := rank.Overlap(normalized, entry.NormalizedQuestion)
		if score >= a.FuzzyThreshold && score > bestScore {
			best = entry
			bestScore = score
		}
	}
	return best
}
