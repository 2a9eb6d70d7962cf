package v1

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/curio-ai/curio/pkg/ai"
	"github.com/curio-ai/curio/pkg/arith"
	"github.com/curio-ai/curio/pkg/i18n"
	"github.com/curio-ai/curio/pkg/rank"
	"github.com/curio-ai/curio/pkg/research"
	"github.com/curio-ai/curio/pkg/safe"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"

	"github.com/curio-ai/curio/app/core"
	"github.com/curio-ai/curio/app/store"
)

// 终态路由，记录问题最终由哪条链路回答
const (
	ROUTE_AUTHORITATIVE = "authoritative"
	ROUTE_ARITHMETIC    = "arithmetic"
	ROUTE_SMALLTALK     = "smalltalk"
	ROUTE_CLARIFY       = "clarify"
	ROUTE_GENERATED     = "generated"
	ROUTE_DEGRADED      = "degraded"
	ROUTE_APOLOGY       = "apology"
)

type QueryRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Query     string `json:"query" binding:"required"`
}

type Reference struct {
	Title string  `json:"title"`
	URL   string  `json:"url,omitempty"`
	Score float64 `json:"score"`
}

type QueryResult struct {
	Answer     string       `json:"answer"`
	Route      string       `json:"route"`
	Intent     types.Intent `json:"intent,omitempty"`
	References []Reference  `json:"references,omitempty"`
	Degraded   bool         `json:"degraded"`

	// Stages 按序记录走过的阶段，用于排障与测试
	Stages []string `json:"-"`
}

// Router 问答管线。前置的廉价阶段能命中就短路，
// 模型调用永远是最后的手段。
type Router struct {
	Authoritative *AuthoritativeLookup
	Context       *ContextBuilder
	Fetcher       *KnowledgeFetcher
	Classifier    types.Classifier

	Generator ai.Generator
	Vision    ai.Vision
	Sources   []research.Source

	Queries   store.UserQueryStore
	Localizer i18n.Localizer

	RerankOpts         rank.Options
	ReferenceThreshold float64 // 引用露出线，低于该分的资料参与生成但不在答案里展示
	ForwardLimit       int

	Metrics *core.Metrics
}

func (r *Router) Route(ctx context.Context, req QueryRequest) *QueryResult {
	res := &QueryResult{}
	var stageTimer interface{ ObserveDuration() time.Duration }
	step := func(name string) {
		if stageTimer != nil {
			stageTimer.ObserveDuration()
			stageTimer = nil
		}
		if r.Metrics != nil {
			stageTimer = r.Metrics.QueryStageTimer(name)
		}
		res.Stages = append(res.Stages, name)
	}
	finish := func(route string) *QueryResult {
		if stageTimer != nil {
			stageTimer.ObserveDuration()
			stageTimer = nil
		}
		res.Route = route
		if r.Metrics != nil {
			r.Metrics.QueryRouteInc(route)
		}
		r.recordQuery(ctx, req.Query, route)
		return res
	}

	// 权威问答命中后原样返回，跳过生成与润色
	step("authoritative")
	if r.Authoritative != nil {
		if answer, ok := r.Authoritative.Lookup(ctx, req.Query); ok {
			res.Answer = answer
			return finish(ROUTE_AUTHORITATIVE)
		}
	}

	step("arithmetic")
	if v, ok := arith.Eval(stripArithPrefix(req.Query)); ok {
		res.Answer = arith.Format(v)
		return finish(ROUTE_ARITHMETIC)
	}

	step("smalltalk")
	if id := MatchSmalltalk(req.Query); id != "" {
		res.Answer = LocalizeSmalltalk(r.Localizer, req.Query, id)
		return finish(ROUTE_SMALLTALK)
	}

	// 图片链接换成文字描述，后续阶段只看纯文本
	step("media")
	query := ResolveMedia(ctx, r.Vision, req.Query)

	step("context")
	contextualized := query
	if r.Context != nil {
		contextualized = r.Context.Build(ctx, req.UserID, req.SessionID, query)
	}

	step("intent")
	res.Intent = r.Classifier.Classify(query)

	step("knowledge")
	scored := r.fetchKnowledge(ctx, query, res.Intent)

	step("rerank")
	ranked := rank.Rerank(scored, time.Now().Unix(), r.RerankOpts)
	if len(ranked) > r.ForwardLimit {
		ranked = ranked[:r.ForwardLimit]
	}
	// 只有召回与联网都一无所获才澄清，过了 min_score 的资料再弱也先试着回答
	if len(ranked) == 0 {
		res.Answer = r.Localizer.Get(utils.WhatLangTag(req.Query), i18n.MESSAGE_CLARIFY)
		return finish(ROUTE_CLARIFY)
	}
	res.References = lo.FilterMap(ranked, func(s types.ScoredKnowledge, _ int) (Reference, bool) {
		if s.Score < r.ReferenceThreshold {
			return Reference{}, false
		}
		return Reference{Title: s.Item.Title, URL: s.Item.URL, Score: s.Score}, true
	})

	step("generate")
	answer, err := r.generate(ctx, contextualized, res.Intent, ranked)
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			// 模型不可用，有参考资料就给降级答案，没有就致歉
			step("degrade")
			if degraded := r.degradedAnswer(req.Query, ranked); degraded != "" {
				res.Answer = degraded
				res.Degraded = true
				return finish(ROUTE_DEGRADED)
			}
		}
		slog.Error("generation failed", slog.String("intent", res.Intent.String()), slog.String("error", err.Error()))
		res.Answer = r.Localizer.Get(utils.WhatLangTag(req.Query), i18n.MESSAGE_APOLOGY)
		return finish(ROUTE_APOLOGY)
	}
	res.Answer = answer

	step("refine")
	res.Answer = r.refine(ctx, res.Answer)
	return finish(ROUTE_GENERATED)
}

// fetchKnowledge 本地召回，realtime/deep 意图或本地无结果时联网补充
func (r *Router) fetchKnowledge(ctx context.Context, query string, intent types.Intent) []types.ScoredKnowledge {
	var scored []types.ScoredKnowledge
	if r.Fetcher != nil {
		var err error
		scored, err = r.Fetcher.Fetch(ctx, query)
		if err != nil {
			slog.Error("knowledge fetch failed", slog.String("error", err.Error()))
		}
	}

	needResearch := intent == types.INTENT_REALTIME || intent == types.INTENT_DEEP || len(scored) == 0
	if !needResearch || len(r.Sources) == 0 {
		return scored
	}

	results, err := research.SearchAll(ctx, r.Sources, query)
	if err != nil {
		slog.Warn("online research failed", slog.String("error", err.Error()))
		return scored
	}
	results = research.Dedupe(results)

	items := ResearchToKnowledge(rank.TopicFromQuery(query), results)
	for _, item := range items {
		score := rank.ScoreItem(query, item)
		if r.Fetcher != nil && score < r.Fetcher.MinScore {
			continue
		}
		scored = append(scored, types.ScoredKnowledge{Item: item, Score: score})
	}

	// 联网结果顺手入库，下次同类问题可以直接本地命中
	if r.Fetcher != nil && len(items) > 0 {
		go safe.Run(func() {
			saveCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
			defer cancel()
			if err := r.Fetcher.Store.BatchCreate(saveCtx, items); err != nil {
				slog.Warn("failed to persist research results", slog.String("error", err.Error()))
			}
		})
	}
	return scored
}

func (r *Router) generate(ctx context.Context, contextualized string, intent types.Intent, ranked []types.ScoredKnowledge) (string, error) {
	lang := utils.WhatLangTag(contextualized)

	var prompt string
	switch {
	case intent == types.INTENT_RELATIONSHIP:
		prompt = ai.ReplaceVar(ai.PROMPT_RELATIONSHIP_DEFAULT_EN, "sources", formatReferences(ranked))
	case lang == "zh-CN":
		prompt = ai.ReplaceVar(ai.PROMPT_QA_DEFAULT_CN, "references", formatReferences(ranked))
	default:
		prompt = ai.ReplaceVar(ai.PROMPT_QA_DEFAULT_EN, "references", formatReferences(ranked))
	}

	var timer interface{ ObserveDuration() time.Duration }
	if r.Metrics != nil {
		timer = r.Metrics.ModelRequestTimer(intent.Task().String())
	}
	result, err := r.Generator.Predict(ctx, intent.Task(), prompt+"\n\n"+contextualized, nil)
	if timer != nil {
		timer.ObserveDuration()
	}
	if err != nil {
		if r.Metrics != nil {
			r.Metrics.ModelErrorInc(intent.Task().String())
		}
		return "", err
	}
	return strings.TrimSpace(result.Output), nil
}

// degradedAnswer 模型不可用时直接拼参考资料
func (r *Router) degradedAnswer(query string, ranked []types.ScoredKnowledge) string {
	if len(ranked) == 0 {
		return ""
	}
	prefix := r.Localizer.Get(utils.WhatLangTag(query), i18n.MESSAGE_DEGRADED_PREFIX)

	var sb strings.Builder
	sb.WriteString(prefix)
	for _, s := range ranked {
		sb.WriteString("\n- ")
		sb.WriteString(utils.Truncate(s.Item.Content, 400))
	}
	return sb.String()
}

// refine 润色一轮，失败时退回未润色的版本
func (r *Router) refine(ctx context.Context, answer string) string {
	result, err := r.Generator.Predict(ctx, types.AI_TASK_TEXT_GENERATION,
		"Polish the following answer. Keep the facts unchanged, improve the wording, reply with the polished answer only:\n\n"+answer, nil)
	if err != nil {
		slog.Debug("refinement skipped", slog.String("error", err.Error()))
		return answer
	}
	refined := strings.TrimSpace(result.Output)
	if refined == "" {
		return answer
	}
	return refined
}

func (r *Router) recordQuery(ctx context.Context, query, route string) {
	if r.Queries == nil {
		return
	}
	resolved := route != ROUTE_CLARIFY && route != ROUTE_APOLOGY
	if err := r.Queries.Create(ctx, types.UserQueryRecord{
		QueryText: query,
		Resolved:  resolved,
	}); err != nil {
		slog.Warn("failed to record user query", slog.String("error", err.Error()))
	}
}

func formatReferences(ranked []types.ScoredKnowledge) string {
	lines := lo.Map(ranked, func(s types.ScoredKnowledge, i int) string {
		return fmt.Sprintf("%d. %s — %s", i+1, s.Item.Title, utils.Truncate(s.Item.Content, 800))
	})
	return strings.Join(lines, "\n")
}

// stripArithPrefix 去掉 "what is 2+2" 一类的提问外壳，留下纯表达式
func stripArithPrefix(query string) string {
	t := strings.ToLower(strings.TrimSpace(query))
	t = strings.TrimSuffix(t, "?")
	for _, prefix := range []string{"what is", "what's", "how much is", "calculate", "compute", "eval"} {
		if strings.HasPrefix(t, prefix) {
			t = strings.TrimSpace(strings.TrimPrefix(t, prefix))
			break
		}
	}
	return t
}

// QueryLogic 组装问答管线
type QueryLogic struct {
	ctx    context.Context
	core   *core.Core
	router *Router
}

func NewQueryLogic(ctx context.Context, c *core.Core, localizer i18n.Localizer, sources []research.Source) *QueryLogic {
	cfg := c.Cfg().Query

	rerankOpts := rank.DefaultOptions()
	rerankOpts.TopK = cfg.TopK
	rerankOpts.ForwardLimit = cfg.ForwardLimit

	router := &Router{
		Authoritative: &AuthoritativeLookup{
			Store:          c.Store().AnswerStore(),
			Cache:          c.Cache(),
			Agent:          cfg.Agent,
			FuzzyThreshold: cfg.FuzzyThreshold,
			CacheTTL:       time.Duration(cfg.AnswerCacheTTL) * time.Second,
		},
		Context: &ContextBuilder{
			Messages:    c.Store().ChatMessageStore(),
			Memories:    c.Store().UserMemoryStore(),
			MaxTurns:    cfg.ContextTurns,
			TokenBudget: cfg.ContextTokenBudget,
		},
		Fetcher: &KnowledgeFetcher{
			Store:    c.Store().KnowledgeStore(),
			TopK:     cfg.TopK,
			MinScore: cfg.MinScore,
		},
		Classifier:         HeuristicClassifier{},
		Generator:          c.Srv().AI(),
		Vision:             c.Srv().AI(),
		Sources:            sources,
		Queries:            c.Store().UserQueryStore(),
		Localizer:          localizer,
		RerankOpts:         rerankOpts,
		ReferenceThreshold: cfg.ReferenceThreshold,
		ForwardLimit:       cfg.ForwardLimit,
		Metrics:            c.Metrics(),
	}

	return &QueryLogic{
		ctx:    ctx,
		core:   c,
		router: router,
	}
}

// Query 处理一次提问，带会话时顺带维护会话历史
func (l *QueryLogic) Query(req QueryRequest) (*QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("empty query")
	}

	res := l.router.Route(l.ctx, req)

	if req.SessionID != "" {
		chat := NewChatLogic(l.ctx, l.core)
		if err := chat.AppendMessage(req.SessionID, types.MESSAGE_ROLE_USER, req.Query); err != nil {
			slog.Warn("failed to append user message", slog.String("error", err.Error()))
		}
		if err := chat.AppendMessage(req.SessionID, types.MESSAGE_ROLE_ASSISTANT, res.Answer); err != nil {
			slog.Warn("failed to append assistant message", slog.String("error", err.Error()))
		}
	}
	return res, nil
}
