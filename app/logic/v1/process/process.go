package process

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/curio-ai/curio/app/core"
	"github.com/curio-ai/curio/pkg/research"
	"github.com/curio-ai/curio/pkg/safe"
)

// Process 常驻后台进程：学习爬虫、话题发现、训练编排、指标巡检
type Process struct {
	cron    *cron.Cron
	core    *core.Core
	crawler *Crawler
	trainer *Trainer
}

func NewProcess(c *core.Core) *Process {
	cfg := c.Cfg()

	sources := LimitSources([]research.Source{
		research.NewWikipedia(),
		research.NewDuckDuckGo(),
	}, cfg.Crawler.RatePerSource, cfg.Crawler.RateBurst)

	crawler := NewCrawler(
		c.Store().TopicStore(),
		&ResearchLearner{
			Sources:   sources,
			Knowledge: c.Store().KnowledgeStore(),
			Queries:   c.Store().UserQueryStore(),
			Reader:    research.NewWebReader(),
		},
		CrawlerOptions{
			Workers:        cfg.Crawler.Workers,
			Interval:       time.Duration(cfg.Crawler.IntervalSeconds) * time.Second,
			CooldownAfter:  cfg.Crawler.CooldownThreshold,
			Cooldown:       time.Duration(cfg.Crawler.CooldownSeconds) * time.Second,
			MaxFailures:    cfg.Crawler.MaxFailures,
			BackoffSeconds: cfg.Crawler.BackoffSeconds,
		},
	)
	crawler.Metrics = c.Metrics()

	dictionary := cfg.Crawler.Dictionary
	if cfg.Crawler.DictionaryPath != "" {
		loaded, err := loadDictionary(cfg.Crawler.DictionaryPath)
		if err != nil {
			slog.Warn("failed to load topic dictionary", slog.String("path", cfg.Crawler.DictionaryPath), slog.String("error", err.Error()))
		} else if len(loaded) > 0 {
			dictionary = loaded
		}
	}

	discovery := NewDiscovery(
		c.Store().TopicStore(),
		c.Store().UserQueryStore(),
		c.Store().KnowledgeStore(),
		research.NewTrendingFeed(),
		dictionary,
		DiscoveryWeights{
			Dictionary: cfg.Discovery.DictionaryWeight,
			UserQuery:  cfg.Discovery.UserQueryWeight,
			Trending:   cfg.Discovery.TrendingWeight,
			Discovered: cfg.Discovery.DiscoveredWeight,
		},
		cfg.Discovery.BatchSize,
		time.Now().UnixNano(),
	)

	trainer := NewTrainer(
		c.Store().TrainingJobStore(),
		c.Store().ChatSessionStore(),
		c.Store().ChatMessageStore(),
		c.Store().KnowledgeStore(),
		c.Srv().AI().Trainer(),
		TrainerOptions{
			BatchCap:    cfg.Trainer.BatchCap,
			MinExamples: cfg.Trainer.MinExamples,
			Timeout:     time.Duration(cfg.Trainer.TimeoutMinutes) * time.Minute,
		},
	)
	trainer.Metrics = c.Metrics()

	p := &Process{
		cron:    cron.New(),
		core:    c,
		crawler: crawler,
		trainer: trainer,
	}

	mustAdd := func(spec string, job func()) {
		if _, err := p.cron.AddFunc(spec, func() {
			safe.RunWithComponent(job, "process.cron")
		}); err != nil {
			panic(err)
		}
	}

	mustAdd("@every 10m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute*5)
		defer cancel()
		if err := discovery.Run(ctx); err != nil {
			slog.Error("topic discovery failed", slog.String("error", err.Error()))
		}
	})

	mustAdd(fmt.Sprintf("@every %dm", cfg.Trainer.IntervalMinutes), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute*10)
		defer cancel()
		if err := trainer.Tick(ctx); err != nil {
			slog.Error("trainer tick failed", slog.String("error", err.Error()))
		}
	})

	// 过期知识淘汰，curated 不受影响
	mustAdd("@every 12h", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		before := time.Now().Add(-time.Duration(cfg.Crawler.RetentionDays) * 24 * time.Hour).Unix()
		removed, err := c.Store().KnowledgeStore().MarkStaleBefore(ctx, before)
		if err != nil {
			slog.Error("knowledge expiration sweep failed", slog.String("error", err.Error()))
			return
		}
		if removed > 0 {
			slog.Info("expired knowledge removed", slog.Int64("count", removed))
		}
	})

	mustAdd("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()
		total, err := c.Store().KnowledgeStore().Total(ctx)
		if err != nil {
			slog.Warn("failed to count knowledge", slog.String("error", err.Error()))
			return
		}
		c.Metrics().SetKnowledgeTotal(total)
	})

	return p
}

// loadDictionary 每行一个话题，# 开头为注释
func loadDictionary(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var topics []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		topics = append(topics, line)
	}
	return topics, nil
}

func (p *Process) Crawler() *Crawler {
	return p.crawler
}

func (p *Process) Trainer() *Trainer {
	return p.trainer
}

func (p *Process) Start() {
	p.crawler.Start()
	p.cron.Start()
}

func (p *Process) Stop() {
	if p.cron != nil {
		ctx := p.cron.Stop()
		<-ctx.Done()
	}
	p.crawler.Stop()
}
