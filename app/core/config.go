package core

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/curio-ai/curio/app/core/srv"
)

func MustLoadBaseConfig(path string) CoreConfig {
	if path == "" {
		return LoadBaseConfigFromENV()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	conf := &CoreConfig{}
	conf.SetConfigBytes(raw)

	if err = toml.Unmarshal(raw, conf); err != nil {
		panic(err)
	}

	conf.FillDefault()
	return *conf
}

func (c CoreConfig) LoadCustomConfig(cfg any) error {
	if len(c.bytes) == 0 {
		return nil
	}
	if err := toml.Unmarshal(c.bytes, cfg); err != nil {
		return err
	}
	return nil
}

func LoadBaseConfigFromENV() CoreConfig {
	var c CoreConfig
	c.FromENV()
	c.FillDefault()
	return c
}

type CoreConfig struct {
	Addr      string      `toml:"addr"`
	ClusterID int64       `toml:"cluster_id"` // 雪花 ID 的节点号
	Log       Log         `toml:"log"`
	Postgres  PGConfig    `toml:"postgres"`
	Redis     RedisConfig `toml:"redis"`

	AI srv.AIConfig `toml:"ai"`

	Query     QueryConfig     `toml:"query"`
	Crawler   CrawlerConfig   `toml:"crawler"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Trainer   TrainerConfig   `toml:"trainer"`

	bytes []byte `toml:"-"`
}

func (c *CoreConfig) SetConfigBytes(raw []byte) {
	c.bytes = raw
}

// QueryConfig 问答链路参数
type QueryConfig struct {
	Agent              string  `toml:"agent"`               // 权威问答命名空间
	MinScore           float64 `toml:"min_score"`           // 参考资料最低相关度
	ReferenceThreshold float64 `toml:"reference_threshold"` // 低于该值视为资料不足，进入澄清
	FuzzyThreshold     float64 `toml:"fuzzy_threshold"`     // 权威问答模糊命中阈值
	TopK               int     `toml:"top_k"`               // 召回条数
	ForwardLimit       int     `toml:"forward_limit"`       // 注入生成的参考条数
	ContextTurns       int     `toml:"context_turns"`       // 上下文携带的最大轮数
	ContextTokenBudget int     `toml:"context_token_budget"`
	AnswerCacheTTL     int     `toml:"answer_cache_ttl"` // 权威问答缓存秒数
}

// CrawlerConfig 学习爬虫参数
type CrawlerConfig struct {
	Workers           int      `toml:"workers"`
	IntervalSeconds   int      `toml:"interval_seconds"`    // 每个 worker 认领话题的间隔
	RatePerSource     float64  `toml:"rate_per_source"`     // 每个来源每秒请求数
	RateBurst         int      `toml:"rate_burst"`
	CooldownThreshold int      `toml:"cooldown_threshold"`  // 连续失败多少次进入冷却
	CooldownSeconds   int      `toml:"cooldown_seconds"`
	MaxFailures       int      `toml:"max_failures"`        // 话题失败上限
	BackoffSeconds    int64    `toml:"backoff_seconds"`     // 退避基数，按失败次数指数增长
	Dictionary        []string `toml:"dictionary"`          // 基础话题词典
	DictionaryPath    string   `toml:"dictionary_path"`     // 每行一个话题，覆盖 Dictionary
	RetentionDays     int      `toml:"retention_days"`      // 非人工知识的保留天数
}

// DiscoveryConfig 话题发现的来源权重
type DiscoveryConfig struct {
	DictionaryWeight int `toml:"dictionary_weight"`
	UserQueryWeight  int `toml:"user_query_weight"`
	TrendingWeight   int `toml:"trending_weight"`
	DiscoveredWeight int `toml:"discovered_weight"`
	BatchSize        int `toml:"batch_size"` // 每轮发现最多入队数量
}

// TrainerConfig 训练编排参数
type TrainerConfig struct {
	IntervalMinutes int `toml:"interval_minutes"` // 扫描间隔
	TimeoutMinutes  int `toml:"timeout_minutes"`  // 单个任务超时
	BatchCap        int `toml:"batch_cap"`        // 单次训练样例上限
	MinExamples     int `toml:"min_examples"`     // 不足则跳过本轮
}

// FillDefault 未配置项落到默认值
func (c *CoreConfig) FillDefault() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Query.Agent == "" {
		c.Query.Agent = "default"
	}
	if c.Query.MinScore == 0 {
		c.Query.MinScore = 0.1
	}
	if c.Query.ReferenceThreshold == 0 {
		c.Query.ReferenceThreshold = 0.5
	}
	if c.Query.FuzzyThreshold == 0 {
		c.Query.FuzzyThreshold = 0.9
	}
	if c.Query.TopK == 0 {
		c.Query.TopK = 20
	}
	if c.Query.ForwardLimit == 0 {
		c.Query.ForwardLimit = 5
	}
	if c.Query.ContextTurns == 0 {
		c.Query.ContextTurns = 8
	}
	if c.Query.ContextTokenBudget == 0 {
		c.Query.ContextTokenBudget = 2048
	}
	if c.Query.AnswerCacheTTL == 0 {
		c.Query.AnswerCacheTTL = 600
	}

	if c.Crawler.Workers == 0 {
		c.Crawler.Workers = 3
	}
	if c.Crawler.IntervalSeconds == 0 {
		c.Crawler.IntervalSeconds = 10
	}
	if c.Crawler.RatePerSource == 0 {
		c.Crawler.RatePerSource = 1
	}
	if c.Crawler.RateBurst == 0 {
		c.Crawler.RateBurst = 2
	}
	if c.Crawler.CooldownThreshold == 0 {
		c.Crawler.CooldownThreshold = 5
	}
	if c.Crawler.CooldownSeconds == 0 {
		c.Crawler.CooldownSeconds = 300
	}
	if c.Crawler.MaxFailures == 0 {
		c.Crawler.MaxFailures = 3
	}
	if c.Crawler.BackoffSeconds == 0 {
		c.Crawler.BackoffSeconds = 60
	}
	if c.Crawler.RetentionDays == 0 {
		c.Crawler.RetentionDays = 180
	}

	if c.Discovery.DictionaryWeight == 0 && c.Discovery.UserQueryWeight == 0 &&
		c.Discovery.TrendingWeight == 0 && c.Discovery.DiscoveredWeight == 0 {
		c.Discovery.DictionaryWeight = 50
		c.Discovery.UserQueryWeight = 30
		c.Discovery.TrendingWeight = 15
		c.Discovery.DiscoveredWeight = 5
	}
	if c.Discovery.BatchSize == 0 {
		c.Discovery.BatchSize = 10
	}

	if c.Trainer.IntervalMinutes == 0 {
		c.Trainer.IntervalMinutes = 30
	}
	if c.Trainer.TimeoutMinutes == 0 {
		c.Trainer.TimeoutMinutes = 60
	}
	if c.Trainer.BatchCap == 0 {
		c.Trainer.BatchCap = 100
	}
	if c.Trainer.MinExamples == 0 {
		c.Trainer.MinExamples = 10
	}
}

func (c *CoreConfig) FromENV() {
	c.Addr = os.Getenv("CURIO_API_SERVICE_ADDRESS")
	if idStr := os.Getenv("CURIO_CLUSTER_ID"); idStr != "" {
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			c.ClusterID = id
		}
	}
	c.Log.FromENV()
	c.Postgres.FromENV()
	c.Redis.FromENV()
	c.AI.FromENV()
}

type PGConfig struct {
	DSN string `toml:"dsn"`
}

func (m *PGConfig) FromENV() {
	m.DSN = os.Getenv("CURIO_POSTGRESQL_DSN")
}

func (c PGConfig) FormatDSN() string {
	return c.DSN
}

type RedisConfig struct {
	Addr     string `toml:"addr"`     // host:port，为空则使用进程内缓存
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"` // 键前缀，用于隔离不同环境
}

func (r *RedisConfig) FromENV() {
	r.Addr = os.Getenv("CURIO_REDIS_ADDR")
	r.Password = os.Getenv("CURIO_REDIS_PASSWORD")
	if dbStr := os.Getenv("CURIO_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
}

type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

func (l *Log) FromENV() {
	l.Level = os.Getenv("CURIO_API_LOG_LEVEL")
	l.Path = os.Getenv("CURIO_API_LOG_PATH")
}

func (l *Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
