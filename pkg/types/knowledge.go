package types

import (
	"fmt"
	"strings"
)

// KnowledgeSource 知识来源，决定置信度基准
type KnowledgeSource string

const (
	KNOWLEDGE_SOURCE_CURATED KnowledgeSource = "curated"
	KNOWLEDGE_SOURCE_CRAWLED KnowledgeSource = "crawled"
	KNOWLEDGE_SOURCE_LEARNED KnowledgeSource = "learned"
	KNOWLEDGE_SOURCE_UNKNOWN KnowledgeSource = "unknown"
)

func KnowledgeSourceFromString(s string) KnowledgeSource {
	switch strings.ToLower(s) {
	case string(KNOWLEDGE_SOURCE_CURATED):
		return KNOWLEDGE_SOURCE_CURATED
	case string(KNOWLEDGE_SOURCE_CRAWLED):
		return KNOWLEDGE_SOURCE_CRAWLED
	case string(KNOWLEDGE_SOURCE_LEARNED):
		return KNOWLEDGE_SOURCE_LEARNED
	default:
		return KNOWLEDGE_SOURCE_UNKNOWN
	}
}

func (s KnowledgeSource) String() string {
	return string(s)
}

// Reliability 来源可靠度基准，写入时用于推导置信度，写入后不再上调
func (s KnowledgeSource) Reliability() float64 {
	switch s {
	case KNOWLEDGE_SOURCE_CURATED:
		return 0.95
	case KNOWLEDGE_SOURCE_CRAWLED:
		return 0.6
	case KNOWLEDGE_SOURCE_LEARNED:
		return 0.5
	default:
		return 0.3
	}
}

// KnowledgeItem 单条知识记录
// 去重键为 (topic, source, content_hash)，重复写入时由最后一次写入覆盖
type KnowledgeItem struct {
	ID          string          `json:"id" db:"id"`
	Topic       string          `json:"topic" db:"topic"`
	Title       string          `json:"title" db:"title"`
	Content     string          `json:"content" db:"content"`
	Source      KnowledgeSource `json:"source" db:"source"`
	Confidence  float64         `json:"confidence" db:"confidence"`
	URL         string          `json:"url" db:"url"`
	ContentHash string          `json:"content_hash" db:"content_hash"`
	LearnedAt   int64           `json:"learned_at" db:"learned_at"`
}

func (k *KnowledgeItem) Validate() error {
	if k.Topic == "" {
		return fmt.Errorf("knowledge item missing topic")
	}
	if strings.TrimSpace(k.Content) == "" {
		return fmt.Errorf("knowledge item missing content")
	}
	if k.Source == KNOWLEDGE_SOURCE_UNKNOWN || k.Source == "" {
		return fmt.Errorf("knowledge item has unknown source")
	}
	if k.Confidence < 0 || k.Confidence > 1 {
		return fmt.Errorf("knowledge item confidence out of range: %f", k.Confidence)
	}
	return nil
}

// ScoredKnowledge 检索结果，score 为查询词覆盖率
type ScoredKnowledge struct {
	Item  *KnowledgeItem
	Score float64
}

type ListKnowledgeOptions struct {
	Topic    string
	Source   KnowledgeSource
	Keywords []string
}
