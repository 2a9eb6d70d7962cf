package types

import (
	"fmt"
	"strings"
)

type TopicStatus string

const (
	TOPIC_STATUS_PENDING     TopicStatus = "pending"
	TOPIC_STATUS_IN_PROGRESS TopicStatus = "in_progress"
	TOPIC_STATUS_DONE        TopicStatus = "done"
	TOPIC_STATUS_FAILED      TopicStatus = "failed"
)

func (s TopicStatus) String() string {
	return string(s)
}

// TopicSource 话题的发现渠道，采样权重在配置中定义
type TopicSource string

const (
	TOPIC_SOURCE_DICTIONARY TopicSource = "dictionary"
	TOPIC_SOURCE_USER_QUERY TopicSource = "user_query"
	TOPIC_SOURCE_TRENDING   TopicSource = "trending"
	TOPIC_SOURCE_DISCOVERED TopicSource = "discovered"
	TOPIC_SOURCE_MANUAL     TopicSource = "manual"
)

func (s TopicSource) String() string {
	return string(s)
}

// DefaultPriority 各来源的默认优先级，用户问题优先于后台字典
func (s TopicSource) DefaultPriority() int {
	switch s {
	case TOPIC_SOURCE_MANUAL:
		return 9
	case TOPIC_SOURCE_USER_QUERY:
		return 7
	case TOPIC_SOURCE_TRENDING:
		return 5
	case TOPIC_SOURCE_DISCOVERED:
		return 3
	default:
		return 2
	}
}

// Topic 待学习话题，priority 取值 [0,9]
type Topic struct {
	Name          string      `json:"name" db:"name"`
	Category      string      `json:"category" db:"category"`
	Priority      int         `json:"priority" db:"priority"`
	Status        TopicStatus `json:"status" db:"status"`
	Source        TopicSource `json:"source" db:"source"`
	Failures      int         `json:"failures" db:"failures"`
	LastReason    string      `json:"last_reason" db:"last_reason"`
	LastAttemptAt int64       `json:"last_attempt_at" db:"last_attempt_at"`
	CreatedAt     int64       `json:"created_at" db:"created_at"`
}

func (t *Topic) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("topic missing name")
	}
	if t.Priority < 0 || t.Priority > 9 {
		return fmt.Errorf("topic priority out of range: %d", t.Priority)
	}
	return nil
}
