package types

import (
	"fmt"
	"strings"
)

// AITask 模型服务支持的任务枚举
// 未知任务在边界处拒绝，不允许透传任意字符串
type AITask string

const (
	AI_TASK_TEXT_GENERATION AITask = "text_generation"
	AI_TASK_CLASSIFICATION  AITask = "classification"
	AI_TASK_QA              AITask = "qa"
	AI_TASK_SENTIMENT       AITask = "sentiment"
	AI_TASK_NER             AITask = "ner"
)

func (t AITask) String() string {
	return string(t)
}

func ParseAITask(s string) (AITask, error) {
	switch AITask(strings.ToLower(s)) {
	case AI_TASK_TEXT_GENERATION, AI_TASK_CLASSIFICATION, AI_TASK_QA, AI_TASK_SENTIMENT, AI_TASK_NER:
		return AITask(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("unsupported ai task %q", s)
	}
}

// Intent 路由管线对 contextualized query 的意图分类
type Intent string

const (
	INTENT_FACTUAL      Intent = "factual"
	INTENT_FOLLOW_UP    Intent = "follow_up"
	INTENT_RELATIONSHIP Intent = "relationship"
	INTENT_REALTIME     Intent = "realtime"
	INTENT_DEEP         Intent = "deep"
	INTENT_UNKNOWN      Intent = "unknown"
)

func (i Intent) String() string {
	return string(i)
}

// Task 按意图选择生成任务标签
func (i Intent) Task() AITask {
	switch i {
	case INTENT_FACTUAL, INTENT_FOLLOW_UP, INTENT_RELATIONSHIP:
		return AI_TASK_QA
	default:
		return AI_TASK_TEXT_GENERATION
	}
}

// Classifier 可替换的意图识别策略，方便之后换成训练出来的分类器
type Classifier interface {
	Classify(text string) Intent
}
