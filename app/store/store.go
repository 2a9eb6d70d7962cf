package store

import (
	"context"

	"github.com/curio-ai/curio/pkg/types"
)

// KnowledgeStore 知识表操作
type KnowledgeStore interface {
	// Create 写入一条知识，去重键 (topic, source, content_hash) 冲突时覆盖
	Create(ctx context.Context, data types.KnowledgeItem) error
	BatchCreate(ctx context.Context, datas []*types.KnowledgeItem) error
	Get(ctx context.Context, id string) (*types.KnowledgeItem, error)
	// ListByKeywords 召回包含任一关键词的候选，打分在上层完成
	ListByKeywords(ctx context.Context, keywords []string, limit uint64) ([]*types.KnowledgeItem, error)
	ListByTopic(ctx context.Context, topic string, limit uint64) ([]*types.KnowledgeItem, error)
	ListRecent(ctx context.Context, limit uint64) ([]*types.KnowledgeItem, error)
	// MarkStale 清理指定话题下的知识
	MarkStale(ctx context.Context, topic string) error
	// MarkStaleBefore 清理过期的非人工知识，返回清理条数
	MarkStaleBefore(ctx context.Context, before int64) (int64, error)
	Total(ctx context.Context) (int64, error)
}

// TopicStore 话题队列操作
type TopicStore interface {
	// CreateIfAbsent 同名话题处于 pending/in_progress 时跳过
	CreateIfAbsent(ctx context.Context, data types.Topic) (bool, error)
	// ClaimNext 原子地认领一个 pending 话题，无可认领时返回 nil
	ClaimNext(ctx context.Context) (*types.Topic, error)
	// Requeue 回队并记录退避，失败次数到阈值则置为 failed
	Requeue(ctx context.Context, name string, reason string, backoffSeconds int64, maxFailures int) error
	Complete(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (*types.Topic, error)
	List(ctx context.Context, status types.TopicStatus, page, pageSize uint64) ([]*types.Topic, error)
	CountByStatus(ctx context.Context) (map[types.TopicStatus]int64, error)
}

type UserQueryStore interface {
	Create(ctx context.Context, data types.UserQueryRecord) error
	ListUnresolved(ctx context.Context, limit uint64) ([]*types.UserQueryRecord, error)
	// MarkResolved 话题学成后按归一化问题文本回写
	MarkResolved(ctx context.Context, normalized string) error
}

// AnswerStore 权威问答表
type AnswerStore interface {
	Upsert(ctx context.Context, data types.AnswerEntry) error
	GetByNormalized(ctx context.Context, agent, normalized string) (*types.AnswerEntry, error)
	ListByAgent(ctx context.Context, agent string, page, pageSize uint64) ([]*types.AnswerEntry, error)
	Delete(ctx context.Context, agent, id string) error
}

type ChatSessionStore interface {
	Create(ctx context.Context, data types.ChatSession) error
	Get(ctx context.Context, id string) (*types.ChatSession, error)
	// ListUpdatedSince 训练编排器按游标增量扫描
	ListUpdatedSince(ctx context.Context, updatedAfter int64, limit uint64) ([]*types.ChatSession, error)
	Touch(ctx context.Context, id string, updatedAt int64) error
}

type ChatMessageStore interface {
	Create(ctx context.Context, data types.ChatMessage) error
	// ListLatest 返回会话最近的 n 条，按 sequence 升序
	ListLatest(ctx context.Context, sessionID string, n uint64) ([]*types.ChatMessage, error)
	ListBySession(ctx context.Context, sessionID string) ([]*types.ChatMessage, error)
}

type UserMemoryStore interface {
	Upsert(ctx context.Context, data types.UserMemory) error
	ListByUser(ctx context.Context, userID string) ([]*types.UserMemory, error)
}

type TrainingJobStore interface {
	Create(ctx context.Context, data types.TrainingJob) error
	UpdateStatus(ctx context.Context, id string, status types.TrainingJobStatus, failReason string, finishedAt int64) error
	GetRunning(ctx context.Context) (*types.TrainingJob, error)
	GetLatest(ctx context.Context) (*types.TrainingJob, error)
	HasSucceeded(ctx context.Context) (bool, error)
	List(ctx context.Context, page, pageSize uint64) ([]*types.TrainingJob, error)
}
