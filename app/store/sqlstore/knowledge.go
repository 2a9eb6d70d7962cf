package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/curio-ai/curio/pkg/register"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.KnowledgeStore = NewKnowledgeStore(provider)
	})
}

// KnowledgeStore 知识表操作
type KnowledgeStore struct {
	CommonFields
}

func NewKnowledgeStore(provider SqlProviderAchieve) *KnowledgeStore {
	store := &KnowledgeStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_KNOWLEDGE)
	store.SetAllColumns("id", "topic", "title", "content", "source", "confidence", "url", "content_hash", "learned_at")
	return store
}

// 同一去重键重复写入时由最后一次写入覆盖，保证幂等
const knowledgeUpsertSuffix = `ON CONFLICT (topic, source, content_hash) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, confidence = EXCLUDED.confidence, url = EXCLUDED.url, learned_at = EXCLUDED.learned_at`

// Create 写入知识记录
func (s *KnowledgeStore) Create(ctx context.Context, data types.KnowledgeItem) error {
	if err := fillKnowledgeDefaults(&data); err != nil {
		return err
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.Topic, data.Title, data.Content, data.Source, data.Confidence, data.URL, data.ContentHash, data.LearnedAt).
		Suffix(knowledgeUpsertSuffix)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func (s *KnowledgeStore) BatchCreate(ctx context.Context, datas []*types.KnowledgeItem) error {
	if len(datas) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).Columns(s.GetAllColumns()...)
	for _, data := range datas {
		if err := fillKnowledgeDefaults(data); err != nil {
			return err
		}
		query = query.Values(data.ID, data.Topic, data.Title, data.Content, data.Source, data.Confidence, data.URL, data.ContentHash, data.LearnedAt)
	}
	query = query.Suffix(knowledgeUpsertSuffix)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	if _, err = s.GetMaster(ctx).Exec(queryString, args...); err != nil {
		return err
	}
	return nil
}

func fillKnowledgeDefaults(data *types.KnowledgeItem) error {
	if data.ID == "" {
		data.ID = utils.GenUniqIDStr()
	}
	if data.ContentHash == "" {
		data.ContentHash = utils.ContentHash(data.Content)
	}
	if data.LearnedAt == 0 {
		data.LearnedAt = time.Now().Unix()
	}
	return data.Validate()
}

func (s *KnowledgeStore) Get(ctx context.Context, id string) (*types.KnowledgeItem, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.KnowledgeItem
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListByKeywords 关键词召回，评分排序在 logic 层
func (s *KnowledgeStore) ListByKeywords(ctx context.Context, keywords []string, limit uint64) ([]*types.KnowledgeItem, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	match := sq.Or{}
	for _, word := range keywords {
		pattern := "%" + word + "%"
		match = append(match,
			sq.ILike{"title": pattern},
			sq.ILike{"content": pattern},
			sq.ILike{"topic": pattern},
		)
	}

	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(match).
		OrderBy("learned_at DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.KnowledgeItem
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *KnowledgeStore) ListByTopic(ctx context.Context, topic string, limit uint64) ([]*types.KnowledgeItem, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"topic": topic}).
		OrderBy("learned_at DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.KnowledgeItem
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *KnowledgeStore) ListRecent(ctx context.Context, limit uint64) ([]*types.KnowledgeItem, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		OrderBy("learned_at DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.KnowledgeItem
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// MarkStale 清理话题下的全部知识，重新学习前调用
func (s *KnowledgeStore) MarkStale(ctx context.Context, topic string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"topic": topic})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// MarkStaleBefore 淘汰过期的非人工知识，curated 永不淘汰
func (s *KnowledgeStore) MarkStaleBefore(ctx context.Context, before int64) (int64, error) {
	query := sq.Delete(s.GetTable()).Where(sq.And{
		sq.Lt{"learned_at": before},
		sq.NotEq{"source": types.KNOWLEDGE_SOURCE_CURATED},
	})

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

func (s *KnowledgeStore) Total(ctx context.Context) (int64, error) {
	queryString, args, err := sq.Select("COUNT(*)").From(s.GetTable()).ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var total int64
	if err = s.GetReplica(ctx).Get(&total, queryString, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count knowledge, %w", err)
	}
	return total, nil
}
