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
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.TopicStore = NewTopicStore(provider)
	})
}

// TopicStore 学习话题队列操作
type TopicStore struct {
	CommonFields
}

func NewTopicStore(provider SqlProviderAchieve) *TopicStore {
	store := &TopicStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_TOPIC)
	store.SetAllColumns("name", "category", "priority", "status", "source", "failures", "last_reason", "last_attempt_at", "created_at")
	return store
}

// CreateIfAbsent 入队，话题已存在则忽略，返回是否新建
func (s *TopicStore) CreateIfAbsent(ctx context.Context, data types.Topic) (bool, error) {
	if data.Name == "" {
		return false, errors.New("topic name is empty")
	}
	if data.Status == "" {
		data.Status = types.TOPIC_STATUS_PENDING
	}
	if data.Priority == 0 {
		data.Priority = data.Source.DefaultPriority()
	}
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.Name, data.Category, data.Priority, data.Status, data.Source, data.Failures, data.LastReason, data.LastAttemptAt, data.CreatedAt).
		Suffix("ON CONFLICT (name) DO NOTHING")

	queryString, args, err := query.ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return false, err
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// ClaimNext 原子认领优先级最高的待处理话题。
// SKIP LOCKED 保证多 worker 并发认领不会拿到同一条。
func (s *TopicStore) ClaimNext(ctx context.Context) (*types.Topic, error) {
	queryString := fmt.Sprintf(`UPDATE %s SET status = $1, last_attempt_at = $2
		WHERE name = (
			SELECT name FROM %s WHERE status = $3
			ORDER BY priority DESC, last_attempt_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING name, category, priority, status, source, failures, last_reason, last_attempt_at, created_at`,
		s.GetTable(), s.GetTable())

	var res types.Topic
	err := s.GetMaster(ctx).Get(&res, queryString, types.TOPIC_STATUS_IN_PROGRESS, time.Now().Unix(), types.TOPIC_STATUS_PENDING)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// Requeue 失败话题重新入队，失败次数达到上限则标记为 failed。
// 退避通过回拨 last_attempt_at 实现，认领排序天然晚于新话题。
func (s *TopicStore) Requeue(ctx context.Context, name, reason string, backoffSeconds int64, maxFailures int) error {
	queryString := fmt.Sprintf(`UPDATE %s SET
			failures = failures + 1,
			last_reason = $1,
			last_attempt_at = $2,
			status = CASE WHEN failures + 1 >= $3 THEN $4 ELSE $5 END
		WHERE name = $6`,
		s.GetTable())

	retryAt := time.Now().Unix() + backoffSeconds
	_, err := s.GetMaster(ctx).Exec(queryString, reason, retryAt, maxFailures,
		types.TOPIC_STATUS_FAILED, types.TOPIC_STATUS_PENDING, name)
	return err
}

func (s *TopicStore) Complete(ctx context.Context, name string) error {
	query := sq.Update(s.GetTable()).
		Set("status", types.TOPIC_STATUS_DONE).
		Set("last_reason", "").
		Where(sq.Eq{"name": name})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *TopicStore) Get(ctx context.Context, name string) (*types.Topic, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"name": name})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Topic
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *TopicStore) List(ctx context.Context, status types.TopicStatus, page, pageSize uint64) ([]*types.Topic, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		OrderBy("priority DESC", "created_at DESC")
	if status != "" {
		query = query.Where(sq.Eq{"status": status})
	}
	if page != 0 && pageSize != 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.Topic
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *TopicStore) CountByStatus(ctx context.Context) (map[types.TopicStatus]int64, error) {
	queryString, args, err := sq.Select("status", "COUNT(*) AS total").
		From(s.GetTable()).
		GroupBy("status").ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var rows []struct {
		Status types.TopicStatus `db:"status"`
		Total  int64             `db:"total"`
	}
	if err = s.GetReplica(ctx).Select(&rows, queryString, args...); err != nil {
		return nil, err
	}

	res := make(map[types.TopicStatus]int64, len(rows))
	for _, row := range rows {
		res[row.Status] = row.Total
	}
	return res, nil
}
