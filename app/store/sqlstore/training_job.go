package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/curio-ai/curio/pkg/register"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.TrainingJobStore = NewTrainingJobStore(provider)
	})
}

// TrainingJobStore 训练任务表操作
type TrainingJobStore struct {
	CommonFields
}

func NewTrainingJobStore(provider SqlProviderAchieve) *TrainingJobStore {
	store := &TrainingJobStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_TRAINING_JOB)
	store.SetAllColumns("id", "mode", "status", "example_count", "remote_job_id", "cursor", "fail_reason", "started_at", "finished_at")
	return store
}

func (s *TrainingJobStore) Create(ctx context.Context, data types.TrainingJob) error {
	if data.ID == "" {
		data.ID = utils.GenUniqIDStr()
	}
	if data.StartedAt == 0 {
		data.StartedAt = time.Now().Unix()
	}
	if data.Status == "" {
		data.Status = types.TRAINING_JOB_QUEUED
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.Mode, data.Status, data.ExampleCount, data.RemoteJobID, data.Cursor, data.FailReason, data.StartedAt, data.FinishedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *TrainingJobStore) UpdateStatus(ctx context.Context, id string, status types.TrainingJobStatus, failReason string, finishedAt int64) error {
	query := sq.Update(s.GetTable()).
		Set("status", status).
		Set("fail_reason", failReason).
		Set("finished_at", finishedAt).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// GetRunning 当前进行中的任务，不存在返回 nil
func (s *TrainingJobStore) GetRunning(ctx context.Context) (*types.TrainingJob, error) {
	return s.getOne(ctx, sq.Eq{"status": types.TRAINING_JOB_RUNNING})
}

func (s *TrainingJobStore) GetLatest(ctx context.Context) (*types.TrainingJob, error) {
	return s.getOne(ctx, nil)
}

func (s *TrainingJobStore) getOne(ctx context.Context, cond interface{}) (*types.TrainingJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		OrderBy("started_at DESC").
		Limit(1)
	if cond != nil {
		query = query.Where(cond)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.TrainingJob
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// HasSucceeded 是否存在成功的训练记录，决定 initial 还是 incremental
func (s *TrainingJobStore) HasSucceeded(ctx context.Context) (bool, error) {
	queryString, args, err := sq.Select("COUNT(*)").From(s.GetTable()).
		Where(sq.Eq{"status": types.TRAINING_JOB_SUCCEEDED}).ToSql()
	if err != nil {
		return false, ErrorSqlBuild(err)
	}

	var total int64
	if err = s.GetReplica(ctx).Get(&total, queryString, args...); err != nil {
		return false, err
	}
	return total > 0, nil
}

func (s *TrainingJobStore) List(ctx context.Context, page, pageSize uint64) ([]*types.TrainingJob, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		OrderBy("started_at DESC")
	if page != 0 && pageSize != 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.TrainingJob
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
