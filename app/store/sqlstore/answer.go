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
		provider.stores.AnswerStore = NewAnswerStore(provider)
	})
}

// AnswerStore 权威问答表操作
type AnswerStore struct {
	CommonFields
}

func NewAnswerStore(provider SqlProviderAchieve) *AnswerStore {
	store := &AnswerStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_ANSWER)
	store.SetAllColumns("id", "agent", "question", "normalized_question", "answer", "created_at", "updated_at")
	return store
}

// Upsert 同一 agent 下同一归一化问题只保留最新答案
func (s *AnswerStore) Upsert(ctx context.Context, data types.AnswerEntry) error {
	if data.ID == "" {
		data.ID = utils.GenUniqIDStr()
	}
	if data.NormalizedQuestion == "" {
		data.NormalizedQuestion = utils.NormalizeText(data.Question)
	}
	now := time.Now().Unix()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	data.UpdatedAt = now

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.Agent, data.Question, data.NormalizedQuestion, data.Answer, data.CreatedAt, data.UpdatedAt).
		Suffix(`ON CONFLICT (agent, normalized_question) DO UPDATE SET answer = EXCLUDED.answer, question = EXCLUDED.question, updated_at = EXCLUDED.updated_at`)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *AnswerStore) GetByNormalized(ctx context.Context, agent, normalized string) (*types.AnswerEntry, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"agent": agent, "normalized_question": normalized})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.AnswerEntry
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (s *AnswerStore) ListByAgent(ctx context.Context, agent string, page, pageSize uint64) ([]*types.AnswerEntry, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"agent": agent}).
		OrderBy("updated_at DESC")
	if page != 0 && pageSize != 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.AnswerEntry
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *AnswerStore) Delete(ctx context.Context, agent, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"agent": agent, "id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
