package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/curio-ai/curio/pkg/register"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.UserQueryStore = NewUserQueryStore(provider)
	})
}

// UserQueryStore 用户提问留痕
type UserQueryStore struct {
	CommonFields
}

func NewUserQueryStore(provider SqlProviderAchieve) *UserQueryStore {
	store := &UserQueryStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_USER_QUERY)
	store.SetAllColumns("id", "query_text", "normalized_text", "resolved", "created_at")
	return store
}

func (s *UserQueryStore) Create(ctx context.Context, data types.UserQueryRecord) error {
	if data.ID == "" {
		data.ID = utils.GenUniqIDStr()
	}
	if data.NormalizedText == "" {
		data.NormalizedText = utils.NormalizeText(data.QueryText)
	}
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.QueryText, data.NormalizedText, data.Resolved, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// ListUnresolved 未解决的提问，话题发现会从这里取样
func (s *UserQueryStore) ListUnresolved(ctx context.Context, limit uint64) ([]*types.UserQueryRecord, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"resolved": false}).
		OrderBy("created_at DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.UserQueryRecord
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *UserQueryStore) MarkResolved(ctx context.Context, normalized string) error {
	query := sq.Update(s.GetTable()).
		Set("resolved", true).
		Where(sq.Eq{"normalized_text": normalized})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
