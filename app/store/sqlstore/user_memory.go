package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/curio-ai/curio/pkg/register"
	"github.com/curio-ai/curio/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.UserMemoryStore = NewUserMemoryStore(provider)
	})
}

// UserMemoryStore 用户偏好记忆表操作
type UserMemoryStore struct {
	CommonFields
}

func NewUserMemoryStore(provider SqlProviderAchieve) *UserMemoryStore {
	store := &UserMemoryStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_USER_MEMORY)
	store.SetAllColumns("user_id", "key", "value", "updated_at")
	return store
}

func (s *UserMemoryStore) Upsert(ctx context.Context, data types.UserMemory) error {
	data.UpdatedAt = time.Now().Unix()

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.UserID, data.Key, data.Value, data.UpdatedAt).
		Suffix(`ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *UserMemoryStore) ListByUser(ctx context.Context, userID string) ([]*types.UserMemory, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at DESC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.UserMemory
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
