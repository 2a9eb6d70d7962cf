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
		provider.stores.ChatSessionStore = NewChatSessionStore(provider)
	})
}

// ChatSessionStore 会话表操作
type ChatSessionStore struct {
	CommonFields
}

func NewChatSessionStore(provider SqlProviderAchieve) *ChatSessionStore {
	store := &ChatSessionStore{}
	store.SetProvider(provider)
	store.SetTable(types.TABLE_CHAT_SESSION)
	store.SetAllColumns("id", "user_id", "title", "created_at", "updated_at")
	return store
}

func (s *ChatSessionStore) Create(ctx context.Context, data types.ChatSession) error {
	if data.ID == "" {
		data.ID = utils.GenUniqIDStr()
	}
	now := time.Now().Unix()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = now
	}

	query := sq.Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.UserID, data.Title, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ChatSessionStore) Get(ctx context.Context, id string) (*types.ChatSession, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ChatSession
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListUpdatedSince 增量训练扫描游标，取 updated_at 晚于水位线的会话
func (s *ChatSessionStore) ListUpdatedSince(ctx context.Context, updatedAfter int64, limit uint64) ([]*types.ChatSession, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Gt{"updated_at": updatedAfter}).
		OrderBy("updated_at ASC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []*types.ChatSession
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ChatSessionStore) Touch(ctx context.Context, id string, updatedAt int64) error {
	if updatedAt == 0 {
		updatedAt = time.Now().Unix()
	}
	query := sq.Update(s.GetTable()).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
