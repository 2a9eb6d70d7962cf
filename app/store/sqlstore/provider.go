package sqlstore

import (
	"embed"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/curio-ai/curio/app/store"
	"github.com/curio-ai/curio/pkg/register"
	"github.com/curio-ai/curio/pkg/sqlstore"
	"github.com/curio-ai/curio/pkg/types"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func init() {
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

var provider = &Provider{
	stores: &Stores{},
}

func GetProvider() *Provider {
	return provider
}

type Provider struct {
	*sqlstore.SqlProvider
	stores *Stores
}

type Stores struct {
	store.KnowledgeStore
	store.TopicStore
	store.UserQueryStore
	store.AnswerStore
	store.ChatSessionStore
	store.ChatMessageStore
	store.UserMemoryStore
	store.TrainingJobStore
}

func (s *Provider) KnowledgeStore() store.KnowledgeStore {
	return s.stores.KnowledgeStore
}

func (s *Provider) TopicStore() store.TopicStore {
	return s.stores.TopicStore
}

func (s *Provider) UserQueryStore() store.UserQueryStore {
	return s.stores.UserQueryStore
}

func (s *Provider) AnswerStore() store.AnswerStore {
	return s.stores.AnswerStore
}

func (s *Provider) ChatSessionStore() store.ChatSessionStore {
	return s.stores.ChatSessionStore
}

func (s *Provider) ChatMessageStore() store.ChatMessageStore {
	return s.stores.ChatMessageStore
}

func (s *Provider) UserMemoryStore() store.UserMemoryStore {
	return s.stores.UserMemoryStore
}

func (s *Provider) TrainingJobStore() store.TrainingJobStore {
	return s.stores.TrainingJobStore
}

type RegisterKey struct{}

func MustSetup(m sqlstore.ConnectConfig, s ...sqlstore.ConnectConfig) func() *Provider {
	provider.SqlProvider = sqlstore.MustSetupProvider(m, s...)

	for _, f := range register.ResolveFuncHandlers[*Provider](RegisterKey{}) {
		f(provider)
	}

	return func() *Provider {
		return provider
	}
}

// Install 初始化所有数据表
func (p *Provider) Install() error {
	if err := p.ensureMigrationTable(); err != nil {
		return err
	}

	files, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		executed, err := p.isFileExecuted(file.Name())
		if err != nil {
			return err
		}
		if executed {
			continue
		}

		raw, err := migrationFiles.ReadFile("migrations/" + file.Name())
		if err != nil {
			return err
		}
		if _, err = p.GetMaster().Exec(string(raw)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file.Name(), err)
		}
		if err = p.markFileExecuted(file.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) ensureMigrationTable() error {
	createTableSQL := `
CREATE TABLE IF NOT EXISTS ` + types.TABLE_PREFIX + `schema_migrations (
    filename VARCHAR(255) PRIMARY KEY,
    executed_at BIGINT NOT NULL
);`
	_, err := p.GetMaster().Exec(createTableSQL)
	return err
}

func (p *Provider) isFileExecuted(filename string) (bool, error) {
	var count int
	err := p.GetMaster().Get(&count, "SELECT COUNT(*) FROM "+types.TABLE_PREFIX+"schema_migrations WHERE filename = $1", filename)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *Provider) markFileExecuted(filename string) error {
	_, err := p.GetMaster().Exec("INSERT INTO "+types.TABLE_PREFIX+"schema_migrations (filename, executed_at) VALUES ($1, $2)", filename, time.Now().Unix())
	return err
}
