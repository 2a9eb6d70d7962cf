package core

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/curio-ai/curio/app/core/srv"
	"github.com/curio-ai/curio/app/store/sqlstore"
	"github.com/curio-ai/curio/pkg/cache"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"
)

type Core struct {
	cfg CoreConfig
	srv *srv.Srv

	stores     func() *sqlstore.Provider
	cache      types.Cache
	httpClient *http.Client
	httpEngine *gin.Engine

	metrics *Metrics
}

func MustSetupCore(cfg CoreConfig) *Core {
	{
		var writer io.Writer = os.Stdout
		if cfg.Log.Path != "" {
			writer = &lumberjack.Logger{
				Filename:   cfg.Log.Path,
				MaxSize:    500, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
		}
		l := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: cfg.Log.SlogLevel(),
		}))
		slog.SetDefault(l)
	}

	utils.SetupIDWorker(cfg.ClusterID)

	core := &Core{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Second * 10},
		metrics:    NewMetrics("curio", "core"),
		httpEngine: gin.New(),
	}

	setupSqlStore(core)
	setupCache(core)

	core.srv = srv.SetupSrvs(
		srv.ApplyAI(cfg.AI),
	)

	return core
}

func setupSqlStore(core *Core) {
	core.stores = sqlstore.MustSetup(core.cfg.Postgres)
	// 执行数据库表初始化
	if err := core.stores().Install(); err != nil {
		panic(err)
	}
	slog.Info("sqlstore setup done")
}

// redis 未配置时退到进程内缓存，不影响单机部署
func setupCache(core *Core) {
	if core.cfg.Redis.Addr == "" {
		core.cache = cache.NewMemory()
		return
	}
	core.cache = cache.NewRedis(cache.Config{
		Addr:     core.cfg.Redis.Addr,
		Password: core.cfg.Redis.Password,
		DB:       core.cfg.Redis.DB,
		Prefix:   core.cfg.Redis.Prefix,
	})
}

func (s *Core) Cfg() CoreConfig {
	return s.cfg
}

func (s *Core) HttpEngine() *gin.Engine {
	return s.httpEngine
}

func (s *Core) HttpClient() *http.Client {
	return s.httpClient
}

func (s *Core) Metrics() *Metrics {
	return s.metrics
}

func (s *Core) Store() *sqlstore.Provider {
	return s.stores()
}

func (s *Core) Cache() types.Cache {
	return s.cache
}

func (s *Core) Srv() *srv.Srv {
	return s.srv
}
