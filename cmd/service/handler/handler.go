package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/curio-ai/curio/app/core"
	"github.com/curio-ai/curio/app/logic/v1/process"
	"github.com/curio-ai/curio/pkg/research"
)

type HttpSrv struct {
	Core    *core.Core
	Engine  *gin.Engine
	Process *process.Process

	// Sources 随服务构建一次，限流器跨请求共享
	Sources []research.Source
}

func NewHttpSrv(core *core.Core, engine *gin.Engine, p *process.Process) *HttpSrv {
	cfg := core.Cfg().Crawler
	return &HttpSrv{
		Core:    core,
		Engine:  engine,
		Process: p,
		Sources: process.LimitSources([]research.Source{
			research.NewWikipedia(),
			research.NewDuckDuckGo(),
		}, cfg.RatePerSource, cfg.RateBurst),
	}
}
