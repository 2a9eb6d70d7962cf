package service

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/curio-ai/curio/app/core"
	"github.com/curio-ai/curio/app/logic/v1/process"
	"github.com/curio-ai/curio/app/response"
	"github.com/curio-ai/curio/cmd/service/handler"
	"github.com/curio-ai/curio/cmd/service/middleware"
	"github.com/curio-ai/curio/pkg/metrics"
)

func serve(core *core.Core, p *process.Process) {
	httpSrv := handler.NewHttpSrv(core, core.HttpEngine(), p)
	setupHttpRouter(httpSrv)

	core.HttpEngine().Run(core.Cfg().Addr)
}

func setupHttpRouter(s *handler.HttpSrv) {
	s.Engine.GET("/metrics", metrics.DefaultExportHandler())

	s.Engine.Use(middleware.I18n(), response.NewResponse())
	s.Engine.Use(middleware.Cors)
	s.Engine.Use(func(c *gin.Context) {
		c.Next()
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			s.Core.Metrics().ApiErrorInc(c.Request.Method, c.FullPath(), status)
		}
	})

	apiV1 := s.Engine.Group("/api/v1")
	{
		apiV1.POST("/query", middleware.UseLimit("query", 5, 10), s.Query)
		apiV1.POST("/sessions", s.CreateSession)

		apiV1.GET("/knowledge", s.ListKnowledge)

		answer := apiV1.Group("/answers")
		{
			answer.PUT("", s.UpsertAnswer)
			answer.GET("", s.ListAnswers)
			answer.DELETE("/:id", s.DeleteAnswer)
		}

		ops := apiV1.Group("/ops")
		{
			ops.GET("/crawler/stats", s.CrawlerStats)
			ops.GET("/crawler/topics", s.ListTopics)
			ops.POST("/crawler/topics", s.EnqueueTopic)
			ops.POST("/crawler/pause", s.PauseCrawler)
			ops.POST("/crawler/resume", s.ResumeCrawler)
			ops.GET("/trainer/status", s.TrainerStatus)
			ops.GET("/trainer/jobs", s.ListTrainingJobs)
			ops.POST("/trainer/enable", s.EnableTrainer)
			ops.POST("/trainer/disable", s.DisableTrainer)
			ops.GET("/ai/status", s.AIStatus)
		}
	}
}
