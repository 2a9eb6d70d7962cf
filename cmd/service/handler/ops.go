package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/curio-ai/curio/app/response"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"
)

type CrawlerStatsResponse struct {
	State    string                      `json:"state"`
	Counters map[string]int64            `json:"counters"`
	Topics   map[types.TopicStatus]int64 `json:"topics"`
}

// CrawlerStats 爬虫运行状态，计数器 + 各状态主题数
func (s *HttpSrv) CrawlerStats(c *gin.Context) {
	counts, err := s.Core.Store().TopicStore().CountByStatus(c)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, CrawlerStatsResponse{
		State:    s.Process.Crawler().State(),
		Counters: s.Process.Crawler().Stats(),
		Topics:   counts,
	})
}

func (s *HttpSrv) PauseCrawler(c *gin.Context) {
	s.Process.Crawler().Pause()
	response.APISuccess(c, gin.H{"state": s.Process.Crawler().State()})
}

func (s *HttpSrv) ResumeCrawler(c *gin.Context) {
	s.Process.Crawler().Resume()
	response.APISuccess(c, gin.H{"state": s.Process.Crawler().State()})
}

type ListTopicsRequest struct {
	Status   string `json:"status" form:"status"`
	Page     uint64 `json:"page" form:"page"`
	PageSize uint64 `json:"pagesize" form:"pagesize"`
}

func (s *HttpSrv) ListTopics(c *gin.Context) {
	var (
		err error
		req ListTopicsRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	list, err := s.Core.Store().TopicStore().List(c, types.TopicStatus(req.Status), req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, list)
}

type EnqueueTopicRequest struct {
	Name     string `json:"name" binding:"required"`
	Priority int    `json:"priority"`
}

// EnqueueTopic 手动插队一个学习主题
func (s *HttpSrv) EnqueueTopic(c *gin.Context) {
	var (
		err error
		req EnqueueTopicRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	created, err := s.Core.Store().TopicStore().CreateIfAbsent(c, types.Topic{
		Name:     utils.NormalizeText(req.Name),
		Source:   types.TOPIC_SOURCE_MANUAL,
		Priority: req.Priority,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, gin.H{"created": created})
}

type ListTrainingJobsRequest struct {
	Page     uint64 `json:"page" form:"page"`
	PageSize uint64 `json:"pagesize" form:"pagesize"`
}

func (s *HttpSrv) ListTrainingJobs(c *gin.Context) {
	var (
		err error
		req ListTrainingJobsRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	list, err := s.Core.Store().TrainingJobStore().List(c, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, list)
}

type TrainerStatusResponse struct {
	Enabled   bool               `json:"enabled"`
	LatestJob *types.TrainingJob `json:"latest_job,omitempty"`
}

func (s *HttpSrv) TrainerStatus(c *gin.Context) {
	latest, err := s.Core.Store().TrainingJobStore().GetLatest(c)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, TrainerStatusResponse{
		Enabled:   s.Process.Trainer().Enabled(),
		LatestJob: latest,
	})
}

func (s *HttpSrv) EnableTrainer(c *gin.Context) {
	s.Process.Trainer().Enable()
	response.APISuccess(c, nil)
}

func (s *HttpSrv) DisableTrainer(c *gin.Context) {
	s.Process.Trainer().Disable()
	response.APISuccess(c, nil)
}

func (s *HttpSrv) AIStatus(c *gin.Context) {
	response.APISuccess(c, s.Core.Srv().AIStatus())
}
