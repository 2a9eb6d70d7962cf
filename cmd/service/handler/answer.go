package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/curio-ai/curio/app/logic/v1"
	"github.com/curio-ai/curio/app/response"
	"github.com/curio-ai/curio/pkg/utils"
)

type UpsertAnswerRequest struct {
	Agent    string `json:"agent"`
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// UpsertAnswer 人工录入权威问答
func (s *HttpSrv) UpsertAnswer(c *gin.Context) {
	var (
		err error
		req UpsertAnswerRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Agent == "" {
		req.Agent = s.Core.Cfg().Query.Agent
	}

	if err = v1.NewAnswerLogic(c, s.Core).Upsert(req.Agent, req.Question, req.Answer); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type ListAnswersRequest struct {
	Agent    string `json:"agent" form:"agent"`
	Page     uint64 `json:"page" form:"page"`
	PageSize uint64 `json:"pagesize" form:"pagesize"`
}

func (s *HttpSrv) ListAnswers(c *gin.Context) {
	var (
		err error
		req ListAnswersRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Agent == "" {
		req.Agent = s.Core.Cfg().Query.Agent
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	list, err := v1.NewAnswerLogic(c, s.Core).List(req.Agent, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, list)
}

func (s *HttpSrv) DeleteAnswer(c *gin.Context) {
	agent := c.Query("agent")
	if agent == "" {
		agent = s.Core.Cfg().Query.Agent
	}
	id, _ := c.Params.Get("id")

	if err := v1.NewAnswerLogic(c, s.Core).Delete(agent, id); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}
