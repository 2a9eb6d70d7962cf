package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/curio-ai/curio/app/logic/v1"
	"github.com/curio-ai/curio/app/response"
	"github.com/curio-ai/curio/pkg/errors"
	"github.com/curio-ai/curio/pkg/i18n"
	"github.com/curio-ai/curio/pkg/utils"
)

func (s *HttpSrv) Query(c *gin.Context) {
	var (
		err error
		req v1.QueryRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	timer := s.Core.Metrics().ApiResponseTimer("query")
	defer timer.ObserveDuration()

	localizer := response.InjectResponseLocalizer(c)
	result, err := v1.NewQueryLogic(c, s.Core, localizer, s.Sources).Query(req)
	if err != nil {
		response.APIError(c, errors.New("api.Query", i18n.ERROR_INTERNAL, err))
		return
	}
	response.APISuccess(c, result)
}

type CreateSessionRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

func (s *HttpSrv) CreateSession(c *gin.Context) {
	var (
		err error
		req CreateSessionRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	session, err := v1.NewChatLogic(c, s.Core).CreateSession(req.UserID, req.Title)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, session)
}
