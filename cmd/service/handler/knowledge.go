package handler

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/curio-ai/curio/app/logic/v1"
	"github.com/curio-ai/curio/app/response"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"
)

type ListKnowledgeRequest struct {
	Topic string `json:"topic" form:"topic"`
	Limit uint64 `json:"limit" form:"limit"`
}

type ListKnowledgeResponse struct {
	Total int64                  `json:"total"`
	List  []*types.KnowledgeItem `json:"list"`
}

func (s *HttpSrv) ListKnowledge(c *gin.Context) {
	var (
		err error
		req ListKnowledgeRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}
	if req.Limit == 0 || req.Limit > 100 {
		req.Limit = 20
	}

	logic := v1.NewKnowledgeLogic(c, s.Core)

	var list []*types.KnowledgeItem
	if req.Topic != "" {
		list, err = logic.ListByTopic(req.Topic, req.Limit)
	} else {
		list, err = logic.ListRecent(req.Limit)
	}
	if err != nil {
		response.APIError(c, err)
		return
	}

	total, err := logic.Total()
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, ListKnowledgeResponse{
		Total: total,
		List:  list,
	})
}
