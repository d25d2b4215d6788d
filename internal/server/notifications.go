package server

import (
	"net/http"
	"strings"

	notificationdomain "github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
	"github.com/gin-gonic/gin"
)

type listQuery struct {
	Limit     int    `form:"limit"`
	DepositID string `form:"deposit_id"`
}

func (s *Server) ListNotifications(c *gin.Context) {
	var query listQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	resp, err := s.notificationSvc.List(c.Request.Context(), notificationdomain.ListFilter{
		DepositID: strings.TrimSpace(query.DepositID),
		Limit:     query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		resp = []notificationdomain.Record{}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
