package server

import (
	"net/http"
	"strings"

	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	"github.com/gin-gonic/gin"
)

type createDepositRequest struct {
	CustomerID      string            `json:"customer_id"`
	PaymentMethodID string            `json:"payment_method_id"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata"`
}

type captureDepositRequest struct {
	Amount *int64 `json:"amount"`
}

type metadataRequest struct {
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) CreateDeposit(c *gin.Context) {
	var req createDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.depositSvc.InitializeDeposit(c.Request.Context(), depositdomain.InitializeRequest{
		CustomerID:      strings.TrimSpace(req.CustomerID),
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
		HoldAmount:      req.Amount,
		Currency:        strings.TrimSpace(req.Currency),
		Metadata:        req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListDeposits(c *gin.Context) {
	resp, err := s.depositSvc.ListDeposits(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		resp = []depositdomain.Deposit{}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDeposit(c *gin.Context) {
	resp, err := s.depositSvc.GetDeposit(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CaptureDeposit(c *gin.Context) {
	var req captureDepositRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.depositSvc.CaptureDeposit(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReleaseDeposit(c *gin.Context) {
	resp, err := s.depositSvc.ReleaseDeposit(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReauthorizeDeposit(c *gin.Context) {
	var req metadataRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.depositSvc.ReauthorizeDeposit(c.Request.Context(), c.Param("id"), req.Metadata)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveDeposit(c *gin.Context) {
	var req metadataRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.depositSvc.ResolveDepositRequiresAction(c.Request.Context(), c.Param("id"), req.Metadata)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, out any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(out)
}
