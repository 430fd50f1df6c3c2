package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-chat/internal/service"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
)

// CreditHandler 积分处理器
type CreditHandler struct {
	svc *service.Services
}

// NewCreditHandler 创建积分处理器
func NewCreditHandler(svc *service.Services) *CreditHandler {
	return &CreditHandler{svc: svc}
}

// Balance 当前余额
// @Router /credits [get]
func (h *CreditHandler) Balance(c *gin.Context) {
	amount, err := h.svc.Credit.Balance(c.Request.Context(), getUserID(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"amount": amount})
}

// Logs 分页计费记录
// @Router /credit-logs [get]
func (h *CreditHandler) Logs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLogLimit)))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > maxLogLimit {
		limit = defaultLogLimit
	}

	logs, total, err := h.svc.Credit.ListLogs(c.Request.Context(), getUserID(c), page, limit)
	if err != nil {
		Error(c, err)
		return
	}
	SuccessWithPagination(c, logs, total, page, limit)
}
