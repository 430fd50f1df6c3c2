package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-chat/internal/middleware"
	"github.com/ashwinyue/next-chat/internal/service"
	"github.com/ashwinyue/next-chat/internal/service/stream"
	"github.com/ashwinyue/next-chat/internal/service/types"
	"github.com/ashwinyue/next-chat/internal/service/validator"
)

// ChatHandler 聊天处理器
type ChatHandler struct {
	svc *service.Services
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(svc *service.Services) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// getUserID 获取用户ID，RequireAuth 之后总是存在
func getUserID(c *gin.Context) string {
	id, _ := middleware.GetUserID(c)
	return id
}

// setSSEHeaders 设置 SSE 响应头
func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

// chatIDParam 读取并校验 chatId 查询参数，失败时已写入响应
func chatIDParam(c *gin.Context) (string, bool) {
	chatID := c.Query("chatId")
	if err := validator.ValidatePubID("chatId", chatID); err != nil {
		Error(c, err)
		return "", false
	}
	return chatID, true
}

func writeFrame(c *gin.Context, f stream.Frame) {
	c.SSEvent(f.Event, f.Data)
	c.Writer.Flush()
}

// Stream 发起一轮生成并以 SSE 返回
// @Router /chat [post]
func (h *ChatHandler) Stream(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	g, err := h.svc.Orchestrator.Start(c.Request.Context(), getUserID(c), &req)
	if err != nil {
		Error(c, err)
		return
	}

	setSSEHeaders(c)
	c.Writer.Header().Set("X-Stream-Key", g.StreamKey)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			// 客户端断开，生成在后台继续
			g.Detach()
			return
		case f, ok := <-g.Events():
			if !ok {
				return
			}
			writeFrame(c, f)
		}
	}
}

// Get 获取会话及消息
// @Router /chat [get]
func (h *ChatHandler) Get(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	result, err := h.svc.Chat.GetChat(c.Request.Context(), getUserID(c), chatID)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}

// Delete 删除会话
// @Router /chat [delete]
func (h *ChatHandler) Delete(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	if err := h.svc.Chat.DeleteChat(c.Request.Context(), getUserID(c), chatID); err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"success": true})
}

// List 分页列出会话
// @Router /chats [get]
func (h *ChatHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	result, err := h.svc.Chat.ListChats(c.Request.Context(), getUserID(c), page, c.Query("search"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}

// Resume 重新订阅会话最近一次生成的流
// @Router /chat/resume [get]
func (h *ChatHandler) Resume(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	frames, err := h.svc.Chat.Resume(c.Request.Context(), getUserID(c), chatID)
	if err != nil {
		Error(c, err)
		return
	}

	setSSEHeaders(c)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for f := range frames {
		writeFrame(c, f)
	}
}

// Branch 从已有会话派生新会话
// @Router /chat/branch [post]
func (h *ChatHandler) Branch(c *gin.Context) {
	var req types.BranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	chat, err := h.svc.Branch.Branch(c.Request.Context(), getUserID(c), &req)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"chat": chat})
}
