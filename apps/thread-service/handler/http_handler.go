package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nexora-forum/apps/thread-service/converter"
	"nexora-forum/apps/thread-service/model"
	"nexora-forum/apps/thread-service/service"
	"nexora-forum/pkg/httpx"
	"nexora-forum/pkg/logger"
)

// HTTPHandler HTTP处理器
type HTTPHandler struct {
	svc       *service.Service
	converter *converter.Converter
	logger    logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(svc *service.Service, logger logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		converter: converter.NewConverter(),
		logger:    logger,
	}
}

// RegisterRoutes 注册路由
func (h *HTTPHandler) RegisterRoutes(engine *gin.Engine) {
	api := engine.Group("/api/v1")
	{
		// 评论树查询
		api.GET("/questions/:questionID/comments", h.GetThread)
		api.GET("/questions/:questionID/comments/stats", h.GetThreadStats)
		api.GET("/comments/:commentID/subtree", h.GetSubtree)
		api.GET("/comments/:commentID/actions", h.GetAllowedActions)

		// 评论变更
		api.POST("/questions/:questionID/comments", h.CreateComment)
		api.POST("/comments/:commentID/replies", h.CreateReply)
		api.PUT("/comments/:commentID", h.EditComment)
		api.DELETE("/comments/:commentID", h.DeleteComment)

		// 投票
		api.POST("/comments/:commentID/votes", h.CastVote)
	}
}

// contentRequest 携带评论内容的请求体
type contentRequest struct {
	Content string `json:"content" binding:"required"`
}

// voteRequest 投票请求体
type voteRequest struct {
	Direction string `json:"direction" binding:"required"`
}

// CreateComment 创建顶级评论
func (h *HTTPHandler) CreateComment(c *gin.Context) {
	ctx := c.Request.Context()

	questionID, ok := h.pathID(c, "questionID")
	if !ok {
		return
	}

	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error(ctx, "Invalid create comment request", logger.F("error", err.Error()))
		h.writeError(c, model.ErrValidation, "Invalid request format")
		return
	}

	params := &model.CreateCommentParams{
		QuestionID: questionID,
		AuthorID:   h.actorID(c),
		Content:    req.Content,
	}

	comment, err := h.svc.CreateComment(ctx, params)
	if err != nil {
		h.logger.Error(ctx, "Create comment failed", logger.F("error", err.Error()))
		h.writeError(c, err, err.Error())
		return
	}

	httpx.WriteObject(c, http.StatusOK, h.converter.BuildCommentResponse(comment))
}

// CreateReply 创建回复
func (h *HTTPHandler) CreateReply(c *gin.Context) {
	ctx := c.Request.Context()

	commentID, ok := h.pathID(c, "commentID")
	if !ok {
		return
	}

	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error(ctx, "Invalid create reply request", logger.F("error", err.Error()))
		h.writeError(c, model.ErrValidation, "Invalid request format")
		return
	}

	params := &model.CreateReplyParams{
		ParentID: commentID,
		AuthorID: h.actorID(c),
		Content:  req.Content,
	}

	comment, err := h.svc.CreateReply(ctx, params)
	if err != nil {
		h.logger.Error(ctx, "Create reply failed", logger.F("error", err.Error()))
		h.writeError(c, err, err.Error())
		return
	}

	httpx.WriteObject(c, http.StatusOK, h.converter.BuildCommentResponse(comment))
}

// EditComment 编辑评论
func (h *HTTPHandler) EditComment(c *gin.Context) {
	ctx := c.Request.Context()

	commentID, ok := h.pathID(c, "commentID")
	if !ok {
		return
	}

	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error(ctx, "Invalid edit comment request", logger.F("error", err.Error()))
		h.writeError(c, model.ErrValidation, "Invalid request format")
		return
	}

	params := &model.EditCommentParams{
		CommentID: commentID,
		ActorID:   h.actorID(c),
		Content:   req.Content,
	}

	comment, err := h.svc.EditComment(ctx, params)
	if err != nil {
		h.logger.Error(ctx, "Edit comment failed", logger.F("error", err.Error()))
		h.writeError(c, err, err.Error())
		return
	}

	httpx.WriteObject(c, http.StatusOK, h.converter.BuildCommentResponse(comment))
}

// DeleteComment 删除评论，幂等，重复删除同样返回204
func (h *HTTPHandler) DeleteComment(c *gin.Context) {
	ctx := c.Request.Context()

	commentID, ok := h.pathID(c, "commentID")
	if !ok {
		return
	}

	params := &model.DeleteCommentParams{
		CommentID: commentID,
		ActorID:   h.actorID(c),
	}

	if err := h.svc.DeleteComment(ctx, params); err != nil {
		h.logger.Error(ctx, "Delete comment failed", logger.F("error", err.Error()))
		h.writeError(c, err, err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// CastVote 三态切换投票
func (h *HTTPHandler) CastVote(c *gin.Context) {
	ctx := c.Request.Context()

	commentID, ok := h.pathID(c, "commentID")
	if !ok {
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error(ctx, "Invalid vote request", logger.F("error", err.Error()))
		h.writeError(c, model.ErrValidation, "Invalid request format")
		return
	}

	params := &model.CastVoteParams{
		CommentID: commentID,
		UserID:    h.actorID(c),
		Direction: req.Direction,
	}

	result, err := h.svc.CastVote(ctx, params)
	if err != nil {
		h.logger.Error(ctx, "Cast vote failed", logger.F("error", err.Error()))
		h.writeError(c, err, err.Error())
		return
	}

	httpx.WriteObject(c, http.StatusOK, h.converter.BuildVoteResponse(commentID, result))
}

// GetThread 获取问题下的评论树
func (h *HTTPHandler) GetThread(c *gin.Context) {
	ctx := c.Request.Context()

	questionID, ok := h.pathID(c, "questionID")
	if !ok {
		return
	}

	params := &model.ListThreadParams{
		QuestionID: questionID,
		ViewerID:   h.actorID(c),
		Sort:       c.Query("sort"),
		Page:       h.queryInt32(c, "page", model.DefaultPage),
		PageSize:   h.queryInt32(c, "page_size", model.DefaultPageSize),
	}

	page, err := h.svc.GetThread(ctx, params)
	if err != nil {
		h.logger.Error(ctx, "Get thread failed", logger.F("error", err.Error()))
		h.writeError(c, err, err.Error())
		return
	}

	httpx.WriteObject(c, http.StatusOK, h.converter.BuildThreadListResponse(page))
}

// GetSubtree 获取评论子树
func (h *HTTPHandler) GetSubtree(c *gin.Context) {
	ctx := c.Request.Context()

	commentID, ok := h.pathID(c, "commentID")
	if !ok {
		return
	}

	node, err := h.svc.GetSubtree(ctx, commentID, h.actorID(c))
	if err != nil {
		h.logger.Error(ctx, "Get subtree failed", logger.F("error", err.Error()))
		h.writeError(c, err, err.Error())
		return
	}

	httpx.WriteObject(c, http.StatusOK, h.converter.BuildSubtreeResponse(node))
}

// GetAllowedActions 查询操作者对某条评论可执行的操作
func (h *HTTPHandler) GetAllowedActions(c *gin.Context) {
	ctx := c.Request.Context()

	commentID, ok := h.pathID(c, "commentID")
	if !ok {
		return
	}

	actions, err := h.svc.GetAllowedActions(ctx, h.actorID(c), commentID)
	if err != nil {
		h.logger.Error(ctx, "Get allowed actions failed", logger.F("error", err.Error()))
		h.writeError(c, err, err.Error())
		return
	}

	httpx.WriteObject(c, http.StatusOK, h.converter.BuildActionsResponse(commentID, actions))
}

// GetThreadStats 获取评论统计
func (h *HTTPHandler) GetThreadStats(c *gin.Context) {
	ctx := c.Request.Context()

	questionID, ok := h.pathID(c, "questionID")
	if !ok {
		return
	}

	stats, err := h.svc.GetThreadStats(ctx, questionID)
	if err != nil {
		h.logger.Error(ctx, "Get thread stats failed", logger.F("error", err.Error()))
		h.writeError(c, err, err.Error())
		return
	}

	httpx.WriteObject(c, http.StatusOK, h.converter.BuildStatsResponse(stats))
}

// 辅助方法

// actorID 从认证中间件取操作者身份
func (h *HTTPHandler) actorID(c *gin.Context) int64 {
	if v, exists := c.Get("userID"); exists {
		if userID, ok := v.(int64); ok {
			return userID
		}
	}
	return 0
}

// pathID 解析路径中的ID参数
func (h *HTTPHandler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, model.ErrValidation, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt32 解析查询参数中的整数
func (h *HTTPHandler) queryInt32(c *gin.Context, name string, defaultValue int32) int32 {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v <= 0 {
		return defaultValue
	}
	return int32(v)
}

// writeError 按错误分类写出HTTP状态码
func (h *HTTPHandler) writeError(c *gin.Context, err error, message string) {
	httpx.WriteObject(c, h.statusOf(err), h.converter.BuildErrorResponse(message))
}

// statusOf 错误分类到状态码的映射
func (h *HTTPHandler) statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
