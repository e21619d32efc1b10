package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexora-forum/apps/thread-service/dao/daotest"
	"nexora-forum/apps/thread-service/model"
	"nexora-forum/apps/thread-service/service"
	"nexora-forum/pkg/logger"
	"nexora-forum/pkg/snowflake"
)

const (
	testQuestionID    = int64(1001)
	testQuestionOwner = int64(1)
	testUserAlice     = int64(2)
	testUserBob       = int64(3)
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := snowflake.InitGlobalSnowflake(2); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// newTestRouter 构建测试路由，用X-User-ID头模拟认证中间件注入的身份
func newTestRouter(t *testing.T) (*gin.Engine, *daotest.MemoryStore) {
	t.Helper()

	store := daotest.NewMemoryStore()
	store.SeedQuestion(&model.Question{ID: testQuestionID, AuthorID: testQuestionOwner})

	svc := service.NewService(store, store, store, nil, nil, logger.GetLogger())
	h := NewHTTPHandler(svc, logger.GetLogger())

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		if raw := c.GetHeader("X-User-ID"); raw != "" {
			if userID, err := strconv.ParseInt(raw, 10, 64); err == nil {
				c.Set("userID", userID)
			}
		}
		c.Next()
	})
	h.RegisterRoutes(engine)
	return engine, store
}

// doJSON 发送JSON请求并返回响应
func doJSON(t *testing.T, engine *gin.Engine, method, path string, userID int64, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// createComment 通过HTTP创建评论并返回评论ID
func createComment(t *testing.T, engine *gin.Engine, authorID int64, content string) int64 {
	t.Helper()

	w := doJSON(t, engine, http.MethodPost,
		fmt.Sprintf("/api/v1/questions/%d/comments", testQuestionID),
		authorID, gin.H{"content": content})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Comment struct {
			ID int64 `json:"id"`
		} `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotZero(t, resp.Comment.ID)
	return resp.Comment.ID
}

// TestCreateCommentEndpoint 测试评论创建接口与响应结构
func TestCreateCommentEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	w := doJSON(t, engine, http.MethodPost,
		fmt.Sprintf("/api/v1/questions/%d/comments", testQuestionID),
		testUserAlice, gin.H{"content": "第一条评论"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	comment := resp["comment"].(map[string]interface{})
	assert.Equal(t, "第一条评论", comment["content"])
	assert.Equal(t, model.CommentStatusActive, comment["status"])
}

// TestCreateCommentBadRequest 测试请求体和路径参数校验
func TestCreateCommentBadRequest(t *testing.T) {
	engine, _ := newTestRouter(t)

	// 缺少content字段
	w := doJSON(t, engine, http.MethodPost,
		fmt.Sprintf("/api/v1/questions/%d/comments", testQuestionID),
		testUserAlice, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 非数字的问题ID
	w = doJSON(t, engine, http.MethodPost,
		"/api/v1/questions/abc/comments",
		testUserAlice, gin.H{"content": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 问题不存在
	w = doJSON(t, engine, http.MethodPost,
		"/api/v1/questions/9999/comments",
		testUserAlice, gin.H{"content": "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestEditCommentStatusCodes 测试编辑接口的错误状态码映射
func TestEditCommentStatusCodes(t *testing.T) {
	engine, _ := newTestRouter(t)

	commentID := createComment(t, engine, testUserAlice, "原始内容")

	// 作者编辑成功
	w := doJSON(t, engine, http.MethodPut,
		fmt.Sprintf("/api/v1/comments/%d", commentID),
		testUserAlice, gin.H{"content": "修改后"})
	assert.Equal(t, http.StatusOK, w.Code)

	// 非作者编辑返回403
	w = doJSON(t, engine, http.MethodPut,
		fmt.Sprintf("/api/v1/comments/%d", commentID),
		testUserBob, gin.H{"content": "篡改"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 不存在的评论返回404
	w = doJSON(t, engine, http.MethodPut,
		"/api/v1/comments/424242",
		testUserAlice, gin.H{"content": "无目标"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 删除后编辑返回409
	w = doJSON(t, engine, http.MethodDelete,
		fmt.Sprintf("/api/v1/comments/%d", commentID), testUserAlice, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, engine, http.MethodPut,
		fmt.Sprintf("/api/v1/comments/%d", commentID),
		testUserAlice, gin.H{"content": "复活"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// TestDeleteCommentIdempotentEndpoint 测试重复删除同样返回204
func TestDeleteCommentIdempotentEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	commentID := createComment(t, engine, testUserAlice, "删两次")
	path := fmt.Sprintf("/api/v1/comments/%d", commentID)

	w := doJSON(t, engine, http.MethodDelete, path, testUserAlice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, engine, http.MethodDelete, path, testUserAlice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// 路人删除返回403
	commentID = createComment(t, engine, testUserAlice, "别人的评论")
	w = doJSON(t, engine, http.MethodDelete,
		fmt.Sprintf("/api/v1/comments/%d", commentID), testUserBob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestVoteEndpoint 测试投票接口的三态切换与状态码
func TestVoteEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	commentID := createComment(t, engine, testUserAlice, "投票目标")
	path := fmt.Sprintf("/api/v1/comments/%d/votes", commentID)

	// 首次投票
	w := doJSON(t, engine, http.MethodPost, path, testUserBob, gin.H{"direction": "up"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["score"])
	assert.Equal(t, "up", resp["user_vote"])

	// 同方向取消
	w = doJSON(t, engine, http.MethodPost, path, testUserBob, gin.H{"direction": "up"})
	require.Equal(t, http.StatusOK, w.Code)
	resp = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["score"])
	assert.NotContains(t, resp, "user_vote")

	// 非法方向返回400
	w = doJSON(t, engine, http.MethodPost, path, testUserBob, gin.H{"direction": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 墓碑投票返回404
	w = doJSON(t, engine, http.MethodDelete,
		fmt.Sprintf("/api/v1/comments/%d", commentID), testUserAlice, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, engine, http.MethodPost, path, testUserBob, gin.H{"direction": "up"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestGetThreadEndpoint 测试评论树查询的响应结构
func TestGetThreadEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	topID := createComment(t, engine, testUserAlice, "顶级评论")

	w := doJSON(t, engine, http.MethodPost,
		fmt.Sprintf("/api/v1/comments/%d/replies", topID),
		testUserBob, gin.H{"content": "回复"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, engine, http.MethodGet,
		fmt.Sprintf("/api/v1/questions/%d/comments?sort=oldest", testQuestionID), 0, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool  `json:"success"`
		Total    int64 `json:"total"`
		Comments []struct {
			ID      int64  `json:"id"`
			Content string `json:"content"`
			Replies []struct {
				Content string `json:"content"`
			} `json:"replies"`
		} `json:"comments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Comments, 1)
	assert.Equal(t, topID, resp.Comments[0].ID)
	require.Len(t, resp.Comments[0].Replies, 1)
	assert.Equal(t, "回复", resp.Comments[0].Replies[0].Content)

	// 非法排序返回400
	w = doJSON(t, engine, http.MethodGet,
		fmt.Sprintf("/api/v1/questions/%d/comments?sort=hottest", testQuestionID), 0, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestGetSubtreeEndpoint 测试子树查询
func TestGetSubtreeEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	topID := createComment(t, engine, testUserAlice, "顶级")

	w := doJSON(t, engine, http.MethodGet,
		fmt.Sprintf("/api/v1/comments/%d/subtree", topID), 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, engine, http.MethodGet, "/api/v1/comments/424242/subtree", 0, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestGetThreadStatsEndpoint 测试统计接口
func TestGetThreadStatsEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	commentID := createComment(t, engine, testUserAlice, "评论1")
	createComment(t, engine, testUserBob, "评论2")

	w := doJSON(t, engine, http.MethodDelete,
		fmt.Sprintf("/api/v1/comments/%d", commentID), testUserAlice, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, engine, http.MethodGet,
		fmt.Sprintf("/api/v1/questions/%d/comments/stats", testQuestionID), 0, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total   int64 `json:"total"`
		Active  int64 `json:"active"`
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, int64(1), resp.Active)
	assert.Equal(t, int64(1), resp.Deleted)
}

// TestGetAllowedActionsEndpoint 测试权限查询接口
func TestGetAllowedActionsEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	commentID := createComment(t, engine, testUserAlice, "权限目标")

	w := doJSON(t, engine, http.MethodGet,
		fmt.Sprintf("/api/v1/comments/%d/actions", commentID), testUserAlice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		CanReply  bool `json:"can_reply"`
		CanEdit   bool `json:"can_edit"`
		CanDelete bool `json:"can_delete"`
		CanVote   bool `json:"can_vote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.CanEdit)
	assert.True(t, resp.CanDelete)

	// 路人视角
	w = doJSON(t, engine, http.MethodGet,
		fmt.Sprintf("/api/v1/comments/%d/actions", commentID), testUserBob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.CanEdit)
	assert.True(t, resp.CanVote)
}

// TestLockedQuestionEndpoint 测试锁定问题的写操作返回403
func TestLockedQuestionEndpoint(t *testing.T) {
	engine, store := newTestRouter(t)

	commentID := createComment(t, engine, testUserAlice, "锁定前")
	store.SetLocked(testQuestionID, true)

	w := doJSON(t, engine, http.MethodPost,
		fmt.Sprintf("/api/v1/questions/%d/comments", testQuestionID),
		testUserBob, gin.H{"content": "迟到"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, engine, http.MethodPost,
		fmt.Sprintf("/api/v1/comments/%d/votes", commentID),
		testUserBob, gin.H{"direction": "up"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
