package converter

import (
	"time"

	"nexora-forum/apps/thread-service/model"
	"nexora-forum/apps/thread-service/service"
)

// Converter 模型到传输对象的转换器
type Converter struct{}

// NewConverter 创建转换器实例
func NewConverter() *Converter {
	return &Converter{}
}

// CommentView 评论树节点的传输对象
type CommentView struct {
	ID         int64          `json:"id"`
	QuestionID int64          `json:"question_id"`
	ParentID   int64          `json:"parent_id"`
	AuthorID   int64          `json:"author_id"`
	Content    string         `json:"content"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	EditedAt   *time.Time     `json:"edited_at,omitempty"`
	Upvotes    int64          `json:"upvotes"`
	Downvotes  int64          `json:"downvotes"`
	Score      int64          `json:"score"`
	UserVote   string         `json:"user_vote,omitempty"`
	Replies    []*CommentView `json:"replies"`
}

// CommentResponse 单条评论响应
type CommentResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Comment *CommentView `json:"comment,omitempty"`
}

// ThreadListResponse 评论树列表响应
type ThreadListResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Comments []*CommentView `json:"comments"`
	Total    int64          `json:"total"`
	Page     int32          `json:"page"`
	PageSize int32          `json:"page_size"`
}

// VoteResponse 投票响应
type VoteResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	CommentID int64  `json:"comment_id"`
	Upvotes   int64  `json:"upvotes"`
	Downvotes int64  `json:"downvotes"`
	Score     int64  `json:"score"`
	UserVote  string `json:"user_vote,omitempty"`
}

// StatsResponse 统计响应
type StatsResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	QuestionID int64  `json:"question_id"`
	Total      int64  `json:"total"`
	Active     int64  `json:"active"`
	Deleted    int64  `json:"deleted"`
}

// ActionsResponse 权限查询响应
type ActionsResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	CommentID int64  `json:"comment_id"`
	CanReply  bool   `json:"can_reply"`
	CanEdit   bool   `json:"can_edit"`
	CanDelete bool   `json:"can_delete"`
	CanVote   bool   `json:"can_vote"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// BuildCommentView 将评论转换为传输对象
func (cv *Converter) BuildCommentView(comment *model.Comment, tally model.VoteTally, userVote string) *CommentView {
	if comment == nil {
		return nil
	}
	return &CommentView{
		ID:         comment.ID,
		QuestionID: comment.QuestionID,
		ParentID:   comment.ParentID,
		AuthorID:   comment.AuthorID,
		Content:    comment.Content,
		Status:     comment.Status,
		CreatedAt:  comment.CreatedAt,
		EditedAt:   comment.EditedAt,
		Upvotes:    tally.Upvotes,
		Downvotes:  tally.Downvotes,
		Score:      tally.Score(),
		UserVote:   userVote,
		Replies:    make([]*CommentView, 0),
	}
}

// BuildNodeView 将树节点递归转换为传输对象
func (cv *Converter) BuildNodeView(node *model.ThreadNode) *CommentView {
	if node == nil {
		return nil
	}
	view := cv.BuildCommentView(node.Comment, node.Tally, node.UserVote)
	for _, reply := range node.Replies {
		view.Replies = append(view.Replies, cv.BuildNodeView(reply))
	}
	return view
}

// BuildCommentResponse 构建单条评论响应
func (cv *Converter) BuildCommentResponse(comment *model.Comment) *CommentResponse {
	return &CommentResponse{
		Success: true,
		Message: "ok",
		Comment: cv.BuildCommentView(comment, model.VoteTally{}, ""),
	}
}

// BuildSubtreeResponse 构建子树响应
func (cv *Converter) BuildSubtreeResponse(node *model.ThreadNode) *CommentResponse {
	return &CommentResponse{
		Success: true,
		Message: "ok",
		Comment: cv.BuildNodeView(node),
	}
}

// BuildThreadListResponse 构建评论树列表响应
func (cv *Converter) BuildThreadListResponse(page *service.ThreadPage) *ThreadListResponse {
	views := make([]*CommentView, 0, len(page.Nodes))
	for _, node := range page.Nodes {
		views = append(views, cv.BuildNodeView(node))
	}
	return &ThreadListResponse{
		Success:  true,
		Message:  "ok",
		Comments: views,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
}

// BuildVoteResponse 构建投票响应
func (cv *Converter) BuildVoteResponse(commentID int64, result *service.VoteResult) *VoteResponse {
	return &VoteResponse{
		Success:   true,
		Message:   "ok",
		CommentID: commentID,
		Upvotes:   result.Tally.Upvotes,
		Downvotes: result.Tally.Downvotes,
		Score:     result.Tally.Score(),
		UserVote:  result.UserVote,
	}
}

// BuildStatsResponse 构建统计响应
func (cv *Converter) BuildStatsResponse(stats *model.ThreadStats) *StatsResponse {
	return &StatsResponse{
		Success:    true,
		Message:    "ok",
		QuestionID: stats.QuestionID,
		Total:      stats.Total,
		Active:     stats.Active,
		Deleted:    stats.Deleted,
	}
}

// BuildActionsResponse 构建权限查询响应
func (cv *Converter) BuildActionsResponse(commentID int64, actions *model.ActionSet) *ActionsResponse {
	return &ActionsResponse{
		Success:   true,
		Message:   "ok",
		CommentID: commentID,
		CanReply:  actions.CanReply,
		CanEdit:   actions.CanEdit,
		CanDelete: actions.CanDelete,
		CanVote:   actions.CanVote,
	}
}

// BuildErrorResponse 构建错误响应
func (cv *Converter) BuildErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Message: message,
	}
}
