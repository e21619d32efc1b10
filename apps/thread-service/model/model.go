package model

import (
	"time"
)

// Comment 评论模型
type Comment struct {
	ID         int64      `json:"id" gorm:"primaryKey"`                                                  // Snowflake ID，创建顺序即ID顺序
	QuestionID int64      `json:"question_id" gorm:"not null;index:idx_question_parent"`                 // 所属问题ID
	ParentID   int64      `json:"parent_id" gorm:"not null;default:0;index:idx_question_parent"`         // 父评论ID（0表示顶级评论），创建后不可变
	RootID     int64      `json:"root_id" gorm:"not null;default:0;index"`                               // 根评论ID（用于快速定位评论树，顶级评论为0）
	AuthorID   int64      `json:"author_id" gorm:"not null;index"`                                       // 评论作者ID
	Content    string     `json:"content" gorm:"type:text;not null"`                                     // 评论内容
	Status     string     `json:"status" gorm:"type:varchar(20);not null;index;default:'active'"`        // 评论状态
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	EditedAt   *time.Time `json:"edited_at,omitempty"` // 最后编辑时间
}

// TableName 指定表名
func (Comment) TableName() string {
	return "comments"
}

// CommentVote 投票记录，(comment_id, user_id) 唯一
type CommentVote struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CommentID int64     `json:"comment_id" gorm:"not null;uniqueIndex:idx_comment_user;index"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_comment_user"`
	Direction string    `json:"direction" gorm:"type:varchar(8);not null"` // up / down
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (CommentVote) TableName() string {
	return "comment_votes"
}

// Question 问题元数据（question-service 拥有的共享表，本服务只读）
type Question struct {
	ID       int64 `json:"id" gorm:"primaryKey"`
	AuthorID int64 `json:"author_id" gorm:"not null;index"`
	IsLocked bool  `json:"is_locked" gorm:"not null;default:false"`
}

// TableName 指定表名
func (Question) TableName() string {
	return "questions"
}

// VoteTally 单条评论的投票计数，始终由投票记录聚合得出
type VoteTally struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
}

// Score 净得分
func (t VoteTally) Score() int64 {
	return t.Upvotes - t.Downvotes
}

// ThreadNode 渲染后的评论树节点
type ThreadNode struct {
	Comment  *Comment      `json:"comment"`
	Tally    VoteTally     `json:"tally"`
	UserVote string        `json:"user_vote,omitempty"` // 请求者自己的投票方向，未投票为空
	Replies  []*ThreadNode `json:"replies,omitempty"`
}

// ThreadEvent 评论变更事件，发布到Kafka供下游服务消费
type ThreadEvent struct {
	Type       string `json:"type"`
	CommentID  int64  `json:"comment_id"`
	QuestionID int64  `json:"question_id"`
	ActorID    int64  `json:"actor_id"`
	Timestamp  int64  `json:"timestamp"`
}

// ThreadStats 问题维度的评论统计
type ThreadStats struct {
	QuestionID int64 `json:"question_id"`
	Total      int64 `json:"total"`
	Active     int64 `json:"active"`
	Deleted    int64 `json:"deleted"`
}

// 查询参数结构体

// CreateCommentParams 创建顶级评论参数
type CreateCommentParams struct {
	QuestionID int64  `json:"question_id"`
	AuthorID   int64  `json:"author_id"`
	Content    string `json:"content"`
}

// CreateReplyParams 创建回复参数
type CreateReplyParams struct {
	ParentID int64  `json:"parent_id"`
	AuthorID int64  `json:"author_id"`
	Content  string `json:"content"`
}

// EditCommentParams 编辑评论参数
type EditCommentParams struct {
	CommentID int64  `json:"comment_id"`
	ActorID   int64  `json:"actor_id"`
	Content   string `json:"content"`
}

// DeleteCommentParams 删除评论参数
type DeleteCommentParams struct {
	CommentID int64 `json:"comment_id"`
	ActorID   int64 `json:"actor_id"`
}

// CastVoteParams 投票参数
type CastVoteParams struct {
	CommentID int64  `json:"comment_id"`
	UserID    int64  `json:"user_id"`
	Direction string `json:"direction"`
}

// ListThreadParams 获取评论列表参数
type ListThreadParams struct {
	QuestionID int64  `json:"question_id"`
	ViewerID   int64  `json:"viewer_id"`
	Sort       string `json:"sort"`
	Page       int32  `json:"page"`
	PageSize   int32  `json:"page_size"`
}

// 辅助方法

// IsTopLevel 判断是否为顶级评论
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == 0
}

// IsDeleted 判断是否为墓碑
func (c *Comment) IsDeleted() bool {
	return c.Status == CommentStatusDeleted
}

// TreeRootID 返回评论所在树的根评论ID
func (c *Comment) TreeRootID() int64 {
	if c.IsTopLevel() {
		return c.ID
	}
	return c.RootID
}
