package dao

import (
	"context"

	"nexora-forum/apps/thread-service/model"
)

// ThreadDAO 评论树数据访问接口
type ThreadDAO interface {
	// CreateComment 创建顶级评论
	CreateComment(ctx context.Context, comment *model.Comment) error
	// CreateReply 创建回复，事务内锁定父评论并继承其问题和根评论
	CreateReply(ctx context.Context, comment *model.Comment) error
	// GetComment 按ID获取评论
	GetComment(ctx context.Context, commentID int64) (*model.Comment, error)
	// MutateComment 行锁下的读-改-写：fn 返回是否保存修改。
	// 同一评论上的变更彼此串行，不同评论互不阻塞
	MutateComment(ctx context.Context, commentID int64, fn func(*model.Comment) (bool, error)) (*model.Comment, error)
	// ListTopLevel 分页获取顶级评论，分页只作用于顶级
	ListTopLevel(ctx context.Context, questionID int64, sort string, page, pageSize int32) ([]*model.Comment, int64, error)
	// GetTreesByRoots 获取若干根评论下的全部后代（含墓碑）
	GetTreesByRoots(ctx context.Context, rootIDs []int64) ([]*model.Comment, error)
	// GetStats 获取问题维度的评论统计
	GetStats(ctx context.Context, questionID int64) (*model.ThreadStats, error)
}

// VoteDAO 投票数据访问接口
type VoteDAO interface {
	// ToggleVote 三态切换：无投票则新增，同方向则取消，反方向则改投。
	// 事务内锁定 (comment_id, user_id) 投票键，返回最新计数和切换后的方向（取消后为空）
	ToggleVote(ctx context.Context, commentID, userID int64, direction string) (model.VoteTally, string, error)
	// GetTallies 批量聚合评论计数
	GetTallies(ctx context.Context, commentIDs []int64) (map[int64]model.VoteTally, error)
	// GetUserVotes 批量获取某用户在这些评论上的投票方向
	GetUserVotes(ctx context.Context, userID int64, commentIDs []int64) (map[int64]string, error)
}

// QuestionDAO 问题元数据只读访问接口
type QuestionDAO interface {
	// GetQuestion 获取问题元数据
	GetQuestion(ctx context.Context, questionID int64) (*model.Question, error)
}
