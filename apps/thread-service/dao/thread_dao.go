package dao

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexora-forum/apps/thread-service/model"
	"nexora-forum/pkg/database"
)

// threadDAO 评论树数据访问实现
type threadDAO struct {
	db *database.PostgreSQL
}

// NewThreadDAO 创建评论树DAO实例
func NewThreadDAO(db *database.PostgreSQL) ThreadDAO {
	return &threadDAO{
		db: db,
	}
}

// CreateComment 创建顶级评论
func (d *threadDAO) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ParentID = 0
	comment.RootID = 0
	return d.db.WithContext(ctx).Create(comment).Error
}

// CreateReply 创建回复
func (d *threadDAO) CreateReply(ctx context.Context, comment *model.Comment) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁定父评论，保证回复插入时父节点存在且不被并发删除重排
		var parent model.Comment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", comment.ParentID).
			First(&parent).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("父评论不存在: %w", model.ErrNotFound)
			}
			return err
		}

		// 墓碑下允许继续回复，子树结构保留
		comment.QuestionID = parent.QuestionID
		comment.RootID = parent.TreeRootID()

		return tx.Create(comment).Error
	})
}

// GetComment 按ID获取评论
func (d *threadDAO) GetComment(ctx context.Context, commentID int64) (*model.Comment, error) {
	var comment model.Comment
	err := d.db.WithContext(ctx).Where("id = ?", commentID).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("评论不存在: %w", model.ErrNotFound)
		}
		return nil, err
	}
	return &comment, nil
}

// MutateComment 行锁下的读-改-写
func (d *threadDAO) MutateComment(ctx context.Context, commentID int64, fn func(*model.Comment) (bool, error)) (*model.Comment, error) {
	var out *model.Comment
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment model.Comment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", commentID).
			First(&comment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("评论不存在: %w", model.ErrNotFound)
			}
			return err
		}

		save, err := fn(&comment)
		if err != nil {
			return err
		}
		if save {
			if err := tx.Save(&comment).Error; err != nil {
				return err
			}
		}
		out = &comment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListTopLevel 分页获取顶级评论
func (d *threadDAO) ListTopLevel(ctx context.Context, questionID int64, sort string, page, pageSize int32) ([]*model.Comment, int64, error) {
	// 总数只统计顶级评论
	var total int64
	err := d.db.WithContext(ctx).Model(&model.Comment{}).
		Where("question_id = ? AND parent_id = 0", questionID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = model.DefaultPage
	}
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	if pageSize > model.MaxPageSize {
		pageSize = model.MaxPageSize
	}
	offset := (page - 1) * pageSize

	query := d.db.WithContext(ctx).Model(&model.Comment{}).
		Where("comments.question_id = ? AND comments.parent_id = 0", questionID)

	switch sort {
	case model.SortOldest:
		query = query.Order("comments.created_at ASC, comments.id ASC")
	case model.SortMostVoted:
		// 净得分由投票记录实时聚合，并列时创建早者靠前
		query = query.Select("comments.*").
			Joins("LEFT JOIN comment_votes ON comment_votes.comment_id = comments.id").
			Group("comments.id").
			Order("COALESCE(SUM(CASE WHEN comment_votes.direction = 'up' THEN 1 WHEN comment_votes.direction = 'down' THEN -1 ELSE 0 END), 0) DESC").
			Order("comments.created_at ASC").
			Order("comments.id ASC")
	default: // newest
		query = query.Order("comments.created_at DESC, comments.id DESC")
	}

	var comments []*model.Comment
	err = query.Offset(int(offset)).Limit(int(pageSize)).Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}

// GetTreesByRoots 获取若干根评论下的全部后代
func (d *threadDAO) GetTreesByRoots(ctx context.Context, rootIDs []int64) ([]*model.Comment, error) {
	if len(rootIDs) == 0 {
		return nil, nil
	}

	var comments []*model.Comment
	err := d.db.WithContext(ctx).
		Where("root_id IN ?", rootIDs).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// GetStats 获取问题维度的评论统计
func (d *threadDAO) GetStats(ctx context.Context, questionID int64) (*model.ThreadStats, error) {
	stats := &model.ThreadStats{QuestionID: questionID}

	err := d.db.WithContext(ctx).Model(&model.Comment{}).
		Where("question_id = ?", questionID).
		Count(&stats.Total).Error
	if err != nil {
		return nil, err
	}

	err = d.db.WithContext(ctx).Model(&model.Comment{}).
		Where("question_id = ? AND status = ?", questionID, model.CommentStatusDeleted).
		Count(&stats.Deleted).Error
	if err != nil {
		return nil, err
	}

	stats.Active = stats.Total - stats.Deleted
	return stats, nil
}
