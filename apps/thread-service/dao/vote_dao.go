package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexora-forum/apps/thread-service/model"
	"nexora-forum/pkg/database"
)

// voteDAO 投票数据访问实现
type voteDAO struct {
	db *database.PostgreSQL
}

// NewVoteDAO 创建投票DAO实例
func NewVoteDAO(db *database.PostgreSQL) VoteDAO {
	return &voteDAO{
		db: db,
	}
}

// ToggleVote 三态切换投票
func (d *voteDAO) ToggleVote(ctx context.Context, commentID, userID int64, direction string) (model.VoteTally, string, error) {
	var tally model.VoteTally
	var result string

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁定该用户在该评论上的投票键，同键操作串行化
		var existing model.CommentVote
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("comment_id = ? AND user_id = ?", commentID, userID).
			First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 无投票，新增。唯一索引兜底并发重复插入
			vote := &model.CommentVote{
				CommentID: commentID,
				UserID:    userID,
				Direction: direction,
			}
			if err := tx.Create(vote).Error; err != nil {
				return err
			}
			result = direction
		case err != nil:
			return err
		case existing.Direction == direction:
			// 同方向，取消
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			result = ""
		default:
			// 反方向，改投
			if err := tx.Model(&existing).Update("direction", direction).Error; err != nil {
				return err
			}
			result = direction
		}

		// 同一事务内聚合最新计数
		t, err := d.tallyTx(tx, commentID)
		if err != nil {
			return err
		}
		tally = t
		return nil
	})

	if err != nil {
		return model.VoteTally{}, "", err
	}
	return tally, result, nil
}

// GetTallies 批量聚合评论计数
func (d *voteDAO) GetTallies(ctx context.Context, commentIDs []int64) (map[int64]model.VoteTally, error) {
	result := make(map[int64]model.VoteTally, len(commentIDs))
	if len(commentIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		CommentID int64
		Direction string
		Count     int64
	}
	err := d.db.WithContext(ctx).Model(&model.CommentVote{}).
		Select("comment_id, direction, COUNT(*) as count").
		Where("comment_id IN ?", commentIDs).
		Group("comment_id, direction").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		tally := result[row.CommentID]
		switch row.Direction {
		case model.VoteDirectionUp:
			tally.Upvotes = row.Count
		case model.VoteDirectionDown:
			tally.Downvotes = row.Count
		}
		result[row.CommentID] = tally
	}
	return result, nil
}

// GetUserVotes 批量获取某用户的投票方向
func (d *voteDAO) GetUserVotes(ctx context.Context, userID int64, commentIDs []int64) (map[int64]string, error) {
	result := make(map[int64]string, len(commentIDs))
	if userID <= 0 || len(commentIDs) == 0 {
		return result, nil
	}

	var votes []*model.CommentVote
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Find(&votes).Error
	if err != nil {
		return nil, err
	}

	for _, vote := range votes {
		result[vote.CommentID] = vote.Direction
	}
	return result, nil
}

// tallyTx 在事务中聚合单条评论的计数
func (d *voteDAO) tallyTx(tx *gorm.DB, commentID int64) (model.VoteTally, error) {
	var rows []struct {
		Direction string
		Count     int64
	}
	err := tx.Model(&model.CommentVote{}).
		Select("direction, COUNT(*) as count").
		Where("comment_id = ?", commentID).
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		return model.VoteTally{}, err
	}

	var tally model.VoteTally
	for _, row := range rows {
		switch row.Direction {
		case model.VoteDirectionUp:
			tally.Upvotes = row.Count
		case model.VoteDirectionDown:
			tally.Downvotes = row.Count
		}
	}
	return tally, nil
}
