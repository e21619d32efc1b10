package dao

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"nexora-forum/apps/thread-service/model"
	"nexora-forum/pkg/database"
)

// questionDAO 问题元数据只读访问实现，questions 表由 question-service 拥有
type questionDAO struct {
	db *database.PostgreSQL
}

// NewQuestionDAO 创建问题DAO实例
func NewQuestionDAO(db *database.PostgreSQL) QuestionDAO {
	return &questionDAO{
		db: db,
	}
}

// GetQuestion 获取问题元数据
func (d *questionDAO) GetQuestion(ctx context.Context, questionID int64) (*model.Question, error) {
	var question model.Question
	err := d.db.WithContext(ctx).Where("id = ?", questionID).First(&question).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("问题不存在: %w", model.ErrNotFound)
		}
		return nil, err
	}
	return &question, nil
}
