package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexora-forum/apps/thread-service/dao"
	"nexora-forum/apps/thread-service/model"
	tracecontext "nexora-forum/pkg/context"
	"nexora-forum/pkg/kafka"
	"nexora-forum/pkg/logger"
	"nexora-forum/pkg/redis"
	"nexora-forum/pkg/snowflake"
	"nexora-forum/pkg/telemetry"
)

// mutationTimeout 变更操作的时间上限，锁等待超出即返回 ErrTimeout
const mutationTimeout = 3 * time.Second

// Service 评论树服务
type Service struct {
	threadDAO   dao.ThreadDAO
	voteDAO     dao.VoteDAO
	questionDAO dao.QuestionDAO
	redis       *redis.RedisClient
	producer    *kafka.Producer
	logger      logger.Logger
}

// NewService 创建评论树服务实例
func NewService(threadDAO dao.ThreadDAO, voteDAO dao.VoteDAO, questionDAO dao.QuestionDAO,
	redis *redis.RedisClient, producer *kafka.Producer, logger logger.Logger) *Service {
	return &Service{
		threadDAO:   threadDAO,
		voteDAO:     voteDAO,
		questionDAO: questionDAO,
		redis:       redis,
		producer:    producer,
		logger:      logger,
	}
}

// CreateComment 创建顶级评论
func (s *Service) CreateComment(ctx context.Context, params *model.CreateCommentParams) (*model.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "thread.service.CreateComment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("question.id", params.QuestionID),
		attribute.Int64("author.id", params.AuthorID),
		attribute.Int("content_length", len(params.Content)),
	)
	ctx = tracecontext.WithUserID(ctx, params.AuthorID)
	ctx = tracecontext.WithQuestionID(ctx, params.QuestionID)

	if params.QuestionID <= 0 {
		return nil, fmt.Errorf("问题ID无效: %w", model.ErrValidation)
	}
	if params.AuthorID <= 0 {
		return nil, fmt.Errorf("作者ID无效: %w", model.ErrValidation)
	}
	content, err := validateContent(params.Content)
	if err != nil {
		span.SetStatus(codes.Error, "invalid parameters")
		return nil, err
	}

	question, err := s.getQuestion(ctx, params.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.IsLocked {
		return nil, fmt.Errorf("问题已锁定，不能评论: %w", model.ErrForbidden)
	}

	comment := &model.Comment{
		ID:         snowflake.GenerateID(),
		QuestionID: params.QuestionID,
		AuthorID:   params.AuthorID,
		Content:    content,
		Status:     model.CommentStatusActive,
		CreatedAt:  time.Now(),
	}

	mctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()
	if err := s.threadDAO.CreateComment(mctx, comment); err != nil {
		err = mapTimeout(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create comment")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("comment.id", comment.ID))

	s.clearThreadCache(ctx, comment.QuestionID)
	s.publishEvent(ctx, model.EventCommentCreated, comment, params.AuthorID)

	s.logger.Info(ctx, "Comment created successfully",
		logger.F("commentID", comment.ID),
		logger.F("questionID", comment.QuestionID),
		logger.F("authorID", comment.AuthorID))

	span.SetStatus(codes.Ok, "comment created successfully")
	return comment, nil
}

// CreateReply 创建回复
func (s *Service) CreateReply(ctx context.Context, params *model.CreateReplyParams) (*model.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "thread.service.CreateReply")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("parent.id", params.ParentID),
		attribute.Int64("author.id", params.AuthorID),
	)
	ctx = tracecontext.WithUserID(ctx, params.AuthorID)

	if params.ParentID <= 0 {
		return nil, fmt.Errorf("父评论ID无效: %w", model.ErrValidation)
	}
	if params.AuthorID <= 0 {
		return nil, fmt.Errorf("作者ID无效: %w", model.ErrValidation)
	}
	content, err := validateContent(params.Content)
	if err != nil {
		span.SetStatus(codes.Error, "invalid parameters")
		return nil, err
	}

	// 墓碑下允许继续回复，只校验存在性与问题锁定
	parent, err := s.threadDAO.GetComment(ctx, params.ParentID)
	if err != nil {
		return nil, err
	}

	question, err := s.getQuestion(ctx, parent.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.IsLocked {
		return nil, fmt.Errorf("问题已锁定，不能回复: %w", model.ErrForbidden)
	}

	comment := &model.Comment{
		ID:        snowflake.GenerateID(),
		ParentID:  params.ParentID,
		AuthorID:  params.AuthorID,
		Content:   content,
		Status:    model.CommentStatusActive,
		CreatedAt: time.Now(),
	}

	mctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()
	if err := s.threadDAO.CreateReply(mctx, comment); err != nil {
		err = mapTimeout(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create reply")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("comment.id", comment.ID))

	s.clearThreadCache(ctx, comment.QuestionID)
	s.publishEvent(ctx, model.EventCommentCreated, comment, params.AuthorID)

	s.logger.Info(ctx, "Reply created successfully",
		logger.F("commentID", comment.ID),
		logger.F("parentID", comment.ParentID),
		logger.F("authorID", comment.AuthorID))

	span.SetStatus(codes.Ok, "reply created successfully")
	return comment, nil
}

// EditComment 编辑评论内容
func (s *Service) EditComment(ctx context.Context, params *model.EditCommentParams) (*model.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "thread.service.EditComment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("comment.id", params.CommentID),
		attribute.Int64("actor.id", params.ActorID),
	)
	ctx = tracecontext.WithUserID(ctx, params.ActorID)
	ctx = tracecontext.WithCommentID(ctx, params.CommentID)

	if params.CommentID <= 0 {
		return nil, fmt.Errorf("评论ID无效: %w", model.ErrValidation)
	}
	if params.ActorID <= 0 {
		return nil, fmt.Errorf("操作者ID无效: %w", model.ErrValidation)
	}
	content, err := validateContent(params.Content)
	if err != nil {
		span.SetStatus(codes.Error, "invalid parameters")
		return nil, err
	}

	mctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	// 行锁内校验状态与权限，保证同一评论的并发编辑/删除串行化
	comment, err := s.threadDAO.MutateComment(mctx, params.CommentID, func(c *model.Comment) (bool, error) {
		if c.IsDeleted() {
			return false, fmt.Errorf("评论已删除，不能编辑: %w", model.ErrConflict)
		}
		if c.AuthorID != params.ActorID {
			return false, fmt.Errorf("无权限编辑此评论: %w", model.ErrForbidden)
		}
		now := time.Now()
		c.Content = content
		c.Status = model.CommentStatusEdited
		c.EditedAt = &now
		return true, nil
	})
	if err != nil {
		err = mapTimeout(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to edit comment")
		return nil, err
	}

	s.clearThreadCache(ctx, comment.QuestionID)
	s.publishEvent(ctx, model.EventCommentEdited, comment, params.ActorID)

	s.logger.Info(ctx, "Comment edited successfully",
		logger.F("commentID", comment.ID),
		logger.F("actorID", params.ActorID))

	span.SetStatus(codes.Ok, "comment edited successfully")
	return comment, nil
}

// DeleteComment 墓碑式删除评论：内容替换为墓碑，子树保留，重复删除幂等
func (s *Service) DeleteComment(ctx context.Context, params *model.DeleteCommentParams) error {
	ctx, span := telemetry.StartSpan(ctx, "thread.service.DeleteComment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("comment.id", params.CommentID),
		attribute.Int64("actor.id", params.ActorID),
	)
	ctx = tracecontext.WithUserID(ctx, params.ActorID)
	ctx = tracecontext.WithCommentID(ctx, params.CommentID)

	if params.CommentID <= 0 {
		return fmt.Errorf("评论ID无效: %w", model.ErrValidation)
	}
	if params.ActorID <= 0 {
		return fmt.Errorf("操作者ID无效: %w", model.ErrValidation)
	}

	// 先取问题作者，问题作者可删除其问题下的任意评论
	existing, err := s.threadDAO.GetComment(ctx, params.CommentID)
	if err != nil {
		return err
	}
	question, err := s.getQuestion(ctx, existing.QuestionID)
	if err != nil {
		return err
	}

	mctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	deleted := false
	comment, err := s.threadDAO.MutateComment(mctx, params.CommentID, func(c *model.Comment) (bool, error) {
		authorized := c.AuthorID == params.ActorID || question.AuthorID == params.ActorID
		if !authorized {
			return false, fmt.Errorf("无权限删除此评论: %w", model.ErrForbidden)
		}
		if c.IsDeleted() {
			// 幂等：已删除则不再改动
			return false, nil
		}
		c.Status = model.CommentStatusDeleted
		c.Content = model.TombstoneContent
		deleted = true
		return true, nil
	})
	if err != nil {
		err = mapTimeout(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete comment")
		return err
	}

	if deleted {
		s.clearThreadCache(ctx, comment.QuestionID)
		s.publishEvent(ctx, model.EventCommentDeleted, comment, params.ActorID)
	}

	s.logger.Info(ctx, "Comment deleted successfully",
		logger.F("commentID", comment.ID),
		logger.F("actorID", params.ActorID),
		logger.F("alreadyDeleted", !deleted))

	span.SetStatus(codes.Ok, "comment deleted successfully")
	return nil
}

// GetAllowedActions 计算操作者对某条评论的操作权限
func (s *Service) GetAllowedActions(ctx context.Context, actorID, commentID int64) (*model.ActionSet, error) {
	comment, err := s.threadDAO.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	question, err := s.getQuestion(ctx, comment.QuestionID)
	if err != nil {
		return nil, err
	}
	actions := model.AllowedActions(actorID, comment, question.AuthorID, question.IsLocked)
	return &actions, nil
}

// 辅助方法

// validateContent 校验并清洗评论内容
func validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < model.MinContentLength {
		return "", fmt.Errorf("评论内容不能为空: %w", model.ErrValidation)
	}
	if len(trimmed) > model.MaxContentLength {
		return "", fmt.Errorf("评论内容过长，最多%d个字符: %w", model.MaxContentLength, model.ErrValidation)
	}
	return trimmed, nil
}

// mapTimeout 将超出时间上限的错误归类为 ErrTimeout（可安全重试）
func mapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("操作超时: %w", model.ErrTimeout)
	}
	return err
}

// getQuestion 获取问题元数据，带Redis缓存
func (s *Service) getQuestion(ctx context.Context, questionID int64) (*model.Question, error) {
	cacheKey := fmt.Sprintf("%s%d", model.QuestionCachePrefix, questionID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey); err == nil {
			var question model.Question
			if err := json.Unmarshal([]byte(cached), &question); err == nil {
				return &question, nil
			}
		}
	}

	question, err := s.questionDAO.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(question); err == nil {
			s.redis.Set(ctx, cacheKey, data, model.CacheExpireTime*time.Second)
		}
	}
	return question, nil
}

// clearThreadCache 清除问题维度的列表和统计缓存
func (s *Service) clearThreadCache(ctx context.Context, questionID int64) {
	if s.redis == nil {
		return
	}

	pattern := fmt.Sprintf("%s%d:*", model.ThreadCachePrefix, questionID)
	keys, err := s.redis.Keys(ctx, pattern)
	if err == nil && len(keys) > 0 {
		s.redis.Del(ctx, keys...)
	}

	statsKey := fmt.Sprintf("%s%d", model.StatsCachePrefix, questionID)
	s.redis.Del(ctx, statsKey)
}

// publishEvent 异步发布评论变更事件
func (s *Service) publishEvent(ctx context.Context, eventType string, comment *model.Comment, actorID int64) {
	if s.producer == nil {
		return
	}

	go func() {
		event := &model.ThreadEvent{
			Type:       eventType,
			CommentID:  comment.ID,
			QuestionID: comment.QuestionID,
			ActorID:    actorID,
			Timestamp:  time.Now().Unix(),
		}

		key := strconv.FormatInt(comment.QuestionID, 10)
		if err := s.producer.PublishJSON(model.ThreadEventTopic, key, event); err != nil {
			s.logger.Error(context.Background(), "Failed to publish event",
				logger.F("eventType", eventType),
				logger.F("commentID", comment.ID),
				logger.F("error", err.Error()))
		}
	}()
}
