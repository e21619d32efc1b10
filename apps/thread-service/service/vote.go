package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexora-forum/apps/thread-service/model"
	tracecontext "nexora-forum/pkg/context"
	"nexora-forum/pkg/logger"
	"nexora-forum/pkg/telemetry"
)

// VoteResult 投票切换结果
type VoteResult struct {
	Tally    model.VoteTally
	UserVote string // 切换后该用户的方向，取消后为空
}

// CastVote 三态切换投票：无投票则新增，同方向则取消，反方向则改投。
// 同一 (评论, 用户) 键上的操作串行执行，不同键互不阻塞
func (s *Service) CastVote(ctx context.Context, params *model.CastVoteParams) (*VoteResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "thread.service.CastVote")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("comment.id", params.CommentID),
		attribute.Int64("user.id", params.UserID),
		attribute.String("vote.direction", params.Direction),
	)
	ctx = tracecontext.WithUserID(ctx, params.UserID)
	ctx = tracecontext.WithCommentID(ctx, params.CommentID)

	if params.CommentID <= 0 {
		return nil, fmt.Errorf("评论ID无效: %w", model.ErrValidation)
	}
	if params.UserID <= 0 {
		return nil, fmt.Errorf("用户ID无效: %w", model.ErrValidation)
	}
	if params.Direction != model.VoteDirectionUp && params.Direction != model.VoteDirectionDown {
		return nil, fmt.Errorf("投票方向无效，必须为 up 或 down: %w", model.ErrValidation)
	}

	comment, err := s.threadDAO.GetComment(ctx, params.CommentID)
	if err != nil {
		return nil, err
	}
	// 墓碑不可投票，对外表现为目标不存在
	if comment.IsDeleted() {
		return nil, fmt.Errorf("评论已删除: %w", model.ErrNotFound)
	}

	question, err := s.getQuestion(ctx, comment.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.IsLocked {
		return nil, fmt.Errorf("问题已锁定，不能投票: %w", model.ErrForbidden)
	}

	mctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	tally, userVote, err := s.voteDAO.ToggleVote(mctx, params.CommentID, params.UserID, params.Direction)
	if err != nil {
		err = mapTimeout(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to toggle vote")
		return nil, err
	}

	s.clearThreadCache(ctx, comment.QuestionID)
	s.publishEvent(ctx, model.EventCommentVoted, comment, params.UserID)

	s.logger.Info(ctx, "Vote toggled successfully",
		logger.F("commentID", params.CommentID),
		logger.F("userID", params.UserID),
		logger.F("userVote", userVote),
		logger.F("score", tally.Score()))

	span.SetStatus(codes.Ok, "vote toggled successfully")
	return &VoteResult{Tally: tally, UserVote: userVote}, nil
}
