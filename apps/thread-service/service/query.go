package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nexora-forum/apps/thread-service/model"
	tracecontext "nexora-forum/pkg/context"
	"nexora-forum/pkg/logger"
	"nexora-forum/pkg/telemetry"
)

// ThreadPage 分页后的评论树
type ThreadPage struct {
	Nodes    []*model.ThreadNode `json:"nodes"`
	Total    int64               `json:"total"`
	Page     int32               `json:"page"`
	PageSize int32               `json:"page_size"`
}

// GetThread 获取问题下的评论树：分页只作用于顶级评论，每个顶级评论
// 携带完整的嵌套回复（含墓碑）、票数和请求者自己的投票方向
func (s *Service) GetThread(ctx context.Context, params *model.ListThreadParams) (*ThreadPage, error) {
	ctx, span := telemetry.StartSpan(ctx, "thread.service.GetThread")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("question.id", params.QuestionID),
		attribute.String("sort", params.Sort),
		attribute.Int("page", int(params.Page)),
	)
	ctx = tracecontext.WithQuestionID(ctx, params.QuestionID)

	if params.QuestionID <= 0 {
		return nil, fmt.Errorf("问题ID无效: %w", model.ErrValidation)
	}
	sort, err := normalizeSort(params.Sort)
	if err != nil {
		span.SetStatus(codes.Error, "invalid sort")
		return nil, err
	}
	if params.Page <= 0 {
		params.Page = model.DefaultPage
	}
	if params.PageSize <= 0 {
		params.PageSize = model.DefaultPageSize
	}
	if params.PageSize > model.MaxPageSize {
		params.PageSize = model.MaxPageSize
	}

	// 问题必须存在
	if _, err := s.getQuestion(ctx, params.QuestionID); err != nil {
		return nil, err
	}

	// 缓存的是与访问者无关的树和票数，访问者自己的投票方向每次叠加
	cacheKey := fmt.Sprintf("%s%d:%s:%d:%d", model.ThreadCachePrefix, params.QuestionID, sort, params.Page, params.PageSize)
	if page := s.getCachedThread(ctx, cacheKey); page != nil {
		if err := s.overlayUserVotes(ctx, params.ViewerID, page.Nodes); err != nil {
			return nil, err
		}
		return page, nil
	}

	roots, total, err := s.threadDAO.ListTopLevel(ctx, params.QuestionID, sort, params.Page, params.PageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list top-level comments")
		return nil, err
	}

	rootIDs := make([]int64, 0, len(roots))
	for _, root := range roots {
		rootIDs = append(rootIDs, root.ID)
	}

	descendants, err := s.threadDAO.GetTreesByRoots(ctx, rootIDs)
	if err != nil {
		return nil, err
	}

	allIDs := make([]int64, 0, len(roots)+len(descendants))
	for _, c := range roots {
		allIDs = append(allIDs, c.ID)
	}
	for _, c := range descendants {
		allIDs = append(allIDs, c.ID)
	}

	tallies, err := s.voteDAO.GetTallies(ctx, allIDs)
	if err != nil {
		return nil, err
	}

	page := &ThreadPage{
		Nodes:    buildThreadNodes(roots, descendants, tallies),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}

	s.setCachedThread(ctx, cacheKey, page)

	if err := s.overlayUserVotes(ctx, params.ViewerID, page.Nodes); err != nil {
		return nil, err
	}

	span.SetStatus(codes.Ok, "thread fetched successfully")
	return page, nil
}

// GetSubtree 获取某条评论及其全部后代（含墓碑）
func (s *Service) GetSubtree(ctx context.Context, commentID, viewerID int64) (*model.ThreadNode, error) {
	ctx, span := telemetry.StartSpan(ctx, "thread.service.GetSubtree")
	defer span.End()

	span.SetAttributes(attribute.Int64("comment.id", commentID))
	ctx = tracecontext.WithCommentID(ctx, commentID)

	if commentID <= 0 {
		return nil, fmt.Errorf("评论ID无效: %w", model.ErrValidation)
	}

	comment, err := s.threadDAO.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	// 整棵树一次取出，再定位目标节点
	rootID := comment.TreeRootID()
	root := comment
	if rootID != comment.ID {
		root, err = s.threadDAO.GetComment(ctx, rootID)
		if err != nil {
			return nil, err
		}
	}

	descendants, err := s.threadDAO.GetTreesByRoots(ctx, []int64{rootID})
	if err != nil {
		return nil, err
	}

	allIDs := make([]int64, 0, len(descendants)+1)
	allIDs = append(allIDs, root.ID)
	for _, c := range descendants {
		allIDs = append(allIDs, c.ID)
	}

	tallies, err := s.voteDAO.GetTallies(ctx, allIDs)
	if err != nil {
		return nil, err
	}

	nodes := buildThreadNodes([]*model.Comment{root}, descendants, tallies)
	target := findNode(nodes, commentID)
	if target == nil {
		return nil, fmt.Errorf("评论不存在: %w", model.ErrNotFound)
	}

	if err := s.overlayUserVotes(ctx, viewerID, []*model.ThreadNode{target}); err != nil {
		return nil, err
	}

	span.SetStatus(codes.Ok, "subtree fetched successfully")
	return target, nil
}

// GetThreadStats 获取问题维度的评论统计
func (s *Service) GetThreadStats(ctx context.Context, questionID int64) (*model.ThreadStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "thread.service.GetThreadStats")
	defer span.End()

	span.SetAttributes(attribute.Int64("question.id", questionID))

	if questionID <= 0 {
		return nil, fmt.Errorf("问题ID无效: %w", model.ErrValidation)
	}

	cacheKey := fmt.Sprintf("%s%d", model.StatsCachePrefix, questionID)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey); err == nil {
			var stats model.ThreadStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	if _, err := s.getQuestion(ctx, questionID); err != nil {
		return nil, err
	}

	stats, err := s.threadDAO.GetStats(ctx, questionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(stats); err == nil {
			s.redis.Set(ctx, cacheKey, data, model.CacheExpireTime*time.Second)
		}
	}
	return stats, nil
}

// 辅助方法

// normalizeSort 归一化排序方式
func normalizeSort(sort string) (string, error) {
	switch sort {
	case "":
		return model.SortNewest, nil
	case model.SortNewest, model.SortOldest, model.SortMostVoted:
		return sort, nil
	default:
		return "", fmt.Errorf("排序方式无效，支持 newest/oldest/most_voted: %w", model.ErrValidation)
	}
}

// buildThreadNodes 将平铺的评论组装为树。
// descendants 已按创建时间升序排列，子节点按创建顺序挂载
func buildThreadNodes(roots, descendants []*model.Comment, tallies map[int64]model.VoteTally) []*model.ThreadNode {
	nodes := make(map[int64]*model.ThreadNode, len(roots)+len(descendants))
	for _, c := range roots {
		nodes[c.ID] = &model.ThreadNode{Comment: c, Tally: tallies[c.ID]}
	}
	for _, c := range descendants {
		if _, exists := nodes[c.ID]; !exists {
			nodes[c.ID] = &model.ThreadNode{Comment: c, Tally: tallies[c.ID]}
		}
	}

	for _, c := range descendants {
		if c.ID == c.TreeRootID() {
			continue
		}
		if parent, ok := nodes[c.ParentID]; ok {
			parent.Replies = append(parent.Replies, nodes[c.ID])
		}
	}

	result := make([]*model.ThreadNode, 0, len(roots))
	for _, c := range roots {
		result = append(result, nodes[c.ID])
	}
	return result
}

// findNode 在树中查找指定节点
func findNode(nodes []*model.ThreadNode, commentID int64) *model.ThreadNode {
	for _, node := range nodes {
		if node.Comment.ID == commentID {
			return node
		}
		if found := findNode(node.Replies, commentID); found != nil {
			return found
		}
	}
	return nil
}

// collectIDs 收集树中所有评论ID
func collectIDs(nodes []*model.ThreadNode, out *[]int64) {
	for _, node := range nodes {
		*out = append(*out, node.Comment.ID)
		collectIDs(node.Replies, out)
	}
}

// overlayUserVotes 叠加访问者自己的投票方向
func (s *Service) overlayUserVotes(ctx context.Context, viewerID int64, nodes []*model.ThreadNode) error {
	if viewerID <= 0 || len(nodes) == 0 {
		return nil
	}

	var ids []int64
	collectIDs(nodes, &ids)

	votes, err := s.voteDAO.GetUserVotes(ctx, viewerID, ids)
	if err != nil {
		return err
	}

	var apply func([]*model.ThreadNode)
	apply = func(ns []*model.ThreadNode) {
		for _, node := range ns {
			node.UserVote = votes[node.Comment.ID]
			apply(node.Replies)
		}
	}
	apply(nodes)
	return nil
}

// getCachedThread 读取列表缓存
func (s *Service) getCachedThread(ctx context.Context, key string) *ThreadPage {
	if s.redis == nil {
		return nil
	}
	cached, err := s.redis.Get(ctx, key)
	if err != nil {
		return nil
	}
	var page ThreadPage
	if err := json.Unmarshal([]byte(cached), &page); err != nil {
		s.logger.Warn(ctx, "Failed to decode cached thread", logger.F("key", key), logger.F("error", err.Error()))
		return nil
	}
	return &page
}

// setCachedThread 写入列表缓存
func (s *Service) setCachedThread(ctx context.Context, key string, page *ThreadPage) {
	if s.redis == nil {
		return
	}
	if data, err := json.Marshal(page); err == nil {
		s.redis.Set(ctx, key, data, model.CacheExpireTime*time.Second)
	}
}
