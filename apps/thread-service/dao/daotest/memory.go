// Package daotest 提供 DAO 接口的内存实现，供服务层和处理器层测试使用
package daotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nexora-forum/apps/thread-service/model"
)

// MemoryStore DAO接口的内存实现，锁粒度为整个存储，语义与PostgreSQL实现一致
type MemoryStore struct {
	mu        sync.Mutex
	comments  map[int64]*model.Comment
	votes     map[int64]map[int64]string // commentID -> userID -> direction
	questions map[int64]*model.Question
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		comments:  make(map[int64]*model.Comment),
		votes:     make(map[int64]map[int64]string),
		questions: make(map[int64]*model.Question),
	}
}

// SeedQuestion 预置问题
func (s *MemoryStore) SeedQuestion(q *model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.questions[q.ID] = &cp
}

// SeedComment 预置评论（绕过业务校验，用于构造测试数据）
func (s *MemoryStore) SeedComment(c *model.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.comments[c.ID] = &cp
}

// SetLocked 修改问题锁定状态
func (s *MemoryStore) SetLocked(questionID int64, locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.questions[questionID]; ok {
		q.IsLocked = locked
	}
}

func clone(c *model.Comment) *model.Comment {
	cp := *c
	return &cp
}

// CreateComment 创建顶级评论
func (s *MemoryStore) CreateComment(ctx context.Context, comment *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment.ParentID = 0
	comment.RootID = 0
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	s.comments[comment.ID] = clone(comment)
	return nil
}

// CreateReply 创建回复
func (s *MemoryStore) CreateReply(ctx context.Context, comment *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.comments[comment.ParentID]
	if !ok {
		return fmt.Errorf("父评论不存在: %w", model.ErrNotFound)
	}
	comment.QuestionID = parent.QuestionID
	comment.RootID = parent.TreeRootID()
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	s.comments[comment.ID] = clone(comment)
	return nil
}

// GetComment 按ID获取评论
func (s *MemoryStore) GetComment(ctx context.Context, commentID int64) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return nil, fmt.Errorf("评论不存在: %w", model.ErrNotFound)
	}
	return clone(c), nil
}

// MutateComment 读-改-写
func (s *MemoryStore) MutateComment(ctx context.Context, commentID int64, fn func(*model.Comment) (bool, error)) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return nil, fmt.Errorf("评论不存在: %w", model.ErrNotFound)
	}
	working := clone(c)
	save, err := fn(working)
	if err != nil {
		return nil, err
	}
	if save {
		s.comments[commentID] = clone(working)
	}
	return working, nil
}

// ListTopLevel 分页获取顶级评论
func (s *MemoryStore) ListTopLevel(ctx context.Context, questionID int64, sortBy string, page, pageSize int32) ([]*model.Comment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tops []*model.Comment
	for _, c := range s.comments {
		if c.QuestionID == questionID && c.ParentID == 0 {
			tops = append(tops, clone(c))
		}
	}
	total := int64(len(tops))

	score := func(id int64) int64 {
		var n int64
		for _, dir := range s.votes[id] {
			if dir == model.VoteDirectionUp {
				n++
			} else {
				n--
			}
		}
		return n
	}

	sort.SliceStable(tops, func(i, j int) bool {
		a, b := tops[i], tops[j]
		switch sortBy {
		case model.SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		case model.SortMostVoted:
			sa, sb := score(a.ID), score(b.ID)
			if sa != sb {
				return sa > sb
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		default: // newest
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	})

	if page <= 0 {
		page = model.DefaultPage
	}
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	start := int((page - 1) * pageSize)
	if start > len(tops) {
		start = len(tops)
	}
	end := start + int(pageSize)
	if end > len(tops) {
		end = len(tops)
	}

	return tops[start:end], total, nil
}

// GetTreesByRoots 获取根评论下的全部后代
func (s *MemoryStore) GetTreesByRoots(ctx context.Context, rootIDs []int64) ([]*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roots := make(map[int64]bool, len(rootIDs))
	for _, id := range rootIDs {
		roots[id] = true
	}

	var result []*model.Comment
	for _, c := range s.comments {
		if c.RootID != 0 && roots[c.RootID] {
			result = append(result, clone(c))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetStats 获取问题维度的评论统计
func (s *MemoryStore) GetStats(ctx context.Context, questionID int64) (*model.ThreadStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &model.ThreadStats{QuestionID: questionID}
	for _, c := range s.comments {
		if c.QuestionID != questionID {
			continue
		}
		stats.Total++
		if c.IsDeleted() {
			stats.Deleted++
		}
	}
	stats.Active = stats.Total - stats.Deleted
	return stats, nil
}

// ToggleVote 三态切换投票
func (s *MemoryStore) ToggleVote(ctx context.Context, commentID, userID int64, direction string) (model.VoteTally, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	votes := s.votes[commentID]
	if votes == nil {
		votes = make(map[int64]string)
		s.votes[commentID] = votes
	}

	var result string
	switch votes[userID] {
	case "":
		votes[userID] = direction
		result = direction
	case direction:
		delete(votes, userID)
		result = ""
	default:
		votes[userID] = direction
		result = direction
	}

	return s.tallyLocked(commentID), result, nil
}

// GetTallies 批量聚合评论计数
func (s *MemoryStore) GetTallies(ctx context.Context, commentIDs []int64) (map[int64]model.VoteTally, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[int64]model.VoteTally, len(commentIDs))
	for _, id := range commentIDs {
		result[id] = s.tallyLocked(id)
	}
	return result, nil
}

// GetUserVotes 批量获取某用户的投票方向
func (s *MemoryStore) GetUserVotes(ctx context.Context, userID int64, commentIDs []int64) (map[int64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[int64]string)
	for _, id := range commentIDs {
		if dir, ok := s.votes[id][userID]; ok {
			result[id] = dir
		}
	}
	return result, nil
}

// GetQuestion 获取问题元数据
func (s *MemoryStore) GetQuestion(ctx context.Context, questionID int64) (*model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok {
		return nil, fmt.Errorf("问题不存在: %w", model.ErrNotFound)
	}
	cp := *q
	return &cp, nil
}

func (s *MemoryStore) tallyLocked(commentID int64) model.VoteTally {
	var tally model.VoteTally
	for _, dir := range s.votes[commentID] {
		switch dir {
		case model.VoteDirectionUp:
			tally.Upvotes++
		case model.VoteDirectionDown:
			tally.Downvotes++
		}
	}
	return tally
}
