package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexora-forum/apps/thread-service/dao/daotest"
	"nexora-forum/apps/thread-service/model"
)

// seedVotes 为评论灌入指定数量的赞成票
func seedVotes(t *testing.T, store *daotest.MemoryStore, commentID int64, upvotes int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < upvotes; i++ {
		_, _, err := store.ToggleVote(ctx, commentID, int64(10000+i), model.VoteDirectionUp)
		require.NoError(t, err)
	}
}

// seedTopComment 以指定创建时间预置顶级评论
func seedTopComment(store *daotest.MemoryStore, id int64, createdAt time.Time) {
	store.SeedComment(&model.Comment{
		ID:         id,
		QuestionID: testQuestionID,
		AuthorID:   testUserAlice,
		Content:    "seeded",
		Status:     model.CommentStatusActive,
		CreatedAt:  createdAt,
	})
}

// TestGetThreadSortNewestOldest 测试时间排序的两个方向
func TestGetThreadSortNewestOldest(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seedTopComment(store, 101, base)
	seedTopComment(store, 102, base.Add(time.Minute))
	seedTopComment(store, 103, base.Add(2*time.Minute))

	page, err := svc.GetThread(ctx, &model.ListThreadParams{QuestionID: testQuestionID, Sort: model.SortNewest})
	require.NoError(t, err)
	require.Len(t, page.Nodes, 3)
	assert.Equal(t, int64(103), page.Nodes[0].Comment.ID)
	assert.Equal(t, int64(101), page.Nodes[2].Comment.ID)

	page, err = svc.GetThread(ctx, &model.ListThreadParams{QuestionID: testQuestionID, Sort: model.SortOldest})
	require.NoError(t, err)
	require.Len(t, page.Nodes, 3)
	assert.Equal(t, int64(101), page.Nodes[0].Comment.ID)
	assert.Equal(t, int64(103), page.Nodes[2].Comment.ID)
}

// TestGetThreadSortMostVoted 测试净得分排序：得分相同时先创建的在前
func TestGetThreadSortMostVoted(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seedTopComment(store, 201, base.Add(time.Minute)) // 5票，较晚
	seedTopComment(store, 202, base)                  // 5票，较早
	seedTopComment(store, 203, base.Add(2*time.Minute)) // 3票

	seedVotes(t, store, 201, 5)
	seedVotes(t, store, 202, 5)
	seedVotes(t, store, 203, 3)

	page, err := svc.GetThread(ctx, &model.ListThreadParams{QuestionID: testQuestionID, Sort: model.SortMostVoted})
	require.NoError(t, err)
	require.Len(t, page.Nodes, 3)

	// 同为5票，202创建更早排在前
	assert.Equal(t, int64(202), page.Nodes[0].Comment.ID)
	assert.Equal(t, int64(201), page.Nodes[1].Comment.ID)
	assert.Equal(t, int64(203), page.Nodes[2].Comment.ID)
	assert.Equal(t, int64(5), page.Nodes[0].Tally.Score())
	assert.Equal(t, int64(3), page.Nodes[2].Tally.Score())
}

// TestGetThreadPagination 测试分页只作用于顶级评论
func TestGetThreadPagination(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(0); i < 5; i++ {
		seedTopComment(store, 301+i, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := svc.GetThread(ctx, &model.ListThreadParams{
		QuestionID: testQuestionID, Sort: model.SortOldest, Page: 1, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	require.Len(t, page.Nodes, 2)
	assert.Equal(t, int64(301), page.Nodes[0].Comment.ID)
	assert.Equal(t, int64(302), page.Nodes[1].Comment.ID)

	page, err = svc.GetThread(ctx, &model.ListThreadParams{
		QuestionID: testQuestionID, Sort: model.SortOldest, Page: 3, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	require.Len(t, page.Nodes, 1)
	assert.Equal(t, int64(305), page.Nodes[0].Comment.ID)
}

// TestGetThreadTreeAssembly 测试嵌套回复完整挂载，分页不截断子树
func TestGetThreadTreeAssembly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	top := mustCreateComment(t, svc, testUserAlice, "顶级")
	r1 := mustCreateReply(t, svc, top.ID, testUserBob, "回复1")
	mustCreateReply(t, svc, r1.ID, testUserAlice, "回复1.1")
	mustCreateReply(t, svc, top.ID, testUserBob, "回复2")

	page, err := svc.GetThread(ctx, &model.ListThreadParams{
		QuestionID: testQuestionID, PageSize: 1,
	})
	require.NoError(t, err)
	require.Len(t, page.Nodes, 1)

	root := page.Nodes[0]
	assert.Equal(t, top.ID, root.Comment.ID)
	require.Len(t, root.Replies, 2)
	assert.Equal(t, "回复1", root.Replies[0].Comment.Content)
	require.Len(t, root.Replies[0].Replies, 1)
	assert.Equal(t, "回复1.1", root.Replies[0].Replies[0].Comment.Content)
	assert.Equal(t, "回复2", root.Replies[1].Comment.Content)
}

// TestGetThreadTombstoneVisible 测试墓碑保留在树中且只露出占位内容
func TestGetThreadTombstoneVisible(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	top := mustCreateComment(t, svc, testUserAlice, "顶级")
	mid := mustCreateReply(t, svc, top.ID, testUserBob, "中间节点")
	mustCreateReply(t, svc, mid.ID, testUserAlice, "叶子")

	require.NoError(t, svc.DeleteComment(ctx, &model.DeleteCommentParams{
		CommentID: mid.ID, ActorID: testUserBob,
	}))

	page, err := svc.GetThread(ctx, &model.ListThreadParams{QuestionID: testQuestionID})
	require.NoError(t, err)
	require.Len(t, page.Nodes, 1)
	require.Len(t, page.Nodes[0].Replies, 1)

	tombstone := page.Nodes[0].Replies[0]
	assert.Equal(t, model.CommentStatusDeleted, tombstone.Comment.Status)
	assert.Equal(t, model.TombstoneContent, tombstone.Comment.Content)
	require.Len(t, tombstone.Replies, 1)
	assert.Equal(t, "叶子", tombstone.Replies[0].Comment.Content)
}

// TestGetThreadUserVoteOverlay 测试访问者自己的投票方向逐请求叠加
func TestGetThreadUserVoteOverlay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreateComment(t, svc, testUserAlice, "投票叠加")
	castVote(t, svc, comment.ID, testUserBob, model.VoteDirectionUp)

	// 投票者自己看到user_vote
	page, err := svc.GetThread(ctx, &model.ListThreadParams{
		QuestionID: testQuestionID, ViewerID: testUserBob,
	})
	require.NoError(t, err)
	require.Len(t, page.Nodes, 1)
	assert.Equal(t, model.VoteDirectionUp, page.Nodes[0].UserVote)
	assert.Equal(t, int64(1), page.Nodes[0].Tally.Upvotes)

	// 其他人看到票数但user_vote为空
	page, err = svc.GetThread(ctx, &model.ListThreadParams{
		QuestionID: testQuestionID, ViewerID: testUserAlice,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Nodes[0].UserVote)
	assert.Equal(t, int64(1), page.Nodes[0].Tally.Upvotes)

	// 匿名访问者同样为空
	page, err = svc.GetThread(ctx, &model.ListThreadParams{QuestionID: testQuestionID})
	require.NoError(t, err)
	assert.Empty(t, page.Nodes[0].UserVote)
}

// TestGetThreadValidation 测试列表查询的参数校验
func TestGetThreadValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetThread(ctx, &model.ListThreadParams{QuestionID: testQuestionID, Sort: "hottest"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.GetThread(ctx, &model.ListThreadParams{QuestionID: 9999})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// TestGetSubtree 测试从中间节点取子树
func TestGetSubtree(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	top := mustCreateComment(t, svc, testUserAlice, "顶级")
	mid := mustCreateReply(t, svc, top.ID, testUserBob, "中间")
	leaf := mustCreateReply(t, svc, mid.ID, testUserAlice, "叶子")

	node, err := svc.GetSubtree(ctx, mid.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, mid.ID, node.Comment.ID)
	require.Len(t, node.Replies, 1)
	assert.Equal(t, leaf.ID, node.Replies[0].Comment.ID)

	_, err = svc.GetSubtree(ctx, 424242, 0)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// TestGetThreadStats 测试统计口径：墓碑计入总数但不计入活跃数
func TestGetThreadStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c1 := mustCreateComment(t, svc, testUserAlice, "评论1")
	mustCreateComment(t, svc, testUserBob, "评论2")
	mustCreateReply(t, svc, c1.ID, testUserBob, "回复")

	require.NoError(t, svc.DeleteComment(ctx, &model.DeleteCommentParams{
		CommentID: c1.ID, ActorID: testUserAlice,
	}))

	stats, err := svc.GetThreadStats(ctx, testQuestionID)
	require.NoError(t, err)
	assert.Equal(t, testQuestionID, stats.QuestionID)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Active)
	assert.Equal(t, int64(1), stats.Deleted)

	_, err = svc.GetThreadStats(ctx, 9999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
