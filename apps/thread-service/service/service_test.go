package service

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexora-forum/apps/thread-service/dao/daotest"
	"nexora-forum/apps/thread-service/model"
	"nexora-forum/pkg/logger"
	"nexora-forum/pkg/snowflake"
)

const (
	testQuestionID    = int64(1001)
	testQuestionOwner = int64(1)
	testUserAlice     = int64(2)
	testUserBob       = int64(3)
)

func TestMain(m *testing.M) {
	if err := snowflake.InitGlobalSnowflake(1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// newTestService 构建基于内存存储的服务实例，Redis和Kafka留空走降级路径
func newTestService(t *testing.T) (*Service, *daotest.MemoryStore) {
	t.Helper()
	store := daotest.NewMemoryStore()
	store.SeedQuestion(&model.Question{ID: testQuestionID, AuthorID: testQuestionOwner})
	svc := NewService(store, store, store, nil, nil, logger.GetLogger())
	return svc, store
}

// mustCreateComment 创建顶级评论，失败即终止测试
func mustCreateComment(t *testing.T, svc *Service, authorID int64, content string) *model.Comment {
	t.Helper()
	comment, err := svc.CreateComment(context.Background(), &model.CreateCommentParams{
		QuestionID: testQuestionID,
		AuthorID:   authorID,
		Content:    content,
	})
	require.NoError(t, err)
	return comment
}

// mustCreateReply 创建回复，失败即终止测试
func mustCreateReply(t *testing.T, svc *Service, parentID, authorID int64, content string) *model.Comment {
	t.Helper()
	reply, err := svc.CreateReply(context.Background(), &model.CreateReplyParams{
		ParentID: parentID,
		AuthorID: authorID,
		Content:  content,
	})
	require.NoError(t, err)
	return reply
}

// TestCreateComment 测试顶级评论创建
func TestCreateComment(t *testing.T) {
	svc, _ := newTestService(t)

	comment := mustCreateComment(t, svc, testUserAlice, "  第一条评论  ")

	assert.NotZero(t, comment.ID)
	assert.Equal(t, testQuestionID, comment.QuestionID)
	assert.Equal(t, testUserAlice, comment.AuthorID)
	assert.Equal(t, "第一条评论", comment.Content, "内容应去除首尾空白")
	assert.Equal(t, model.CommentStatusActive, comment.Status)
	assert.True(t, comment.IsTopLevel())
}

// TestCreateCommentValidation 测试创建评论的参数校验
func TestCreateCommentValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// 空内容
	_, err := svc.CreateComment(ctx, &model.CreateCommentParams{
		QuestionID: testQuestionID, AuthorID: testUserAlice, Content: "   ",
	})
	assert.ErrorIs(t, err, model.ErrValidation)

	// 超长内容
	_, err = svc.CreateComment(ctx, &model.CreateCommentParams{
		QuestionID: testQuestionID, AuthorID: testUserAlice,
		Content: strings.Repeat("a", model.MaxContentLength+1),
	})
	assert.ErrorIs(t, err, model.ErrValidation)

	// 未登录
	_, err = svc.CreateComment(ctx, &model.CreateCommentParams{
		QuestionID: testQuestionID, AuthorID: 0, Content: "hello",
	})
	assert.ErrorIs(t, err, model.ErrValidation)

	// 问题不存在
	_, err = svc.CreateComment(ctx, &model.CreateCommentParams{
		QuestionID: 9999, AuthorID: testUserAlice, Content: "hello",
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// TestCreateReply 测试回复继承问题归属与树根
func TestCreateReply(t *testing.T) {
	svc, _ := newTestService(t)

	top := mustCreateComment(t, svc, testUserAlice, "顶级评论")
	reply := mustCreateReply(t, svc, top.ID, testUserBob, "一级回复")
	nested := mustCreateReply(t, svc, reply.ID, testUserAlice, "二级回复")

	assert.Equal(t, testQuestionID, reply.QuestionID)
	assert.Equal(t, top.ID, reply.RootID)
	assert.Equal(t, top.ID, reply.TreeRootID())

	// 深层回复的树根仍是顶级评论
	assert.Equal(t, testQuestionID, nested.QuestionID)
	assert.Equal(t, top.ID, nested.RootID)
	assert.Equal(t, reply.ID, nested.ParentID)
}

// TestCreateReplyParentNotFound 测试回复不存在的父评论
func TestCreateReplyParentNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateReply(context.Background(), &model.CreateReplyParams{
		ParentID: 424242, AuthorID: testUserBob, Content: "回复",
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// TestReplyUnderTombstone 测试墓碑下仍可继续回复
func TestReplyUnderTombstone(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	top := mustCreateComment(t, svc, testUserAlice, "即将被删")
	require.NoError(t, svc.DeleteComment(ctx, &model.DeleteCommentParams{
		CommentID: top.ID, ActorID: testUserAlice,
	}))

	reply := mustCreateReply(t, svc, top.ID, testUserBob, "仍然可以回复")
	assert.Equal(t, top.ID, reply.ParentID)
	assert.Equal(t, model.CommentStatusActive, reply.Status)
}

// TestEditComment 测试作者编辑自己的评论
func TestEditComment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreateComment(t, svc, testUserAlice, "原始内容")

	edited, err := svc.EditComment(ctx, &model.EditCommentParams{
		CommentID: comment.ID, ActorID: testUserAlice, Content: "修改后的内容",
	})
	require.NoError(t, err)

	assert.Equal(t, "修改后的内容", edited.Content)
	assert.Equal(t, model.CommentStatusEdited, edited.Status)
	require.NotNil(t, edited.EditedAt)
	assert.False(t, edited.EditedAt.Before(edited.CreatedAt))
}

// TestEditCommentForbidden 测试非作者不能编辑，问题作者也不行
func TestEditCommentForbidden(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreateComment(t, svc, testUserAlice, "别人的评论")

	_, err := svc.EditComment(ctx, &model.EditCommentParams{
		CommentID: comment.ID, ActorID: testUserBob, Content: "篡改",
	})
	assert.ErrorIs(t, err, model.ErrForbidden)

	// 问题作者可以删除他人评论，但编辑权仅属于评论作者
	_, err = svc.EditComment(ctx, &model.EditCommentParams{
		CommentID: comment.ID, ActorID: testQuestionOwner, Content: "篡改",
	})
	assert.ErrorIs(t, err, model.ErrForbidden)
}

// TestEditDeletedComment 测试编辑墓碑返回冲突
func TestEditDeletedComment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreateComment(t, svc, testUserAlice, "将被删除")
	require.NoError(t, svc.DeleteComment(ctx, &model.DeleteCommentParams{
		CommentID: comment.ID, ActorID: testUserAlice,
	}))

	_, err := svc.EditComment(ctx, &model.EditCommentParams{
		CommentID: comment.ID, ActorID: testUserAlice, Content: "复活",
	})
	assert.ErrorIs(t, err, model.ErrConflict)
}

// TestDeleteComment 测试墓碑式删除：内容替换、状态变更、子树保留
func TestDeleteComment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	top := mustCreateComment(t, svc, testUserAlice, "要删除的评论")
	child := mustCreateReply(t, svc, top.ID, testUserBob, "子回复")

	require.NoError(t, svc.DeleteComment(ctx, &model.DeleteCommentParams{
		CommentID: top.ID, ActorID: testUserAlice,
	}))

	deleted, err := store.GetComment(ctx, top.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommentStatusDeleted, deleted.Status)
	assert.Equal(t, model.TombstoneContent, deleted.Content)

	// 子树不级联删除
	survivor, err := store.GetComment(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommentStatusActive, survivor.Status)
	assert.Equal(t, "子回复", survivor.Content)
}

// TestDeleteCommentIdempotent 测试重复删除幂等
func TestDeleteCommentIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	comment := mustCreateComment(t, svc, testUserAlice, "删两次")
	params := &model.DeleteCommentParams{CommentID: comment.ID, ActorID: testUserAlice}

	require.NoError(t, svc.DeleteComment(ctx, params))
	require.NoError(t, svc.DeleteComment(ctx, params))

	deleted, err := store.GetComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommentStatusDeleted, deleted.Status)
	assert.Equal(t, model.TombstoneContent, deleted.Content)
}

// TestDeleteCommentPermissions 测试删除权限：作者和问题作者可删，路人不可
func TestDeleteCommentPermissions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	comment := mustCreateComment(t, svc, testUserAlice, "Alice的评论")

	// 路人删除被拒绝
	err := svc.DeleteComment(ctx, &model.DeleteCommentParams{
		CommentID: comment.ID, ActorID: testUserBob,
	})
	assert.ErrorIs(t, err, model.ErrForbidden)

	// 问题作者可以删除任何人的评论
	require.NoError(t, svc.DeleteComment(ctx, &model.DeleteCommentParams{
		CommentID: comment.ID, ActorID: testQuestionOwner,
	}))

	deleted, err := store.GetComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())
}

// TestDeleteCommentNotFound 测试删除不存在的评论
func TestDeleteCommentNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.DeleteComment(context.Background(), &model.DeleteCommentParams{
		CommentID: 424242, ActorID: testUserAlice,
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// TestLockedQuestionRejectsWrites 测试锁定问题拒绝评论和回复，但保留编辑删除
func TestLockedQuestionRejectsWrites(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	comment := mustCreateComment(t, svc, testUserAlice, "锁定前的评论")
	store.SetLocked(testQuestionID, true)

	// 新评论被拒绝
	_, err := svc.CreateComment(ctx, &model.CreateCommentParams{
		QuestionID: testQuestionID, AuthorID: testUserBob, Content: "迟到的评论",
	})
	assert.ErrorIs(t, err, model.ErrForbidden)

	// 回复被拒绝
	_, err = svc.CreateReply(ctx, &model.CreateReplyParams{
		ParentID: comment.ID, AuthorID: testUserBob, Content: "迟到的回复",
	})
	assert.ErrorIs(t, err, model.ErrForbidden)

	// 锁定不影响作者编辑已有评论
	_, err = svc.EditComment(ctx, &model.EditCommentParams{
		CommentID: comment.ID, ActorID: testUserAlice, Content: "锁定后修订",
	})
	assert.NoError(t, err)

	// 锁定不影响删除
	assert.NoError(t, svc.DeleteComment(ctx, &model.DeleteCommentParams{
		CommentID: comment.ID, ActorID: testUserAlice,
	}))
}

// TestModerationScenario 测试治理场景：问题作者删除他人评论后，
// 原作者无法再编辑，讨论在墓碑下继续
func TestModerationScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	offending := mustCreateComment(t, svc, testUserBob, "违规内容")
	require.NoError(t, svc.DeleteComment(ctx, &model.DeleteCommentParams{
		CommentID: offending.ID, ActorID: testQuestionOwner,
	}))

	// 原作者无法编辑墓碑恢复内容
	_, err := svc.EditComment(ctx, &model.EditCommentParams{
		CommentID: offending.ID, ActorID: testUserBob, Content: "再发一次",
	})
	assert.ErrorIs(t, err, model.ErrConflict)

	// 其他人仍可在墓碑下讨论
	reply := mustCreateReply(t, svc, offending.ID, testUserAlice, "楼上说了什么")
	assert.Equal(t, offending.ID, reply.ParentID)

	// 子树视图中墓碑只露出占位内容
	node, err := svc.GetSubtree(ctx, offending.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.TombstoneContent, node.Comment.Content)
	require.Len(t, node.Replies, 1)
	assert.Equal(t, "楼上说了什么", node.Replies[0].Comment.Content)
}

// TestGetAllowedActions 测试权限查询接口的组装
func TestGetAllowedActions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreateComment(t, svc, testUserAlice, "权限测试")

	actions, err := svc.GetAllowedActions(ctx, testUserAlice, comment.ID)
	require.NoError(t, err)
	assert.True(t, actions.CanEdit)
	assert.True(t, actions.CanDelete)

	actions, err = svc.GetAllowedActions(ctx, testUserBob, comment.ID)
	require.NoError(t, err)
	assert.False(t, actions.CanEdit)
	assert.False(t, actions.CanDelete)
	assert.True(t, actions.CanVote)
}
