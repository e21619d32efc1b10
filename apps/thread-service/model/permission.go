package model

// ActionSet 操作者对一条评论可执行的操作集合
type ActionSet struct {
	CanReply  bool `json:"can_reply"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
	CanVote   bool `json:"can_vote"`
}

// AllowedActions 计算操作者对评论的权限，纯函数，不依赖任何隐式身份
//
// 规则：
//   - 回复：问题未锁定即可，墓碑下允许继续回复
//   - 编辑：仅作者本人，且评论未删除
//   - 删除：作者本人或问题作者（问题作者可管理自己问题下的讨论）
//   - 投票：问题未锁定且评论未删除，允许给自己投票
func AllowedActions(actorID int64, comment *Comment, questionAuthorID int64, questionLocked bool) ActionSet {
	if actorID <= 0 || comment == nil {
		return ActionSet{}
	}

	isAuthor := comment.AuthorID == actorID
	isQuestionOwner := questionAuthorID == actorID

	return ActionSet{
		CanReply:  !questionLocked,
		CanEdit:   isAuthor && !comment.IsDeleted(),
		CanDelete: (isAuthor || isQuestionOwner) && !comment.IsDeleted(),
		CanVote:   !questionLocked && !comment.IsDeleted(),
	}
}
