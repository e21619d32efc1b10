package model

// 评论状态常量
const (
	CommentStatusActive  = "active"  // 正常
	CommentStatusEdited  = "edited"  // 已编辑
	CommentStatusDeleted = "deleted" // 已删除（墓碑）
)

// TombstoneContent 删除后替换的墓碑内容
const TombstoneContent = "[deleted]"

// 投票方向常量
const (
	VoteDirectionUp   = "up"   // 赞成
	VoteDirectionDown = "down" // 反对
)

// 排序方式常量
const (
	SortNewest    = "newest"     // 最新优先
	SortOldest    = "oldest"     // 最早优先
	SortMostVoted = "most_voted" // 净得分优先
)

// 分页常量
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// 评论内容限制
const (
	MinContentLength = 1    // 评论最小长度
	MaxContentLength = 2000 // 评论最大长度
)

// 缓存相关常量
const (
	ThreadCachePrefix   = "thread:"
	QuestionCachePrefix = "question:"
	StatsCachePrefix    = "thread_stats:"
	CacheExpireTime     = 300 // 缓存过期时间（秒）
)

// 事件类型常量
const (
	EventCommentCreated = "comment.created"
	EventCommentEdited  = "comment.edited"
	EventCommentDeleted = "comment.deleted"
	EventCommentVoted   = "comment.voted"
)

// ThreadEventTopic 评论变更事件主题
const ThreadEventTopic = "thread-events"
