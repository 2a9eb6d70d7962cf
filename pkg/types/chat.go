package types

type MessageRole string

const (
	MESSAGE_ROLE_USER      MessageRole = "user"
	MESSAGE_ROLE_ASSISTANT MessageRole = "assistant"
	MESSAGE_ROLE_SYSTEM    MessageRole = "system"
)

func (r MessageRole) String() string {
	return string(r)
}

// ChatSession 会话，updated_at 供训练编排器做增量扫描游标
type ChatSession struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	Title     string `json:"title" db:"title"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
}

// ChatMessage 会话消息，append-only
type ChatMessage struct {
	ID        string      `json:"id" db:"id"`
	SessionID string      `json:"session_id" db:"session_id"`
	Role      MessageRole `json:"role" db:"role"`
	Content   string      `json:"content" db:"content"`
	Sequence  int64       `json:"sequence" db:"sequence"`
	CreatedAt int64       `json:"created_at" db:"created_at"`
}

// UserMemory 用户偏好记忆，上下文阶段合并进 contextualized query
type UserMemory struct {
	UserID    string `json:"user_id" db:"user_id"`
	Key       string `json:"key" db:"key"`
	Value     string `json:"value" db:"value"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
}

// UserQueryRecord 每次用户提问的留痕，未解决的问题会成为候选话题
type UserQueryRecord struct {
	ID             string `json:"id" db:"id"`
	QueryText      string `json:"query_text" db:"query_text"`
	NormalizedText string `json:"normalized_text" db:"normalized_text"`
	Resolved       bool   `json:"resolved" db:"resolved"`
	CreatedAt      int64  `json:"created_at" db:"created_at"`
}
