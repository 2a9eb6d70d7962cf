package v1

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	pkgerrs "github.com/curio-ai/curio/pkg/errors"
	"github.com/curio-ai/curio/pkg/i18n"
	"github.com/curio-ai/curio/pkg/types"
	"github.com/curio-ai/curio/pkg/utils"

	"github.com/curio-ai/curio/app/core"
	"github.com/curio-ai/curio/app/store"
)

type ChatLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewChatLogic(ctx context.Context, core *core.Core) *ChatLogic {
	return &ChatLogic{
		ctx:  ctx,
		core: core,
	}
}

func (l *ChatLogic) CreateSession(userID, title string) (*types.ChatSession, error) {
	session := types.ChatSession{
		ID:     utils.GenUniqIDStr(),
		UserID: userID,
		Title:  utils.Truncate(title, 64),
	}
	if err := l.core.Store().ChatSessionStore().Create(l.ctx, session); err != nil {
		return nil, pkgerrs.New("ChatLogic.CreateSession.ChatSessionStore.Create", i18n.ERROR_INTERNAL, err)
	}
	return &session, nil
}

// AppendMessage 追加消息并推进会话 updated_at，训练编排按该游标增量扫描
func (l *ChatLogic) AppendMessage(sessionID string, role types.MessageRole, content string) error {
	latest, err := l.core.Store().ChatMessageStore().ListLatest(l.ctx, sessionID, 1)
	if err != nil {
		return pkgerrs.New("ChatLogic.AppendMessage.ChatMessageStore.ListLatest", i18n.ERROR_INTERNAL, err)
	}
	var seq int64 = 1
	if len(latest) > 0 {
		seq = latest[len(latest)-1].Sequence + 1
	}

	err = l.core.Store().ChatMessageStore().Create(l.ctx, types.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Sequence:  seq,
	})
	if err != nil {
		return pkgerrs.New("ChatLogic.AppendMessage.ChatMessageStore.Create", i18n.ERROR_INTERNAL, err)
	}

	if err = l.core.Store().ChatSessionStore().Touch(l.ctx, sessionID, 0); err != nil {
		slog.Warn("failed to touch chat session", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
	return nil
}

// ContextBuilder 把会话历史与用户记忆拼进 contextualized query
type ContextBuilder struct {
	Messages store.ChatMessageStore
	Memories store.UserMemoryStore

	MaxTurns    int // 最多携带的历史轮数
	TokenBudget int // 超出预算时从最旧的历史开始丢弃
}

// Build 返回带上下文的提问文本。无历史时原样返回。
func (b *ContextBuilder) Build(ctx context.Context, userID, sessionID, query string) string {
	if sessionID == "" {
		return query
	}

	history, err := b.Messages.ListLatest(ctx, sessionID, uint64(b.MaxTurns*2))
	if err != nil {
		slog.Error("failed to load chat history", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		return query
	}

	var memoryLines []string
	if userID != "" && b.Memories != nil {
		memories, err := b.Memories.ListByUser(ctx, userID)
		if err != nil {
			slog.Warn("failed to load user memories", slog.String("error", err.Error()))
		}
		for _, m := range memories {
			memoryLines = append(memoryLines, fmt.Sprintf("%s: %s", m.Key, m.Value))
		}
	}

	if len(history) == 0 && len(memoryLines) == 0 {
		return query
	}

	historyLines := make([]string, 0, len(history))
	for _, msg := range history {
		historyLines = append(historyLines, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
	}

	// 历史超出 token 预算时丢最旧的行，当前提问永远保留
	budget := b.TokenBudget - utils.NumTokens(query) - sumTokens(memoryLines)
	for len(historyLines) > 0 && sumTokens(historyLines) > budget {
		historyLines = historyLines[1:]
	}

	var sb strings.Builder
	if len(memoryLines) > 0 {
		sb.WriteString("User profile:\n")
		sb.WriteString(strings.Join(memoryLines, "\n"))
		sb.WriteString("\n\n")
	}
	if len(historyLines) > 0 {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(strings.Join(historyLines, "\n"))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}

func sumTokens(lines []string) int {
	total := 0
	for _, line := range lines {
		total += utils.NumTokens(line)
	}
	return total
}
