package v1

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/curio-ai/curio/pkg/types"
)

type fakeMessageStore struct {
	messages []*types.ChatMessage
}

func (s *fakeMessageStore) Create(ctx context.Context, data types.ChatMessage) error {
	s.messages = append(s.messages, &data)
	return nil
}

func (s *fakeMessageStore) ListLatest(ctx context.Context, sessionID string, n uint64) ([]*types.ChatMessage, error) {
	var matched []*types.ChatMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			matched = append(matched, m)
		}
	}
	if uint64(len(matched)) > n {
		matched = matched[uint64(len(matched))-n:]
	}
	return matched, nil
}

func (s *fakeMessageStore) ListBySession(ctx context.Context, sessionID string) ([]*types.ChatMessage, error) {
	return s.ListLatest(ctx, sessionID, uint64(len(s.messages)))
}

type fakeMemoryStore struct {
	memories []*types.UserMemory
}

func (s *fakeMemoryStore) Upsert(ctx context.Context, data types.UserMemory) error {
	s.memories = append(s.memories, &data)
	return nil
}

func (s *fakeMemoryStore) ListByUser(ctx context.Context, userID string) ([]*types.UserMemory, error) {
	var matched []*types.UserMemory
	for _, m := range s.memories {
		if m.UserID == userID {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

func seedHistory(store *fakeMessageStore, sessionID string, turns int) {
	for i := 0; i < turns; i++ {
		store.messages = append(store.messages,
			&types.ChatMessage{SessionID: sessionID, Role: types.MESSAGE_ROLE_USER, Content: fmt.Sprintf("question %d", i), Sequence: int64(i*2 + 1)},
			&types.ChatMessage{SessionID: sessionID, Role: types.MESSAGE_ROLE_ASSISTANT, Content: fmt.Sprintf("answer %d", i), Sequence: int64(i*2 + 2)},
		)
	}
}

func TestContextBuilderWithoutSession(t *testing.T) {
	b := &ContextBuilder{Messages: &fakeMessageStore{}, MaxTurns: 8, TokenBudget: 2048}

	got := b.Build(context.Background(), "u1", "", "what is gravity?")
	assert.Equal(t, "what is gravity?", got)
}

func TestContextBuilderCarriesHistoryAndMemories(t *testing.T) {
	messages := &fakeMessageStore{}
	seedHistory(messages, "s1", 2)
	memories := &fakeMemoryStore{}
	_ = memories.Upsert(context.Background(), types.UserMemory{UserID: "u1", Key: "name", Value: "Alice"})

	b := &ContextBuilder{Messages: messages, Memories: memories, MaxTurns: 8, TokenBudget: 2048}
	got := b.Build(context.Background(), "u1", "s1", "and who discovered it?")

	assert.Contains(t, got, "User profile:\nname: Alice")
	assert.Contains(t, got, "Conversation so far:")
	assert.Contains(t, got, "question 1")
	assert.True(t, strings.HasSuffix(got, "Question: and who discovered it?"))
}

func TestContextBuilderDropsOldestOverBudget(t *testing.T) {
	messages := &fakeMessageStore{}
	seedHistory(messages, "s1", 6)

	// 预算小到装不下任何历史，但当前提问永远保留
	b := &ContextBuilder{Messages: messages, MaxTurns: 8, TokenBudget: 1}
	got := b.Build(context.Background(), "u1", "s1", "what about neptune?")

	assert.NotContains(t, got, "Conversation so far:")
	assert.True(t, strings.HasSuffix(got, "Question: what about neptune?"))
}

func TestContextBuilderRespectsMaxTurns(t *testing.T) {
	messages := &fakeMessageStore{}
	seedHistory(messages, "s1", 10)

	b := &ContextBuilder{Messages: messages, MaxTurns: 2, TokenBudget: 4096}
	got := b.Build(context.Background(), "u1", "s1", "go on")

	assert.NotContains(t, got, "question 7")
	assert.Contains(t, got, "question 8")
	assert.Contains(t, got, "question 9")
}
