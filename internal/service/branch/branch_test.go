package branch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/repository"
	"github.com/ashwinyue/next-chat/internal/service/types"
	"github.com/ashwinyue/next-chat/internal/testutil"
)

// failingStore 事务写入失败
type failingStore struct {
	repository.ChatStore
}

func (f *failingStore) CreateChatWithMessages(ctx context.Context, chat *model.Chat, msgs []*model.Message) error {
	return errors.New("disk full")
}

func prefix(roles ...string) []types.IncomingMessage {
	out := make([]types.IncomingMessage, 0, len(roles))
	for i, r := range roles {
		out = append(out, types.IncomingMessage{
			ID:      uuid.NewString(),
			Role:    r,
			Content: r + " turn " + string(rune('1'+i)),
		})
	}
	return out
}

func TestBranch_CopiesPrefix(t *testing.T) {
	db := testutil.NewTestDB(t)
	chats := repository.NewChatRepository(db)
	svc := NewService(chats, nil)
	ctx := context.Background()
	source := testutil.SeedChat(t, db, "u1", "Trip plan", model.RoleUser, model.RoleAssistant, model.RoleUser, model.RoleAssistant)

	req := &types.BranchRequest{
		ID:       uuid.NewString(),
		ParentID: source.PubID,
		Messages: prefix(model.RoleUser, model.RoleAssistant),
	}
	chat, err := svc.Branch(ctx, "u1", req)
	if err != nil {
		t.Fatalf("Branch() error = %v", err)
	}

	if chat.Title != "Branch - Trip plan" {
		t.Errorf("title = %q", chat.Title)
	}
	if chat.ParentID == nil || *chat.ParentID != source.ID {
		t.Errorf("parentId = %v, want %d", chat.ParentID, source.ID)
	}

	msgs, err := chats.ListMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	for i, m := range msgs {
		if m.Role != req.Messages[i].Role || m.Content != req.Messages[i].Content {
			t.Errorf("message %d = %s %q, want %s %q", i, m.Role, m.Content, req.Messages[i].Role, req.Messages[i].Content)
		}
	}

	// 源会话不受影响
	srcMsgs, _ := chats.ListMessages(ctx, source.ID)
	if len(srcMsgs) != 4 {
		t.Errorf("source messages = %d, want 4", len(srcMsgs))
	}
}

func TestBranch_Errors(t *testing.T) {
	db := testutil.NewTestDB(t)
	chats := repository.NewChatRepository(db)
	svc := NewService(chats, nil)
	source := testutil.SeedChat(t, db, "u1", "mine", model.RoleUser, model.RoleAssistant)
	existing := testutil.SeedChat(t, db, "u1", "taken")

	tests := []struct {
		name   string
		userID string
		req    *types.BranchRequest
		check  func(error) bool
	}{
		{
			name:   "unknown parent",
			userID: "u1",
			req:    &types.BranchRequest{ID: uuid.NewString(), ParentID: uuid.NewString(), Messages: prefix(model.RoleUser, model.RoleAssistant)},
			check:  errs.IsNotFound,
		},
		{
			name:   "parent owned by another user",
			userID: "u2",
			req:    &types.BranchRequest{ID: uuid.NewString(), ParentID: source.PubID, Messages: prefix(model.RoleUser, model.RoleAssistant)},
			check:  errs.IsNotFound,
		},
		{
			name:   "id already used",
			userID: "u1",
			req:    &types.BranchRequest{ID: existing.PubID, ParentID: source.PubID, Messages: prefix(model.RoleUser, model.RoleAssistant)},
			check:  errs.IsValidation,
		},
		{
			name:   "prefix ends with user",
			userID: "u1",
			req:    &types.BranchRequest{ID: uuid.NewString(), ParentID: source.PubID, Messages: prefix(model.RoleUser)},
			check:  errs.IsValidation,
		},
		{
			name:   "empty prefix",
			userID: "u1",
			req:    &types.BranchRequest{ID: uuid.NewString(), ParentID: source.PubID},
			check:  errs.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.CountRows(t, db, &model.Chat{})
			_, err := svc.Branch(context.Background(), tt.userID, tt.req)
			if err == nil || !tt.check(err) {
				t.Fatalf("Branch() error = %v", err)
			}
			if after := testutil.CountRows(t, db, &model.Chat{}); after != before {
				t.Errorf("chats = %d, want %d", after, before)
			}
		})
	}
}

func TestBranch_PersistenceFailure(t *testing.T) {
	db := testutil.NewTestDB(t)
	source := testutil.SeedChat(t, db, "u1", "mine", model.RoleUser, model.RoleAssistant)
	svc := NewService(&failingStore{ChatStore: repository.NewChatRepository(db)}, nil)

	_, err := svc.Branch(context.Background(), "u1", &types.BranchRequest{
		ID:       uuid.NewString(),
		ParentID: source.PubID,
		Messages: prefix(model.RoleUser, model.RoleAssistant),
	})
	if !errors.Is(err, errs.ErrPersistence) {
		t.Fatalf("Branch() error = %v, want persistence error", err)
	}
}
