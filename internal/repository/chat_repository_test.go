package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/model"
	"github.com/ashwinyue/next-chat/internal/testutil"
	"github.com/google/uuid"
)

func TestChatRepository_GetChat_Ownership(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	chat := testutil.SeedChat(t, db, "user-1", "hello")

	got, err := repo.GetChat(ctx, "user-1", chat.PubID)
	if err != nil {
		t.Fatalf("GetChat() error = %v", err)
	}
	if got.ID != chat.ID {
		t.Errorf("GetChat() id = %d, want %d", got.ID, chat.ID)
	}

	if _, err := repo.GetChat(ctx, "user-2", chat.PubID); !errs.IsNotFound(err) {
		t.Errorf("GetChat() other user error = %v, want not found", err)
	}
	if _, err := repo.GetChat(ctx, "user-1", uuid.NewString()); !errs.IsNotFound(err) {
		t.Errorf("GetChat() missing error = %v, want not found", err)
	}
}

func TestChatRepository_ListChats(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		testutil.SeedChat(t, db, "user-1", fmt.Sprintf("chat %02d", i))
	}
	testutil.SeedChat(t, db, "user-1", "Golang tips")
	testutil.SeedChat(t, db, "user-2", "golang other")

	tests := []struct {
		name      string
		page      int
		search    string
		wantLen   int
		wantPages int
		wantFirst string
	}{
		{"first page newest first", 1, "", 10, 2, "Golang tips"},
		{"second page", 2, "", 3, 2, ""},
		{"page below one", 0, "", 10, 2, "Golang tips"},
		{"search case insensitive", 1, "golang", 1, 1, "Golang tips"},
		{"search no match", 1, "nothing", 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chats, pages, err := repo.ListChats(ctx, "user-1", tt.page, tt.search)
			if err != nil {
				t.Fatalf("ListChats() error = %v", err)
			}
			if len(chats) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(chats), tt.wantLen)
			}
			if pages != tt.wantPages {
				t.Errorf("pages = %d, want %d", pages, tt.wantPages)
			}
			if tt.wantFirst != "" && chats[0].Title != tt.wantFirst {
				t.Errorf("first = %q, want %q", chats[0].Title, tt.wantFirst)
			}
		})
	}
}

func TestChatRepository_ListChats_LiteralWildcards(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	for _, title := range []string{"50% off", "500 deals", "snake_case", "snakeXcase", `back\slash`} {
		testutil.SeedChat(t, db, "user-1", title)
	}

	tests := []struct {
		search string
		want   string
	}{
		{"50%", "50% off"},
		{"e_c", "snake_case"},
		{`k\s`, `back\slash`},
	}
	for _, tt := range tests {
		chats, _, err := repo.ListChats(ctx, "user-1", 1, tt.search)
		if err != nil {
			t.Fatalf("ListChats(%q) error = %v", tt.search, err)
		}
		if len(chats) != 1 || chats[0].Title != tt.want {
			t.Errorf("ListChats(%q) = %d chats, want only %q", tt.search, len(chats), tt.want)
		}
	}
}

func TestChatRepository_MessageExists(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	chat := testutil.SeedChat(t, db, "user-1", "hello")
	msg := &model.Message{
		PubID:       uuid.NewString(),
		ChatID:      chat.ID,
		Role:        model.RoleUser,
		Content:     "hi",
		Parts:       model.EncodeParts(nil),
		Attachments: model.EncodeAttachments(nil),
	}
	if err := repo.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	if ok, err := repo.MessageExists(ctx, msg.PubID); err != nil || !ok {
		t.Errorf("MessageExists(existing) = %v, %v", ok, err)
	}
	if ok, err := repo.MessageExists(ctx, uuid.NewString()); err != nil || ok {
		t.Errorf("MessageExists(unknown) = %v, %v", ok, err)
	}
}

func TestChatRepository_DeleteChat_Cascade(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	chat := testutil.SeedChat(t, db, "user-1", "t", model.RoleUser, model.RoleAssistant)
	keep := testutil.SeedChat(t, db, "user-1", "keep", model.RoleUser)

	if err := repo.DeleteChat(ctx, "user-2", chat.PubID); !errs.IsNotFound(err) {
		t.Fatalf("DeleteChat() other user error = %v, want not found", err)
	}
	if err := repo.DeleteChat(ctx, "user-1", chat.PubID); err != nil {
		t.Fatalf("DeleteChat() error = %v", err)
	}
	if err := repo.DeleteChat(ctx, "user-1", chat.PubID); !errs.IsNotFound(err) {
		t.Errorf("DeleteChat() twice error = %v, want not found", err)
	}

	msgs, _ := repo.ListMessages(ctx, chat.ID)
	if len(msgs) != 0 {
		t.Errorf("messages left = %d, want 0", len(msgs))
	}
	kept, _ := repo.ListMessages(ctx, keep.ID)
	if len(kept) != 1 {
		t.Errorf("other chat messages = %d, want 1", len(kept))
	}
}

func TestChatRepository_AppendAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	chat := &model.Chat{PubID: uuid.NewString(), UserID: "user-1"}
	if err := repo.CreateChat(ctx, chat); err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	if _, ok, err := repo.LastUserMessageID(ctx, chat.ID); err != nil || ok {
		t.Fatalf("LastUserMessageID() on empty chat = %v, %v", ok, err)
	}

	userPub := uuid.NewString()
	msgs := []*model.Message{
		{PubID: userPub, ChatID: chat.ID, Role: model.RoleUser, Content: "hi"},
		{PubID: uuid.NewString(), ChatID: chat.ID, Role: model.RoleAssistant, Content: "hello",
			Parts: model.EncodeParts([]model.Part{{Type: model.PartTypeText, Text: "hello"}})},
	}
	if err := repo.AppendMessages(ctx, msgs); err != nil {
		t.Fatalf("AppendMessages() error = %v", err)
	}

	got, err := repo.ListMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(got) != 2 || got[0].Role != model.RoleUser || got[1].Role != model.RoleAssistant {
		t.Fatalf("ListMessages() = %+v", got)
	}
	if got[0].ID >= got[1].ID {
		t.Errorf("ids not increasing: %d, %d", got[0].ID, got[1].ID)
	}
	if parts := got[1].DecodeParts(); len(parts) != 1 || parts[0].Text != "hello" {
		t.Errorf("parts = %+v", parts)
	}

	last, ok, err := repo.LastUserMessageID(ctx, chat.ID)
	if err != nil || !ok || last != userPub {
		t.Errorf("LastUserMessageID() = %q, %v, %v; want %q", last, ok, err, userPub)
	}
}

func TestChatRepository_CreateChatWithMessages(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	chat := &model.Chat{PubID: uuid.NewString(), UserID: "user-1", Title: "Branch - x"}
	msgs := []*model.Message{
		{PubID: uuid.NewString(), Role: model.RoleUser, Content: "q"},
		{PubID: uuid.NewString(), Role: model.RoleAssistant, Content: "a"},
	}
	if err := repo.CreateChatWithMessages(ctx, chat, msgs); err != nil {
		t.Fatalf("CreateChatWithMessages() error = %v", err)
	}
	got, _ := repo.ListMessages(ctx, chat.ID)
	if len(got) != 2 || got[1].Content != "a" {
		t.Errorf("messages = %+v", got)
	}

	// 重复的 pubId 整体回滚
	dup := &model.Chat{PubID: uuid.NewString(), UserID: "user-1"}
	err := repo.CreateChatWithMessages(ctx, dup, []*model.Message{{PubID: msgs[0].PubID, Role: model.RoleUser}})
	if err == nil {
		t.Fatal("expected duplicate message pubId error")
	}
	if _, err := repo.GetChatByPubID(ctx, dup.PubID); !errs.IsNotFound(err) {
		t.Errorf("chat should have been rolled back, got %v", err)
	}
}

func TestChatRepository_UpdateTitle(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	chat := testutil.SeedChat(t, db, "user-1", "")
	if err := repo.UpdateTitle(ctx, chat.ID, "New title"); err != nil {
		t.Fatalf("UpdateTitle() error = %v", err)
	}
	got, _ := repo.GetChat(ctx, "user-1", chat.PubID)
	if got.Title != "New title" {
		t.Errorf("title = %q", got.Title)
	}
}
