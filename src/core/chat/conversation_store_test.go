package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"botforge-server/src/core/utils"
	"botforge-server/src/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testStore(t *testing.T) *ConversationStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewConversationStore(db, nil, utils.NewLogger("", "", "error"))
}

func TestEnsure_CreatesWithTitle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, err := store.Ensure(ctx, 7, "", "What is your refund policy for damaged items?")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if conv.ID == "" {
		t.Fatal("no id assigned")
	}
	if conv.BotID != 7 {
		t.Errorf("bot id = %d", conv.BotID)
	}
	if conv.Title != "What is your refund policy for damaged items?" {
		t.Errorf("title = %q", conv.Title)
	}

	// same id loads the existing row
	again, err := store.Ensure(ctx, 7, conv.ID, "another message")
	if err != nil {
		t.Fatalf("Ensure existing: %v", err)
	}
	if again.ID != conv.ID || again.Title != conv.Title {
		t.Errorf("existing conversation not reused: %+v", again)
	}
}

func TestEnsure_UnknownIDCreatesFresh(t *testing.T) {
	store := testStore(t)

	conv, err := store.Ensure(context.Background(), 7, "missing-id", "hello")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if conv.ID == "missing-id" {
		t.Error("unknown id must not be adopted")
	}
}

func TestTitleFromContent_Truncation(t *testing.T) {
	long := strings.Repeat("a", 200)
	if got := TitleFromContent(long); len([]rune(got)) != 60 {
		t.Errorf("title length = %d, want 60", len([]rune(got)))
	}
	// rune-safe: multibyte text must not be cut mid-character
	got := TitleFromContent(strings.Repeat("ü", 100))
	if len([]rune(got)) != 60 || !strings.HasSuffix(got, "ü") {
		t.Errorf("multibyte title = %q", got)
	}
	if got := TitleFromContent("  short  "); got != "short" {
		t.Errorf("short title = %q", got)
	}
}

func TestAppendExchange_AndRecent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, _ := store.Ensure(ctx, 7, "", "first")
	if outcome := store.AppendExchange(ctx, conv.ID, "first", "reply one"); outcome != LogOK {
		t.Fatalf("outcome = %v, want LogOK", outcome)
	}
	store.AppendExchange(ctx, conv.ID, "second", "reply two")

	recent, err := store.Recent(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d", len(recent))
	}
	// chronological order, newest pair last
	if recent[0].Content != "second" || recent[1].Content != "reply two" {
		t.Errorf("recent = [%q, %q]", recent[0].Content, recent[1].Content)
	}

	all, _ := store.Messages(ctx, conv.ID)
	if len(all) != 4 {
		t.Errorf("total messages = %d, want 4", len(all))
	}
}

func TestAppendExchange_PartialFailureLeavesNoRows(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, _ := store.Ensure(ctx, 7, "", "hi")
	// messages insert fine but the recency bump fails, so the attempt
	// must roll back as a whole on both handles
	if err := store.db.Migrator().DropTable(&models.Conversation{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if outcome := store.AppendExchange(ctx, conv.ID, "hi", "there"); outcome != LogFailed {
		t.Errorf("outcome = %v, want LogFailed", outcome)
	}
	var n int64
	store.db.Model(&models.Message{}).Count(&n)
	if n != 0 {
		t.Errorf("%d message rows persisted by rolled-back attempts", n)
	}
}

func TestAppendExchange_FallbackRetriesWithFreshIDs(t *testing.T) {
	primary := testStore(t)
	elevated := testStore(t)
	store := NewConversationStore(primary.db, elevated.db, utils.NewLogger("", "", "error"))
	ctx := context.Background()

	conv, err := store.Ensure(ctx, 7, "", "hi")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := elevated.db.Create(&models.Conversation{ID: conv.ID, BotID: 7}).Error; err != nil {
		t.Fatalf("seed elevated conversation: %v", err)
	}
	// occupy the ids the rolled-back primary attempt will assign
	other, _ := elevated.Ensure(ctx, 8, "", "other")
	elevated.AppendExchange(ctx, other.ID, "a", "b")

	// primary inserts the turns, then fails the bump and rolls back
	if err := primary.db.Migrator().DropTable(&models.Conversation{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if outcome := store.AppendExchange(ctx, conv.ID, "hi", "there"); outcome != LogDegraded {
		t.Errorf("outcome = %v, want LogDegraded", outcome)
	}
	msgs, err := elevated.Messages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hi" || msgs[1].Content != "there" {
		t.Errorf("elevated log = %+v, want the user/assistant pair", msgs)
	}
	var n int64
	primary.db.Model(&models.Message{}).Count(&n)
	if n != 0 {
		t.Errorf("%d rows left on the primary handle", n)
	}
}

func TestAppendExchange_DoubleFailure(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, _ := store.Ensure(ctx, 7, "", "hi")
	// drop the messages table so both handles fail
	if err := store.db.Migrator().DropTable(&models.Message{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if outcome := store.AppendExchange(ctx, conv.ID, "hi", "there"); outcome != LogFailed {
		t.Errorf("outcome = %v, want LogFailed", outcome)
	}
}

func TestOperatorMessage_Lifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, _ := store.Ensure(ctx, 7, "", "hi")
	msg, err := store.InsertOperatorMessage(ctx, conv.ID, "a human checked this")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if msg.Role != models.RoleAssistant {
		t.Errorf("role = %q", msg.Role)
	}
	if !msg.IsOperatorAuthored() {
		t.Error("marker missing after insert")
	}
	if msg.PlainContent() != "a human checked this" {
		t.Errorf("plain content = %q", msg.PlainContent())
	}

	edited, err := store.UpdateOperatorMessage(ctx, msg.ID, "corrected text")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !edited.IsOperatorAuthored() || edited.PlainContent() != "corrected text" {
		t.Errorf("edited = %q", edited.Content)
	}

	if err := store.DeleteOperatorMessage(ctx, msg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.operatorMessage(ctx, msg.ID); err != gorm.ErrRecordNotFound {
		t.Errorf("message still present: %v", err)
	}
}

func TestOperatorMessage_RejectsModelMessages(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, _ := store.Ensure(ctx, 7, "", "hi")
	store.AppendExchange(ctx, conv.ID, "hi", "model reply")
	msgs, _ := store.Messages(ctx, conv.ID)
	modelMsg := msgs[len(msgs)-1]

	if _, err := store.UpdateOperatorMessage(ctx, modelMsg.ID, "tamper"); !errors.Is(err, ErrNotOperatorMessage) {
		t.Errorf("update err = %v, want ErrNotOperatorMessage", err)
	}
	if err := store.DeleteOperatorMessage(ctx, modelMsg.ID); !errors.Is(err, ErrNotOperatorMessage) {
		t.Errorf("delete err = %v, want ErrNotOperatorMessage", err)
	}
}

func TestDelete_RemovesMessages(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	conv, _ := store.Ensure(ctx, 7, "", "hi")
	store.AppendExchange(ctx, conv.ID, "hi", "there")

	if err := store.Delete(ctx, conv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	msgs, _ := store.Messages(ctx, conv.ID)
	if len(msgs) != 0 {
		t.Errorf("%d messages left behind", len(msgs))
	}
	if _, err := store.Get(ctx, 7, conv.ID); err != gorm.ErrRecordNotFound {
		t.Errorf("conversation still present: %v", err)
	}
}
