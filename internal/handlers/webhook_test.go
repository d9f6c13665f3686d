package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
	"github.com/ytakahashi/taskboard/internal/services"
)

type fakeReplier struct {
	requests []*messaging_api.ReplyMessageRequest
}

func (f *fakeReplier) ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error) {
	f.requests = append(f.requests, req)
	return &messaging_api.ReplyMessageResponse{}, nil
}

func (f *fakeReplier) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.requests, "no reply was sent")
	msgs := f.requests[len(f.requests)-1].Messages
	require.Len(t, msgs, 1)
	text, ok := msgs[0].(*messaging_api.TextMessage)
	require.True(t, ok, "reply is %T, want *TextMessage", msgs[0])
	return text.Text
}

func newTestWebhook(t *testing.T) (*WebhookHandler, *fakeReplier, *services.TaskService) {
	t.Helper()

	repo, err := services.OpenSQLite(":memory:", logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	bot := &fakeReplier{}
	tasks := services.NewTaskService(repo)
	return NewWebhookHandler(bot, tasks, "channel-secret"), bot, tasks
}

func TestWebhook_AddAndList(t *testing.T) {
	h, bot, tasks := newTestWebhook(t)
	ctx := context.Background()
	user := chatUserID("U123")

	require.NoError(t, h.handleTextMessage(ctx, "r1", user, "add Buy milk"))
	assert.Contains(t, bot.lastText(t), "Buy milk")

	require.NoError(t, h.handleTextMessage(ctx, "r2", user, `ADD! "Pay rent"`))

	stored, err := tasks.List(ctx, user, filter.Filter{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "Pay rent", stored[0].Title)
	assert.True(t, stored[0].Important)

	require.NoError(t, h.handleTextMessage(ctx, "r3", user, "list"))
	last := bot.requests[len(bot.requests)-1]
	flex, ok := last.Messages[0].(*messaging_api.FlexMessage)
	require.True(t, ok, "list reply is %T, want *FlexMessage", last.Messages[0])
	assert.Equal(t, "Tasks: all (2)", flex.AltText)
}

func TestWebhook_DoneAndDelete(t *testing.T) {
	h, bot, tasks := newTestWebhook(t)
	ctx := context.Background()
	user := chatUserID("U123")

	tasks.Create(ctx, user, models.Draft{Title: "first"})
	tasks.Create(ctx, user, models.Draft{Title: "second"})

	// newest first, so #1 is "second"
	require.NoError(t, h.handleTextMessage(ctx, "r1", user, "done 1"))
	assert.Contains(t, bot.lastText(t), "second")

	completed, err := tasks.List(ctx, user, filter.Compose(filter.ViewCompleted, filter.Selection{}))
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "second", completed[0].Title)

	// the completed task drops out of the numbering
	require.NoError(t, h.handleTextMessage(ctx, "r2", user, "delete 1"))
	assert.Contains(t, bot.lastText(t), "first")

	require.NoError(t, h.handleTextMessage(ctx, "r3", user, "done 7"))
	assert.Contains(t, bot.lastText(t), "no task #7")
}

func TestWebhook_NumbersFollowLastList(t *testing.T) {
	h, bot, tasks := newTestWebhook(t)
	ctx := context.Background()
	user := chatUserID("U123")

	tasks.Create(ctx, user, models.Draft{Title: "urgent", Important: true})
	tasks.Create(ctx, user, models.Draft{Title: "someday"})

	require.NoError(t, h.handleTextMessage(ctx, "r1", user, "important"))
	require.NoError(t, h.handleTextMessage(ctx, "r2", user, "done 1"))
	assert.Contains(t, bot.lastText(t), "urgent")

	require.NoError(t, h.handleTextMessage(ctx, "r3", user, "completed"))
	require.NoError(t, h.handleTextMessage(ctx, "r4", user, "delete 1"))
	assert.Contains(t, bot.lastText(t), "urgent")

	remaining, err := tasks.List(ctx, user, filter.Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "someday", remaining[0].Title)

	// another user's numbering is unaffected
	other := chatUserID("U999")
	tasks.Create(ctx, other, models.Draft{Title: "theirs"})
	require.NoError(t, h.handleTextMessage(ctx, "r5", other, "done 1"))
	assert.Contains(t, bot.lastText(t), "theirs")

	require.NoError(t, h.handleTextMessage(ctx, "r6", user, "list"))
	require.NoError(t, h.handleTextMessage(ctx, "r7", user, "done 1"))
	assert.Contains(t, bot.lastText(t), "someday")
}

func TestWebhook_ClearAndPostback(t *testing.T) {
	h, bot, tasks := newTestWebhook(t)
	ctx := context.Background()
	user := chatUserID("U123")
	other := chatUserID("U999")

	task, err := tasks.Create(ctx, user, models.Draft{Title: "a"})
	require.NoError(t, err)
	tasks.Create(ctx, other, models.Draft{Title: "not mine"})

	require.NoError(t, h.handlePostback(ctx, "r1", other, "complete:"+task.ID))
	assert.Equal(t, "That task no longer exists.", bot.lastText(t))

	require.NoError(t, h.handlePostback(ctx, "r2", user, "complete:"+task.ID))

	require.NoError(t, h.handleTextMessage(ctx, "r3", user, "clear"))
	require.Len(t, bot.requests, 3)

	require.NoError(t, h.handlePostback(ctx, "r4", user, "delete_all:yes"))
	assert.Equal(t, "🗑️ Deleted all 1 tasks.", bot.lastText(t))

	remaining, err := tasks.List(ctx, other, filter.Filter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestWebhook_IgnoresUnknownText(t *testing.T) {
	h, bot, _ := newTestWebhook(t)

	require.NoError(t, h.handleTextMessage(context.Background(), "r1", chatUserID("U1"), "hello there"))
	assert.Empty(t, bot.requests)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	h, _, _ := newTestWebhook(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"destination":"x","events":[]}`))
	req.Header.Set("X-Line-Signature", "bogus")
	rec := httptest.NewRecorder()

	require.NoError(t, h.HandleWebhook(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
