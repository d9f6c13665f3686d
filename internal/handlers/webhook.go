package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/ytakahashi/taskboard/internal/filter"
	"github.com/ytakahashi/taskboard/internal/models"
	"github.com/ytakahashi/taskboard/internal/services"
)

// Replier sends reply messages back to the chat.
type Replier interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

// WebhookHandler lets a LINE user manage their tasks through chat commands.
type WebhookHandler struct {
	bot           Replier
	tasks         *services.TaskService
	channelSecret string

	// last list each user was shown; "done n" and "delete n" count in it
	mu    sync.Mutex
	views map[string]filter.View
}

func NewWebhookHandler(bot Replier, tasks *services.TaskService, channelSecret string) *WebhookHandler {
	return &WebhookHandler{
		bot:           bot,
		tasks:         tasks,
		channelSecret: channelSecret,
		views:         make(map[string]filter.View),
	}
}

func (h *WebhookHandler) lastView(userID string) filter.View {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.views[userID]
}

func (h *WebhookHandler) setLastView(userID string, view filter.View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if view == filter.ViewAll {
		delete(h.views, userID)
		return
	}
	h.views[userID] = view
}

var (
	addPattern    = regexp.MustCompile(`(?i)^(?:add|todo)(!)?[\s　]+(.+)$`)
	donePattern   = regexp.MustCompile(`(?i)^done[\s　]+(\d+)$`)
	deletePattern = regexp.MustCompile(`(?i)^(?:delete|del)[\s　]+(\d+)$`)
)

// chatUserID namespaces LINE users so they never collide with web accounts.
func chatUserID(lineUserID string) string {
	if lineUserID == "" {
		return ""
	}
	return "line:" + lineUserID
}

func getUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request())
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			log.Println("Invalid signature")
			return c.NoContent(http.StatusBadRequest)
		}
		log.Printf("Parse request error: %v", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	ctx := c.Request().Context()
	for _, event := range cb.Events {
		switch e := event.(type) {
		case webhook.MessageEvent:
			switch message := e.Message.(type) {
			case webhook.TextMessageContent:
				userID := chatUserID(getUserID(e.Source))
				if err := h.handleTextMessage(ctx, e.ReplyToken, userID, message.Text); err != nil {
					log.Printf("Error handling text message: %v", err)
				}
			}
		case webhook.PostbackEvent:
			userID := chatUserID(getUserID(e.Source))
			if err := h.handlePostback(ctx, e.ReplyToken, userID, e.Postback.Data); err != nil {
				log.Printf("Error handling postback: %v", err)
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) handleTextMessage(ctx context.Context, replyToken, userID, text string) error {
	if userID == "" {
		return nil
	}
	text = strings.TrimSpace(text)

	if matches := addPattern.FindStringSubmatch(text); matches != nil {
		draft := models.Draft{
			Title:     strings.Trim(strings.TrimSpace(matches[2]), `"“”`),
			Important: matches[1] == "!",
		}
		return h.addTask(ctx, replyToken, userID, draft)
	}

	if matches := donePattern.FindStringSubmatch(text); matches != nil {
		return h.completeNth(ctx, replyToken, userID, matches[1])
	}

	if matches := deletePattern.FindStringSubmatch(text); matches != nil {
		return h.deleteNth(ctx, replyToken, userID, matches[1])
	}

	switch strings.ToLower(text) {
	case "list":
		return h.showTaskList(ctx, replyToken, userID, filter.ViewAll)
	case "important":
		return h.showTaskList(ctx, replyToken, userID, filter.ViewImportant)
	case "completed":
		return h.showTaskList(ctx, replyToken, userID, filter.ViewCompleted)
	case "clear":
		return h.askDeleteAllConfirmation(replyToken)
	case "help":
		return h.showHelp(replyToken)
	}

	// unrecognised messages get no reply
	return nil
}

func (h *WebhookHandler) handlePostback(ctx context.Context, replyToken, userID, data string) error {
	if userID == "" {
		return nil
	}

	action, arg, ok := strings.Cut(data, ":")
	if !ok {
		return nil
	}

	switch action {
	case "complete":
		if err := h.tasks.Complete(ctx, userID, arg); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return h.replyMessage(replyToken, "That task no longer exists.")
			}
			log.Printf("Failed to complete task %s for user %s: %v", arg, userID, err)
			return h.replyMessage(replyToken, "Failed to complete the task.")
		}
		return h.replyMessage(replyToken, "🎉 Task completed!")

	case "delete_all":
		return h.handleDeleteAllConfirmation(ctx, replyToken, userID, arg)
	}

	return nil
}

func (h *WebhookHandler) addTask(ctx context.Context, replyToken, userID string, draft models.Draft) error {
	task, err := h.tasks.Create(ctx, userID, draft)
	if err != nil {
		if isValidationError(err) {
			return h.replyMessage(replyToken, "Please give the task a title.\nExample: add Buy milk")
		}
		log.Printf("Failed to create task for user %s: %v", userID, err)
		return h.replyMessage(replyToken, "Failed to add the task.")
	}

	marker := ""
	if task.Important {
		marker = " ⭐"
	}
	return h.replyMessage(replyToken, fmt.Sprintf("✅ Added \"%s\"%s.", task.Title, marker))
}

// openTasks lists the tasks still worth showing in chat, newest first.
func (h *WebhookHandler) openTasks(ctx context.Context, userID string, view filter.View) ([]models.Task, error) {
	tasks, err := h.tasks.List(ctx, userID, filter.Compose(view, filter.Selection{}))
	if err != nil {
		return nil, err
	}
	if view == filter.ViewCompleted {
		return tasks, nil
	}

	open := tasks[:0]
	for _, t := range tasks {
		if t.Status == models.StatusCompleted || t.Status == models.StatusSkip {
			continue
		}
		open = append(open, t)
	}
	return open, nil
}

func (h *WebhookHandler) nthTask(ctx context.Context, userID, n string) (*models.Task, error) {
	idx, err := strconv.Atoi(n)
	if err != nil {
		return nil, nil
	}
	tasks, err := h.openTasks(ctx, userID, h.lastView(userID))
	if err != nil {
		return nil, err
	}
	if idx < 1 || idx > len(tasks) {
		return nil, nil
	}
	return &tasks[idx-1], nil
}

func (h *WebhookHandler) completeNth(ctx context.Context, replyToken, userID, n string) error {
	task, err := h.nthTask(ctx, userID, n)
	if err != nil {
		log.Printf("Failed to list tasks for user %s: %v", userID, err)
		return h.replyMessage(replyToken, "Failed to complete the task.")
	}
	if task == nil {
		return h.replyMessage(replyToken, fmt.Sprintf("There is no task #%s. Send \"list\" to see your tasks.", n))
	}

	if err := h.tasks.Complete(ctx, userID, task.ID); err != nil {
		log.Printf("Failed to complete task %s for user %s: %v", task.ID, userID, err)
		return h.replyMessage(replyToken, "Failed to complete the task.")
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🎉 Completed \"%s\".", task.Title))
}

func (h *WebhookHandler) deleteNth(ctx context.Context, replyToken, userID, n string) error {
	task, err := h.nthTask(ctx, userID, n)
	if err != nil {
		log.Printf("Failed to list tasks for user %s: %v", userID, err)
		return h.replyMessage(replyToken, "Failed to delete the task.")
	}
	if task == nil {
		return h.replyMessage(replyToken, fmt.Sprintf("There is no task #%s. Send \"list\" to see your tasks.", n))
	}

	if err := h.tasks.Remove(ctx, userID, task.ID); err != nil {
		log.Printf("Failed to delete task %s for user %s: %v", task.ID, userID, err)
		return h.replyMessage(replyToken, "Failed to delete the task.")
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🗑️ Deleted \"%s\".", task.Title))
}

func (h *WebhookHandler) showTaskList(ctx context.Context, replyToken, userID string, view filter.View) error {
	tasks, err := h.openTasks(ctx, userID, view)
	if err != nil {
		log.Printf("Failed to list tasks for user %s: %v", userID, err)
		return h.replyMessage(replyToken, "Failed to fetch your tasks.")
	}

	h.setLastView(userID, view)

	if len(tasks) == 0 {
		return h.replyMessage(replyToken, "No tasks here.")
	}

	return h.reply(replyToken, h.createTaskListFlexMessage(view, tasks))
}

func (h *WebhookHandler) createTaskListFlexMessage(view filter.View, tasks []models.Task) *messaging_api.FlexMessage {
	var contents []messaging_api.FlexComponentInterface

	for i, task := range tasks {
		title := fmt.Sprintf("%d. %s", i+1, task.Title)
		if task.Important {
			title += " ⭐"
		}

		box := &messaging_api.FlexBox{
			Layout: "vertical",
			Contents: []messaging_api.FlexComponentInterface{
				&messaging_api.FlexText{
					Text:   title,
					Weight: "bold",
					Size:   "md",
				},
				&messaging_api.FlexText{
					Text:  string(task.Status),
					Size:  "sm",
					Color: "#999999",
				},
			},
			Margin:  "md",
			Spacing: "sm",
		}

		if task.Status != models.StatusCompleted {
			box.Contents = append(box.Contents, &messaging_api.FlexButton{
				Action: &messaging_api.PostbackAction{
					Label: "Done",
					Data:  fmt.Sprintf("complete:%s", task.ID),
				},
				Style: "primary",
				Color: "#1DB446",
			})
		}

		if i > 0 {
			box.PaddingTop = "md"
		}

		contents = append(contents, box)
	}

	header := fmt.Sprintf("Tasks: %s (%d)", view, len(tasks))
	return &messaging_api.FlexMessage{
		AltText: header,
		Contents: &messaging_api.FlexBubble{
			Header: &messaging_api.FlexBox{
				Layout: "vertical",
				Contents: []messaging_api.FlexComponentInterface{
					&messaging_api.FlexText{
						Text:   header,
						Weight: "bold",
						Size:   "xl",
					},
				},
				PaddingAll: "md",
			},
			Body: &messaging_api.FlexBox{
				Layout:   "vertical",
				Contents: contents,
				Spacing:  "md",
			},
		},
	}
}

func (h *WebhookHandler) askDeleteAllConfirmation(replyToken string) error {
	quickReply := &messaging_api.QuickReply{
		Items: []messaging_api.QuickReplyItem{
			{
				Action: &messaging_api.PostbackAction{
					Label:       "Yes",
					Data:        "delete_all:yes",
					DisplayText: "Yes",
				},
			},
			{
				Action: &messaging_api.PostbackAction{
					Label:       "No",
					Data:        "delete_all:no",
					DisplayText: "No",
				},
			},
		},
	}

	return h.reply(replyToken, &messaging_api.TextMessage{
		Text:       "⚠️ Really delete all of your tasks?",
		QuickReply: quickReply,
	})
}

func (h *WebhookHandler) handleDeleteAllConfirmation(ctx context.Context, replyToken, userID, confirmation string) error {
	if confirmation != "yes" {
		return h.replyMessage(replyToken, "Cancelled.")
	}

	count, err := h.tasks.RemoveAll(ctx, userID)
	if err != nil {
		log.Printf("Failed to delete all tasks for user %s: %v", userID, err)
		return h.replyMessage(replyToken, "Failed to delete your tasks.")
	}

	if count == 0 {
		return h.replyMessage(replyToken, "There was nothing to delete.")
	}

	return h.replyMessage(replyToken, fmt.Sprintf("🗑️ Deleted all %d tasks.", count))
}

func (h *WebhookHandler) showHelp(replyToken string) error {
	helpText := `📝 Task bot

add <title>     add a task
add! <title>    add an important task
list            show open tasks
important       show important tasks
completed       show completed tasks
done <n>        complete task n from the last list
delete <n>      delete task n from the last list
clear           delete every task
help            show this message`

	return h.replyMessage(replyToken, helpText)
}

func (h *WebhookHandler) replyMessage(replyToken, text string) error {
	return h.reply(replyToken, &messaging_api.TextMessage{
		Text: text,
	})
}

func (h *WebhookHandler) reply(replyToken string, message messaging_api.MessageInterface) error {
	_, err := h.bot.ReplyMessage(
		&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   []messaging_api.MessageInterface{message},
		},
	)
	if err != nil {
		log.Printf("Failed to send reply message: %v", err)
	}
	return err
}
