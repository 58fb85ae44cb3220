package handlers

import (
	"context"

	"chatcore/apperrors"
	"chatcore/services/directory"
	"chatcore/services/messages"
	"chatcore/storage"

	"github.com/gofiber/fiber/v2"
)

// recentTailSize matches the cache's per-chat retention
const recentTailSize = 100

type createDirectRequest struct {
	UserA string `json:"userA"`
	UserB string `json:"userB"`
}

type createGroupRequest struct {
	CreatorID string   `json:"creatorId"`
	MemberIDs []string `json:"memberIds"`
	Name      string   `json:"name"`
}

type chatSummary struct {
	directory.Chat
	UnreadCount int `json:"unreadCount"`
}

// RecentSource serves a chat's cached message tail. Implemented by the
// Redis cache; optional.
type RecentSource interface {
	Recent(ctx context.Context, chatID string) ([]messages.Message, error)
}

// ChatHandler serves the REST query surface. Real-time traffic never goes
// through here; this is the read/bootstrap side used by clients on page load.
type ChatHandler struct {
	dir      *directory.Directory
	store    *messages.Store
	notifier *storage.Notifier
	recent   RecentSource
}

func NewChatHandler(dir *directory.Directory, store *messages.Store, notifier *storage.Notifier, recent RecentSource) *ChatHandler {
	return &ChatHandler{
		dir:      dir,
		store:    store,
		notifier: notifier,
		recent:   recent,
	}
}

// RegisterRoutes mounts the query surface under the given router group
func (h *ChatHandler) RegisterRoutes(api fiber.Router) {
	api.Post("/chats/direct", h.CreateDirect)
	api.Post("/chats/group", h.CreateGroup)
	api.Get("/chats", h.ListChats)
	api.Get("/chats/:id/messages", h.ListMessages)
	api.Get("/chats/:id/recent", h.RecentMessages)
	api.Get("/chats/:id/members", h.ListMembers)
	api.Get("/unread", h.UnreadCounts)
}

// CreateDirect returns the one-on-one chat for a user pair, creating it when
// the pair has none. Calling it twice, in either argument order, yields the
// same chat.
func (h *ChatHandler) CreateDirect(c *fiber.Ctx) error {
	var req createDirectRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("Malformed request body").WithInternal(err)
	}

	chat, created, err := h.dir.CreateOneOnOne(req.UserA, req.UserB)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if created {
		h.notifier.ChatCreated(chat)
		status = fiber.StatusCreated
	}

	return c.Status(status).JSON(fiber.Map{
		"chat":    chat,
		"created": created,
	})
}

// CreateGroup creates a group chat from a creator and a member list
func (h *ChatHandler) CreateGroup(c *fiber.Ctx) error {
	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("Malformed request body").WithInternal(err)
	}

	chat, err := h.dir.CreateGroup(req.CreatorID, req.MemberIDs, req.Name)
	if err != nil {
		return err
	}

	h.notifier.ChatCreated(chat)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"chat": chat,
	})
}

// ListChats returns the user's chats, most recently active first, each with
// its unread count.
func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return apperrors.NewInvalidArgument("Query parameter userId is required")
	}

	chats := h.dir.ChatsForUser(userID)

	summaries := make([]chatSummary, 0, len(chats))
	for _, chat := range chats {
		unread, err := h.store.UnreadCount(chat.ID, userID)
		if err != nil {
			unread = 0
		}
		summaries = append(summaries, chatSummary{Chat: chat, UnreadCount: unread})
	}

	return c.JSON(fiber.Map{
		"chats": summaries,
	})
}

// ListMessages returns a chat's full message log in send order. Gated on
// membership like every chat-scoped read.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	chatID := c.Params("id")
	userID := c.Query("userId")
	if userID == "" {
		return apperrors.NewInvalidArgument("Query parameter userId is required")
	}

	if !h.dir.Exists(chatID) {
		return apperrors.NewChatNotFound(chatID)
	}
	if !h.dir.IsMember(chatID, userID) {
		return apperrors.NewNotMember(chatID, userID)
	}

	msgs, err := h.store.List(chatID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"chatId":   chatID,
		"messages": msgs,
	})
}

// RecentMessages returns the tail of a chat's log, serving from the cache
// when one is configured and it has the chat, otherwise from the
// authoritative store.
func (h *ChatHandler) RecentMessages(c *fiber.Ctx) error {
	chatID := c.Params("id")
	userID := c.Query("userId")
	if userID == "" {
		return apperrors.NewInvalidArgument("Query parameter userId is required")
	}

	if !h.dir.Exists(chatID) {
		return apperrors.NewChatNotFound(chatID)
	}
	if !h.dir.IsMember(chatID, userID) {
		return apperrors.NewNotMember(chatID, userID)
	}

	if h.recent != nil {
		if msgs, err := h.recent.Recent(c.Context(), chatID); err == nil && len(msgs) > 0 {
			return c.JSON(fiber.Map{
				"chatId":   chatID,
				"messages": msgs,
				"source":   "cache",
			})
		}
	}

	msgs, err := h.store.List(chatID)
	if err != nil {
		return err
	}
	if len(msgs) > recentTailSize {
		msgs = msgs[len(msgs)-recentTailSize:]
	}

	return c.JSON(fiber.Map{
		"chatId":   chatID,
		"messages": msgs,
		"source":   "store",
	})
}

// ListMembers returns a chat's members in join order
func (h *ChatHandler) ListMembers(c *fiber.Ctx) error {
	chatID := c.Params("id")
	userID := c.Query("userId")
	if userID == "" {
		return apperrors.NewInvalidArgument("Query parameter userId is required")
	}

	if !h.dir.Exists(chatID) {
		return apperrors.NewChatNotFound(chatID)
	}
	if !h.dir.IsMember(chatID, userID) {
		return apperrors.NewNotMember(chatID, userID)
	}

	members, err := h.dir.Members(chatID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"chatId":  chatID,
		"members": members,
	})
}

// UnreadCounts returns the user's per-chat unread counts, omitting chats
// with nothing unread.
func (h *ChatHandler) UnreadCounts(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return apperrors.NewInvalidArgument("Query parameter userId is required")
	}

	counts := make(map[string]int)
	total := 0
	for _, chat := range h.dir.ChatsForUser(userID) {
		unread, err := h.store.UnreadCount(chat.ID, userID)
		if err != nil || unread == 0 {
			continue
		}
		counts[chat.ID] = unread
		total += unread
	}

	return c.JSON(fiber.Map{
		"total":  total,
		"unread": counts,
	})
}
