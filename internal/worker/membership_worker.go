package worker

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"

	"github.com/spec-kit/announce-service/internal/domain"
)

// ChatDirectory receives membership changes observed by the bot.
type ChatDirectory interface {
	Register(ctx context.Context, chatID int64, name string, chatType domain.ChatType) (*domain.Chat, error)
	Deactivate(ctx context.Context, chatID int64) (*domain.Chat, error)
	Rename(ctx context.Context, chatID int64, name string) (*domain.Chat, error)
}

// AdminChecker reports whether a user may add the bot to new chats.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

type membershipChange int

const (
	membershipNone membershipChange = iota
	membershipJoined
	membershipLeft
)

// MembershipWorker keeps the chat directory in sync with the chats the bot
// belongs to.
type MembershipWorker struct {
	bot     *tele.Bot
	chats   ChatDirectory
	admins  AdminChecker
	logger  *zap.Logger
	timeout time.Duration
}

// NewMembershipWorker wires the bot handlers. Call Start to begin polling.
func NewMembershipWorker(bot *tele.Bot, chats ChatDirectory, admins AdminChecker, logger *zap.Logger) *MembershipWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &MembershipWorker{bot: bot, chats: chats, admins: admins, logger: logger, timeout: 10 * time.Second}
	if bot != nil {
		bot.Handle(tele.OnMyChatMember, func(c tele.Context) error {
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			defer cancel()
			return w.HandleMemberUpdate(ctx, c.ChatMember())
		})
		bot.Handle(tele.OnNewGroupTitle, func(c tele.Context) error {
			ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			defer cancel()
			return w.HandleTitle(ctx, c.Chat())
		})
	}
	return w
}

// Start polls for updates in the background.
func (w *MembershipWorker) Start() {
	if w.bot == nil {
		return
	}
	go w.bot.Start()
	w.logger.Info("membership tracking started")
}

// Stop ends polling.
func (w *MembershipWorker) Stop() {
	if w.bot == nil {
		return
	}
	w.bot.Stop()
}

// HandleMemberUpdate registers or deactivates the chat in the update.
func (w *MembershipWorker) HandleMemberUpdate(ctx context.Context, update *tele.ChatMemberUpdate) error {
	if update == nil || update.Chat == nil || update.OldChatMember == nil || update.NewChatMember == nil {
		return nil
	}
	chat := update.Chat
	chatType, ok := chatTypeOf(chat.Type)
	if !ok {
		return nil
	}
	log := w.logger.With(zap.Int64("chat_id", chat.ID), zap.String("chat_name", chat.Title))

	switch classify(update.OldChatMember.Role, update.NewChatMember.Role) {
	case membershipJoined:
		if !w.addedByAdmin(ctx, update.Sender) {
			log.Warn("bot added by a non-admin user, ignoring")
			return nil
		}
		if _, err := w.chats.Register(ctx, chat.ID, chatName(chat), chatType); err != nil {
			log.Error("register chat", zap.Error(err))
			return err
		}
		log.Info("chat registered")
	case membershipLeft:
		if _, err := w.chats.Deactivate(ctx, chat.ID); err != nil {
			log.Error("deactivate chat", zap.Error(err))
			return err
		}
		log.Info("chat deactivated")
	}
	return nil
}

// HandleTitle renames a chat after a title change.
func (w *MembershipWorker) HandleTitle(ctx context.Context, chat *tele.Chat) error {
	if chat == nil || strings.TrimSpace(chat.Title) == "" {
		return nil
	}
	if _, err := w.chats.Rename(ctx, chat.ID, chat.Title); err != nil {
		w.logger.Warn("rename chat", zap.Int64("chat_id", chat.ID), zap.Error(err))
		return err
	}
	return nil
}

func (w *MembershipWorker) addedByAdmin(ctx context.Context, sender *tele.User) bool {
	if sender == nil || w.admins == nil {
		return false
	}
	admin, err := w.admins.IsAdmin(ctx, sender.ID)
	if err != nil {
		w.logger.Warn("admin lookup failed", zap.Int64("user_id", sender.ID), zap.Error(err))
		return false
	}
	return admin
}

func classify(old, next tele.MemberStatus) membershipChange {
	in := func(s tele.MemberStatus) bool {
		return s == tele.Member || s == tele.Administrator || s == tele.Creator
	}
	switch {
	case !in(old) && in(next):
		return membershipJoined
	case in(old) && (next == tele.Left || next == tele.Kicked):
		return membershipLeft
	default:
		return membershipNone
	}
}

func chatTypeOf(t tele.ChatType) (domain.ChatType, bool) {
	switch t {
	case tele.ChatGroup:
		return domain.ChatTypeGroup, true
	case tele.ChatSuperGroup:
		return domain.ChatTypeSupergroup, true
	case tele.ChatChannel, tele.ChatChannelPrivate:
		return domain.ChatTypeChannel, true
	default:
		return "", false
	}
}

func chatName(chat *tele.Chat) string {
	if name := strings.TrimSpace(chat.Title); name != "" {
		return name
	}
	if chat.Username != "" {
		return "@" + chat.Username
	}
	return strings.TrimSpace(chat.FirstName + " " + chat.LastName)
}
