package moderation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"

	"gatekeeper/contract"
	"gatekeeper/directory"
	"gatekeeper/domain"
)

// Action is the outcome of evaluating one inbound message.
type Action int

const (
	// ActionAllow leaves the message untouched.
	ActionAllow Action = iota
	// ActionSuppress means the message was consumed as a command and
	// never reached content policy.
	ActionSuppress
	// ActionDeleteAndWarn removes the message and posts a warning
	// mentioning the sender.
	ActionDeleteAndWarn
	// ActionDeleteSilently removes the message without a new warning
	// because the chat is inside its cooldown window.
	ActionDeleteSilently
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionSuppress:
		return "suppress"
	case ActionDeleteAndWarn:
		return "delete_and_warn"
	case ActionDeleteSilently:
		return "delete_silently"
	default:
		return "unknown"
	}
}

const (
	commandLink = "!link"
	commandPing = "!ping"

	inviteURLPrefix = "https://chat.whatsapp.com/"
	inviteApology   = "Sorry, I couldn't fetch an invite link right now. Try again later."
	pongReply       = "pong"

	// DefaultCooldown is the minimum gap between warnings in one chat.
	DefaultCooldown = 7 * time.Second
)

type Engine struct {
	log           *slog.Logger
	platform      contract.Platform
	directory     *directory.Directory
	matcher       *Matcher
	ledger        contract.WarningLedger
	clock         contract.Clock
	session       contract.Session
	defaultDomain string
	cooldown      time.Duration
}

func NewEngine(
	log *slog.Logger,
	platform contract.Platform,
	dir *directory.Directory,
	matcher *Matcher,
	ledger contract.WarningLedger,
	clock contract.Clock,
	session contract.Session,
	defaultDomain string,
	cooldown time.Duration,
) *Engine {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Engine{
		log:           log,
		platform:      platform,
		directory:     dir,
		matcher:       matcher,
		ledger:        ledger,
		clock:         clock,
		session:       session,
		defaultDomain: defaultDomain,
		cooldown:      cooldown,
	}
}

// Evaluate decides and applies the moderation outcome for one inbound
// message. Adapter failures are logged at the call site and never
// propagate: a moderation decision must not crash the message stream.
func (e *Engine) Evaluate(ctx context.Context, msg domain.Message) Action {
	body := strings.TrimSpace(msg.Body)

	// Ping works everywhere, groups and direct chats alike.
	if strings.EqualFold(body, commandPing) {
		e.reply(ctx, msg.ChatID, pongReply)
		return ActionSuppress
	}

	chat, err := e.platform.GetChat(ctx, msg.ChatID)
	if err != nil || chat == nil {
		e.log.Warn("Chat lookup failed, message allowed", "chat", msg.ChatID, "error", err)
		return ActionAllow
	}
	if !chat.IsGroup {
		return ActionAllow
	}

	e.directory.EnsureParticipants(ctx, chat)

	senderID, _ := domain.Canonicalize(msg.SenderRef(), e.defaultDomain)
	sender, senderKnown := e.directory.FindParticipant(chat, senderID)
	bot, botKnown := e.directory.FindParticipant(chat, e.session.BotIdentity())

	// Unresolved lookups fail closed: an unknown sender is never an
	// exempt admin, an unknown bot never enforces.
	senderIsAdmin := senderKnown && sender.Privileged()
	botIsAdmin := botKnown && bot.Privileged()

	if strings.EqualFold(body, commandLink) {
		e.handleLinkCommand(ctx, chat)
		return ActionSuppress
	}

	matched := e.matcher.Match(msg.Body)
	if len(matched) == 0 {
		return ActionAllow
	}

	lang := whatlanggo.Detect(msg.Body)
	e.log.Info("Blocked content detected",
		"chat", chat.ID,
		"sender", senderID,
		"domains", matched,
		"lang", lang.Lang.Iso6391())

	if senderIsAdmin {
		return ActionAllow
	}
	if !botIsAdmin {
		e.log.Debug("Bot lacks admin rights, enforcement skipped", "chat", chat.ID)
		return ActionAllow
	}

	now := e.clock.Now()
	last, warned, err := e.ledger.LastWarning(chat.ID)
	if err != nil {
		e.log.Error("Warning ledger read failed", "chat", chat.ID, "error", err)
	}
	if warned && now.Sub(last) < e.cooldown {
		e.deleteMessage(ctx, msg)
		return ActionDeleteSilently
	}

	e.deleteMessage(ctx, msg)
	e.warn(ctx, chat, sender, senderID)
	if err := e.ledger.RecordWarning(chat.ID, now); err != nil {
		e.log.Error("Warning ledger write failed", "chat", chat.ID, "error", err)
	}
	return ActionDeleteAndWarn
}

func (e *Engine) handleLinkCommand(ctx context.Context, chat *domain.Chat) {
	code, err := e.platform.GetInviteCode(ctx, chat.ID)
	if err != nil {
		e.log.Warn("Invite code fetch failed", "chat", chat.ID, "error", err)
		e.reply(ctx, chat.ID, inviteApology)
		return
	}
	e.reply(ctx, chat.ID, inviteURLPrefix+code)
}

func (e *Engine) warn(ctx context.Context, chat *domain.Chat, sender domain.Participant, senderID string) {
	mentions := lo.Ternary(sender.ID != "", []domain.Participant{sender}, nil)
	text := "⚠️ @" + userPart(senderID) + " links from blocked sites are removed here. Next violation inside the cooldown is deleted silently."
	if err := e.platform.SendMessage(ctx, chat.ID, text, mentions); err != nil {
		// Logged, not retried: a second send risks duplicate warnings.
		e.log.Warn("Warning send failed", "chat", chat.ID, "error", err)
	}
}

func (e *Engine) deleteMessage(ctx context.Context, msg domain.Message) {
	if err := e.platform.DeleteMessage(ctx, msg, true); err != nil {
		e.log.Warn("Message deletion failed", "chat", msg.ChatID, "message", msg.ID, "error", err)
	}
}

func (e *Engine) reply(ctx context.Context, chatID, text string) {
	if err := e.platform.SendMessage(ctx, chatID, text, nil); err != nil {
		e.log.Warn("Reply send failed", "chat", chatID, "error", err)
	}
}

func userPart(canonicalID string) string {
	if i := strings.IndexByte(canonicalID, '@'); i > 0 {
		return canonicalID[:i]
	}
	return canonicalID
}
