package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/maaaruch/tg-party-bot/internal/domain"
	"github.com/maaaruch/tg-party-bot/internal/game"
	"github.com/maaaruch/tg-party-bot/internal/game/rating"
	"github.com/maaaruch/tg-party-bot/internal/lobby"
)

// jobTimeout bounds store work done from deferred jobs.
const jobTimeout = 15 * time.Second

// botAPI is the part of *tgbotapi.BotAPI the app uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopPoll(config tgbotapi.StopPollConfig) (tgbotapi.Poll, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// scheduler owns per-chat deferred jobs; *session.Manager implements it.
type scheduler interface {
	Schedule(chatID int64, d time.Duration, fn func()) bool
	Cancel(chatID int64) int
	Acquire(chatID int64) bool
	Release(chatID int64)
}

type Settings struct {
	BotLink          string
	CollectionWindow time.Duration
	AnswerWindow     time.Duration
	BetweenAnswers   time.Duration
}

type App struct {
	bot      botAPI
	lobby    *lobby.Service
	games    *game.Manager
	sessions scheduler
	settings Settings
	now      func() time.Time
}

func New(bot botAPI, lobbySvc *lobby.Service, games *game.Manager, sessions scheduler, settings Settings) *App {
	return &App{
		bot:      bot,
		lobby:    lobbySvc,
		games:    games,
		sessions: sessions,
		settings: settings,
		now:      time.Now,
	}
}

func (a *App) Run(ctx context.Context) error {
	if err := a.resumeCollections(ctx); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				a.handleMessage(ctx, update.Message)
			}
		}
	}
}

// resumeCollections reschedules collection windows that were open when the process stopped.
func (a *App) resumeCollections(ctx context.Context) error {
	pending, err := a.lobby.PendingCollections(ctx)
	if err != nil {
		return err
	}
	for _, p := range pending {
		p := p
		kind := p.Kind
		if !kind.Valid() {
			kind = domain.KindRating
		}
		left := p.EndsAt.Sub(a.now())
		if left < 0 {
			left = 0
		}
		if p.Closed {
			left = 0
		}
		a.sessions.Schedule(p.SessionID, left, func() { a.finishCollection(p.SessionID, kind) })
		log.Info().Int64("chat", p.SessionID).Dur("left", left).Bool("closed", p.Closed).Msg("collection resumed")
	}
	return nil
}

// ---------- Updates ----------

func (a *App) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	if msg.Chat.IsPrivate() {
		a.handlePrivate(ctx, msg)
		return
	}
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		return
	}

	if msg.IsCommand() {
		cmd := msg.Command()
		log.Info().Int64("chat", msg.Chat.ID).Int64("user", msg.From.ID).Str("cmd", cmd).Msg("command")

		switch cmd {
		case "hi", "start", "help":
			a.send(msg.Chat.ID, greetingText)
		case "join":
			a.handleJoin(ctx, msg)
		case "party":
			a.handleParty(ctx, msg)
		case "roa":
			a.handleStartCollection(ctx, msg, domain.KindRating)
		case "deb":
			a.handleStartCollection(ctx, msg, domain.KindDebate)
		case "me":
			a.handleDebateJoin(ctx, msg)
		case "next":
			a.handleNext(ctx, msg)
		case "stop":
			a.handleStop(ctx, msg)
		}
		return
	}

	// в группе числа от -10 до 10 считаем оценками
	if score, ok := parseScore(msg.Text); ok {
		a.handleScore(ctx, msg, score)
	}
}

func (a *App) handlePrivate(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		if msg.Command() == "start" {
			a.send(msg.Chat.ID, privateStartText)
			return
		}
		a.send(msg.Chat.ID, "Команды работают в групповом чате. Сюда присылай темы.")
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	a.handlePrompts(ctx, msg)
}

// ---------- Helpers ----------

func (a *App) send(chatID int64, text string) {
	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("send message")
	}
}

func (a *App) reply(msg *tgbotapi.Message, text string) {
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ReplyToMessageID = msg.MessageID
	if _, err := a.bot.Send(m); err != nil {
		log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("send reply")
	}
}

// fail reports err to the chat. Expected conditions are shown as is; anything else
// is logged and the user gets a generic message.
func (a *App) fail(chatID int64, op string, err error) {
	if !domain.IsUserFacing(err) {
		log.Error().Err(err).Int64("chat", chatID).Str("op", op).Msg("operation failed")
	}
	a.send(chatID, domain.UserMessage(err))
}

func jobContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), jobTimeout)
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	if name == "" {
		name = strconv.FormatInt(u.ID, 10)
	}
	return name
}

func parseScore(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	if n < rating.MinScore || n > rating.MaxScore {
		return 0, false
	}
	return n, true
}

func splitPipeArgs(s string, n int) []string {
	raw := strings.SplitN(s, "|", n)
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
