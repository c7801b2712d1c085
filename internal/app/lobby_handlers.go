package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/maaaruch/tg-party-bot/internal/domain"
)

const (
	launchAttempts   = 3
	launchRetryDelay = 5 * time.Second
)

func (a *App) handleJoin(ctx context.Context, msg *tgbotapi.Message) {
	name := displayName(msg.From)
	p := domain.Participant{ID: msg.From.ID, Name: name, Handle: msg.From.UserName}
	if err := a.lobby.Join(ctx, msg.Chat.ID, p); err != nil {
		a.fail(msg.Chat.ID, "join", err)
		return
	}
	a.reply(msg, fmt.Sprintf("%s добавлен в лобби", name))
}

func (a *App) handleParty(ctx context.Context, msg *tgbotapi.Message) {
	names, err := a.lobby.ListMembers(ctx, msg.Chat.ID)
	if err != nil {
		a.fail(msg.Chat.ID, "party", err)
		return
	}
	a.reply(msg, membersText(names))
}

func (a *App) handleStop(ctx context.Context, msg *tgbotapi.Message) {
	if err := a.lobby.Destroy(ctx, msg.Chat.ID); err != nil {
		a.fail(msg.Chat.ID, "stop", err)
		return
	}
	a.sessions.Cancel(msg.Chat.ID)
	a.send(msg.Chat.ID, goodbyeText)
}

// handleStartCollection opens the private prompt window and schedules its close,
// after which the requested game is launched.
func (a *App) handleStartCollection(ctx context.Context, msg *tgbotapi.Message, kind domain.GameKind) {
	chatID := msg.Chat.ID
	timer, err := a.lobby.BeginCollection(ctx, chatID, kind)
	if err != nil {
		a.fail(chatID, "begin collection", err)
		return
	}
	a.send(chatID, collectionStartedText(a.settings.BotLink, a.settings.CollectionWindow))

	left := timer.End.Sub(a.now())
	if left < 0 {
		left = 0
	}
	a.sessions.Schedule(chatID, left, func() { a.finishCollection(chatID, kind) })
}

func (a *App) finishCollection(chatID int64, kind domain.GameKind) {
	ctx, cancel := jobContext()
	defer cancel()

	if err := a.lobby.CloseCollection(ctx, chatID); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("close collection")
		return
	}
	a.send(chatID, collectionClosedText)
	a.launchGame(ctx, chatID, kind, 1)
}

// launchGame starts the game on the collected prompts. Store failures are retried a
// few times; a session left without a game is picked up again on the next start.
func (a *App) launchGame(ctx context.Context, chatID int64, kind domain.GameKind, attempt int) {
	launched, err := a.games.Launch(ctx, chatID, kind)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptySession):
		case !domain.IsUserFacing(err) && attempt < launchAttempts:
			log.Warn().Err(err).Int64("chat", chatID).Int("attempt", attempt).Msg("launch")
			a.sessions.Schedule(chatID, launchRetryDelay, func() {
				ctx, cancel := jobContext()
				defer cancel()
				a.launchGame(ctx, chatID, kind, attempt+1)
			})
		default:
			a.fail(chatID, "launch", err)
		}
		return
	}

	switch launched.Kind {
	case domain.KindRating:
		a.send(chatID, ratingWelcomeText)
		a.send(chatID, topicText(launched.First))
	case domain.KindDebate:
		a.send(chatID, debateWelcomeText)
	}
}

// handlePrompts stores prompts sent in private. Several prompts may come in one
// message separated by '|'; the first refused one stops the batch.
func (a *App) handlePrompts(ctx context.Context, msg *tgbotapi.Message) {
	prompts := splitPipeArgs(msg.Text, -1)
	if len(prompts) == 0 {
		a.fail(msg.Chat.ID, "submit prompt", domain.ErrEmptyPrompt)
		return
	}

	saved, remaining := 0, 0
	for _, p := range prompts {
		left, err := a.lobby.SubmitPrompt(ctx, msg.From.ID, p)
		if err != nil {
			if saved > 0 {
				a.reply(msg, promptsSavedText(saved, remaining))
			}
			a.fail(msg.Chat.ID, "submit prompt", err)
			return
		}
		saved++
		remaining = left
	}
	a.reply(msg, promptsSavedText(saved, remaining))
}
