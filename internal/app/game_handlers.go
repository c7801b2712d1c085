package app

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/maaaruch/tg-party-bot/internal/domain"
	"github.com/maaaruch/tg-party-bot/internal/game/debate"
)

func (a *App) handleNext(ctx context.Context, msg *tgbotapi.Message) {
	kind, err := a.games.Kind(ctx, msg.Chat.ID)
	if err != nil {
		a.fail(msg.Chat.ID, "next", err)
		return
	}
	switch kind {
	case domain.KindRating:
		a.nextRating(ctx, msg.Chat.ID)
	case domain.KindDebate:
		a.nextDebate(ctx, msg.Chat.ID)
	}
}

// finishGame tears the session down after the result has been shown.
func (a *App) finishGame(ctx context.Context, chatID int64) {
	a.sessions.Cancel(chatID)
	if err := a.lobby.Destroy(ctx, chatID); err != nil {
		a.fail(chatID, "destroy", err)
		return
	}
	a.send(chatID, goodbyeText)
}

// ---------- Rating ----------

func (a *App) handleScore(ctx context.Context, msg *tgbotapi.Message, score int) {
	applied, err := a.games.RateCurrent(ctx, msg.Chat.ID, msg.From.ID, score)
	if err != nil {
		// числа в чате без игры: обычная переписка
		if !domain.IsUserFacing(err) {
			log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("rate")
		}
		return
	}
	if applied {
		a.reply(msg, "📝")
	}
}

func (a *App) nextRating(ctx context.Context, chatID int64) {
	step, err := a.games.AdvanceRating(ctx, chatID)
	if err != nil && !errors.Is(err, domain.ErrGameComplete) {
		a.fail(chatID, "advance rating", err)
		return
	}
	a.send(chatID, roundStatsText(step.Finished))
	if err == nil {
		a.send(chatID, topicText(step.Next))
		return
	}

	totals, err := a.games.RatingResult(ctx, chatID)
	if err != nil {
		a.fail(chatID, "rating result", err)
		return
	}
	a.send(chatID, ratingResultText(totals))
	a.finishGame(ctx, chatID)
}

// ---------- Debate ----------

func (a *App) handleDebateJoin(ctx context.Context, msg *tgbotapi.Message) {
	join, err := a.games.JoinDebate(ctx, msg.Chat.ID, domain.Member{ID: msg.From.ID, Name: displayName(msg.From)})
	if err != nil {
		a.fail(msg.Chat.ID, "join debate", err)
		return
	}
	a.send(msg.Chat.ID, debatePlayerJoinedText(join.Player.Name))
	if join.Started {
		a.send(msg.Chat.ID, roundInfoText(join.Round))
	}
}

func (a *App) nextDebate(ctx context.Context, chatID int64) {
	phase, err := a.games.DebatePhase(ctx, chatID)
	if err != nil {
		a.fail(chatID, "debate phase", err)
		return
	}

	switch phase {
	case debate.PhaseGathering:
		a.send(chatID, domain.UserMessage(domain.ErrInsufficientPlayers)+". Введите /me.")

	case debate.PhaseReadyForAnswer:
		if !a.sessions.Acquire(chatID) {
			a.send(chatID, roundInProgressText)
			return
		}
		a.startTurn(ctx, chatID)

	case debate.PhaseAnswering:
		// the turn sequence is gone if nobody holds the chat, e.g. after a restart
		if !a.sessions.Acquire(chatID) {
			a.send(chatID, roundInProgressText)
			return
		}
		a.issuePoll(ctx, chatID)

	case debate.PhaseReadyForNextWord:
		a.tallyAndAdvance(ctx, chatID)
	}
}

// startTurn gives the floor to the first speaker. The rest of the round runs
// from deferred jobs while the chat is held busy.
func (a *App) startTurn(ctx context.Context, chatID int64) {
	speaker, err := a.games.CurrentSpeaker(ctx, chatID)
	if err != nil {
		a.sessions.Release(chatID)
		a.fail(chatID, "current speaker", err)
		return
	}
	a.send(chatID, speakerText(speaker))
	a.sessions.Schedule(chatID, a.settings.AnswerWindow, func() { a.endTurn(chatID, speaker.Name, false) })
}

func (a *App) endTurn(chatID int64, name string, last bool) {
	a.send(chatID, stopAnswerText(name))
	if last {
		ctx, cancel := jobContext()
		defer cancel()
		a.issuePoll(ctx, chatID)
		return
	}
	a.sessions.Schedule(chatID, a.settings.BetweenAnswers, func() { a.switchTurn(chatID) })
}

func (a *App) switchTurn(chatID int64) {
	ctx, cancel := jobContext()
	defer cancel()

	speaker, err := a.games.SwitchSpeaker(ctx, chatID)
	if errors.Is(err, domain.ErrAllPlayersAnswered) {
		a.issuePoll(ctx, chatID)
		return
	}
	if err != nil {
		a.sessions.Release(chatID)
		a.fail(chatID, "switch speaker", err)
		return
	}
	a.send(chatID, speakerText(speaker))
	a.sessions.Schedule(chatID, a.settings.AnswerWindow, func() { a.endTurn(chatID, speaker.Name, true) })
}

// issuePoll asks the chat who argued better and releases the chat.
func (a *App) issuePoll(ctx context.Context, chatID int64) {
	defer a.sessions.Release(chatID)

	names, err := a.games.IssuePoll(ctx, chatID)
	if err != nil {
		a.fail(chatID, "issue poll", err)
		return
	}
	sent, err := a.bot.Send(tgbotapi.NewPoll(chatID, pollQuestion, names...))
	if err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("send poll")
		a.send(chatID, domain.UserMessage(err))
		return
	}
	if err := a.games.RecordPoll(ctx, chatID, sent.MessageID); err != nil {
		a.fail(chatID, "record poll", err)
	}
}

func (a *App) tallyAndAdvance(ctx context.Context, chatID int64) {
	tally := map[string]int{}
	if pollID, ok, err := a.games.LastPoll(ctx, chatID); err != nil {
		a.fail(chatID, "last poll", err)
		return
	} else if ok {
		poll, err := a.bot.StopPoll(tgbotapi.NewStopPoll(chatID, pollID))
		if err != nil {
			// an already closed poll still lets the game go on, without this round's votes
			log.Warn().Err(err).Int64("chat", chatID).Int("poll", pollID).Msg("stop poll")
		}
		for _, opt := range poll.Options {
			tally[opt.Text] = opt.VoterCount
		}
	}

	info, err := a.games.ApplyTallyAndAdvance(ctx, chatID, tally)
	if err == nil {
		a.send(chatID, roundInfoText(info))
		return
	}
	if !errors.Is(err, domain.ErrGameComplete) {
		a.fail(chatID, "advance debate", err)
		return
	}

	res, err := a.games.DebateResult(ctx, chatID)
	if err != nil {
		a.fail(chatID, "debate result", err)
		return
	}
	a.send(chatID, debateResultText(res))
	a.finishGame(ctx, chatID)
}
