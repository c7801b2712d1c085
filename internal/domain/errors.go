package domain

import "errors"

// Membership errors.
var (
	ErrAlreadyInSession = errors.New("participant already in a session")
	ErrNotInSession     = errors.New("participant not in a session")
	ErrEmptySession     = errors.New("session is empty")
)

// Phase errors.
var (
	ErrGameAlreadyRunning    = errors.New("game already running")
	ErrCollectionClosed      = errors.New("prompt collection closed")
	ErrCollectionAlreadyUsed = errors.New("prompt collection already used")
	ErrCollectionInProgress  = errors.New("prompt collection in progress")
)

// Limit and input errors.
var (
	ErrQuotaExceeded = errors.New("prompt quota exceeded")
	ErrEmptyPrompt   = errors.New("empty prompt")
)

// Roster errors.
var (
	ErrInsufficientPlayers = errors.New("not enough players")
	ErrRosterFull          = errors.New("roster full")
	ErrAllPlayersAnswered  = errors.New("all players answered this round")
	ErrAlreadyPlaying      = errors.New("player already joined")
)

// Game instance errors. ErrGameComplete is a control signal: rounds are exhausted
// and the caller should compute the result and tear the session down.
var (
	ErrGameComplete  = errors.New("game complete")
	ErrNoGame        = errors.New("no game in session")
	ErrWrongGameKind = errors.New("wrong game kind")
	ErrNoPrompts     = errors.New("no prompts collected")
)

var userMessages = map[error]string{
	ErrAlreadyInSession: "Пользователь уже находится в лобби. Возможно, вы уже находитесь в лобби в другом чате. " +
		"Попробуйте ввести команду /stop в другом чате или доиграйте игру.",
	ErrNotInSession:          "Вас нет в лобби или игре, поэтому вы не можете задавать темы =(",
	ErrEmptySession:          "Пустое лобби",
	ErrGameAlreadyRunning:    "Игра уже запущена",
	ErrCollectionClosed:      "Вы опоздали. Записать темы уже нельзя",
	ErrCollectionAlreadyUsed: "Сбор тем для этого лобби уже проводился",
	ErrCollectionInProgress:  "Невозможно уничтожить лобби с игрой, пока таймер не истёк.",
	ErrQuotaExceeded:         "Превышен лимит тем.",
	ErrEmptyPrompt:           "Пустая тема не подойдёт, напиши что-нибудь.",
	ErrInsufficientPlayers:   "Недостаточно игроков для начала игры",
	ErrRosterFull:            "Максимальное количество игроков уже достигнуто",
	ErrAllPlayersAnswered:    "Все игроки уже ответили в этом раунде",
	ErrAlreadyPlaying:        "Ты уже участвуешь в дебатах",
	ErrGameComplete:          "Игра завершена",
	ErrNoGame:                "Игра не запущена",
	ErrWrongGameKind:         "Сейчас идёт другая игра",
	ErrNoPrompts:             "Тем нет. Запуск игры отменен, лобби расформировано.",
}

// IsUserFacing reports whether err is an expected condition that can be shown to the user as is.
func IsUserFacing(err error) bool {
	for known := range userMessages {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// UserMessage returns the chat text for err, or a generic failure text for infrastructure errors.
func UserMessage(err error) string {
	for known, text := range userMessages {
		if errors.Is(err, known) {
			return text
		}
	}
	return "Что-то пошло не так, попробуй ещё раз."
}
