package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/maaaruch/tg-party-bot/internal/game/debate"
	"github.com/maaaruch/tg-party-bot/internal/game/rating"
)

const (
	greetingText = "Привет! Я бот для игр в компании.\n\n" +
		"/join – войти в лобби\n" +
		"/party – кто уже в лобби\n" +
		"/roa – игра «Рейтинг всего»: оцениваем темы от -10 до 10\n" +
		"/deb – игра «Дебаты»: двое спорят, чат голосует\n" +
		"/next – следующий шаг игры\n" +
		"/stop – расформировать лобби"

	privateStartText = "Привет! Сюда присылай темы, когда в группе начнётся сбор тем.\n" +
		"Одна тема – одно сообщение, или несколько через '|'.\n" +
		"Сначала войди в лобби командой /join в группе."

	goodbyeText = "Спасибо за игру. Лобби расформировано. Список участников обнулён. Хорошего дня! 😊"

	collectionClosedText = "🔒Вы больше не можете присылать темы в ЛС бота🔒"

	ratingWelcomeText = "🎉 Добро пожаловать в игру «Рейтинг всего»! 🌟"

	debateWelcomeText = "🎉 Добро пожаловать в игру «Дебаты»! 🌟\n" +
		"Введите команду /me, чтобы стать участником. Всего может быть 2 участника."

	roundInProgressText = "Раунд уже идёт, дождитесь голосования."

	pollQuestion = "Какой участник понравился больше? Закончили голосовать /next."
)

func membersText(names []string) string {
	if len(names) == 0 {
		return "В лобби пока никого нет. Напиши /join"
	}
	return "Список участников:\n" + strings.Join(names, "\n")
}

func collectionStartedText(botLink string, window time.Duration) string {
	where := "в личные сообщения бота"
	if botLink != "" {
		where = "сюда " + botLink
	}
	return fmt.Sprintf("📝 Перейдите %s и вводите темы, которые вас интересуют.\n"+
		"🔒 Через %d секунд доступ закроется. 🔒\n"+
		"Как только напишете темы - возвращайтесь.", where, int(window.Seconds()))
}

func promptsSavedText(saved, remaining int) string {
	if saved == 1 {
		return fmt.Sprintf("Записал. Оставшееся количество, которое вам доступно: %d", remaining)
	}
	return fmt.Sprintf("Записал тем: %d. Оставшееся количество, которое вам доступно: %d", saved, remaining)
}

func topicText(topic string) string {
	return fmt.Sprintf("🌟 ТЕМА: %s\n"+
		"Напишите в чат, как вы оцениваете данное событие/предмет (число от %d до %d).\n"+
		"Как только все игроки поставят оценки /next.", topic, rating.MinScore, rating.MaxScore)
}

func roundStatsText(stats rating.RoundStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌟 ТЕМА: %s\n🎯 Общий балл: %d\n\n", stats.Prompt, stats.Total)
	for _, s := range stats.Scores {
		fmt.Fprintf(&b, "💫 %s поставил(а) %d\n", s.Name, s.Score)
	}
	return b.String()
}

func ratingResultText(totals []rating.PromptTotal) string {
	var b strings.Builder
	b.WriteString("🏆 Результаты по игре:\n")
	for _, t := range totals {
		fmt.Fprintf(&b, "🌟 %s -> %d баллов\n", t.Prompt, t.Total)
	}
	return b.String()
}

func positionText(p debate.Position) string {
	switch p {
	case debate.PositionFor:
		return "за"
	case debate.PositionAgainst:
		return "против"
	}
	return "?"
}

func debatePlayerJoinedText(name string) string {
	return fmt.Sprintf("%s теперь является одним из дебатирующих 🌟", name)
}

func roundInfoText(info debate.RoundInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Раунд %d. Тема раунда:\n\n%s\n\n", info.Round, info.Word)
	for _, p := range info.Positions {
		fmt.Fprintf(&b, "%s -> %s\n", p.Name, positionText(p.Position))
	}
	b.WriteString("Как только игроки будут готовы отвечать введите /next.")
	return b.String()
}

func speakerText(p debate.PlayerPosition) string {
	return fmt.Sprintf("Отвечает %s с позицией «%s» 🎤", p.Name, positionText(p.Position))
}

func stopAnswerText(name string) string {
	return fmt.Sprintf("%s БОЛЬШЕ НЕ МОЖЕТ ГОВОРИТЬ 🤐", name)
}

func debateResultText(res debate.Result) string {
	var b strings.Builder
	b.WriteString("🏆 Итоги игры 🏆:\n\n")
	for _, p := range res.Players {
		fmt.Fprintf(&b, "%s получает %d баллов\n", p.Name, p.Score)
	}
	if res.Tie {
		b.WriteString("\nДружба 🤝")
	} else {
		fmt.Fprintf(&b, "\nПобедитель - %s 🎉", res.Winner)
	}
	return b.String()
}
