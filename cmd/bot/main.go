package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maaaruch/tg-party-bot/internal/app"
	"github.com/maaaruch/tg-party-bot/internal/config"
	"github.com/maaaruch/tg-party-bot/internal/game"
	"github.com/maaaruch/tg-party-bot/internal/lobby"
	"github.com/maaaruch/tg-party-bot/internal/logging"
	"github.com/maaaruch/tg-party-bot/internal/session"
	"github.com/maaaruch/tg-party-bot/internal/status"
	"github.com/maaaruch/tg-party-bot/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "partybot",
		Short: "Telegram bot for party games in group chats",
		Long: `partybot runs party games inside Telegram group chats: players gather in a
lobby, send topics to the bot in private, then play "rate everything" or a
two-player debate round by round.

Settings come from the optional config file and PARTYBOT_* environment variables.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, toml or json)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite3", storage.DSN(cfg.Storage.Path))
	if err != nil {
		return err
	}
	defer db.Close()

	// one connection: same-session transactions never interleave
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := storage.New(db)
	if err := store.InitSchema(); err != nil {
		return err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	bot.Debug = cfg.Telegram.Debug
	log.Info().Str("bot", bot.Self.UserName).Msg("bot started")

	lobbySvc := lobby.New(store, cfg.Game.PromptQuota, cfg.Game.CollectionWindow())
	games := game.NewManager(store, lobbySvc, game.Limits{
		RatingMaxPrompts: cfg.Game.RatingMaxPrompts,
		DebateMaxPrompts: cfg.Game.DebateMaxPrompts,
	})
	sessions := session.NewManager()
	defer sessions.Close()

	application := app.New(bot, lobbySvc, games, sessions, app.Settings{
		BotLink:          cfg.Telegram.BotLink,
		CollectionWindow: cfg.Game.CollectionWindow(),
		AnswerWindow:     cfg.Game.AnswerWindow(),
		BetweenAnswers:   cfg.Game.BetweenAnswers(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// the status server follows the bot down
		defer cancel()
		return application.Run(ctx)
	})

	if cfg.Status.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Status.Addr,
			Handler:           status.NewRouter(lobbySvc, store),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Status.Addr).Msg("status server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info().Msg("shutting down")
	return err
}
