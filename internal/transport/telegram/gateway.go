// Package telegram adapts the quiz sequencer's messenger boundary onto a
// Telegram bot: quiz polls, HTML messages, and a global send rate limit.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"quizbot/internal/quiz"
	logx "quizbot/pkg/logx"
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// RatePerSec caps outgoing sends across the gateway (default 20,
	// Telegram's documented group limit).
	RatePerSec int
}

type Gateway struct {
	cfg     Config
	bot     *tele.Bot
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Gateway, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gateway{
		cfg:     cfg,
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log.With(logx.String("comp", "telegram")),
	}, nil
}

func (g *Gateway) chat() *tele.Chat { return &tele.Chat{ID: g.cfg.ChatID} }

// SendPoll posts one quiz-mode poll.
func (g *Gateway) SendPoll(ctx context.Context, p quiz.Poll) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	poll := &tele.Poll{
		Type:          tele.PollQuiz,
		Question:      p.Question,
		CorrectOption: p.CorrectOption,
		Explanation:   p.Explanation,
	}
	poll.AddOptions(p.Options...)

	_, err := g.bot.Send(g.chat(), poll, &tele.SendOptions{ThreadID: g.cfg.ThreadID})
	if err != nil {
		g.log.Warn("poll send failed", logx.Err(err))
	}
	return err
}

// SendMessage posts an HTML-formatted text message.
func (g *Gateway) SendMessage(ctx context.Context, html string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := g.bot.Send(g.chat(), html, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              g.cfg.ThreadID,
	})
	if err != nil {
		g.log.Warn("message send failed", logx.Err(err))
	}
	return err
}
