// Package telegram runs the operator bot: session control, quick lookups
// and raw relay access from chat.
package telegram

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/eneris/battlemap/internal/battlemap"
	. "github.com/eneris/battlemap/internal/logging"
)

const commandTimeout = 60 * time.Second

// gameController is the slice of the session the bot drives.
type gameController interface {
	Init(ctx context.Context, creds *battlemap.Credentials) error
	Exit()
	CheckHealth() bool
	Screenshot(path string) error
	GetAPIData(ctx context.Context, endpoint string, payload map[string]interface{}, method string) (interface{}, error)
	GetBattles(ctx context.Context, factions []int, resolution int) ([]battlemap.Battle, error)
	GetBattleDetail(ctx context.Context, id int64) (*battlemap.BattleDetail, error)
	GetBaseDetail(ctx context.Context, id int64) (*battlemap.BaseDetail, error)
	GetIDFromQuery(ctx context.Context, query string) (int64, error)
	GetSearchQuery(ctx context.Context, term string, faction int) ([]battlemap.SearchResult, error)
}

// Bot is the operator-facing telegram bot.
type Bot struct {
	bot     *tele.Bot
	game    gameController
	allowed map[int64]bool
}

// New creates the bot. An empty allowedChats list means every chat may
// drive the session.
func New(token string, allowedChats []int64, game gameController) (*Bot, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	b := &Bot{bot: tb, game: game, allowed: make(map[int64]bool)}
	for _, id := range allowedChats {
		b.allowed[id] = true
	}
	b.setupHandlers()
	return b, nil
}

// Start begins long polling. It blocks, callers run it in a goroutine.
func (b *Bot) Start() {
	L_info("telegram: bot starting", "username", b.bot.Me.Username)
	b.bot.Start()
}

// Stop stops polling.
func (b *Bot) Stop() {
	L_info("telegram: bot stopping")
	b.bot.Stop()
}

func (b *Bot) chatAllowed(chatID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	return b.allowed[chatID]
}

// guard wraps a handler with the chat allowlist.
func (b *Bot) guard(handler func(c tele.Context) error) func(c tele.Context) error {
	return func(c tele.Context) error {
		if !b.chatAllowed(c.Chat().ID) {
			L_warn("telegram: rejected chat", "chatID", c.Chat().ID)
			return c.Send("This bot is private.")
		}
		return handler(c)
	}
}

func (b *Bot) setupHandlers() {
	b.bot.Handle("/start", b.guard(b.handleStart))
	b.bot.Handle("/stop", b.guard(b.handleStop))
	b.bot.Handle("/health", b.guard(b.handleHealth))
	b.bot.Handle("/screen", b.guard(b.handleScreen))
	b.bot.Handle("/battle", b.guard(b.handleBattle))
	b.bot.Handle("/battles", b.guard(b.handleBattles))
	b.bot.Handle("/base", b.guard(b.handleBase))
	b.bot.Handle("/search", b.guard(b.handleSearch))
	b.bot.Handle("/req", b.guard(b.handleReq))
}

func (b *Bot) handleStart(c tele.Context) error {
	_ = c.Notify(tele.Typing)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.game.Init(ctx, nil); err != nil {
		return c.Send("Session start failed: " + err.Error())
	}
	return c.Send("Session up and authenticated.")
}

func (b *Bot) handleStop(c tele.Context) error {
	b.game.Exit()
	return c.Send("Session stopped.")
}

func (b *Bot) handleHealth(c tele.Context) error {
	if b.game.CheckHealth() {
		return c.Send("Session is alive.")
	}
	return c.Send("Session is down. Use /start to bring it up.")
}

func (b *Bot) handleScreen(c tele.Context) error {
	_ = c.Notify(tele.UploadingPhoto)

	path := filepath.Join(os.TempDir(), "battlemap-tg-"+uuid.NewString()+".png")
	defer os.Remove(path)

	if err := b.game.Screenshot(path); err != nil {
		return c.Send("Screenshot failed: " + err.Error())
	}
	return c.Send(&tele.Photo{File: tele.FromDisk(path)})
}

func (b *Bot) handleBattle(c tele.Context) error {
	arg := strings.TrimSpace(c.Message().Payload)
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return c.Send("Usage: /battle <id>")
	}

	_ = c.Notify(tele.Typing)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	detail, err := b.game.GetBattleDetail(ctx, id)
	if err != nil {
		return c.Send("Lookup failed: " + err.Error())
	}
	return c.Send(formatBattleDetail(detail, time.Now()), &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (b *Bot) handleBattles(c tele.Context) error {
	_ = c.Notify(tele.Typing)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	battles, err := b.game.GetBattles(ctx, nil, 0)
	if err != nil {
		return c.Send("Lookup failed: " + err.Error())
	}
	return c.Send(formatBattleList(battles), &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (b *Bot) handleBase(c tele.Context) error {
	query := strings.TrimSpace(c.Message().Payload)
	if query == "" {
		return c.Send("Usage: /base <id or name>")
	}

	_ = c.Notify(tele.Typing)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	id, err := strconv.ParseInt(query, 10, 64)
	if err != nil {
		if id, err = b.game.GetIDFromQuery(ctx, query); err != nil {
			return c.Send("Not found: " + query)
		}
	}

	detail, err := b.game.GetBaseDetail(ctx, id)
	if err != nil {
		return c.Send("Lookup failed: " + err.Error())
	}
	return c.Send(formatBaseDetail(detail), &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (b *Bot) handleSearch(c tele.Context) error {
	term := strings.TrimSpace(c.Message().Payload)
	if term == "" {
		return c.Send("Usage: /search <term>")
	}

	_ = c.Notify(tele.Typing)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	results, err := b.game.GetSearchQuery(ctx, term, 0)
	if err != nil {
		return c.Send("Search failed: " + err.Error())
	}
	return c.Send(formatSearchResults(results), &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (b *Bot) handleReq(c tele.Context) error {
	operation, filter, ok := parseReqArgs(c.Message().Payload)
	if !ok {
		return c.Send("Usage: /req <operation> [jq filter]")
	}

	_ = c.Notify(tele.Typing)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	resp, err := b.game.GetAPIData(ctx, operation, nil, "post")
	if err != nil {
		return c.Send("Request failed: " + err.Error())
	}

	text, err := formatRawResponse(resp, filter)
	if err != nil {
		return c.Send("Filter failed: " + err.Error())
	}
	return c.Send(text, &tele.SendOptions{ParseMode: tele.ModeHTML})
}
