package bot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"gopkg.in/telebot.v4"

	"mod-gobot/internal/auth"
	"mod-gobot/internal/bus"
	"mod-gobot/internal/config"
	"mod-gobot/internal/errorx"
	"mod-gobot/internal/logger"
	"mod-gobot/internal/platform"
	"mod-gobot/internal/redact"
	"mod-gobot/internal/routing"
	"mod-gobot/internal/storage"
)

// Bot wires the Telegram client to the command bus and group store
type Bot struct {
	api        *telebot.Bot // nil when running against a non-Telegram platform
	platform   platform.Platform // retrying wrapper over the backend
	retrying   *platform.Retrying
	store      *storage.Store
	registry   *bus.Registry
	bus        *bus.Bus
	cache      *routing.PendingCache
	resolver   *routing.Resolver
	dispatcher *routing.Dispatcher
	elevation  *auth.Elevation
	silencer   *bus.Silencer
	limiter    *RateLimiter
	redactor   *redact.Redactor
	startedAt  time.Time
	roll       func(n int) int

	mu            sync.RWMutex
	cfg           *config.Config
	configWatcher ConfigWatcher
}

// New creates a bot connected to Telegram
func New(cfg *config.Config, store *storage.Store) (*Bot, error) {
	pref := telebot.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &telebot.LongPoller{Timeout: cfg.Telegram.PollTimeout},
		OnError: func(err error, c telebot.Context) {
			logger.Errorf("Bot: telebot error: %v", err)
		},
	}

	api, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", mapError(err))
	}

	b := newBot(cfg, store, NewTelegram(api))
	b.api = api
	return b, nil
}

// newBot assembles everything that does not depend on telebot.
func newBot(cfg *config.Config, store *storage.Store, backend platform.Platform) *Bot {
	retrying := platform.NewRetrying(backend, retryPolicy(cfg))
	p := platform.Platform(retrying)
	elevation := auth.NewElevation(cfg.Auth.Superusers, cfg.Auth.SudoDuration)
	cache := routing.NewPendingCache()
	resolver := routing.NewResolver(store, p, elevation)

	b := &Bot{
		platform:   p,
		retrying:   retrying,
		store:      store,
		cache:      cache,
		resolver:   resolver,
		dispatcher: routing.NewDispatcher(cache, resolver, p),
		elevation:  elevation,
		silencer:   bus.NewSilencer(),
		limiter:    NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
		redactor:   redact.New(cfg.Secrets()...),
		startedAt:  time.Now(),
		roll:       rand.IntN,
		cfg:        cfg,
	}

	b.registry = bus.NewRegistry(
		bus.RateLimit(b.limiter),
		bus.RequireReply(),
		routing.Target(b.dispatcher),
		bus.Silence(b.silencer, b.elevation),
		bus.RequirePermission(b.elevation),
		routing.Confirm(cache),
		bus.Audit(store),
	)
	b.registerCommands()

	b.bus = bus.New(b.registry, p, bus.Options{OnError: b.reportError})
	b.bus.Observe(b.trackGroup)
	b.dispatcher.Bind(b.bus)

	return b
}

func retryPolicy(cfg *config.Config) errorx.Policy {
	return errorx.Policy{Attempts: cfg.Retry.Attempts, Backoff: cfg.Retry.Backoff}
}

func (b *Bot) config() *config.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// Bus returns the command bus.
func (b *Bot) Bus() *bus.Bus {
	return b.bus
}

// Resolver returns the group resolver used for routing and sweeps.
func (b *Bot) Resolver() *routing.Resolver {
	return b.resolver
}

// Elevation returns the sudo state.
func (b *Bot) Elevation() *auth.Elevation {
	return b.elevation
}

// Store returns the group store.
func (b *Bot) Store() *storage.Store {
	return b.store
}

// Username is the bot's Telegram username.
func (b *Bot) Username() string {
	return b.platform.Username()
}

// Redact masks configured secrets and token-shaped strings in s.
func (b *Bot) Redact(s string) string {
	return b.redactor.Redact(s)
}

// SendMessage posts text to a chat on behalf of the bot.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := b.platform.Send(ctx, chatID, text, nil)
	return err
}

// Publish feeds an inbound event to the bus.
func (b *Bot) Publish(ctx context.Context, ev bus.Event) error {
	return b.bus.Publish(ctx, ev)
}

// registerBotCommands publishes the command menu to Telegram
func (b *Bot) registerBotCommands() {
	var commands []telebot.Command
	for _, cmd := range b.registry.Commands() {
		if cmd.Hidden {
			continue
		}
		commands = append(commands, telebot.Command{Text: cmd.Name, Description: cmd.Description})
	}

	if err := b.api.SetCommands(commands); err != nil {
		logger.Warnf("Bot: failed to register commands with BotFather: %v", err)
	} else {
		logger.Infof("Bot: registered %d commands with BotFather", len(commands))
	}
}

// Start begins processing updates and blocks until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return fmt.Errorf("bot has no Telegram client")
	}

	b.registerBotCommands()
	b.registerHandlers(ctx)

	go b.api.Start()
	logger.Infof("Bot: @%s started", b.api.Me.Username)

	<-ctx.Done()

	logger.Infof("Bot: stopping")
	b.api.Stop()
	return nil
}
