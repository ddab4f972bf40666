package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/channels"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/triggers"
)

// Bot connects the trigger engine and command front end to the registered
// channels.
type Bot struct {
	cfg    *Config
	logger *slog.Logger

	store    *triggers.Store
	engine   *triggers.Engine
	admin    *triggers.Admin
	channels *channels.Manager
	commands *Commands

	watcher   *Watcher
	heartbeat *Heartbeat

	sem      chan struct{}
	handlers sync.WaitGroup
	stopCh   chan struct{}
	loopDone chan struct{}
	cancel   context.CancelFunc

	mu      sync.Mutex
	started bool
}

// Option configures a Bot.
type Option func(*options)

type options struct {
	rand triggers.RandSource
}

// WithRandSource sets the random source used to pick replies.
func WithRandSource(src triggers.RandSource) Option {
	return func(o *options) { o.rand = src }
}

// New creates a bot over backend. Channels are added with RegisterChannel
// before Start.
func New(cfg *Config, backend triggers.Backend, logger *slog.Logger, opts ...Option) *Bot {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger = logger.With("bot", cfg.Name)

	store := triggers.NewStore(backend, logger)
	admin := triggers.NewAdmin(store, logger)
	mgr := channels.NewManager(logger)

	b := &Bot{
		cfg:      cfg,
		logger:   logger.With("component", "bot"),
		store:    store,
		engine:   triggers.NewEngine(store, triggers.NewSelector(o.rand), logger),
		admin:    admin,
		channels: mgr,
		commands: NewCommands(cfg, admin, mgr, logger),
		sem:      make(chan struct{}, max(cfg.Workers, 1)),
	}

	if cfg.Triggers.Watch && cfg.Triggers.Backend == BackendFile {
		b.watcher = NewWatcher(cfg.Triggers.Path, admin.Reload, logger)
	}
	if cfg.Heartbeat.Enabled {
		b.heartbeat = NewHeartbeat(cfg.Heartbeat.Schedule, mgr, store, logger)
	}
	return b
}

// RegisterChannel adds a messaging channel.
func (b *Bot) RegisterChannel(ch channels.Channel) error {
	return b.channels.Register(ch)
}

// Admin returns the trigger administration API.
func (b *Bot) Admin() *triggers.Admin { return b.admin }

// Engine returns the match engine.
func (b *Bot) Engine() *triggers.Engine { return b.engine }

// Start loads the triggers, connects the channels and begins handling
// messages. A failure to persist the default trigger set is logged and the
// bot runs with the in-memory defaults.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	n, err := b.store.Load(ctx)
	if err != nil {
		var perr *triggers.PersistenceError
		if !errors.As(err, &perr) {
			return err
		}
		b.logger.Warn("running with unsaved default triggers", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := b.channels.Start(runCtx); err != nil {
		cancel()
		return err
	}

	if b.watcher != nil {
		if err := b.watcher.Start(runCtx); err != nil {
			b.logger.Warn("trigger file watching disabled", "error", err)
		}
	}
	if b.heartbeat != nil {
		if err := b.heartbeat.Start(); err != nil {
			b.logger.Warn("heartbeat disabled", "error", err)
		}
	}

	b.cancel = cancel
	b.stopCh = make(chan struct{})
	b.loopDone = make(chan struct{})
	b.started = true

	go b.dispatch(runCtx)

	b.logger.Info("bot started", "triggers", n, "channels", b.channels.Names())
	return nil
}

// Stop stops accepting messages, waits for in-flight handlers and then
// disconnects the channels.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	b.started = false

	close(b.stopCh)
	<-b.loopDone
	b.handlers.Wait()

	if b.heartbeat != nil {
		b.heartbeat.Stop()
	}
	if b.watcher != nil {
		b.watcher.Stop()
	}
	b.channels.Stop()
	b.cancel()

	b.logger.Info("bot stopped")
}

func (b *Bot) dispatch(ctx context.Context) {
	defer close(b.loopDone)

	msgs := b.channels.Messages()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case b.sem <- struct{}{}:
			case <-b.stopCh:
				return
			case <-ctx.Done():
				return
			}
			b.handlers.Add(1)
			go func() {
				defer func() {
					<-b.sem
					b.handlers.Done()
				}()
				b.HandleMessage(ctx, msg)
			}()
		}
	}
}

// HandleMessage processes one inbound message: known commands go to the
// command front end, everything else is checked against the triggers.
// Message content is never logged.
func (b *Bot) HandleMessage(ctx context.Context, msg *channels.IncomingMessage) {
	log := b.logger.With(
		"request_id", uuid.NewString(),
		"channel", msg.Channel,
		"guild", msg.GuildID,
		"chat", msg.ChatID,
		"user", msg.From,
	)
	log.Debug("message received")

	if b.commands.IsCommand(msg.Content) {
		if res := b.commands.Handle(ctx, msg); res.Handled {
			b.reply(ctx, log, msg, res.Response)
			return
		}
	}

	result, ok := b.engine.CheckMessage(msg.Content)
	if !ok {
		return
	}

	limit := b.store.Snapshot().Settings().MaxResponseLength
	if b.reply(ctx, log, msg, truncateRunes(result.Response, limit)) {
		log.Info("sent auto-response", "trigger", result.Key, "mode", result.Mode)
	}
}

func (b *Bot) reply(ctx context.Context, log *slog.Logger, msg *channels.IncomingMessage, text string) bool {
	if text == "" {
		return false
	}
	timeout := b.cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().SendTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := b.channels.Send(sendCtx, msg.Channel, msg.ChatID, &channels.OutgoingMessage{Content: text})
	if err != nil {
		log.Error("failed to send message", "error", err)
		return false
	}
	return true
}

// truncateRunes shortens s to at most n runes. n <= 0 disables the limit.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
