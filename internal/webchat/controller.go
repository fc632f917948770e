package webchat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"altotrafico-web/internal/logger"
	"altotrafico-web/models"

	"github.com/google/uuid"
)

type op struct {
	fn  func()
	ran chan struct{}
}

// Controller owns one widget conversation. All state lives on a single loop
// goroutine; public methods and remote results are executed there one turn at
// a time, so merges are atomic without locks.
type Controller struct {
	cfg    models.ChatConfig
	remote Remote
	inert  bool

	pollInterval   time.Duration
	sendTimeout    time.Duration
	requestTimeout time.Duration
	render         func(View)
	now            func() time.Time
	newID          func() string
	log            *slog.Logger

	onPollDone   func(error)
	onSendDone   func()
	onCreateDone func()

	ops         chan op
	done        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	discardOnce sync.Once
	snap        atomic.Pointer[View]

	// Loop-owned state.
	status       Status
	open         bool
	sessionID    string
	contact      ContactInfo
	messages     []Message
	seen         map[string]struct{}
	cursor       time.Time
	fieldErrors  FieldErrors
	sending      bool
	sendSeq      uint64
	sendTimer    *time.Timer
	pollInFlight bool
	pollFailures int
	stopPoll     chan struct{}
	dirty        bool
}

type Option func(*Controller)

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

func WithSendTimeout(d time.Duration) Option {
	return func(c *Controller) { c.sendTimeout = d }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Controller) { c.requestTimeout = d }
}

// WithRender registers a callback that receives a View after every turn that
// changed visible state. It runs on the loop goroutine and must not call back
// into the Controller.
func WithRender(fn func(View)) Option {
	return func(c *Controller) { c.render = fn }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func withPollHook(fn func(error)) Option {
	return func(c *Controller) { c.onPollDone = fn }
}

func withSendHook(fn func()) Option {
	return func(c *Controller) { c.onSendDone = fn }
}

func withCreateHook(fn func()) Option {
	return func(c *Controller) { c.onCreateDone = fn }
}

// NewController returns a controller in the uninitialized state. When cfg is
// disabled or lacks a URL or key the controller is inert: it starts no
// goroutines and never calls remote.
func NewController(cfg models.ChatConfig, remote Remote, opts ...Option) *Controller {
	if cfg.WelcomeMessage == "" {
		cfg.WelcomeMessage = DefaultWelcomeMessage
	}
	if cfg.BotName == "" {
		cfg.BotName = DefaultBotName
	}

	c := &Controller{
		cfg:            cfg,
		remote:         remote,
		inert:          !cfg.Usable() || remote == nil,
		pollInterval:   DefaultPollInterval,
		sendTimeout:    DefaultSendTimeout,
		requestTimeout: DefaultRequestTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
		log:            logger.With("component", "webchat"),
		status:         StatusUninitialized,
		seen:           make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	v := c.view()
	c.snap.Store(&v)

	if c.inert {
		return c
	}

	c.ops = make(chan op)
	c.done = make(chan struct{})
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.loop()
	return c
}

func (c *Controller) loop() {
	for {
		select {
		case o := <-c.ops:
			o.fn()
			c.flush()
			if o.ran != nil {
				close(o.ran)
			}
		case <-c.done:
			return
		}
	}
}

// call runs fn on the loop and waits for the turn to finish.
func (c *Controller) call(fn func()) bool {
	if c.inert {
		return false
	}
	ran := make(chan struct{})
	select {
	case c.ops <- op{fn: fn, ran: ran}:
	case <-c.done:
		return false
	}
	select {
	case <-ran:
		return true
	case <-c.done:
		return false
	}
}

// post queues fn as a later turn without waiting.
func (c *Controller) post(fn func()) {
	select {
	case c.ops <- op{fn: fn}:
	case <-c.done:
	}
}

func (c *Controller) flush() {
	if !c.dirty {
		return
	}
	c.dirty = false
	v := c.view()
	c.snap.Store(&v)
	if c.render != nil {
		c.render(v)
	}
}

func (c *Controller) view() View {
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)

	var fe FieldErrors
	if len(c.fieldErrors) > 0 {
		fe = make(FieldErrors, len(c.fieldErrors))
		for k, v := range c.fieldErrors {
			fe[k] = v
		}
	}

	return View{
		Status:      c.status,
		Open:        c.open,
		Visible:     !c.inert && c.status != StatusClosed,
		BotName:     c.cfg.BotName,
		SessionID:   c.sessionID,
		Contact:     c.contact,
		Messages:    msgs,
		Sending:     c.sending,
		FieldErrors: fe,
		PollCursor:  c.cursor,
	}
}

// Snapshot returns a copy of the current state. After Discard it returns the
// final state.
func (c *Controller) Snapshot() View {
	var v View
	if c.call(func() { v = c.view() }) {
		return v
	}
	return *c.snap.Load()
}

func (c *Controller) Inert() bool { return c.inert }

// Open shows the widget. The first open moves to awaiting_contact_info; a
// reopen with an existing session resumes polling.
func (c *Controller) Open() {
	c.call(func() {
		if c.status == StatusClosed || c.open {
			return
		}
		c.open = true
		if c.status == StatusUninitialized {
			c.status = StatusAwaitingContactInfo
		}
		c.startPolling()
		c.dirty = true
	})
}

// Close hides the widget and suspends polling. In-flight requests keep running.
func (c *Controller) Close() {
	c.call(func() {
		if !c.open {
			return
		}
		c.open = false
		c.stopPolling()
		c.dirty = true
	})
}

// Discard tears the conversation down for good. It is safe to call more than once.
func (c *Controller) Discard() {
	if c.inert {
		return
	}
	c.discardOnce.Do(func() {
		c.call(func() {
			c.status = StatusClosed
			c.open = false
			c.stopPolling()
			if c.sendTimer != nil {
				c.sendTimer.Stop()
			}
			c.dirty = true
		})
		c.cancel()
		close(c.done)
	})
}

// SubmitContactInfo validates the contact form and, when valid, starts
// creating a session. Field problems come back as FieldErrors and make no
// network call.
func (c *Controller) SubmitContactInfo(ci ContactInfo) error {
	if c.inert {
		return ErrInert
	}

	var result error
	ok := c.call(func() {
		switch c.status {
		case StatusClosed:
			result = ErrClosed
			return
		case StatusAwaitingContactInfo:
		default:
			result = ErrBusy
			return
		}

		clean, errs := ValidateContact(ci)
		if errs != nil {
			c.fieldErrors = errs
			c.dirty = true
			result = errs
			return
		}

		c.fieldErrors = nil
		c.contact = clean
		c.status = StatusInitializing
		c.appendMessage(Message{
			ID:        welcomeID,
			Role:      RoleAssistant,
			Content:   c.cfg.WelcomeMessage,
			CreatedAt: c.now(),
		})
		c.dirty = true
		c.startCreate(clean)
	})
	if !ok {
		return ErrClosed
	}
	return result
}

func (c *Controller) startCreate(ci ContactInfo) {
	req := CreateSessionRequest{
		Content:      greeting(ci.Name),
		VisitorName:  ci.Name,
		VisitorEmail: ci.Email,
	}
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.requestTimeout)
		defer cancel()
		env, err := c.remote.CreateSession(ctx, req)
		c.post(func() { c.finishCreate(env, err) })
	}()
}

func (c *Controller) finishCreate(env *Envelope, err error) {
	if c.onCreateDone != nil {
		defer c.onCreateDone()
	}
	if c.status != StatusInitializing {
		return
	}

	if err != nil || env == nil || env.SessionID == "" {
		if err != nil {
			c.log.Warn("create session failed", "error", err)
		} else {
			c.log.Warn("create session returned no sessionId")
		}
		c.status = StatusAwaitingContactInfo
		c.appendSystemNotice()
		c.dirty = true
		return
	}

	c.sessionID = env.SessionID
	c.status = StatusActive
	// Only inline OUTBOUND entries count on create; a bare status string is not a reply.
	if env.ListMatched {
		c.mergeRemote(env.Messages)
	}
	c.startPolling()
	c.dirty = true
}

// SendMessage posts text from the visitor. It reports false when the message
// was dropped: empty text, no session yet, or a send already in flight.
func (c *Controller) SendMessage(text string) bool {
	accepted := false
	c.call(func() {
		content := strings.TrimSpace(text)
		if content == "" || c.sessionID == "" || c.sending || c.status == StatusClosed {
			return
		}

		c.appendMessage(Message{
			ID:        c.newID(),
			Role:      RoleUser,
			Content:   content,
			CreatedAt: c.now(),
		})
		c.sending = true
		c.sendSeq++
		seq := c.sendSeq
		sid := c.sessionID

		if c.sendTimer != nil {
			c.sendTimer.Stop()
		}
		c.sendTimer = time.AfterFunc(c.sendTimeout, func() {
			c.post(func() { c.expireSend(seq) })
		})

		c.dirty = true
		accepted = true

		go func() {
			ctx, cancel := context.WithTimeout(c.ctx, 2*c.sendTimeout)
			defer cancel()
			env, err := c.remote.SendMessage(ctx, sid, content)
			c.post(func() { c.finishSend(seq, sid, env, err) })
		}()
	})
	return accepted
}

func (c *Controller) expireSend(seq uint64) {
	if seq != c.sendSeq || !c.sending {
		return
	}
	c.log.Warn("send timed out, re-enabling input", "timeout", c.sendTimeout)
	c.sending = false
	c.dirty = true
}

func (c *Controller) finishSend(seq uint64, sid string, env *Envelope, err error) {
	if c.onSendDone != nil {
		defer c.onSendDone()
	}
	if seq == c.sendSeq && c.sending {
		c.sending = false
		if c.sendTimer != nil {
			c.sendTimer.Stop()
		}
		c.dirty = true
	}
	if c.status == StatusClosed || sid != c.sessionID {
		return
	}

	if err != nil {
		c.log.Warn("send message failed", "error", err)
		c.appendSystemNotice()
		c.dirty = true
		return
	}
	if c.mergeEnvelope(env) > 0 {
		c.dirty = true
	}
}

// PollOnce asks for messages newer than the cursor. It does nothing without a
// session, once polling is degraded, or while a poll is already in flight.
func (c *Controller) PollOnce() {
	c.call(c.pollOnce)
}

func (c *Controller) pollOnce() {
	if c.sessionID == "" || c.pollInFlight {
		return
	}
	if c.status != StatusActive {
		return
	}

	c.pollInFlight = true
	sid, after := c.sessionID, c.cursor
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.requestTimeout)
		defer cancel()
		env, err := c.remote.FetchMessages(ctx, sid, after)
		c.post(func() { c.finishPoll(sid, env, err) })
	}()
}

func (c *Controller) finishPoll(sid string, env *Envelope, err error) {
	c.pollInFlight = false
	if c.onPollDone != nil {
		defer c.onPollDone(err)
	}
	if sid != c.sessionID || c.status != StatusActive {
		return
	}

	if err != nil {
		c.pollFailures++
		c.log.Debug("poll failed", "error", err, "consecutive", c.pollFailures)
		if c.pollFailures >= MaxPollFailures {
			c.log.Warn("polling stopped after consecutive failures", "failures", c.pollFailures)
			c.status = StatusPollingDegraded
			c.stopPolling()
			c.dirty = true
		}
		return
	}

	c.pollFailures = 0
	if env == nil || !env.ListMatched {
		return
	}
	if c.mergeRemote(env.Messages) > 0 {
		c.dirty = true
	}
}

func (c *Controller) startPolling() {
	if c.stopPoll != nil || !c.open || c.sessionID == "" || c.status != StatusActive {
		return
	}
	stop := make(chan struct{})
	c.stopPoll = stop

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.post(func() {
					if c.open {
						c.pollOnce()
					}
				})
			case <-stop:
				return
			case <-c.done:
				return
			}
		}
	}()
}

func (c *Controller) stopPolling() {
	if c.stopPoll != nil {
		close(c.stopPoll)
		c.stopPoll = nil
	}
}

// mergeEnvelope merges a send response: a message list when one was found,
// otherwise a bare reply string.
func (c *Controller) mergeEnvelope(env *Envelope) int {
	if env == nil {
		return 0
	}
	if env.ListMatched {
		return c.mergeRemote(env.Messages)
	}
	if env.ReplyText == "" {
		return 0
	}

	id := env.ReplyID
	if id == "" {
		id = c.newID()
	}
	now := c.now()
	if !c.appendMessage(Message{ID: id, Role: RoleAssistant, Content: env.ReplyText, CreatedAt: now}) {
		return 0
	}
	if now.After(c.cursor) {
		c.cursor = now
	}
	return 1
}

// mergeRemote appends OUTBOUND messages whose IDs are new, in the order
// received, and advances the cursor to the newest appended timestamp.
func (c *Controller) mergeRemote(msgs []RemoteMessage) int {
	added := 0
	for _, rm := range msgs {
		if !rm.Outbound() {
			continue
		}
		id := rm.ID
		if id == "" {
			id = c.newID()
		}
		created := rm.CreatedAt
		if !rm.HasTime {
			created = c.now()
		}
		if !c.appendMessage(Message{ID: id, Role: RoleAssistant, Content: rm.Content, CreatedAt: created}) {
			continue
		}
		added++
		if rm.HasTime && rm.CreatedAt.After(c.cursor) {
			c.cursor = rm.CreatedAt
		}
	}
	return added
}

// appendMessage is the only way into c.messages.
func (c *Controller) appendMessage(m Message) bool {
	if _, dup := c.seen[m.ID]; dup {
		return false
	}
	c.seen[m.ID] = struct{}{}
	c.messages = append(c.messages, m)
	return true
}

func (c *Controller) appendSystemNotice() {
	c.appendMessage(Message{
		ID:        c.newID(),
		Role:      RoleAssistant,
		Content:   connectFailedMessage,
		CreatedAt: c.now(),
	})
}
