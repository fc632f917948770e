package webchat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"altotrafico-web/models"
)

var testConfig = models.ChatConfig{
	Enabled:        true,
	APIURL:         "https://chat.example/api/webchat",
	APIKey:         "k-123",
	WelcomeMessage: "Bienvenido",
	BotName:        "AT",
}

type fakeRemote struct {
	mu sync.Mutex

	createFn func(ctx context.Context, req CreateSessionRequest) (*Envelope, error)
	sendFn   func(ctx context.Context, sessionID, content string) (*Envelope, error)
	fetchFn  func(ctx context.Context, sessionID string, after time.Time) (*Envelope, error)

	creates    []CreateSessionRequest
	sends      []string
	fetchAfter []time.Time
}

func (f *fakeRemote) CreateSession(ctx context.Context, req CreateSessionRequest) (*Envelope, error) {
	f.mu.Lock()
	f.creates = append(f.creates, req)
	fn := f.createFn
	f.mu.Unlock()
	if fn == nil {
		return &Envelope{SessionID: "s1"}, nil
	}
	return fn(ctx, req)
}

func (f *fakeRemote) SendMessage(ctx context.Context, sessionID, content string) (*Envelope, error) {
	f.mu.Lock()
	f.sends = append(f.sends, content)
	fn := f.sendFn
	f.mu.Unlock()
	if fn == nil {
		return &Envelope{}, nil
	}
	return fn(ctx, sessionID, content)
}

func (f *fakeRemote) FetchMessages(ctx context.Context, sessionID string, after time.Time) (*Envelope, error) {
	f.mu.Lock()
	f.fetchAfter = append(f.fetchAfter, after)
	fn := f.fetchFn
	f.mu.Unlock()
	if fn == nil {
		return &Envelope{ListMatched: true}, nil
	}
	return fn(ctx, sessionID, after)
}

func (f *fakeRemote) counts() (creates, sends, fetches int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates), len(f.sends), len(f.fetchAfter)
}

// harness wires hook channels and a render counter around a controller.
type harness struct {
	c       *Controller
	created chan struct{}
	sent    chan struct{}
	polled  chan error
	renders atomic.Int32
}

func newHarness(t *testing.T, remote Remote, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		created: make(chan struct{}, 16),
		sent:    make(chan struct{}, 16),
		polled:  make(chan error, 64),
	}
	base := []Option{
		// Tests drive polls by hand unless they shorten the interval.
		WithPollInterval(time.Hour),
		WithRender(func(View) { h.renders.Add(1) }),
		withCreateHook(func() { notify(h.created, struct{}{}) }),
		withSendHook(func() { notify(h.sent, struct{}{}) }),
		withPollHook(func(err error) { notify(h.polled, err) }),
	}
	h.c = NewController(testConfig, remote, append(base, opts...)...)
	t.Cleanup(h.c.Discard)
	return h
}

// notify never blocks the loop goroutine; a full buffer drops the event.
func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func wait[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

// activate opens the widget and completes contact submission.
func (h *harness) activate(t *testing.T) {
	t.Helper()
	h.c.Open()
	if err := h.c.SubmitContactInfo(ContactInfo{Name: "Ana", Email: "ana@x.com"}); err != nil {
		t.Fatalf("SubmitContactInfo: %v", err)
	}
	wait(t, h.created, "session create")
	if got := h.c.Snapshot().Status; got != StatusActive {
		t.Fatalf("status = %q, want %q", got, StatusActive)
	}
}

func outbound(id, content string, at time.Time) RemoteMessage {
	return RemoteMessage{ID: id, Direction: DirectionOutbound, Content: content, CreatedAt: at, HasTime: true}
}

func contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func assertUniqueIDs(t *testing.T, msgs []Message) {
	t.Helper()
	seen := map[string]bool{}
	for _, m := range msgs {
		if seen[m.ID] {
			t.Errorf("duplicate message id %q in %v", m.ID, contents(msgs))
		}
		seen[m.ID] = true
	}
}

func TestController_OpenShowsContactForm(t *testing.T) {
	h := newHarness(t, &fakeRemote{})

	if got := h.c.Snapshot().Status; got != StatusUninitialized {
		t.Errorf("initial status = %q, want %q", got, StatusUninitialized)
	}
	h.c.Open()
	v := h.c.Snapshot()
	if v.Status != StatusAwaitingContactInfo || !v.Open || !v.Visible {
		t.Errorf("after Open = %+v", v)
	}
	if v.BotName != "AT" {
		t.Errorf("BotName = %q, want %q", v.BotName, "AT")
	}
}

func TestController_InvalidContactMakesNoCall(t *testing.T) {
	tests := []struct {
		name    string
		contact ContactInfo
		field   string
	}{
		{"bad email", ContactInfo{Name: "Ana", Email: "not-an-email"}, "email"},
		{"missing tld", ContactInfo{Name: "Ana", Email: "ana@x"}, "email"},
		{"blank name", ContactInfo{Name: "   ", Email: "ana@x.com"}, "name"},
		{"blank email", ContactInfo{Name: "Ana", Email: ""}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{}
			h := newHarness(t, remote)
			h.c.Open()

			err := h.c.SubmitContactInfo(tt.contact)
			var fe FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want FieldErrors", err)
			}
			if _, ok := fe[tt.field]; !ok {
				t.Errorf("field errors = %v, want entry for %q", fe, tt.field)
			}

			v := h.c.Snapshot()
			if v.Status != StatusAwaitingContactInfo {
				t.Errorf("status = %q, want %q", v.Status, StatusAwaitingContactInfo)
			}
			if len(v.Messages) != 0 {
				t.Errorf("messages = %v, want none", contents(v.Messages))
			}
			if creates, _, _ := remote.counts(); creates != 0 {
				t.Errorf("create calls = %d, want 0", creates)
			}
		})
	}
}

func TestController_ContactScenario(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	remote := &fakeRemote{
		createFn: func(context.Context, CreateSessionRequest) (*Envelope, error) {
			return &Envelope{
				SessionID:   "s1",
				ListMatched: true,
				Messages: []RemoteMessage{
					{ID: "in-1", Direction: "INBOUND", Content: "Hola, soy Ana", CreatedAt: t0, HasTime: true},
					outbound("m1", "Hola Ana", t0),
				},
			}, nil
		},
		fetchFn: func(context.Context, string, time.Time) (*Envelope, error) {
			return &Envelope{ListMatched: true, Messages: []RemoteMessage{outbound("m1", "Hola Ana", t0)}}, nil
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	remote.mu.Lock()
	req := remote.creates[0]
	remote.mu.Unlock()
	want := CreateSessionRequest{Content: "Hola, soy Ana", VisitorName: "Ana", VisitorEmail: "ana@x.com"}
	if req != want {
		t.Errorf("create request = %+v, want %+v", req, want)
	}

	v := h.c.Snapshot()
	if v.SessionID != "s1" {
		t.Errorf("SessionID = %q, want %q", v.SessionID, "s1")
	}
	got := contents(v.Messages)
	if len(got) != 2 || got[0] != "Bienvenido" || got[1] != "Hola Ana" {
		t.Fatalf("messages = %q, want [Bienvenido Hola Ana]", got)
	}
	if !v.PollCursor.Equal(t0) {
		t.Errorf("cursor = %v, want %v", v.PollCursor, t0)
	}

	// The same message delivered again by a poll is not appended twice.
	h.c.PollOnce()
	if err := wait(t, h.polled, "poll"); err != nil {
		t.Fatalf("poll err = %v", err)
	}
	v = h.c.Snapshot()
	if len(v.Messages) != 2 {
		t.Errorf("messages after repeat = %q", contents(v.Messages))
	}
	assertUniqueIDs(t, v.Messages)
}

func TestController_CreateIgnoresBareReplyText(t *testing.T) {
	remote := &fakeRemote{
		createFn: func(context.Context, CreateSessionRequest) (*Envelope, error) {
			return ParseEnvelope([]byte(`{"sessionId":"s1","message":"Session created"}`))
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	v := h.c.Snapshot()
	if v.SessionID != "s1" {
		t.Errorf("SessionID = %q, want %q", v.SessionID, "s1")
	}
	got := contents(v.Messages)
	if len(got) != 1 || got[0] != "Bienvenido" {
		t.Fatalf("messages = %q, want [Bienvenido]", got)
	}
}

func TestController_CreateFailureReturnsToForm(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	remote := &fakeRemote{
		createFn: func(context.Context, CreateSessionRequest) (*Envelope, error) {
			if fail.Load() {
				return nil, errors.New("connection refused")
			}
			return &Envelope{SessionID: "s2"}, nil
		},
	}
	h := newHarness(t, remote)
	h.c.Open()

	if err := h.c.SubmitContactInfo(ContactInfo{Name: "Ana", Email: "ana@x.com"}); err != nil {
		t.Fatalf("SubmitContactInfo: %v", err)
	}
	wait(t, h.created, "session create")

	v := h.c.Snapshot()
	if v.Status != StatusAwaitingContactInfo || v.SessionID != "" {
		t.Fatalf("after failure = %+v", v)
	}
	got := contents(v.Messages)
	if len(got) != 2 || got[1] != connectFailedMessage {
		t.Fatalf("messages = %q, want welcome then failure notice", got)
	}
	if v.Messages[1].Role != RoleAssistant {
		t.Errorf("notice role = %q, want assistant", v.Messages[1].Role)
	}

	// A missing sessionId counts as failure too.
	fail.Store(false)
	remote.mu.Lock()
	remote.createFn = func(context.Context, CreateSessionRequest) (*Envelope, error) {
		return &Envelope{ReplyText: "ok"}, nil
	}
	remote.mu.Unlock()
	_ = h.c.SubmitContactInfo(ContactInfo{Name: "Ana", Email: "ana@x.com"})
	wait(t, h.created, "session create")
	if got := h.c.Snapshot().Status; got != StatusAwaitingContactInfo {
		t.Errorf("status after missing sessionId = %q", got)
	}

	remote.mu.Lock()
	remote.createFn = nil
	remote.mu.Unlock()
	_ = h.c.SubmitContactInfo(ContactInfo{Name: "Ana", Email: "ana@x.com"})
	wait(t, h.created, "session create")

	v = h.c.Snapshot()
	if v.Status != StatusActive || v.SessionID != "s1" {
		t.Errorf("after retry = %+v", v)
	}
	welcomes := 0
	for _, m := range v.Messages {
		if m.ID == welcomeID {
			welcomes++
		}
	}
	if welcomes != 1 {
		t.Errorf("welcome messages = %d, want 1", welcomes)
	}
}

func TestController_NoPollingBeforeSession(t *testing.T) {
	release := make(chan struct{})
	remote := &fakeRemote{
		createFn: func(context.Context, CreateSessionRequest) (*Envelope, error) {
			<-release
			return &Envelope{SessionID: "s1"}, nil
		},
	}
	h := newHarness(t, remote, WithPollInterval(5*time.Millisecond))
	h.c.Open()
	_ = h.c.SubmitContactInfo(ContactInfo{Name: "Ana", Email: "ana@x.com"})

	h.c.PollOnce()
	time.Sleep(40 * time.Millisecond)
	if _, _, fetches := remote.counts(); fetches != 0 {
		t.Errorf("fetches while initializing = %d, want 0", fetches)
	}
	if got := h.c.Snapshot().Status; got != StatusInitializing {
		t.Errorf("status = %q, want %q", got, StatusInitializing)
	}
	if h.c.SendMessage("hola") {
		t.Error("SendMessage accepted without a session")
	}

	close(release)
	wait(t, h.created, "session create")
	wait(t, h.polled, "first ticker poll")
}

func TestController_ZeroNewMessagesLeavesCursorAndSkipsRender(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	remote := &fakeRemote{
		fetchFn: func(context.Context, string, time.Time) (*Envelope, error) {
			if calls.Add(1) == 1 {
				return &Envelope{ListMatched: true, Messages: []RemoteMessage{outbound("m1", "hola", t0)}}, nil
			}
			return &Envelope{ListMatched: true}, nil
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	h.c.PollOnce()
	wait(t, h.polled, "first poll")
	before := h.c.Snapshot()
	renders := h.renders.Load()

	h.c.PollOnce()
	wait(t, h.polled, "second poll")
	after := h.c.Snapshot()

	if !after.PollCursor.Equal(before.PollCursor) || !after.PollCursor.Equal(t0) {
		t.Errorf("cursor = %v, want %v", after.PollCursor, t0)
	}
	if got := h.renders.Load(); got != renders {
		t.Errorf("renders = %d, want %d (no update for an empty poll)", got, renders)
	}
	if len(after.Messages) != len(before.Messages) {
		t.Errorf("messages changed: %q -> %q", contents(before.Messages), contents(after.Messages))
	}
}

func TestController_CursorSentOnNextPoll(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(3 * time.Second)
	remote := &fakeRemote{
		fetchFn: func(context.Context, string, time.Time) (*Envelope, error) {
			return &Envelope{ListMatched: true, Messages: []RemoteMessage{
				outbound("m2", "b", t1),
				outbound("m1", "a", t0),
			}}, nil
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	h.c.PollOnce()
	wait(t, h.polled, "poll")
	h.c.PollOnce()
	wait(t, h.polled, "poll")

	remote.mu.Lock()
	afters := append([]time.Time(nil), remote.fetchAfter...)
	remote.mu.Unlock()

	if len(afters) != 2 {
		t.Fatalf("fetches = %d, want 2", len(afters))
	}
	if !afters[0].IsZero() {
		t.Errorf("first cursor = %v, want zero", afters[0])
	}
	if !afters[1].Equal(t1) {
		t.Errorf("second cursor = %v, want newest timestamp %v", afters[1], t1)
	}
}

func TestController_PollFailuresStopPolling(t *testing.T) {
	remote := &fakeRemote{
		fetchFn: func(context.Context, string, time.Time) (*Envelope, error) {
			return nil, &StatusError{StatusCode: 502}
		},
	}
	h := newHarness(t, remote, WithPollInterval(5*time.Millisecond))
	h.activate(t)

	for i := 0; i < MaxPollFailures; i++ {
		if err := wait(t, h.polled, "failing poll"); err == nil {
			t.Fatalf("poll %d succeeded", i+1)
		}
	}

	// The ticker would have fired many more times by now.
	time.Sleep(60 * time.Millisecond)
	h.c.PollOnce()

	if _, _, fetches := remote.counts(); fetches != MaxPollFailures {
		t.Errorf("fetches = %d, want %d", fetches, MaxPollFailures)
	}
	v := h.c.Snapshot()
	if v.Status != StatusPollingDegraded {
		t.Errorf("status = %q, want %q", v.Status, StatusPollingDegraded)
	}
	// Polling errors never surface as messages.
	if len(v.Messages) != 1 {
		t.Errorf("messages = %q, want only the welcome", contents(v.Messages))
	}
}

func TestController_PollSuccessResetsFailureCount(t *testing.T) {
	var calls atomic.Int32
	remote := &fakeRemote{
		fetchFn: func(context.Context, string, time.Time) (*Envelope, error) {
			// Four failures, one success, four failures: never five in a row.
			if calls.Add(1) == 5 {
				return &Envelope{ListMatched: true}, nil
			}
			return nil, errors.New("timeout")
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	for i := 0; i < 9; i++ {
		h.c.PollOnce()
		wait(t, h.polled, "poll")
	}
	if got := h.c.Snapshot().Status; got != StatusActive {
		t.Errorf("status = %q, want %q", got, StatusActive)
	}
}

func TestController_SendMessageTimeout(t *testing.T) {
	const timeout = 60 * time.Millisecond
	release := make(chan struct{})
	remote := &fakeRemote{
		sendFn: func(context.Context, string, string) (*Envelope, error) {
			<-release
			return &Envelope{ReplyText: "demasiado tarde"}, nil
		},
	}

	var mu sync.Mutex
	var reenabledAt time.Time
	sawSending := false
	render := WithRender(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		if v.Sending {
			sawSending = true
		} else if sawSending && reenabledAt.IsZero() {
			reenabledAt = time.Now()
		}
	})

	h := newHarness(t, remote, WithSendTimeout(timeout), render)
	h.activate(t)

	start := time.Now()
	if !h.c.SendMessage("precio?") {
		t.Fatal("SendMessage rejected")
	}
	if !h.c.Snapshot().Sending {
		t.Fatal("Sending should be set while the request is in flight")
	}
	if h.c.SendMessage("otra") {
		t.Error("second send accepted while one is in flight")
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.c.Snapshot().Sending {
		if time.Now().After(deadline) {
			t.Fatal("Sending never cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	elapsed := reenabledAt.Sub(start)
	mu.Unlock()
	if elapsed < timeout {
		t.Errorf("input re-enabled after %v, want at least %v", elapsed, timeout)
	}

	v := h.c.Snapshot()
	last := v.Messages[len(v.Messages)-1]
	if last.Role != RoleUser || last.Content != "precio?" {
		t.Errorf("last message = %+v, want the optimistic user message", last)
	}
	for _, m := range v.Messages[1:] {
		if m.Role == RoleAssistant {
			t.Errorf("unexpected assistant message %q", m.Content)
		}
	}

	h.c.Discard()
	close(release)
}

func TestController_SendMergesReplyAndDedupsWithPoll(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	reply := outbound("r1", "Desde 99€", t0)
	remote := &fakeRemote{
		sendFn: func(context.Context, string, string) (*Envelope, error) {
			return &Envelope{ListMatched: true, Messages: []RemoteMessage{reply}}, nil
		},
		fetchFn: func(context.Context, string, time.Time) (*Envelope, error) {
			return &Envelope{ListMatched: true, Messages: []RemoteMessage{reply, reply}}, nil
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	if !h.c.SendMessage("  precio?  ") {
		t.Fatal("SendMessage rejected")
	}
	wait(t, h.sent, "send")

	for i := 0; i < 3; i++ {
		h.c.PollOnce()
		wait(t, h.polled, "poll")
	}

	v := h.c.Snapshot()
	got := contents(v.Messages)
	if len(got) != 3 || got[1] != "precio?" || got[2] != "Desde 99€" {
		t.Errorf("messages = %q", got)
	}
	if v.Sending {
		t.Error("Sending still set after reply")
	}
	assertUniqueIDs(t, v.Messages)

	remote.mu.Lock()
	sent := remote.sends[0]
	remote.mu.Unlock()
	if sent != "precio?" {
		t.Errorf("sent content = %q, want trimmed text", sent)
	}
}

func TestController_SendReplyText(t *testing.T) {
	remote := &fakeRemote{
		sendFn: func(context.Context, string, string) (*Envelope, error) {
			return &Envelope{ReplyText: "Te llamamos mañana", ReplyID: "x9"}, nil
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	h.c.SendMessage("hola")
	wait(t, h.sent, "send")

	v := h.c.Snapshot()
	last := v.Messages[len(v.Messages)-1]
	if last.ID != "x9" || last.Role != RoleAssistant || last.Content != "Te llamamos mañana" {
		t.Errorf("last message = %+v", last)
	}
	if v.PollCursor.IsZero() {
		t.Error("cursor should advance after an inline reply")
	}
}

func TestController_SendFailureShowsNotice(t *testing.T) {
	remote := &fakeRemote{
		sendFn: func(context.Context, string, string) (*Envelope, error) {
			return nil, &StatusError{StatusCode: 500}
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	h.c.SendMessage("hola")
	wait(t, h.sent, "send")

	v := h.c.Snapshot()
	if v.Sending {
		t.Error("Sending still set after failure")
	}
	if got := v.Messages[len(v.Messages)-1].Content; got != connectFailedMessage {
		t.Errorf("last message = %q, want failure notice", got)
	}
	if v.Status != StatusActive {
		t.Errorf("status = %q, want %q", v.Status, StatusActive)
	}
}

func TestController_EmptySendIsNoop(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote)
	h.activate(t)

	if h.c.SendMessage("   ") {
		t.Error("blank message accepted")
	}
	if _, sends, _ := remote.counts(); sends != 0 {
		t.Errorf("sends = %d, want 0", sends)
	}
}

// Display order is insertion order. A poll that returns an older message after
// a newer one has been shown appends it at the end and leaves the cursor alone.
func TestController_InsertionOrderNotTimestampOrder(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	batches := [][]RemoteMessage{
		{outbound("late", "segundo", t0.Add(time.Minute))},
		{outbound("early", "primero", t0)},
	}
	var calls atomic.Int32
	remote := &fakeRemote{
		fetchFn: func(context.Context, string, time.Time) (*Envelope, error) {
			i := calls.Add(1) - 1
			return &Envelope{ListMatched: true, Messages: batches[i]}, nil
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	h.c.PollOnce()
	wait(t, h.polled, "poll")
	h.c.PollOnce()
	wait(t, h.polled, "poll")

	v := h.c.Snapshot()
	got := contents(v.Messages)
	if len(got) != 3 || got[1] != "segundo" || got[2] != "primero" {
		t.Errorf("messages = %q, want insertion order [.. segundo primero]", got)
	}
	if !v.PollCursor.Equal(t0.Add(time.Minute)) {
		t.Errorf("cursor = %v, want %v", v.PollCursor, t0.Add(time.Minute))
	}
}

func TestController_CloseSuspendsAndReopenResumes(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote, WithPollInterval(5*time.Millisecond))
	h.activate(t)
	wait(t, h.polled, "ticker poll")

	h.c.Close()
	// Let any poll already in flight drain.
	time.Sleep(20 * time.Millisecond)
	_, _, before := remote.counts()
	time.Sleep(50 * time.Millisecond)
	if _, _, after := remote.counts(); after != before {
		t.Errorf("fetches while closed went %d -> %d", before, after)
	}
	if h.c.Snapshot().Open {
		t.Error("Open should be false after Close")
	}

	h.c.Open()
	for len(h.polled) > 0 {
		<-h.polled
	}
	wait(t, h.polled, "poll after reopen")

	creates, _, _ := remote.counts()
	if creates != 1 {
		t.Errorf("creates = %d, want 1 (reopen must not recreate the session)", creates)
	}
	if v := h.c.Snapshot(); v.Status != StatusActive || v.SessionID != "s1" {
		t.Errorf("after reopen = %+v", v)
	}
}

func TestController_LateResultMergedWhileClosed(t *testing.T) {
	release := make(chan struct{})
	remote := &fakeRemote{
		sendFn: func(context.Context, string, string) (*Envelope, error) {
			<-release
			return &Envelope{ReplyText: "respuesta", ReplyID: "late-1"}, nil
		},
	}
	h := newHarness(t, remote)
	h.activate(t)

	h.c.SendMessage("hola")
	h.c.Close()
	close(release)
	wait(t, h.sent, "send")

	v := h.c.Snapshot()
	if v.Open {
		t.Error("widget should stay closed")
	}
	if got := v.Messages[len(v.Messages)-1].ID; got != "late-1" {
		t.Errorf("last message id = %q, want late-1", got)
	}
}

func TestController_Inert(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.ChatConfig
	}{
		{"disabled", models.ChatConfig{Enabled: false, APIURL: "https://x", APIKey: "k"}},
		{"no url", models.ChatConfig{Enabled: true, APIKey: "k"}},
		{"no key", models.ChatConfig{Enabled: true, APIURL: "https://x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := &fakeRemote{}
			var renders atomic.Int32
			c := NewController(tt.cfg, remote, WithRender(func(View) { renders.Add(1) }))

			if !c.Inert() {
				t.Fatal("controller should be inert")
			}
			c.Open()
			if err := c.SubmitContactInfo(ContactInfo{Name: "Ana", Email: "ana@x.com"}); !errors.Is(err, ErrInert) {
				t.Errorf("SubmitContactInfo err = %v, want ErrInert", err)
			}
			if c.SendMessage("hola") {
				t.Error("SendMessage accepted")
			}
			c.PollOnce()
			c.Close()
			c.Discard()

			if v := c.Snapshot(); v.Visible || v.Status != StatusUninitialized {
				t.Errorf("view = %+v, want invisible and uninitialized", v)
			}
			if creates, sends, fetches := remote.counts(); creates+sends+fetches != 0 {
				t.Errorf("remote calls = %d/%d/%d, want none", creates, sends, fetches)
			}
			if renders.Load() != 0 {
				t.Errorf("renders = %d, want 0", renders.Load())
			}
		})
	}
}

func TestController_Discard(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote, WithPollInterval(5*time.Millisecond))
	h.activate(t)

	h.c.Discard()
	h.c.Discard()

	v := h.c.Snapshot()
	if v.Status != StatusClosed || v.Visible {
		t.Errorf("after Discard = %+v", v)
	}
	if err := h.c.SubmitContactInfo(ContactInfo{Name: "Ana", Email: "ana@x.com"}); !errors.Is(err, ErrClosed) {
		t.Errorf("SubmitContactInfo err = %v, want ErrClosed", err)
	}
	if h.c.SendMessage("hola") {
		t.Error("SendMessage accepted after Discard")
	}

	_, _, before := remote.counts()
	time.Sleep(30 * time.Millisecond)
	if _, _, after := remote.counts(); after != before {
		t.Errorf("fetches after Discard went %d -> %d", before, after)
	}
}
