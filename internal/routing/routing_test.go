package routing

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"mod-gobot/internal/bus"
	"mod-gobot/internal/platform"
	"mod-gobot/internal/platform/platformtest"
	"mod-gobot/internal/storage"
)

var (
	userU    = platform.User{ID: 42, FirstName: "U"}
	userV    = platform.User{ID: 43, FirstName: "V"}
	root     = platform.User{ID: 7, FirstName: "Root"}
	chatA    = platform.Chat{ID: -1001, Type: platform.ChatSuperGroup, Title: "A"}
	chatB    = platform.Chat{ID: -1002, Type: platform.ChatSuperGroup, Title: "B"}
	control  = platform.Chat{ID: -2000, Type: platform.ChatSuperGroup, Title: "Mods"}
	privateU = platform.Chat{ID: userU.ID, Type: platform.ChatPrivate}
)

type elevator map[int64]bool

func (e elevator) IsSuperuser(id int64) bool { return e[id] }
func (e elevator) IsElevated(id int64) bool  { return e[id] }

type recorded struct {
	mu     sync.Mutex
	events []bus.Event
	args   []string
}

func (r *recorded) handler(ctx context.Context, req *bus.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, req.Event)
	r.args = append(r.args, req.Args)
	return nil
}

func (r *recorded) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type harness struct {
	fake     *platformtest.Fake
	store    *storage.Store
	cache    *PendingCache
	resolver *Resolver
	disp     *Dispatcher
	bus      *bus.Bus
	say      *recorded
	kick     *recorded
	link     *recorded
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "routing.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	fake := platformtest.New("modbot")
	for _, c := range []platform.Chat{chatA, chatB, control} {
		fake.AddChat(c)
	}
	fake.AddChat(privateU)
	fake.SetRole(chatA.ID, userU, platform.RoleAdmin)
	fake.SetRole(chatB.ID, userU, platform.RoleMember)
	fake.SetRole(chatA.ID, userV, platform.RoleAdmin)
	fake.SetRole(control.ID, userU, platform.RoleAdmin)

	for _, c := range []platform.Chat{chatA, chatB} {
		if err := store.TrackGroup(c.ID, c.Title); err != nil {
			t.Fatal(err)
		}
	}

	elev := elevator{root.ID: true}
	cache := NewPendingCache()
	resolver := NewResolver(store, fake, elev)
	disp := NewDispatcher(cache, resolver, fake)

	reg := bus.NewRegistry(
		bus.RequireReply(),
		Target(disp),
		bus.RequirePermission(elev),
		Confirm(cache),
	)

	h := &harness{
		fake: fake, store: store, cache: cache, resolver: resolver, disp: disp,
		say: &recorded{}, kick: &recorded{}, link: &recorded{},
	}
	reg.MustRegister(bus.Command{Name: "say", Scope: bus.ScopeGroup, Handler: h.say.handler})
	reg.MustRegister(bus.Command{Name: "kick", Scope: bus.ScopeGroup, Permission: bus.PermAdmin, Dangerous: true, Handler: h.kick.handler})
	reg.MustRegister(bus.Command{Name: "link", Scope: bus.ScopeResolve, Permission: bus.PermAdmin, Handler: h.link.handler})

	h.bus = bus.New(reg, fake, bus.Options{})
	disp.Bind(h.bus)
	return h
}

func (h *harness) privateEvent(text string) bus.Event {
	return bus.Event{ChatID: privateU.ID, ChatType: platform.ChatPrivate, Sender: userU, Text: text}
}

func (h *harness) groupEvent(chat platform.Chat, sender platform.User, text string) bus.Event {
	return bus.Event{ChatID: chat.ID, ChatType: chat.Type, ChatTitle: chat.Title, Sender: sender, Text: text}
}

// press finds the button labelled label in the last keyboard sent to chatID.
func (h *harness) press(t *testing.T, chatID int64, label string, from platform.User) string {
	t.Helper()
	msg, ok := h.fake.Last(chatID)
	if !ok || msg.Keyboard == nil {
		t.Fatalf("no keyboard in chat %d", chatID)
	}
	for _, row := range msg.Keyboard {
		for _, b := range row {
			if b.Label == label {
				ack, err := h.disp.HandleCallback(context.Background(), Callback{
					ID:       "cb-" + label,
					Data:     b.Data,
					From:     from,
					Message:  msg.Ref,
					ChatType: platform.ChatPrivate,
				})
				if err != nil {
					t.Fatalf("HandleCallback() error = %v", err)
				}
				return ack
			}
		}
	}
	t.Fatalf("no button %q in %+v", label, msg.Keyboard)
	return ""
}

func labels(kb platform.Keyboard) []string {
	var out []string
	for _, row := range kb {
		for _, b := range row {
			out = append(out, b.Label)
		}
	}
	return out
}

func TestTokenRoundTrip(t *testing.T) {
	ids := []int64{0, AllChats, 42, -1001234567890, 1<<63 - 1, -1 << 63}
	commands := []string{"", "/say hello", "/say a_b_c", "_", "__5_", "/x 12_3_abc", "привет мир", "/warn\nmultiline"}

	for _, id := range ids {
		for _, cmd := range commands {
			tok := Token{ChatID: id, Command: cmd}
			got, err := DecodeToken(tok.Encode())
			if err != nil {
				t.Errorf("DecodeToken(%q) error = %v", tok.Encode(), err)
				continue
			}
			if got != tok {
				t.Errorf("round trip of %+v = %+v", tok, got)
			}
		}
	}
}

func TestDecodeTokenMalformed(t *testing.T) {
	for _, s := range []string{"", "abc", "12_", "12_x_y", "12_5_abc", "12_-1_", "12_3"} {
		if _, err := DecodeToken(s); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("DecodeToken(%q) error = %v, want ErrMalformedToken", s, err)
		}
	}
}

func TestEncodeLimited(t *testing.T) {
	if _, err := (Token{ChatID: -1001, Command: "/addrelatedchat -1002"}).EncodeLimited(); err != nil {
		t.Errorf("short token rejected: %v", err)
	}
	long := Token{ChatID: -1001234567890, Command: "/setrules be excellent to each other and party on"}
	if _, err := long.EncodeLimited(); !errors.Is(err, ErrTokenTooLong) {
		t.Errorf("EncodeLimited() error = %v, want ErrTokenTooLong", err)
	}
}

func TestPendingCacheTakeOnce(t *testing.T) {
	c := NewPendingCache()
	c.Put(5, PendingCommand{Text: "/say first"})
	c.Put(5, PendingCommand{Text: "/say second"})

	got, err := c.Take(5)
	if err != nil || got.Text != "/say second" {
		t.Fatalf("Take() = %+v, %v", got, err)
	}
	if got.CachedAt.IsZero() {
		t.Error("CachedAt not set")
	}
	if _, err := c.Take(5); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("second Take() error = %v, want ErrCacheMiss", err)
	}
}

func TestPendingCacheTakeIf(t *testing.T) {
	c := NewPendingCache()
	c.Put(5, PendingCommand{Sender: userU, Text: "/kick"})

	if _, err := c.TakeIf(5, func(p PendingCommand) bool { return p.Sender.ID == userV.ID }); !errors.Is(err, errNotYours) {
		t.Errorf("TakeIf() error = %v, want errNotYours", err)
	}
	if c.Len() != 1 {
		t.Error("rejected entry should stay cached")
	}
	if _, err := c.TakeIf(5, func(p PendingCommand) bool { return p.Sender.ID == userU.ID }); err != nil {
		t.Errorf("TakeIf() error = %v", err)
	}
}

func TestCandidatesExcludeInvokingChat(t *testing.T) {
	h := newHarness(t)

	cands, err := h.resolver.Candidates(context.Background(), Query{UserID: userU.ID, InvokingChatID: chatA.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].ChatID != chatB.ID {
		t.Errorf("candidates = %+v, want only B", cands)
	}
}

func TestCandidatesFromControlChannel(t *testing.T) {
	h := newHarness(t)
	h.store.TrackGroup(control.ID, control.Title)
	if err := h.store.SetControlChannel(chatA.ID, control.ID); err != nil {
		t.Fatal(err)
	}

	cands, err := h.resolver.Candidates(context.Background(), Query{UserID: userU.ID, InvokingChatID: control.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].ChatID != chatA.ID {
		t.Errorf("candidates = %+v, want only A", cands)
	}
}

func TestCandidatesForgetMissingChats(t *testing.T) {
	h := newHarness(t)
	h.fake.RemoveChat(chatB.ID)

	cands, err := h.resolver.Candidates(context.Background(), Query{UserID: userU.ID, InvokingChatID: privateU.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].ChatID != chatA.ID {
		t.Errorf("candidates = %+v", cands)
	}
	if _, err := h.store.GetGroup(chatB.ID); !errors.Is(err, storage.ErrGroupNotFound) {
		t.Errorf("B should be deleted, GetGroup error = %v", err)
	}
}

func TestCandidatesForgetPrivateChats(t *testing.T) {
	h := newHarness(t)
	h.fake.AddChat(platform.Chat{ID: chatB.ID, Type: platform.ChatPrivate})

	h.resolver.Candidates(context.Background(), Query{UserID: userU.ID, InvokingChatID: privateU.ID})

	if _, err := h.store.GetGroup(chatB.ID); !errors.Is(err, storage.ErrGroupNotFound) {
		t.Errorf("B should be deleted, GetGroup error = %v", err)
	}
}

func TestCandidatesKeepOnTransientError(t *testing.T) {
	h := newHarness(t)
	h.fake.FailChat(chatB.ID, errors.New("telegram: too many requests"))

	cands, err := h.resolver.Candidates(context.Background(), Query{UserID: userU.ID, InvokingChatID: privateU.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Errorf("candidates = %+v", cands)
	}
	if _, err := h.store.GetGroup(chatB.ID); err != nil {
		t.Errorf("B should be kept after a transient error, got %v", err)
	}
}

func TestCandidatesRoleFilter(t *testing.T) {
	h := newHarness(t)

	cands, err := h.resolver.Candidates(context.Background(), Query{UserID: userU.ID, InvokingChatID: privateU.ID, Roles: AdminRoles})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].ChatID != chatA.ID || cands[0].Role != platform.RoleAdmin {
		t.Errorf("candidates = %+v", cands)
	}

	_, err = h.resolver.Candidates(context.Background(), Query{UserID: 999, InvokingChatID: 999})
	if !errors.Is(err, ErrResolutionEmpty) {
		t.Errorf("stranger error = %v, want ErrResolutionEmpty", err)
	}
}

func TestCandidatesElevationBypassesRolesForAllChats(t *testing.T) {
	h := newHarness(t)

	if _, err := h.resolver.Candidates(context.Background(), Query{UserID: root.ID, InvokingChatID: root.ID}); !errors.Is(err, ErrResolutionEmpty) {
		t.Errorf("without AllChats error = %v, want ErrResolutionEmpty", err)
	}

	cands, err := h.resolver.Candidates(context.Background(), Query{UserID: root.ID, InvokingChatID: root.ID, AllChats: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Errorf("candidates = %+v, want A and B", cands)
	}
}

func TestSweep(t *testing.T) {
	h := newHarness(t)
	h.fake.RemoveChat(chatA.ID)

	alive, err := h.resolver.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if alive != 1 {
		t.Errorf("alive = %d, want 1", alive)
	}
	if n, _ := h.store.CountGroups(); n != 1 {
		t.Errorf("CountGroups() = %d, want 1", n)
	}
}

func TestBuildKeyboard(t *testing.T) {
	cands := []Candidate{{ChatID: chatA.ID, Title: "A"}, {ChatID: chatB.ID, Title: "B"}}

	kb, err := BuildKeyboard(cands, false, "")
	if err != nil {
		t.Fatal(err)
	}
	got := labels(kb)
	if len(got) != 3 || got[0] != "[ALL CHATS]" || got[1] != "A" || got[2] != "B" {
		t.Errorf("labels = %v", got)
	}
	if kb[0][0].Data != "-1" || kb[1][0].Data != "-1001" || kb[1][0].Unique != UniqueRoute {
		t.Errorf("buttons = %+v", kb)
	}

	kb, _ = BuildKeyboard(cands[:1], true, "/addrelatedchat -5")
	if labels(kb)[0] != "[ALL LINKED CHATS]" {
		t.Errorf("control label = %v", labels(kb))
	}
	tok, err := DecodeToken(kb[1][0].Data)
	if err != nil || tok.Command != "/addrelatedchat -5" || tok.ChatID != chatA.ID {
		t.Errorf("command token = %+v, %v", tok, err)
	}

	if _, err := BuildKeyboard(cands, false, "/setrules a very long text that cannot possibly fit in a button"); !errors.Is(err, ErrTokenTooLong) {
		t.Errorf("long command error = %v", err)
	}
}

func TestSingleCandidateStillGetsKeyboard(t *testing.T) {
	h := newHarness(t)
	h.fake.RemoveChat(chatB.ID)

	h.bus.Publish(context.Background(), h.privateEvent("/say hi"))

	msg, _ := h.fake.Last(privateU.ID)
	if got := labels(msg.Keyboard); len(got) != 2 || got[0] != "[ALL CHATS]" || got[1] != "A" {
		t.Errorf("labels = %v", got)
	}
}

func TestPrivateSayEndToEnd(t *testing.T) {
	h := newHarness(t)

	if err := h.bus.Publish(context.Background(), h.privateEvent("/say hello")); err != nil {
		t.Fatal(err)
	}
	if h.say.count() != 0 {
		t.Fatal("command ran before a target was chosen")
	}

	msg, _ := h.fake.Last(privateU.ID)
	if got := labels(msg.Keyboard); len(got) != 3 || got[0] != "[ALL CHATS]" || got[1] != "A" || got[2] != "B" {
		t.Fatalf("labels = %v", got)
	}

	ack := h.press(t, privateU.ID, "A", userU)
	if ack != "Sent /say hello to A" {
		t.Errorf("ack = %q", ack)
	}

	if h.say.count() != 1 {
		t.Fatalf("say ran %d times", h.say.count())
	}
	ev := h.say.events[0]
	if ev.ChatID != chatA.ID || ev.Sender.ID != userU.ID || !ev.Provenance.Synthetic || ev.Provenance.OriginChatID != privateU.ID {
		t.Errorf("replayed event = %+v", ev)
	}
	if h.say.args[0] != "hello" {
		t.Errorf("args = %q", h.say.args[0])
	}
	if deleted := h.fake.Deleted(); len(deleted) != 1 || deleted[0] != msg.Ref {
		t.Errorf("deleted = %+v, want keyboard %+v", deleted, msg.Ref)
	}
}

func TestAllChatsExpandsAndCounts(t *testing.T) {
	h := newHarness(t)

	h.bus.Publish(context.Background(), h.privateEvent("/say hello"))
	ack := h.press(t, privateU.ID, "[ALL CHATS]", userU)

	if ack != "Sent /say hello to 2 chats" {
		t.Errorf("ack = %q", ack)
	}
	if h.say.count() != 2 {
		t.Errorf("say ran %d times", h.say.count())
	}
}

func TestDangerousAllChatsConfirmsOnce(t *testing.T) {
	h := newHarness(t)
	h.fake.SetRole(chatB.ID, userU, platform.RoleAdmin)

	h.bus.Publish(context.Background(), h.privateEvent("/kick spam"))
	ack := h.press(t, privateU.ID, "[ALL CHATS]", userU)
	if ack != "Confirm /kick spam for 2 chats first" {
		t.Errorf("ack = %q", ack)
	}
	if h.kick.count() != 0 {
		t.Fatal("ran before confirmation")
	}

	prompts := 0
	for _, m := range h.fake.SentTo(privateU.ID) {
		if got := labels(m.Keyboard); len(got) == 1 && got[0] == "Yes, I am sure" {
			prompts++
		}
	}
	if prompts != 1 {
		t.Fatalf("confirmation prompts = %d, want 1", prompts)
	}
	msg, _ := h.fake.Last(privateU.ID)
	if msg.Text != "Are you sure you want to run /kick spam in 2 chats?" || msg.Keyboard[0][0].Data != "-1" {
		t.Errorf("prompt = %q, token = %q", msg.Text, msg.Keyboard[0][0].Data)
	}

	ack = h.press(t, privateU.ID, "Yes, I am sure", userU)
	if ack != "Sent /kick spam to 2 chats" {
		t.Errorf("confirm ack = %q", ack)
	}
	if h.kick.count() != 2 {
		t.Fatalf("kick ran %d times, want 2", h.kick.count())
	}
	seen := map[int64]bool{}
	for i, ev := range h.kick.events {
		seen[ev.ChatID] = true
		if h.kick.args[i] != "spam" {
			t.Errorf("args[%d] = %q", i, h.kick.args[i])
		}
	}
	if !seen[chatA.ID] || !seen[chatB.ID] {
		t.Errorf("kicked in %v, want A and B", seen)
	}
	if h.cache.Len() != 0 {
		t.Errorf("cache still holds %d commands", h.cache.Len())
	}
}

func TestSingleTargetGoneIsForgotten(t *testing.T) {
	tests := []struct {
		name      string
		breakChat func(f *platformtest.Fake)
	}{
		{"deleted", func(f *platformtest.Fake) { f.RemoveChat(chatB.ID) }},
		{"turned private", func(f *platformtest.Fake) {
			f.AddChat(platform.Chat{ID: chatB.ID, Type: platform.ChatPrivate})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.bus.Publish(context.Background(), h.privateEvent("/say hi"))
			tt.breakChat(h.fake)

			if ack := h.press(t, privateU.ID, "B", userU); ack != AckChatGone {
				t.Errorf("ack = %q", ack)
			}
			if h.say.count() != 0 {
				t.Error("nothing should be replayed")
			}
			if _, err := h.store.GetGroup(chatB.ID); !errors.Is(err, storage.ErrGroupNotFound) {
				t.Errorf("B should be deleted, GetGroup error = %v", err)
			}
		})
	}
}

func TestReplyContextIsPreserved(t *testing.T) {
	h := newHarness(t)

	ev := h.privateEvent("/say look")
	ev.Reply = &platform.ReplyContext{MessageID: 77, User: userV}
	h.bus.Publish(context.Background(), ev)
	ack := h.press(t, privateU.ID, "B", userU)

	if ack != "Executing /say look on a message in B" {
		t.Errorf("ack = %q", ack)
	}
	got := h.say.events[0].Reply
	if got == nil || got.MessageID != 77 || got.User.ID != userV.ID {
		t.Errorf("reply = %+v", got)
	}
}

func TestStaleCallbackAfterRestart(t *testing.T) {
	h := newHarness(t)

	ack, err := h.disp.HandleCallback(context.Background(), Callback{
		ID:      "stale",
		Data:    "-1",
		From:    userU,
		Message: platform.MessageRef{ChatID: privateU.ID, MessageID: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ack != AckLostMessage {
		t.Errorf("ack = %q", ack)
	}
	if h.say.count()+h.kick.count() != 0 {
		t.Error("no events should be published")
	}
}

func TestMalformedCallback(t *testing.T) {
	h := newHarness(t)

	ack, _ := h.disp.HandleCallback(context.Background(), Callback{Data: "garbage", From: userU})
	if ack != AckBadButton {
		t.Errorf("ack = %q", ack)
	}
}

func TestCallbackFromAnotherUser(t *testing.T) {
	h := newHarness(t)
	h.bus.Publish(context.Background(), h.privateEvent("/say hello"))

	if ack := h.press(t, privateU.ID, "A", userV); ack != AckNotYours {
		t.Errorf("ack = %q", ack)
	}
	if ack := h.press(t, privateU.ID, "A", userU); ack != "Sent /say hello to A" {
		t.Errorf("owner ack = %q", ack)
	}
}

func TestCommandBearingToken(t *testing.T) {
	h := newHarness(t)

	ack, err := h.disp.HandleCallback(context.Background(), Callback{
		ID:      "direct",
		Data:    Token{ChatID: chatB.ID, Command: "/say from token"}.Encode(),
		From:    userU,
		Message: platform.MessageRef{ChatID: privateU.ID, MessageID: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ack != "Sent /say from token to B" || h.say.count() != 1 {
		t.Errorf("ack = %q, runs = %d", ack, h.say.count())
	}
}

func TestConfirmGateInGroup(t *testing.T) {
	h := newHarness(t)

	h.bus.Publish(context.Background(), h.groupEvent(chatA, userU, "/kick"))
	if h.kick.count() != 0 {
		t.Fatal("dangerous command ran without confirmation")
	}

	msg, _ := h.fake.Last(chatA.ID)
	if got := labels(msg.Keyboard); len(got) != 1 || got[0] != "Yes, I am sure" {
		t.Fatalf("labels = %v", got)
	}
	if msg.Keyboard[0][0].Data != "-1001" {
		t.Errorf("confirm token = %q", msg.Keyboard[0][0].Data)
	}

	h.bus.Publish(context.Background(), h.groupEvent(chatA, userU, "/kick --confirmed"))
	if h.kick.count() != 0 {
		t.Fatal("typed sentinel must not confirm")
	}

	h.press(t, chatA.ID, "Yes, I am sure", userU)
	if h.kick.count() != 1 {
		t.Fatalf("kick ran %d times, want 1", h.kick.count())
	}
	if text := h.kick.events[0].Text; text != "/kick" {
		t.Errorf("sentinel not stripped: %q", text)
	}
	if h.kick.args[0] != "" {
		t.Errorf("args = %q", h.kick.args[0])
	}
}

func TestConfirmGateAfterResolution(t *testing.T) {
	h := newHarness(t)

	h.bus.Publish(context.Background(), h.privateEvent("/kick spam"))
	msg, _ := h.fake.Last(privateU.ID)
	if got := labels(msg.Keyboard); len(got) != 2 {
		t.Fatalf("admin-only resolution labels = %v, want ALL and A", got)
	}

	h.press(t, privateU.ID, "A", userU)
	if h.kick.count() != 0 {
		t.Fatal("ran before confirmation")
	}

	confirm, _ := h.fake.Last(privateU.ID)
	if got := labels(confirm.Keyboard); len(got) != 1 || got[0] != "Yes, I am sure" {
		t.Fatalf("confirmation should go to the private chat, got %v", got)
	}

	ack := h.press(t, privateU.ID, "Yes, I am sure", userU)
	if ack != "Sent /kick spam to A" {
		t.Errorf("ack = %q", ack)
	}
	if h.kick.count() != 1 || h.kick.args[0] != "spam" || h.kick.events[0].ChatID != chatA.ID {
		t.Errorf("kick runs = %d, args = %v", h.kick.count(), h.kick.args)
	}
}

func TestStripLastToken(t *testing.T) {
	tests := map[string]string{
		"/kick --confirmed":        "/kick",
		"/kick spam  --confirmed ": "/kick spam",
		"--confirmed":              "",
		"/ban a\n--confirmed":      "/ban a",
	}
	for in, want := range tests {
		if got := stripLastToken(in); got != want {
			t.Errorf("stripLastToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTargetPassesThroughInGroups(t *testing.T) {
	h := newHarness(t)

	h.bus.Publish(context.Background(), h.groupEvent(chatB, userU, "/say here"))
	if h.say.count() != 1 || h.say.events[0].ChatID != chatB.ID {
		t.Errorf("say in group should run directly, runs = %d", h.say.count())
	}
}

func TestTargetResolvesFromControlChannel(t *testing.T) {
	h := newHarness(t)
	h.store.SetControlChannel(chatA.ID, control.ID)

	h.bus.Publish(context.Background(), h.groupEvent(control, userU, "/say hi"))

	if h.say.count() != 0 {
		t.Fatal("command in a control channel must be resolved first")
	}
	msg, _ := h.fake.Last(control.ID)
	if got := labels(msg.Keyboard); len(got) != 2 || got[0] != "[ALL LINKED CHATS]" || got[1] != "A" {
		t.Errorf("labels = %v", got)
	}
}

func TestTargetAlwaysResolves(t *testing.T) {
	h := newHarness(t)

	h.bus.Publish(context.Background(), h.groupEvent(chatB, userU, "/link"))
	msg, _ := h.fake.Last(chatB.ID)
	if got := labels(msg.Keyboard); len(got) != 2 || got[1] != "A" {
		t.Fatalf("labels = %v", got)
	}

	h.press(t, chatB.ID, "A", userU)
	if h.link.count() != 1 {
		t.Fatalf("link ran %d times", h.link.count())
	}
	if ev := h.link.events[0]; ev.ChatID != chatA.ID || ev.Provenance.OriginChatID != chatB.ID {
		t.Errorf("event = %+v", ev)
	}
}

func TestTargetEmptyResolution(t *testing.T) {
	h := newHarness(t)
	stranger := platform.User{ID: 555, FirstName: "S"}

	h.bus.Publish(context.Background(), bus.Event{ChatID: stranger.ID, ChatType: platform.ChatPrivate, Sender: stranger, Text: "/say hi"})

	msg, _ := h.fake.Last(stranger.ID)
	if msg.Text != "I couldn't find any chats where you can use /say." || msg.Keyboard != nil {
		t.Errorf("reply = %+v", msg)
	}
	if h.cache.Len() != 0 {
		t.Error("nothing should be cached when resolution is empty")
	}
}
