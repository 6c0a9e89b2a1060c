package webchat_test

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/chatloop/conversation"
	"github.com/petasbytes/chatloop/internal/provider"
	"github.com/petasbytes/chatloop/internal/provider/providertest"
	"github.com/petasbytes/chatloop/internal/runner"
	"github.com/petasbytes/chatloop/internal/webchat"
)

type sseEvent struct {
	name string
	data map[string]string
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func start(t *testing.T, models ...*providertest.Scripted) (*httptest.Server, *webchat.Server) {
	return startWith(t, nil, models...)
}

func startWith(t *testing.T, opts []webchat.Option, models ...*providertest.Scripted) (*httptest.Server, *webchat.Server) {
	t.Helper()
	i := 0
	srv := webchat.NewServer(func() *runner.Runner {
		m := models[i]
		i++
		return runner.New(m, nil, runner.WithStreaming(true))
	}, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func post(t *testing.T, c *http.Client, url, body string) *http.Response {
	t.Helper()
	resp, err := c.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readEvents(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var out []sseEvent
	var cur sseEvent
	s := bufio.NewScanner(resp.Body)
	for s.Scan() {
		line := s.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cur.data))
		case line == "":
			out = append(out, cur)
			cur = sseEvent{}
		}
	}
	require.NoError(t, s.Err())
	return out
}

func history(t *testing.T, c *http.Client, base string) webchat.HistoryResponse {
	t.Helper()
	resp, err := c.Get(base + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h webchat.HistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	return h
}

func TestIndex_ServesPageAndSetsCookie(t *testing.T) {
	ts, srv := start(t, providertest.New())
	c := newClient(t)

	resp, err := c.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.NotEmpty(t, resp.Cookies())
	require.Equal(t, webchat.CookieName, resp.Cookies()[0].Name)
	require.Equal(t, 1, srv.Sessions())

	// The cookie keeps the same session.
	history(t, c, ts.URL)
	require.Equal(t, 1, srv.Sessions())
}

func TestChat_StreamsDeltasThenDone(t *testing.T) {
	ts, _ := start(t, providertest.New(providertest.Step{Chunks: []string{"Hel", "lo"}}))
	c := newClient(t)

	resp := post(t, c, ts.URL+"/api/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp)
	require.Len(t, events, 3)
	require.Equal(t, "delta", events[0].name)
	require.Equal(t, "Hel", events[0].data["text"])
	require.Equal(t, "lo", events[1].data["text"])
	require.Equal(t, "done", events[2].name)
	require.Equal(t, "Hello", events[2].data["answer"])

	h := history(t, c, ts.URL)
	require.Equal(t, "scripted", h.Model)
	require.Equal(t, 2, h.MessageCount)
	require.Equal(t, conversation.User("hi"), h.Turns[0])
	require.Equal(t, conversation.Assistant("Hello"), h.Turns[1])
}

func TestChat_ModelFailureShowsApologyWithoutCommitting(t *testing.T) {
	ts, _ := start(t, providertest.New(providertest.Fail(errors.New("401 invalid key"))))
	c := newClient(t)

	events := readEvents(t, post(t, c, ts.URL+"/api/chat", `{"message":"hi"}`))
	require.Len(t, events, 1)
	require.Equal(t, "error", events[0].name)
	require.Equal(t, webchat.Apology, events[0].data["message"])

	h := history(t, c, ts.URL)
	for _, turn := range h.Turns {
		require.NotEqual(t, conversation.RoleAssistant, turn.Role)
		require.NotContains(t, turn.Content, webchat.Apology)
	}
}

func TestChat_RejectsBadInput(t *testing.T) {
	ts, _ := start(t, providertest.New())
	c := newClient(t)

	require.Equal(t, http.StatusBadRequest, post(t, c, ts.URL+"/api/chat", `not json`).StatusCode)
	require.Equal(t, http.StatusBadRequest, post(t, c, ts.URL+"/api/chat", `{"message":"  "}`).StatusCode)

	resp, err := c.Get(ts.URL + "/api/chat")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChat_ConcurrentTurnConflicts(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	model := providertest.New(providertest.Step{
		Content: "slow",
		Check: func(provider.Request) error {
			close(entered)
			<-release
			return nil
		},
	})
	ts, _ := start(t, model)
	c := newClient(t)
	history(t, c, ts.URL)

	done := make(chan []sseEvent, 1)
	go func() {
		resp, err := c.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"message":"first"}`))
		if err != nil {
			done <- nil
			return
		}
		defer resp.Body.Close()
		var evs []sseEvent
		s := bufio.NewScanner(resp.Body)
		for s.Scan() {
			if name, ok := strings.CutPrefix(s.Text(), "event: "); ok {
				evs = append(evs, sseEvent{name: name})
			}
		}
		done <- evs
	}()
	<-entered

	second := post(t, c, ts.URL+"/api/chat", `{"message":"second"}`)
	require.Equal(t, http.StatusConflict, second.StatusCode)
	require.Equal(t, http.StatusConflict, post(t, c, ts.URL+"/api/reset", ``).StatusCode)

	close(release)
	evs := <-done
	require.NotEmpty(t, evs)
	require.Equal(t, "done", evs[len(evs)-1].name)
}

func TestResetAndSystemPrompt(t *testing.T) {
	ts, _ := start(t, providertest.New(providertest.Text("4")))
	c := newClient(t)

	require.Equal(t, http.StatusNoContent, post(t, c, ts.URL+"/api/system", `{"prompt":"You are terse."}`).StatusCode)
	readEvents(t, post(t, c, ts.URL+"/api/chat", `{"message":"2+2?"}`))

	h := history(t, c, ts.URL)
	require.Equal(t, "You are terse.", h.SystemPrompt)
	require.Equal(t, []conversation.Turn{
		conversation.System("You are terse."),
		conversation.User("2+2?"),
		conversation.Assistant("4"),
	}, h.Turns)

	require.Equal(t, http.StatusNoContent, post(t, c, ts.URL+"/api/reset", ``).StatusCode)
	h = history(t, c, ts.URL)
	require.Equal(t, []conversation.Turn{conversation.System("You are terse.")}, h.Turns)
	require.Equal(t, 1, h.MessageCount)
}

func TestSessionsAreIsolated(t *testing.T) {
	ts, srv := start(t, providertest.New(providertest.Text("a")), providertest.New())
	alice, bob := newClient(t), newClient(t)

	readEvents(t, post(t, alice, ts.URL+"/api/chat", `{"message":"hi"}`))
	require.Equal(t, 2, history(t, alice, ts.URL).MessageCount)
	require.Equal(t, 0, history(t, bob, ts.URL).MessageCount)
	require.Equal(t, 2, srv.Sessions())
}

func TestSessions_CappedLeastRecentlyUsedFirst(t *testing.T) {
	ts, srv := startWith(t, []webchat.Option{webchat.WithMaxSessions(2)},
		providertest.New(providertest.Text("a")), providertest.New(), providertest.New(), providertest.New())
	alice, bob, carol := newClient(t), newClient(t), newClient(t)

	readEvents(t, post(t, alice, ts.URL+"/api/chat", `{"message":"hi"}`))
	history(t, bob, ts.URL)
	history(t, carol, ts.URL)
	require.Equal(t, 2, srv.Sessions())

	// alice was least recently used, so she comes back to a fresh session.
	require.Equal(t, 0, history(t, alice, ts.URL).MessageCount)
	require.Equal(t, 2, srv.Sessions())
}

func TestSessions_IdleSessionsExpire(t *testing.T) {
	ts, _ := startWith(t, []webchat.Option{webchat.WithSessionTTL(50 * time.Millisecond)},
		providertest.New(providertest.Text("a")), providertest.New())
	c := newClient(t)

	readEvents(t, post(t, c, ts.URL+"/api/chat", `{"message":"hi"}`))
	require.Equal(t, 2, history(t, c, ts.URL).MessageCount)

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, 0, history(t, c, ts.URL).MessageCount)
}
