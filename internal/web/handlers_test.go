package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/TitusNeyland/Pathread/internal/config"
	"github.com/TitusNeyland/Pathread/internal/engine"
	"github.com/TitusNeyland/Pathread/internal/interfaces"
	"github.com/TitusNeyland/Pathread/internal/models"
	"github.com/TitusNeyland/Pathread/internal/prompts"
	"github.com/TitusNeyland/Pathread/internal/storage"
)

const openingJSON = `{"title":"The Silent City","content":"The city went quiet at noon.","chapter":1,
"choices":["Listen","Shout","Leave"],"actionPrompt":"What do you do?","storyState":"in the square"}`

const turnJSON = `{"content":"A bell answers you.","chapter":2,"choices":["Follow the bell","Hide","Wait"]}`

type stubModel struct {
	configured bool
	fn         func(req interfaces.CompletionRequest) (string, error)
}

func (m *stubModel) Complete(_ context.Context, req interfaces.CompletionRequest) (string, error) {
	return m.fn(req)
}

func (m *stubModel) Configured() bool { return m.configured }

func (m *stubModel) Name() string { return "stub" }

func replyWith(text string) *stubModel {
	return &stubModel{configured: true, fn: func(req interfaces.CompletionRequest) (string, error) {
		if strings.Contains(req.Prompt, "USER'S ACTION") {
			return turnJSON, nil
		}
		return text, nil
	}}
}

type fakeBios struct{}

func (fakeBios) Generate(_ context.Context, req models.BioRequest) models.CharacterBio {
	return models.CharacterBio{Name: req.FirstName, Title: "The Test Subject"}
}

type fakeHooks struct{ genre string }

func (f *fakeHooks) Generate(_ context.Context, genre string) []models.StoryHook {
	f.genre = genre
	return prompts.DefaultHooks()
}

type testServer struct {
	*httptest.Server
	engine *engine.Engine
	hub    *SessionHub
	hooks  *fakeHooks
}

func newTestServer(t *testing.T, client interfaces.ModelClient, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}

	// hub and websocket goroutines may outlive the test, so only the engine logs to t
	logger := zap.NewNop()
	hub := NewSessionHub(cfg.Server.AllowedOrigins, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	builder := prompts.NewBuilder(prompts.DefaultStoryDefaults())
	eng := engine.NewEngine(client, builder, storage.NewSessionStore(),
		engine.Settings{Timeout: time.Second, MaxRetries: 1},
		engine.WithLogger(zaptest.NewLogger(t)), engine.WithPublisher(hub))
	hooks := &fakeHooks{}
	handlers := NewHandlers(eng, fakeBios{}, hooks, builder.Templates(), hub, logger)
	srv := httptest.NewServer(NewRouter(cfg, handlers, logger))

	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		srv.Close()
	})
	return &testServer{Server: srv, engine: eng, hub: hub, hooks: hooks}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON))

	resp, body := srv.do(t, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = srv.do(t, http.MethodPost, "/ping", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestTemplateEndpoints(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON))

	resp, body := srv.do(t, http.MethodGet, "/api/v1/templates", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"templates":["character_bio","story_continuation","story_first_turn","story_hooks"]}`, string(body))

	resp, body = srv.do(t, http.MethodGet, "/api/v1/templates/story_hooks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	out := decode(t, body)
	assert.Equal(t, "story_hooks", out["name"])
	assert.Equal(t, []interface{}{"genre"}, out["variables"])

	resp, body = srv.do(t, http.MethodGet, "/api/v1/templates/unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Template not found"}`, string(body))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON))

	resp, body := srv.do(t, http.MethodOptions, "/generateStory", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSRestrictedOrigins(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON), func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"https://app.example"}
	})

	for origin, want := range map[string]string{
		"https://app.example":  "https://app.example",
		"https://evil.example": "",
	} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/ping", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.Header.Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestGenerateStory(t *testing.T) {
	var prompt string
	client := &stubModel{configured: true, fn: func(req interfaces.CompletionRequest) (string, error) {
		prompt = req.Prompt
		return openingJSON, nil
	}}
	srv := newTestServer(t, client)

	resp, body := srv.do(t, http.MethodPost, "/generateStory",
		`{"genre":"mystery","length":"long","storyId":"silent-city","isFirstGeneration":true}`)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode(t, body)
	assert.Equal(t, openingJSON, out["story"])
	assert.Equal(t, "The Silent City", out["title"])
	assert.Equal(t, []interface{}{"Listen", "Shout", "Leave"}, out["choices"])
	assert.Contains(t, prompt, "about 900-1200 words")
	assert.Contains(t, prompt, "mystery")
	assert.Empty(t, srv.engine.ListSessions(), "stateless generation keeps no session")
}

func TestGenerateStoryEmptyBodyUsesGenericSeed(t *testing.T) {
	var prompt string
	client := &stubModel{configured: true, fn: func(req interfaces.CompletionRequest) (string, error) {
		prompt = req.Prompt
		return "plain prose", nil
	}}
	srv := newTestServer(t, client)

	resp, body := srv.do(t, http.MethodPost, "/generateStory", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode(t, body)
	assert.Equal(t, "plain prose", out["content"])
	assert.Len(t, out["choices"], 3)
	assert.Contains(t, prompt, prompts.GenericSeed)
}

func TestGenerateStoryContinuation(t *testing.T) {
	var prompt string
	client := &stubModel{configured: true, fn: func(req interfaces.CompletionRequest) (string, error) {
		prompt = req.Prompt
		return turnJSON, nil
	}}
	srv := newTestServer(t, client)

	resp, _ := srv.do(t, http.MethodPost, "/generateStory",
		`{"isFirstGeneration":false,"userAction":"Ring the bell","previousContent":"The city went quiet."}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, prompt, "USER'S ACTION:\nRing the bell")
	assert.Contains(t, prompt, "The city went quiet.")
}

func TestGenerateStoryErrors(t *testing.T) {
	t.Run("misconfigured", func(t *testing.T) {
		srv := newTestServer(t, &stubModel{configured: false})

		resp, body := srv.do(t, http.MethodPost, "/generateStory", `{}`)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.True(t, strings.HasPrefix(decode(t, body)["error"].(string), "Server misconfigured: "))
	})

	t.Run("model failure", func(t *testing.T) {
		srv := newTestServer(t, &stubModel{configured: true, fn: func(interfaces.CompletionRequest) (string, error) {
			return "", &engine.TransportError{Op: "stub", StatusCode: http.StatusUnauthorized, Err: errors.New("bad key")}
		}})

		resp, body := srv.do(t, http.MethodPost, "/generateStory", `{}`)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		out := decode(t, body)
		assert.Equal(t, "model error", out["error"])
		assert.Contains(t, out["detail"], "bad key")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := newTestServer(t, replyWith(openingJSON))

		resp, _ := srv.do(t, http.MethodPost, "/generateStory", `{"genre":`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		srv := newTestServer(t, replyWith(openingJSON))

		resp, body := srv.do(t, http.MethodGet, "/generateStory", "")

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, string(body))
	})
}

func TestGenerateCharacterBioAndHooks(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON))

	resp, body := srv.do(t, http.MethodPost, "/generateCharacterBio", `{"firstName":"Ava","zodiacSign":"Leo","interests":["Music"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"characterBio":{"name":"Ava","title":"The Test Subject","description":"","tags":null,"backstory":""}}`, string(body))

	resp, body = srv.do(t, http.MethodPost, "/generateStoryHooks", `{"genre":"sci-fi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hooks struct {
		Hooks []models.StoryHook `json:"hooks"`
	}
	require.NoError(t, json.Unmarshal(body, &hooks))
	assert.Equal(t, prompts.DefaultHooks(), hooks.Hooks)
	assert.Equal(t, "sci-fi", srv.hooks.genre)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON))

	resp, body := srv.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode(t, body)
	assert.Equal(t, "stub", out["provider"])
	assert.Equal(t, true, out["configured"])
	assert.EqualValues(t, 0, out["inFlight"])
	assert.EqualValues(t, 0, out["sessions"])

	resp, body = srv.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "pathread_sessions_active")
}

func TestMetricsDisabled(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON), func(cfg *config.Config) {
		cfg.Metrics.Enabled = false
	})

	resp, _ := srv.do(t, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStorySessionLifecycle(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON))

	resp, body := srv.do(t, http.MethodPost, "/api/v1/stories", `{"genre":"mystery","hookId":"silent-city"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created SessionResponse
	require.NoError(t, json.Unmarshal(body, &created))
	id := created.Session.ID
	assert.Equal(t, "The Silent City", created.Session.Title)
	assert.Equal(t, "The Silent City", created.Turn.Title)

	resp, body = srv.do(t, http.MethodPost, "/api/v1/stories/"+id+"/continue", `{"action":"Listen"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var continued SessionResponse
	require.NoError(t, json.Unmarshal(body, &continued))
	assert.Len(t, continued.Session.Transcript, 3)
	assert.Equal(t, 2, continued.Session.Chapter)
	assert.Equal(t, "The Silent City", continued.Session.Title)

	resp, body = srv.do(t, http.MethodGet, "/api/v1/stories", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list SessionListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.Count)

	resp, exported := srv.do(t, http.MethodGet, "/api/v1/stories/"+id+"/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), id)

	resp, _ = srv.do(t, http.MethodDelete, "/api/v1/stories/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = srv.do(t, http.MethodGet, "/api/v1/stories/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = srv.do(t, http.MethodPost, "/api/v1/stories/import", string(exported))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	resp, body = srv.do(t, http.MethodGet, "/api/v1/stories/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var restored SessionResponse
	require.NoError(t, json.Unmarshal(body, &restored))
	assert.Equal(t, continued.Session.Transcript, restored.Session.Transcript)
}

func TestStorySessionErrors(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown story", http.MethodGet, "/api/v1/stories/missing", "", http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/api/v1/stories/missing", "", http.StatusNotFound},
		{"continue unknown", http.MethodPost, "/api/v1/stories/missing/continue", `{"action":"Run"}`, http.StatusNotFound},
		{"empty action", http.MethodPost, "/api/v1/stories/missing/continue", `{"action":"  "}`, http.StatusBadRequest},
		{"export unknown", http.MethodGet, "/api/v1/stories/missing/export", "", http.StatusNotFound},
		{"invalid import", http.MethodPost, "/api/v1/stories/import", `{"id":""}`, http.StatusBadRequest},
		{"garbage import", http.MethodPost, "/api/v1/stories/import", `not json`, http.StatusBadRequest},
		{"subscribe unknown", http.MethodGet, "/api/v1/stories/missing/ws", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := srv.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestStoryAPINotConfigured(t *testing.T) {
	srv := newTestServer(t, &stubModel{configured: false})

	resp, _ := srv.do(t, http.MethodPost, "/api/v1/stories", `{}`)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Empty(t, srv.engine.ListSessions())
}

func TestSubscribeStreamsSessionEvents(t *testing.T) {
	srv := newTestServer(t, replyWith(openingJSON))
	session, _, err := srv.engine.StartStory(context.Background(), models.FirstTurnRequest{})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stories/" + session.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() SessionMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg SessionMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, subscribedEvent, read().Type)
	assert.Equal(t, 1, srv.hub.ClientCount())

	_, _, err = srv.engine.ContinueStory(context.Background(), session.ID, "Shout")
	require.NoError(t, err)

	// events from StartStory may still be in flight when the client subscribes
	action := read()
	for action.Type != string(interfaces.SessionAction) {
		action = read()
	}
	assert.Equal(t, "Shout", action.Action)

	turn := read()
	assert.Equal(t, string(interfaces.SessionTurn), turn.Type)
	require.NotNil(t, turn.Turn)
	assert.Equal(t, "A bell answers you.", turn.Turn.Content)
	assert.Equal(t, session.ID, turn.SessionID)
}

func TestHubDropsEventsAfterShutdown(t *testing.T) {
	hub := NewSessionHub(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.Done()

	hub.Publish(interfaces.SessionEvent{Type: interfaces.SessionTurn, SessionID: "x"})

	rec := httptest.NewRecorder()
	hub.Serve(rec, httptest.NewRequest(http.MethodGet, "/ws", nil), "x")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, hub.ClientCount())
}
