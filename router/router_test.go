package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/domain/domaintest"
	"github.com/HMasataka/sensorlink/hub"
	apperrors "github.com/HMasataka/sensorlink/pkg/errors"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router  *Router
	hub     *hub.Hub
	repo    *domaintest.Repository
	clock   *clockwork.FakeClock
	clients map[string]*domaintest.Client
}

func newFixture(t *testing.T, identities ...string) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	h := hub.New(hub.HubOptions{Clock: clock})
	repo := domaintest.NewRepository()

	f := &fixture{
		router:  NewRouter(h, repo, Options{Clock: clock, NewID: func() string { return "msg-1" }}),
		hub:     h,
		repo:    repo,
		clock:   clock,
		clients: make(map[string]*domaintest.Client),
	}
	for _, id := range identities {
		c := domaintest.NewClient("conn-" + id)
		h.Register(id, c)
		f.clients[id] = c
	}
	return f
}

func as(identity string) context.Context {
	return sensorlink.WithIdentity(context.Background(), identity)
}

func TestRouter_BroadcastsToAllIncludingSender(t *testing.T) {
	f := newFixture(t, "1", "2", "3")

	msg, err := f.router.Handle(as("1"), []byte(`{"content":"hi"}`))
	require.NoError(t, err)

	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, "1", msg.Sender)
	assert.Equal(t, f.clock.Now(), msg.Timestamp)

	for id, c := range f.clients {
		frames := c.Decoded()
		require.Len(t, frames, 1, id)
		assert.Equal(t, "message", frames[0]["type"])

		data, ok := frames[0]["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "msg-1", data["id"])
		assert.Equal(t, "hi", data["content"])
		assert.Equal(t, "1", data["sender"])
		assert.Equal(t, "2024-05-01T12:00:00Z", data["timestamp"])
	}

	stored, err := f.repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "1", stored[0].Sender)
}

func TestRouter_RawTextIsContent(t *testing.T) {
	f := newFixture(t, "1")

	msg, err := f.router.Handle(as("1"), []byte("plain text, not json"))
	require.NoError(t, err)
	assert.Equal(t, "plain text, not json", msg.Content)

	msg, err = f.router.Handle(as("1"), []byte(`{"content":"unterminated`))
	require.NoError(t, err)
	assert.Equal(t, `{"content":"unterminated`, msg.Content)
	assert.Equal(t, 2, f.repo.Len())
}

func TestRouter_RejectsMissingContent(t *testing.T) {
	frames := []string{`{}`, `{"content":""}`, `{"content":null}`, `{"content":false}`, `{"content":0}`, `{"text":"hi"}`, `null`, ``, `42`, `"quoted"`, `true`, `["hi"]`}

	for _, frame := range frames {
		t.Run(frame, func(t *testing.T) {
			f := newFixture(t, "1", "2")

			_, err := f.router.Handle(as("1"), []byte(frame))
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidMessageFormat))

			assert.Zero(t, f.repo.Len())
			for _, c := range f.clients {
				assert.Empty(t, c.Sent())
			}
		})
	}
}

func TestRouter_NonStringContentKeptAsJSON(t *testing.T) {
	tests := []struct {
		frame string
		want  string
	}{
		{`{"content":5}`, "5"},
		{`{"content":true}`, "true"},
		{`{"content":{"t":21.5}}`, `{"t":21.5}`},
		{`{"content":["a",1]}`, `["a",1]`},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			f := newFixture(t, "1")

			msg, err := f.router.Handle(as("1"), []byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Content)
		})
	}
}

func TestRouter_StoreFailureStillBroadcasts(t *testing.T) {
	f := newFixture(t, "1", "2")
	f.repo.FailSaves(errors.New("redis: connection refused"))

	_, err := f.router.Handle(as("2"), []byte(`{"content":"still here"}`))
	require.NoError(t, err)

	assert.Zero(t, f.repo.Len())
	for _, c := range f.clients {
		assert.Len(t, c.Sent(), 1)
	}
}

func TestRouter_RequiresBoundIdentity(t *testing.T) {
	f := newFixture(t, "1")

	_, err := f.router.Handle(context.Background(), []byte(`{"content":"hi"}`))
	require.Error(t, err)

	assert.Empty(t, f.clients["1"].Sent())
	assert.Zero(t, f.repo.Len())
}

func TestRouter_History(t *testing.T) {
	f := newFixture(t, "1")

	empty, err := f.router.History(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EnvelopeTypeHistory, empty.Type)
	assert.Empty(t, empty.Data)

	_, err = f.router.Handle(as("1"), []byte(`{"content":"first"}`))
	require.NoError(t, err)

	history, err := f.router.History(context.Background())
	require.NoError(t, err)
	messages, ok := history.Data.([]*domain.Message)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "first", messages[0].Content)

	got, err := f.router.Message(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Content)

	_, err = f.router.Message(context.Background(), "nope")
	assert.ErrorIs(t, err, sensorlink.ErrMessageNotFound)
}
