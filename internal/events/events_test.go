package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newslens/pkg/models"
)

type recordingPublisher struct {
	got []Event
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, evt Event) error {
	r.got = append(r.got, evt)
	return r.err
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingPublisher{}
	bad := &recordingPublisher{err: errors.New("bus down")}

	err := Fanout{ok, nil, bad, Discard{}}.Publish(context.Background(), FetchCompleted(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus down")

	require.Len(t, ok.got, 1)
	require.Len(t, bad.got, 1)
	assert.Equal(t, TypeFetchCompleted, ok.got[0].Type)
	assert.Equal(t, 3, *ok.got[0].Added)
}

func TestEventConstructors(t *testing.T) {
	e := ArticleIngested(models.Article{ID: "a1", Title: "t"})
	assert.Equal(t, TypeArticleIngested, e.Type)
	assert.Equal(t, "a1", e.Article.ID)

	e = InteractionToggled("u1", "a1", models.InteractionLike, true)
	assert.Equal(t, "u1", e.UserID)
	assert.True(t, *e.Active)

	assert.Equal(t, "newslens.article.ingested", Subject(TypeArticleIngested))
}

func TestServer_BroadcastsToTCPClients(t *testing.T) {
	hub := NewHub()
	srv := NewServer("127.0.0.1:0", hub, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()
	require.Eventually(t, func() bool { return srv.ListenAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", srv.ListenAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"welcome"`)

	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), ArticleIngested(models.Article{ID: "x", Title: "Hello"})))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err = r.ReadString('\n')
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal([]byte(line), &evt))
	assert.Equal(t, TypeArticleIngested, evt.Type)
	assert.Equal(t, "Hello", evt.Article.Title)

	require.NoError(t, srv.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWSHandler_StreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", WSHandler(hub, zerolog.Nop()))

	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "websocket")

	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), FetchCompleted(7)))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(msg, &evt))
	assert.Equal(t, TypeFetchCompleted, evt.Type)
	assert.Equal(t, 7, *evt.Added)
}

func TestWSHandler_WelcomeWhilePublishing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", WSHandler(hub, zerolog.Nop()))

	ts := httptest.NewServer(r)
	defer ts.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				_ = hub.Publish(context.Background(), FetchCompleted(1))
				time.Sleep(100 * time.Microsecond)
			}
		}
	}()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	for i := 0; i < 5; i++ {
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)

		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(msg), "welcome", "welcome is always the first frame")
		_ = ws.Close()
	}

	close(stop)
	<-done
}

func TestNATSPublisher_RoundTrip(t *testing.T) {
	url := os.Getenv("NEWSLENS_TEST_NATS_URL")
	if url == "" {
		t.Skip("NEWSLENS_TEST_NATS_URL not set")
	}

	p, err := NewNATSPublisher(url)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Event, 1)
	_, err = p.Subscribe(ctx, func(e Event) { got <- e })
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, FetchCompleted(2)))

	select {
	case e := <-got:
		assert.Equal(t, TypeFetchCompleted, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
