package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/roomd/internal/api"
	"github.com/arung-agamani/roomd/internal/authtoken"
	"github.com/arung-agamani/roomd/internal/graph"
	"github.com/arung-agamani/roomd/internal/room"
	"github.com/arung-agamani/roomd/internal/tree"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorResolve(ctx context.Context, track *tree.Track) (string, error) {
	return "", context.DeadlineExceeded
}

func newTestInput(t *testing.T) *graph.InputHandle {
	t.Helper()
	core := graph.NewCore(48000, 960)
	out := core.AddOutput()
	return core.AddInputTo(out)
}

func newTestServer(t *testing.T) (*api.Server, *authtoken.Issuer, func()) {
	t.Helper()

	issuer := authtoken.New(authtoken.Config{
		Username:  "operator",
		Password:  "hunter2",
		JWTSecret: "test-secret-at-least-32-bytes-long!!",
		TokenTTL:  time.Hour,
	})

	rooms := api.NewRegistry()

	root := tree.NewPlaylist(tree.Flatten)
	root.Entries = append(root.Entries, tree.Entry{Track: &tree.Track{ID: "t1", Title: "One"}})
	tracker := tree.NewDefaultTracker(root)
	ctrl := room.New(tracker, newTestInput(t), 48000, errorResolve)
	rooms.Put("room1", ctrl)

	tracker2 := tree.NewDefaultTracker(tree.NewPlaylist(tree.Flatten))
	ctrl2 := room.New(tracker2, newTestInput(t), 48000, errorResolve)
	rooms.Put("room2", ctrl2)

	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	go ctrl2.Run(ctx)

	server := api.New(rooms, issuer)
	return server, issuer, cancel
}

// loginToken logs in without a room, yielding an all-rooms token.
func loginToken(t *testing.T, r http.Handler) string {
	t.Helper()
	return loginTokenForRoom(t, r, "")
}

func loginTokenForRoom(t *testing.T, r http.Handler, room string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": "operator", "password": "hunter2", "room": room})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginWithBadCredentialsReturns401(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"username": "operator", "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoomEndpointRejectsMissingToken(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/rooms/room1/play", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoomEndpointUnknownRoomReturns404(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	router := server.Router()
	token := loginToken(t, router)

	req := httptest.NewRequest(http.MethodPost, "/rooms/does-not-exist/play", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoomEndpointRejectsTokenScopedToDifferentRoom(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	router := server.Router()
	token := loginTokenForRoom(t, router, "room1")

	req := httptest.NewRequest(http.MethodPost, "/rooms/room2/play", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoomEndpointAcceptsTokenScopedToSameRoom(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	router := server.Router()
	token := loginTokenForRoom(t, router, "room1")

	req := httptest.NewRequest(http.MethodPost, "/rooms/room1/play", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPlayWithFailingResolveReturnsOK(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	router := server.Router()
	token := loginToken(t, router)

	req := httptest.NewRequest(http.MethodPost, "/rooms/room1/play", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestToggleRandomReportsNewValue(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	router := server.Router()
	token := loginToken(t, router)

	req := httptest.NewRequest(http.MethodPost, "/rooms/room1/random", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Random bool `json:"random"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Trackers start with shuffle on, so the first toggle turns it off.
	require.False(t, resp.Random)
}

func TestGetPlaylistReturnsCurrentTree(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	router := server.Router()
	token := loginToken(t, router)

	req := httptest.NewRequest(http.MethodGet, "/rooms/room1/playlist", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAddPlaylistInvalidPathReturns400(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	router := server.Router()
	token := loginToken(t, router)

	body, _ := json.Marshal(map[string]any{
		"playlist": map[string]any{"Nesting": 0, "Entries": []any{}},
		"path":     []int{99},
	})
	req := httptest.NewRequest(http.MethodPost, "/rooms/room1/playlist", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsWebsocketRelaysTrackClearedOnPlay(t *testing.T) {
	server, _, cancel := newTestServer(t)
	defer cancel()

	router := server.Router()
	token := loginToken(t, router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/rooms/room1/events"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	httpClient := srv.Client()
	go func() {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/rooms/room1/play", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev struct {
		Kind string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(msg, &ev))
	require.Equal(t, "track_cleared", ev.Kind)
}
