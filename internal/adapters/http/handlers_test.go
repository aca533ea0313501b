package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle/internal/app"
	"huddle/internal/config"
	"huddle/internal/core"
	"huddle/internal/domain"
	"huddle/internal/store"
)

func newTestStack(t *testing.T) (*gin.Engine, *app.Hub, *app.RoomService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	chat := app.NewChatBuffer(100)
	rooms := app.NewRoomService(st, chat, 30*time.Minute)
	control := app.NewControlService(st)
	hub := app.NewHub(app.NewRegistry(), st, app.NewSlidingWindowLimiter(30, 10*time.Second))

	cfg := &config.Config{
		Mode:       "test",
		Secret:     "test-secret",
		ReadLimit:  32768,
		PingPeriod: 25 * time.Second,
	}
	return SetupRouter(context.Background(), cfg, rooms, control, chat, hub), hub, rooms
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	r, _, _ := newTestStack(t)
	return r
}

// stubConn captures frames pushed to a live connection.
type stubConn struct {
	frames []core.Frame
	closed bool
}

func (c *stubConn) TrySend(f core.Frame) error {
	c.frames = append(c.frames, f)
	return nil
}

func (c *stubConn) Close() { c.closed = true }

func (c *stubConn) lastEventType(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, c.frames)
	var evt struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(c.frames[len(c.frames)-1], &evt))
	return evt.Type
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func createRoom(t *testing.T, r *gin.Engine, body string) (roomID, hostID string) {
	t.Helper()
	w, resp := doJSON(t, r, http.MethodPost, "/api/rooms", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	room, ok := resp["room"].(map[string]any)
	require.True(t, ok)
	return room["id"].(string), resp["hostParticipantId"].(string)
}

func TestCreateRoomEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/rooms",
		`{"title":"Standup","password":"hunter2","maxParticipants":5}`)
	require.Equal(t, http.StatusCreated, w.Code)

	room := resp["room"].(map[string]any)
	assert.Len(t, room["id"].(string), 12)
	assert.Equal(t, "Standup", room["title"])
	assert.Equal(t, true, room["hasPassword"])
	assert.Equal(t, float64(5), room["maxParticipants"])
	assert.NotEmpty(t, resp["hostParticipantId"])

	// The hash must never appear anywhere in the response.
	assert.NotContains(t, strings.ToLower(w.Body.String()), "hash")
	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestCreateRoomEndpoint_Validation(t *testing.T) {
	r := newTestRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/rooms", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "title")

	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoomEndpoint(t *testing.T) {
	r := newTestRouter(t)
	roomID, _ := createRoom(t, r, `{"title":"Standup"}`)

	w, resp := doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, roomID, resp["id"])
	assert.Equal(t, true, resp["isActive"])

	w, _ = doJSON(t, r, http.MethodGet, "/api/rooms/missing12345", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinRoomEndpoint_ErrorMapping(t *testing.T) {
	r := newTestRouter(t)
	roomID, hostID := createRoom(t, r, `{"title":"Standup","password":"hunter2","maxParticipants":2}`)

	// Wrong password is Forbidden.
	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"name":"Bob","password":"nope"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Correct password succeeds.
	w, resp := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"name":"Bob","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	p := resp["participant"].(map[string]any)
	assert.Equal(t, "Bob", p["name"])
	assert.Equal(t, false, p["isHost"])

	// Room is now full; the next join conflicts.
	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"name":"Carol","password":"hunter2"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown room is NotFound.
	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/missing12345/join", `{"name":"Bob"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Ended room is Gone.
	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/end", fmt.Sprintf(`{"participantId":%q}`, hostID))
	require.Equal(t, http.StatusNoContent, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"name":"Dave","password":"hunter2"}`)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestLeaveRoomEndpoint_Idempotent(t *testing.T) {
	r := newTestRouter(t)
	roomID, _ := createRoom(t, r, `{"title":"Standup"}`)
	_, resp := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"name":"Bob"}`)
	pid := resp["participant"].(map[string]any)["id"].(string)

	body := fmt.Sprintf(`{"participantId":%q}`, pid)
	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/leave", body)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/leave", body)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/leave", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "participantId is required")
}

func TestTimeoutEndpoint(t *testing.T) {
	r := newTestRouter(t)
	roomID, _ := createRoom(t, r, `{"title":"Standup"}`)

	w, resp := doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID+"/timeout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["shouldClose"])
	assert.Equal(t, float64(30), resp["remainingMinutes"])

	// Unknown rooms read as already closed.
	w, resp = doJSON(t, r, http.MethodGet, "/api/rooms/missing12345/timeout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["shouldClose"])
}

func TestEndMeetingEndpoint_HostOnly(t *testing.T) {
	r := newTestRouter(t)
	roomID, hostID := createRoom(t, r, `{"title":"Standup"}`)
	_, resp := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"name":"Bob"}`)
	bobID := resp["participant"].(map[string]any)["id"].(string)

	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/end", fmt.Sprintf(`{"participantId":%q}`, bobID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/end", fmt.Sprintf(`{"participantId":%q}`, hostID))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestParticipantsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	roomID, _ := createRoom(t, r, `{"title":"Standup"}`)
	doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"name":"Bob"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+roomID+"/participants", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var ps []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ps))
	require.Len(t, ps, 2)
	assert.Equal(t, "Host", ps[0]["name"])
	assert.Equal(t, true, ps[0]["isHost"])
	assert.Equal(t, "Bob", ps[1]["name"])
}

func TestHostControlEndpoints(t *testing.T) {
	r := newTestRouter(t)
	roomID, hostID := createRoom(t, r, `{"title":"Standup"}`)
	_, resp := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"name":"Bob"}`)
	bobID := resp["participant"].(map[string]any)["id"].(string)

	w, body := doJSON(t, r, http.MethodPost, "/api/participants/"+bobID+"/mute",
		fmt.Sprintf(`{"hostId":%q,"mute":true}`, hostID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["isAudioEnabled"])

	w, body = doJSON(t, r, http.MethodPost, "/api/participants/"+bobID+"/video",
		fmt.Sprintf(`{"hostId":%q,"enable":false}`, hostID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["isVideoEnabled"])

	// A non-host actor is rejected.
	w, _ = doJSON(t, r, http.MethodPost, "/api/participants/"+bobID+"/screenshare",
		fmt.Sprintf(`{"hostId":%q,"enable":true}`, bobID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Targeting the host is rejected.
	w, _ = doJSON(t, r, http.MethodPost, "/api/participants/"+hostID+"/kick",
		fmt.Sprintf(`{"hostId":%q}`, hostID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/participants/"+bobID+"/kick",
		fmt.Sprintf(`{"hostId":%q}`, hostID))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSelfUpdateEndpoint(t *testing.T) {
	r := newTestRouter(t)
	roomID, _ := createRoom(t, r, `{"title":"Standup"}`)
	_, resp := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"name":"Bob"}`)
	bobID := resp["participant"].(map[string]any)["id"].(string)

	w, body := doJSON(t, r, http.MethodPatch, "/api/participants/"+bobID, `{"isScreenSharing":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["isScreenSharing"])

	w, _ = doJSON(t, r, http.MethodPatch, "/api/participants/"+bobID, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty patch rejected")
}

func TestChatEndpoints(t *testing.T) {
	r := newTestRouter(t)
	roomID, hostID := createRoom(t, r, `{"title":"Standup"}`)

	w, body := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/chat", `{"sender":"Bob","content":"hello"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "hello", body["content"])
	assert.NotEmpty(t, body["id"])

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+roomID+"/chat", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)
	var msgs []map[string]any
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 1)

	// Chat to an ended room is Gone.
	doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/end", fmt.Sprintf(`{"participantId":%q}`, hostID))
	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/chat", `{"sender":"Bob","content":"too late"}`)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestEndMeetingEndpoint_EvictsLiveConnections(t *testing.T) {
	r, hub, _ := newTestStack(t)
	roomID, hostID := createRoom(t, r, `{"title":"Standup"}`)

	conn := &stubConn{}
	hub.Connect("sid-host", conn, nil)
	require.NoError(t, hub.JoinRoom(context.Background(), "sid-host", domain.RoomID(roomID), domain.ParticipantID(hostID)))

	w, _ := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/end", fmt.Sprintf(`{"participantId":%q}`, hostID))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 0, hub.Registry.LiveCount(domain.RoomID(roomID)))
	assert.Equal(t, app.MsgRoomClosed, conn.lastEventType(t))
	assert.False(t, conn.closed, "transport stays open for a future join")
}

func TestTimeoutEndpoint_EvictsOnExpiredRoom(t *testing.T) {
	r, hub, rooms := newTestStack(t)
	roomID, hostID := createRoom(t, r, `{"title":"Standup"}`)

	conn := &stubConn{}
	hub.Connect("sid-host", conn, nil)
	require.NoError(t, hub.JoinRoom(context.Background(), "sid-host", domain.RoomID(roomID), domain.ParticipantID(hostID)))

	// Terminate behind the router's back; the next timeout poll must
	// still reconcile the push channel.
	require.NoError(t, rooms.End(context.Background(), domain.RoomID(roomID), domain.ParticipantID(hostID)))

	w, resp := doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID+"/timeout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["shouldClose"])
	assert.Equal(t, 0, hub.Registry.LiveCount(domain.RoomID(roomID)))
	assert.Equal(t, app.MsgRoomClosed, conn.lastEventType(t))
}

func TestSignalEndpoint(t *testing.T) {
	r := newTestRouter(t)
	roomID, hostID := createRoom(t, r, `{"title":"Standup"}`)

	w, body := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/signal",
		fmt.Sprintf(`{"participantId":%q,"signal":{"type":"offer","data":{"type":"offer","sdp":"v=0..."}}}`, hostID))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "relayed", body["status"])

	w, _ = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/signal",
		fmt.Sprintf(`{"participantId":%q,"signal":{"type":"bogus","data":{}}}`, hostID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
