package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/theatre/internal/metrics"
	"github.com/sharetube/theatre/internal/repository/connection/inmemory"
	"github.com/sharetube/theatre/internal/repository/room"
	roomRedis "github.com/sharetube/theatre/internal/repository/room/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id       string
	mu       sync.Mutex
	received [][]byte
}

func (c *fakeConn) ID() string {
	return c.id
}

func (c *fakeConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.received = append(c.received, msg)
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([][]byte(nil), c.received...)
}

type testEnv struct {
	service  *service
	roomRepo iRoomRepo
	groups   iGroupRepo
}

// newTestEnv starts a room "r1" hosted by A with member B, and a room "r2" hosted by D.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	ctx := context.Background()
	roomRepo := roomRedis.NewRepo(rc, slog.Default())
	require.NoError(t, roomRepo.CreateRoom(ctx, &room.CreateRoomParams{RoomID: "r1", Name: "one", Host: "A", Members: []string{"B"}}))
	require.NoError(t, roomRepo.CreateRoom(ctx, &room.CreateRoomParams{RoomID: "r2", Name: "two", Host: "D"}))

	m := metrics.New(prometheus.NewRegistry())
	groups := inmemory.NewRepo(slog.Default(), m)

	return testEnv{
		service:  NewService(roomRepo, groups, 8, slog.Default(), m),
		roomRepo: roomRepo,
		groups:   groups,
	}
}

func (e testEnv) connect(t *testing.T, roomID, userID string) *fakeConn {
	t.Helper()
	conn := &fakeConn{id: userID + "@" + roomID}
	require.NoError(t, e.service.ConnectMember(context.Background(), &ConnectMemberParams{
		RoomID: roomID,
		UserID: userID,
		Conn:   conn,
	}))

	require.Len(t, conn.messages(), 1, "room state must be queued on connect")
	return conn
}

func (e testEnv) getRoom(t *testing.T, roomID string) room.Room {
	t.Helper()
	r, err := e.roomRepo.GetRoom(context.Background(), roomID)
	require.NoError(t, err)

	return r
}

func TestConnectMember(t *testing.T) {
	env := newTestEnv(t)

	a := env.connect(t, "r1", "A")
	var state RoomStateMessage
	require.NoError(t, json.Unmarshal(a.messages()[0], &state))
	assert.Equal(t, TypeRoomState, state.Type)
	assert.Equal(t, "r1", state.Room.ID)
	assert.Equal(t, "A", state.Room.Host)
	assert.Equal(t, room.PlaybackStatePaused, state.Room.PlaybackState)
	assert.True(t, state.IsHost)

	b := env.connect(t, "r1", "B")
	require.NoError(t, json.Unmarshal(b.messages()[0], &state))
	assert.False(t, state.IsHost)

	assert.Equal(t, 2, env.groups.Count("r1"))
}

func TestConnectMemberRejectsNonMember(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct{ roomID, userID string }{
		{roomID: "r1", userID: "C"},
		{roomID: "missing", userID: "A"},
	} {
		conn := &fakeConn{id: "c"}
		err := env.service.ConnectMember(context.Background(), &ConnectMemberParams{RoomID: tc.roomID, UserID: tc.userID, Conn: conn})
		require.ErrorIs(t, err, ErrNotMember)
		assert.Empty(t, conn.messages())
		assert.Equal(t, 0, env.groups.Count(tc.roomID))
	}
}

func TestDisconnectMemberIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "r1", "A")
	env.connect(t, "r1", "B")

	params := &DisconnectMemberParams{RoomID: "r1", Conn: a}
	env.service.DisconnectMember(context.Background(), params)
	env.service.DisconnectMember(context.Background(), params)

	assert.Equal(t, 1, env.groups.Count("r1"))
}

func TestHostPlay(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "r1", "A")
	b := env.connect(t, "r1", "B")

	payload := []byte(`{"type":"play"}`)
	err := env.service.HandlePlayback(context.Background(), &HandlePlaybackParams{
		RoomID: "r1", SenderID: "A", Sender: a, Command: CommandPlay, Payload: payload,
	})
	require.NoError(t, err)

	assert.Equal(t, room.PlaybackStatePlaying, env.getRoom(t, "r1").PlaybackState)
	assert.Len(t, a.messages(), 1, "sender must not receive its own command")
	require.Len(t, b.messages(), 2)
	assert.Equal(t, payload, b.messages()[1])

	require.NoError(t, env.service.HandlePlayback(context.Background(), &HandlePlaybackParams{
		RoomID: "r1", SenderID: "A", Sender: a, Command: CommandPause, Payload: []byte(`{"type":"pause"}`),
	}))
	assert.Equal(t, room.PlaybackStatePaused, env.getRoom(t, "r1").PlaybackState)
}

func TestNonHostCommandIsRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "r1", "A")
	b := env.connect(t, "r1", "B")

	err := env.service.HandlePlayback(context.Background(), &HandlePlaybackParams{
		RoomID: "r1", SenderID: "B", Sender: b, Command: CommandPause, Payload: []byte(`{"type":"pause"}`),
	})
	require.ErrorIs(t, err, ErrNotHost)

	r := env.getRoom(t, "r1")
	assert.Equal(t, room.PlaybackStatePaused, r.PlaybackState)
	assert.Equal(t, 0.0, r.CurrentTimestamp)
	assert.Len(t, a.messages(), 1, "nothing must be broadcast")
	assert.Len(t, b.messages(), 1)
}

func TestSeekClampsNegativeTime(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "r1", "A")
	b := env.connect(t, "r1", "B")

	payload := []byte(`{"type":"seek","time":-5}`)
	require.NoError(t, env.service.HandlePlayback(context.Background(), &HandlePlaybackParams{
		RoomID: "r1", SenderID: "A", Sender: a, Command: CommandSeek, Payload: payload,
	}))

	assert.Equal(t, 0.0, env.getRoom(t, "r1").CurrentTimestamp)
	require.Len(t, b.messages(), 2)
	assert.Equal(t, payload, b.messages()[1], "payload must be relayed verbatim")
}

func TestParseSeekTime(t *testing.T) {
	for payload, want := range map[string]float64{
		`{"type":"seek","time":30}`:      30,
		`{"type":"seek","time":12.5}`:    12.5,
		`{"type":"seek","time":"12.5"}`:  12.5,
		`{"type":"seek","time":-5}`:      0,
		`{"type":"seek","time":"-5"}`:    0,
		`{"type":"seek"}`:                0,
		`{"type":"seek","time":null}`:    0,
		`{"type":"seek","time":"abc"}`:   0,
		`{"type":"seek","time":"NaN"}`:   0,
		`{"type":"seek","time":{}}`:      0,
		`{"type":"seek","time":[1]}`:     0,
		`not json`:                       0,
	} {
		assert.Equal(t, want, parseSeekTime([]byte(payload)), payload)
	}
}

func TestConcurrentSeeksKeepBroadcastOrder(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "r1", "A")
	b := env.connect(t, "r1", "B")

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := []byte(fmt.Sprintf(`{"type":"seek","time":%d}`, i+1))
			assert.NoError(t, env.service.HandlePlayback(context.Background(), &HandlePlaybackParams{
				RoomID: "r1", SenderID: "A", Sender: a, Command: CommandSeek, Payload: payload,
			}))
		}()
	}
	wg.Wait()

	msgs := b.messages()
	require.Len(t, msgs, n+1)

	var last struct {
		Time float64 `json:"time"`
	}
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1], &last))
	assert.Equal(t, last.Time, env.getRoom(t, "r1").CurrentTimestamp,
		"last broadcast must match the persisted timestamp")
}

func TestCommandInOtherRoomIsIsolated(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "r1", "A")
	b := env.connect(t, "r1", "B")
	d := env.connect(t, "r2", "D")

	require.NoError(t, env.service.HandlePlayback(context.Background(), &HandlePlaybackParams{
		RoomID: "r2", SenderID: "D", Sender: d, Command: CommandPlay, Payload: []byte(`{"type":"play"}`),
	}))

	assert.Len(t, a.messages(), 1)
	assert.Len(t, b.messages(), 1)
	assert.Equal(t, room.PlaybackStatePaused, env.getRoom(t, "r1").PlaybackState)
	assert.Equal(t, room.PlaybackStatePlaying, env.getRoom(t, "r2").PlaybackState)
}

func TestRoomNotFoundAtCommandTime(t *testing.T) {
	env := newTestEnv(t)
	conn := &fakeConn{id: "a"}

	err := env.service.HandlePlayback(context.Background(), &HandlePlaybackParams{
		RoomID: "missing", SenderID: "A", Sender: conn, Command: CommandPlay, Payload: []byte(`{"type":"play"}`),
	})
	require.ErrorIs(t, err, ErrRoomNotFound)
}

type failingRoomRepo struct {
	iRoomRepo
	err error
}

func (r failingRoomRepo) SetPlaybackState(context.Context, string, room.PlaybackState) error {
	return r.err
}

func (r failingRoomRepo) SetTimestamp(context.Context, string, float64) error {
	return r.err
}

func TestPersistFailureAbortsCommand(t *testing.T) {
	env := newTestEnv(t)
	env.service.roomRepo = failingRoomRepo{iRoomRepo: env.roomRepo, err: errors.New("store down")}
	a := env.connect(t, "r1", "A")
	b := env.connect(t, "r1", "B")

	err := env.service.HandlePlayback(context.Background(), &HandlePlaybackParams{
		RoomID: "r1", SenderID: "A", Sender: a, Command: CommandSeek, Payload: []byte(`{"type":"seek","time":10}`),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotHost)
	assert.Len(t, b.messages(), 1, "failed command must not be broadcast")
}

type brokenRoomRepo struct {
	iRoomRepo
}

func (brokenRoomRepo) IsMemberOf(context.Context, string, string) (bool, error) {
	return false, errors.New("store down")
}

func (brokenRoomRepo) IsHostOf(context.Context, string, string) (bool, error) {
	return false, errors.New("store down")
}

func TestMembershipFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.True(t, env.service.IsMember(ctx, "r1", "B"))
	assert.False(t, env.service.IsMember(ctx, "r1", "C"))
	assert.False(t, env.service.IsMember(ctx, "missing", "A"))
	assert.True(t, env.service.IsHost(ctx, "r1", "A"))
	assert.False(t, env.service.IsHost(ctx, "r1", "B"))
	assert.False(t, env.service.IsHost(ctx, "missing", "A"))

	env.service.roomRepo = brokenRoomRepo{}
	assert.False(t, env.service.IsMember(ctx, "r1", "B"))
	assert.False(t, env.service.IsHost(ctx, "r1", "A"))
}

func TestRelayMessage(t *testing.T) {
	env := newTestEnv(t)
	a := env.connect(t, "r1", "A")
	b := env.connect(t, "r1", "B")

	for _, msgType := range []string{"chat", "error", "room_state", "PLAY", " seek", "Pause"} {
		payload := []byte(`{"type":"` + msgType + `","text":"hi"}`)
		env.service.RelayMessage(context.Background(), &RelayMessageParams{
			RoomID: "r1", Sender: b, Type: msgType, Payload: payload,
		})

		msgs := a.messages()
		assert.Equal(t, payload, msgs[len(msgs)-1], "type %q must be relayed verbatim", msgType)
	}

	assert.Len(t, a.messages(), 7)
	assert.Len(t, b.messages(), 1, "sender must not receive its own message")

	r := env.getRoom(t, "r1")
	assert.Equal(t, room.PlaybackStatePaused, r.PlaybackState, "relayed look-alikes must not touch playback")
}

func TestRoomLocksAreIndependent(t *testing.T) {
	l := newRoomLocker()
	unlock := l.lock("r1")

	done := make(chan struct{})
	go func() {
		unlockOther := l.lock("r2")
		unlockOther()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on r2 blocked by r1")
	}

	blocked := make(chan struct{})
	go func() {
		unlockSame := l.lock("r1")
		unlockSame()
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("second lock on r1 acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-blocked

	l.mu.Lock()
	assert.Empty(t, l.locks, "released locks must be dropped")
	l.mu.Unlock()
}

func TestNewErrorMessage(t *testing.T) {
	msg, err := NewErrorMessage(`not the "host"`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"not the \"host\""}`, string(msg))
}
