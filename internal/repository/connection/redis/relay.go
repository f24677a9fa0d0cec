package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/theatre/internal/metrics"
	"github.com/sharetube/theatre/internal/repository/connection"
)

type localGroups interface {
	Join(roomID string, conn connection.Conn)
	Leave(roomID string, conn connection.Conn) bool
	Broadcast(ctx context.Context, roomID string, msg []byte, exclude connection.Conn) int
	Count(roomID string) int
}

type envelope struct {
	NodeID    string `json:"node_id"`
	RoomID    string `json:"room_id"`
	ExcludeID string `json:"exclude_id,omitempty"`
	Payload   []byte `json:"payload"`
}

// excludedConn identifies a sender by id only. It is never delivered to.
type excludedConn string

func (c excludedConn) ID() string {
	return string(c)
}

func (c excludedConn) Send([]byte) error {
	return connection.ErrClosed
}

// relay fans room broadcasts out over a redis pub/sub channel. Every node, the publishing one
// included, delivers envelopes from the channel, so all nodes see room messages in the order
// they were published. Join, Leave and Count are served by the local groups.
type relay struct {
	localGroups
	rc      *redis.Client
	channel string
	nodeID  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRelay(local localGroups, rc *redis.Client, channel, nodeID string, logger *slog.Logger, m *metrics.Metrics) *relay {
	return &relay{
		localGroups: local,
		rc:          rc,
		channel:     channel,
		nodeID:      nodeID,
		logger:      logger,
		metrics:     m,
	}
}

// Broadcast publishes msg for every node and returns the number of nodes subscribed to the
// channel. When publishing fails the message is delivered to local members only.
func (r *relay) Broadcast(ctx context.Context, roomID string, msg []byte, exclude connection.Conn) int {
	var excludeID string
	if exclude != nil {
		excludeID = exclude.ID()
	}

	nodes, err := r.publish(ctx, roomID, excludeID, msg)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to publish to relay, delivering locally", "room_id", roomID, "error", err)
		return r.localGroups.Broadcast(ctx, roomID, msg, exclude)
	}

	return nodes
}

func (r *relay) publish(ctx context.Context, roomID, excludeID string, msg []byte) (int, error) {
	data, err := json.Marshal(envelope{
		NodeID:    r.nodeID,
		RoomID:    roomID,
		ExcludeID: excludeID,
		Payload:   msg,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	nodes, err := r.rc.Publish(ctx, r.channel, data).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish envelope: %w", err)
	}

	r.metrics.RelayedMessages.WithLabelValues("published").Inc()
	return int(nodes), nil
}

// Start subscribes to the relay channel and delivers envelopes until ctx is done.
// It returns once the subscription is confirmed.
func (r *relay) Start(ctx context.Context) error {
	sub := r.rc.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to relay channel: %w", err)
	}

	go r.listen(ctx, sub)
	return nil
}

func (r *relay) listen(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *relay) deliver(ctx context.Context, data string) {
	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		r.logger.WarnContext(ctx, "failed to decode relay envelope", "error", err)
		return
	}

	var exclude connection.Conn
	if env.ExcludeID != "" {
		exclude = excludedConn(env.ExcludeID)
	}

	r.metrics.RelayedMessages.WithLabelValues("received").Inc()
	delivered := r.localGroups.Broadcast(ctx, env.RoomID, env.Payload, exclude)
	r.logger.DebugContext(ctx, "relay envelope delivered", "room_id", env.RoomID, "from_node", env.NodeID, "delivered", delivered)
}
