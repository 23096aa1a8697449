package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/geoattend-api/internal/dto"
	"github.com/noah-isme/geoattend-api/internal/observability"
)

const liveBufferSize = 32

// AttendanceEventHub fans attendance events out to live subscribers on every node.
type AttendanceEventHub interface {
	Publish(ctx context.Context, event dto.AttendanceEvent)
	Subscribe(classID uint) (<-chan dto.AttendanceEvent, func())
	Start(ctx context.Context)
}

type attendanceEventHub struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *attendanceBroker
	nodeID       string
}

type attendanceEnvelope struct {
	Source string              `json:"source"`
	Event  dto.AttendanceEvent `json:"event"`
	SentAt time.Time           `json:"sent_at"`
}

type attendanceBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.AttendanceEvent]struct{}
}

// NewAttendanceEventHub constructs the hub. Redis and NATS are optional; with neither the
// hub only reaches subscribers connected to this node.
func NewAttendanceEventHub(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) AttendanceEventHub {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &attendanceEventHub{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "attendance_event_hub").Logger(),
		broker: &attendanceBroker{
			subscribers: make(map[uint]map[chan dto.AttendanceEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (h *attendanceEventHub) Start(ctx context.Context) {
	if h.redis != nil && h.redisChannel != "" {
		go h.consumeRedis(ctx)
	}
	if h.nats != nil && h.natsSubject != "" {
		go h.consumeNATS(ctx)
	}
}

func (h *attendanceEventHub) Publish(ctx context.Context, event dto.AttendanceEvent) {
	h.broker.broadcast(event.ClassID, event)

	payload, err := json.Marshal(attendanceEnvelope{Source: h.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode attendance event")
		return
	}

	if h.redis != nil && h.redisChannel != "" {
		if err := h.redis.Publish(ctx, h.redisChannel, payload).Err(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to publish attendance event to redis")
		}
	}

	if h.nats != nil && h.natsSubject != "" {
		if err := h.nats.Publish(h.natsSubject, payload); err != nil {
			h.logger.Warn().Err(err).Msg("failed to publish attendance event to nats")
		}
	}
}

func (h *attendanceEventHub) Subscribe(classID uint) (<-chan dto.AttendanceEvent, func()) {
	channel := make(chan dto.AttendanceEvent, liveBufferSize)

	h.broker.subscribe(classID, channel)
	observability.LiveSubscribers().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.broker.unsubscribe(classID, channel)
			observability.LiveSubscribers().Dec()
		})
	}

	return channel, cleanup
}

func (h *attendanceEventHub) consumeRedis(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, h.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			h.logger.Error().Err(err).Msg("attendance redis subscription closed")
			return
		}
		h.handleEnvelope([]byte(msg.Payload))
	}
}

func (h *attendanceEventHub) consumeNATS(ctx context.Context) {
	sub, err := h.nats.Subscribe(h.natsSubject, func(msg *nats.Msg) {
		h.handleEnvelope(msg.Data)
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe to nats attendance subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to drain attendance nats subscription")
		}
	}()
}

func (h *attendanceEventHub) handleEnvelope(payload []byte) {
	var envelope attendanceEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		h.logger.Warn().Err(err).Msg("invalid attendance event payload")
		return
	}

	if envelope.Source == h.nodeID {
		return
	}

	h.broker.broadcast(envelope.Event.ClassID, envelope.Event)
}

func (b *attendanceBroker) subscribe(classID uint, ch chan dto.AttendanceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[classID]; !exists {
		b.subscribers[classID] = make(map[chan dto.AttendanceEvent]struct{})
	}
	b.subscribers[classID][ch] = struct{}{}
}

func (b *attendanceBroker) unsubscribe(classID uint, ch chan dto.AttendanceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[classID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, classID)
		}
	}
}

func (b *attendanceBroker) broadcast(classID uint, event dto.AttendanceEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[classID] {
		select {
		case ch <- event:
		default:
		}
	}
}
