package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// BoardNotifier pushes queue changes to the waiting-room display boards.
// Boards subscribe to the per-date channel; a lost message only delays the
// board until its next poll, so publishing is best effort.
type BoardNotifier interface {
	QueueChanged(ctx context.Context, date time.Time, doctorID int64, event string, payload any)
}

type redisBoardNotifier struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewBoardNotifier(client *redis.Client, log zerolog.Logger) BoardNotifier {
	return &redisBoardNotifier{client: client, log: log}
}

type boardEvent struct {
	Event    string `json:"event"`
	Date     string `json:"date"`
	DoctorID int64  `json:"doctor_id"`
	Payload  any    `json:"payload,omitempty"`
	SentAt   string `json:"sent_at"`
}

func (n *redisBoardNotifier) QueueChanged(ctx context.Context, date time.Time, doctorID int64, event string, payload any) {
	ev := boardEvent{
		Event:    event,
		Date:     date.Format("2006-01-02"),
		DoctorID: doctorID,
		Payload:  payload,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		n.log.Error().Err(err).Str("event", event).Msg("marshal board event")
		return
	}

	channel := fmt.Sprintf("frontdesk:queue:%s", ev.Date)
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		n.log.Warn().Err(err).Str("channel", channel).Msg("publish board event")
	}
}

// NopNotifier is used by tests and the sweeper, which has no board to drive.
type NopNotifier struct{}

func (NopNotifier) QueueChanged(context.Context, time.Time, int64, string, any) {}
