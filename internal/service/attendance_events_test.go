package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geoattend-api/internal/dto"
)

func TestAttendanceEventHubLocalDelivery(t *testing.T) {
	hub := NewAttendanceEventHub(nil, "", nil, testLogger())

	events, cleanup := hub.Subscribe(7)
	other, cleanupOther := hub.Subscribe(8)
	defer cleanupOther()

	hub.Publish(context.Background(), dto.AttendanceEvent{Type: "attendance.marked", ClassID: 7, UserID: 3})

	select {
	case event := <-events:
		require.Equal(t, uint(3), event.UserID)
	case <-time.After(time.Second):
		t.Fatal("expected event for class 7")
	}

	select {
	case <-other:
		t.Fatal("class 8 must not receive class 7 events")
	default:
	}

	cleanup()
	cleanup()
	_, open := <-events
	require.False(t, open)
}

func TestAttendanceEventHubFansOutOverRedis(t *testing.T) {
	_, client := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := NewAttendanceEventHub(client, "attendance", nil, testLogger())
	receiver := NewAttendanceEventHub(client, "attendance", nil, testLogger())
	receiver.Start(ctx)

	events, cleanup := receiver.Subscribe(5)
	defer cleanup()

	require.Eventually(t, func() bool {
		publisher.Publish(ctx, dto.AttendanceEvent{Type: "attendance.marked", ClassID: 5, ReferenceID: "ref-1"})
		select {
		case event := <-events:
			return event.ReferenceID == "ref-1"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
