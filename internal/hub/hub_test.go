package hub_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oppadayo/poker-planning-server/internal/hub"
	"github.com/Oppadayo/poker-planning-server/internal/repository/mocks"
	"github.com/Oppadayo/poker-planning-server/internal/service"
)

func newTestHub(t *testing.T) *hub.Hub {
	t.Helper()
	grants, err := service.NewGrantProvider("grant-secret", time.Hour)
	require.NoError(t, err)
	rooms := new(mocks.RoomRepository)
	parts := new(mocks.ParticipantRepository)
	recorder := &mocks.EventRecorder{}
	roomSvc := service.NewRoomService(rooms, parts, mocks.TxManager{}, grants, recorder)
	roundSvc := service.NewRoundService(
		new(mocks.RoundRepository), new(mocks.VoteRepository), new(mocks.StoryRepository),
		roomSvc, mocks.TxManager{}, recorder,
	)
	return hub.NewHub(roundSvc)
}

func TestHub_RunExitsAfterStop(t *testing.T) {
	// Arrange
	h := newTestHub(t)
	stopped := make(chan struct{})
	go func() {
		h.Run()
		close(stopped)
	}()

	// Act
	h.Stop()

	// Assert
	select {
	case <-stopped:
	case <-time.After(1 * time.Second):
		t.Fatal("hub loop did not exit after Stop")
	}
}

func TestHub_QueueMessageAfterStopDoesNotPanic(t *testing.T) {
	// Arrange
	h := newTestHub(t)
	h.Stop()

	// Act: a client disconnecting during shutdown still tries to enqueue
	// its unregister message; the hub must reject it instead of panicking.
	ok := h.QueueMessage(hub.HubMessage{Type: "unregister", RoomID: uuid.New()})

	// Assert
	assert.False(t, ok)
}

func TestHub_StopIsIdempotent(t *testing.T) {
	h := newTestHub(t)

	h.Stop()
	h.Stop()
}
