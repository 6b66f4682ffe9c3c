// Package worker runs the asynq background task server.
package worker

import (
	"context"
	"errors"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/Oppadayo/poker-planning-server/internal/events"
	"github.com/Oppadayo/poker-planning-server/internal/repository"
	"github.com/Oppadayo/poker-planning-server/internal/tasks"
)

// WorkerServer wraps the asynq server lifecycle and handler wiring.
type WorkerServer struct {
	server       *asynq.Server
	log          *logrus.Entry
	invites      repository.InviteRepository
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	publisher    events.Publisher
}

func NewWorkerServer(
	redisOpt asynq.RedisClientOpt,
	invites repository.InviteRepository,
	rooms repository.RoomRepository,
	participants repository.ParticipantRepository,
	publisher events.Publisher,
	logger *logrus.Logger,
) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server:       server,
		log:          logEntry,
		invites:      invites,
		rooms:        rooms,
		participants: participants,
		publisher:    publisher,
	}
}

// Start runs the worker server. It should be called in its own
// goroutine.
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()

	mux.HandleFunc(tasks.TypeInvitePurge, NewInvitePurgeHandler(ws.invites).ProcessTask)
	mux.HandleFunc(tasks.TypeRoomSweep, NewRoomSweepHandler(ws.rooms, ws.participants, ws.publisher).ProcessTask)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		} else {
			ws.log.Info("Worker server stopped.")
		}
	}
}

// Shutdown gracefully stops the worker server.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
