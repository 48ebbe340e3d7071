// Package audit records user-facing writes to the audit log without putting
// the log write on the request path.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
)

const (
	ActionSignup      = "signup"
	ActionLogin       = "login"
	ActionLogout      = "logout"
	ActionCreateOrder = "create_order"
	ActionCheckout    = "checkout"
	ActionReplaceCart = "replace_cart"
)

const writeTimeout = 5 * time.Second

type Sink interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

// Event is the message delivered to the audit actor.
type Event struct {
	Action   string
	UserID   string
	EntityID string
	Data     map[string]interface{}
}

type auditActor struct {
	sink    Sink
	service string
	logger  *zap.Logger
}

func (a *auditActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Event:
		writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		err := a.sink.CreateAuditLog(writeCtx, &repository.AuditLog{
			Service:  a.service,
			Action:   msg.Action,
			UserID:   msg.UserID,
			EntityID: msg.EntityID,
			Data:     msg.Data,
		})
		if err != nil {
			a.logger.Error("Failed to write audit log",
				zap.String("action", msg.Action),
				zap.String("entity_id", msg.EntityID),
				zap.Error(err))
		}

	case *actor.Started:
		a.logger.Info("Audit actor started")

	case *actor.Stopped:
		a.logger.Info("Audit actor stopped")
	}
}

// Recorder hands events to the audit actor. A nil *Recorder drops events.
type Recorder struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewRecorder(sink Sink, service string, logger *zap.Logger) (*Recorder, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &auditActor{sink: sink, service: service, logger: logger.Named("audit-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "audit-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn audit actor: %w", err)
	}

	return &Recorder{system: system, pid: pid, logger: logger}, nil
}

func (r *Recorder) Record(event *Event) {
	if r == nil || event == nil {
		return
	}
	r.system.Root.Send(r.pid, event)
}

// Stop waits for queued events to be written, then stops the actor system.
func (r *Recorder) Stop() {
	if r == nil {
		return
	}
	if err := r.system.Root.PoisonFuture(r.pid).Wait(); err != nil {
		r.logger.Warn("Audit actor did not stop cleanly", zap.Error(err))
	}
	r.system.Shutdown()
}
