package operator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/mq"
)

// loopbackPublisher отвечает на запрос через HandleReply, как это сделал бы worker.
type loopbackPublisher struct {
	op      *QueueOperator
	status  string
	payload mq.StepLaunchPayload
	replyTo string
	err     error
	silent  bool
}

func (p *loopbackPublisher) PublishStepLaunch(ctx context.Context, payload mq.StepLaunchPayload, replyTo, correlationID string) error {
	p.payload = payload
	p.replyTo = replyTo
	if p.err != nil {
		return p.err
	}
	if p.silent {
		return nil
	}

	result := mq.StepResultPayload{StepRunID: payload.StepRunID, Status: p.status, ExitCode: 1, Error: "boom"}
	delivery := replyDelivery(result, correlationID)
	go p.op.HandleReply(ctx, delivery)
	return nil
}

func replyDelivery(result mq.StepResultPayload, correlationID string) *mq.Delivery {
	body, _ := json.Marshal(&mq.Message{ID: "r1", Type: mq.MessageTypeStepResult, Payload: result})
	var msg mq.Message
	_ = json.Unmarshal(body, &msg)
	return &mq.Delivery{Message: msg, Raw: amqp.Delivery{CorrelationId: correlationID}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newOperator(pub *loopbackPublisher, timeout time.Duration) *QueueOperator {
	op := NewQueueOperator(Config{Publisher: pub, ReplyQueue: "steps.replies.test", Timeout: timeout, Logger: discardLogger()})
	pub.op = op
	return op
}

func stepInfo() domain.StepRunInfo {
	return domain.StepRunInfo{
		Config:    domain.StepConfig{Name: "train"},
		RunName:   "nightly",
		RunID:     uuid.New(),
		StepRunID: uuid.New(),
	}
}

func TestQueueOperator_Launch(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{"completed", mq.ResultCompleted, nil},
		{"failed", mq.ResultFailed, ErrRemoteStepFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &loopbackPublisher{status: tt.status}
			op := newOperator(pub, time.Second)
			info := stepInfo()
			entrypoint := []string{"conduit", "step-entrypoint", "--step-name", "train"}

			err := op.Launch(context.Background(), info, entrypoint)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			if pub.replyTo != "steps.replies.test" {
				t.Errorf("replyTo = %q", pub.replyTo)
			}
			if pub.payload.StepRunID != info.StepRunID || pub.payload.StepName != "train" {
				t.Errorf("payload = %+v", pub.payload)
			}
			if len(pub.payload.Entrypoint) != len(entrypoint) {
				t.Errorf("entrypoint = %v", pub.payload.Entrypoint)
			}
			if len(op.pending) != 0 {
				t.Errorf("pending = %d after launch", len(op.pending))
			}
		})
	}
}

func TestQueueOperator_PublishError(t *testing.T) {
	pub := &loopbackPublisher{err: errors.New("no channel available")}
	op := newOperator(pub, time.Second)

	if err := op.Launch(context.Background(), stepInfo(), nil); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestQueueOperator_Timeout(t *testing.T) {
	pub := &loopbackPublisher{silent: true}
	op := newOperator(pub, 20*time.Millisecond)

	err := op.Launch(context.Background(), stepInfo(), nil)
	if !errors.Is(err, ErrNoReply) {
		t.Errorf("err = %v, want ErrNoReply", err)
	}
}

func TestQueueOperator_ContextCancelled(t *testing.T) {
	pub := &loopbackPublisher{silent: true}
	op := newOperator(pub, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := op.Launch(ctx, stepInfo(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestQueueOperator_ReplyWithoutWaiter(t *testing.T) {
	op := NewQueueOperator(Config{Logger: discardLogger()})

	delivery := replyDelivery(mq.StepResultPayload{Status: mq.ResultCompleted}, "unknown")
	if err := op.HandleReply(context.Background(), delivery); err != nil {
		t.Errorf("HandleReply: %v", err)
	}
}

func TestNewQueueOperator_GeneratesReplyQueue(t *testing.T) {
	a := NewQueueOperator(Config{})
	b := NewQueueOperator(Config{})

	if a.ReplyQueue() == b.ReplyQueue() {
		t.Error("reply queues must be unique per operator")
	}
	if len(a.ReplyQueue()) <= len(mq.QueueRepliesPrefix) {
		t.Errorf("reply queue = %q", a.ReplyQueue())
	}
}
