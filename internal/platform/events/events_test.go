package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestBuildMessage(t *testing.T) {
	patientID := uuid.New()
	e := NewEvent(TypeDiagnosisConcluded, patientID, map[string]interface{}{"condition_code": "K01"})

	msg, err := buildMessage(e)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if string(msg.Key) != patientID.String() {
		t.Errorf("expected key %s, got %s", patientID, msg.Key)
	}
	if len(msg.Headers) != 2 || string(msg.Headers[0].Value) != TypeDiagnosisConcluded {
		t.Errorf("unexpected headers %+v", msg.Headers)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Data["condition_code"] != "K01" || decoded.Source != "growthwatch" {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "t", logger: zerolog.Nop()}

	if err := p.Publish(context.Background(), NewEvent(TypeFollowUpScheduled, uuid.New(), nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Error("expected writer closed")
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, topic: "t", logger: zerolog.Nop()}
	if err := p.Publish(context.Background(), NewEvent(TypeMeasurementScored, uuid.New(), nil)); err == nil {
		t.Fatal("expected error")
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("unavailable")
}

func TestPublishOrLog_SwallowsError(t *testing.T) {
	f := &failingPublisher{}
	PublishOrLog(context.Background(), f, zerolog.Nop(), NewEvent(TypeDiagnosisConcluded, uuid.New(), nil))
	if f.calls != 1 {
		t.Errorf("expected one publish attempt, got %d", f.calls)
	}
	PublishOrLog(context.Background(), nil, zerolog.Nop(), Event{})
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
