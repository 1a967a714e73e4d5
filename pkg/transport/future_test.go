package transport

import (
	goerrs "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sessamekesh/chessnet/pkg/message"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRequester struct {
	sent     []message.ClientMessage
	received []message.ServerMessage
}

func (f *fakeRequester) Send(msg message.ClientMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeRequester) ReceivedMessages() []message.ServerMessage {
	return f.received
}

func (f *fakeRequester) RemoveReceivedMessage(i int) message.ServerMessage {
	msg := f.received[i]
	f.received = append(f.received[:i], f.received[i+1:]...)
	return msg
}

func playerIdFuture(t *testing.T) *Future[uuid.UUID, message.ServerMessage, message.ClientMessage] {
	return playerIdFutureWithLogger(zaptest.NewLogger(t))
}

func playerIdFutureWithLogger(logger *zap.Logger) *Future[uuid.UUID, message.ServerMessage, message.ClientMessage] {
	return CreateFuture(
		message.ClientMessage{MessageType: message.ClientMessageType_PlayerIdRequest},
		func(msg message.ServerMessage) bool {
			return msg.MessageType == message.ServerMessageType_PlayerIdResponse
		},
		func(msg message.ServerMessage) (uuid.UUID, error) {
			if msg.Id == uuid.Nil {
				return uuid.Nil, goerrs.New("empty player id")
			}
			return msg.Id, nil
		},
		logger)
}

func TestFutureSendsAtMostOneRequest(t *testing.T) {
	client := &fakeRequester{}
	future := playerIdFuture(t)

	for i := 0; i < 10; i++ {
		future.Update(client)
	}

	if len(client.sent) != 1 {
		t.Fatalf("sent %d requests, want 1", len(client.sent))
	}
	if !future.IsRequested() {
		t.Errorf("request should be outstanding")
	}
	if _, ok := future.Value(); ok {
		t.Errorf("no value should be known yet")
	}
}

func TestFutureExtractsMatchingResponse(t *testing.T) {
	client := &fakeRequester{}
	future := playerIdFuture(t)
	future.Update(client)

	id := uuid.New()
	client.received = []message.ServerMessage{
		message.NewServerText("lobby chatter"),
		{MessageType: message.ServerMessageType_PlayerIdResponse, Id: id},
		message.NewServerText("more chatter"),
	}

	future.Update(client)

	got, ok := future.Value()
	if !ok || got != id {
		t.Fatalf("Value() = %v, %v; want %v", got, ok, id)
	}
	if !future.Changed() {
		t.Errorf("Changed() should be true on the update that stored the value")
	}
	if len(client.received) != 2 {
		t.Errorf("only the response should be removed, %d messages left", len(client.received))
	}
	for _, msg := range client.received {
		if msg.MessageType != message.ServerMessageType_Text {
			t.Errorf("unexpected leftover %v", msg.MessageType)
		}
	}

	future.Update(client)
	if future.Changed() {
		t.Errorf("Changed() should reset on the next update")
	}
	if len(client.sent) != 1 {
		t.Errorf("known value should not trigger more requests, sent %d", len(client.sent))
	}
}

func TestFutureRetriesAfterFailedExtraction(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	client := &fakeRequester{}
	future := playerIdFutureWithLogger(zap.New(core))
	future.Update(client)

	client.received = []message.ServerMessage{
		{MessageType: message.ServerMessageType_PlayerIdResponse},
	}
	future.Update(client)

	if _, ok := future.Value(); ok {
		t.Fatalf("failed extraction should not produce a value")
	}
	if len(client.received) != 0 {
		t.Errorf("bad response should still be consumed")
	}
	if len(client.sent) != 1 {
		t.Errorf("no resend in the same update as a failed extraction, sent %d", len(client.sent))
	}

	failures := logs.FilterMessage("Could not extract value from response").All()
	if len(failures) != 1 || failures[0].Level != zapcore.ErrorLevel {
		t.Errorf("failed extraction should be logged once at error level, got %+v", failures)
	}

	future.Update(client)
	if len(client.sent) != 2 {
		t.Errorf("expected a resend on the following update, sent %d", len(client.sent))
	}
}

func TestFutureRequestForcesSend(t *testing.T) {
	client := &fakeRequester{}
	future := playerIdFuture(t)
	future.Update(client)

	future.Request(client)
	future.Request(client)

	if len(client.sent) != 3 {
		t.Errorf("sent %d requests, want 3", len(client.sent))
	}
}
