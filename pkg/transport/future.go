package transport

import (
	"go.uber.org/zap"
)

// Requester is the part of a Client that a Future needs.
type Requester[R, W any] interface {
	Send(msg W) error
	ReceivedMessages() []R
	RemoveReceivedMessage(i int) R
}

// Future tracks one request/response exchange, such as asking the server for
// the player's id. It scans the client's received buffer on every Update and
// claims the first message the validator accepts.
type Future[T, R, W any] struct {
	request   W
	validator func(R) bool
	extractor func(R) (T, error)

	value     T
	hasValue  bool
	requested bool
	changed   bool

	log *zap.Logger
}

func CreateFuture[T, R, W any](request W, validator func(R) bool, extractor func(R) (T, error), logger *zap.Logger) *Future[T, R, W] {
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}

	return &Future[T, R, W]{
		request:   request,
		validator: validator,
		extractor: extractor,
		log:       logger.With(zap.String("handler", "Future")),
	}
}

// Update must be called after the client's own Update on every tick. If no
// value is known and no request is outstanding, it sends the request.
func (f *Future[T, R, W]) Update(client Requester[R, W]) {
	f.changed = false
	answered := false

	for i, msg := range client.ReceivedMessages() {
		if !f.validator(msg) {
			continue
		}

		msg = client.RemoveReceivedMessage(i)
		f.requested = false
		answered = true

		value, err := f.extractor(msg)
		if err != nil {
			f.log.Error("Could not extract value from response", zap.Error(err))
			break
		}

		f.value = value
		f.hasValue = true
		f.changed = true
		break
	}

	if !f.hasValue && !f.requested && !answered {
		f.send(client)
	}
}

// Request sends the request again even if one is outstanding or a value is
// already known, for data that changes over time.
func (f *Future[T, R, W]) Request(client Requester[R, W]) {
	f.send(client)
}

func (f *Future[T, R, W]) send(client Requester[R, W]) {
	if err := client.Send(f.request); err != nil {
		f.log.Warn("Could not send request", zap.Error(err))
		return
	}
	f.requested = true
}

func (f *Future[T, R, W]) Value() (T, bool) {
	return f.value, f.hasValue
}

// Changed is true only for the Update that stored a new value.
func (f *Future[T, R, W]) Changed() bool {
	return f.changed
}

func (f *Future[T, R, W]) IsRequested() bool {
	return f.requested
}
