package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-bridge/internal/logging"
	"github.com/telhawk-systems/telhawk-bridge/internal/messaging"
	"github.com/telhawk-systems/telhawk-bridge/internal/normalizer"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error) {
	args := m.Called(ctx, subject, data)
	ack, _ := args.Get(0).(*jetstream.PubAck)
	return ack, args.Error(1)
}

type fakeStream struct {
	info *jetstream.StreamInfo
	err  error
}

func (f fakeStream) Info(context.Context, ...jetstream.StreamInfoOpt) (*jetstream.StreamInfo, error) {
	return f.info, f.err
}

func TestJetStreamQueue_Write(t *testing.T) {
	pub := new(mockPublisher)
	var published []byte
	pub.On("PublishSync", mock.Anything, "bridge.dlq.missing_after", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(&jetstream.PubAck{Stream: "BRIDGE_DLQ", Sequence: 1}, nil).
		Once()

	info := &jetstream.StreamInfo{State: jetstream.StreamState{Msgs: 1}}
	q := newQueue(pub, fakeStream{info: info}, logging.Discard().Logger)
	out := normalizer.Outcome{
		Kind:   normalizer.PartialFailure,
		Reason: "missing after",
		Raw:    `{"op":"d","after":null}`,
		Err:    normalizer.ErrMissingAfterState,
	}

	err := q.Write(context.Background(), &messaging.Message{Subject: "cdc.transactions"}, out)
	require.NoError(t, err)
	pub.AssertExpectations(t)

	var failed FailedMessage
	require.NoError(t, json.Unmarshal(published, &failed))
	assert.Equal(t, "cdc.transactions", failed.Subject)
	assert.Equal(t, "partial_failure", failed.Outcome)
	assert.Equal(t, "missing after", failed.Reason)
	assert.Equal(t, `{"op":"d","after":null}`, failed.Payload)
	assert.Equal(t, normalizer.ErrMissingAfterState.Error(), failed.Error)

	assert.Equal(t, uint64(1), q.Stats(context.Background())["written_local"])
}

func TestJetStreamQueue_WritePublishError(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishSync", mock.Anything, "bridge.dlq.unparseable", mock.Anything).
		Return(nil, errors.New("no responders"))

	q := newQueue(pub, fakeStream{}, logging.Discard().Logger)
	err := q.Write(context.Background(), nil, normalizer.Outcome{Kind: normalizer.HardFailure, Reason: "unparseable", Raw: "x"})

	assert.ErrorContains(t, err, "no responders")
	stats := q.Stats(context.Background())
	assert.Equal(t, uint64(0), stats["written_local"])
	assert.Equal(t, uint64(1), stats["failed_local"])
}

func TestJetStreamQueue_NilIsDisabled(t *testing.T) {
	var q *JetStreamQueue
	assert.NoError(t, q.Write(context.Background(), nil, normalizer.Outcome{}))
	assert.Equal(t, false, q.Stats(context.Background())["enabled"])
}

func TestJetStreamQueue_Stats(t *testing.T) {
	info := &jetstream.StreamInfo{State: jetstream.StreamState{Msgs: 4, Bytes: 512, FirstSeq: 1, LastSeq: 4}}
	q := newQueue(new(mockPublisher), fakeStream{info: info}, logging.Discard().Logger)

	stats := q.Stats(context.Background())
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, uint64(4), stats["total_messages"])
	assert.Equal(t, uint64(512), stats["total_bytes"])

	q = newQueue(new(mockPublisher), fakeStream{err: errors.New("stream not found")}, logging.Discard().Logger)
	assert.Equal(t, "stream not found", q.Stats(context.Background())["error"])
}

func TestJetStreamQueue_StatsWithoutStreamInfo(t *testing.T) {
	q := newQueue(new(mockPublisher), fakeStream{}, logging.Discard().Logger)

	stats := q.Stats(context.Background())
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, "stream info unavailable", stats["error"])
	assert.NotContains(t, stats, "total_messages")
}
