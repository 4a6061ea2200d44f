package notify

import (
	"context"
	"errors"
	"io"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChannel struct {
	closed    bool
	failNext  error
	published []amqp.Publishing
	keys      []string
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _ string, key string, _, _ bool, msg amqp.Publishing) error {
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return err
	}
	if c.closed {
		return amqp.ErrClosed
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) IsClosed() bool { return c.closed }

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeConn struct{ closed bool }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// fakeBroker hands out a fresh channel per dial
type fakeBroker struct {
	channels []*fakeChannel
	conns    []*fakeConn
	dialErr  error
}

func (b *fakeBroker) dialFunc() dialFunc {
	return func() (amqpChannel, io.Closer, error) {
		if b.dialErr != nil {
			return nil, nil, b.dialErr
		}
		ch, conn := &fakeChannel{}, &fakeConn{}
		b.channels = append(b.channels, ch)
		b.conns = append(b.conns, conn)
		return ch, conn, nil
	}
}

func (b *fakeBroker) last() *fakeChannel { return b.channels[len(b.channels)-1] }

func newTestPublisher(t *testing.T, b *fakeBroker) *AMQPPublisher {
	t.Helper()
	p, err := newAMQPPublisher("withdrawal_notifications", zap.NewNop(), b.dialFunc())
	require.NoError(t, err)
	return p
}

func TestAMQPPublisher_Publish(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(t, b)

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventWithdrawalRequested, ApplicationID: 4}))

	require.Len(t, b.channels, 1)
	ch := b.last()
	require.Len(t, ch.published, 1)
	assert.Equal(t, "withdrawal_notifications", ch.keys[0])
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, EventWithdrawalRequested, ch.published[0].Type)
}

func TestAMQPPublisher_RedialsClosedChannel(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(t, b)
	first := b.last()
	first.closed = true

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventWithdrawalApproved}))

	require.Len(t, b.channels, 2)
	assert.True(t, b.conns[0].closed)
	assert.Empty(t, first.published)
	assert.Len(t, b.last().published, 1)
}

func TestAMQPPublisher_RetriesOnceAfterErrClosed(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(t, b)
	b.last().failNext = amqp.ErrClosed

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventWithdrawalDeclined}))
	require.Len(t, b.channels, 2)
	assert.Len(t, b.last().published, 1)

	// other failures are returned as they are
	boom := errors.New("boom")
	b.last().failNext = boom
	assert.ErrorIs(t, p.Publish(context.Background(), Event{}), boom)
	assert.Len(t, b.channels, 2)
}

func TestAMQPPublisher_BrokerDown(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(t, b)
	b.last().closed = true
	b.dialErr = errors.New("connection refused")

	assert.ErrorContains(t, p.Publish(context.Background(), Event{}), "connection refused")

	// the broker is back: the next publish reconnects
	b.dialErr = nil
	require.NoError(t, p.Publish(context.Background(), Event{}))
	assert.Len(t, b.last().published, 1)
}

func TestAMQPPublisher_Close(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(t, b)

	require.NoError(t, p.Close())
	assert.True(t, b.last().closed)
	assert.True(t, b.conns[0].closed)
	require.NoError(t, p.Close())
}

func TestNewAMQPPublisher_DialError(t *testing.T) {
	_, err := newAMQPPublisher("q", zap.NewNop(), (&fakeBroker{dialErr: errors.New("no broker")}).dialFunc())
	assert.ErrorContains(t, err, "no broker")
}
