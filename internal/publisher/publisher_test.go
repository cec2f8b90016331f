package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"retrolock/internal/config"
	"retrolock/internal/logger"
	"retrolock/internal/models"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return newFakeToken(b.err)
}

func newTestMQTT(b *fakeBroker) *MQTTPublisher {
	p := &MQTTPublisher{
		client:   b,
		topics:   Topics{Prefix: "retrolock/door/"},
		qos:      1,
		clientID: "retrolock-test",
		log:      logger.Nop(),
	}
	p.connected.Store(true)
	return p
}

func TestTopics(t *testing.T) {
	t.Parallel()

	tp := Topics{Prefix: "retrolock/door/"}
	assert.Equal(t, "retrolock/door/state", tp.State())
	assert.Equal(t, "retrolock/door/events", tp.Events())
	assert.Equal(t, "retrolock/door/availability", tp.Availability())
}

func TestConnect_Disabled(t *testing.T) {
	t.Parallel()

	_, err := ConnectMQTT(config.MQTTConfig{Enabled: false}, nil)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = ConnectInflux(config.InfluxDBConfig{Enabled: false}, nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestMQTTPublisher_Append(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	p := newTestMQTT(broker)

	at := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	err := p.Append(context.Background(), models.ActuatorEvent{
		EventID:    "ev-1",
		OccurredAt: at,
		Type:       "SET_ON",
		Result:     "ACTIVATED",
		Engaged:    true,
	})
	require.NoError(t, err)

	require.Len(t, broker.msgs, 2)

	evt := broker.msgs[0]
	assert.Equal(t, "retrolock/door/events", evt.topic)
	assert.False(t, evt.retained)
	assert.Equal(t, byte(1), evt.qos)
	var decoded models.ActuatorEvent
	require.NoError(t, json.Unmarshal(evt.payload, &decoded))
	assert.Equal(t, "ev-1", decoded.EventID)

	state := broker.msgs[1]
	assert.Equal(t, "retrolock/door/state", state.topic)
	assert.True(t, state.retained)
	assert.JSONEq(t, `{"state":"on","engaged":true,"last_transition":"SET_ON","updated_at":"2025-05-01T09:30:00Z"}`, string(state.payload))
}

func TestMQTTPublisher_AppendErrors(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{err: errors.New("refused")}
	p := newTestMQTT(broker)

	err := p.Append(context.Background(), models.ActuatorEvent{Type: "PULSE"})
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Len(t, broker.msgs, 1, "state is not published after a failed event")

	p.connected.Store(false)
	err = p.Append(context.Background(), models.ActuatorEvent{Type: "PULSE"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMQTTPublisher_CloseAnnouncesOffline(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	p := newTestMQTT(broker)
	var quiesce uint
	p.disconnect = func(q uint) { quiesce = q }

	require.NoError(t, p.Close())
	require.Len(t, broker.msgs, 1)
	assert.Equal(t, "retrolock/door/availability", broker.msgs[0].topic)
	assert.True(t, broker.msgs[0].retained)

	var av availabilityPayload
	require.NoError(t, json.Unmarshal(broker.msgs[0].payload, &av))
	assert.Equal(t, "offline", av.Status)
	assert.Equal(t, "graceful_shutdown", av.Reason)
	assert.Equal(t, "retrolock-test", av.ClientID)
	assert.Equal(t, uint(defaultDisconnectQuiesce), quiesce)
}

type fakeWriteAPI struct {
	mu      sync.Mutex
	points  []*write.Point
	flushed int
}

func (f *fakeWriteAPI) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriteAPI) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
}

func TestBuildPoint(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	p := buildPoint(models.ActuatorEvent{
		OccurredAt: at,
		Type:       "PULSE",
		Result:     "PULSED",
		Metadata:   map[string]any{"pulse_ms": int64(1000)},
	})

	assert.Equal(t, measurement, p.Name())
	assert.True(t, p.Time().Equal(at))

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"type": "PULSE", "result": "PULSED"}, tags)

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, false, fields["engaged"])
	assert.Equal(t, int64(1000), fields["pulse_ms"])
}

func TestInfluxWriter_AppendAndClose(t *testing.T) {
	t.Parallel()

	api := &fakeWriteAPI{}
	w := &InfluxWriter{writeAPI: api, log: logger.Nop()}
	w.connected.Store(true)

	require.NoError(t, w.Append(context.Background(), models.ActuatorEvent{Type: "SET_OFF", Result: "DEACTIVATED"}))
	require.Len(t, api.points, 1)

	require.NoError(t, w.Close())
	assert.Equal(t, 1, api.flushed)
	require.NoError(t, w.Close(), "second close is a no-op")
	assert.Equal(t, 1, api.flushed)

	assert.ErrorIs(t, w.Append(context.Background(), models.ActuatorEvent{}), ErrNotConnected)
	assert.ErrorIs(t, w.HealthCheck(context.Background()), ErrNotConnected)
}
