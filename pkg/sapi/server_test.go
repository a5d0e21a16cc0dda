package sapi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapi-protocol/sapi-go/pkg/registry"
	"github.com/sapi-protocol/sapi-go/pkg/wire"
)

// fakeSubs records observe bookkeeping calls.
type fakeSubs struct {
	added   []registry.SensorID
	removed []registry.SensorID
	err     error
}

func (f *fakeSubs) Add(id registry.SensorID, token []byte) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, id)
	return nil
}

func (f *fakeSubs) Remove(id registry.SensorID, token []byte) error {
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, id)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeSubs, *registry.Table) {
	t.Helper()
	table := registry.NewTable()

	_, err := table.Register(registry.Sensor{
		DeviceType: "temp",
		Read: func(buf []byte) (int, error) {
			return copy(buf, "23.5"), nil
		},
		ReadConfig: func(buf []byte) (int, error) {
			return copy(buf, "interval=30"), nil
		},
		WriteConfig: func(data []byte) error {
			if len(data) == 0 {
				return errors.New("empty config")
			}
			return nil
		},
		Frequency: 30,
		Observer:  true,
	})
	require.NoError(t, err)

	_, err = table.Register(registry.Sensor{
		DeviceType: "lux",
		Read: func(buf []byte) (int, error) {
			return copy(buf, "812"), nil
		},
	})
	require.NoError(t, err)

	subs := &fakeSubs{}
	return NewServer(table, subs), subs, table
}

func getRequest(deviceType string) *wire.Request {
	return &wire.Request{
		MessageID: 7,
		Token:     []byte{0xde, 0xad},
		Method:    wire.MethodGet,
		Path:      []string{"snsr", "arduino", deviceType},
	}
}

func TestDispatchGetValue(t *testing.T) {
	server, _, _ := newTestServer(t)

	rsp := server.HandleRequest(getRequest("temp"))
	require.Equal(t, wire.CodeContent, rsp.Code)
	assert.Equal(t, uint16(7), rsp.MessageID)
	assert.Equal(t, []byte{0xde, 0xad}, rsp.Token)
	assert.Equal(t, uint32(wire.DefaultMaxAge), rsp.MaxAge)

	e, err := wire.DecodeEnvelope(rsp.Payload)
	require.NoError(t, err)
	assert.Equal(t, "temp", e.DeviceType)
	assert.Equal(t, "23.5", e.Payload)
}

func TestDispatchGetValueNonObserver(t *testing.T) {
	server, _, _ := newTestServer(t)

	rsp := server.HandleRequest(getRequest("lux"))
	require.Equal(t, wire.CodeContent, rsp.Code)
	// Non-observed sensors carry no freshness lifetime.
	assert.Zero(t, rsp.MaxAge)
}

func TestDispatchGetConfig(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := getRequest("temp")
	req.Query = wire.ConfigQuery
	rsp := server.HandleRequest(req)
	require.Equal(t, wire.CodeContent, rsp.Code)

	e, err := wire.DecodeEnvelope(rsp.Payload)
	require.NoError(t, err)
	assert.Equal(t, "interval=30", e.Payload)
}

func TestDispatchNotFound(t *testing.T) {
	server, _, _ := newTestServer(t)

	rsp := server.HandleRequest(getRequest("pressure"))
	assert.Equal(t, wire.CodeNotFound, rsp.Code)
	assert.Empty(t, rsp.Payload)
}

func TestDispatchNotFoundBufferBound(t *testing.T) {
	server, _, _ := newTestServer(t)

	// A not-found response must never write into the message buffer.
	rsp := server.HandleRequest(getRequest("pressure"))
	require.Equal(t, wire.CodeNotFound, rsp.Code)
	assert.Nil(t, rsp.Payload)

	// And a following valid dispatch still composes cleanly.
	rsp = server.HandleRequest(getRequest("temp"))
	require.Equal(t, wire.CodeContent, rsp.Code)
	assert.LessOrEqual(t, len(rsp.Payload), wire.MaxEnvelopeLen)
}

func TestDispatchPutConfig(t *testing.T) {
	server, _, _ := newTestServer(t)

	t.Run("accepted", func(t *testing.T) {
		req := getRequest("temp")
		req.Method = wire.MethodPut
		req.Query = wire.ConfigQuery
		req.Payload = []byte("interval=60")

		rsp := server.HandleRequest(req)
		assert.Equal(t, wire.CodeChanged, rsp.Code)
		assert.Empty(t, rsp.Payload)
	})

	t.Run("rejected by sensor", func(t *testing.T) {
		req := getRequest("temp")
		req.Method = wire.MethodPut
		req.Query = wire.ConfigQuery
		req.Payload = nil // write callback rejects empty configs

		rsp := server.HandleRequest(req)
		assert.Equal(t, wire.CodeBadRequest, rsp.Code)
	})

	t.Run("no write callback", func(t *testing.T) {
		req := getRequest("lux")
		req.Method = wire.MethodPut
		req.Query = wire.ConfigQuery
		req.Payload = []byte("interval=60")

		rsp := server.HandleRequest(req)
		assert.Equal(t, wire.CodeMethodNotAllowed, rsp.Code)
	})

	t.Run("put without cfg query", func(t *testing.T) {
		req := getRequest("temp")
		req.Method = wire.MethodPut
		req.Payload = []byte("23.5")

		rsp := server.HandleRequest(req)
		assert.Equal(t, wire.CodeMethodNotAllowed, rsp.Code)
	})
}

func TestDispatchUnsupportedMethod(t *testing.T) {
	server, _, _ := newTestServer(t)

	for _, m := range []wire.Method{wire.MethodPost, wire.MethodDelete} {
		req := getRequest("temp")
		req.Method = m
		rsp := server.HandleRequest(req)
		assert.Equalf(t, wire.CodeMethodNotAllowed, rsp.Code, "method %s", m)
	}
}

func TestDispatchObserve(t *testing.T) {
	server, subs, table := newTestServer(t)
	tempID, err := table.Resolve("temp")
	require.NoError(t, err)

	t.Run("register", func(t *testing.T) {
		req := getRequest("temp")
		req.Observe = wire.ObserveRegister

		rsp := server.HandleRequest(req)
		require.Equal(t, wire.CodeContent, rsp.Code)
		require.Len(t, subs.added, 1)
		assert.Equal(t, tempID, subs.added[0])

		// Observe registration still returns the current value.
		e, err := wire.DecodeEnvelope(rsp.Payload)
		require.NoError(t, err)
		assert.Equal(t, "23.5", e.Payload)
	})

	t.Run("deregister", func(t *testing.T) {
		req := getRequest("temp")
		req.Observe = wire.ObserveDeregister

		rsp := server.HandleRequest(req)
		require.Equal(t, wire.CodeContent, rsp.Code)
		require.Len(t, subs.removed, 1)
		assert.Equal(t, tempID, subs.removed[0])
	})

	t.Run("not observable", func(t *testing.T) {
		req := getRequest("lux")
		req.Observe = wire.ObserveRegister

		rsp := server.HandleRequest(req)
		assert.Equal(t, wire.CodeMethodNotAllowed, rsp.Code)
		assert.Len(t, subs.added, 1) // unchanged
	})

	t.Run("bookkeeping failure", func(t *testing.T) {
		subs.err = errors.New("subscription table full")
		defer func() { subs.err = nil }()

		req := getRequest("temp")
		req.Observe = wire.ObserveRegister

		rsp := server.HandleRequest(req)
		assert.Equal(t, wire.CodeInternalServerError, rsp.Code)
	})
}

func TestDispatchReadFailure(t *testing.T) {
	table := registry.NewTable()
	_, err := table.Register(registry.Sensor{
		DeviceType: "broken",
		Read: func(buf []byte) (int, error) {
			return 0, errors.New("sensor hardware fault")
		},
	})
	require.NoError(t, err)
	server := NewServer(table, nil)

	rsp := server.HandleRequest(getRequest("broken"))
	assert.Equal(t, wire.CodeInternalServerError, rsp.Code)
	assert.Empty(t, rsp.Payload)
	assert.Equal(t, uint16(7), rsp.MessageID)
}

func TestDispatchNilSubscriptionStore(t *testing.T) {
	table := registry.NewTable()
	_, err := table.Register(registry.Sensor{
		DeviceType: "temp",
		Read: func(buf []byte) (int, error) {
			return copy(buf, "23.5"), nil
		},
		Observer: true,
	})
	require.NoError(t, err)
	server := NewServer(table, nil)

	req := getRequest("temp")
	req.Observe = wire.ObserveRegister
	rsp := server.HandleRequest(req)
	assert.Equal(t, wire.CodeContent, rsp.Code)
}

func TestHandleLegacy(t *testing.T) {
	server, _, _ := newTestServer(t)

	// The legacy entry point must behave identically to the dispatcher.
	want := server.HandleRequest(getRequest("temp"))
	got := server.HandleLegacy(getRequest("temp"))

	assert.Equal(t, want.Code, got.Code)
	assert.Equal(t, want.MaxAge, got.MaxAge)

	wantEnv, err := wire.DecodeEnvelope(want.Payload)
	require.NoError(t, err)
	gotEnv, err := wire.DecodeEnvelope(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, wantEnv, gotEnv)
}
