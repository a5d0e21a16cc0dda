package sapi

import (
	"errors"
	"time"

	"github.com/sapi-protocol/sapi-go/pkg/log"
	"github.com/sapi-protocol/sapi-go/pkg/registry"
	"github.com/sapi-protocol/sapi-go/pkg/wire"
)

// ErrNotObservable indicates an observe request against a sensor that was
// not registered as an observer.
var ErrNotObservable = errors.New("sensor is not observable")

// SubscriptionStore is the protocol server's observe bookkeeping. The
// dispatcher delegates registration and deregistration to it after
// confirming the sensor's observer flag permits the request.
type SubscriptionStore interface {
	// Add records token as an observer of the sensor.
	Add(id registry.SensorID, token []byte) error

	// Remove drops token as an observer of the sensor.
	Remove(id registry.SensorID, token []byte) error
}

// Server dispatches incoming protocol requests to registered sensors.
type Server struct {
	table    *registry.Table
	composer *Composer
	subs     SubscriptionStore
	logger   log.Logger

	// buf is the single outgoing message buffer. Ownership passes to the
	// returned Response until the next dispatch; requests are processed
	// to completion in arrival order, so there is never an in-flight
	// overlap.
	buf [wire.MaxEnvelopeLen]byte
}

// NewServer creates a dispatcher over the given sensor table. subs may be
// nil when the protocol server keeps no observe bookkeeping.
func NewServer(table *registry.Table, subs SubscriptionStore) *Server {
	return &Server{
		table:    table,
		composer: NewComposer(table),
		subs:     subs,
		logger:   log.NoopLogger{},
	}
}

// SetLogger sets the event logger. Pass nil to disable logging.
func (s *Server) SetLogger(logger log.Logger) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	s.logger = logger
}

// HandleRequest processes one incoming request and returns the response.
//
// The response payload aliases the server's message buffer; the protocol
// server must consume it before the next dispatch. Whatever happens inside
// the sensor callbacks, the returned response is well-formed: internal
// failures map to protocol error codes, never to a partially written body.
func (s *Server) HandleRequest(req *wire.Request) *wire.Response {
	rsp := &wire.Response{MessageID: req.MessageID, Token: req.Token}

	leaf := req.LeafPath()
	id, err := s.table.Resolve(leaf)
	if err != nil {
		rsp.Code = wire.CodeNotFound
		s.logDispatch(req, rsp, nil, err)
		return rsp
	}
	reg, err := s.table.Get(id)
	if err != nil {
		rsp.Code = wire.CodeNotFound
		s.logDispatch(req, rsp, nil, err)
		return rsp
	}

	switch req.Method {
	case wire.MethodGet:
		s.handleGet(req, rsp, reg)
	case wire.MethodPut:
		s.handlePut(req, rsp, reg)
	default:
		rsp.Code = wire.CodeMethodNotAllowed
	}

	s.logDispatch(req, rsp, &reg, nil)
	return rsp
}

// handleGet serves value reads, config reads, and observe registration.
func (s *Server) handleGet(req *wire.Request, rsp *wire.Response, reg registry.Registration) {
	if req.Observe != wire.ObserveNone {
		if !reg.Observer {
			rsp.Code = wire.CodeMethodNotAllowed
			s.logError(reg, "observe", ErrNotObservable)
			return
		}
		if err := s.updateSubscription(req, reg.ID); err != nil {
			rsp.Code = wire.CodeInternalServerError
			s.logError(reg, "observe", err)
			return
		}
	}

	op := OpValue
	if req.Query == wire.ConfigQuery {
		op = OpConfig
	}

	n, err := s.composer.Compose(reg.ID, op, s.buf[:])
	if err != nil {
		rsp.Code = wire.CodeInternalServerError
		rsp.Payload = nil
		s.logError(reg, op.String(), err)
		return
	}

	rsp.Code = wire.CodeContent
	rsp.Payload = s.buf[:n]
	if reg.Observer {
		rsp.MaxAge = wire.DefaultMaxAge
	}
}

// handlePut serves configuration writes. PUT without the cfg query is not
// a sensor-layer operation.
func (s *Server) handlePut(req *wire.Request, rsp *wire.Response, reg registry.Registration) {
	if req.Query != wire.ConfigQuery || reg.WriteConfig == nil {
		rsp.Code = wire.CodeMethodNotAllowed
		return
	}

	if err := reg.WriteConfig(req.Payload); err != nil {
		rsp.Code = wire.CodeBadRequest
		s.logError(reg, "put-config", err)
		return
	}
	rsp.Code = wire.CodeChanged
}

// updateSubscription delegates observe bookkeeping to the protocol server.
func (s *Server) updateSubscription(req *wire.Request, id registry.SensorID) error {
	if s.subs == nil {
		return nil
	}
	if req.Observe == wire.ObserveRegister {
		return s.subs.Add(id, req.Token)
	}
	return s.subs.Remove(id, req.Token)
}

func (s *Server) logDispatch(req *wire.Request, rsp *wire.Response, reg *registry.Registration, err error) {
	event := log.Event{
		Timestamp: time.Now(),
		Category:  log.CategoryDispatch,
		Operation: req.Method.String(),
		Status:    rsp.Code.String(),
	}
	if reg != nil {
		sid := uint8(reg.ID)
		event.SensorID = &sid
		event.DeviceType = reg.DeviceType
	} else {
		event.DeviceType = req.LeafPath()
	}
	if err != nil {
		event.Err = err.Error()
	}
	s.logger.Log(event)
}

func (s *Server) logError(reg registry.Registration, operation string, err error) {
	sid := uint8(reg.ID)
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		Category:   log.CategoryError,
		SensorID:   &sid,
		DeviceType: reg.DeviceType,
		Operation:  operation,
		Err:        err.Error(),
	})
}
