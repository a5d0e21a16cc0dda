package sapi

import "github.com/sapi-protocol/sapi-go/pkg/wire"

// HandleLegacy is the dispatcher entry point used by applications written
// against protocol server releases that predate the unified dispatcher.
// It is a thin adapter over HandleRequest with an identical external
// contract and exists only so old callers keep working. Do not remove;
// new code should call HandleRequest directly.
func (s *Server) HandleLegacy(req *wire.Request) *wire.Response {
	return s.HandleRequest(req)
}
