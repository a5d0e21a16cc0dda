package wire

// Method represents the protocol request method.
type Method uint8

const (
	// MethodGet reads a sensor value or configuration.
	MethodGet Method = 1

	// MethodPost is accepted on the wire but not used by the sensor layer.
	MethodPost Method = 2

	// MethodPut writes a sensor configuration.
	MethodPut Method = 3

	// MethodDelete is accepted on the wire but not used by the sensor layer.
	MethodDelete Method = 4
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Code represents a protocol response code, encoded CoAP-style as
// class<<5 | detail (RFC 7252 section 3).
type Code uint8

const (
	// CodeChanged (2.04) acknowledges a successful configuration write.
	CodeChanged Code = 0x44

	// CodeContent (2.05) carries a sensor value or configuration payload.
	CodeContent Code = 0x45

	// CodeBadRequest (4.00) indicates a rejected configuration write.
	CodeBadRequest Code = 0x80

	// CodeNotFound (4.04) indicates no sensor is registered for the path.
	CodeNotFound Code = 0x84

	// CodeMethodNotAllowed (4.05) indicates an unsupported operation,
	// including observe requests against non-observable sensors.
	CodeMethodNotAllowed Code = 0x85

	// CodeInternalServerError (5.00) indicates a sensor callback or
	// encoding failure while composing the response.
	CodeInternalServerError Code = 0xA0
)

// String returns the code in dotted CoAP notation with its name.
func (c Code) String() string {
	switch c {
	case CodeChanged:
		return "2.04 Changed"
	case CodeContent:
		return "2.05 Content"
	case CodeBadRequest:
		return "4.00 Bad Request"
	case CodeNotFound:
		return "4.04 Not Found"
	case CodeMethodNotAllowed:
		return "4.05 Method Not Allowed"
	case CodeInternalServerError:
		return "5.00 Internal Server Error"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true for 2.xx codes.
func (c Code) IsSuccess() bool {
	return c>>5 == 2
}

// ObserveAction represents the observe option on a GET request.
type ObserveAction uint8

const (
	// ObserveNone means the request carries no observe option.
	ObserveNone ObserveAction = iota

	// ObserveRegister asks the server to add the client as an observer.
	ObserveRegister

	// ObserveDeregister asks the server to remove the client.
	ObserveDeregister
)

// ConfigQuery is the URI query marking a configuration request.
// GET ?cfg reads the configuration, PUT ?cfg writes it.
const ConfigQuery = "cfg"

// Request is the message context the protocol server hands to the
// dispatcher for every incoming request. The dispatcher reads it and must
// not modify it.
type Request struct {
	// MessageID correlates the response with the request.
	MessageID uint16

	// Token is the client-chosen request token, echoed in the response
	// and used as the observer key for subscriptions.
	Token []byte

	// Method is the request method.
	Method Method

	// Path holds the URI path segments. The leaf segment names the
	// target sensor's device type.
	Path []string

	// Query is the URI query string. ConfigQuery selects the
	// configuration resource; empty selects the value resource.
	Query string

	// Observe is the observe option, if present.
	Observe ObserveAction

	// Payload is the request body (configuration writes only).
	Payload []byte
}

// LeafPath returns the last URI path segment, or "" for an empty path.
func (r *Request) LeafPath() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[len(r.Path)-1]
}

// Response is the message context the dispatcher fills in. The payload
// slice aliases the server's message buffer and is only valid until the
// next dispatch; ownership returns to the protocol server when the
// dispatcher returns.
type Response struct {
	// MessageID matches the request.
	MessageID uint16

	// Token matches the request.
	Token []byte

	// Code is the response code.
	Code Code

	// MaxAge is the freshness lifetime in seconds; zero means unset.
	MaxAge uint32

	// Payload is the response body.
	Payload []byte
}
