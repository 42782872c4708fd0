package wsadapters

/*************************************************************************************************/
/* CLOSE STATUS CODES                                                                            */
/*************************************************************************************************/

// RFC6455 close status codes.
//
// RFC: https://www.rfc-editor.org/rfc/rfc6455.html#section-7.4.1
type StatusCode int

const (
	// 1000 - the purpose for which the connection was established has been fulfilled.
	NormalClosure StatusCode = 1000
	// 1001 - the endpoint is going away (server going down, page navigated away, client
	// tearing down its connection).
	GoingAway StatusCode = 1001
	// 1002 - protocol error.
	ProtocolError StatusCode = 1002
	// 1003 - received a type of data the endpoint cannot accept.
	UnsupportedData StatusCode = 1003
	// 1005 - reserved. No status code was present in the close frame.
	NoStatusReceived StatusCode = 1005
	// 1006 - reserved. The connection was closed abnormally, without a close frame.
	AbnormalClosure StatusCode = 1006
	// 1007 - message data not consistent with the message type (ex: non UTF-8 text).
	InvalidFramePayloadData StatusCode = 1007
	// 1008 - message violates the endpoint policy.
	PolicyViolation StatusCode = 1008
	// 1009 - message too big to process.
	MessageTooBig StatusCode = 1009
	// 1010 - the client expected the server to negotiate an extension.
	MandatoryExtension StatusCode = 1010
	// 1011 - the server encountered an unexpected condition.
	InternalError StatusCode = 1011
	// 1015 - reserved. TLS handshake failure.
	TLSHandshake StatusCode = 1015
)

// Return a short name for the status code (IANA registry names).
func (code StatusCode) String() string {
	switch code {
	case NormalClosure:
		return "normal_closure"
	case GoingAway:
		return "going_away"
	case ProtocolError:
		return "protocol_error"
	case UnsupportedData:
		return "unsupported_data"
	case NoStatusReceived:
		return "no_status_received"
	case AbnormalClosure:
		return "abnormal_closure"
	case InvalidFramePayloadData:
		return "invalid_frame_payload_data"
	case PolicyViolation:
		return "policy_violation"
	case MessageTooBig:
		return "message_too_big"
	case MandatoryExtension:
		return "mandatory_extension"
	case InternalError:
		return "internal_error"
	case TLSHandshake:
		return "tls_handshake"
	default:
		return "unknown"
	}
}

/*************************************************************************************************/
/* MESSAGE TYPES                                                                                 */
/*************************************************************************************************/

// Websocket data message types.
//
// Values mimic RFC6455 opcodes. Control frames are excluded: adapters handle them seamlessly.
//
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
type MessageType int

const (
	// Denotes a text message
	Text MessageType = iota + 1
	// Denotes a binary message
	Binary
)

func (msgType MessageType) String() string {
	switch msgType {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}
