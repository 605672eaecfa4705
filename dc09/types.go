package dc09

// Type is the DC-09 message type carried in the block header, selecting
// the payload grammar.
type Type string

// The three DC-09 message types this codec frames.
const (
	TypeSIADCS Type = "SIA-DCS" // SIA DC-03 alphanumeric payload
	TypeADMCID Type = "ADM-CID" // SIA DC-05 / Ademco Contact-ID payload
	TypeNULL   Type = "NULL"    // heartbeat / poll block, payload is "]"
)

// Status is the acknowledgement status token returned by the receiver.
type Status string

// Accepted acknowledgement tokens.
const (
	StatusACK Status = "ACK"
	StatusNAK Status = "NAK"
	StatusDUH Status = "DUH"
	StatusRSP Status = "RSP"
)

func validStatus(s Status) bool {
	switch s {
	case StatusACK, StatusNAK, StatusDUH, StatusRSP:
		return true
	default:
		return false
	}
}
