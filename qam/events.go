package qam

// Kind identifies what a FrameSynchroniser.Process call reported.
type Kind int

const (
	KindNone Kind = iota
	KindPreambleFound
	KindBlockSizeOK
	KindBlockSizeErr
	KindPayloadOK
	KindPayloadErr
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindPreambleFound:
		return "PREAMBLE_FOUND"
	case KindBlockSizeOK:
		return "BLOCK_SIZE_OK"
	case KindBlockSizeErr:
		return "BLOCK_SIZE_ERR"
	case KindPayloadOK:
		return "PAYLOAD_OK"
	case KindPayloadErr:
		return "PAYLOAD_ERR"
	default:
		return "UNKNOWN"
	}
}

// Event is the value type a FrameSynchroniser returns from each
// Process call. Returning the decoded payload through this record
// (rather than a callback that hands a buffer back into the
// synchroniser) avoids the cyclic reference a callback-based design
// would need.
type Event struct {
	Kind Kind

	PayloadLength int
	PayloadBytes  []byte
	CRCReceived   byte
	CRCComputed   byte
	DecodedError  float64

	SelectedPhase  int
	PhaseConflict  bool
	DesyncBitcount int
}
