package link

import "meshnet/membuf"

// MTU is the maximum transfer unit end-to-end, fixed by the UHF medium.
const MTU = 255

// MaxMediaPerNode bounds how many media drivers one node may run.
const MaxMediaPerNode = 4

// Protocol is the small closed enumeration of protocol numbers; the numeric
// values are a wire contract and must not be renumbered.
type Protocol uint8

const (
	NoProtocol      Protocol = 0
	RoutingNeighbor Protocol = 1
	Discover        Protocol = 2
	Rpc             Protocol = 3
	Observer        Protocol = 4
	Tunnel          Protocol = 5
	LinkState       Protocol = 6
)

func (p Protocol) Valid() bool {
	return p <= LinkState
}

func (p Protocol) String() string {
	switch p {
	case NoProtocol:
		return "none"
	case RoutingNeighbor:
		return "routing-neighbor"
	case Discover:
		return "discover"
	case Rpc:
		return "rpc"
	case Observer:
		return "observer"
	case Tunnel:
		return "tunnel"
	case LinkState:
		return "link-state"
	default:
		return "unknown"
	}
}

// Frame is the link-level unit moved between the media layer and every
// layer above it.
type Frame struct {
	Protocol Protocol
	Peer     Address
	Length   uint8
	Reader   membuf.Reader
}
