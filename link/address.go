// Package link implements the media-abstraction layer: a uniform frame
// queue, link addresses, per-medium measurement, and the peer ingress
// limiter shared by every driver.
package link

import "fmt"

// Kind tags which medium a Address belongs to.
type Kind uint8

const (
	KindSerial Kind = iota
	KindUHF
	KindIPv4
)

// Address is a tagged union of Serial(u8), UHF(u16), and IPv4(u32)+Port(u16).
// Equality is componentwise.
type Address struct {
	kind Kind
	a    uint32 // serial id (u8) / uhf id (u16) / ipv4 address (u32)
	port uint16 // only meaningful for KindIPv4
}

func Serial(id uint8) Address { return Address{kind: KindSerial, a: uint32(id)} }
func UHF(id uint16) Address   { return Address{kind: KindUHF, a: uint32(id)} }
func IPv4(addr uint32, port uint16) Address {
	return Address{kind: KindIPv4, a: addr, port: port}
}

func (a Address) Kind() Kind { return a.kind }

// SerialID returns the serial address byte; only valid when Kind()==KindSerial.
func (a Address) SerialID() uint8 { return uint8(a.a) }

// UHFID returns the UHF modem id; only valid when Kind()==KindUHF.
func (a Address) UHFID() uint16 { return uint16(a.a) }

// IPv4Addr and Port return the IPv4 address/port; only valid when
// Kind()==KindIPv4.
func (a Address) IPv4Addr() uint32 { return a.a }
func (a Address) Port() uint16     { return a.port }

// Equal compares two addresses componentwise.
func (a Address) Equal(b Address) bool {
	return a.kind == b.kind && a.a == b.a && a.port == b.port
}

// SerializedLen returns the fixed wire length of this address's tagged form:
// 1+1 bytes for Serial, 1+2 for UHF, 1+6 for IPv4+Port.
func (a Address) SerializedLen() int {
	switch a.kind {
	case KindSerial:
		return 2
	case KindUHF:
		return 3
	case KindIPv4:
		return 7
	default:
		return 0
	}
}

// MarshalBinary writes the tagged wire form: tag byte then the address body,
// little-endian for multi-byte fields.
func (a Address) MarshalBinary() []byte {
	switch a.kind {
	case KindSerial:
		return []byte{byte(KindSerial), byte(a.a)}
	case KindUHF:
		v := uint16(a.a)
		return []byte{byte(KindUHF), byte(v), byte(v >> 8)}
	case KindIPv4:
		b := make([]byte, 7)
		b[0] = byte(KindIPv4)
		b[1] = byte(a.a)
		b[2] = byte(a.a >> 8)
		b[3] = byte(a.a >> 16)
		b[4] = byte(a.a >> 24)
		b[5] = byte(a.port)
		b[6] = byte(a.port >> 8)
		return b
	default:
		return nil
	}
}

// UnmarshalAddress decodes a tagged address from the front of b, returning
// the address and the number of bytes consumed, or ok=false if b is too
// short or the tag is unknown.
func UnmarshalAddress(b []byte) (addr Address, n int, ok bool) {
	if len(b) < 1 {
		return Address{}, 0, false
	}
	switch Kind(b[0]) {
	case KindSerial:
		if len(b) < 2 {
			return Address{}, 0, false
		}
		return Serial(b[1]), 2, true
	case KindUHF:
		if len(b) < 3 {
			return Address{}, 0, false
		}
		return UHF(uint16(b[1]) | uint16(b[2])<<8), 3, true
	case KindIPv4:
		if len(b) < 7 {
			return Address{}, 0, false
		}
		ip := uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16 | uint32(b[4])<<24
		port := uint16(b[5]) | uint16(b[6])<<8
		return IPv4(ip, port), 7, true
	default:
		return Address{}, 0, false
	}
}

func (a Address) String() string {
	switch a.kind {
	case KindSerial:
		return fmt.Sprintf("serial(%d)", a.SerialID())
	case KindUHF:
		return fmt.Sprintf("uhf(%#x)", a.UHFID())
	case KindIPv4:
		b := a.a
		return fmt.Sprintf("%d.%d.%d.%d:%d", byte(b), byte(b>>8), byte(b>>16), byte(b>>24), a.port)
	default:
		return "invalid-address"
	}
}
