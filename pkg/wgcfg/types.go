// Package wgcfg models a WireGuard NT tunnel configuration and converts it to
// and from the flat binary buffer consumed by the driver's configuration calls.
package wgcfg

import (
	"net/netip"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// InterfaceFlag marks which interface-level fields of a Config are present.
type InterfaceFlag uint32

// Interface flags, matching the driver's interface record.
const (
	InterfaceHasPublicKey  InterfaceFlag = 1 << 0
	InterfaceHasPrivateKey InterfaceFlag = 1 << 1
	InterfaceHasListenPort InterfaceFlag = 1 << 2
	InterfaceReplacePeers  InterfaceFlag = 1 << 3
)

// PeerFlag marks which fields of a Peer are present or how the peer entry is
// to be applied by the driver.
type PeerFlag uint32

// Peer flags, matching the driver's peer record.
const (
	PeerHasPublicKey           PeerFlag = 1 << 0
	PeerHasPresharedKey        PeerFlag = 1 << 1
	PeerHasPersistentKeepalive PeerFlag = 1 << 2
	PeerHasEndpoint            PeerFlag = 1 << 3
	PeerReplaceAllowedIPs      PeerFlag = 1 << 5
	PeerRemove                 PeerFlag = 1 << 6
	PeerUpdateOnly             PeerFlag = 1 << 7
)

// Config is the structured form of one adapter's desired (or reported) state.
//
// Optional fields are pointers; a nil field is absent and its presence flag is
// not set in the encoded buffer. Peer order is preserved through encode and
// decode.
type Config struct {
	// PrivateKey is the interface private key. Nil leaves the driver's
	// current key untouched.
	PrivateKey *wgtypes.Key

	// PublicKey is the interface public key. It is reported by the driver on
	// reads; setting it on writes is allowed but normally unnecessary.
	PublicKey *wgtypes.Key

	// ListenPort is the UDP port the driver listens on. Nil keeps the
	// current port.
	ListenPort *uint16

	// ReplacePeers removes all existing peers before applying Peers.
	ReplacePeers bool

	// Peers are applied in order.
	Peers []Peer
}

// Peer describes one remote peer of the tunnel.
type Peer struct {
	// PublicKey identifies the peer. Required on writes unless Remove-by-key
	// semantics are not wanted.
	PublicKey wgtypes.Key

	// PresharedKey is the optional symmetric key mixed into the handshake.
	PresharedKey *wgtypes.Key

	// PersistentKeepalive is the keepalive interval in seconds. Nil disables
	// the presence flag; an explicit 0 clears a previously set interval.
	PersistentKeepalive *uint16

	// Endpoint is the peer's remote UDP address.
	Endpoint *netip.AddrPort

	// ReplaceAllowedIPs removes the peer's existing allowed IPs before
	// applying AllowedIPs.
	ReplaceAllowedIPs bool

	// Remove deletes the peer instead of configuring it.
	Remove bool

	// UpdateOnly only modifies the peer if it already exists.
	UpdateOnly bool

	// AllowedIPs are the prefixes the peer may route. Order is preserved but
	// carries no meaning beyond set membership.
	AllowedIPs []netip.Prefix

	// TxBytes, RxBytes and LastHandshake are reported by the driver on reads
	// and ignored on writes.
	TxBytes       uint64
	RxBytes       uint64
	LastHandshake time.Time
}
