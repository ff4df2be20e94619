package wgcfg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// ErrTruncatedBuffer is returned by Decode when the buffer's declared peer or
// allowed-IP counts do not fit inside the buffer's actual length.
var ErrTruncatedBuffer = errors.New("wgcfg: truncated or corrupt configuration buffer")

// Record sizes of the driver's configuration buffer. Every record is padded to
// an 8-byte boundary; the layout is a binary ABI shared with the kernel driver
// and must not change.
const (
	interfaceSize = 80
	peerSize      = 136
	allowedIPSize = 24
)

// Field offsets within the interface record.
const (
	ifaceOffFlags      = 0
	ifaceOffListenPort = 4
	ifaceOffPrivateKey = 6
	ifaceOffPublicKey  = 38
	ifaceOffPeerCount  = 72
)

// Field offsets within a peer record.
const (
	peerOffFlags          = 0
	peerOffReserved       = 4
	peerOffPublicKey      = 8
	peerOffPresharedKey   = 40
	peerOffKeepalive      = 72
	peerOffEndpoint       = 76
	peerOffTxBytes        = 104
	peerOffRxBytes        = 112
	peerOffLastHandshake  = 120
	peerOffAllowedIPCount = 128
)

// Field offsets within an allowed-IP record.
const (
	aipOffAddress = 0
	aipOffFamily  = 16
	aipOffCidr    = 18
)

// Windows address family values used in the endpoint sockaddr and allowed-IP
// records.
const (
	afInet  = 2
	afInet6 = 23
)

// Delta between the Windows FILETIME epoch (1601-01-01) and the Unix epoch,
// in 100-nanosecond intervals.
const filetimeUnixDelta = 116444736000000000

// Encode serializes cfg into the driver's flat configuration layout: one
// interface record, then each peer record followed by its allowed-IP records,
// in input order. Invalid prefixes and endpoints are rejected here so that
// client mistakes never reach the driver.
func (cfg *Config) Encode() ([]byte, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	size := interfaceSize
	for i := range cfg.Peers {
		size += peerSize + len(cfg.Peers[i].AllowedIPs)*allowedIPSize
	}
	buf := make([]byte, size)

	var flags InterfaceFlag
	if cfg.PrivateKey != nil {
		flags |= InterfaceHasPrivateKey
		copy(buf[ifaceOffPrivateKey:], cfg.PrivateKey[:])
	}
	if cfg.PublicKey != nil {
		flags |= InterfaceHasPublicKey
		copy(buf[ifaceOffPublicKey:], cfg.PublicKey[:])
	}
	if cfg.ListenPort != nil {
		flags |= InterfaceHasListenPort
		binary.LittleEndian.PutUint16(buf[ifaceOffListenPort:], *cfg.ListenPort)
	}
	if cfg.ReplacePeers {
		flags |= InterfaceReplacePeers
	}
	binary.LittleEndian.PutUint32(buf[ifaceOffFlags:], uint32(flags))
	binary.LittleEndian.PutUint32(buf[ifaceOffPeerCount:], uint32(len(cfg.Peers)))

	off := interfaceSize
	for i := range cfg.Peers {
		off = encodePeer(buf, off, &cfg.Peers[i])
	}
	return buf, nil
}

func encodePeer(buf []byte, off int, p *Peer) int {
	rec := buf[off : off+peerSize]

	flags := PeerHasPublicKey
	copy(rec[peerOffPublicKey:], p.PublicKey[:])
	if p.PresharedKey != nil {
		flags |= PeerHasPresharedKey
		copy(rec[peerOffPresharedKey:], p.PresharedKey[:])
	}
	if p.PersistentKeepalive != nil {
		flags |= PeerHasPersistentKeepalive
		binary.LittleEndian.PutUint16(rec[peerOffKeepalive:], *p.PersistentKeepalive)
	}
	if p.Endpoint != nil {
		flags |= PeerHasEndpoint
		encodeSockaddr(rec[peerOffEndpoint:], *p.Endpoint)
	}
	if p.ReplaceAllowedIPs {
		flags |= PeerReplaceAllowedIPs
	}
	if p.Remove {
		flags |= PeerRemove
	}
	if p.UpdateOnly {
		flags |= PeerUpdateOnly
	}
	binary.LittleEndian.PutUint32(rec[peerOffFlags:], uint32(flags))
	binary.LittleEndian.PutUint32(rec[peerOffAllowedIPCount:], uint32(len(p.AllowedIPs)))

	off += peerSize
	for _, pfx := range p.AllowedIPs {
		encodeAllowedIP(buf[off:off+allowedIPSize], pfx)
		off += allowedIPSize
	}
	return off
}

func encodeAllowedIP(rec []byte, pfx netip.Prefix) {
	addr := pfx.Addr().Unmap()
	if addr.Is4() {
		a4 := addr.As4()
		copy(rec[aipOffAddress:], a4[:])
		binary.LittleEndian.PutUint16(rec[aipOffFamily:], afInet)
	} else {
		a16 := addr.As16()
		copy(rec[aipOffAddress:], a16[:])
		binary.LittleEndian.PutUint16(rec[aipOffFamily:], afInet6)
	}
	rec[aipOffCidr] = uint8(pfx.Bits())
}

// encodeSockaddr writes ap as a SOCKADDR_INET. The family is little-endian
// but the port is network byte order, as the socket ABI demands.
func encodeSockaddr(rec []byte, ap netip.AddrPort) {
	addr := ap.Addr().Unmap()
	if addr.Is4() {
		binary.LittleEndian.PutUint16(rec[0:], afInet)
		binary.BigEndian.PutUint16(rec[2:], ap.Port())
		a4 := addr.As4()
		copy(rec[4:], a4[:])
		return
	}
	binary.LittleEndian.PutUint16(rec[0:], afInet6)
	binary.BigEndian.PutUint16(rec[2:], ap.Port())
	a16 := addr.As16()
	copy(rec[8:], a16[:])
	if zone := addr.Zone(); zone != "" {
		if scope, err := strconv.ParseUint(zone, 10, 32); err == nil {
			binary.LittleEndian.PutUint32(rec[24:], uint32(scope))
		}
	}
}

func (cfg *Config) validate() error {
	if uint64(len(cfg.Peers)) > math.MaxUint32 {
		return fmt.Errorf("wgcfg: too many peers (%d)", len(cfg.Peers))
	}
	for i := range cfg.Peers {
		p := &cfg.Peers[i]
		if uint64(len(p.AllowedIPs)) > math.MaxUint32 {
			return fmt.Errorf("wgcfg: peer %d: too many allowed IPs (%d)", i, len(p.AllowedIPs))
		}
		if p.Endpoint != nil && !p.Endpoint.Addr().IsValid() {
			return fmt.Errorf("wgcfg: peer %d: invalid endpoint address", i)
		}
		for _, pfx := range p.AllowedIPs {
			if !pfx.IsValid() {
				return fmt.Errorf("wgcfg: peer %d: invalid allowed IP %q", i, pfx.String())
			}
		}
	}
	return nil
}

// Decode reconstructs a Config from a buffer produced by the driver's
// get-configuration call. Optional fields are populated only when their
// presence flag is set. Any mismatch between declared counts and the buffer's
// length fails with ErrTruncatedBuffer before any out-of-bounds read.
func Decode(buf []byte) (*Config, error) {
	if len(buf) < interfaceSize {
		return nil, ErrTruncatedBuffer
	}

	cfg := &Config{}
	flags := InterfaceFlag(binary.LittleEndian.Uint32(buf[ifaceOffFlags:]))
	if flags&InterfaceHasPrivateKey != 0 {
		var k wgtypes.Key
		copy(k[:], buf[ifaceOffPrivateKey:ifaceOffPrivateKey+wgtypes.KeyLen])
		cfg.PrivateKey = &k
	}
	if flags&InterfaceHasPublicKey != 0 {
		var k wgtypes.Key
		copy(k[:], buf[ifaceOffPublicKey:ifaceOffPublicKey+wgtypes.KeyLen])
		cfg.PublicKey = &k
	}
	if flags&InterfaceHasListenPort != 0 {
		port := binary.LittleEndian.Uint16(buf[ifaceOffListenPort:])
		cfg.ListenPort = &port
	}
	cfg.ReplacePeers = flags&InterfaceReplacePeers != 0

	peerCount := binary.LittleEndian.Uint32(buf[ifaceOffPeerCount:])
	off := interfaceSize
	for pi := uint32(0); pi < peerCount; pi++ {
		if len(buf)-off < peerSize {
			return nil, ErrTruncatedBuffer
		}
		peer, next, err := decodePeer(buf, off)
		if err != nil {
			return nil, err
		}
		cfg.Peers = append(cfg.Peers, peer)
		off = next
	}
	if off != len(buf) {
		return nil, ErrTruncatedBuffer
	}
	return cfg, nil
}

func decodePeer(buf []byte, off int) (Peer, int, error) {
	rec := buf[off : off+peerSize]

	var p Peer
	flags := PeerFlag(binary.LittleEndian.Uint32(rec[peerOffFlags:]))
	copy(p.PublicKey[:], rec[peerOffPublicKey:peerOffPublicKey+wgtypes.KeyLen])
	if flags&PeerHasPresharedKey != 0 {
		var k wgtypes.Key
		copy(k[:], rec[peerOffPresharedKey:peerOffPresharedKey+wgtypes.KeyLen])
		p.PresharedKey = &k
	}
	if flags&PeerHasPersistentKeepalive != 0 {
		ka := binary.LittleEndian.Uint16(rec[peerOffKeepalive:])
		p.PersistentKeepalive = &ka
	}
	if flags&PeerHasEndpoint != 0 {
		ap, err := decodeSockaddr(rec[peerOffEndpoint : peerOffEndpoint+28])
		if err != nil {
			return Peer{}, 0, err
		}
		p.Endpoint = &ap
	}
	p.ReplaceAllowedIPs = flags&PeerReplaceAllowedIPs != 0
	p.Remove = flags&PeerRemove != 0
	p.UpdateOnly = flags&PeerUpdateOnly != 0

	p.TxBytes = binary.LittleEndian.Uint64(rec[peerOffTxBytes:])
	p.RxBytes = binary.LittleEndian.Uint64(rec[peerOffRxBytes:])
	if ft := binary.LittleEndian.Uint64(rec[peerOffLastHandshake:]); ft != 0 {
		p.LastHandshake = time.Unix(0, (int64(ft)-filetimeUnixDelta)*100)
	}

	aipCount := binary.LittleEndian.Uint32(rec[peerOffAllowedIPCount:])
	off += peerSize
	for ai := uint32(0); ai < aipCount; ai++ {
		if len(buf)-off < allowedIPSize {
			return Peer{}, 0, ErrTruncatedBuffer
		}
		pfx, err := decodeAllowedIP(buf[off : off+allowedIPSize])
		if err != nil {
			return Peer{}, 0, err
		}
		p.AllowedIPs = append(p.AllowedIPs, pfx)
		off += allowedIPSize
	}
	return p, off, nil
}

func decodeAllowedIP(rec []byte) (netip.Prefix, error) {
	family := binary.LittleEndian.Uint16(rec[aipOffFamily:])
	cidr := int(rec[aipOffCidr])
	var addr netip.Addr
	switch family {
	case afInet:
		addr = netip.AddrFrom4([4]byte(rec[aipOffAddress : aipOffAddress+4]))
	case afInet6:
		addr = netip.AddrFrom16([16]byte(rec[aipOffAddress : aipOffAddress+16]))
	default:
		return netip.Prefix{}, fmt.Errorf("wgcfg: allowed IP has unknown address family %d: %w", family, ErrTruncatedBuffer)
	}
	pfx := netip.PrefixFrom(addr, cidr)
	if !pfx.IsValid() {
		return netip.Prefix{}, fmt.Errorf("wgcfg: allowed IP has prefix length %d out of range: %w", cidr, ErrTruncatedBuffer)
	}
	return pfx, nil
}

func decodeSockaddr(rec []byte) (netip.AddrPort, error) {
	family := binary.LittleEndian.Uint16(rec[0:])
	port := binary.BigEndian.Uint16(rec[2:])
	switch family {
	case afInet:
		addr := netip.AddrFrom4([4]byte(rec[4:8]))
		return netip.AddrPortFrom(addr, port), nil
	case afInet6:
		addr := netip.AddrFrom16([16]byte(rec[8:24]))
		if scope := binary.LittleEndian.Uint32(rec[24:]); scope != 0 {
			addr = addr.WithZone(strconv.FormatUint(uint64(scope), 10))
		}
		return netip.AddrPortFrom(addr, port), nil
	default:
		return netip.AddrPort{}, fmt.Errorf("wgcfg: endpoint has unknown address family %d: %w", family, ErrTruncatedBuffer)
	}
}
