package model

import (
	"strings"
	"time"
)

// Protocol identifies the transport-level protocol of a decoded packet.
// DNS is a promotion of UDP: a UDP packet whose payload parses as a DNS
// message is reported as DNS.
type Protocol string

const (
	ProtoTCP   Protocol = "TCP"
	ProtoUDP   Protocol = "UDP"
	ProtoICMP  Protocol = "ICMP"
	ProtoDNS   Protocol = "DNS"
	ProtoOther Protocol = "OTHER"
)

// PacketView is the normalized handoff between the decoder and the
// detectors. Downstream components never touch wire formats; they consume
// this view only.
type PacketView struct {
	// Timestamp is the capture timestamp, read once per packet and reused
	// by every detector and window comparison for that packet.
	Timestamp time.Time

	SrcIP string
	DstIP string

	Proto Protocol

	SrcPort uint16
	DstPort uint16

	// TCPFlags holds the set TCP flag letters in FSRPAUEC order
	// (FIN, SYN, RST, PSH, ACK, URG, ECE, CWR). Empty for non-TCP.
	TCPFlags string

	// Payload is the raw application-layer bytes of a TCP segment.
	// Undefined for other protocols.
	Payload []byte

	// DNSQName is the decoded question name of a DNS query (qr=0).
	// Empty otherwise.
	DNSQName string
}

// HasAllFlags reports whether every flag letter in pattern is set on the
// packet. An empty pattern is trivially satisfied.
func (p *PacketView) HasAllFlags(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		if !strings.ContainsRune(p.TCPFlags, rune(pattern[i])) {
			return false
		}
	}
	return true
}
