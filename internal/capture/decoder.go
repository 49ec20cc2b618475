package capture

import (
	"time"

	"netsentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/miekg/dns"
)

// Decode extracts the normalized view from a raw frame. It returns false
// for frames the detectors never see: no IP layer, or a transport other
// than TCP, UDP, or ICMP.
func Decode(raw gopacket.Packet) (*model.PacketView, bool) {
	var srcIP, dstIP string
	switch ip := raw.NetworkLayer().(type) {
	case *layers.IPv4:
		srcIP, dstIP = ip.SrcIP.String(), ip.DstIP.String()
	case *layers.IPv6:
		srcIP, dstIP = ip.SrcIP.String(), ip.DstIP.String()
	default:
		return nil, false
	}

	ts := raw.Metadata().Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	view := &model.PacketView{
		Timestamp: ts,
		SrcIP:     srcIP,
		DstIP:     dstIP,
	}

	switch {
	case raw.Layer(layers.LayerTypeTCP) != nil:
		tcp := raw.Layer(layers.LayerTypeTCP).(*layers.TCP)
		view.Proto = model.ProtoTCP
		view.SrcPort = uint16(tcp.SrcPort)
		view.DstPort = uint16(tcp.DstPort)
		view.TCPFlags = tcpFlagString(tcp)
		view.Payload = tcp.Payload

	case raw.Layer(layers.LayerTypeUDP) != nil:
		udp := raw.Layer(layers.LayerTypeUDP).(*layers.UDP)
		view.Proto = model.ProtoUDP
		view.SrcPort = uint16(udp.SrcPort)
		view.DstPort = uint16(udp.DstPort)
		if qname, isQuery, ok := parseDNS(udp.Payload); ok {
			view.Proto = model.ProtoDNS
			if isQuery {
				view.DNSQName = qname
			}
		}

	case raw.Layer(layers.LayerTypeICMPv4) != nil, raw.Layer(layers.LayerTypeICMPv6) != nil:
		view.Proto = model.ProtoICMP

	default:
		return nil, false
	}

	return view, true
}

// parseDNS attempts to interpret a UDP payload as a DNS message. For
// queries carrying a question, the question name is returned as it
// appears on the wire (fully qualified, trailing dot).
func parseDNS(payload []byte) (qname string, isQuery bool, ok bool) {
	if len(payload) == 0 {
		return "", false, false
	}
	msg := new(dns.Msg)
	if err := msg.Unpack(payload); err != nil {
		return "", false, false
	}
	isQuery = !msg.Response
	if isQuery && len(msg.Question) > 0 {
		qname = msg.Question[0].Name
	}
	return qname, isQuery, true
}

// tcpFlagString renders the set flags in FSRPAUEC order, matching the
// letters signature rules are written against.
func tcpFlagString(tcp *layers.TCP) string {
	flags := make([]byte, 0, 8)
	if tcp.FIN {
		flags = append(flags, 'F')
	}
	if tcp.SYN {
		flags = append(flags, 'S')
	}
	if tcp.RST {
		flags = append(flags, 'R')
	}
	if tcp.PSH {
		flags = append(flags, 'P')
	}
	if tcp.ACK {
		flags = append(flags, 'A')
	}
	if tcp.URG {
		flags = append(flags, 'U')
	}
	if tcp.ECE {
		flags = append(flags, 'E')
	}
	if tcp.CWR {
		flags = append(flags, 'C')
	}
	return string(flags)
}
