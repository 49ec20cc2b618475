package capture

import (
	"net"
	"strings"
	"testing"

	"netsentry/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0xaa, 0xbb, 0xcc}
	dstMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0xdd, 0xee, 0xff}
)

func serialize(t *testing.T, layersToSend ...gopacket.SerializableLayer) gopacket.Packet {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, layersToSend...))
	return gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
}

func ipv4Layer(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.ParseIP("1.2.3.4"),
		DstIP:    net.ParseIP("192.0.2.10"),
	}
}

func TestDecodeTCP(t *testing.T) {
	ip := ipv4Layer(layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: 44321,
		DstPort: 80,
		SYN:     true,
		Window:  64240,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	pkt := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, tcp, gopacket.Payload([]byte("GET / HTTP/1.1")))

	view, ok := Decode(pkt)
	require.True(t, ok)
	assert.Equal(t, model.ProtoTCP, view.Proto)
	assert.Equal(t, "1.2.3.4", view.SrcIP)
	assert.Equal(t, "192.0.2.10", view.DstIP)
	assert.Equal(t, uint16(44321), view.SrcPort)
	assert.Equal(t, uint16(80), view.DstPort)
	assert.Equal(t, "S", view.TCPFlags)
	assert.Equal(t, []byte("GET / HTTP/1.1"), view.Payload)
	assert.Empty(t, view.DNSQName)
}

func TestDecodeTCPFlagOrder(t *testing.T) {
	ip := ipv4Layer(layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: 1025,
		DstPort: 22,
		FIN:     true,
		PSH:     true,
		URG:     true,
		Window:  1024,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	pkt := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, tcp)

	view, ok := Decode(pkt)
	require.True(t, ok)
	assert.Equal(t, "FPU", view.TCPFlags)
}

func TestDecodeTCPNoFlags(t *testing.T) {
	ip := ipv4Layer(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 1025, DstPort: 22, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	pkt := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, tcp)

	view, ok := Decode(pkt)
	require.True(t, ok)
	assert.Equal(t, model.ProtoTCP, view.Proto)
	assert.Empty(t, view.TCPFlags)
	assert.Empty(t, view.Payload)
}

func TestDecodeUDPPlain(t *testing.T) {
	ip := ipv4Layer(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 5001, DstPort: 9999}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	pkt := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload([]byte("not dns at all, just bytes")))

	view, ok := Decode(pkt)
	require.True(t, ok)
	assert.Equal(t, model.ProtoUDP, view.Proto)
	assert.Equal(t, uint16(5001), view.SrcPort)
	assert.Equal(t, uint16(9999), view.DstPort)
	assert.Empty(t, view.DNSQName)
}

func TestDecodeDNSQueryPromotion(t *testing.T) {
	qname := strings.Repeat("exfil", 20) + ".example.com."
	msg := new(dns.Msg)
	msg.SetQuestion(qname, dns.TypeA)
	wire, err := msg.Pack()
	require.NoError(t, err)

	ip := ipv4Layer(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 53124, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	pkt := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload(wire))

	view, ok := Decode(pkt)
	require.True(t, ok)
	assert.Equal(t, model.ProtoDNS, view.Proto)
	assert.Equal(t, qname, view.DNSQName)
}

func TestDecodeDNSResponseHasNoQName(t *testing.T) {
	query := new(dns.Msg)
	query.SetQuestion("example.com.", dns.TypeA)
	reply := new(dns.Msg)
	reply.SetReply(query)
	wire, err := reply.Pack()
	require.NoError(t, err)

	ip := ipv4Layer(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 53, DstPort: 53124}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	pkt := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload(wire))

	view, ok := Decode(pkt)
	require.True(t, ok)
	assert.Equal(t, model.ProtoDNS, view.Proto)
	assert.Empty(t, view.DNSQName, "responses carry no query name")
}

func TestDecodeICMP(t *testing.T) {
	ip := ipv4Layer(layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}

	pkt := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, icmp)

	view, ok := Decode(pkt)
	require.True(t, ok)
	assert.Equal(t, model.ProtoICMP, view.Proto)
	assert.Equal(t, uint16(0), view.SrcPort)
	assert.Equal(t, uint16(0), view.DstPort)
	assert.Empty(t, view.TCPFlags)
}

func TestDecodeDropsNonIP(t *testing.T) {
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: net.ParseIP("1.2.3.4").To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    net.ParseIP("192.0.2.10").To4(),
	}

	pkt := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeARP},
		arp)

	_, ok := Decode(pkt)
	assert.False(t, ok, "frames without an IP layer are dropped")
}
