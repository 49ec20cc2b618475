// Package capture owns the packet source and the only code allowed to
// interpret wire formats. Everything downstream consumes the normalized
// PacketView.
package capture

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// Source yields raw frames. The two variants are a live interface
// (elevated privileges on most hosts) and offline pcap replay; the
// pipeline is agnostic to which.
type Source interface {
	Packets() <-chan gopacket.Packet
	Close()
}

// PcapSource wraps a libpcap handle, live or offline.
type PcapSource struct {
	handle *pcap.Handle
	source *gopacket.PacketSource
}

// OpenLive starts capturing on a network interface. An empty bpf applies
// no filter.
func OpenLive(device string, snaplen int32, promiscuous bool, bpf string) (*PcapSource, error) {
	if snaplen <= 0 {
		snaplen = 65535
	}
	handle, err := pcap.OpenLive(device, snaplen, promiscuous, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open live capture on %s: %w", device, err)
	}
	return newPcapSource(handle, bpf)
}

// OpenOffline replays a capture file.
func OpenOffline(path string, bpf string) (*PcapSource, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file %s: %w", path, err)
	}
	return newPcapSource(handle, bpf)
}

func newPcapSource(handle *pcap.Handle, bpf string) (*PcapSource, error) {
	if bpf != "" {
		if err := handle.SetBPFFilter(bpf); err != nil {
			handle.Close()
			return nil, fmt.Errorf("set bpf filter %q: %w", bpf, err)
		}
	}
	return &PcapSource{
		handle: handle,
		source: gopacket.NewPacketSource(handle, handle.LinkType()),
	}, nil
}

// Packets implements Source. The channel closes when the handle is
// exhausted (offline) or closed.
func (s *PcapSource) Packets() <-chan gopacket.Packet {
	return s.source.Packets()
}

// Close releases the capture handle.
func (s *PcapSource) Close() {
	s.handle.Close()
}
