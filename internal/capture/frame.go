package capture

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"netsight/internal/models"
)

const (
	ethernetHeaderLen = 14
	ipv4HeaderLen     = 20
	tcpHeaderLen      = 20
	udpHeaderLen      = 8
	arpLen            = 28
)

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Synthesize builds an Ethernet frame for a simulated packet. The frame is
// exactly p.Size bytes long whenever p.Size covers the protocol headers.
func Synthesize(p models.Packet) ([]byte, error) {
	src := net.ParseIP(p.SourceIP).To4()
	dst := net.ParseIP(p.DestinationIP).To4()
	if src == nil || dst == nil {
		return nil, fmt.Errorf("packet %s: addresses %q -> %q are not IPv4", p.ID, p.SourceIP, p.DestinationIP)
	}

	eth := &layers.Ethernet{
		SrcMAC:       hostMAC(src),
		DstMAC:       hostMAC(dst),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Flags:    layers.IPv4DontFragment,
		SrcIP:    src,
		DstIP:    dst,
		Protocol: layers.IPProtocolTCP,
	}

	var stack []gopacket.SerializableLayer
	headerLen := ethernetHeaderLen + ipv4HeaderLen

	switch p.Protocol {
	case "HTTP", "HTTPS", "TCP":
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(p.Port),
			DstPort: layers.TCPPort(p.Port),
			Seq:     1,
			Ack:     1,
			PSH:     true,
			ACK:     true,
			Window:  65535,
		}
		switch p.Protocol {
		case "HTTP":
			tcp.DstPort = 80
		case "HTTPS":
			tcp.DstPort = 443
		default:
			tcp.SrcPort = 49152
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, fmt.Errorf("packet %s: %w", p.ID, err)
		}
		stack = []gopacket.SerializableLayer{eth, ip, tcp}
		headerLen += tcpHeaderLen

	case "UDP", "DNS":
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{
			SrcPort: 49152,
			DstPort: layers.UDPPort(p.Port),
		}
		if p.Protocol == "DNS" {
			udp.SrcPort = layers.UDPPort(p.Port)
			udp.DstPort = 53
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, fmt.Errorf("packet %s: %w", p.ID, err)
		}
		stack = []gopacket.SerializableLayer{eth, ip, udp}
		headerLen += udpHeaderLen

	case "ARP":
		eth.EthernetType = layers.EthernetTypeARP
		eth.DstMAC = broadcastMAC
		arp := &layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   []byte(eth.SrcMAC),
			SourceProtAddress: []byte(src),
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    []byte(dst),
		}
		stack = []gopacket.SerializableLayer{eth, arp}
		headerLen = ethernetHeaderLen + arpLen

	default:
		return nil, fmt.Errorf("packet %s: unsupported protocol %q", p.ID, p.Protocol)
	}

	if pad := p.Size - headerLen; pad > 0 {
		stack = append(stack, gopacket.Payload(make([]byte, pad)))
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		return nil, fmt.Errorf("serialize packet %s: %w", p.ID, err)
	}
	return buf.Bytes(), nil
}

// hostMAC derives a locally administered MAC from an IPv4 address.
func hostMAC(ip net.IP) net.HardwareAddr {
	return net.HardwareAddr{0x02, 0x00, ip[0], ip[1], ip[2], ip[3]}
}
