// Package pcapexport writes a simulated wire log as a classic pcap capture
// so a run can be inspected in Wireshark or tcpdump.
package pcapexport

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"

	"github.com/irctrakz/tcpsim/pkg/core"
	"github.com/irctrakz/tcpsim/pkg/logging"
)

// Addresses the two endpoints are given in the capture.
var (
	ClientIP   = net.IPv4(10, 0, 0, 2).To4()
	ServerIP   = net.IPv4(10, 0, 0, 1).To4()
	ClientPort = layers.TCPPort(40000)
	ServerPort = layers.TCPPort(80)
)

const (
	snapLen = 65535
	window  = 65535
	ttl     = 64
)

// Options controls which events are exported.
type Options struct {
	// IncludeLost also writes events that never reached the peer.
	IncludeLost bool
}

// Write encodes events as IPv4/TCP packets in a raw-IP pcap stream. Payload
// bytes are zero-filled to the event's length. Packet timestamps are the Unix
// epoch plus the event's virtual time. It returns the number of packets
// written.
func Write(w io.Writer, events []core.WireEvent, opts Options) (int, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeRaw); err != nil {
		return 0, fmt.Errorf("failed to write pcap header: %w", err)
	}

	enc := newEncoder()
	written := 0
	for _, ev := range events {
		data, err := enc.encode(ev)
		if err != nil {
			return written, fmt.Errorf("failed to encode event %d: %w", ev.ID, err)
		}
		if ev.Lost && !opts.IncludeLost {
			continue
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(0, 0).Add(time.Duration(ev.T) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pw.WritePacket(ci, data); err != nil {
			return written, fmt.Errorf("failed to write packet %d: %w", ev.ID, err)
		}
		written++
	}
	return written, nil
}

// WriteFile writes the capture to path, creating parent directories.
func WriteFile(path string, events []core.WireEvent, opts Options) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create pcap file: %w", err)
	}
	n, err := Write(f, events, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	logging.InfoWithFields(logrus.Fields{"path": path, "packets": n}, "pcap written")
	return n, nil
}

// encoder fills in sequence and acknowledgment numbers that an event does
// not carry from what each side has sent so far.
type encoder struct {
	next map[core.Endpoint]uint32
	buf  gopacket.SerializeBuffer
}

func newEncoder() *encoder {
	return &encoder{
		next: make(map[core.Endpoint]uint32),
		buf:  gopacket.NewSerializeBuffer(),
	}
}

func (e *encoder) encode(ev core.WireEvent) ([]byte, error) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      ttl,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		Seq:    ev.SeqOr(e.next[ev.From]),
		Window: window,
	}
	if ev.From == core.Client {
		ip.SrcIP, ip.DstIP = ClientIP, ServerIP
		tcp.SrcPort, tcp.DstPort = ClientPort, ServerPort
	} else {
		ip.SrcIP, ip.DstIP = ServerIP, ClientIP
		tcp.SrcPort, tcp.DstPort = ServerPort, ClientPort
	}

	switch ev.Kind {
	case core.KindSYN:
		tcp.SYN = true
	case core.KindSYNACK:
		tcp.SYN, tcp.ACK = true, true
	case core.KindFIN, core.KindFINACK:
		tcp.FIN, tcp.ACK = true, true
	case core.KindData, core.KindRETX:
		tcp.PSH, tcp.ACK = true, true
	default:
		tcp.ACK = true
	}
	if tcp.ACK {
		tcp.Ack = ev.AckOr(e.next[ev.To])
	}

	var payload []byte
	if ev.Kind.CarriesPayload() {
		payload = make([]byte, ev.LenOr(0))
	}

	used := tcp.Seq + uint32(len(payload))
	if tcp.SYN || tcp.FIN {
		used++
	}
	if used-e.next[ev.From] < 1<<31 || e.next[ev.From] == 0 {
		e.next[ev.From] = used
	}

	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(e.buf, opts, ip, tcp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	out := make([]byte, len(e.buf.Bytes()))
	copy(out, e.buf.Bytes())
	return out, nil
}
