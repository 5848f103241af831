package output

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"go-lightdesk/debug"
	"go-lightdesk/metrics"
	"go-lightdesk/universe"
)

// DefaultPort is the Art-Net UDP port
const DefaultPort = 6454

const (
	artDMXHeader = 18
	opDMX        = 0x5000
	protVer      = 14
)

// Target sends one local universe to one node
type Target struct {
	Addr     *net.UDPAddr
	Universe int
}

// ResolveTarget parses "host" or "host:port" and binds it to a universe
func ResolveTarget(address string, u int) (Target, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, strconv.Itoa(DefaultPort))
	}
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return Target{}, fmt.Errorf("resolve art-net target %q: %w", address, err)
	}
	return Target{Addr: addr, Universe: u}, nil
}

// BuildArtDMX builds an ArtDMX packet carrying data for a port-address
func BuildArtDMX(seq uint8, portAddress uint16, data []byte) []byte {
	pkt := make([]byte, artDMXHeader+len(data))
	copy(pkt[0:], "Art-Net\x00")
	pkt[8], pkt[9] = byte(opDMX&0xFF), byte(opDMX>>8) // little endian
	pkt[10], pkt[11] = 0x00, protVer
	pkt[12], pkt[13] = seq, 0x00
	pkt[14], pkt[15] = byte(portAddress&0xFF), byte((portAddress>>8)&0x7F)
	pkt[16], pkt[17] = byte(len(data)>>8), byte(len(data))
	copy(pkt[artDMXHeader:], data)
	return pkt
}

// ArtNet is an output stage that transmits universes as ArtDMX packets.
//
// Dump runs on the tick goroutine and never blocks: the frame is handed
// to Run through a one-slot channel and dropped if the previous frame is
// still waiting to be sent.
type ArtNet struct {
	targets []Target
	frames  chan []byte
	metrics *metrics.Metrics
	log     zerolog.Logger
	warn    *rate.Limiter

	seq     uint8
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewArtNet creates an Art-Net output for targets
func NewArtNet(targets []Target, m *metrics.Metrics) *ArtNet {
	return &ArtNet{
		targets: targets,
		frames:  make(chan []byte, 1),
		metrics: m,
		log:     debug.Logger("artnet"),
		warn:    rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// Dump copies the post grand master universes and queues them for sending
func (a *ArtNet) Dump(ua *universe.Array) {
	frame := make([]byte, ua.Universes()*universe.Size)
	ua.CopyPostGM(frame)

	select {
	case a.frames <- frame:
	default:
		a.dropped.Add(1)
		a.metrics.DroppedFrame()
	}
}

// Sent returns the number of packets written
func (a *ArtNet) Sent() uint64 {
	return a.sent.Load()
}

// Dropped returns the number of frames dropped by Dump
func (a *ArtNet) Dropped() uint64 {
	return a.dropped.Load()
}

// Run sends queued frames until ctx is done
func (a *ArtNet) Run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return fmt.Errorf("open art-net socket: %w", err)
	}
	defer conn.Close()

	a.log.Info().Int("targets", len(a.targets)).Msg("art-net output started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-a.frames:
			a.send(conn, frame)
		}
	}
}

func (a *ArtNet) send(conn *net.UDPConn, frame []byte) {
	// Sequence 0 disables reordering on the receiver
	a.seq++
	if a.seq == 0 {
		a.seq = 1
	}

	for _, t := range a.targets {
		start := t.Universe * universe.Size
		if t.Universe < 0 || start+universe.Size > len(frame) {
			continue
		}
		pkt := BuildArtDMX(a.seq, uint16(t.Universe), frame[start:start+universe.Size])
		if _, err := conn.WriteToUDP(pkt, t.Addr); err != nil {
			if a.warn.Allow() {
				a.log.Warn().Err(err).Str("target", t.Addr.String()).Msg("art-net send failed")
			}
			continue
		}
		a.sent.Add(1)
	}
}
