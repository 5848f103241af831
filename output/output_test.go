package output

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lightdesk/metrics"
	"go-lightdesk/universe"
)

func TestBuildArtDMX(t *testing.T) {
	data := make([]byte, universe.Size)
	data[0], data[511] = 1, 2

	pkt := BuildArtDMX(7, 0x0123, data)
	require.Len(t, pkt, 18+universe.Size)
	assert.Equal(t, "Art-Net\x00", string(pkt[:8]))
	assert.Equal(t, []byte{0x00, 0x50}, pkt[8:10], "OpDmx little endian")
	assert.Equal(t, []byte{0x00, 14}, pkt[10:12])
	assert.Equal(t, byte(7), pkt[12])
	assert.Equal(t, byte(0), pkt[13])
	assert.Equal(t, []byte{0x23, 0x01}, pkt[14:16], "SubUni then Net")
	assert.Equal(t, []byte{0x02, 0x00}, pkt[16:18], "length big endian")
	assert.Equal(t, byte(1), pkt[18])
	assert.Equal(t, byte(2), pkt[len(pkt)-1])
}

func TestResolveTargetDefaultsPort(t *testing.T) {
	tgt, err := ResolveTarget("127.0.0.1", 2)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, tgt.Addr.Port)
	assert.Equal(t, 2, tgt.Universe)

	tgt, err = ResolveTarget("127.0.0.1:7000", 0)
	require.NoError(t, err)
	assert.Equal(t, 7000, tgt.Addr.Port)

	_, err = ResolveTarget("127.0.0.1:notaport", 0)
	assert.Error(t, err)
}

func TestArtNetDumpDropsWhenBusy(t *testing.T) {
	a := NewArtNet(nil, metrics.New())
	ua := universe.NewArray(1, universe.NewGrandMaster())

	a.Dump(ua)
	a.Dump(ua)
	a.Dump(ua)
	assert.Equal(t, uint64(2), a.Dropped())
}

func TestArtNetSendsOverUDP(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	tgt, err := ResolveTarget(ln.LocalAddr().String(), 1)
	require.NoError(t, err)

	a := NewArtNet([]Target{tgt, {Addr: tgt.Addr, Universe: 5}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	gm := universe.NewGrandMaster()
	gm.SetValue(127)
	ua := universe.NewArray(2, gm)
	ua.SetGroup(universe.Address(1, 1), universe.Other)
	ua.Write(universe.Address(1, 0), 255, universe.Intensity)
	ua.Write(universe.Address(1, 1), 200, universe.Other)
	a.Dump(ua)

	buf := make([]byte, 1024)
	require.NoError(t, ln.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := ln.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, 18+universe.Size, n)

	assert.Equal(t, byte(1), buf[12], "first sequence number")
	assert.Equal(t, byte(1), buf[14], "universe 1")
	assert.Equal(t, byte(127), buf[18], "intensity scaled by grand master")
	assert.Equal(t, byte(200), buf[19], "LTP channel unscaled")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, uint64(1), a.Sent(), "out of range universe is skipped")
}

func TestMonitorSnapshot(t *testing.T) {
	m := NewMonitor()
	assert.Empty(t, m.Snapshot())

	gm := universe.NewGrandMaster()
	gm.SetValue(0)
	ua := universe.NewArray(1, gm)
	ua.SetGroup(3, universe.Other)
	ua.Write(0, 255, universe.Intensity)
	ua.Write(3, 40, universe.Other)
	m.Dump(ua)

	want := make([]byte, universe.Size)
	want[3] = 40
	if diff := cmp.Diff(want, m.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint8(40), m.Level(3))
	assert.Equal(t, uint8(0), m.Level(-1))
	assert.Equal(t, uint8(0), m.Master())
	assert.Equal(t, uint64(1), m.Frames())
}

type countingStage struct{ n int }

func (c *countingStage) Dump(*universe.Array) { c.n++ }

func TestTee(t *testing.T) {
	a, b := &countingStage{}, &countingStage{}
	tee := Tee{a, nil, b}
	tee.Dump(universe.NewArray(1, universe.NewGrandMaster()))
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
