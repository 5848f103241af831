package universe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	addr := Address(2, 17)
	assert.Equal(t, 2*Size+17, addr)

	u, ch := Split(addr)
	assert.Equal(t, 2, u)
	assert.Equal(t, 17, ch)
}

func TestWriteHTP(t *testing.T) {
	a := NewArray(1, nil)

	require.True(t, a.Write(0, 100, Intensity))
	require.True(t, a.Write(0, 50, Intensity))
	assert.Equal(t, uint8(100), a.Read(0), "lower intensity write must not win")

	a.Write(0, 200, Intensity)
	assert.Equal(t, uint8(200), a.Read(0))
}

func TestWriteLTP(t *testing.T) {
	a := NewArray(1, nil)
	a.SetGroup(5, Other)

	a.Write(5, 200, Other)
	a.Write(5, 10, Other)
	assert.Equal(t, uint8(10), a.Read(5), "latest write wins on LTP channels")
}

func TestWriteOutOfRange(t *testing.T) {
	a := NewArray(1, nil)
	assert.False(t, a.Write(-1, 1, Intensity))
	assert.False(t, a.Write(Size, 1, Intensity))
	assert.Equal(t, uint8(0), a.Read(Size))
}

func TestZeroIntensityChannelsKeepsLTP(t *testing.T) {
	a := NewArray(1, nil)
	a.SetGroup(1, Other)

	a.Write(0, 255, Intensity)
	a.Write(1, 128, Other)
	a.ZeroIntensityChannels()

	assert.Equal(t, uint8(0), a.Read(0))
	assert.Equal(t, uint8(128), a.Read(1))
}

func TestPostGMScalesIntensityOnly(t *testing.T) {
	gm := NewGrandMaster()
	a := NewArray(2, gm)
	a.SetGroup(Address(1, 1), Other)

	a.Write(Address(1, 0), 200, Intensity)
	a.Write(Address(1, 1), 200, Other)

	gm.SetValue(127)
	out := a.PostGM(1)
	require.Len(t, out, Size)
	assert.Equal(t, uint8(200*127/255), out[0])
	assert.Equal(t, uint8(200), out[1])

	// the stored value is untouched by the master
	assert.Equal(t, uint8(200), a.Read(Address(1, 0)))

	gm.SetValue(0)
	assert.Equal(t, uint8(0), a.PostGM(1)[0])
	assert.Nil(t, a.PostGM(2))
}

func TestCopyPostGM(t *testing.T) {
	a := NewArray(2, nil)
	a.Write(Address(0, 3), 9, Intensity)
	a.Write(Address(1, 4), 7, Intensity)

	dst := make([]byte, 2*Size)
	assert.Equal(t, 2*Size, a.CopyPostGM(dst))
	assert.Equal(t, uint8(9), dst[3])
	assert.Equal(t, uint8(7), dst[Size+4])
}

func TestGrandMasterDefault(t *testing.T) {
	assert.Equal(t, uint8(255), NewGrandMaster().Value())
}
