package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/encodeous/ddsroute/state"
	"github.com/gopacket/gopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSource = state.SourceAddr{Network: 0x10, Host: state.HostId{0x08, 0x00, 0x1e, 0x01, 0x02, 0x03}}

func TestAdvertisementWireFormat(t *testing.T) {
	data, err := Encode(testSource, state.NonStandard, CommandResponse, []Record{
		{Network: 0x01020304, Metric: 3},
		{Network: 0x0a0b0c0d, Metric: 16},
	})
	require.NoError(t, err)
	require.Len(t, data, FrameLen+2+2*RecordLen)

	body := data[FrameLen:]
	assert.Equal(t, uint16(CommandResponse), binary.BigEndian.Uint16(body[0:2]))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x00, 0x03}, body[2:8])
	assert.Equal(t, []byte{0x0a, 0x0b, 0x0c, 0x0d, 0x00, 0x10}, body[8:14])
	assert.Equal(t, []byte{0xdd, 0x05, FrameVersion, uint8(state.NonStandard)}, data[0:4])
}

func TestDecoder(t *testing.T) {
	records := []Record{
		{Network: 0x20, Metric: 1},
		{Network: 0x30, Metric: 17},
	}
	data, err := Encode(testSource, state.Standard, CommandResponse, records)
	require.NoError(t, err)

	d := NewDecoder()
	msg, err := d.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, testSource, msg.Frame.Source)
	assert.Equal(t, state.Standard, msg.Frame.Class)
	assert.Equal(t, CommandResponse, msg.Advertisement.Command)
	assert.Equal(t, records, msg.Advertisement.Records)

	// the decoder is reused between packets
	data, err = Encode(testSource, state.NonStandard, CommandRequest, nil)
	require.NoError(t, err)
	msg, err = d.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, CommandRequest, msg.Advertisement.Command)
	assert.Empty(t, msg.Advertisement.Records)
	assert.Equal(t, state.NonStandard, msg.Frame.Class)
}

func TestDecodeGopacket(t *testing.T) {
	data, err := Encode(testSource, state.Standard, CommandNameRegister, []Record{{Network: 5, Metric: 0}})
	require.NoError(t, err)

	pkt := gopacket.NewPacket(data, LayerTypeFrame, gopacket.Default)
	require.Nil(t, pkt.ErrorLayer())
	frame, ok := pkt.Layer(LayerTypeFrame).(*Frame)
	require.True(t, ok)
	assert.Equal(t, testSource, frame.Source)
	adv, ok := pkt.Layer(LayerTypeAdvertisement).(*Advertisement)
	require.True(t, ok)
	assert.Equal(t, CommandNameRegister, adv.Command)
	assert.Equal(t, "NAME_REGISTER [00000005/0]", adv.String())
}

func TestDecodeInvalid(t *testing.T) {
	d := NewDecoder()
	good, err := Encode(testSource, state.Standard, CommandResponse, []Record{{Network: 1, Metric: 1}})
	require.NoError(t, err)

	_, err = d.Decode(good[:FrameLen-1])
	assert.Error(t, err, "truncated frame")

	_, err = d.Decode(good[:FrameLen])
	assert.Error(t, err, "frame without advertisement")

	_, err = d.Decode(good[:len(good)-1])
	assert.ErrorIs(t, err, ErrTruncatedRecord)

	bad := append([]byte{}, good...)
	bad[0] = 0
	_, err = d.Decode(bad)
	assert.ErrorContains(t, err, "magic")

	bad = append([]byte{}, good...)
	bad[3] = 9
	_, err = d.Decode(bad)
	assert.ErrorContains(t, err, "route class")

	bad = append([]byte{}, good...)
	binary.BigEndian.PutUint16(bad[FrameLen:], 7)
	_, err = d.Decode(bad)
	assert.ErrorContains(t, err, "unknown advertisement command")
}

func TestTooManyRecords(t *testing.T) {
	_, err := Encode(testSource, state.Standard, CommandResponse, make([]Record, state.MaxRecords+1))
	assert.ErrorIs(t, err, ErrTooManyRecords)

	data, err := Encode(testSource, state.Standard, CommandResponse, make([]Record, state.MaxRecords))
	require.NoError(t, err)
	assert.Len(t, data, FrameLen+MaxAdvertisementLen)

	data = append(data, make([]byte, RecordLen)...)
	_, err = NewDecoder().Decode(data)
	assert.ErrorIs(t, err, ErrTooManyRecords)
}

func TestSplitRecords(t *testing.T) {
	assert.Empty(t, SplitRecords(nil))

	recs := make([]Record, 2*state.MaxRecords+1)
	chunks := SplitRecords(recs)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], state.MaxRecords)
	assert.Len(t, chunks[1], state.MaxRecords)
	assert.Len(t, chunks[2], 1)

	assert.Len(t, SplitRecords(make([]Record, state.MaxRecords)), 1)
}
