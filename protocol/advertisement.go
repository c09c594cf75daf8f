package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/encodeous/ddsroute/state"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

type Command uint16

const (
	CommandRequest      Command = 1
	CommandResponse     Command = 2
	CommandNameRegister Command = 3
)

func (c Command) String() string {
	switch c {
	case CommandRequest:
		return "REQUEST"
	case CommandResponse:
		return "RESPONSE"
	case CommandNameRegister:
		return "NAME_REGISTER"
	}
	return fmt.Sprintf("Command(%d)", uint16(c))
}

const (
	commandLen = 2
	RecordLen  = 6
	// MaxAdvertisementLen is the size of an advertisement carrying state.MaxRecords records
	MaxAdvertisementLen = commandLen + state.MaxRecords*RecordLen
)

var (
	ErrTruncatedRecord = errors.New("advertisement ends with a truncated record")
	ErrTooManyRecords  = fmt.Errorf("advertisement carries more than %d records", state.MaxRecords)
)

// Record is one route in an advertisement: a network and the sender's metric to it
type Record struct {
	Network state.NetworkId
	Metric  uint16
}

func (r Record) String() string {
	return fmt.Sprintf("%s/%d", r.Network, r.Metric)
}

// Advertisement is the route advertisement payload: a command followed by up to state.MaxRecords records
type Advertisement struct {
	layers.BaseLayer
	Command Command
	Records []Record
}

func (a *Advertisement) LayerType() gopacket.LayerType {
	return LayerTypeAdvertisement
}

func (a *Advertisement) CanDecode() gopacket.LayerClass {
	return LayerClassAdvertisement
}

func (a *Advertisement) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypeZero
}

func (a *Advertisement) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < commandLen {
		df.SetTruncated()
		return fmt.Errorf("advertisement length %d less than %d", len(data), commandLen)
	}
	cmd := Command(binary.BigEndian.Uint16(data[0:2]))
	switch cmd {
	case CommandRequest, CommandResponse, CommandNameRegister:
	default:
		return fmt.Errorf("unknown advertisement command %d", uint16(cmd))
	}
	body := data[commandLen:]
	if len(body)%RecordLen != 0 {
		df.SetTruncated()
		return ErrTruncatedRecord
	}
	n := len(body) / RecordLen
	if n > state.MaxRecords {
		return ErrTooManyRecords
	}
	a.Command = cmd
	a.Records = a.Records[:0]
	for i := 0; i < n; i++ {
		rec := body[i*RecordLen : (i+1)*RecordLen]
		a.Records = append(a.Records, Record{
			Network: state.NetworkId(binary.BigEndian.Uint32(rec[0:4])),
			Metric:  binary.BigEndian.Uint16(rec[4:6]),
		})
	}
	a.BaseLayer = layers.BaseLayer{Contents: data}
	return nil
}

func (a *Advertisement) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(a.Records) > state.MaxRecords {
		return ErrTooManyRecords
	}
	buf, err := b.PrependBytes(commandLen + len(a.Records)*RecordLen)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(buf[0:2], uint16(a.Command))
	for i, r := range a.Records {
		rec := buf[commandLen+i*RecordLen:]
		binary.BigEndian.PutUint32(rec[0:4], uint32(r.Network))
		binary.BigEndian.PutUint16(rec[4:6], r.Metric)
	}
	return nil
}

func (a *Advertisement) String() string {
	recs := make([]string, 0, len(a.Records))
	for _, r := range a.Records {
		recs = append(recs, r.String())
	}
	return fmt.Sprintf("%s [%s]", a.Command, strings.Join(recs, " "))
}

func decodeAdvertisement(data []byte, p gopacket.PacketBuilder) error {
	a := &Advertisement{}
	err := a.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(a)
	return nil
}

// SplitRecords chunks records into groups that each fit a single advertisement
func SplitRecords(records []Record) [][]Record {
	out := make([][]Record, 0, len(records)/state.MaxRecords+1)
	for len(records) > state.MaxRecords {
		out = append(out, records[:state.MaxRecords])
		records = records[state.MaxRecords:]
	}
	if len(records) > 0 {
		out = append(out, records)
	}
	return out
}
