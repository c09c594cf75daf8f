package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/encodeous/ddsroute/state"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const (
	FrameMagic   uint16 = 0xdd05
	FrameVersion uint8  = 1
	// FrameLen is magic, version, class and the sender address
	FrameLen = 4 + state.SourceAddrLen
)

// Frame is the datagram header the transport puts in front of every advertisement.
// It identifies the sender and the route class the advertisement is for.
type Frame struct {
	layers.BaseLayer
	Version uint8
	Class   state.RouteClass
	Source  state.SourceAddr
}

func (f *Frame) LayerType() gopacket.LayerType {
	return LayerTypeFrame
}

func (f *Frame) CanDecode() gopacket.LayerClass {
	return LayerClassFrame
}

func (f *Frame) NextLayerType() gopacket.LayerType {
	return LayerTypeAdvertisement
}

func (f *Frame) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < FrameLen {
		df.SetTruncated()
		return fmt.Errorf("frame length %d less than %d", len(data), FrameLen)
	}
	if magic := binary.BigEndian.Uint16(data[0:2]); magic != FrameMagic {
		return fmt.Errorf("bad frame magic %#04x", magic)
	}
	f.Version = data[2]
	if f.Version != FrameVersion {
		return fmt.Errorf("unsupported frame version %d", f.Version)
	}
	f.Class = state.RouteClass(data[3])
	if !f.Class.Valid() {
		return fmt.Errorf("unknown route class %d", data[3])
	}
	f.Source.Network = state.NetworkId(binary.BigEndian.Uint32(data[4:8]))
	copy(f.Source.Host[:], data[8:FrameLen])
	f.BaseLayer = layers.BaseLayer{Contents: data[:FrameLen], Payload: data[FrameLen:]}
	return nil
}

func (f *Frame) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	buf, err := b.PrependBytes(FrameLen)
	if err != nil {
		return err
	}
	version := f.Version
	if version == 0 {
		version = FrameVersion
	}
	binary.BigEndian.PutUint16(buf[0:2], FrameMagic)
	buf[2] = version
	buf[3] = uint8(f.Class)
	binary.BigEndian.PutUint32(buf[4:8], uint32(f.Source.Network))
	copy(buf[8:FrameLen], f.Source.Host[:])
	return nil
}

func decodeFrame(data []byte, p gopacket.PacketBuilder) error {
	f := &Frame{}
	err := f.DecodeFromBytes(data, p)
	if err != nil {
		return err
	}
	p.AddLayer(f)
	return p.NextDecoder(f.NextLayerType())
}

// Message is a decoded datagram
type Message struct {
	Frame         Frame
	Advertisement Advertisement
}

// Encode serializes an advertisement from source for the given class
func Encode(source state.SourceAddr, class state.RouteClass, cmd Command, records []Record) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&Frame{Version: FrameVersion, Class: class, Source: source},
		&Advertisement{Command: cmd, Records: records},
	)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decoder parses datagrams without allocating new layers for every packet. It is not safe for concurrent use.
type Decoder struct {
	msg     Message
	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

func NewDecoder() *Decoder {
	d := &Decoder{}
	d.parser = gopacket.NewDecodingLayerParser(LayerTypeFrame, &d.msg.Frame, &d.msg.Advertisement)
	d.decoded = make([]gopacket.LayerType, 0, 2)
	return d
}

// Decode parses data, the returned message is only valid until the next call
func (d *Decoder) Decode(data []byte) (*Message, error) {
	err := d.parser.DecodeLayers(data, &d.decoded)
	if err != nil {
		return nil, err
	}
	if len(d.decoded) != 2 {
		return nil, fmt.Errorf("datagram carries no advertisement")
	}
	return &d.msg, nil
}
