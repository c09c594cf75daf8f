package protocol

import (
	"github.com/gopacket/gopacket"
)

var (
	LayerTypeFrame = gopacket.RegisterLayerType(
		1650,
		gopacket.LayerTypeMetadata{
			Name:    "DDSFrame",
			Decoder: gopacket.DecodeFunc(decodeFrame),
		},
	)
	LayerClassFrame gopacket.LayerClass = LayerTypeFrame

	LayerTypeAdvertisement = gopacket.RegisterLayerType(
		1651,
		gopacket.LayerTypeMetadata{
			Name:    "DDSAdvertisement",
			Decoder: gopacket.DecodeFunc(decodeAdvertisement),
		},
	)
	LayerClassAdvertisement gopacket.LayerClass = LayerTypeAdvertisement
)
