package ffs

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// Raw USB descriptor type codes (usb/ch9.h), needed to tell an
// interface descriptor from an endpoint descriptor when decoding a
// block back out for the round-trip test.
const (
	usbDTInterface = 0x04
	usbDTEndpoint  = 0x05

	interfaceDescLen = 9
	endpointDescLen  = 7
)

// interfaceClassWhitelist is the fixed set of symbolic
// bInterfaceClass names the descriptor loader accepts, per spec §4.4
// ("symbolic name from a fixed whitelist or integer"). Values are the
// USB-IF assigned class codes.
var interfaceClassWhitelist = map[string]uint8{
	"USB_CLASS_PER_INTERFACE":        0x00,
	"USB_CLASS_AUDIO":                0x01,
	"USB_CLASS_COMM":                 0x02,
	"USB_CLASS_HID":                  0x03,
	"USB_CLASS_PHYSICAL":             0x05,
	"USB_CLASS_STILL_IMAGE":          0x06,
	"USB_CLASS_PRINTER":              0x07,
	"USB_CLASS_MASS_STORAGE":         0x08,
	"USB_CLASS_HUB":                  0x09,
	"USB_CLASS_CDC_DATA":             0x0a,
	"USB_CLASS_CSCID":                0x0b,
	"USB_CLASS_CONTENT_SEC":          0x0d,
	"USB_CLASS_VIDEO":                0x0e,
	"USB_CLASS_WIRELESS_CONTROLLER":  0xe0,
	"USB_CLASS_MISC":                 0xef,
	"USB_CLASS_APP_SPEC":             0xfe,
	"USB_CLASS_VENDOR_SPEC":          0xff,
}

// configAttrWhitelist is the fixed set of symbolic bmAttributes flags
// the endpoint descriptor loader accepts, "|"-separated per spec
// §4.4. Named USB_CONFIG_ATT_* to match the shared option-flag enum
// the original declarative format reused for both configuration and
// endpoint attribute bytes; the low two bits double as the endpoint
// transfer type (Control/Isochronous/Bulk/Interrupt), which is what a
// FunctionFS EP_NO_AUDIO_DESC's bmAttributes byte actually holds.
var configAttrWhitelist = map[string]uint8{
	"USB_CONFIG_ATT_CONTROL": 0x00,
	"USB_CONFIG_ATT_ISOC":    0x01,
	"USB_CONFIG_ATT_BULK":    0x02,
	"USB_CONFIG_ATT_INTR":    0x03,
	"USB_CONFIG_ATT_WAKEUP":  0x20,
	"USB_CONFIG_ATT_BATTERY": 0x10,
	"USB_CONFIG_ATT_SELFPOWER": 0x40,
	"USB_CONFIG_ATT_ONE":     0x80,
}

// defaultMaxPacketSize gives wMaxPacketSize a sane value per speed
// block for a bulk-type endpoint; the declarative format (spec §4.4's
// table) names no field for this, so the loader fills it the way the
// kernel's gadget function drivers default an unconfigured bulk
// endpoint.
func defaultMaxPacketSize(speed string, transferType uint8) uint16 {
	if transferType == configAttrWhitelist["USB_CONFIG_ATT_BULK"] {
		if speed == "hs" {
			return 512
		}
		return 64
	}
	return 64
}

// rawDescEntry is the on-disk JSON shape of one descriptor list
// element; which fields are meaningful depends on Type.
type rawDescEntry struct {
	Type string `json:"type"`

	BInterfaceClass    json.RawMessage `json:"bInterfaceClass,omitempty"`
	BInterfaceSubClass *int            `json:"bInterfaceSubClass,omitempty"`
	IInterface         *int            `json:"iInterface,omitempty"`

	Address      *int            `json:"address,omitempty"`
	Direction    string          `json:"direction,omitempty"`
	BmAttributes json.RawMessage `json:"bmAttributes,omitempty"`
}

// InterfaceDescriptor is the parsed form of an INTERFACE_DESC entry.
// Number and NumEndpoints are assigned by the loader, not read from
// the JSON (spec §4.4: "bInterfaceNumber is assigned by scan order;
// bNumEndpoints is accumulated from endpoint descriptors appearing
// after an interface descriptor in the same speed block").
type InterfaceDescriptor struct {
	Number       uint8
	Class        uint8
	SubClass     uint8
	NumEndpoints uint8
	IInterface   uint8
}

// EndpointDescriptor is the parsed form of an EP_NO_AUDIO_DESC entry.
type EndpointDescriptor struct {
	Address       uint8 // bit 7 set for IN, per usb_endpoint_descriptor
	Attributes    uint8
	MaxPacketSize uint16
}

// ParsedDescriptor is the sum type spec §9's design note calls for in
// place of dispatching on the JSON "type" string throughout the
// codebase: exactly one of Interface or Endpoint is set.
type ParsedDescriptor struct {
	Interface *InterfaceDescriptor
	Endpoint  *EndpointDescriptor
}

// parseInterfaceClass accepts either a whitelisted symbolic name or a
// bare integer (JSON number or numeric string), per spec §4.4.
func parseInterfaceClass(raw json.RawMessage) (uint8, error) {
	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return uint8(asInt), nil
	}
	var asStr string
	if err := json.Unmarshal(raw, &asStr); err != nil {
		return 0, gadgeterr.New("parseInterfaceClass", gadgeterr.BadValue,
			fmt.Errorf("bInterfaceClass must be an integer or symbolic name, got %s", raw))
	}
	if v, ok := interfaceClassWhitelist[asStr]; ok {
		return v, nil
	}
	if n, err := strconv.ParseUint(asStr, 0, 8); err == nil {
		return uint8(n), nil
	}
	return 0, gadgeterr.New("parseInterfaceClass", gadgeterr.BadValue,
		fmt.Errorf("unrecognized bInterfaceClass %q", asStr))
}

// parseBmAttributes accepts a bare integer or "|"-separated symbolic
// USB_CONFIG_ATT_* flags, per spec §4.4.
func parseBmAttributes(raw json.RawMessage) (uint8, error) {
	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return uint8(asInt), nil
	}
	var asStr string
	if err := json.Unmarshal(raw, &asStr); err != nil {
		return 0, gadgeterr.New("parseBmAttributes", gadgeterr.BadValue,
			fmt.Errorf("bmAttributes must be an integer or symbolic flags, got %s", raw))
	}
	var attrs uint8
	for _, part := range strings.Split(asStr, "|") {
		part = strings.TrimSpace(part)
		v, ok := configAttrWhitelist[part]
		if !ok {
			return 0, gadgeterr.New("parseBmAttributes", gadgeterr.BadValue,
				fmt.Errorf("unrecognized bmAttributes flag %q", part))
		}
		attrs |= v
	}
	return attrs, nil
}

// buildSpeedBlock parses entries in scan order and emits the raw
// concatenated descriptor bytes for one speed (fs or hs), assigning
// bInterfaceNumber sequentially and accumulating bNumEndpoints onto
// the most recently seen interface descriptor, per spec §4.4.
func buildSpeedBlock(speed string, entries []rawDescEntry) ([]byte, error) {
	var buf []byte
	var curIface *InterfaceDescriptor
	var curIfaceOffset int
	nextIfaceNum := 0

	for i, e := range entries {
		switch e.Type {
		case "INTERFACE_DESC":
			var class, subClass uint8
			var iInterface int
			var err error
			if e.BInterfaceClass != nil {
				class, err = parseInterfaceClass(e.BInterfaceClass)
				if err != nil {
					return nil, fmt.Errorf("%s descriptor[%d]: %w", speed, i, err)
				}
			}
			if e.BInterfaceSubClass != nil {
				subClass = uint8(*e.BInterfaceSubClass)
			}
			if e.IInterface != nil {
				iInterface = *e.IInterface
			}

			iface := InterfaceDescriptor{
				Number:     uint8(nextIfaceNum),
				Class:      class,
				SubClass:   subClass,
				IInterface: uint8(iInterface),
			}
			nextIfaceNum++

			curIfaceOffset = len(buf)
			buf = append(buf, encodeInterfaceDesc(iface)...)
			ifaceCopy := iface
			curIface = &ifaceCopy

		case "EP_NO_AUDIO_DESC":
			if e.Address == nil {
				return nil, gadgeterr.New("buildSpeedBlock", gadgeterr.BadValue,
					fmt.Errorf("%s descriptor[%d]: endpoint missing address", speed, i))
			}
			if *e.Address < 0 || *e.Address > 255 {
				return nil, gadgeterr.New("buildSpeedBlock", gadgeterr.BadValue,
					fmt.Errorf("%s descriptor[%d]: address %d out of range", speed, i, *e.Address))
			}
			var attrs uint8
			var err error
			if e.BmAttributes != nil {
				attrs, err = parseBmAttributes(e.BmAttributes)
				if err != nil {
					return nil, fmt.Errorf("%s descriptor[%d]: %w", speed, i, err)
				}
			}
			addr := uint8(*e.Address)
			switch e.Direction {
			case "in":
				addr |= 0x80
			case "out":
				addr &^= 0x80
			default:
				return nil, gadgeterr.New("buildSpeedBlock", gadgeterr.BadValue,
					fmt.Errorf("%s descriptor[%d]: direction must be \"in\" or \"out\", got %q", speed, i, e.Direction))
			}

			ep := EndpointDescriptor{
				Address:       addr,
				Attributes:    attrs,
				MaxPacketSize: defaultMaxPacketSize(speed, attrs&0x03),
			}
			buf = append(buf, encodeEndpointDesc(ep)...)

			if curIface != nil {
				curIface.NumEndpoints++
				buf[curIfaceOffset+4] = curIface.NumEndpoints
			}

		default:
			return nil, gadgeterr.New("buildSpeedBlock", gadgeterr.BadValue,
				fmt.Errorf("%s descriptor[%d]: unknown type %q", speed, i, e.Type))
		}
	}
	return buf, nil
}

func encodeInterfaceDesc(d InterfaceDescriptor) []byte {
	return []byte{
		interfaceDescLen, usbDTInterface,
		d.Number, 0, // bAlternateSetting always 0
		d.NumEndpoints,
		d.Class, d.SubClass,
		0, // bInterfaceProtocol
		d.IInterface,
	}
}

func encodeEndpointDesc(d EndpointDescriptor) []byte {
	buf := make([]byte, endpointDescLen)
	buf[0] = endpointDescLen
	buf[1] = usbDTEndpoint
	buf[2] = d.Address
	buf[3] = d.Attributes
	binary.LittleEndian.PutUint16(buf[4:6], d.MaxPacketSize)
	buf[6] = 0 // bInterval
	return buf
}

// DecodeSpeedDescriptors walks a raw concatenated descriptor run (as
// produced by buildSpeedBlock, or read back off the wire) into the
// ParsedDescriptor sum type, for the round-trip testable property of
// spec §8.
func DecodeSpeedDescriptors(raw []byte) ([]ParsedDescriptor, error) {
	var out []ParsedDescriptor
	i := 0
	for i < len(raw) {
		if i+2 > len(raw) {
			return nil, gadgeterr.New("DecodeSpeedDescriptors", gadgeterr.BadValue, fmt.Errorf("truncated descriptor header at %d", i))
		}
		bLength := int(raw[i])
		bType := raw[i+1]
		if bLength == 0 || i+bLength > len(raw) {
			return nil, gadgeterr.New("DecodeSpeedDescriptors", gadgeterr.BadValue, fmt.Errorf("malformed descriptor at offset %d", i))
		}
		body := raw[i : i+bLength]
		switch bType {
		case usbDTInterface:
			out = append(out, ParsedDescriptor{Interface: &InterfaceDescriptor{
				Number:       body[2],
				NumEndpoints: body[4],
				Class:        body[5],
				SubClass:     body[6],
				IInterface:   body[8],
			}})
		case usbDTEndpoint:
			out = append(out, ParsedDescriptor{Endpoint: &EndpointDescriptor{
				Address:       body[2],
				Attributes:    body[3],
				MaxPacketSize: binary.LittleEndian.Uint16(body[4:6]),
			}})
		default:
			return nil, gadgeterr.New("DecodeSpeedDescriptors", gadgeterr.BadValue, fmt.Errorf("unrecognized descriptor type %#x at offset %d", bType, i))
		}
		i += bLength
	}
	return out, nil
}
