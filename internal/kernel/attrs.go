package kernel

import "github.com/gadgetd/gadgetd/internal/gadgeterr"

// gadgetAttrFiles maps the D-Bus-facing attribute names from spec §3
// to the configfs attribute file they write, mirroring the
// bcd-usb/b-device-class/... property table in gadget-descriptors.c.
var gadgetAttrFiles = map[string]string{
	"bcd-usb":             "bcdUSB",
	"b-device-class":      "bDeviceClass",
	"b-device-sub-class":  "bDeviceSubClass",
	"b-device-protocol":   "bDeviceProtocol",
	"b-max-packet-size-0": "bMaxPacketSize0",
	"id-vendor":           "idVendor",
	"id-product":          "idProduct",
	"bcd-device":          "bcdDevice",
}

// byteAttrs is the subset of gadgetAttrFiles that take a single byte
// value rather than a 16-bit value; usbg_set_gadget_attr type-checks
// the same way between "q" (uint16) and "y" (byte) GVariant types.
var byteAttrs = map[string]bool{
	"b-device-class":      true,
	"b-device-sub-class":  true,
	"b-device-protocol":   true,
	"b-max-packet-size-0": true,
}

func lookupGadgetAttr(name string) (file string, isByte bool, err error) {
	file, ok := gadgetAttrFiles[name]
	if !ok {
		return "", false, gadgeterr.New("lookupGadgetAttr", gadgeterr.InvalidParam, nil)
	}
	return file, byteAttrs[name], nil
}

// gadgetStrKeys are the only gadget-level string keys the kernel
// interface accepts, matching gd_set_gadget_strs's fixed strs[] table.
var gadgetStrKeys = map[string]string{
	"serialnumber": "serialnumber",
	"manufacturer": "manufacturer",
	"product":      "product",
}

func lookupGadgetStr(key string) (string, error) {
	file, ok := gadgetStrKeys[key]
	if !ok {
		return "", gadgeterr.New("lookupGadgetStr", gadgeterr.InvalidParam, nil)
	}
	return file, nil
}

// LangUSEng is the language code gadgetd always writes gadget and
// configuration strings under; spec's data model only exposes
// US-English strings.
const LangUSEng = 0x0409
