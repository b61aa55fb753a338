package session

import (
	"encoding/hex"
	"strings"
)

// Identity is the monitor identification triple the persistence file
// keys real monitors by.
type Identity struct {
	Vendor  string
	Product string
	Serial  string
}

const unknown = "unknown"

// ParseEDIDIdentity extracts the manufacturer code and the product and
// serial descriptor strings from an EDID hex dump. Missing or
// undecodable fields come back as "unknown"; virtual outputs have no
// EDID at all and get the all-unknown identity.
func ParseEDIDIdentity(edidHex string) Identity {
	id := Identity{Vendor: unknown, Product: unknown, Serial: unknown}
	raw, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(edidHex)))
	if err != nil || len(raw) < 128 {
		return id
	}

	// Manufacturer id: three 5-bit letters packed into bytes 8-9.
	val := uint16(raw[8])<<8 | uint16(raw[9])
	vendor := []byte{
		byte((val>>10)&0x1f) + 'A' - 1,
		byte((val>>5)&0x1f) + 'A' - 1,
		byte(val&0x1f) + 'A' - 1,
	}
	if vendorValid(vendor) {
		id.Vendor = string(vendor)
	}

	// Four 18-byte descriptor blocks at bytes 54-125. Text descriptors
	// start 00 00 00 <tag>; 0xFC is the product name, 0xFF the serial.
	for i := 0; i < 4; i++ {
		block := raw[54+i*18 : 54+(i+1)*18]
		if block[0] != 0 || block[1] != 0 || block[2] != 0 {
			continue
		}
		text := descriptorText(block[5:18])
		if text == "" {
			continue
		}
		switch block[3] {
		case 0xFC:
			id.Product = text
		case 0xFF:
			id.Serial = text
		}
	}
	return id
}

func vendorValid(code []byte) bool {
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// descriptorText decodes a 13-byte descriptor payload: ASCII terminated
// by a newline, padded with spaces.
func descriptorText(payload []byte) string {
	if i := strings.IndexByte(string(payload), '\n'); i >= 0 {
		payload = payload[:i]
	}
	var b strings.Builder
	for _, c := range payload {
		if c < 0x20 || c > 0x7e {
			continue
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(b.String())
}
