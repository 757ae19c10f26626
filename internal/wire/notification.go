package wire

// NotificationSize is the fixed length of a device notification frame.
const NotificationSize = 14

var notificationStart = [2]byte{0xAA, 0xB0}
var notificationEnd = [2]byte{0xFF, 0xF5}

// Notification is a fixed 14-byte out-of-band device notification,
// carrying a command byte and the device's MAC address:
//
//	AA B0 | len_hi len_lo | cmd | mac[6] | checksum | FF F5
type Notification struct {
	Cmd uint8
	Mac [6]byte
}

// checksum is the XOR of every byte except the checksum position itself.
func notificationChecksum(buf [NotificationSize]byte) byte {
	var c byte
	for i, b := range buf {
		if i == 11 {
			continue
		}
		c ^= b
	}
	return c
}

// BuildNotification serializes a Notification frame.
func BuildNotification(n Notification) []byte {
	var buf [NotificationSize]byte
	buf[0], buf[1] = notificationStart[0], notificationStart[1]
	buf[2], buf[3] = 0x00, 0x07 // len_hi, len_lo: cmd(1) + mac(6) = 7
	buf[4] = n.Cmd
	copy(buf[5:11], n.Mac[:])
	buf[12], buf[13] = notificationEnd[0], notificationEnd[1]
	buf[11] = notificationChecksum(buf)
	return buf[:]
}

// ParseNotification parses and validates a 14-byte notification frame.
// Returns false if start markers, end markers, or the checksum fail.
func ParseNotification(buf []byte) (Notification, bool) {
	if len(buf) != NotificationSize {
		return Notification{}, false
	}
	var fixed [NotificationSize]byte
	copy(fixed[:], buf)

	if fixed[0] != notificationStart[0] || fixed[1] != notificationStart[1] {
		return Notification{}, false
	}
	if fixed[12] != notificationEnd[0] || fixed[13] != notificationEnd[1] {
		return Notification{}, false
	}
	if fixed[11] != notificationChecksum(fixed) {
		return Notification{}, false
	}

	var n Notification
	n.Cmd = fixed[4]
	copy(n.Mac[:], fixed[5:11])
	return n, true
}
