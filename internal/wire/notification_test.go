package wire

import "testing"

func TestNotificationRoundTrip(t *testing.T) {
	n := Notification{Cmd: 0x02, Mac: [6]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02}}
	raw := BuildNotification(n)
	if len(raw) != NotificationSize {
		t.Fatalf("expected %d bytes, got %d", NotificationSize, len(raw))
	}
	got, ok := ParseNotification(raw)
	if !ok {
		t.Fatal("parse failed")
	}
	if got != n {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, n)
	}
}

func TestNotificationRejectsBadStartMarker(t *testing.T) {
	raw := BuildNotification(Notification{Cmd: 1})
	raw[0] = 0x00
	if _, ok := ParseNotification(raw); ok {
		t.Fatal("expected rejection of bad start marker")
	}
}

func TestNotificationRejectsBadEndMarker(t *testing.T) {
	raw := BuildNotification(Notification{Cmd: 1})
	raw[13] = 0x00
	if _, ok := ParseNotification(raw); ok {
		t.Fatal("expected rejection of bad end marker")
	}
}

func TestNotificationRejectsBadChecksum(t *testing.T) {
	raw := BuildNotification(Notification{Cmd: 1})
	raw[11] ^= 0xFF
	if _, ok := ParseNotification(raw); ok {
		t.Fatal("expected rejection of bad checksum")
	}
}

func TestNotificationRejectsWrongLength(t *testing.T) {
	if _, ok := ParseNotification(make([]byte, NotificationSize-1)); ok {
		t.Fatal("expected rejection of wrong-length buffer")
	}
}
