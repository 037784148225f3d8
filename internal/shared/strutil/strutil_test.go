package strutil

import "testing"

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
	if got := Truncate("a long description of work", 6); got != "a long..." {
		t.Errorf("Truncate = %q", got)
	}
}

func TestOrDefault(t *testing.T) {
	if got := OrDefault("", "fallback"); got != "fallback" {
		t.Errorf("OrDefault empty = %q", got)
	}
	if got := OrDefault("value", "fallback"); got != "value" {
		t.Errorf("OrDefault set = %q", got)
	}
}

func TestStripThink(t *testing.T) {
	in := "<think>internal\nreasoning</think>the answer"
	if got := StripThink(in); got != "the answer" {
		t.Errorf("StripThink = %q", got)
	}
	if got := StripThink("no tags"); got != "no tags" {
		t.Errorf("StripThink passthrough = %q", got)
	}
}
