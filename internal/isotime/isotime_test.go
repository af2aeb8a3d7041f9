package isotime

import (
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2014, 5, 1, 12, 30, 5, 123456789, time.FixedZone("EST", -5*3600))

	if got, want := Format(ts), "2014-05-01T17:30:05.123456Z"; got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
	if got, want := FormatDate(ts), "2014-05-01"; got != want {
		t.Errorf("FormatDate = %q, want %q", got, want)
	}
}

func TestNow(t *testing.T) {
	fixed := func() time.Time { return time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC) }
	if got, want := Now(fixed), "2020-01-02T03:04:05.000000Z"; got != want {
		t.Errorf("Now = %q, want %q", got, want)
	}
}

func TestParse(t *testing.T) {
	want := time.Date(2014, 5, 1, 17, 30, 5, 123456000, time.UTC)

	got, err := Parse("2014-05-01T17:30:05.123456Z")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}

	if _, err := Parse("2014-05-01T17:30:05Z"); err != nil {
		t.Errorf("expected RFC 3339 to parse: %v", err)
	}
	if _, err := Parse("2014-05-01"); err != nil {
		t.Errorf("expected date to parse: %v", err)
	}
	if _, err := Parse("yesterday"); err == nil {
		t.Error("expected error for garbage")
	}
}
