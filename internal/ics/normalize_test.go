package ics

import (
	"errors"
	"testing"
	"time"
)

func TestParseDateTime(t *testing.T) {
	t.Run("UTC default zone", func(t *testing.T) {
		got, err := ParseDateTime("20240315T143000", DefaultZone)
		if err != nil {
			t.Fatalf("ParseDateTime failed: %v", err)
		}
		want := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("named zone keeps wall clock", func(t *testing.T) {
		got, err := ParseDateTime("20240715T090000", "America/New_York")
		if err != nil {
			t.Fatalf("ParseDateTime failed: %v", err)
		}
		if got.Hour() != 9 {
			t.Errorf("wall-clock hour = %d, want 9", got.Hour())
		}
		// July is EDT, four hours behind UTC.
		if got.UTC().Hour() != 13 {
			t.Errorf("UTC hour = %d, want 13", got.UTC().Hour())
		}
	})

	t.Run("DST boundary", func(t *testing.T) {
		winter, err := ParseDateTime("20240115T090000", "America/New_York")
		if err != nil {
			t.Fatalf("ParseDateTime failed: %v", err)
		}
		summer, err := ParseDateTime("20240715T090000", "America/New_York")
		if err != nil {
			t.Fatalf("ParseDateTime failed: %v", err)
		}
		_, winterOff := winter.Zone()
		_, summerOff := summer.Zone()
		if summerOff-winterOff != 3600 {
			t.Errorf("offset delta = %d, want 3600", summerOff-winterOff)
		}
	})

	t.Run("unknown zone falls back to UTC", func(t *testing.T) {
		got, err := ParseDateTime("20240315T143000", "Not/AZone")
		if err != nil {
			t.Fatalf("ParseDateTime failed: %v", err)
		}
		if got.Location() != time.UTC {
			t.Errorf("location = %v, want UTC", got.Location())
		}
	})

	t.Run("malformed value", func(t *testing.T) {
		_, err := ParseDateTime("2024-03-15 14:30", DefaultZone)
		if !errors.Is(err, ErrInvalidTime) {
			t.Errorf("err = %v, want ErrInvalidTime", err)
		}
	})
}

func TestFormatDateTime(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	got := FormatDateTime(time.Date(2024, 3, 15, 14, 30, 0, 0, loc))
	if got != "20240315T143000" {
		t.Errorf("got %q, want %q", got, "20240315T143000")
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	parsed, err := ParseDateTime("20241103T013000", "America/New_York")
	if err != nil {
		t.Fatalf("ParseDateTime failed: %v", err)
	}
	if got := FormatDateTime(parsed); got != "20241103T013000" {
		t.Errorf("round trip = %q, want %q", got, "20241103T013000")
	}
}
