package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func mustZone(t *testing.T, tzid string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		t.Fatalf("LoadLocation(%q) failed: %v", tzid, err)
	}
	return loc
}

func TestGenerateDocument(t *testing.T) {
	berlin := mustZone(t, "Europe/Berlin")

	doc := &Document{
		Calendar: Calendar{
			Version:  "2.0",
			ProdID:   "-//Example Corp//Calendar 1.0//EN",
			CalScale: "GREGORIAN",
			Name:     strPtr("Team Calendar"),
			TzID:     "Europe/Berlin",
			Daylight: Transition{
				DTStart:    strPtr("19700329T020000"),
				OffsetFrom: strPtr("+0100"),
				OffsetTo:   strPtr("+0200"),
				RRule:      strPtr("FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU"),
				Name:       strPtr("CEST"),
			},
			Standard: Transition{
				DTStart:    strPtr("19701025T030000"),
				OffsetFrom: strPtr("+0200"),
				OffsetTo:   strPtr("+0100"),
				Name:       strPtr("CET"),
			},
		},
		Events: []Event{
			{
				Summary:     "Planning",
				Description: "Quarterly planning",
				Start:       time.Date(2024, 3, 15, 10, 0, 0, 0, berlin),
				StartTZ:     "Europe/Berlin",
				End:         time.Date(2024, 3, 15, 11, 0, 0, 0, berlin),
				EndTZ:       "Europe/Berlin",
				Location:    strPtr("Room 4"),
				UID:         "abc-123",
				DTStamp:     time.Date(2024, 3, 1, 12, 0, 0, 0, berlin),
				DTStampTZ:   "Europe/Berlin",
				Organizer:   strPtr("mailto:alex@example.com"),
				OrganizerCN: strPtr("Alex Doe"),
				Sequence:    int64Ptr(3),
				Status:      strPtr("CONFIRMED"),
			},
		},
	}

	out, err := GenerateDocument(doc)
	if err != nil {
		t.Fatalf("GenerateDocument failed: %v", err)
	}

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"CALSCALE:GREGORIAN",
		"X-WR-CALNAME:Team Calendar",
		"BEGIN:VTIMEZONE",
		"TZID:Europe/Berlin",
		"BEGIN:DAYLIGHT",
		"TZNAME:CEST",
		"BEGIN:STANDARD",
		"BEGIN:VEVENT",
		"SUMMARY:Planning",
		"STATUS:CONFIRMED",
		"END:VCALENDAR",
	} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("output missing %q", want)
		}
	}

	t.Run("round trip", func(t *testing.T) {
		back, err := ParseDocument(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("ParseDocument failed: %v", err)
		}
		if back.Calendar.TzID != doc.Calendar.TzID {
			t.Errorf("tz id = %q, want %q", back.Calendar.TzID, doc.Calendar.TzID)
		}
		if back.Calendar.Name == nil || *back.Calendar.Name != "Team Calendar" {
			t.Errorf("name = %v", back.Calendar.Name)
		}
		if back.Calendar.Daylight.RRule == nil || *back.Calendar.Daylight.RRule != *doc.Calendar.Daylight.RRule {
			t.Errorf("daylight rrule = %v", back.Calendar.Daylight.RRule)
		}
		if len(back.Events) != 1 {
			t.Fatalf("got %d events, want 1", len(back.Events))
		}
		got, orig := back.Events[0], doc.Events[0]
		if !got.Start.Equal(orig.Start) || got.StartTZ != orig.StartTZ {
			t.Errorf("start = %v %q, want %v %q", got.Start, got.StartTZ, orig.Start, orig.StartTZ)
		}
		if !got.End.Equal(orig.End) || got.EndTZ != orig.EndTZ {
			t.Errorf("end = %v %q, want %v %q", got.End, got.EndTZ, orig.End, orig.EndTZ)
		}
		if got.Summary != orig.Summary || got.Description != orig.Description {
			t.Errorf("text fields = %q/%q", got.Summary, got.Description)
		}
		if got.Organizer == nil || *got.Organizer != *orig.Organizer {
			t.Errorf("organizer = %v", got.Organizer)
		}
		if got.OrganizerCN == nil || *got.OrganizerCN != *orig.OrganizerCN {
			t.Errorf("organizer cn = %v", got.OrganizerCN)
		}
		if got.Sequence == nil || *got.Sequence != 3 {
			t.Errorf("sequence = %v", got.Sequence)
		}
	})

	t.Run("optional fields omitted", func(t *testing.T) {
		minimal := &Document{
			Calendar: Calendar{
				Version:  "2.0",
				CalScale: "GREGORIAN",
				TzID:     DefaultZone,
			},
			Events: []Event{
				{
					Summary:   "Standup",
					Start:     time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
					StartTZ:   DefaultZone,
					End:       time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC),
					EndTZ:     DefaultZone,
					DTStamp:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
					DTStampTZ: DefaultZone,
				},
			},
		}

		out, err := GenerateDocument(minimal)
		if err != nil {
			t.Fatalf("GenerateDocument failed: %v", err)
		}
		text := string(out)
		for _, absent := range []string{
			"X-WR-CALNAME",
			"BEGIN:VTIMEZONE",
			"BEGIN:DAYLIGHT",
			"BEGIN:STANDARD",
			"LOCATION",
			"ORGANIZER",
			"SEQUENCE",
			"STATUS:",
		} {
			if strings.Contains(text, absent) {
				t.Errorf("output should not contain %q", absent)
			}
		}
	})
}

// A document without a VTIMEZONE stores no transitions; generation must
// still produce a valid document with the block left out.
func TestGenerateDocumentWithoutTimezone(t *testing.T) {
	src := icsDoc(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"DTSTAMP:20240301T120000",
		"DTSTART:20240315T100000",
		"DTEND:20240315T110000",
		"SUMMARY:Standup",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	doc, err := ParseDocument(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	if doc.Calendar.TzID != DefaultZone {
		t.Fatalf("tz id = %q, want %q", doc.Calendar.TzID, DefaultZone)
	}

	out, err := GenerateDocument(doc)
	if err != nil {
		t.Fatalf("GenerateDocument failed: %v", err)
	}
	if bytes.Contains(out, []byte("VTIMEZONE")) {
		t.Error("output should not contain a VTIMEZONE block")
	}
	if !bytes.Contains(out, []byte("SUMMARY:Standup")) {
		t.Error("output missing the event")
	}

	back, err := ParseDocument(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if len(back.Events) != 1 || back.Events[0].Summary != "Standup" {
		t.Errorf("round trip = %+v", back.Events)
	}
}

// Stored values are wire text with source escapes intact; generation
// must write them back unchanged instead of escaping a second time.
func TestGenerateDocumentPreservesEscapes(t *testing.T) {
	src := icsDoc(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VTIMEZONE",
		"TZID:Europe/Berlin",
		"BEGIN:DAYLIGHT",
		"DTSTART:19700329T020000",
		"TZOFFSETFROM:+0100",
		"TZOFFSETTO:+0200",
		"RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU",
		"END:DAYLIGHT",
		"END:VTIMEZONE",
		"BEGIN:VEVENT",
		"DTSTAMP:20240301T120000",
		"DTSTART;TZID=Europe/Berlin:20240315T100000",
		"DTEND;TZID=Europe/Berlin:20240315T110000",
		`SUMMARY:Standup\, team`,
		`LOCATION:Room 4\, east wing`,
		"END:VEVENT",
		"END:VCALENDAR",
	)

	doc, err := ParseDocument(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	out, err := GenerateDocument(doc)
	if err != nil {
		t.Fatalf("GenerateDocument failed: %v", err)
	}

	for _, want := range []string{
		"RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU",
		`SUMMARY:Standup\, team`,
		`LOCATION:Room 4\, east wing`,
	} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("output missing %q", want)
		}
	}
	for _, corrupt := range []string{
		`FREQ=YEARLY\;`,
		`Standup\\,`,
		"VALUE=TEXT",
	} {
		if bytes.Contains(out, []byte(corrupt)) {
			t.Errorf("output contains corrupted text %q", corrupt)
		}
	}

	back, err := ParseDocument(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if got := back.Events[0].Summary; got != `Standup\, team` {
		t.Errorf("summary round trip = %q", got)
	}
	if got := back.Calendar.Daylight.RRule; got == nil || *got != "FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU" {
		t.Errorf("rrule round trip = %v", got)
	}
}
