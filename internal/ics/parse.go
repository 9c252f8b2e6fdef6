// Package ics maps iCalendar documents to and from the typed
// intermediate model used by the sync and serving paths.
package ics

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"
)

const propCalendarName = "X-WR-CALNAME"

var (
	ErrNotCalendar  = errors.New("document does not contain a calendar")
	ErrMissingField = errors.New("missing required property")
)

// Transition holds one DAYLIGHT or STANDARD transition rule. All fields
// are verbatim source text; nil means absent upstream. They are
// round-tripped, never computed against.
type Transition struct {
	DTStart    *string
	OffsetFrom *string
	OffsetTo   *string
	RRule      *string
	Name       *string
}

// Calendar is the document-level envelope
type Calendar struct {
	Version  string
	ProdID   string
	CalScale string
	Name     *string
	TzID     string
	Daylight Transition
	Standard Transition
}

// Event is one normalized VEVENT. Start, End and DTStamp are zoned
// instants; the companion TZ fields name their zones.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	StartTZ     string
	End         time.Time
	EndTZ       string
	Location    *string
	UID         string
	DTStamp     time.Time
	DTStampTZ   string
	Organizer   *string
	OrganizerCN *string
	Sequence    *int64
	Status      *string
}

// Document is a fully parsed upstream document: the envelope plus its
// events in source order. It doubles as the staging buffer for a sync:
// nothing is merged until the whole document has parsed.
type Document struct {
	Calendar Calendar
	Events   []Event
}

// ParseDocument decodes and normalizes one upstream calendar document.
// A document without a calendar root fails with ErrNotCalendar; any
// event with a missing or unparseable DTSTART/DTEND/DTSTAMP fails the
// whole document.
func ParseDocument(r io.Reader) (*Document, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCalendar, err)
	}

	doc := &Document{
		Calendar: Calendar{
			Version:  textOr(cal.Props, ical.PropVersion, "2.0"),
			ProdID:   textOr(cal.Props, ical.PropProductID, ""),
			CalScale: textOr(cal.Props, ical.PropCalendarScale, "GREGORIAN"),
			Name:     optText(cal.Props, propCalendarName),
			TzID:     DefaultZone,
		},
	}

	// Only the first VTIMEZONE is honored; multiple timezones per
	// document are a documented limitation.
	for _, child := range cal.Children {
		if child.Name == ical.CompTimezone {
			parseTimezone(child, &doc.Calendar)
			break
		}
	}

	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		ev, err := parseEvent(child)
		if err != nil {
			return nil, err
		}
		doc.Events = append(doc.Events, ev)
	}

	return doc, nil
}

func parseTimezone(comp *ical.Component, cal *Calendar) {
	if tzID := optText(comp.Props, ical.PropTimezoneID); tzID != nil {
		cal.TzID = *tzID
	}
	for _, child := range comp.Children {
		switch child.Name {
		case ical.CompTimezoneDaylight:
			if cal.Daylight == (Transition{}) {
				cal.Daylight = parseTransition(child)
			}
		case ical.CompTimezoneStandard:
			if cal.Standard == (Transition{}) {
				cal.Standard = parseTransition(child)
			}
		}
	}
}

func parseTransition(comp *ical.Component) Transition {
	return Transition{
		DTStart:    optText(comp.Props, ical.PropDateTimeStart),
		OffsetFrom: optText(comp.Props, ical.PropTimezoneOffsetFrom),
		OffsetTo:   optText(comp.Props, ical.PropTimezoneOffsetTo),
		RRule:      optText(comp.Props, ical.PropRecurrenceRule),
		Name:       optText(comp.Props, ical.PropTimezoneName),
	}
}

func parseEvent(comp *ical.Component) (Event, error) {
	ev := Event{
		Summary:     textOr(comp.Props, ical.PropSummary, ""),
		Description: textOr(comp.Props, ical.PropDescription, ""),
		Location:    optText(comp.Props, ical.PropLocation),
		UID:         textOr(comp.Props, ical.PropUID, ""),
		Status:      optText(comp.Props, ical.PropStatus),
	}

	if p := comp.Props.Get(ical.PropOrganizer); p != nil {
		value := p.Value
		ev.Organizer = &value
		if cn := p.Params.Get(ical.ParamCommonName); cn != "" {
			ev.OrganizerCN = &cn
		}
	}

	if p := comp.Props.Get(ical.PropSequence); p != nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(p.Value), 10, 64); err == nil {
			ev.Sequence = &n
		}
	}

	var err error
	if ev.Start, ev.StartTZ, err = dateTimeProp(comp.Props, ical.PropDateTimeStart); err != nil {
		return ev, err
	}
	if ev.End, ev.EndTZ, err = dateTimeProp(comp.Props, ical.PropDateTimeEnd); err != nil {
		return ev, err
	}
	if ev.DTStamp, ev.DTStampTZ, err = dateTimeProp(comp.Props, ical.PropDateTimeStamp); err != nil {
		return ev, err
	}

	return ev, nil
}

// dateTimeProp normalizes one mandatory date-time property. The zone is
// taken from the TZID parameter, Etc/UTC when absent; unknown zones fall
// back to UTC inside ParseDateTime rather than failing.
func dateTimeProp(props ical.Props, name string) (time.Time, string, error) {
	p := props.Get(name)
	if p == nil || p.Value == "" {
		return time.Time{}, "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	tzid := p.Params.Get(ical.ParamTimezoneID)
	if tzid == "" {
		tzid = DefaultZone
	}
	t, err := ParseDateTime(p.Value, tzid)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%s: %w", name, err)
	}
	return t, tzid, nil
}

func textOr(props ical.Props, name, fallback string) string {
	if p := props.Get(name); p != nil {
		return p.Value
	}
	return fallback
}

func optText(props ical.Props, name string) *string {
	if p := props.Get(name); p != nil {
		value := p.Value
		return &value
	}
	return nil
}
