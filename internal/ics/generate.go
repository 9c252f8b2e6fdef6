package ics

import (
	"bytes"
	"strconv"
	"time"

	ical "github.com/emersion/go-ical"
)

// GenerateDocument reconstructs a text/calendar document from stored
// state. Optional properties whose source value was absent are omitted,
// not emitted empty. Stored values are already in wire form, so they
// are written raw; re-encoding them would double up text escapes and
// corrupt transition rules.
func GenerateDocument(doc *Document) ([]byte, error) {
	cal := ical.NewCalendar()
	setRaw(cal.Props, ical.PropVersion, doc.Calendar.Version)
	setRaw(cal.Props, ical.PropCalendarScale, doc.Calendar.CalScale)
	setRaw(cal.Props, ical.PropProductID, doc.Calendar.ProdID)
	setOptRaw(cal.Props, propCalendarName, doc.Calendar.Name)

	if tz := timezoneComponent(&doc.Calendar); tz != nil {
		cal.Children = append(cal.Children, tz)
	}
	for i := range doc.Events {
		cal.Children = append(cal.Children, eventComponent(&doc.Events[i]))
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// timezoneComponent rebuilds the VTIMEZONE block. A document whose
// source had no timezone stores no transitions; the block is omitted
// then, since VTIMEZONE requires at least one transition child and the
// default zone alone carries no information.
func timezoneComponent(cal *Calendar) *ical.Component {
	tz := ical.NewComponent(ical.CompTimezone)
	setRaw(tz.Props, ical.PropTimezoneID, cal.TzID)
	if daylight := transitionComponent(ical.CompTimezoneDaylight, &cal.Daylight); daylight != nil {
		tz.Children = append(tz.Children, daylight)
	}
	if standard := transitionComponent(ical.CompTimezoneStandard, &cal.Standard); standard != nil {
		tz.Children = append(tz.Children, standard)
	}
	if len(tz.Children) == 0 {
		return nil
	}
	return tz
}

// transitionComponent rebuilds one DAYLIGHT or STANDARD block from the
// verbatim stored text. A transition with no properties at all is
// dropped rather than emitted as an empty block.
func transitionComponent(name string, tr *Transition) *ical.Component {
	comp := ical.NewComponent(name)
	setOptRaw(comp.Props, ical.PropDateTimeStart, tr.DTStart)
	setOptRaw(comp.Props, ical.PropTimezoneOffsetFrom, tr.OffsetFrom)
	setOptRaw(comp.Props, ical.PropTimezoneOffsetTo, tr.OffsetTo)
	setOptRaw(comp.Props, ical.PropRecurrenceRule, tr.RRule)
	setOptRaw(comp.Props, ical.PropTimezoneName, tr.Name)
	if len(comp.Props) == 0 {
		return nil
	}
	return comp
}

func eventComponent(ev *Event) *ical.Component {
	comp := ical.NewComponent(ical.CompEvent)
	setRaw(comp.Props, ical.PropUID, ev.UID)
	setZonedDateTime(comp.Props, ical.PropDateTimeStamp, ev.DTStamp, ev.DTStampTZ)
	setZonedDateTime(comp.Props, ical.PropDateTimeStart, ev.Start, ev.StartTZ)
	setZonedDateTime(comp.Props, ical.PropDateTimeEnd, ev.End, ev.EndTZ)
	setRaw(comp.Props, ical.PropSummary, ev.Summary)
	setRaw(comp.Props, ical.PropDescription, ev.Description)
	setOptRaw(comp.Props, ical.PropLocation, ev.Location)
	if ev.Organizer != nil {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = *ev.Organizer
		if ev.OrganizerCN != nil {
			p.Params[ical.ParamCommonName] = []string{*ev.OrganizerCN}
		}
		comp.Props.Set(p)
	}
	if ev.Sequence != nil {
		setRaw(comp.Props, ical.PropSequence, strconv.FormatInt(*ev.Sequence, 10))
	}
	setOptRaw(comp.Props, ical.PropStatus, ev.Status)
	return comp
}

// setZonedDateTime emits the compact wall-clock form in the instant's
// own zone, with the zone carried as a TZID parameter so a re-parse
// reproduces the same natural key.
func setZonedDateTime(props ical.Props, name string, t time.Time, tzid string) {
	p := ical.NewProp(name)
	p.Value = FormatDateTime(t)
	p.Params[ical.ParamTimezoneID] = []string{tzid}
	props.Set(p)
}

func setRaw(props ical.Props, name, value string) {
	p := ical.NewProp(name)
	p.Value = value
	props.Set(p)
}

func setOptRaw(props ical.Props, name string, value *string) {
	if value != nil {
		setRaw(props, name, *value)
	}
}
