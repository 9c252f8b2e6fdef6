// internal/database/queries.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Error definitions
var (
	ErrNotFound = errors.New("record not found")
)

// Feed represents a calendar subscription
type Feed struct {
	ID           int64
	URL          string
	ManageSecret string
	CreatedAt    time.Time
}

// Transition holds one DAYLIGHT or STANDARD timezone transition rule.
// Values are verbatim source text; an invalid NullString means the
// property was absent upstream (distinct from present-but-empty).
type Transition struct {
	DTStart    sql.NullString
	OffsetFrom sql.NullString
	OffsetTo   sql.NullString
	RRule      sql.NullString
	Name       sql.NullString
}

// Calendar is the per-feed document envelope, replaced in full on sync
type Calendar struct {
	FeedID   int64
	Version  string
	ProdID   string
	CalScale string
	Name     sql.NullString
	TzID     string
	Daylight Transition
	Standard Transition
}

// Event represents a stored calendar event. Start, End and DTStamp carry
// the location named by their companion TZ fields.
type Event struct {
	ID          int64
	FeedID      int64
	Summary     string
	Description sql.NullString
	Start       time.Time
	StartTZ     string
	End         time.Time
	EndTZ       string
	Location    sql.NullString
	UID         string
	DTStamp     time.Time
	DTStampTZ   string
	Organizer   sql.NullString
	OrganizerCN sql.NullString
	Sequence    sql.NullInt64
	Status      sql.NullString
}

// formatTimestamp formats a time for database storage. Stored text is
// RFC3339 in UTC so lexicographic order matches chronological order.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTimestamp restores a stored timestamp into its own zone,
// falling back to UTC when the zone is no longer resolvable.
func parseTimestamp(value, tz string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc), nil
}

// CreateFeed inserts a new subscription with a pre-allocated id
func (db *DB) CreateFeed(ctx context.Context, id int64, url, manageSecret string) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO feeds (id, url, manage_secret) VALUES (?, ?, ?)",
		id, url, manageSecret,
	)
	return err
}

func (db *DB) GetFeed(ctx context.Context, id int64) (*Feed, error) {
	var f Feed
	err := db.QueryRowContext(ctx,
		"SELECT id, url, manage_secret, created_at FROM feeds WHERE id = ?",
		id,
	).Scan(&f.ID, &f.URL, &f.ManageSecret, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (db *DB) GetAllFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, url, manage_secret, created_at FROM feeds ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.ID, &f.URL, &f.ManageSecret, &f.CreatedAt); err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// DeleteFeed removes a subscription and everything it owns. This is the
// explicit-deletion path; the sync path never reaches it.
func (db *DB) DeleteFeed(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE feed_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM calendars WHERE feed_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", id); err != nil {
		return err
	}

	return tx.Commit()
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertCalendar(ctx context.Context, ex executor, cal *Calendar) error {
	_, err := ex.ExecContext(ctx, `
        INSERT INTO calendars (
            feed_id, version, prod_id, cal_scale, name, tz_id,
            daylight_dtstart, daylight_tzoffsetfrom, daylight_tzoffsetto,
            daylight_rrule, daylight_tzname,
            standard_dtstart, standard_tzoffsetfrom, standard_tzoffsetto,
            standard_rrule, standard_tzname
        )
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(feed_id) DO UPDATE SET
            version = excluded.version,
            prod_id = excluded.prod_id,
            cal_scale = excluded.cal_scale,
            name = excluded.name,
            tz_id = excluded.tz_id,
            daylight_dtstart = excluded.daylight_dtstart,
            daylight_tzoffsetfrom = excluded.daylight_tzoffsetfrom,
            daylight_tzoffsetto = excluded.daylight_tzoffsetto,
            daylight_rrule = excluded.daylight_rrule,
            daylight_tzname = excluded.daylight_tzname,
            standard_dtstart = excluded.standard_dtstart,
            standard_tzoffsetfrom = excluded.standard_tzoffsetfrom,
            standard_tzoffsetto = excluded.standard_tzoffsetto,
            standard_rrule = excluded.standard_rrule,
            standard_tzname = excluded.standard_tzname`,
		cal.FeedID, cal.Version, cal.ProdID, cal.CalScale, cal.Name, cal.TzID,
		cal.Daylight.DTStart, cal.Daylight.OffsetFrom, cal.Daylight.OffsetTo,
		cal.Daylight.RRule, cal.Daylight.Name,
		cal.Standard.DTStart, cal.Standard.OffsetFrom, cal.Standard.OffsetTo,
		cal.Standard.RRule, cal.Standard.Name,
	)
	return err
}

func upsertEvent(ctx context.Context, ex executor, ev *Event) error {
	_, err := ex.ExecContext(ctx, `
        INSERT INTO events (
            feed_id, summary, description,
            start_time, start_tz, end_time, end_tz,
            location, uid, dtstamp, dtstamp_tz,
            organizer, organizer_cn, sequence, status
        )
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(feed_id, start_time, start_tz, end_time, end_tz) DO UPDATE SET
            summary = excluded.summary,
            description = excluded.description,
            location = excluded.location,
            uid = excluded.uid,
            dtstamp = excluded.dtstamp,
            dtstamp_tz = excluded.dtstamp_tz,
            organizer = excluded.organizer,
            organizer_cn = excluded.organizer_cn,
            sequence = excluded.sequence,
            status = excluded.status`,
		ev.FeedID, ev.Summary, ev.Description,
		formatTimestamp(ev.Start), ev.StartTZ,
		formatTimestamp(ev.End), ev.EndTZ,
		ev.Location, ev.UID,
		formatTimestamp(ev.DTStamp), ev.DTStampTZ,
		ev.Organizer, ev.OrganizerCN, ev.Sequence, ev.Status,
	)
	return err
}

// UpsertCalendar replaces the stored envelope for a feed in full
func (db *DB) UpsertCalendar(ctx context.Context, cal *Calendar) error {
	return upsertCalendar(ctx, db.DB, cal)
}

// UpsertEvent inserts or updates one event keyed on its natural key
// (feed, start instant+zone, end instant+zone). On conflict the mutable
// fields are rewritten and the stored id is left unchanged.
func (db *DB) UpsertEvent(ctx context.Context, ev *Event) error {
	return upsertEvent(ctx, db.DB, ev)
}

// ReplaceFeedData applies one successful sync atomically: the calendar
// envelope is replaced and every event is upserted in document order.
// Nothing is deleted here, ever.
func (db *DB) ReplaceFeedData(ctx context.Context, cal *Calendar, events []Event) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertCalendar(ctx, tx, cal); err != nil {
		return err
	}
	for i := range events {
		if err := upsertEvent(ctx, tx, &events[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetCalendar returns the stored envelope, or ErrNotFound when the feed
// has never synchronized successfully.
func (db *DB) GetCalendar(ctx context.Context, feedID int64) (*Calendar, error) {
	var c Calendar
	err := db.QueryRowContext(ctx, `
        SELECT feed_id, version, prod_id, cal_scale, name, tz_id,
               daylight_dtstart, daylight_tzoffsetfrom, daylight_tzoffsetto,
               daylight_rrule, daylight_tzname,
               standard_dtstart, standard_tzoffsetfrom, standard_tzoffsetto,
               standard_rrule, standard_tzname
        FROM calendars WHERE feed_id = ?`,
		feedID,
	).Scan(
		&c.FeedID, &c.Version, &c.ProdID, &c.CalScale, &c.Name, &c.TzID,
		&c.Daylight.DTStart, &c.Daylight.OffsetFrom, &c.Daylight.OffsetTo,
		&c.Daylight.RRule, &c.Daylight.Name,
		&c.Standard.DTStart, &c.Standard.OffsetFrom, &c.Standard.OffsetTo,
		&c.Standard.RRule, &c.Standard.Name,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetEventsForFeed returns a feed's events, most recent start first
func (db *DB) GetEventsForFeed(ctx context.Context, feedID int64) ([]Event, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, feed_id, summary, description,
               start_time, start_tz, end_time, end_tz,
               location, uid, dtstamp, dtstamp_tz,
               organizer, organizer_cn, sequence, status
        FROM events
        WHERE feed_id = ?
        ORDER BY start_time DESC, id DESC`,
		feedID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var start, end, dtstamp string
		err := rows.Scan(
			&e.ID, &e.FeedID, &e.Summary, &e.Description,
			&start, &e.StartTZ, &end, &e.EndTZ,
			&e.Location, &e.UID, &dtstamp, &e.DTStampTZ,
			&e.Organizer, &e.OrganizerCN, &e.Sequence, &e.Status,
		)
		if err != nil {
			return nil, err
		}
		if e.Start, err = parseTimestamp(start, e.StartTZ); err != nil {
			return nil, err
		}
		if e.End, err = parseTimestamp(end, e.EndTZ); err != nil {
			return nil, err
		}
		if e.DTStamp, err = parseTimestamp(dtstamp, e.DTStampTZ); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteEvent removes a single event via the authorized deletion path
func (db *DB) DeleteEvent(ctx context.Context, feedID, eventID int64) error {
	result, err := db.ExecContext(ctx,
		"DELETE FROM events WHERE id = ? AND feed_id = ?",
		eventID, feedID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) DeleteEventsForFeed(ctx context.Context, feedID int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM events WHERE feed_id = ?", feedID)
	return err
}

func (db *DB) DeleteCalendar(ctx context.Context, feedID int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM calendars WHERE feed_id = ?", feedID)
	return err
}
