package feed

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"

	"golang.org/x/sync/singleflight"

	"memcal/internal/database"
	"memcal/internal/ics"
)

var (
	// ErrFetch marks failures reaching or reading the upstream source.
	ErrFetch = errors.New("fetch failed")
	// ErrStorage marks failures persisting an otherwise valid document.
	ErrStorage = errors.New("storage failed")
)

// Syncer runs the fetch-parse-merge pipeline for one feed at a time.
// Concurrent syncs of the same feed are coalesced, so the periodic
// sweep and an on-demand request never race on the same rows.
type Syncer struct {
	db      *database.DB
	logger  *log.Logger
	fetcher *Fetcher
	group   singleflight.Group
}

func NewSyncer(db *database.DB, logger *log.Logger) *Syncer {
	return &Syncer{
		db:      db,
		logger:  logger,
		fetcher: NewFetcher(logger),
	}
}

// Sync refreshes one feed from its upstream source. A failure at any
// stage leaves previously stored rows untouched.
func (s *Syncer) Sync(ctx context.Context, feed *database.Feed) error {
	_, err, _ := s.group.Do(strconv.FormatInt(feed.ID, 10), func() (any, error) {
		return nil, s.syncOnce(ctx, feed)
	})
	return err
}

func (s *Syncer) syncOnce(ctx context.Context, feed *database.Feed) error {
	body, err := s.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}

	// The parsed document is the staging buffer: nothing touches the
	// database until the whole payload has parsed.
	doc, err := ics.ParseDocument(bytes.NewReader(body))
	if err != nil {
		return err
	}

	cal, events := storageRows(feed.ID, doc)
	if err := s.db.ReplaceFeedData(ctx, cal, events); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.logger.Printf("Synced feed %d: %d events in document", feed.ID, len(events))
	return nil
}

// storageRows maps a parsed document onto database rows for one feed.
func storageRows(feedID int64, doc *ics.Document) (*database.Calendar, []database.Event) {
	cal := &database.Calendar{
		FeedID:   feedID,
		Version:  doc.Calendar.Version,
		ProdID:   doc.Calendar.ProdID,
		CalScale: doc.Calendar.CalScale,
		Name:     nullString(doc.Calendar.Name),
		TzID:     doc.Calendar.TzID,
		Daylight: transitionRow(&doc.Calendar.Daylight),
		Standard: transitionRow(&doc.Calendar.Standard),
	}

	events := make([]database.Event, 0, len(doc.Events))
	for i := range doc.Events {
		ev := &doc.Events[i]
		events = append(events, database.Event{
			FeedID:      feedID,
			Summary:     ev.Summary,
			Description: sql.NullString{String: ev.Description, Valid: true},
			Start:       ev.Start,
			StartTZ:     ev.StartTZ,
			End:         ev.End,
			EndTZ:       ev.EndTZ,
			Location:    nullString(ev.Location),
			UID:         ev.UID,
			DTStamp:     ev.DTStamp,
			DTStampTZ:   ev.DTStampTZ,
			Organizer:   nullString(ev.Organizer),
			OrganizerCN: nullString(ev.OrganizerCN),
			Sequence:    nullInt64(ev.Sequence),
			Status:      nullString(ev.Status),
		})
	}
	return cal, events
}

// BuildDocument assembles the serving-side document from stored rows.
// It is the inverse of storageRows, minus the row ids.
func BuildDocument(cal *database.Calendar, events []database.Event) *ics.Document {
	doc := &ics.Document{
		Calendar: ics.Calendar{
			Version:  cal.Version,
			ProdID:   cal.ProdID,
			CalScale: cal.CalScale,
			Name:     optString(cal.Name),
			TzID:     cal.TzID,
			Daylight: transitionValue(&cal.Daylight),
			Standard: transitionValue(&cal.Standard),
		},
	}
	for i := range events {
		ev := &events[i]
		doc.Events = append(doc.Events, ics.Event{
			Summary:     ev.Summary,
			Description: ev.Description.String,
			Start:       ev.Start,
			StartTZ:     ev.StartTZ,
			End:         ev.End,
			EndTZ:       ev.EndTZ,
			Location:    optString(ev.Location),
			UID:         ev.UID,
			DTStamp:     ev.DTStamp,
			DTStampTZ:   ev.DTStampTZ,
			Organizer:   optString(ev.Organizer),
			OrganizerCN: optString(ev.OrganizerCN),
			Sequence:    optInt64(ev.Sequence),
			Status:      optString(ev.Status),
		})
	}
	return doc
}

func transitionRow(tr *ics.Transition) database.Transition {
	return database.Transition{
		DTStart:    nullString(tr.DTStart),
		OffsetFrom: nullString(tr.OffsetFrom),
		OffsetTo:   nullString(tr.OffsetTo),
		RRule:      nullString(tr.RRule),
		Name:       nullString(tr.Name),
	}
}

func transitionValue(tr *database.Transition) ics.Transition {
	return ics.Transition{
		DTStart:    optString(tr.DTStart),
		OffsetFrom: optString(tr.OffsetFrom),
		OffsetTo:   optString(tr.OffsetTo),
		RRule:      optString(tr.RRule),
		Name:       optString(tr.Name),
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func optString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	value := ns.String
	return &value
}

func optInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	value := ni.Int64
	return &value
}
