package feed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"memcal/internal/database"
)

// Service owns the periodic sync sweep. On-demand syncs go through the
// same Syncer, so the two paths coalesce per feed.
type Service struct {
	db     *database.DB
	logger *log.Logger
	syncer *Syncer
	cron   *cron.Cron
}

func NewService(db *database.DB, logger *log.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
		syncer: NewSyncer(db, logger),
		cron:   cron.New(),
	}
}

// Syncer exposes the shared syncer for on-demand refreshes.
func (s *Service) Syncer() *Syncer {
	return s.syncer
}

// Start schedules the periodic sweep and kicks off an initial one.
func (s *Service) Start(interval time.Duration) error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.SyncAll(context.Background())
	}); err != nil {
		return fmt.Errorf("error scheduling sync sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Printf("Sync sweep scheduled every %s", interval)

	go s.SyncAll(context.Background())
	return nil
}

func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Printf("Feed service shutting down")
}

// SyncAll refreshes every subscribed feed. One feed's failure never
// stops the sweep.
func (s *Service) SyncAll(ctx context.Context) {
	feeds, err := s.db.GetAllFeeds(ctx)
	if err != nil {
		s.logger.Printf("Error listing feeds for sweep: %v", err)
		return
	}
	s.logger.Printf("Starting sync sweep: %d feeds", len(feeds))

	for i := range feeds {
		if err := s.syncer.Sync(ctx, &feeds[i]); err != nil {
			s.logger.Printf("Error syncing feed %d: %v", feeds[i].ID, err)
		}
	}
}
