package workers

import (
	"context"
	"log"
	"time"

	"gamification-service/models"
	"gamification-service/services"

	"gorm.io/gorm"
)

// NotifyWorker drains the notification outbox. Facts that fail to
// deliver stay undispatched and are retried on the next tick; the
// triggering grant is long since committed either way.
type NotifyWorker struct {
	DB       *gorm.DB
	Notifier services.Notifier
}

func NewNotifyWorker(db *gorm.DB, notifier services.Notifier) *NotifyWorker {
	return &NotifyWorker{DB: db, Notifier: notifier}
}

// Start polls until ctx is cancelled.
func (w *NotifyWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Notify worker stopping...")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *NotifyWorker) drain(ctx context.Context) {
	var pending []models.NotificationOutbox
	if err := w.DB.Where("dispatched = ?", false).
		Order("created_at ASC").
		Limit(50).
		Find(&pending).Error; err != nil {
		log.Printf("[NotifyWorker] DB error: %v", err)
		return
	}

	for _, fact := range pending {
		if err := w.Notifier.Notify(ctx, fact); err != nil {
			log.Printf("⚠️ [NotifyWorker] dispatch failed for %s (kind=%s): %v", fact.ExternalUserID, fact.Kind, err)
			continue
		}
		now := time.Now()
		if err := w.DB.Model(&models.NotificationOutbox{}).
			Where("id = ?", fact.ID).
			Updates(map[string]interface{}{"dispatched": true, "dispatched_at": &now}).Error; err != nil {
			log.Printf("[NotifyWorker] failed to mark %s dispatched: %v", fact.ID, err)
		}
	}
}
