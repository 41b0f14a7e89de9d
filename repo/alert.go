package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/7331/binance-live-price-alerts/entity"
	"github.com/7331/binance-live-price-alerts/notifier"
	"github.com/7331/binance-live-price-alerts/types"
)

type AlertRepo interface {
	Create(ctx context.Context, alert entity.Alert) (int64, error)
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]entity.Alert, error)
	RecordAlert(ctx context.Context, event types.AlertEvent, deliveries []notifier.Delivery) error
}

type alertRepo struct {
	db *gorm.DB
}

func NewAlertRepo(db *gorm.DB) AlertRepo {
	return &alertRepo{
		db: db,
	}
}

func (r *alertRepo) Create(ctx context.Context, alert entity.Alert) (int64, error) {
	err := r.db.WithContext(ctx).Create(&alert).Error
	if err != nil {
		return 0, err
	}
	return alert.Id, nil
}

func (r *alertRepo) FindBySymbol(ctx context.Context, symbol string, limit int) ([]entity.Alert, error) {
	var alerts []entity.Alert
	err := r.db.WithContext(ctx).
		Preload("Deliveries").
		Where("symbol = ?", symbol).
		Order("created_at desc").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// RecordAlert stores event together with the per-target outcomes.
func (r *alertRepo) RecordAlert(ctx context.Context, event types.AlertEvent, deliveries []notifier.Delivery) error {
	alert := entity.Alert{
		AlertId:   event.ID,
		Symbol:    event.Symbol,
		Price:     event.Price.String(),
		Previous:  event.Previous.String(),
		Delta:     event.Delta.String(),
		Direction: entity.DirectionUp,
		CreatedAt: event.DetectedAt,
	}
	if event.Negative() {
		alert.Direction = entity.DirectionDown
	}
	for _, d := range deliveries {
		row := entity.Delivery{Target: notifier.RedactURL(d.Target.URL), CreatedAt: event.DetectedAt}
		if d.Err != nil {
			row.Error = d.Err.Error()
			alert.Failed++
		} else {
			alert.Delivered++
		}
		alert.Deliveries = append(alert.Deliveries, row)
	}
	_, err := r.Create(ctx, alert)
	return err
}
