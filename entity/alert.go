package entity

import (
	"time"
)

// Alert is one fired threshold breach. Rows are only written, never read
// back into the monitor.
type Alert struct {
	Id         int64  `gorm:"primaryKey;autoIncrement"`
	AlertId    string `gorm:"uniqueIndex"`
	Symbol     string `gorm:"index"`
	Price      string
	Previous   string
	Delta      string
	Direction  string `gorm:"index"`
	Delivered  int
	Failed     int
	Deliveries []Delivery `gorm:"foreignKey:AlertId;references:AlertId"`
	CreatedAt  time.Time  `gorm:"index"`
}

// Delivery is the outcome of posting one alert to one webhook.
type Delivery struct {
	Id        int64  `gorm:"primaryKey;autoIncrement"`
	AlertId   string `gorm:"index"`
	Target    string
	Error     string
	CreatedAt time.Time
}

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)
