package notifier

import (
	"fmt"

	"github.com/7331/binance-live-price-alerts/types"
)

const (
	DefaultUsername  = "Price Change!"
	DefaultAvatarURL = "https://public.bnbstatic.com/image/cms/blog/20200707/631c823b-886e-4e46-b12f-29e5fdc0882e.png"

	ColorDown = 14495300
	ColorUp   = 7975256
)

type WebhookPayload struct {
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url"`
	Content   string  `json:"content"`
	Embeds    []Embed `json:"embeds"`
}

type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Color       int    `json:"color"`
}

// TradeURL is the spot trading page for symbol.
func TradeURL(symbol string) string {
	return fmt.Sprintf("https://www.binance.com/en/trade/%s?type=spot", symbol)
}

// Description is the two-line embed body.
func Description(event types.AlertEvent) string {
	return fmt.Sprintf("Price: %s\nChange: %s", event.PriceText, event.DeltaText)
}

// Color picks the embed color from the direction of the move.
func Color(event types.AlertEvent) int {
	if event.Negative() {
		return ColorDown
	}
	return ColorUp
}

// BuildPayload assembles the body posted to one target.
func BuildPayload(event types.AlertEvent, target types.WebhookTarget, identity Identity) WebhookPayload {
	username := target.Username
	if username == "" {
		username = identity.Username
	}
	avatar := target.AvatarURL
	if avatar == "" {
		avatar = identity.AvatarURL
	}

	return WebhookPayload{
		Username:  username,
		AvatarURL: avatar,
		Content:   target.Content,
		Embeds: []Embed{
			{
				Title:       event.Symbol,
				Description: Description(event),
				URL:         TradeURL(event.Symbol),
				Color:       Color(event),
			},
		},
	}
}
