// Package metrics holds the Prometheus collectors exported by the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CachedMessages is the number of snapshots currently held by the message cache.
	CachedMessages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "susninja_cached_messages",
		Help: "Number of message snapshots in the cache.",
	})

	// CachedChats is the number of chats with cache state.
	CachedChats = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "susninja_cached_chats",
		Help: "Number of chats holding cached messages.",
	})

	// EditSessions is the number of pending edit notifications.
	EditSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "susninja_edit_sessions",
		Help: "Number of stored edit sessions.",
	})

	// EditsDetected counts edits that produced a notification.
	EditsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "susninja_edits_detected_total",
		Help: "Total number of detected message edits with a text change.",
	})

	// CacheExpired counts snapshots removed by TTL cleanup.
	CacheExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "susninja_cache_expired_total",
		Help: "Total number of cached messages removed for exceeding the TTL.",
	})

	// BroadcastMessages counts broadcast deliveries by result (sent, failed).
	BroadcastMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "susninja_broadcast_messages_total",
		Help: "Total number of broadcast deliveries.",
	}, []string{"result"})

	// Updates counts processed Telegram updates by kind.
	Updates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "susninja_updates_total",
		Help: "Total number of processed updates.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		CachedMessages,
		CachedChats,
		EditSessions,
		EditsDetected,
		CacheExpired,
		BroadcastMessages,
		Updates,
	)
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
