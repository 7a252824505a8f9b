package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
)

var (
	deliveryAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mail_delivery",
			Name:      "attempts_total",
			Help:      "Channel operations run by the delivery orchestrator.",
		},
		[]string{"channel", "stage", "result"}, // result: "success" or the failure kind
	)

	deliveryChannelDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mail_delivery",
			Name:      "channel_duration_seconds",
			Help:      "Duration of channel verify and send operations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel", "stage"},
	)

	otpRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mail_delivery",
			Name:      "otp_requests_total",
			Help:      "OTP emails requested, by outcome.",
		},
		[]string{"outcome"}, // "sent", "invalid", "failed"
	)

	auditPublishFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mail_delivery",
			Name:      "audit_publish_failures_total",
			Help:      "Delivery audit events that could not be published.",
		},
	)
)

func observeAttempt(channel string, stage domain.Stage, err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = string(attemptKind(err))
	}
	deliveryAttemptsCounter.WithLabelValues(channel, string(stage), result).Inc()
	deliveryChannelDurationHist.WithLabelValues(channel, string(stage)).Observe(elapsed.Seconds())
}
