package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	riskAssessmentsTotal   *prometheus.CounterVec
	approvalDecisionsTotal *prometheus.CounterVec
	loginAttemptsTotal     *prometheus.CounterVec
	crisisAlertsTotal      *prometheus.CounterVec
	cascadeFailuresTotal   *prometheus.CounterVec
	pointsAwardedTotal     *prometheus.CounterVec
	badgesAwardedTotal     *prometheus.CounterVec
	chatbotRepliesTotal    *prometheus.CounterVec
	chatbotLatencySeconds  prometheus.Histogram
	notificationsTotal     *prometheus.CounterVec
	sseClientsActive       prometheus.Gauge
	documentUploadsTotal   *prometheus.CounterVec
	leaderboardCacheTotal  *prometheus.CounterVec
	removalRequestsTotal   *prometheus.CounterVec
	consultationMessages   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindcare_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		riskAssessmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_risk_assessments_total",
			Help: "Registration risk assessments by scoring path and verdict.",
		}, []string{"source", "suspect"})

		approvalDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_approval_decisions_total",
			Help: "Approval records entering a state.",
		}, []string{"entity_type", "status"})

		loginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"})

		crisisAlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_crisis_alerts_total",
			Help: "Crisis alerts raised by severity and source context.",
		}, []string{"severity", "context"})

		cascadeFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_cascade_step_failures_total",
			Help: "Alert cascade follow-up steps that failed after retries.",
		}, []string{"step"})

		pointsAwardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_points_awarded_total",
			Help: "Points credited to learners by reason.",
		}, []string{"reason"})

		badgesAwardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_badges_awarded_total",
			Help: "Streak badges awarded by tier.",
		}, []string{"tier"})

		chatbotRepliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_chatbot_replies_total",
			Help: "Chatbot replies by outcome.",
		}, []string{"outcome"})

		chatbotLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mindcare_chatbot_latency_seconds",
			Help:    "Latency of text generation calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_notifications_published_total",
			Help: "Staff notifications delivered by kind.",
		}, []string{"kind"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mindcare_sse_clients_active",
			Help: "Active notification stream subscribers.",
		})

		documentUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_document_uploads_total",
			Help: "Credential document uploads by result.",
		}, []string{"result"})

		leaderboardCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_leaderboard_cache_total",
			Help: "Leaderboard cache lookups by result.",
		}, []string{"result"})

		removalRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_removal_requests_total",
			Help: "Removal requests entering a state.",
		}, []string{"entity_type", "status"})

		consultationMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindcare_consultation_messages_total",
			Help: "Consultation chat messages stored by sender role.",
		}, []string{"sender"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			riskAssessmentsTotal, approvalDecisionsTotal, loginAttemptsTotal,
			crisisAlertsTotal, cascadeFailuresTotal, pointsAwardedTotal, badgesAwardedTotal,
			chatbotRepliesTotal, chatbotLatencySeconds, notificationsTotal, sseClientsActive,
			documentUploadsTotal, leaderboardCacheTotal, removalRequestsTotal, consultationMessages,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

func RiskAssessments() *prometheus.CounterVec {
	RegisterMetrics()
	return riskAssessmentsTotal
}

func ApprovalDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return approvalDecisionsTotal
}

func LoginAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return loginAttemptsTotal
}

func CrisisAlerts() *prometheus.CounterVec {
	RegisterMetrics()
	return crisisAlertsTotal
}

// CascadeFailures counts follow-up steps that gave up; the alert itself is kept.
func CascadeFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return cascadeFailuresTotal
}

func PointsAwarded() *prometheus.CounterVec {
	RegisterMetrics()
	return pointsAwardedTotal
}

func BadgesAwarded() *prometheus.CounterVec {
	RegisterMetrics()
	return badgesAwardedTotal
}

func ChatbotReplies() *prometheus.CounterVec {
	RegisterMetrics()
	return chatbotRepliesTotal
}

func ChatbotLatency() prometheus.Histogram {
	RegisterMetrics()
	return chatbotLatencySeconds
}

func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

func DocumentUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return documentUploadsTotal
}

func LeaderboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardCacheTotal
}

func RemovalRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return removalRequestsTotal
}

func ConsultationMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return consultationMessages
}
