package metrics

import "time"

// RecordAIRequest records one provider call. A zero duration counts the call
// without observing latency.
func RecordAIRequest(provider, kind, status string, duration time.Duration) {
	AIAPICalls.WithLabelValues(provider, kind, status).Inc()
	if duration > 0 {
		AIRequestDuration.WithLabelValues(provider, kind).Observe(duration.Seconds())
	}
}

// RecordAITokens adds token usage reported by a provider.
func RecordAITokens(provider string, input, output int) {
	if input > 0 {
		AITokensTotal.WithLabelValues(provider, "input").Add(float64(input))
	}
	if output > 0 {
		AITokensTotal.WithLabelValues(provider, "output").Add(float64(output))
	}
}

// RecordAICost adds the estimated cost of a provider call.
func RecordAICost(provider string, cents int) {
	if cents > 0 {
		AICostCentsTotal.WithLabelValues(provider).Add(float64(cents))
	}
}

// RecordGateDecision records a credit gate outcome.
func RecordGateDecision(outcome string) {
	CreditGateDecisions.WithLabelValues(outcome).Inc()
}

// RecordReading records how a reading attempt ended.
func RecordReading(readingType, status string) {
	ReadingsTotal.WithLabelValues(readingType, status).Inc()
}

// RecordHistoryWrite records a history insert.
func RecordHistoryWrite(ok bool) {
	if ok {
		HistoryWrites.WithLabelValues("success").Inc()
		return
	}
	HistoryWrites.WithLabelValues("failed").Inc()
}

// RecordDailyDraw records a daily card request.
func RecordDailyDraw(outcome string) {
	DailyDraws.WithLabelValues(outcome).Inc()
}

// RecordCreditsGranted adds to the granted credits counter.
func RecordCreditsGranted(source string, credits int) {
	if credits > 0 {
		CreditsGranted.WithLabelValues(source).Add(float64(credits))
	}
}

// RecordWebhookEvent records the handling of a Stripe event.
func RecordWebhookEvent(eventType, outcome string) {
	WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}
