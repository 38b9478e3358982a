package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(reconcileTotal.WithLabelValues("created"))
	IncReconcile("created")
	assert.Equal(t, before+1, testutil.ToFloat64(reconcileTotal.WithLabelValues("created")))

	IncWebhookEvent("invoice.payment_succeeded", "ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(webhookEventsTotal.WithLabelValues("invoice.payment_succeeded", "ok")))
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
