package metricsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/kozi/core/payment"
)

// Collector gathers the app's prometheus metrics: payment traffic per gateway
// and the auth entry points.
type Collector struct {
	ordersCreated *prometheus.CounterVec
	verifications *prometheus.CounterVec
	logins        prometheus.Counter
	magicLinks    prometheus.Counter
}

var _ payment.Metrics = (*Collector)(nil)

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kozi_payment_orders_created_total",
			Help: "Orders/checkout sessions opened, per gateway.",
		}, []string{"provider"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kozi_payment_verifications_total",
			Help: "Server-side payment verifications, per gateway and outcome.",
		}, []string{"provider", "outcome"}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kozi_logins_total",
			Help: "Successful sign-ins across all methods.",
		}),
		magicLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kozi_magic_links_sent_total",
			Help: "Magic link emails sent.",
		}),
	}

	reg.MustRegister(
		c.ordersCreated,
		c.verifications,
		c.logins,
		c.magicLinks,
	)
	return c
}

func (c *Collector) OrderCreated(provider payment.Provider) {
	c.ordersCreated.WithLabelValues(string(provider)).Inc()
}

func (c *Collector) Verification(provider payment.Provider, verified bool) {
	outcome := "rejected"
	if verified {
		outcome = "verified"
	}
	c.verifications.WithLabelValues(string(provider), outcome).Inc()
}

func (c *Collector) LoginSucceeded() { c.logins.Inc() }
func (c *Collector) MagicLinkSent()  { c.magicLinks.Inc() }

// Handler returns the scrape endpoint handler for the given registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
