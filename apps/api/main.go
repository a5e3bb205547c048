package main

import (
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	echoapi "github.com/trezcool/kozi/apps/api/echo"
	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/payment"
	"github.com/trezcool/kozi/core/user"
	emailsvc "github.com/trezcool/kozi/services/email"
	logsvc "github.com/trezcool/kozi/services/logger"
	metricsvc "github.com/trezcool/kozi/services/metrics"
	oauthsvc "github.com/trezcool/kozi/services/oauth"
	"github.com/trezcool/kozi/services/payment/razorpay"
	"github.com/trezcool/kozi/services/payment/stripe"
	"github.com/trezcool/kozi/storage/database"
	inmemdb "github.com/trezcool/kozi/storage/database/inmem"
	pgrepos "github.com/trezcool/kozi/storage/database/postgres"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var logger core.Logger
	if core.Conf.RollbarConfigured() {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	} else {
		logger = logsvc.NewStdLogger(std)
	}

	// set up the store: postgres when configured, the in-memory demo
	// variant otherwise
	var (
		usrRepo user.Repository
		crsRepo course.Repository
	)
	if core.Conf.DatabaseConfigured() {
		db, err := database.Open(core.Conf)
		errAndDie(std, err)
		defer db.Close()
		errAndDie(std, database.Migrate(core.Conf.DatabaseURL))

		usrRepo = pgrepos.NewUserRepository(db)
		crsRepo = pgrepos.NewCourseRepository(db)
	} else {
		logger.Warn("no database configured; running on the in-memory demo store")
		memdb := inmemdb.Open()
		seedDemoContent(memdb)
		usrRepo = inmemdb.NewUserRepository(memdb)
		crsRepo = inmemdb.NewCourseRepository(memdb)
	}

	// set up services
	var mailSvc core.EmailService
	if core.Conf.SendgridConfigured() && !core.Conf.Debug {
		mailSvc = emailsvc.NewSendgridService(logger)
	} else {
		mailSvc = emailsvc.NewConsoleService()
	}
	usrSvc := user.NewService(usrRepo, mailSvc, logger)
	crsSvc := course.NewService(crsRepo, usrRepo, logger)

	var rzpClient payment.RazorpayClient
	if c, ok := razorpay.NewClientFromConfig(core.Conf); ok {
		rzpClient = c
	} else {
		logger.Warn("razorpay keys not configured; razorpay checkout disabled")
	}
	var stpClient payment.StripeClient
	if c, ok := stripe.NewClientFromConfig(core.Conf); ok {
		stpClient = c
	} else {
		logger.Warn("stripe keys not configured; stripe checkout disabled")
	}

	reg := prometheus.NewRegistry()
	collector := metricsvc.NewCollector(reg)

	paySvc := payment.NewService(rzpClient, stpClient, crsSvc, collector, logger)

	var oauth echoapi.OAuthProvider
	if p, ok := oauthsvc.NewGoogleProviderFromConfig(core.Conf); ok {
		oauth = p
	} else {
		logger.Warn("google oauth not configured; google sign-in disabled")
	}

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:           core.Conf.Server.Addr,
			UserSvc:        usrSvc,
			CourseSvc:      crsSvc,
			PaymentSvc:     paySvc,
			OAuth:          oauth,
			Metrics:        collector,
			MetricsHandler: metricsvc.Handler(reg),
			Logger:         logger,
		},
	)
	app.Start()
}

// seedDemoContent loads a browsable cohort so the demo store is not empty.
func seedDemoContent(db *inmemdb.DB) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, 7)
	end := start.AddDate(0, 3, 0)

	cohort := course.Cohort{
		ID:        uuid.NewString(),
		Name:      "Demo Cohort",
		StartDate: &start,
		EndDate:   &end,
		IsActive:  true,
	}
	lessons := []course.Lesson{
		{ID: uuid.NewString(), Slug: "welcome", Title: "Welcome", Week: 1, Visible: true},
		{ID: uuid.NewString(), Slug: "getting-set-up", Title: "Getting Set Up", Week: 1, Visible: true},
		{ID: uuid.NewString(), Slug: "first-project", Title: "Your First Project", Week: 2, Visible: false},
	}
	anns := []course.Announcement{
		{ID: uuid.NewString(), CohortID: cohort.ID, Title: "Welcome aboard!", Body: "Kickoff call is next Monday.", CreatedAt: now},
	}
	db.Seed([]course.Cohort{cohort}, lessons, anns)
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
