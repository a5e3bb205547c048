package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/kozi/apps/api/echo"
	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/payment"
	"github.com/trezcool/kozi/core/user"
	emailsvc "github.com/trezcool/kozi/services/email"
	logsvc "github.com/trezcool/kozi/services/logger"
	inmemdb "github.com/trezcool/kozi/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app     Server
	db      *inmemdb.DB
	usrRepo user.Repository
	crsRepo course.Repository
	usrSvc  *user.Service
	crsSvc  *course.Service
	rzp     *fakeRazorpay
	stp     *fakeStripe
}

type setupOptions struct {
	noRazorpay bool
	noStripe   bool
	oauth      OAuthProvider
}

func setup(t *testing.T, opts ...setupOptions) *testEnv {
	t.Helper()
	core.Conf.Debug = false
	core.Conf.TestMode = true
	emailsvc.ClearSentMessages()

	var o setupOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	// set up DB & repos
	db := inmemdb.Open()
	env := &testEnv{
		db:      db,
		usrRepo: inmemdb.NewUserRepository(db),
		crsRepo: inmemdb.NewCourseRepository(db),
	}

	// set up services
	logger := logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock()
	env.usrSvc = user.NewService(env.usrRepo, mailSvc, logger)
	env.crsSvc = course.NewService(env.crsRepo, env.usrRepo, logger)

	var rzpClient payment.RazorpayClient
	if !o.noRazorpay {
		env.rzp = &fakeRazorpay{orders: make(map[string]payment.Order)}
		rzpClient = env.rzp
	}
	var stpClient payment.StripeClient
	if !o.noStripe {
		env.stp = &fakeStripe{sessions: make(map[string]payment.CheckoutSession)}
		stpClient = env.stp
	}
	paySvc := payment.NewService(rzpClient, stpClient, env.crsSvc, nil, logger)

	// set up server
	env.app = NewServer(
		&Options{
			DisableReqLogs: true,
			UserSvc:        env.usrSvc,
			CourseSvc:      env.crsSvc,
			PaymentSvc:     paySvc,
			OAuth:          o.oauth,
			Logger:         logger,
		},
	)
	return env
}

// fakeRazorpay mimics the provider: orders live server-side and signatures
// are "sig:<order_id>:<payment_id>".
type fakeRazorpay struct {
	orders map[string]payment.Order
}

func (f *fakeRazorpay) sign(orderID, paymentID string) string {
	return "sig:" + orderID + ":" + paymentID
}

func (f *fakeRazorpay) CreateOrder(_ context.Context, params payment.OrderParams) (payment.Order, error) {
	order := payment.Order{
		ID:       "order_" + uuid.NewString(),
		Amount:   params.Amount,
		Currency: params.Currency,
		Receipt:  params.Receipt,
		Status:   "created",
		Notes:    params.Notes,
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeRazorpay) FetchOrder(_ context.Context, orderID string) (payment.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return payment.Order{}, errors.New("order not found")
	}
	return order, nil
}

func (f *fakeRazorpay) VerifySignature(orderID, paymentID, signature string) bool {
	return signature == f.sign(orderID, paymentID)
}

type fakeStripe struct {
	sessions map[string]payment.CheckoutSession
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, params payment.SessionParams) (payment.CheckoutSession, error) {
	sess := payment.CheckoutSession{
		ID:            "cs_" + uuid.NewString(),
		URL:           "https://checkout.stripe.test/pay",
		PaymentStatus: "unpaid",
		AmountTotal:   params.Amount,
		Currency:      params.Currency,
		Metadata:      params.Metadata,
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeStripe) RetrieveSession(_ context.Context, sessionID string) (payment.CheckoutSession, error) {
	sess, ok := f.sessions[sessionID]
	if !ok {
		return payment.CheckoutSession{}, errors.New("session not found")
	}
	return sess, nil
}

func (f *fakeStripe) markPaid(sessionID string) {
	sess := f.sessions[sessionID]
	sess.PaymentStatus = "paid"
	f.sessions[sessionID] = sess
}

func createUser(t *testing.T, repo user.Repository, name, email, pwd, role string, isActive bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *testEnv) seedCohort(name string, lessons []course.Lesson, anns []course.Announcement) course.Cohort {
	cohort := course.Cohort{ID: uuid.NewString(), Name: name, IsActive: true}
	for i := range anns {
		anns[i].CohortID = cohort.ID
	}
	env.db.Seed([]course.Cohort{cohort}, lessons, anns)
	return cohort
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
