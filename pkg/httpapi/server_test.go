package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"mosspay/pkg/account"
	"mosspay/pkg/advisor"
	"mosspay/pkg/billing"
	"mosspay/pkg/catalog"
	"mosspay/pkg/inventory"
	"mosspay/pkg/rewards"
	"mosspay/pkg/session"
	"mosspay/pkg/storage/memorydriver"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	db, cleanup, err := memorydriver.Open("")
	require.NoError(t, err)
	require.NoError(t, memorydriver.EnsureSchema(ctx, db))
	cat, err := catalog.Default()
	require.NoError(t, err)

	accounts := account.NewService(account.NewRepository(db), account.WithHashCost(bcrypt.MinCost))
	stock := inventory.NewService(inventory.NewRepository(db), cat)
	bills := billing.NewService(billing.NewRepository(db), accounts, stock)
	offers := rewards.NewService(rewards.NewRepository(db), cat, accounts)

	logger := log.New(io.Discard, "", 0)
	srv, err := New(Services{
		Accounts:  accounts,
		Inventory: stock,
		Billing:   bills,
		Rewards:   offers,
		Catalog:   cat,
		Sessions:  session.NewStore(0),
		Advisor:   advisor.NewHandler(logger),
	}, "test", logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		offers.Close()
		bills.Close()
		stock.Close()
		accounts.Close()
		_ = cleanup()
	})
	return ts
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postForm(t *testing.T, c *http.Client, target string, form url.Values) *goquery.Document {
	t.Helper()
	resp, err := c.PostForm(target, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

func getPage(t *testing.T, c *http.Client, target string) *goquery.Document {
	t.Helper()
	resp, err := c.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

func postJSON(t *testing.T, c *http.Client, target string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := c.Post(target, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func loginVendor(t *testing.T, ts *httptest.Server) *http.Client {
	t.Helper()
	browser := newBrowser(t)
	doc := postForm(t, browser, ts.URL+"/vendor/register", url.Values{
		"business_name": {"Green Grocer"}, "contact_name": {"Meera"}, "email": {"shop@example.com"},
		"mobile": {"9111111111"}, "address": {"12 Market Road"}, "password": {"shop"}, "confirm_password": {"shop"},
	})
	require.Equal(t, "Vendor registered successfully! Please log in.", doc.Find("#flash").Text())
	doc = postForm(t, browser, ts.URL+"/vendor/login", url.Values{"email": {"shop@example.com"}, "password": {"shop"}})
	require.Equal(t, "Green Grocer", doc.Find("main h1").Text())
	return browser
}

func loginConsumer(t *testing.T, ts *httptest.Server) *http.Client {
	t.Helper()
	browser := newBrowser(t)
	doc := postForm(t, browser, ts.URL+"/consumer/register", url.Values{
		"fullname": {"Asha Rao"}, "email": {"asha@example.com"}, "phone": {"9876543210"},
		"dob": {"1995-06-01"}, "password": {"pw"}, "confirm_password": {"pw"},
	})
	require.Equal(t, "User registered successfully!", doc.Find("#flash").Text())
	doc = postForm(t, browser, ts.URL+"/consumer/login", url.Values{"email": {"asha@example.com"}, "password": {"pw"}})
	require.Equal(t, "150", doc.Find("#user-balance").Text())
	return browser
}

func TestAPIsRequireSession(t *testing.T) {
	ts := newTestServer(t)
	anon := newBrowser(t)

	for _, path := range []string{"/api/vendor/add-item", "/api/vendor/send-bill-to-phone", "/api/vendor/change-password",
		"/api/consumer/log-purchase", "/api/consumer/redeem-reward", "/api/consumer/change-password"} {
		status, body := postJSON(t, anon, ts.URL+path, map[string]any{})
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, "Not authorized", body["error"], path)
	}

	consumer := loginConsumer(t, ts)
	status, _ := postJSON(t, consumer, ts.URL+"/api/vendor/add-item", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPagesRedirectToLogin(t *testing.T) {
	ts := newTestServer(t)
	anon := newBrowser(t)

	doc := getPage(t, anon, ts.URL+"/vendor/generate_bill")
	assert.Equal(t, "You must be logged in to see this page.", doc.Find("#flash").Text())
	assert.Equal(t, 1, doc.Find("#vendor-login-form").Length())

	doc = getPage(t, anon, ts.URL+"/consumer/redeem")
	assert.Equal(t, 1, doc.Find("#consumer-login-form").Length())
}

func TestBillLifecycle(t *testing.T) {
	ts := newTestServer(t)
	vendor := loginVendor(t, ts)
	consumer := loginConsumer(t, ts)

	status, body := postJSON(t, vendor, ts.URL+"/api/vendor/add-item", map[string]any{"name": "Jute Bag", "price": "120.50", "unit": "piece", "stock": "3"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Jute Bag", body["name"])
	assert.InDelta(t, 120.5, body["price"], 1e-9)
	assert.InDelta(t, 1.5, body["carbon_saved_kg"], 1e-9)
	itemID := body["id"]

	status, body = postJSON(t, vendor, ts.URL+"/api/vendor/add-item", map[string]any{"name": "Jute Bag", "price": 10})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Please fill out all fields.", body["error"])

	doc := getPage(t, vendor, ts.URL+"/vendor/generate_bill")
	plus := doc.Find(`.btn-quantity[data-action="increase"]`)
	require.Equal(t, 1, plus.Length())
	assert.Equal(t, "120.5", plus.AttrOr("data-price", ""))
	assert.Equal(t, "3", plus.AttrOr("data-stock", ""))
	assert.Equal(t, "jute bag", doc.Find(".item-list-entry").AttrOr("data-name", ""))

	status, body = postJSON(t, vendor, ts.URL+"/api/vendor/send-bill-to-phone", map[string]any{"phone": "9000000000", "cart": []map[string]any{{"id": itemID, "quantity": 1}}})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "No MossPay user found with phone number 9000000000.", body["error"])

	status, body = postJSON(t, vendor, ts.URL+"/api/vendor/send-bill-to-phone", map[string]any{"phone": "9876543210", "cart": []map[string]any{{"id": itemID, "quantity": 5}}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Not enough stock for Jute Bag. Only 3 left.", body["error"])

	status, body = postJSON(t, vendor, ts.URL+"/api/vendor/send-bill-to-phone", map[string]any{"phone": "9876543210", "cart": []map[string]any{{"id": "1", "quantity": 2}}})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Bill sent to Asha Rao!", body["message"])

	doc = getPage(t, consumer, ts.URL+"/consumer/log_purchase")
	row := doc.Find(".bill-row")
	require.Equal(t, 1, row.Length())
	billID := row.AttrOr("data-bill-id", "")
	assert.Equal(t, "pending", row.AttrOr("data-status", ""))
	assert.Equal(t, "Green Grocer", strings.TrimSpace(row.Find(".vendor").Text()))

	status, body = postJSON(t, consumer, ts.URL+"/api/consumer/log-purchase", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing bill ID.", body["error"])

	status, body = postJSON(t, consumer, ts.URL+"/api/consumer/log-purchase", map[string]any{"bill_id": billID})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Purchase logged!", body["message"])
	assert.EqualValues(t, 180, body["new_balance"])

	status, body = postJSON(t, consumer, ts.URL+"/api/consumer/log-purchase", map[string]any{"bill_id": billID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "This bill has already been logged.", body["error"])

	status, body = postJSON(t, consumer, ts.URL+"/api/consumer/log-purchase", map[string]any{"bill_id": 42})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Bill not found.", body["error"])

	doc = getPage(t, vendor, ts.URL+"/vendor/customer_insights")
	assert.Equal(t, "₹241.00", doc.Find("#total-sales").Text())
	assert.Equal(t, "1", doc.Find(`#age-buckets li[data-label="26-35"]`).AttrOr("data-count", ""))

	resp, err := vendor.Get(ts.URL + "/vendor/transaction_history.xlsx")
	require.NoError(t, err)
	defer resp.Body.Close()
	book, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(billing.HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Asha Rao", rows[1][2])
}

func TestRedeemFlow(t *testing.T) {
	ts := newTestServer(t)
	vendor := loginVendor(t, ts)
	consumer := loginConsumer(t, ts)

	doc := postForm(t, vendor, ts.URL+"/vendor/manage_offers", url.Values{"title": {"Free jute bag"}, "description": {"On any order"}, "mosscoin_cost": {"100"}})
	assert.Equal(t, "New offer created successfully!", doc.Find("#flash").Text())
	assert.Equal(t, 1, doc.Find(".offer").Length())

	doc = getPage(t, consumer, ts.URL+"/consumer/redeem")
	assert.Equal(t, "150", doc.Find("#user-balance").Text())
	offer := doc.Find(`.btn-redeem[data-reward-id^="offer_"]`)
	require.Equal(t, 1, offer.Length())
	assert.Equal(t, "100", offer.AttrOr("data-cost", ""))

	status, body := postJSON(t, consumer, ts.URL+"/api/consumer/redeem-reward", map[string]any{"reward_id": "gov_1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Not enough MossCoins!", body["error"])

	status, body = postJSON(t, consumer, ts.URL+"/api/consumer/redeem-reward", map[string]any{"reward_id": "bogus"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid reward type.", body["error"])

	status, body = postJSON(t, consumer, ts.URL+"/api/consumer/redeem-reward", map[string]any{"reward_id": offer.AttrOr("data-reward-id", "")})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Reward redeemed!", body["message"])
	assert.EqualValues(t, 50, body["new_balance"])
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t)
	vendor := loginVendor(t, ts)

	status, body := postJSON(t, vendor, ts.URL+"/api/vendor/change-password", passwordPayload{OldPassword: "nope", NewPassword: "next"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Old password is not correct.", body["error"])

	status, body = postJSON(t, vendor, ts.URL+"/api/vendor/change-password", passwordPayload{OldPassword: "shop", NewPassword: "next"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password updated successfully!", body["message"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestFlexNumber(t *testing.T) {
	var payload struct {
		A flexNumber `json:"a"`
		B flexNumber `json:"b"`
		C flexNumber `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": " 7.50 ", "c": null}`), &payload))
	n, err := payload.A.int64()
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	d, err := payload.B.decimal()
	require.NoError(t, err)
	assert.Equal(t, "7.5", d.String())
	assert.True(t, payload.C.empty())

	q, err := flexNumber("2.0").int()
	require.NoError(t, err)
	assert.Equal(t, 2, q)
	_, err = flexNumber("2.5").int()
	assert.Error(t, err)
}
