package httpapi

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mosspay/pkg/account"
	"mosspay/pkg/billing"
	"mosspay/pkg/catalog"
	"mosspay/pkg/inventory"
	"mosspay/pkg/rewards"
	"mosspay/pkg/session"
)

// templateFS packs every page so deployments ship one binary.
//
//go:embed templates/*.gohtml
var templateFS embed.FS

const flashCookie = "mosspay_flash"

// Services groups the domain services the handlers call.
type Services struct {
	Accounts  *account.Service
	Inventory *inventory.Service
	Billing   *billing.Service
	Rewards   *rewards.Service
	Catalog   *catalog.Catalog
	Sessions  *session.Store
	Advisor   http.Handler
}

// Server wires HTTP endpoints to the asynchronous MossPay services.
type Server struct {
	accounts  *account.Service
	inventory *inventory.Service
	billing   *billing.Service
	rewards   *rewards.Service
	catalog   *catalog.Catalog
	sessions  *session.Store
	advisor   http.Handler
	pages     map[string]*template.Template
	version   string
	logger    *log.Logger
}

// New parses every page template once.
func New(svc Services, version string, logger *log.Logger) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[mosspay] ", log.LstdFlags)
	}
	if svc.Sessions == nil {
		svc.Sessions = session.NewStore(0)
	}
	return &Server{
		accounts:  svc.Accounts,
		inventory: svc.Inventory,
		billing:   svc.Billing,
		rewards:   svc.Rewards,
		catalog:   svc.Catalog,
		sessions:  svc.Sessions,
		advisor:   svc.Advisor,
		pages:     pages,
		version:   version,
		logger:    logger,
	}, nil
}

// Handler exposes the mux with pages, JSON endpoints and the advisor socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.index)

	mux.HandleFunc("/consumer/login", s.consumerLogin)
	mux.HandleFunc("/consumer/register", s.consumerRegister)
	mux.HandleFunc("/logout", s.consumerLogout)
	mux.Handle("/consumer/dashboard", s.consumerPage(s.consumerDashboard))
	mux.Handle("/consumer/log_purchase", s.consumerPage(s.logPurchasePage))
	mux.Handle("/consumer/discover_vendors", s.consumerPage(s.discoverVendors))
	mux.Handle("/vendor_profile/{id}", s.consumerPage(s.vendorProfile))
	mux.Handle("/consumer/leaderboard", s.consumerPage(s.leaderboard))
	mux.Handle("/consumer/my_sprout", s.consumerPage(s.mySprout))
	mux.Handle("/consumer/redeem", s.consumerPage(s.redeemPage))
	mux.Handle("/consumer/eco_advisor", s.consumerPage(s.ecoAdvisor))
	mux.Handle("/consumer/refer_and_earn", s.consumerPage(s.referAndEarn))
	mux.Handle("/consumer/settings", s.consumerPage(s.consumerSettings))

	mux.HandleFunc("/vendor/login", s.vendorLogin)
	mux.HandleFunc("/vendor/register", s.vendorRegister)
	mux.HandleFunc("/vendor/logout", s.vendorLogout)
	mux.Handle("/vendor/dashboard", s.vendorPage(s.vendorDashboard))
	mux.Handle("/vendor/manage_items", s.vendorPage(s.manageItems))
	mux.Handle("/vendor/generate_bill", s.vendorPage(s.generateBill))
	mux.Handle("/vendor/manage_profile", s.vendorPage(s.manageProfile))
	mux.Handle("/vendor/manage_offers", s.vendorPage(s.manageOffers))
	mux.Handle("/vendor/transaction_history", s.vendorPage(s.transactionHistory))
	mux.Handle("/vendor/transaction_history.xlsx", s.vendorPage(s.transactionExport))
	mux.Handle("/vendor/customer_insights", s.vendorPage(s.customerInsights))
	mux.Handle("/vendor/settings", s.vendorPage(s.vendorSettings))

	mux.Handle("/api/consumer/log-purchase", s.consumerAPI(http.MethodPost, s.apiLogPurchase))
	mux.Handle("/api/consumer/redeem-reward", s.consumerAPI(http.MethodPost, s.apiRedeemReward))
	mux.Handle("/api/consumer/change-password", s.consumerAPI(http.MethodPost, s.apiConsumerChangePassword))
	mux.Handle("/api/vendor/add-item", s.vendorAPI(http.MethodPost, s.apiAddItem))
	mux.Handle("/api/vendor/items", s.vendorAPI(http.MethodDelete, s.apiDeleteItem))
	mux.Handle("/api/vendor/send-bill-to-phone", s.vendorAPI(http.MethodPost, s.apiSendBill))
	mux.Handle("/api/vendor/change-password", s.vendorAPI(http.MethodPost, s.apiVendorChangePassword))
	mux.HandleFunc("/api/health", s.health)

	if s.advisor != nil {
		mux.Handle("/ws/eco-advisor", s.requireConsumer(s.advisor))
	}
	return mux
}

// pageData is what every template receives.
type pageData struct {
	Flash string
	Role  session.Role
	Data  any
}

func parsePages() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string { return "₹" + d.StringFixed(2) },
		"kg":    func(d decimal.Decimal) string { return d.StringFixed(1) },
		"kgf":   func(f float64) string { return fmt.Sprintf("%.1f", f) },
		"lower": strings.ToLower,
		"date":  func(t time.Time) string { return t.Format("02 Jan 2006, 03:04 PM") },
		"pct":   func(f float64) string { return fmt.Sprintf("%.0f", f) },
	}
	names, err := fs.Glob(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		base := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".gohtml")
		if base == "layout" {
			continue
		}
		tmpl, err := template.New(base).Funcs(funcs).ParseFS(templateFS, "templates/layout.gohtml", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[base] = tmpl
	}
	return pages, nil
}

// render executes a page inside the shared layout and consumes any pending flash message.
func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, role session.Role, data any) {
	tmpl, ok := s.pages[page]
	if !ok {
		s.logger.Printf("render failed: unknown page %s", page)
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}
	view := pageData{Flash: s.takeFlash(w, r), Role: role, Data: data}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", view); err != nil {
		s.logger.Printf("render %s failed: %v", page, err)
	}
}

// redirect stores a one-shot message for the next page and sends the browser there.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target, flash string) {
	if flash != "" {
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: url.QueryEscape(flash), Path: "/", HttpOnly: true})
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return msg
}

// respondJSON keeps JSON formatting consistent across endpoints.
func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Printf("encode response failed: %v", err)
	}
}

// respondError writes the {"error": message} body every client expects.
func (s *Server) respondError(w http.ResponseWriter, message string, status int) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
