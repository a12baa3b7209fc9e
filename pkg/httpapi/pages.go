package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mosspay/pkg/account"
	"mosspay/pkg/advisor"
	"mosspay/pkg/billing"
	"mosspay/pkg/catalog"
	"mosspay/pkg/inventory"
	"mosspay/pkg/rewards"
	"mosspay/pkg/session"
)

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.render(w, r, "index", "", nil)
}

func (s *Server) consumerDashboard(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	s.render(w, r, "consumer_dashboard", session.Consumer, struct {
		User   account.Consumer
		Sprout account.Sprout
	}{c, account.SproutFor(c)})
}

func (s *Server) logPurchasePage(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bills, err := s.billing.ForConsumer(ctx, c.ID)
	if err != nil {
		s.logger.Printf("log purchase page for consumer %d failed: %v", c.ID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "log_purchase", session.Consumer, struct {
		User  account.Consumer
		Bills []billing.View
	}{c, bills})
}

func (s *Server) discoverVendors(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	vendors, err := s.accounts.Vendors(ctx)
	if err != nil {
		s.logger.Printf("discover vendors failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if term != "" {
		ids, err := s.inventory.VendorsSelling(ctx, term)
		if err != nil {
			s.logger.Printf("discover vendors search %q failed: %v", term, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		selling := make(map[int64]bool, len(ids))
		for _, id := range ids {
			selling[id] = true
		}
		matched := vendors[:0]
		for _, v := range vendors {
			if selling[v.ID] {
				matched = append(matched, v)
			}
		}
		vendors = matched
	}
	s.render(w, r, "discover_vendors", session.Consumer, struct {
		Vendors    []account.Vendor
		SearchTerm string
	}{vendors, term})
}

func (s *Server) vendorProfile(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	v, err := s.accounts.Vendor(ctx, id)
	if errors.Is(err, account.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Printf("vendor profile %d failed: %v", id, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	items, err := s.inventory.ByVendor(ctx, id)
	if err != nil {
		s.logger.Printf("vendor profile %d items failed: %v", id, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "vendor_profile", session.Consumer, struct {
		Vendor account.Vendor
		Items  []inventory.Item
	}{v, items})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ranked, err := s.accounts.Leaderboard(ctx)
	if err != nil {
		s.logger.Printf("leaderboard failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "leaderboard", session.Consumer, struct {
		User  account.Consumer
		Users []account.Consumer
	}{c, ranked})
}

func (s *Server) mySprout(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	s.render(w, r, "my_sprout", session.Consumer, struct {
		User   account.Consumer
		Sprout account.Sprout
		GoalKG float64
	}{c, account.SproutFor(c), account.SproutGoalKG})
}

func (s *Server) redeemPage(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	offers, err := s.rewards.ActiveOffers(ctx)
	if err != nil {
		s.logger.Printf("redeem page offers failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "redeem", session.Consumer, struct {
		User       account.Consumer
		Government []catalog.Reward
		Offers     []rewards.Listing
	}{c, s.rewards.Government(), offers})
}

func (s *Server) ecoAdvisor(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	s.render(w, r, "eco_advisor", session.Consumer, struct {
		Questions []string
		Socket    string
	}{advisor.Questions(), "/ws/eco-advisor"})
}

func (s *Server) referAndEarn(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	s.render(w, r, "refer_and_earn", session.Consumer, struct {
		ReferralCode string
	}{account.ReferralCode(c)})
}

func (s *Server) consumerSettings(w http.ResponseWriter, r *http.Request, c account.Consumer) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "consumer_settings", session.Consumer, struct{ User account.Consumer }{c})
	case http.MethodPost:
		if r.FormValue("form_name") != "update_profile" {
			s.redirect(w, r, "/consumer/settings", "")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		_, err := s.accounts.UpdateConsumerProfile(ctx, c.ID, r.FormValue("fullname"), r.FormValue("email"), r.FormValue("phone"))
		if err != nil {
			s.logger.Printf("consumer %d profile update rejected: %v", c.ID, err)
			s.redirect(w, r, "/consumer/settings", formMessage(err, account.IsValidation))
			return
		}
		s.redirect(w, r, "/consumer/settings", "Profile updated successfully!")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) vendorDashboard(w http.ResponseWriter, r *http.Request, v account.Vendor) {
	s.render(w, r, "vendor_dashboard", session.Vendor, struct{ Vendor account.Vendor }{v})
}

func (s *Server) manageItems(w http.ResponseWriter, r *http.Request, v account.Vendor) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := s.inventory.ByVendor(ctx, v.ID)
	if err != nil {
		s.logger.Printf("manage items for vendor %d failed: %v", v.ID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "manage_items", session.Vendor, struct {
		Items  []inventory.Item
		Carbon []catalog.CarbonFactor
	}{items, s.catalog.Carbon})
}

func (s *Server) generateBill(w http.ResponseWriter, r *http.Request, v account.Vendor) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := s.inventory.InStock(ctx, v.ID)
	if err != nil {
		s.logger.Printf("generate bill for vendor %d failed: %v", v.ID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "generate_bill", session.Vendor, struct{ Items []inventory.Item }{items})
}

func (s *Server) manageProfile(w http.ResponseWriter, r *http.Request, v account.Vendor) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "manage_profile", session.Vendor, struct{ Vendor account.Vendor }{v})
	case http.MethodPost:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		_, err := s.accounts.UpdateVendorProfile(ctx, v.ID, account.VendorProfile{
			BusinessName: r.FormValue("business_name"),
			ContactName:  r.FormValue("contact_name"),
			Mobile:       r.FormValue("mobile"),
			Address:      r.FormValue("address"),
			ShopCategory: r.FormValue("shop_category"),
			Description:  r.FormValue("description"),
			LogoURL:      r.FormValue("logo_url"),
			WebsiteURL:   r.FormValue("website_url"),
		})
		if err != nil {
			s.logger.Printf("vendor %d profile update rejected: %v", v.ID, err)
			s.redirect(w, r, "/vendor/manage_profile", "Error updating profile: "+err.Error())
			return
		}
		s.redirect(w, r, "/vendor/manage_profile", "Profile updated successfully!")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) manageOffers(w http.ResponseWriter, r *http.Request, v account.Vendor) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		offers, err := s.rewards.VendorOffers(ctx, v.ID)
		if err != nil {
			s.logger.Printf("manage offers for vendor %d failed: %v", v.ID, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.render(w, r, "manage_offers", session.Vendor, struct{ Offers []rewards.Offer }{offers})
	case http.MethodPost:
		if r.FormValue("action") == "expire" {
			id, err := strconv.ParseInt(r.FormValue("offer_id"), 10, 64)
			if err == nil {
				err = s.rewards.ExpireOffer(ctx, v.ID, id)
			}
			if err != nil {
				s.logger.Printf("vendor %d offer expiry rejected: %v", v.ID, err)
				s.redirect(w, r, "/vendor/manage_offers", "Error expiring offer: "+err.Error())
				return
			}
			s.redirect(w, r, "/vendor/manage_offers", "Offer expired.")
			return
		}
		cost, err := strconv.Atoi(strings.TrimSpace(r.FormValue("mosscoin_cost")))
		if err != nil {
			s.redirect(w, r, "/vendor/manage_offers", "Error creating offer: MossCoin cost must be a number.")
			return
		}
		offer, err := s.rewards.CreateOffer(ctx, v.ID, rewards.NewOffer{
			Title:        r.FormValue("title"),
			Description:  r.FormValue("description"),
			MossCoinCost: cost,
		})
		if err != nil {
			s.logger.Printf("vendor %d offer rejected: %v", v.ID, err)
			s.redirect(w, r, "/vendor/manage_offers", "Error creating offer: "+err.Error())
			return
		}
		s.logger.Printf("vendor %d created offer %d", v.ID, offer.ID)
		s.redirect(w, r, "/vendor/manage_offers", "New offer created successfully!")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) transactionHistory(w http.ResponseWriter, r *http.Request, v account.Vendor) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	views, err := s.billing.ForVendor(ctx, v.ID)
	if err != nil {
		s.logger.Printf("transaction history for vendor %d failed: %v", v.ID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "transaction_history", session.Vendor, struct{ Transactions []billing.View }{views})
}

func (s *Server) transactionExport(w http.ResponseWriter, r *http.Request, v account.Vendor) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	views, err := s.billing.ForVendor(ctx, v.ID)
	if err != nil {
		s.logger.Printf("transaction export for vendor %d failed: %v", v.ID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.xlsx"`)
	if err := billing.WriteHistory(w, views); err != nil {
		s.logger.Printf("transaction export for vendor %d failed: %v", v.ID, err)
		return
	}
	s.logger.Printf("vendor %d exported %d transactions", v.ID, len(views))
}

func (s *Server) customerInsights(w http.ResponseWriter, r *http.Request, v account.Vendor) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	insights, err := s.billing.Insights(ctx, v.ID)
	if err != nil {
		s.logger.Printf("customer insights for vendor %d failed: %v", v.ID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, r, "customer_insights", session.Vendor, insights)
}

func (s *Server) vendorSettings(w http.ResponseWriter, r *http.Request, v account.Vendor) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "vendor_settings", session.Vendor, struct{ Vendor account.Vendor }{v})
	case http.MethodPost:
		if r.FormValue("form_name") != "update_profile" {
			s.redirect(w, r, "/vendor/settings", "")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		_, err := s.accounts.UpdateVendorAccount(ctx, v.ID, r.FormValue("contact_name"), r.FormValue("email"), r.FormValue("mobile"))
		if err != nil {
			s.logger.Printf("vendor %d account update rejected: %v", v.ID, err)
			s.redirect(w, r, "/vendor/settings", formMessage(err, account.IsValidation))
			return
		}
		s.redirect(w, r, "/vendor/settings", "Account details updated successfully!")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
