package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mosspay/pkg/account"
	"mosspay/pkg/session"
)

type consumerHandler func(w http.ResponseWriter, r *http.Request, c account.Consumer)

type vendorHandler func(w http.ResponseWriter, r *http.Request, v account.Vendor)

// consumerPage loads the logged-in consumer or sends the browser to the login form.
func (s *Server) consumerPage(next consumerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.FromRequest(r, session.Consumer)
		if !ok {
			s.redirect(w, r, "/consumer/login", "Please log in to access this page.")
			return
		}
		c, err := s.accounts.Consumer(r.Context(), sess.AccountID)
		if err != nil {
			s.logger.Printf("consumer page %s: session %d has no account: %v", r.URL.Path, sess.AccountID, err)
			s.sessions.Delete(sess.Token)
			s.redirect(w, r, "/consumer/login", "Please log in to access this page.")
			return
		}
		next(w, r, c)
	})
}

// vendorPage loads the logged-in vendor or sends the browser to the vendor login form.
func (s *Server) vendorPage(next vendorHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.FromRequest(r, session.Vendor)
		if !ok {
			s.redirect(w, r, "/vendor/login", "You must be logged in to see this page.")
			return
		}
		v, err := s.accounts.Vendor(r.Context(), sess.AccountID)
		if err != nil {
			s.logger.Printf("vendor page %s: session %d has no account: %v", r.URL.Path, sess.AccountID, err)
			s.sessions.Delete(sess.Token)
			s.redirect(w, r, "/vendor/login", "Could not find vendor. Please log in again.")
			return
		}
		next(w, r, v)
	})
}

// consumerAPI rejects requests without a consumer session with 401.
func (s *Server) consumerAPI(method string, next func(w http.ResponseWriter, r *http.Request, consumerID int64)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			s.respondError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, ok := s.sessions.FromRequest(r, session.Consumer)
		if !ok {
			s.logger.Printf("%s rejected: no consumer session", r.URL.Path)
			s.respondError(w, "Not authorized", http.StatusUnauthorized)
			return
		}
		next(w, r, sess.AccountID)
	})
}

// vendorAPI rejects requests without a vendor session with 401.
func (s *Server) vendorAPI(method string, next func(w http.ResponseWriter, r *http.Request, vendorID int64)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			s.respondError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sess, ok := s.sessions.FromRequest(r, session.Vendor)
		if !ok {
			s.logger.Printf("%s rejected: no vendor session", r.URL.Path)
			s.respondError(w, "Not authorized", http.StatusUnauthorized)
			return
		}
		next(w, r, sess.AccountID)
	})
}

func (s *Server) requireConsumer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.sessions.FromRequest(r, session.Consumer); !ok {
			s.respondError(w, "Not authorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) consumerLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.sessions.FromRequest(r, session.Consumer); ok {
			http.Redirect(w, r, "/consumer/dashboard", http.StatusSeeOther)
			return
		}
		s.render(w, r, "consumer_login", "", nil)
	case http.MethodPost:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		c, err := s.accounts.AuthenticateConsumer(ctx, r.FormValue("email"), r.FormValue("password"))
		if err != nil {
			s.logger.Printf("consumer login failed for %s: %v", r.FormValue("email"), err)
			s.redirect(w, r, "/consumer/login", loginMessage(err))
			return
		}
		session.SetCookie(w, s.sessions.Create(session.Consumer, c.ID))
		s.logger.Printf("consumer %d logged in", c.ID)
		http.Redirect(w, r, "/consumer/dashboard", http.StatusSeeOther)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) vendorLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.sessions.FromRequest(r, session.Vendor); ok {
			http.Redirect(w, r, "/vendor/dashboard", http.StatusSeeOther)
			return
		}
		s.render(w, r, "vendor_login", "", nil)
	case http.MethodPost:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		v, err := s.accounts.AuthenticateVendor(ctx, r.FormValue("email"), r.FormValue("password"))
		if err != nil {
			s.logger.Printf("vendor login failed for %s: %v", r.FormValue("email"), err)
			s.redirect(w, r, "/vendor/login", loginMessage(err))
			return
		}
		session.SetCookie(w, s.sessions.Create(session.Vendor, v.ID))
		s.logger.Printf("vendor %d logged in", v.ID)
		http.Redirect(w, r, "/vendor/dashboard", http.StatusSeeOther)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func loginMessage(err error) string {
	if errors.Is(err, account.ErrInvalidCredentials) {
		return err.Error()
	}
	return "An error occurred: " + err.Error()
}

func (s *Server) consumerRegister(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "consumer_register", "", nil)
	case http.MethodPost:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		c, err := s.accounts.RegisterConsumer(ctx, account.ConsumerRegistration{
			FullName:        r.FormValue("fullname"),
			Email:           r.FormValue("email"),
			Phone:           r.FormValue("phone"),
			DOB:             r.FormValue("dob"),
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirm_password"),
		})
		if err != nil {
			s.logger.Printf("consumer registration rejected for %s: %v", r.FormValue("email"), err)
			s.redirect(w, r, "/consumer/register", formMessage(err, account.IsValidation))
			return
		}
		s.logger.Printf("consumer %d registered", c.ID)
		s.redirect(w, r, "/consumer/login", "User registered successfully!")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) vendorRegister(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "vendor_register", "", nil)
	case http.MethodPost:
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		v, err := s.accounts.RegisterVendor(ctx, account.VendorRegistration{
			BusinessName:    r.FormValue("business_name"),
			ContactName:     r.FormValue("contact_name"),
			Email:           r.FormValue("email"),
			Mobile:          r.FormValue("mobile"),
			UdyamID:         r.FormValue("udyam_id"),
			Address:         r.FormValue("address"),
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirm_password"),
		})
		if err != nil {
			s.logger.Printf("vendor registration rejected for %s: %v", r.FormValue("email"), err)
			s.redirect(w, r, "/vendor/register", formMessage(err, account.IsValidation))
			return
		}
		s.logger.Printf("vendor %d registered", v.ID)
		s.redirect(w, r, "/vendor/login", "Vendor registered successfully! Please log in.")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// formMessage shows validation errors verbatim and prefixes anything else.
func formMessage(err error, isValidation func(error) bool) string {
	if isValidation(err) {
		return err.Error()
	}
	return "An error occurred: " + err.Error()
}

func (s *Server) consumerLogout(w http.ResponseWriter, r *http.Request) {
	s.logout(w, r)
	s.redirect(w, r, "/consumer/login", "You have been logged out.")
}

func (s *Server) vendorLogout(w http.ResponseWriter, r *http.Request) {
	s.logout(w, r)
	s.redirect(w, r, "/vendor/login", "You have been logged out.")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		s.sessions.Delete(cookie.Value)
	}
	session.ClearCookie(w)
}
