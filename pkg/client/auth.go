package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LoginConsumer signs in through the consumer login form.
func (c *Client) LoginConsumer(ctx context.Context, email, password string) error {
	if err := c.login(ctx, "/consumer/login", "/consumer/dashboard", email, password); err != nil {
		return err
	}
	c.role = RoleConsumer
	return nil
}

// LoginVendor signs in through the vendor login form.
func (c *Client) LoginVendor(ctx context.Context, email, password string) error {
	if err := c.login(ctx, "/vendor/login", "/vendor/dashboard", email, password); err != nil {
		return err
	}
	c.role = RoleVendor
	return nil
}

func (c *Client) login(ctx context.Context, path, landing, email, password string) error {
	form := url.Values{"email": {email}, "password": {password}}
	final, doc, err := c.submit(ctx, path, form)
	if err != nil {
		return err
	}
	if final != landing {
		return &APIError{Status: http.StatusUnauthorized, Message: flashOr(doc, "Login failed.")}
	}
	return nil
}

// submit posts a form, follows the redirect and returns where the browser landed.
func (c *Client) submit(ctx context.Context, path string, form url.Values) (string, *goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), strings.NewReader(form.Encode()))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("%s: parse html: %w", path, err)
	}
	return resp.Request.URL.Path, doc, nil
}

// ConsumerSignup is the consumer registration form.
type ConsumerSignup struct {
	FullName, Email, Phone, DOB, Password string
}

// RegisterConsumer creates a consumer account; it does not log in.
func (c *Client) RegisterConsumer(ctx context.Context, in ConsumerSignup) (string, error) {
	return c.register(ctx, "/consumer/register", "/consumer/login", url.Values{
		"fullname": {in.FullName}, "email": {in.Email}, "phone": {in.Phone}, "dob": {in.DOB},
		"password": {in.Password}, "confirm_password": {in.Password},
	})
}

// VendorSignup is the vendor registration form.
type VendorSignup struct {
	BusinessName, ContactName, Email, Mobile, UdyamID, Address, Password string
}

// RegisterVendor creates a vendor account; it does not log in.
func (c *Client) RegisterVendor(ctx context.Context, in VendorSignup) (string, error) {
	return c.register(ctx, "/vendor/register", "/vendor/login", url.Values{
		"business_name": {in.BusinessName}, "contact_name": {in.ContactName}, "email": {in.Email},
		"mobile": {in.Mobile}, "udyam_id": {in.UdyamID}, "address": {in.Address},
		"password": {in.Password}, "confirm_password": {in.Password},
	})
}

// register returns the success flash, or the rejection as an *APIError.
func (c *Client) register(ctx context.Context, path, landing string, form url.Values) (string, error) {
	final, doc, err := c.submit(ctx, path, form)
	if err != nil {
		return "", err
	}
	msg := flashOr(doc, "")
	if final != landing {
		if msg == "" {
			msg = "Registration failed."
		}
		return "", &APIError{Status: http.StatusBadRequest, Message: msg}
	}
	return msg, nil
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	var path string
	switch c.role {
	case RoleConsumer:
		path = "/logout"
	case RoleVendor:
		path = "/vendor/logout"
	default:
		return ErrNotLoggedIn
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	resp.Body.Close()
	c.role = RoleNone
	return nil
}
