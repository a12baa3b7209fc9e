package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shopspring/decimal"

	"mosspay/pkg/account"
	"mosspay/pkg/billing"
	"mosspay/pkg/inventory"
	"mosspay/pkg/rewards"
)

// flexNumber accepts both 12 and "12": browsers send form values and data-* attributes as strings.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = flexNumber(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = flexNumber(num.String())
	return nil
}

func (n flexNumber) empty() bool { return n == "" }

func (n flexNumber) int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

func (n flexNumber) int() (int, error) {
	v, err := strconv.Atoi(string(n))
	if err != nil {
		f, ferr := strconv.ParseFloat(string(n), 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, err
		}
		return int(f), nil
	}
	return v, nil
}

func (n flexNumber) decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(string(n))
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func (s *Server) apiLogPurchase(w http.ResponseWriter, r *http.Request, consumerID int64) {
	var payload struct {
		BillID flexNumber `json:"bill_id"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.logger.Printf("log purchase failed: unable to decode payload: %v", err)
		s.respondError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	var billID int64
	if !payload.BillID.empty() {
		id, err := payload.BillID.int64()
		if err != nil {
			s.logger.Printf("log purchase rejected: invalid bill id %q", payload.BillID)
			s.respondError(w, "Bill not found.", http.StatusNotFound)
			return
		}
		billID = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := s.billing.Log(ctx, consumerID, billID)
	if err != nil {
		status := billingStatus(err)
		s.logger.Printf("log purchase of bill %d by consumer %d failed: %v", billID, consumerID, err)
		s.respondError(w, err.Error(), status)
		return
	}
	s.logger.Printf("bill %d logged by consumer %d, balance now %d", billID, consumerID, result.NewBalance)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":       result.Message,
		"new_balance":   result.NewBalance,
		"new_co2_saved": result.NewCO2Saved,
	})
}

func billingStatus(err error) int {
	switch {
	case billing.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, billing.ErrForbidden):
		return http.StatusForbidden
	case billing.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) apiRedeemReward(w http.ResponseWriter, r *http.Request, consumerID int64) {
	var payload struct {
		RewardID string `json:"reward_id"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.logger.Printf("redeem failed: unable to decode payload: %v", err)
		s.respondError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	got, err := s.rewards.Redeem(ctx, consumerID, payload.RewardID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case rewards.IsValidation(err):
			status = http.StatusBadRequest
		case rewards.IsNotFound(err):
			status = http.StatusNotFound
		}
		s.logger.Printf("redeem of %q by consumer %d failed: %v", payload.RewardID, consumerID, err)
		s.respondError(w, err.Error(), status)
		return
	}
	s.logger.Printf("consumer %d redeemed %s, balance now %d", consumerID, payload.RewardID, got.NewBalance)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message":     got.Message,
		"new_balance": got.NewBalance,
	})
}

type passwordPayload struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (s *Server) apiConsumerChangePassword(w http.ResponseWriter, r *http.Request, consumerID int64) {
	s.changePassword(w, r, "consumer", consumerID, s.accounts.ChangeConsumerPassword)
}

func (s *Server) apiVendorChangePassword(w http.ResponseWriter, r *http.Request, vendorID int64) {
	s.changePassword(w, r, "vendor", vendorID, s.accounts.ChangeVendorPassword)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, who string, id int64,
	change func(ctx context.Context, id int64, oldPassword, newPassword string) error) {
	var payload passwordPayload
	if err := decodeJSON(r, &payload); err != nil {
		s.logger.Printf("%s password change failed: unable to decode payload: %v", who, err)
		s.respondError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := change(ctx, id, payload.OldPassword, payload.NewPassword); err != nil {
		status := http.StatusInternalServerError
		if account.IsValidation(err) {
			status = http.StatusBadRequest
		}
		s.logger.Printf("%s %d password change failed: %v", who, id, err)
		s.respondError(w, err.Error(), status)
		return
	}
	s.logger.Printf("%s %d changed password", who, id)
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully!"})
}

// itemResponse mirrors the row the manage-items table appends.
type itemResponse struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Unit          string  `json:"unit"`
	Stock         int     `json:"stock"`
	CarbonSavedKG float64 `json:"carbon_saved_kg"`
}

func (s *Server) apiAddItem(w http.ResponseWriter, r *http.Request, vendorID int64) {
	var payload struct {
		Name  string     `json:"name"`
		Price flexNumber `json:"price"`
		Unit  string     `json:"unit"`
		Stock flexNumber `json:"stock"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.logger.Printf("add item failed: unable to decode payload: %v", err)
		s.respondError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" || strings.TrimSpace(payload.Unit) == "" || payload.Price.empty() || payload.Stock.empty() {
		s.logger.Printf("add item rejected for vendor %d: missing fields", vendorID)
		s.respondError(w, "Please fill out all fields.", http.StatusBadRequest)
		return
	}
	price, err := payload.Price.decimal()
	if err != nil {
		s.logger.Printf("add item rejected for vendor %d: invalid price %q", vendorID, payload.Price)
		s.respondError(w, "Price must be a number.", http.StatusBadRequest)
		return
	}
	stock, err := payload.Stock.int()
	if err != nil {
		s.logger.Printf("add item rejected for vendor %d: invalid stock %q", vendorID, payload.Stock)
		s.respondError(w, "Stock must be a whole number.", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	item, err := s.inventory.Add(ctx, vendorID, inventory.NewItem{Name: payload.Name, Price: price, Unit: payload.Unit, Stock: stock})
	if err != nil {
		status := http.StatusInternalServerError
		if inventory.IsValidation(err) {
			status = http.StatusBadRequest
		}
		s.logger.Printf("add item failed for vendor %d: %v", vendorID, err)
		s.respondError(w, err.Error(), status)
		return
	}
	s.logger.Printf("vendor %d added item %s with %d units", vendorID, item.Name, item.Stock)
	s.respondJSON(w, http.StatusCreated, itemResponse{
		ID:            item.ID,
		Name:          item.Name,
		Price:         item.Price.InexactFloat64(),
		Unit:          item.Unit,
		Stock:         item.Stock,
		CarbonSavedKG: item.CarbonSavedKG.InexactFloat64(),
	})
}

// apiDeleteItem removes an item using the query id.
func (s *Server) apiDeleteItem(w http.ResponseWriter, r *http.Request, vendorID int64) {
	rawID := r.URL.Query().Get("id")
	if rawID == "" {
		s.logger.Printf("item delete rejected: missing id")
		s.respondError(w, "id is required", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		s.logger.Printf("item delete rejected: invalid id %s", rawID)
		s.respondError(w, "invalid id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.inventory.Delete(ctx, vendorID, id); err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			s.logger.Printf("item delete failed: item %d not found for vendor %d", id, vendorID)
			s.respondError(w, "Item not found.", http.StatusNotFound)
			return
		}
		s.logger.Printf("item delete failed for %d: %v", id, err)
		s.respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Printf("vendor %d deleted item %d", vendorID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiSendBill(w http.ResponseWriter, r *http.Request, vendorID int64) {
	type linePayload struct {
		ID       flexNumber `json:"id"`
		Quantity flexNumber `json:"quantity"`
	}
	var payload struct {
		Phone string        `json:"phone"`
		Cart  []linePayload `json:"cart"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.logger.Printf("send bill failed: unable to decode payload: %v", err)
		s.respondError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	lines := make([]inventory.Line, 0, len(payload.Cart))
	for _, l := range payload.Cart {
		id, err := l.ID.int64()
		if err != nil {
			s.logger.Printf("send bill rejected for vendor %d: invalid item id %q", vendorID, l.ID)
			s.respondError(w, fmt.Sprintf("Item ID %s not found.", l.ID), http.StatusBadRequest)
			return
		}
		qty, err := l.Quantity.int()
		if err != nil {
			s.logger.Printf("send bill rejected for vendor %d: invalid quantity %q", vendorID, l.Quantity)
			s.respondError(w, fmt.Sprintf("Quantity for item ID %d must be positive.", id), http.StatusBadRequest)
			return
		}
		lines = append(lines, inventory.Line{ItemID: id, Quantity: qty})
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	receipt, err := s.billing.Send(ctx, vendorID, payload.Phone, lines)
	if err != nil {
		s.logger.Printf("send bill from vendor %d to %s failed: %v", vendorID, payload.Phone, err)
		s.respondError(w, err.Error(), billingStatus(err))
		return
	}
	s.logger.Printf("vendor %d sent bill %d with %d lines", vendorID, receipt.BillID, len(lines))
	s.respondJSON(w, http.StatusCreated, map[string]any{
		"message": receipt.Message,
		"bill_id": receipt.BillID,
	})
}

// health reports liveness together with host memory figures.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"goroutines": runtime.NumGoroutine(),
		"sessions":   s.sessions.Len(),
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		body["memory"] = map[string]any{
			"total":        vm.Total,
			"used":         vm.Used,
			"used_percent": vm.UsedPercent,
		}
	} else {
		s.logger.Printf("health: memory stats unavailable: %v", err)
	}
	s.respondJSON(w, http.StatusOK, body)
}
