package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront/apiclient"
	"storefront/service"
)

const msgSomethingWrong = "Something went wrong, please try again"

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// wantsJSON reports whether the caller asked for JSON instead of a page.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// errorStatus maps service and backend errors to an HTTP status and the
// message shown to the visitor.
func errorStatus(err error) (int, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, verr.Error()
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrVariantRequired):
		return http.StatusBadRequest, "Please select a variant"
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict, "Not enough stock available"
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusBadRequest, "Your cart is empty"
	case errors.Is(err, service.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized, "Please log in to continue"
	}

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		msg := apiclient.UserMessage(err, msgSomethingWrong)
		switch {
		case apiErr.Status == 0:
			return http.StatusBadGateway, msgSomethingWrong
		case apiErr.Status == http.StatusRequestTimeout:
			return http.StatusGatewayTimeout, "The store is taking too long to respond"
		case apiErr.Status >= 400 && apiErr.Status < 500:
			return apiErr.Status, msg
		}
		return http.StatusBadGateway, msgSomethingWrong
	}
	return http.StatusInternalServerError, msgSomethingWrong
}
