package service

import "errors"

var (
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientStock is returned when the requested quantity exceeds the variant stock.
	ErrInsufficientStock = errors.New("not enough stock available")
	// ErrNotAuthenticated is returned for operations that need a logged in visitor.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrVariantRequired is returned when a product is added without a valid variant.
	ErrVariantRequired = errors.New("please select a variant")
	// ErrProductNotFound is returned when the backend has no product for a slug.
	ErrProductNotFound = errors.New("product not found")
	// ErrEmptyCart is returned when checking out a cart without items.
	ErrEmptyCart = errors.New("cart is empty")
)
