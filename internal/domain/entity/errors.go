package entity

import "errors"

var (
	// ErrStockConflict is returned when a product's stock changed between read and commit
	ErrStockConflict = errors.New("stock changed concurrently")
	// ErrProductNotFound is returned when a product id does not exist
	ErrProductNotFound = errors.New("product not found")
)
