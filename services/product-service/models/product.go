package models

import "github.com/yashrajoria/shopflow/services/common/events"

// Product is the catalog record. It shares its shape with the snapshot carried
// in purchase intents so the catalog can publish stored documents as-is.
type Product = events.Product

// ProductPage is one page of the catalog listing.
type ProductPage struct {
	Products   []Product `json:"products"`
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
	Total      int64     `json:"total"`
	TotalPages int       `json:"totalPages"`
}
