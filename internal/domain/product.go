package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ProductCreationRequest is a validated product payload ready to be sent to
// Shopify. Strings are trimmed and every rule in its validate tags holds.
type ProductCreationRequest struct {
	Title       string      `json:"title" validate:"required,max=255"`
	Description *string     `json:"description,omitempty"`
	Variations  []Variation `json:"variations" validate:"required,min=1,dive"`
}

// Variation is one purchasable configuration of a product, such as
// "Red / Small", with its own price and stock level.
type Variation struct {
	Title             string           `json:"title" validate:"required,max=255"`
	Price             *decimal.Decimal `json:"price" validate:"required"`
	InventoryQuantity *int64           `json:"inventory_quantity,omitempty" validate:"omitempty,gte=0"`
	Images            []Image          `json:"images,omitempty" validate:"omitempty,dive"`
}

// Image points at a publicly reachable picture of a variation.
type Image struct {
	Src string `json:"src" validate:"required,http_url"`
}

// ImageSources returns the distinct image URLs of all variations in order of
// first appearance.
func (r ProductCreationRequest) ImageSources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range r.Variations {
		for _, img := range v.Images {
			if _, ok := seen[img.Src]; ok {
				continue
			}
			seen[img.Src] = struct{}{}
			out = append(out, img.Src)
		}
	}
	return out
}

// HasInventory reports whether any variation carries a stock level.
func (r ProductCreationRequest) HasInventory() bool {
	for _, v := range r.Variations {
		if v.InventoryQuantity != nil {
			return true
		}
	}
	return false
}

// Credentials identify the shop a request acts on. They are taken from
// request headers and never stored.
type Credentials struct {
	ShopDomain  string
	AccessToken string
}

// CredentialsFromHeaders reads the shop domain and access token headers.
func CredentialsFromHeaders(get func(string) string) Credentials {
	return Credentials{
		ShopDomain:  strings.TrimSpace(get(HeaderShopDomain)),
		AccessToken: strings.TrimSpace(get(HeaderAccessToken)),
	}
}

// Complete reports whether both the shop domain and the token are present.
func (c Credentials) Complete() bool {
	return c.ShopDomain != "" && c.AccessToken != ""
}

// Shopify request headers.
const (
	HeaderShopDomain  = "X-Shopify-Shop-Domain"
	HeaderAccessToken = "X-Shopify-Access-Token"
)

// CreationResult is the outcome of a product creation attempt. On failure
// exactly one of Errors (a structured rejection of the payload) or Error (any
// other failure) is set.
type CreationResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Product json.RawMessage `json:"product,omitempty"`
	Errors  map[string]any  `json:"errors,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Outcome labels used in logs and metrics.
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Outcome classifies the result as created, rejected or failed.
func (r CreationResult) Outcome() string {
	switch {
	case r.Success:
		return OutcomeCreated
	case r.Errors != nil:
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

// Created builds a successful result around the remote product.
func Created(product json.RawMessage) CreationResult {
	return CreationResult{
		Success: true,
		Message: "Product created successfully",
		Product: product,
	}
}

// Rejected builds a failed result carrying per-field remote errors.
func Rejected(errs map[string]any) CreationResult {
	if errs == nil {
		errs = map[string]any{}
	}
	return CreationResult{
		Success: false,
		Message: "Failed to create product",
		Errors:  errs,
	}
}

// Failed builds a failed result with an opaque description.
func Failed(description string) CreationResult {
	return CreationResult{
		Success: false,
		Message: "Failed to create product",
		Error:   description,
	}
}
