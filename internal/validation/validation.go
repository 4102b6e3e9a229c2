// Package validation turns a raw product creation body into a typed request
// or a map of field paths to messages.
//
// Checking happens in two stages. The shape stage walks the decoded JSON and
// rejects values of the wrong type (a price that is not a number, images that
// are not a list). The rule stage runs the struct tags of the typed request
// through pkg/validator. Every violation from both stages is reported.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/shopify-product-bridge/internal/domain"
	"github.com/utafrali/shopify-product-bridge/pkg/validator"
)

// Errors maps a field path such as "variations.0.price" to its messages.
type Errors map[string][]string

func (e Errors) Error() string {
	paths := make([]string, 0, len(e))
	for p := range e {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		parts = append(parts, p+": "+strings.Join(e[p], " "))
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

// Has reports whether path has at least one message.
func (e Errors) Has(path string) bool {
	return len(e[path]) > 0
}

func (e Errors) add(path, rule, param string) {
	e[path] = append(e[path], message(path, rule, param))
}

// Submission is an accepted request body.
type Submission struct {
	Product domain.ProductCreationRequest

	// LocationID is the body's location_id, empty when absent.
	LocationID string
}

// Validate parses body and checks it. When the body is invalid the error is
// of type Errors. Malformed JSON, or JSON that is not an object, is checked
// as if it were an empty object.
func Validate(body []byte) (Submission, error) {
	raw := decodeObject(body)

	errs := Errors{}
	sub := Submission{
		Product:    shapeProduct(raw, errs),
		LocationID: locationID(raw, errs),
	}

	if err := checkRules(sub.Product, errs); err != nil {
		return Submission{}, err
	}
	if len(errs) > 0 {
		return Submission{}, errs
	}
	return sub, nil
}

func decodeObject(body []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

func shapeProduct(raw map[string]any, errs Errors) domain.ProductCreationRequest {
	req := domain.ProductCreationRequest{
		Title: stringValue(raw, "title", "title", errs),
	}
	if desc := stringValue(raw, "description", "description", errs); desc != "" {
		req.Description = &desc
	}

	for i, item := range arrayValue(raw, "variations", "variations", errs) {
		obj, _ := item.(map[string]any)
		req.Variations = append(req.Variations, shapeVariation(obj, fmt.Sprintf("variations.%d", i), errs))
	}
	return req
}

func shapeVariation(obj map[string]any, path string, errs Errors) domain.Variation {
	v := domain.Variation{
		Title:             stringValue(obj, "title", path+".title", errs),
		Price:             priceValue(obj, path+".price", errs),
		InventoryQuantity: quantityValue(obj, path+".inventory_quantity", errs),
	}

	for j, item := range arrayValue(obj, "images", path+".images", errs) {
		img, _ := item.(map[string]any)
		srcPath := fmt.Sprintf("%s.images.%d.src", path, j)

		var src string
		switch s := img["src"].(type) {
		case nil:
		case string:
			src = strings.TrimSpace(s)
		default:
			errs.add(srcPath, ruleURL, "")
		}
		v.Images = append(v.Images, domain.Image{Src: src})
	}
	return v
}

// stringValue returns the trimmed string at key. Absent, null and
// non-string values yield "", the latter with an error.
func stringValue(obj map[string]any, key, path string, errs Errors) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		errs.add(path, ruleString, "")
		return ""
	}
}

func arrayValue(obj map[string]any, key, path string, errs Errors) []any {
	switch v := obj[key].(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		errs.add(path, ruleArray, "")
		return nil
	}
}

// Prices are bounded before anything formats them: a short exponent such as
// "1e999999999" would otherwise expand to a billion digits.
const (
	maxNumberText  = 64
	maxPriceScale  = 10
	maxPriceDigits = 18
	maxQtyExponent = 18
)

var maxPrice = decimal.RequireFromString("999999999999999999.99")

// priceValue accepts a JSON number or a numeric string.
func priceValue(obj map[string]any, path string, errs Errors) *decimal.Decimal {
	var text string
	switch v := obj["price"].(type) {
	case nil:
		return nil
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
		if text == "" {
			return nil
		}
	default:
		errs.add(path, ruleNumeric, "")
		return nil
	}

	if len(text) > maxNumberText {
		errs.add(path, ruleNumeric, "")
		return nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		errs.add(path, ruleNumeric, "")
		return nil
	}
	if d.Exponent() < -maxPriceScale {
		errs.add(path, ruleDecimal, fmt.Sprintf("0-%d", maxPriceScale))
		return nil
	}
	if d.NumDigits()+int(d.Exponent()) > maxPriceDigits || d.GreaterThan(maxPrice) {
		errs.add(path, ruleMaxNum, maxPrice.String())
		return nil
	}
	if d.IsNegative() {
		errs.add(path, ruleMinNum, "0")
	}
	return &d
}

// quantityValue accepts a JSON integer (5 or 5.0) or an integer string.
func quantityValue(obj map[string]any, path string, errs Errors) *int64 {
	switch v := obj["inventory_quantity"].(type) {
	case nil:
		return nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return &n
		}
		if n, ok := integralNumber(v.String()); ok {
			return &n
		}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n
		}
	}
	errs.add(path, ruleInteger, "")
	return nil
}

// integralNumber converts numbers such as 5.0 or 5e2 to int64. Exponents are
// checked before the value is expanded.
func integralNumber(text string) (int64, bool) {
	if len(text) > maxNumberText {
		return 0, false
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, false
	}
	if exp := d.Exponent(); exp > maxQtyExponent || exp < -maxNumberText {
		return 0, false
	}
	if !d.IsInteger() || !d.BigInt().IsInt64() {
		return 0, false
	}
	return d.IntPart(), true
}

func locationID(raw map[string]any, errs Errors) string {
	switch v := raw["location_id"].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		errs.add("location_id", ruleString, "")
		return ""
	}
}

// checkRules runs the struct tag rules. Paths the shape stage already
// reported are skipped so each problem is described once.
func checkRules(req domain.ProductCreationRequest, errs Errors) error {
	err := validator.Validate(req)
	if err == nil {
		return nil
	}

	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("validate product: %w", err)
	}

	shaped := make(map[string]struct{}, len(errs))
	for p := range errs {
		shaped[p] = struct{}{}
	}

	for _, v := range verr.Violations() {
		if _, ok := shaped[v.Path]; ok {
			continue
		}
		errs.add(v.Path, ruleFor(v), v.Param)
	}
	return nil
}

func ruleFor(v validator.Violation) string {
	switch v.Tag {
	case "max":
		return ruleMaxStr
	case "min":
		if v.Kind == reflect.Slice {
			return ruleMinArray
		}
		return ruleMinNum
	case "gte":
		return ruleMinNum
	case "http_url":
		return ruleURL
	default:
		return v.Tag
	}
}
