package validation

import (
	"fmt"
	"strings"
)

// Rule names used as message keys. They follow the names clients of the
// original API already match against.
const (
	ruleRequired = "required"
	ruleString   = "string"
	ruleArray    = "array"
	ruleNumeric  = "numeric"
	ruleInteger  = "integer"
	ruleURL      = "url"
	ruleMinNum   = "min.numeric"
	ruleMinArray = "min.array"
	ruleMaxStr   = "max.string"
	ruleMaxNum   = "max.numeric"
	ruleDecimal  = "decimal"
)

// customMessages are keyed by "<path pattern>.<rule>" where list indices in
// the path are replaced with "*".
var customMessages = map[string]string{
	"title.required":                          "The product title is required.",
	"variations.required":                     "At least one product variation is required.",
	"variations.*.title.required":             `Each variation must have a title (e.g., "Red / Small").`,
	"variations.*.price.required":             "Each variation must have a price.",
	"variations.*.price.numeric":              "The price must be a valid number.",
	"variations.*.inventory_quantity.integer": "Inventory quantity must be a whole number.",
	"variations.*.images.*.src.url":           "Each image source must be a valid URL.",
}

// message renders the human readable text for a failed rule at path.
func message(path, rule, param string) string {
	if msg, ok := customMessages[pattern(path)+"."+rule]; ok {
		return msg
	}

	attr := strings.ReplaceAll(path, "_", " ")
	switch rule {
	case ruleRequired:
		return fmt.Sprintf("The %s field is required.", attr)
	case ruleString:
		return fmt.Sprintf("The %s field must be a string.", attr)
	case ruleArray:
		return fmt.Sprintf("The %s field must be an array.", attr)
	case ruleNumeric:
		return fmt.Sprintf("The %s field must be a number.", attr)
	case ruleInteger:
		return fmt.Sprintf("The %s field must be an integer.", attr)
	case ruleURL:
		return fmt.Sprintf("The %s field must be a valid URL.", attr)
	case ruleMinNum:
		return fmt.Sprintf("The %s field must be at least %s.", attr, param)
	case ruleMinArray:
		return fmt.Sprintf("The %s field must have at least %s items.", attr, param)
	case ruleMaxStr:
		return fmt.Sprintf("The %s field must not be greater than %s characters.", attr, param)
	case ruleMaxNum:
		return fmt.Sprintf("The %s field must not be greater than %s.", attr, param)
	case ruleDecimal:
		return fmt.Sprintf("The %s field must have %s decimal places.", attr, param)
	default:
		return fmt.Sprintf("The %s field is invalid.", attr)
	}
}

// pattern replaces numeric path segments with "*":
// "variations.0.images.2.src" becomes "variations.*.images.*.src".
func pattern(path string) string {
	segs := strings.Split(path, ".")
	for i, s := range segs {
		if isIndex(s) {
			segs[i] = "*"
		}
	}
	return strings.Join(segs, ".")
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
