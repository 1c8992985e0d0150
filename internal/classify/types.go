// Package classify enriches listing drafts with a category and condition.
// The primary path delegates to an external chat-completion classifier; a
// deterministic keyword scorer covers the unconfigured and unreachable cases.
// Both paths funnel through the same label normalization.
package classify

import "strings"

// Result is a classification outcome. Confidence is a percentage in [0,100]
// for the primary path and [30,90] for the keyword fallback.
type Result struct {
	Category   string
	Condition  string
	Confidence int
}

// Canonical category labels. The classifier never emits anything outside this
// set; free-text synonyms are folded in by NormalizeCategory.
var Categories = []string{
	"Textbooks",
	"Electronics",
	"Furniture",
	"Clothing",
	"Appliances",
	"Kitchen",
	"Dorm Essentials",
	"School Supplies",
	"Bikes & Scooters",
	"Sports & Outdoors",
	"Music & Instruments",
	"Games & Hobbies",
	"Beauty & Personal Care",
	"Tickets & Events",
	"Art & Decor",
	"Tools",
	"Pet Supplies",
	"Services",
	"Free Stuff",
	"Other",
}

// Canonical condition grades, best to worst.
var Conditions = []string{
	"New",
	"Like New",
	"Good",
	"Fair",
	"Poor",
}

// Defaults applied when normalization matches nothing.
const (
	DefaultCategory  = "Other"
	DefaultCondition = "Good"
)

// categorySynonyms maps lowered free-text labels onto canonical categories.
// Lowered canonical labels are added at init so normalization is idempotent.
var categorySynonyms = map[string]string{
	"books":       "Textbooks",
	"book":        "Textbooks",
	"textbook":    "Textbooks",
	"electronic":  "Electronics",
	"tech":        "Electronics",
	"gadgets":     "Electronics",
	"clothes":     "Clothing",
	"apparel":     "Clothing",
	"fashion":     "Clothing",
	"appliance":   "Appliances",
	"kitchenware": "Kitchen",
	"cooking":     "Kitchen",
	"dorm":        "Dorm Essentials",
	"supplies":    "School Supplies",
	"stationery":  "School Supplies",
	"bike":        "Bikes & Scooters",
	"bikes":       "Bikes & Scooters",
	"bicycle":     "Bikes & Scooters",
	"scooter":     "Bikes & Scooters",
	"sports":      "Sports & Outdoors",
	"outdoors":    "Sports & Outdoors",
	"fitness":     "Sports & Outdoors",
	"music":       "Music & Instruments",
	"instrument":  "Music & Instruments",
	"instruments": "Music & Instruments",
	"games":       "Games & Hobbies",
	"gaming":      "Games & Hobbies",
	"toys":        "Games & Hobbies",
	"hobbies":     "Games & Hobbies",
	"beauty":      "Beauty & Personal Care",
	"cosmetics":   "Beauty & Personal Care",
	"tickets":     "Tickets & Events",
	"events":      "Tickets & Events",
	"art":         "Art & Decor",
	"decor":       "Art & Decor",
	"decoration":  "Art & Decor",
	"tool":        "Tools",
	"hardware":    "Tools",
	"pets":        "Pet Supplies",
	"pet":         "Pet Supplies",
	"service":     "Services",
	"free":        "Free Stuff",
	"misc":        "Other",
	"other stuff": "Other",
}

// conditionSynonyms maps lowered free-text grades onto canonical conditions.
var conditionSynonyms = map[string]string{
	"brand new":          "New",
	"unopened":           "New",
	"sealed":             "New",
	"mint":               "Like New",
	"like-new":           "Like New",
	"barely used":        "Like New",
	"lightly used":       "Like New",
	"excellent":          "Like New",
	"great":              "Good",
	"great condition":    "Good",
	"good condition":     "Good",
	"used":               "Good",
	"gently used":        "Good",
	"okay":               "Fair",
	"ok":                 "Fair",
	"decent":             "Fair",
	"worn":               "Fair",
	"some wear":          "Fair",
	"heavily used":       "Poor",
	"rough":              "Poor",
	"for parts":          "Poor",
	"damaged":            "Poor",
	"needs repair":       "Poor",
	"well loved":         "Poor",
	"see photos for wear": "Poor",
}

func init() {
	for _, c := range Categories {
		categorySynonyms[strings.ToLower(c)] = c
	}
	for _, c := range Conditions {
		conditionSynonyms[strings.ToLower(c)] = c
	}
}

// NormalizeCategory folds a free-text category label onto the canonical set,
// defaulting to Other. Canonical labels map to themselves, so the function is
// idempotent.
func NormalizeCategory(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := categorySynonyms[key]; ok {
		return canonical
	}
	return DefaultCategory
}

// NormalizeCondition folds a free-text condition grade onto the canonical
// set, defaulting to Good. Idempotent for canonical input.
func NormalizeCondition(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := conditionSynonyms[key]; ok {
		return canonical
	}
	return DefaultCondition
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
