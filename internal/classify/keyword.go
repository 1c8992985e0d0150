package classify

import (
	"context"
	"strings"
)

// KeywordClassifier is the deterministic fallback: it scores each category and
// condition by summing the character lengths of every table keyword found as a
// substring of the lowered input. Longer, more specific keywords therefore
// outweigh short generic ones. It never fails.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the fallback classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// categoryKeywords is enumerated in Categories order; ties go to the earlier
// category.
var categoryKeywords = map[string][]string{
	"Textbooks":              {"textbook", "book", "calculus", "chemistry", "biology", "psychology", "edition", "isbn", "novel", "course reader"},
	"Electronics":            {"laptop", "macbook", "iphone", "ipad", "monitor", "keyboard", "headphones", "airpods", "charger", "camera", "tv", "console", "speaker", "tablet"},
	"Furniture":              {"desk", "chair", "couch", "sofa", "futon", "dresser", "bookshelf", "table", "bed frame", "nightstand"},
	"Clothing":               {"jacket", "hoodie", "shirt", "jeans", "sneakers", "shoes", "dress", "sweater", "coat", "boots"},
	"Appliances":             {"fridge", "mini fridge", "microwave", "blender", "toaster", "kettle", "air fryer", "vacuum", "fan", "heater"},
	"Kitchen":                {"pots", "pans", "cookware", "dishes", "utensils", "mugs", "rice cooker"},
	"Dorm Essentials":        {"mattress topper", "bedding", "comforter", "pillows", "shower caddy", "storage bins", "lamp", "mirror", "rug"},
	"School Supplies":        {"notebook", "binder", "backpack", "calculator", "pens", "highlighters", "planner"},
	"Bikes & Scooters":       {"bike", "bicycle", "scooter", "skateboard", "longboard", "helmet", "bike lock"},
	"Sports & Outdoors":      {"tennis", "basketball", "soccer", "yoga mat", "dumbbells", "weights", "tent", "sleeping bag", "racket", "golf"},
	"Music & Instruments":    {"guitar", "keyboard piano", "ukulele", "violin", "amp", "drum", "vinyl", "record player"},
	"Games & Hobbies":        {"board game", "video game", "nintendo", "playstation", "xbox", "puzzle", "lego", "cards"},
	"Beauty & Personal Care": {"makeup", "skincare", "hair dryer", "straightener", "perfume", "curler"},
	"Tickets & Events":       {"ticket", "tickets", "concert", "football game", "festival"},
	"Art & Decor":            {"poster", "painting", "canvas", "tapestry", "string lights", "plant", "frame"},
	"Tools":                  {"drill", "screwdriver", "toolbox", "hammer", "wrench"},
	"Pet Supplies":           {"fish tank", "aquarium", "leash", "pet bed", "cage", "terrarium"},
	"Services":               {"tutoring", "moving help", "haircut", "photography", "repair service"},
	"Free Stuff":             {"free", "giving away", "giveaway", "curb alert"},
}

var conditionKeywords = map[string][]string{
	"New":      {"brand new", "new in box", "unopened", "sealed", "never used", "tags on"},
	"Like New": {"like new", "barely used", "mint", "excellent condition", "used once", "lightly used"},
	"Good":     {"good condition", "great condition", "gently used", "works great", "well maintained"},
	"Fair":     {"fair condition", "some wear", "scratches", "worn", "scuffed", "okay condition"},
	"Poor":     {"for parts", "needs repair", "broken", "damaged", "heavily used", "cracked"},
}

// Classify scores the input against the keyword tables. The context is
// accepted for interface symmetry with the primary classifier but never
// consulted; scoring is pure computation.
func (c *KeywordClassifier) Classify(_ context.Context, itemText string) (Result, error) {
	lowered := strings.ToLower(itemText)

	category, catScore := bestMatch(lowered, Categories, categoryKeywords)
	if catScore == 0 {
		category = DefaultCategory
	}
	condition, condScore := bestMatch(lowered, Conditions, conditionKeywords)
	if condScore == 0 {
		condition = DefaultCondition
	}

	// Confidence grows with the evidence: each matched keyword character adds
	// two points on top of the floor.
	confidence := clamp(30+2*(catScore+condScore), 30, 90)

	return Result{
		Category:   NormalizeCategory(category),
		Condition:  NormalizeCondition(condition),
		Confidence: confidence,
	}, nil
}

// bestMatch returns the highest-scoring label, walking labels in enumeration
// order so ties resolve deterministically.
func bestMatch(lowered string, labels []string, keywords map[string][]string) (string, int) {
	best := ""
	bestScore := 0
	for _, label := range labels {
		score := 0
		for _, kw := range keywords[label] {
			if strings.Contains(lowered, kw) {
				score += len(kw)
			}
		}
		if score > bestScore {
			best = label
			bestScore = score
		}
	}
	return best, bestScore
}
