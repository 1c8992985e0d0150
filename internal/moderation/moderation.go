// Package moderation runs the synchronous content-policy check that precedes
// every conversation state advance. It is side-effect free: a table-driven
// substring scan over banned-category keyword lists plus a regex scan for
// get-rich-quick phrasing. First match wins.
package moderation

import (
	"regexp"
	"strings"
)

// Decision is the outcome of a moderation check. Reason is a user-facing
// rejection message, set only when Allowed is false.
type Decision struct {
	Allowed  bool
	Category string
	Reason   string
}

// category pairs a banned-content category with its trigger keywords and the
// user-facing message returned on a hit.
type category struct {
	name     string
	keywords []string
	message  string
}

const genericRejection = "Sorry, that item can't be listed on the campus marketplace."

// bannedCategories is scanned in order; the first keyword hit decides the
// category and message.
var bannedCategories = []category{
	{
		name:     "weapons",
		keywords: []string{"gun", "firearm", "pistol", "rifle", "ammunition", "ammo", "taser", "switchblade", "brass knuckles"},
		message:  "Weapons and weapon accessories can't be listed here.",
	},
	{
		name:     "controlled_substances",
		keywords: []string{"weed", "marijuana", "cannabis", "cocaine", "mdma", "lsd", "shrooms", "adderall", "xanax", "vape", "nicotine", "juul"},
		message:  "Drugs, prescription medication, and vaping products can't be listed here.",
	},
	{
		name:     "alcohol",
		keywords: []string{"beer", "vodka", "whiskey", "tequila", "liquor", "fake id"},
		message:  "Alcohol and fake IDs can't be listed here.",
	},
	{
		name:     "live_animals",
		keywords: []string{"puppy", "kitten", "live animal", "pet snake", "hamster for sale"},
		message:  "Live animals can't be sold through the marketplace.",
	},
	{
		name:     "adult_services",
		keywords: []string{"escort", "onlyfans", "adult content", "sugar daddy", "sugar baby"},
		message:  "Adult services and content aren't allowed here.",
	},
	{
		name:     "academic_dishonesty",
		keywords: []string{"write your essay", "essay writing service", "take your exam", "homework for you", "do your homework", "ghostwrite"},
		message:  "Academic work completed for others can't be offered here.",
	},
	{
		name:     "counterfeit",
		keywords: []string{"counterfeit", "replica designer", "knockoff", "stolen", "fell off a truck", "no receipt no questions"},
		message:  "Counterfeit or stolen goods can't be listed here.",
	},
}

// messageByCategory resolves a category name to its message, used when a scam
// pattern names a category without a keyword hit.
var messageByCategory = func() map[string]string {
	m := make(map[string]string, len(bannedCategories))
	for _, c := range bannedCategories {
		m[c.name] = c.message
	}
	return m
}()

// scamPatterns cover pyramid-scheme and get-rich-quick phrasing that keyword
// lists miss.
var scamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bget\s+rich\s+quick\b`),
	regexp.MustCompile(`(?i)\bpassive\s+income\b.*\b(guarantee|guaranteed)\b`),
	regexp.MustCompile(`(?i)\b(double|triple)\s+your\s+(money|investment)\b`),
	regexp.MustCompile(`(?i)\bpyramid\b|\bmlm\b|\bmulti[- ]level\s+marketing\b`),
	regexp.MustCompile(`(?i)\brecruit\b.*\bdownline\b`),
}

const scamRejection = "This looks like a money-making scheme, which isn't allowed here."

// Moderate checks free-text listing content against the banned-category
// tables and scam patterns. It never errors; no match means allowed.
func Moderate(text string) Decision {
	lowered := strings.ToLower(text)
	for _, c := range bannedCategories {
		for _, kw := range c.keywords {
			if strings.Contains(lowered, kw) {
				return Decision{Allowed: false, Category: c.name, Reason: rejectionMessage(c.name)}
			}
		}
	}
	for _, pattern := range scamPatterns {
		if pattern.MatchString(text) {
			return Decision{Allowed: false, Category: "scam", Reason: scamRejection}
		}
	}
	return Decision{Allowed: true}
}

func rejectionMessage(category string) string {
	if msg, ok := messageByCategory[category]; ok && msg != "" {
		return msg
	}
	return genericRejection
}
