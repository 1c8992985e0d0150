package conversation

import (
	"fmt"

	"github.com/dormline/dormline/internal/policy"
)

// User-facing reply text. Kept in one place so the conversational voice stays
// consistent across handlers.
const (
	promptConsent = "Hey! Welcome to Dormline, your campus marketplace. " +
		"Before we start: we store your messages and listing details to run the marketplace. " +
		"Reply 'yes' to agree, or 'no' to opt out."
	replyConsentDeclined = "No worries — nothing was saved. Message us again any time if you change your mind. Bye!"
	promptConsentRepeat  = "Just need a quick 'yes' or 'no': okay to store your listing details?"

	promptIntent = "You're all set! What would you like to do? Reply 'buy' to look for something, " +
		"'sell' to list an item, or 'help' for a refresher."
	replyHelp = "Here's how it works:\n" +
		"- 'sell' walks you through listing an item (name, price, photo, pickup spot).\n" +
		"- 'buy' records what you're after and pings you when a match is listed.\n" +
		"- 'restart' starts over at any point."
	replyIdleHint = "Not sure what you meant. Reply 'buy', 'sell', or 'help'."
	replyRestart  = "Okay, starting fresh. Reply 'buy', 'sell', or 'help' when you're ready."

	promptSellingItemName = "Nice, let's get your item listed. What are you selling? A short title works best."
	promptSellingPrice    = "Got it. What's your asking price?"
	replyBadPrice         = "That price didn't parse. Try a plain number like 25 or $1,200."
	promptSellingImage    = "Now send a photo of the item (as an image, not a link)."
	replyImageMissing     = "I still need a photo — send one as an image attachment."
	promptMeetingSpot     = "Where on campus would you meet a buyer? Reply 'skip' to leave it open."
	promptExternalLink    = "Any link with more details (listing elsewhere, spec sheet)? Reply 'skip' if not."
	replyCategoryRepeat   = "Reply 'yes' to keep the suggestion, or correct it like 'Electronics - Like New'."

	promptBuyingItemName   = "What are you looking for? A few keywords are enough, e.g. 'mini fridge'."
	promptBuyingPriceRange = "Any budget in mind? Something like '50-100' or 'under 80', or 'skip'."
	replyBadPriceRange     = "I couldn't read that budget. Try '50-100', 'under 80', or 'skip'."
	replyBuyingConfirm     = "Reply 'confirm' to keep this alert running, or 'post request' for a one-time match."

	replyStateRecovered = "Something got tangled on our end, so let's start over. " +
		"Reply 'yes' to agree to the storage notice and continue."
	replyBusy = "We're processing another message from you — give it a second and try again."
)

func promptCategoryConfirm(category, condition string) string {
	return fmt.Sprintf(
		"Looks like %s in %s condition. Reply 'yes' to confirm, or correct me like 'Textbooks - Fair'.",
		category, condition,
	)
}

func replyListingPublished(title string, price float64) string {
	return fmt.Sprintf(
		"Your listing %q is live at $%.2f! It runs for 14 days — message 'sell' any time to list more.",
		title, price,
	)
}

func replyRateLimited(result policy.RateResult) string {
	if result.Reason == policy.ReasonActiveLimit {
		return fmt.Sprintf(
			"You've hit your cap of %d active listings. Wait for one to expire (or renew fewer), then try again.",
			result.ActiveMax,
		)
	}
	return fmt.Sprintf(
		"You've reached today's limit of %d new listings. Come back tomorrow!",
		result.DailyMax,
	)
}

func replyBuyingSummary(keywords string, minPrice, maxPrice float64) string {
	budget := "any price"
	switch {
	case minPrice > 0 && maxPrice > 0:
		budget = fmt.Sprintf("$%.0f-$%.0f", minPrice, maxPrice)
	case maxPrice > 0:
		budget = fmt.Sprintf("up to $%.0f", maxPrice)
	case minPrice > 0:
		budget = fmt.Sprintf("$%.0f and up", minPrice)
	}
	return fmt.Sprintf(
		"Looking for %q at %s. %s", keywords, budget, replyBuyingConfirm,
	)
}

func replySubscriptionCreated(standing bool) string {
	if standing {
		return "Done! I'll message you whenever a matching item is listed. The alert runs for 30 days; 'restart' clears it early."
	}
	return "Request posted! I'll message you about the first match within the next 30 days."
}
