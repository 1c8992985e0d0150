package conversation

import (
	"context"
	"strings"

	"github.com/dormline/dormline/internal/users"
)

// dispatch routes one turn through the state machine. It returns the next
// state, the updated field bag, and the reply text; errors are internal
// failures only.
func (e *Engine) dispatch(ctx context.Context, user users.User, state State, data FlowData, turn Turn) (State, FlowData, string, error) {
	command := strings.ToLower(strings.TrimSpace(turn.Text))

	// Restart works from every state. Mid-flow it keeps the intent, clears
	// the accumulated fields, and returns to the item-name prompt; outside a
	// flow it resets to idle (or re-prompts consent when never given).
	if command == "restart" || command == "start over" {
		switch data.Intent {
		case "sell":
			return StateSellingItemName, FlowData{Intent: "sell"}, promptSellingItemName, nil
		case "buy":
			return StateBuyingItemName, FlowData{Intent: "buy"}, promptBuyingItemName, nil
		}
		if user.Consented() {
			return StateVerified, FlowData{}, replyRestart, nil
		}
		return StateAwaitingConsent, FlowData{}, promptConsent, nil
	}

	switch state {
	case StateInitial:
		return StateAwaitingConsent, FlowData{}, promptConsent, nil

	case StateAwaitingConsent:
		return e.handleConsent(ctx, user, command)

	case StateAwaitingIntent:
		return e.handleIntent(command, StateAwaitingIntent, promptIntent)

	case StateVerified:
		return e.handleIntent(command, StateVerified, replyIdleHint)

	case StateSellingItemName:
		return e.handleSellingItemName(ctx, user, data, turn)
	case StateSellingPrice:
		return e.handleSellingPrice(data, turn)
	case StateSellingImage:
		return e.handleSellingImage(ctx, data, turn)
	case StateSellingCategoryConfirm:
		return e.handleSellingCategoryConfirm(data, command)
	case StateSellingMeetingSpot:
		return e.handleSellingMeetingSpot(data, turn)
	case StateSellingExternalLink:
		return e.handleSellingExternalLink(ctx, user, data, turn)

	case StateBuyingItemName:
		return e.handleBuyingItemName(ctx, user, data, turn)
	case StateBuyingPriceRange:
		return e.handleBuyingPriceRange(ctx, data, command)
	case StateBuyingConfirm:
		return e.handleBuyingConfirm(ctx, user, data, command)
	}

	// Unreachable: the engine validates the state before dispatching.
	return StateAwaitingConsent, FlowData{}, replyStateRecovered, nil
}

func (e *Engine) handleConsent(ctx context.Context, user users.User, command string) (State, FlowData, string, error) {
	switch command {
	case "yes", "y", "agree", "ok", "okay", "sure":
		if err := e.users.RecordConsent(ctx, user.Address); err != nil {
			return state0(err)
		}
		return StateAwaitingIntent, FlowData{}, promptIntent, nil
	case "no", "n", "nope", "decline", "stop":
		// Declining parks the user here; the record is kept so a later "yes"
		// resumes where they left off.
		return StateAwaitingConsent, FlowData{}, replyConsentDeclined, nil
	default:
		return StateAwaitingConsent, FlowData{}, promptConsentRepeat, nil
	}
}

func (e *Engine) handleIntent(command string, current State, fallback string) (State, FlowData, string, error) {
	switch command {
	case "buy":
		return StateBuyingItemName, FlowData{Intent: "buy"}, promptBuyingItemName, nil
	case "sell":
		return StateSellingItemName, FlowData{Intent: "sell"}, promptSellingItemName, nil
	case "help":
		return StateVerified, FlowData{}, replyHelp, nil
	default:
		return current, FlowData{}, fallback, nil
	}
}

func state0(err error) (State, FlowData, string, error) {
	return "", FlowData{}, "", err
}
