package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dormline/dormline/internal/subscriptions"
	"github.com/dormline/dormline/internal/users"
)

func (e *Engine) handleBuyingItemName(ctx context.Context, user users.User, data FlowData, turn Turn) (State, FlowData, string, error) {
	keywords := strings.TrimSpace(turn.Text)
	if keywords == "" {
		return StateBuyingItemName, data, promptBuyingItemName, nil
	}

	decision := e.moderate(keywords)
	if !decision.Allowed {
		e.recordSpam(ctx, user, decision.Category)
		return StateBuyingItemName, data, decision.Reason, nil
	}

	data.Keywords = keywords
	return StateBuyingPriceRange, data, promptBuyingPriceRange, nil
}

func (e *Engine) handleBuyingPriceRange(ctx context.Context, data FlowData, command string) (State, FlowData, string, error) {
	if command != "skip" {
		min, max, ok := subscriptions.ParsePriceRange(command)
		if !ok {
			return StateBuyingPriceRange, data, replyBadPriceRange, nil
		}
		data.MinPrice = min
		data.MaxPrice = max
	}

	// Pre-fill the category so matching can use it alongside the keywords.
	result := e.classifier.Classify(ctx, data.Keywords)
	data.Category = result.Category

	return StateBuyingConfirm, data, replyBuyingSummary(data.Keywords, data.MinPrice, data.MaxPrice), nil
}

func (e *Engine) handleBuyingConfirm(ctx context.Context, user users.User, data FlowData, command string) (State, FlowData, string, error) {
	var standing bool
	switch command {
	case "confirm":
		standing = true
	case "post request", "post":
		standing = false
	default:
		// Anything else re-prompts without changing state.
		return StateBuyingConfirm, data, replyBuyingConfirm, nil
	}

	request, err := e.requests.Create(ctx, subscriptions.BuyRequest{
		BuyerAddress: user.Address,
		Keywords:     data.Keywords,
		Category:     data.Category,
		MinPrice:     data.MinPrice,
		MaxPrice:     data.MaxPrice,
		Standing:     standing,
		ExpiresAt:    e.now().Add(subscriptions.RequestLifetime),
	})
	if err != nil {
		return state0(err)
	}

	e.logger.Info("buy request created",
		slog.String("address", user.Address),
		slog.String("request_id", request.ID),
		slog.Bool("standing", standing),
	)
	return StateVerified, FlowData{}, replySubscriptionCreated(standing), nil
}
