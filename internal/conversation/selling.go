package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dormline/dormline/internal/classify"
	"github.com/dormline/dormline/internal/listings"
	"github.com/dormline/dormline/internal/policy"
	"github.com/dormline/dormline/internal/users"
)

func (e *Engine) handleSellingItemName(ctx context.Context, user users.User, data FlowData, turn Turn) (State, FlowData, string, error) {
	title := strings.TrimSpace(turn.Text)
	if title == "" {
		return StateSellingItemName, data, promptSellingItemName, nil
	}

	decision := e.moderate(title)
	if !decision.Allowed {
		e.recordSpam(ctx, user, decision.Category)
		return StateSellingItemName, data, decision.Reason, nil
	}

	data.ItemName = title
	return StateSellingPrice, data, promptSellingPrice, nil
}

func (e *Engine) handleSellingPrice(data FlowData, turn Turn) (State, FlowData, string, error) {
	price, ok := ParsePrice(turn.Text)
	if !ok {
		return StateSellingPrice, data, replyBadPrice, nil
	}
	data.Price = price
	return StateSellingImage, data, promptSellingImage, nil
}

func (e *Engine) handleSellingImage(ctx context.Context, data FlowData, turn Turn) (State, FlowData, string, error) {
	if len(turn.Images) == 0 {
		return StateSellingImage, data, replyImageMissing, nil
	}
	data.Images = append(data.Images, turn.Images...)

	result := e.classifier.Classify(ctx, data.ItemName)
	data.Category = result.Category
	data.Condition = result.Condition
	return StateSellingCategoryConfirm, data, promptCategoryConfirm(result.Category, result.Condition), nil
}

func (e *Engine) handleSellingCategoryConfirm(data FlowData, command string) (State, FlowData, string, error) {
	switch {
	case command == "yes" || command == "y":
		// Keep the suggested labels.
	case strings.Contains(command, "-"):
		left, right, _ := strings.Cut(command, "-")
		data.Category = classify.NormalizeCategory(left)
		data.Condition = classify.NormalizeCondition(right)
	default:
		return StateSellingCategoryConfirm, data, replyCategoryRepeat, nil
	}
	return StateSellingMeetingSpot, data, promptMeetingSpot, nil
}

func (e *Engine) handleSellingMeetingSpot(data FlowData, turn Turn) (State, FlowData, string, error) {
	value := strings.TrimSpace(turn.Text)
	if value == "" {
		// An image-only or empty message is not an answer; skipping takes an
		// explicit 'skip'.
		return StateSellingMeetingSpot, data, promptMeetingSpot, nil
	}
	if !strings.EqualFold(value, "skip") {
		data.MeetingSpot = value
	}
	return StateSellingExternalLink, data, promptExternalLink, nil
}

func (e *Engine) handleSellingExternalLink(ctx context.Context, user users.User, data FlowData, turn Turn) (State, FlowData, string, error) {
	value := strings.TrimSpace(turn.Text)
	if value == "" {
		return StateSellingExternalLink, data, promptExternalLink, nil
	}
	if !strings.EqualFold(value, "skip") {
		data.ExternalLink = value
	}
	return e.finalizeSelling(ctx, user, data)
}

// finalizeSelling runs the rate check and hands the accumulated fields to the
// assembler. A rate rejection ends the flow without persisting anything.
func (e *Engine) finalizeSelling(ctx context.Context, user users.User, data FlowData) (State, FlowData, string, error) {
	now := e.now()

	active, err := e.counts.CountActive(ctx, user.Address, now)
	if err != nil {
		return state0(err)
	}
	result := policy.CheckRateLimit(user, active, now)
	if !result.Allowed {
		e.logger.Info("listing rejected by rate policy",
			slog.String("address", user.Address),
			slog.String("reason", result.Reason),
		)
		return StateVerified, FlowData{}, replyRateLimited(result), nil
	}

	listing, err := e.assembler.Assemble(ctx, user.Address, listings.Fields{
		Title:        data.ItemName,
		Price:        data.Price,
		Category:     data.Category,
		Condition:    data.Condition,
		MeetingSpot:  data.MeetingSpot,
		ExternalLink: data.ExternalLink,
		Images:       data.Images,
	}, now)
	if err != nil {
		return state0(err)
	}

	if err := e.users.IncrementDailyCount(ctx, user.Address, now); err != nil {
		e.logger.Warn("increment daily count failed",
			slog.String("address", user.Address),
			slog.Any("error", err),
		)
	}
	e.reviewTrustAfterPublish(ctx, user, now)

	e.logger.Info("listing published",
		slog.String("address", user.Address),
		slog.String("listing_id", listing.ID),
	)
	return StateVerified, FlowData{}, replyListingPublished(listing.Title, listing.Price), nil
}

// reviewTrustAfterPublish applies the promotion rule right after a publish so
// an active seller does not wait for the nightly review. Best effort: a
// failure here never affects the publish reply.
func (e *Engine) reviewTrustAfterPublish(ctx context.Context, user users.User, now time.Time) {
	published, err := e.counts.CountPublishedSince(ctx, user.Address, now.Add(-policy.PromotionWindow))
	if err != nil {
		e.logger.Warn("trust review count failed",
			slog.String("address", user.Address),
			slog.Any("error", err),
		)
		return
	}
	// The publish that triggered this review may not be committed yet.
	published++
	next := policy.EvaluateTrust(user, published)
	if next == user.TrustLevel {
		return
	}
	if err := e.users.SetTrustLevel(ctx, user.Address, next); err != nil {
		e.logger.Warn("trust update failed",
			slog.String("address", user.Address),
			slog.Any("error", err),
		)
		return
	}
	e.logger.Info("trust level changed",
		slog.String("address", user.Address),
		slog.String("from", string(user.TrustLevel)),
		slog.String("to", string(next)),
	)
}

// recordSpam bumps the spam counter after a moderation block and applies the
// demotion rule when the threshold is crossed.
func (e *Engine) recordSpam(ctx context.Context, user users.User, category string) {
	attempts, err := e.users.RecordSpamAttempt(ctx, user.Address)
	if err != nil {
		e.logger.Warn("record spam attempt failed",
			slog.String("address", user.Address),
			slog.Any("error", err),
		)
		return
	}
	e.logger.Info("content blocked",
		slog.String("address", user.Address),
		slog.String("category", category),
		slog.Int("spam_attempts", attempts),
	)
	if attempts >= policy.DemotionSpamMin && user.TrustLevel != users.TrustShadowBanned {
		if err := e.users.SetTrustLevel(ctx, user.Address, users.TrustShadowBanned); err != nil {
			e.logger.Warn("shadow ban failed",
				slog.String("address", user.Address),
				slog.Any("error", err),
			)
		}
	}
}
