// Package conversation drives the per-user chat state machine: onboarding
// consent, the buying and selling flows, and the durable state that carries a
// conversation across webhook deliveries.
package conversation

import "encoding/json"

// State is one of the conversation states. The set is closed; anything else
// read back from storage is treated as corrupt and restarts onboarding.
type State string

const (
	StateInitial         State = "INITIAL"
	StateAwaitingConsent State = "AWAITING_CONSENT"
	StateAwaitingIntent  State = "AWAITING_INTENT"

	StateBuyingItemName   State = "BUYING_ITEM_NAME"
	StateBuyingPriceRange State = "BUYING_PRICE_RANGE"
	StateBuyingConfirm    State = "BUYING_CONFIRM_SUBSCRIPTION"

	StateSellingItemName        State = "SELLING_ITEM_NAME"
	StateSellingPrice           State = "SELLING_PRICE"
	StateSellingImage           State = "SELLING_IMAGE"
	StateSellingCategoryConfirm State = "SELLING_CATEGORY_CONFIRM"
	StateSellingMeetingSpot     State = "SELLING_MEETING_SPOT"
	StateSellingExternalLink    State = "SELLING_EXTERNAL_LINK"

	// StateVerified is the idle state between flows.
	StateVerified State = "VERIFIED"
)

// Valid reports whether the state is part of the closed enumeration.
func (s State) Valid() bool {
	switch s {
	case StateInitial, StateAwaitingConsent, StateAwaitingIntent,
		StateBuyingItemName, StateBuyingPriceRange, StateBuyingConfirm,
		StateSellingItemName, StateSellingPrice, StateSellingImage,
		StateSellingCategoryConfirm, StateSellingMeetingSpot,
		StateSellingExternalLink, StateVerified:
		return true
	default:
		return false
	}
}

// FlowData is the accumulated field bag of an in-progress flow. It is
// strictly additive while a flow progresses; only restart or completion
// clears it.
type FlowData struct {
	Intent       string   `json:"intent,omitempty"`
	ItemName     string   `json:"item_name,omitempty"`
	Price        float64  `json:"price,omitempty"`
	Images       []string `json:"images,omitempty"`
	Category     string   `json:"category,omitempty"`
	Condition    string   `json:"condition,omitempty"`
	MeetingSpot  string   `json:"meeting_spot,omitempty"`
	ExternalLink string   `json:"external_link,omitempty"`
	Keywords     string   `json:"keywords,omitempty"`
	MinPrice     float64  `json:"min_price,omitempty"`
	MaxPrice     float64  `json:"max_price,omitempty"`
}

// decodeFlowData tolerates missing or corrupt stored data by starting fresh.
func decodeFlowData(raw []byte) FlowData {
	var data FlowData
	if len(raw) == 0 {
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return FlowData{}
	}
	return data
}

func encodeFlowData(data FlowData) []byte {
	encoded, err := json.Marshal(data)
	if err != nil {
		return []byte("{}")
	}
	return encoded
}

// Turn is one inbound user message after media intake: the text and the
// access paths of any images ingested this turn.
type Turn struct {
	Text   string
	Images []string
}
