package subscription

import "time"

// Subscription is one active binding between a Discord channel and a LINE
// group. Records are immutable once created; unbinding deletes the row.
type Subscription struct {
	// Number is the stable sequence id used as the relay routing key. It
	// decouples envelopes from platform channel ids.
	Number int64

	ChannelID   string
	ChannelName string
	// WebhookURL is the Discord webhook used to push LINE messages into the
	// channel.
	WebhookURL string

	GroupID   string
	GroupName string
	// NotifyToken is the LINE Notify token used to push Discord messages into
	// the group.
	NotifyToken string

	// MediaFolder is the storage namespace for downloaded attachments
	// belonging to this binding.
	MediaFolder string

	CreatedAt time.Time
}

// BindingCode is a one-time token that authorizes creating a Subscription.
// The LINE side of the pairing is captured at issuance and carried into the
// Subscription when the code is redeemed from Discord.
type BindingCode struct {
	Code        string
	GroupID     string
	GroupName   string
	NotifyToken string
	IssuedAt    time.Time
}

// CodeTTL is how long a binding code stays redeemable after issuance.
const CodeTTL = 5 * time.Minute

// ExpiresAt returns the instant the code stops being redeemable.
func (b *BindingCode) ExpiresAt() time.Time {
	return b.IssuedAt.Add(CodeTTL)
}
