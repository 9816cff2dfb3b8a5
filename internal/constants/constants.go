package constants

import "time"

// PollInterval is the steady-state cadence between fetch cycle starts,
// measured from scheduling, not from completion.
const PollInterval = 2 * time.Second

// BackoffBase is the base delay for the exponential retry backoff.
const BackoffBase = 1 * time.Second

// BackoffMax caps the retry backoff delay.
const BackoffMax = 30 * time.Second

// FetchTimeout caps a single retrieval request.
const FetchTimeout = 15 * time.Second

// SendTimeout caps a single send request, sized for media uploads.
const SendTimeout = 60 * time.Second

// RenderBatchSize bounds how many messages are rendered per drain step.
const RenderBatchSize = 10

// DrainYield is the minimum pause between drain steps so the surface
// stays responsive while a large backlog renders.
const DrainYield = 50 * time.Millisecond

// ConnErrorClearAfter is how long the connection-error indicator stays
// up after being raised. The timer is fire-and-forget: it clears the
// indicator regardless of later fetch outcomes.
const ConnErrorClearAfter = 5 * time.Second

// NotifyPreviewMaxChars limits message text shown in a desktop notification.
const NotifyPreviewMaxChars = 50

// NotifyPreviewEllipsis is appended when truncating notification text.
const NotifyPreviewEllipsis = "..."

// NotifyMediaFallback is the notification body for messages with no text.
const NotifyMediaFallback = "sent media"

// MaxUploadBytes caps a single media upload (16MB, matching the server).
const MaxUploadBytes = 16 * 1024 * 1024

// MinEventBusBufferSize is the minimum buffer per subscriber channel.
const MinEventBusBufferSize = 64

// UserIDHeader carries the requesting user id on API requests.
const UserIDHeader = "X-User-ID"
