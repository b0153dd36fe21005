// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldScreenID  = "screen_id"
	FieldItemID    = "item_id"
	FieldRequestID = "request_id"

	// Process / lifecycle fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldPosition  = "position"
	FieldSeq       = "seq"
	FieldMediaType = "media_type"
	FieldTrigger   = "trigger"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldURL  = "url"
	FieldPath = "path"
)
