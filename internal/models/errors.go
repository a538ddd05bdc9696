package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidURL indicates a malformed URL.
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrUnsupportedScheme indicates a URL scheme other than http, https or file.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme: must be http, https or file")

	// ErrInvalidTimeout indicates a per-request timeout outside 1-300 seconds.
	ErrInvalidTimeout = errors.New("timeout_seconds must be between 1 and 300")

	// ErrOutputNameRequired indicates a required output name field is empty.
	ErrOutputNameRequired = errors.New("output_name is required")

	// ErrInvalidOutputName indicates an output name that cannot form a URL path segment.
	ErrInvalidOutputName = errors.New("output_name must not contain separators or whitespace")

	// ErrProviderIDRequired indicates a required provider ID field is zero.
	ErrProviderIDRequired = errors.New("provider_id is required")

	// ErrProfileIDRequired indicates a required profile ID field is zero.
	ErrProfileIDRequired = errors.New("profile_id is required")

	// ErrGroupIDRequired indicates a required provider group ID field is zero.
	ErrGroupIDRequired = errors.New("provider_group_id is required")

	// ErrChannelIDRequired indicates a required provider channel ID field is zero.
	ErrChannelIDRequired = errors.New("provider_channel_id is required")

	// ErrFilterIDRequired indicates a required filter ID field is zero.
	ErrFilterIDRequired = errors.New("filter_id is required")

	// ErrStreamURLRequired indicates a required stream URL field is empty.
	ErrStreamURLRequired = errors.New("stream_url is required")

	// ErrInvalidDecision indicates an invalid group filter decision.
	ErrInvalidDecision = errors.New("invalid decision: must be 'pending', 'include' or 'exclude'")

	// ErrInvalidChannelMode indicates an invalid group filter channel mode.
	ErrInvalidChannelMode = errors.New("invalid channel_mode: must be 'all' or 'select'")

	// ErrInvalidAutoNumRange indicates auto_num_end below auto_num_start.
	ErrInvalidAutoNumRange = errors.New("auto_num_end must not be below auto_num_start")

	// ErrInvalidContentType indicates an unknown content type label.
	ErrInvalidContentType = errors.New("invalid content type")

	// ErrInvalidRunType indicates an unknown fetch run type.
	ErrInvalidRunType = errors.New("invalid fetch run type: must be 'snapshot' or 'preview'")

	// ErrInvalidRunStatus indicates an unknown fetch run status.
	ErrInvalidRunStatus = errors.New("invalid fetch run status: must be 'running', 'ok' or 'fail'")

	// ErrInvalidSnapshotStatus indicates an unknown snapshot status.
	ErrInvalidSnapshotStatus = errors.New("invalid snapshot status: must be 'staged', 'active' or 'archived'")

	// ErrDuplicateName indicates a unique-name constraint violation surfaced by a write.
	ErrDuplicateName = errors.New("name already in use")

	// ErrProviderDisabled indicates an operation that requires an enabled provider.
	ErrProviderDisabled = errors.New("provider is disabled")
)
