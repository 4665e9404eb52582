package decoder

import "errors"

// ErrUnknownKind is returned by DecodeStrict for events with no known kind.
var ErrUnknownKind = errors.New("unknown event kind")
