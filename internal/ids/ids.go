package ids

import "github.com/segmentio/ksuid"

// New returns a sortable opaque identifier, used for export ids.
func New() string {
	return ksuid.New().String()
}
