package backup

import (
	"fmt"
	"strings"

	"github.com/HughODwyer90/hugh.casa/data"
)

const redacted = "REDACTED"

// Sensitive reports whether an entity reveals location or credentials:
// device trackers (toothbrushes excepted), anything pointing at a device
// tracker, GPS entities, zones and password text inputs.
func Sensitive(e *data.HAEntity) bool {
	id := strings.ToLower(e.ID)
	switch {
	case strings.HasPrefix(id, "device_tracker.") && !strings.Contains(id, "toothbrush"):
		return true
	case strings.Contains(id, "gps"):
		return true
	case strings.HasPrefix(id, "zone."):
		return true
	case strings.HasPrefix(id, "input_text.") && strings.EqualFold(e.Attributes.Mode, "password"):
		return true
	}
	for _, v := range e.Attributes.Raw {
		if strings.Contains(fmt.Sprint(v), "device_tracker.") {
			return true
		}
	}
	return false
}

// Redact replaces sensitive entities with placeholders that keep only the
// entity ID. It returns a new slice and the number of redacted entities.
func Redact(in []*data.HAEntity) ([]*data.HAEntity, int) {
	out := make([]*data.HAEntity, 0, len(in))
	n := 0
	for _, e := range in {
		if !Sensitive(e) {
			out = append(out, e)
			continue
		}
		n++
		out = append(out, &data.HAEntity{
			ID:    e.ID,
			State: redacted,
			Attributes: data.HAAttributes{
				FriendlyName: redacted,
				Raw:          map[string]any{"friendly_name": redacted},
			},
		})
	}
	return out, n
}
