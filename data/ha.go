package data

import (
	"encoding/json"
	"strings"
)

type HAEntity struct {
	ID          string       `json:"entity_id"`
	State       string       `json:"state"`
	Attributes  HAAttributes `json:"attributes"`
	LastChanged string       `json:"last_changed,omitempty"` // "2023-12-27T15:28:26.287133+00:00"
	LastUpdated string       `json:"last_updated,omitempty"` // "2023-12-27T15:28:26.287133+00:00"
	Context     *HAContext   `json:"context,omitempty"`
}

// Domain is the part of the entity ID before the first dot ("update" for "update.kitchen_bulb").
func (e *HAEntity) Domain() string {
	domain, _, _ := strings.Cut(e.ID, ".")
	return domain
}

// HAAttributes holds the attributes the tools act on. All attributes, known or
// not, are kept in Raw so that entities can be re-serialised unchanged.
type HAAttributes struct {
	FriendlyName      string     `json:"friendly_name,omitempty"`
	DeviceClass       string     `json:"device_class,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_measurement,omitempty"`
	Icon              string     `json:"icon,omitempty"`
	Mode              string     `json:"mode,omitempty"`
	InstalledVersion  string     `json:"installed_version,omitempty"`
	LatestVersion     string     `json:"latest_version,omitempty"`
	InProgress        HAProgress `json:"in_progress,omitempty"`

	Raw map[string]any `json:"-"`
}

type haAttributes HAAttributes

func (a *HAAttributes) UnmarshalJSON(b []byte) error {
	var typed haAttributes
	if err := json.Unmarshal(b, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = HAAttributes(typed)
	a.Raw = raw
	return nil
}

func (a HAAttributes) MarshalJSON() ([]byte, error) {
	if a.Raw != nil {
		return json.Marshal(a.Raw)
	}
	return json.Marshal(haAttributes(a))
}

// HAProgress is the in_progress attribute of update entities. Home Assistant
// reports either a boolean or an integer percentage.
type HAProgress struct {
	Active  bool
	Percent *int
}

func (p *HAProgress) UnmarshalJSON(b []byte) error {
	*p = HAProgress{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		p.Active = t
	case float64:
		pct := int(t)
		p.Active = true
		p.Percent = &pct
	}
	return nil
}

func (p HAProgress) MarshalJSON() ([]byte, error) {
	if p.Percent != nil {
		return json.Marshal(*p.Percent)
	}
	return json.Marshal(p.Active)
}

type HAContext struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	UserID   string `json:"user_id"`
}

// HAConfigEntry is one integration entry from /api/config/config_entries/entry.
type HAConfigEntry struct {
	EntryID string `json:"entry_id"`
	Domain  string `json:"domain"`
	Title   string `json:"title"`
	State   string `json:"state"`
	Source  string `json:"source"`
}

// HAServiceTarget is the body of a service call addressed to one entity.
type HAServiceTarget struct {
	EntityID string `json:"entity_id"`
}
