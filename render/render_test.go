package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HughODwyer90/hugh.casa/data"
)

func TestIndex(t *testing.T) {
	_, err := Index(nil, []string{"scripts.yaml"})
	assert.ErrorIs(t, err, ErrNoPages)

	out, err := Index([]string{"integrations.html", "entities.html"}, []string{"scripts.yaml", "custom_command.yaml"})
	require.NoError(t, err)
	order := []string{">Entities<", ">Integrations<", ">Custom_Command<", ">Scripts<"}
	last := -1
	for _, s := range order {
		i := strings.Index(out, s)
		require.NotEqual(t, -1, i, s)
		assert.Greater(t, i, last, s)
		last = i
	}
	assert.Contains(t, out, `src="entities.html"`)
	assert.Contains(t, out, `href="assets/index-styles.css"`)
}

func TestEntities(t *testing.T) {
	out, err := Entities(EntitiesPage{
		Version: "2025-05-01-101500",
		Hidden:  2,
		Entities: []*data.HAEntity{
			{ID: "sensor.temp", State: "21.5", Attributes: data.HAAttributes{FriendlyName: "Temp", UnitOfMeasurement: "°C"}},
			{ID: "light.hall", State: "unavailable"},
			{ID: "light.desk", State: "on", Attributes: data.HAAttributes{FriendlyName: "<b>Desk</b>"}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Total Entities: 3 (Hidden: 2)")
	assert.Contains(t, out, "Version: 2025-05-01-101500")
	assert.Contains(t, out, `id="filter-light"`)
	assert.Contains(t, out, `id="filter-sensor"`)
	assert.Contains(t, out, "&lt;b&gt;Desk&lt;/b&gt;", "names are escaped")
	assert.Less(t, strings.Index(out, "light.desk"), strings.Index(out, "light.hall"))
	assert.Less(t, strings.Index(out, "light.hall"), strings.Index(out, "sensor.temp"))
}

func TestIntegrations(t *testing.T) {
	out, err := Integrations("v1", []*data.HAConfigEntry{
		{Domain: "zha", EntryID: "2", Title: "Zigbee"},
		{Domain: "hue", EntryID: "1", Title: "Hue", State: "loaded", Source: "zeroconf"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Total Integrations: 2")
	assert.Less(t, strings.Index(out, ">hue<"), strings.Index(out, ">zha<"))
	assert.Contains(t, out, ">unknown<")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Custom_Command", Title("custom_command"))
	assert.Equal(t, "Shell_Commands", Title("SHELL_COMMANDS"))
	assert.Equal(t, "Esphome2Web", Title("esphome2web"))
}
