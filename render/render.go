// Package render builds the static "living backup" pages from plain data.
// Every function is pure: no network, no filesystem.
package render

import (
	"bytes"
	"errors"
	"html/template"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/HughODwyer90/hugh.casa/data"
)

// AssetPath is where the pages expect their CSS and JS.
const AssetPath = "assets"

// ErrNoPages is returned by Index when there is nothing to link to.
var ErrNoPages = errors.New("no HTML pages to index")

var funcs = template.FuncMap{
	"title": Title,
	"stem":  func(name string) string { return strings.TrimSuffix(name, path.Ext(name)) },
}

var pages = template.Must(template.New("pages").Funcs(funcs).Parse(`
{{define "head"}}<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="{{.Assets}}/{{.Style}}">
    <link rel="icon" type="image/x-icon" href="{{.Assets}}/favicon.png">
    <script defer src="{{.Assets}}/{{.Script}}"></script>
</head>{{end}}

{{define "index"}}<!DOCTYPE html>
<html lang="en">
{{template "head" .}}
<body>
    <nav>
        <ul>{{range .Files}}<li><a href="#" data-file="{{.}}">{{title (stem .)}}</a></li>{{end}}</ul>
        <a id="download-btn" class="download-btn" href="#" download="">Download File</a>
    </nav>
    <iframe id="content-frame" src="{{.Default}}" style="width: 100%; height: calc(100vh - 60px); border: none;"></iframe>
</body>
</html>
{{end}}

{{define "entities"}}<!DOCTYPE html>
<html lang="en">
{{template "head" .}}
<body>
    <h1>Home Assistant Entities</h1>
    <p>Total Entities: {{.Total}} (Hidden: {{.Hidden}})</p>
    <p>Version: {{.Version}}</p>
    <div class="search-container">
        <input type="text" id="entitySearch" class="search-box" placeholder="Search entities...">
    </div>
    <div class="filters">
        <div id="filter-All" class="filter entity-filter active">All</div>
        {{range .Prefixes}}<div id="filter-{{.}}" class="filter entity-filter">{{.}}</div>{{end}}
    </div>
    <table id="entitiesTable">
        <thead>
            <tr><th>Entity ID</th><th>Friendly Name</th><th>Unit</th><th>States</th><th>Available</th></tr>
        </thead>
        <tbody>
        {{range .Rows}}<tr>
            <td>{{.ID}}</td>
            <td>{{.Name}}</td>
            <td>{{.Unit}}</td>
            <td>{{.States}}</td>
            <td>{{if .Available}}Yes{{else}}No{{end}}</td>
        </tr>
        {{end}}</tbody>
    </table>
</body>
</html>
{{end}}

{{define "integrations"}}<!DOCTYPE html>
<html lang="en">
{{template "head" .}}
<body>
    <h1>Home Assistant Integrations</h1>
    <p>Total Integrations: {{.Total}}</p>
    <p>Version: {{.Version}}</p>
    <div class="search-container">
        <input type="text" id="integrationSearch" class="search-box" placeholder="Search integrations...">
    </div>
    <table id="integrationsTable">
        <thead>
            <tr><th>Integration ID</th><th>Config Entry ID</th><th>Title</th><th>State</th><th>Source</th></tr>
        </thead>
        <tbody>
        {{range .Entries}}<tr>
            <td>{{.Domain}}</td>
            <td>{{.EntryID}}</td>
            <td>{{.Title}}</td>
            <td>{{.State}}</td>
            <td>{{.Source}}</td>
        </tr>
        {{end}}</tbody>
    </table>
</body>
</html>
{{end}}
`))

type head struct {
	Title  string
	Assets string
	Style  string
	Script string
}

// Index renders the navigation page linking every HTML page, then every YAML
// file, each group sorted by name.
func Index(htmlFiles, yamlFiles []string) (string, error) {
	if len(htmlFiles) == 0 {
		return "", ErrNoPages
	}
	html := sorted(htmlFiles)
	files := append(html, sorted(yamlFiles)...)
	def := html[0]
	for _, f := range html {
		if f == "entities.html" {
			def = f
		}
	}
	return execute("index", struct {
		head
		Files   []string
		Default string
	}{
		head:    head{Title: "Living Backup", Assets: AssetPath, Style: "index-styles.css", Script: "index-functions.js"},
		Files:   files,
		Default: def,
	})
}

// EntityRow is one line of the entities table.
type EntityRow struct {
	ID        string
	Name      string
	Unit      string
	States    string
	Available bool
}

// EntitiesPage is the input of Entities.
type EntitiesPage struct {
	Version  string
	Hidden   int
	Entities []*data.HAEntity
}

// Entities renders the entity table, sorted by entity ID, with one filter per domain.
func Entities(p EntitiesPage) (string, error) {
	rows := make([]EntityRow, 0, len(p.Entities))
	prefixes := map[string]bool{}
	for _, e := range p.Entities {
		prefixes[e.Domain()] = true
		rows = append(rows, EntityRow{
			ID:        e.ID,
			Name:      orNA(e.Attributes.FriendlyName),
			Unit:      orNA(e.Attributes.UnitOfMeasurement),
			States:    binaryStates(e.State),
			Available: e.State != "unavailable",
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	return execute("entities", struct {
		head
		Version  string
		Total    int
		Hidden   int
		Prefixes []string
		Rows     []EntityRow
	}{
		head:     head{Title: "Home Assistant Entities", Assets: AssetPath, Style: "table-styles.css", Script: "table-functions.js"},
		Version:  p.Version,
		Total:    len(p.Entities),
		Hidden:   p.Hidden,
		Prefixes: sortedKeys(prefixes),
		Rows:     rows,
	})
}

// Integrations renders the config entry table, sorted by domain then title.
func Integrations(version string, entries []*data.HAConfigEntry) (string, error) {
	rows := make([]data.HAConfigEntry, 0, len(entries))
	for _, e := range entries {
		r := *e
		r.Domain, r.EntryID, r.Title = orNA(r.Domain), orNA(r.EntryID), orNA(r.Title)
		if r.State == "" {
			r.State = "unknown"
		}
		if r.Source == "" {
			r.Source = "unknown"
		}
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Domain != rows[j].Domain {
			return rows[i].Domain < rows[j].Domain
		}
		return rows[i].Title < rows[j].Title
	})
	return execute("integrations", struct {
		head
		Version string
		Total   int
		Entries []data.HAConfigEntry
	}{
		head:    head{Title: "Home Assistant Integrations", Assets: AssetPath, Style: "table-styles.css", Script: "table-functions.js"},
		Version: version,
		Total:   len(rows),
		Entries: rows,
	})
}

// Title upper-cases the first letter of every word and lower-cases the rest,
// where words are runs of letters ("custom_command" -> "Custom_Command").
func Title(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

func execute(name string, v any) (string, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func binaryStates(state string) string {
	if state == "on" || state == "off" {
		return "on, off"
	}
	return "N/A"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
