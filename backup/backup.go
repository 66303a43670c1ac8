// Package backup runs the "living backup": it snapshots the Home Assistant
// entity and integration lists into static pages and mirrors them, together
// with the YAML configuration and python scripts, into a GitHub repository.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/HughODwyer90/hugh.casa/contentsync"
	"github.com/HughODwyer90/hugh.casa/data"
	"github.com/HughODwyer90/hugh.casa/exclusion"
	"github.com/HughODwyer90/hugh.casa/render"
	"github.com/HughODwyer90/hugh.casa/report"
	"github.com/HughODwyer90/hugh.casa/retry"
)

const (
	pagesPrefix   = "community"
	scriptsPrefix = "python_scripts"
	versionLayout = "2006-01-02-150405"

	entitiesHTML     = "entities.html"
	entitiesJSON     = "entities.json"
	integrationsHTML = "integrations.html"
	integrationsJSON = "integrations.json"
	indexHTML        = "index.html"
)

// HomeAssistant is the part of the Home Assistant API the backup reads.
type HomeAssistant interface {
	States(ctx context.Context) ([]*data.HAEntity, error)
	ConfigEntries(ctx context.Context) ([]*data.HAConfigEntry, error)
}

// Uploader mirrors one local file to a repository path.
type Uploader interface {
	UploadFile(ctx context.Context, fs afero.Fs, localPath, remotePath, message string) contentsync.Result
}

type Options struct {
	HTMLDir     string
	YAMLDirs    []string
	ScriptsDir  string
	ExcludeFile string
	// UploadPause is waited between YAML uploads.
	UploadPause time.Duration

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

type Job struct {
	ha   HomeAssistant
	up   Uploader
	fs   afero.Fs
	opts Options
}

func New(ha HomeAssistant, up Uploader, fs afero.Fs, opts Options) *Job {
	if opts.Sleep == nil {
		opts.Sleep = retry.Wait
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Job{ha: ha, up: up, fs: fs, opts: opts}
}

// Run performs one backup. Every item is attempted; the returned error
// combines all failures and is nil only if nothing failed.
func (j *Job) Run(ctx context.Context, log *report.Log) error {
	var errs error
	fail := func(kind report.Kind, subject string, err error) {
		log.Fail(kind, subject, err)
		errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", kind, subject, err))
	}
	upload := func(localPath, remotePath, message string) {
		res := j.up.UploadFile(ctx, j.fs, localPath, remotePath, message)
		log.Upload(res)
		if res.Status == contentsync.StatusFailed {
			errs = multierr.Append(errs, fmt.Errorf("upload %s: %w", remotePath, res.Err))
		}
	}

	excl, err := exclusion.Load(j.fs, j.opts.ExcludeFile)
	if err != nil {
		fail(report.KindFetch, j.opts.ExcludeFile, err)
		excl, _ = exclusion.New()
	}
	glog.Infof("loaded %d exclusion pattern(s)", excl.Len())
	version := j.opts.Now().UTC().Format(versionLayout)

	var pages []string
	if err := j.entityPages(ctx, version); err != nil {
		fail(report.KindFetch, "entities", err)
	} else {
		pages = append(pages, entitiesHTML, entitiesJSON)
	}
	if err := j.integrationPages(ctx, version); err != nil {
		fail(report.KindFetch, "integrations", err)
	} else {
		pages = append(pages, integrationsHTML, integrationsJSON)
	}
	for _, p := range pages {
		upload(filepath.Join(j.opts.HTMLDir, p), path.Join(pagesPrefix, p), "Update "+p)
	}

	for i, f := range j.yamlFiles(excl) {
		if i > 0 && j.opts.UploadPause > 0 {
			if err := j.opts.Sleep(ctx, j.opts.UploadPause); err != nil {
				fail(report.KindUpload, f, err)
				return errs
			}
		}
		upload(f, path.Join(pagesPrefix, filepath.Base(f)), "Update "+filepath.Base(f))
	}

	assets := filepath.Join(j.opts.HTMLDir, render.AssetPath)
	for _, f := range j.list(assets, "", excl) {
		upload(f, path.Join(pagesPrefix, render.AssetPath, filepath.Base(f)), "Update "+filepath.Base(f))
	}

	for _, f := range j.list(j.opts.ScriptsDir, ".py", excl) {
		upload(f, path.Join(scriptsPrefix, filepath.Base(f)), "Update "+filepath.Base(f))
	}

	// The index links to everything above, so it goes last.
	if err := j.indexPage(excl); err != nil {
		fail(report.KindRender, indexHTML, err)
	} else {
		upload(filepath.Join(j.opts.HTMLDir, indexHTML), path.Join(pagesPrefix, indexHTML), "Update index.html with latest file listings")
	}
	return errs
}

func (j *Job) entityPages(ctx context.Context, version string) error {
	entities, err := j.ha.States(ctx)
	if err != nil {
		return fmt.Errorf("unable to fetch HA entities: %w", err)
	}
	kept, redacted := Redact(entities)
	glog.Infof("total entities fetched: %d | redacted: %d", len(entities), redacted)

	html, err := render.Entities(render.EntitiesPage{Version: version, Hidden: redacted, Entities: kept})
	if err != nil {
		return fmt.Errorf("unable to render entities: %w", err)
	}
	js, err := json.MarshalIndent(kept, "", "    ")
	if err != nil {
		return fmt.Errorf("unable to encode entities: %w", err)
	}
	return j.writePages(map[string][]byte{entitiesHTML: []byte(html), entitiesJSON: js})
}

type integrationRow struct {
	Domain  string `json:"Integration ID"`
	EntryID string `json:"Config Entry ID"`
	Title   string `json:"Title"`
	State   string `json:"State"`
	Source  string `json:"Source"`
}

func (j *Job) integrationPages(ctx context.Context, version string) error {
	entries, err := j.ha.ConfigEntries(ctx)
	if err != nil {
		return fmt.Errorf("unable to fetch HA integrations: %w", err)
	}
	html, err := render.Integrations(version, entries)
	if err != nil {
		return fmt.Errorf("unable to render integrations: %w", err)
	}
	rows := make([]integrationRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, integrationRow{Domain: e.Domain, EntryID: e.EntryID, Title: e.Title, State: e.State, Source: e.Source})
	}
	js, err := json.MarshalIndent(rows, "", "    ")
	if err != nil {
		return fmt.Errorf("unable to encode integrations: %w", err)
	}
	return j.writePages(map[string][]byte{integrationsHTML: []byte(html), integrationsJSON: js})
}

func (j *Job) indexPage(excl *exclusion.Set) error {
	var html, yaml []string
	for _, f := range j.list(j.opts.HTMLDir, ".html", excl) {
		if name := filepath.Base(f); name != indexHTML {
			html = append(html, name)
		}
	}
	if len(j.opts.YAMLDirs) > 0 {
		for _, f := range j.list(j.opts.YAMLDirs[0], ".yaml", excl) {
			yaml = append(yaml, filepath.Base(f))
		}
	}
	out, err := render.Index(html, yaml)
	if err != nil {
		return err
	}
	return j.writePages(map[string][]byte{indexHTML: []byte(out)})
}

func (j *Job) writePages(pages map[string][]byte) error {
	if err := j.fs.MkdirAll(j.opts.HTMLDir, 0o755); err != nil {
		return fmt.Errorf("unable to create %s: %w", j.opts.HTMLDir, err)
	}
	for name, b := range pages {
		p := filepath.Join(j.opts.HTMLDir, name)
		if err := afero.WriteFile(j.fs, p, b, 0o644); err != nil {
			return fmt.Errorf("unable to write %s: %w", p, err)
		}
	}
	return nil
}

func (j *Job) yamlFiles(excl *exclusion.Set) []string {
	var out []string
	for _, dir := range j.opts.YAMLDirs {
		out = append(out, j.list(dir, ".yaml", excl)...)
	}
	return out
}

// list returns the regular files in dir with the given extension (any if
// empty), minus exclusions, sorted by name. A missing directory lists nothing.
func (j *Job) list(dir, ext string, excl *exclusion.Set) []string {
	if dir == "" {
		return nil
	}
	infos, err := afero.ReadDir(j.fs, dir)
	if err != nil {
		glog.Warningf("directory %s is not readable, skipping: %s", dir, err)
		return nil
	}
	var names []string
	for _, fi := range infos {
		if fi.IsDir() || (ext != "" && !strings.HasSuffix(fi.Name(), ext)) {
			continue
		}
		names = append(names, fi.Name())
	}
	names = excl.Filter(names)
	sort.Strings(names)
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(dir, n)
	}
	return out
}
