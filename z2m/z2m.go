// Package z2m finds zigbee2mqtt devices with pending OTA updates and keeps the
// list of their Home Assistant update entities.
package z2m

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/afero"
)

const logFileName = "log.log"

var (
	// ErrNoLogs is returned when the log base holds no run directories.
	ErrNoLogs = errors.New("no zigbee2mqtt log directories found")

	topicRe = regexp.MustCompile(`zigbee2mqtt/([^']+)`)
)

// LatestLog returns the log.log of the newest run directory under base.
// zigbee2mqtt names run directories by timestamp, so the newest sorts last.
func LatestLog(fs afero.Fs, base string) (string, error) {
	infos, err := afero.ReadDir(fs, base)
	if err != nil {
		return "", fmt.Errorf("unable to list %s: %w", base, err)
	}
	var dirs []string
	for _, fi := range infos {
		if fi.IsDir() {
			dirs = append(dirs, fi.Name())
		}
	}
	if len(dirs) == 0 {
		return "", ErrNoLogs
	}
	sort.Strings(dirs)
	p := path.Join(base, dirs[len(dirs)-1], logFileName)
	if ok, _ := afero.Exists(fs, p); !ok {
		return "", fmt.Errorf("%s not found in %s: %w", logFileName, path.Dir(p), os.ErrNotExist)
	}
	return p, nil
}

// ParseUpdates scans a zigbee2mqtt log for devices publishing an available
// update and returns their update entity IDs, sorted and de-duplicated.
func ParseUpdates(log []byte) []string {
	seen := map[string]bool{}
	sc := bufio.NewScanner(bytes.NewReader(log))
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "zigbee2mqtt/") || !strings.Contains(line, `"state":"available"`) {
			continue
		}
		m := topicRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id := EntityID(m[1])
		if !seen[id] {
			glog.V(1).Infof("found pending update: %s", id)
		}
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EntityID maps a zigbee2mqtt friendly name to its update entity.
func EntityID(friendlyName string) string {
	name := strings.ToLower(strings.TrimSpace(friendlyName))
	return "update." + strings.ReplaceAll(name, " ", "_")
}

// Extract reads the newest log under base and returns the pending updates.
func Extract(fs afero.Fs, base string) ([]string, error) {
	p, err := LatestLog(fs, base)
	if err != nil {
		return nil, err
	}
	glog.Infof("using log file %s", p)
	b, err := afero.ReadFile(fs, p)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", p, err)
	}
	return ParseUpdates(b), nil
}

// WriteList stores entity IDs one per line, creating the parent directory.
func WriteList(fs afero.Fs, p string, ids []string) error {
	if err := fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("unable to create %s: %w", path.Dir(p), err)
	}
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	return afero.WriteFile(fs, p, []byte(b.String()), 0o644)
}

// ReadList reads entity IDs written by WriteList, skipping blank lines.
func ReadList(fs afero.Fs, p string) ([]string, error) {
	b, err := afero.ReadFile(fs, p)
	if err != nil {
		return nil, fmt.Errorf("unable to read update list: %w", err)
	}
	var ids []string
	for _, line := range strings.Split(string(b), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, nil
}
