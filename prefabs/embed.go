package prefabs

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
	"time"
)

//go:embed scripts/*.tengo
var ScriptsFS embed.FS

func LoadScript(name string) ([]byte, error) {
	if data, err := os.ReadFile(name); err == nil {
		return data, nil
	}
	clean := cleanPath(name, "scripts")
	if data, err := os.ReadFile(diskPath(clean)); err == nil {
		return data, nil
	}
	return ScriptsFS.ReadFile(clean)
}

//go:embed scenes/*.yaml
var ScenesFS embed.FS

// Load reads a scene file. A path that exists on disk wins, then the
// prefabs/scenes directory, then the embedded samples.
func Load(name string) ([]byte, error) {
	if data, err := os.ReadFile(name); err == nil {
		return data, nil
	}
	clean := cleanPath(name, "scenes")
	if data, err := os.ReadFile(diskPath(clean)); err == nil {
		return data, nil
	}
	return ScenesFS.ReadFile(clean)
}

// SceneNames lists the embedded sample scenes.
func SceneNames() []string {
	entries, err := ScenesFS.ReadDir("scenes")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func ModTime(name string) (time.Time, bool) {
	info, err := os.Stat(name)
	if err != nil {
		info, err = os.Stat(diskPath(cleanPath(name, "scenes")))
		if err != nil {
			return time.Time{}, false
		}
	}
	return info.ModTime(), true
}

// cleanPath maps name to its slash path inside dir, accepting names with
// or without the prefabs/ and dir/ prefixes.
func cleanPath(name, dir string) string {
	if name == "" {
		return ""
	}
	s := filepath.ToSlash(name)
	if after, ok := strings.CutPrefix(s, "prefabs/"); ok {
		s = after
	}
	if after, ok := strings.CutPrefix(s, dir+"/"); ok {
		s = after
	}
	return dir + "/" + s
}

func diskPath(clean string) string {
	return filepath.Join("prefabs", filepath.FromSlash(clean))
}
