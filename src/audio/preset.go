package audio

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const presetExt = ".yaml"

type presetManager struct {
	dir string
}

func newPresetManager(dir string) *presetManager {
	return &presetManager{
		dir: dir,
	}
}

func (pm *presetManager) getList() ([]string, error) {
	entries, err := os.ReadDir(pm.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != presetExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), presetExt))
	}
	sort.Strings(names)
	return names, nil
}

func (pm *presetManager) load(name string) (*Config, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return nil, &ConfigError{Field: "preset", Value: name, Reason: "must be a plain file name"}
	}
	return LoadConfig(filepath.Join(pm.dir, name+presetExt))
}
