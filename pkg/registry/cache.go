package registry

import (
	"os"
	"path/filepath"
	"strings"
)

const modulesListFilename = "modules_list.txt"

// ModulePaths locates the cached files of one module.
type ModulePaths struct {
	ModuleID string
	Dir      string
	MainNF   string
	MetaYML  string
}

// Cache manages the local module store: a flat text list of known module
// ids plus one directory per cached module. Writes are last-writer-wins;
// there is no locking across processes.
type Cache struct {
	dir string
}

// NewCache returns a cache rooted at dir. The directory is created lazily
// on first write.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Paths returns the canonical file locations for a module id.
func (c *Cache) Paths(moduleID string) ModulePaths {
	dir := filepath.Join(c.dir, filepath.FromSlash(moduleID))
	return ModulePaths{
		ModuleID: moduleID,
		Dir:      dir,
		MainNF:   filepath.Join(dir, "main.nf"),
		MetaYML:  filepath.Join(dir, "meta.yml"),
	}
}

// IsCached reports whether both module files exist locally.
func (c *Cache) IsCached(moduleID string) bool {
	paths := c.Paths(moduleID)
	return fileExists(paths.MainNF) && fileExists(paths.MetaYML)
}

// ReadModulesList returns the cached module id list, or nil when no list
// has been written yet.
func (c *Cache) ReadModulesList() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, modulesListFilename))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var modules []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			modules = append(modules, line)
		}
	}
	return modules, nil
}

// WriteModulesList persists the module id list, one id per line.
func (c *Cache) WriteModulesList(modules []string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	content := strings.Join(modules, "\n")
	if len(modules) > 0 {
		content += "\n"
	}
	return os.WriteFile(filepath.Join(c.dir, modulesListFilename), []byte(content), 0o644)
}

// WriteModuleFiles stores the two module files, creating the module
// directory as needed.
func (c *Cache) WriteModuleFiles(moduleID, mainNF, metaYML string) (ModulePaths, error) {
	paths := c.Paths(moduleID)
	if err := os.MkdirAll(paths.Dir, 0o755); err != nil {
		return ModulePaths{}, err
	}
	if err := os.WriteFile(paths.MainNF, []byte(mainNF), 0o644); err != nil {
		return ModulePaths{}, err
	}
	if err := os.WriteFile(paths.MetaYML, []byte(metaYML), 0o644); err != nil {
		return ModulePaths{}, err
	}
	return paths, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
