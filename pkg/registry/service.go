// Package registry manages the local nf-core module catalog: listing,
// downloading, inspecting, and running modules cached from GitHub.
package registry

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mathysgrapotte/gonf/internal/github"
	"github.com/mathysgrapotte/gonf/pkg/engine"
	"github.com/mathysgrapotte/gonf/pkg/execution"
	"github.com/mathysgrapotte/gonf/pkg/result"
	"github.com/mathysgrapotte/gonf/pkg/schema"
)

const previewLines = 20

// Inspection is the structured summary of a cached module.
type Inspection struct {
	Name        string                 `json:"name"`
	Path        string                 `json:"path"`
	Meta        map[string]interface{} `json:"meta"`
	MetaRaw     string                 `json:"meta_raw"`
	MainNFLines int                    `json:"main_nf_lines"`
	Preview     []string               `json:"main_nf_preview"`
}

// Service composes the cache and the GitHub boundary.
type Service struct {
	cache  *Cache
	client *github.Client
	logger *zap.Logger
}

// NewService wires a service from its collaborators.
func NewService(cache *Cache, client *github.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cache: cache, client: client, logger: logger}
}

// List returns the known top-level module ids, serving the cached list when
// one exists and fetching from GitHub otherwise.
func (s *Service) List(ctx context.Context) ([]string, error) {
	cached, err := s.cache.ReadModulesList()
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	entries, err := s.client.DirectoryEntries(ctx, "")
	if err != nil {
		return nil, err
	}
	modules := directoryNames(entries)
	if err := s.cache.WriteModulesList(modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// Submodules lists the submodules under a parent module id. Always fetched
// live; submodule listings are not cached.
func (s *Service) Submodules(ctx context.Context, moduleID string) ([]string, error) {
	entries, err := s.client.DirectoryEntries(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	return directoryNames(entries), nil
}

// RateLimit returns the GitHub API quota snapshot.
func (s *Service) RateLimit(ctx context.Context) (github.RateLimit, error) {
	return s.client.RateLimitStatus(ctx)
}

// Ensure makes a module available locally, downloading main.nf and meta.yml
// when missing or when force is set.
func (s *Service) Ensure(ctx context.Context, moduleID string, force bool) (ModulePaths, error) {
	if s.cache.IsCached(moduleID) && !force {
		return s.cache.Paths(moduleID), nil
	}

	s.logger.Debug("downloading module", zap.String("module", moduleID), zap.Bool("force", force))
	mainNF, err := s.client.RawText(ctx, moduleID+"/main.nf")
	if err != nil {
		return ModulePaths{}, err
	}
	metaYML, err := s.client.RawText(ctx, moduleID+"/meta.yml")
	if err != nil {
		return ModulePaths{}, err
	}
	return s.cache.WriteModuleFiles(moduleID, mainNF, metaYML)
}

// Inspect ensures the module locally and summarizes its metadata, parsed
// meta.yml included.
func (s *Service) Inspect(ctx context.Context, moduleID string) (*Inspection, error) {
	paths, err := s.Ensure(ctx, moduleID, false)
	if err != nil {
		return nil, err
	}

	metaRaw, mainNF, err := readModuleFiles(paths)
	if err != nil {
		return nil, err
	}
	var meta map[string]interface{}
	if err := yaml.Unmarshal([]byte(metaRaw), &meta); err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSuffix(mainNF, "\n"), "\n")
	preview := lines
	if len(preview) > previewLines {
		preview = preview[:previewLines]
	}
	return &Inspection{
		Name:        moduleID,
		Path:        paths.Dir,
		Meta:        meta,
		MetaRaw:     metaRaw,
		MainNFLines: len(lines),
		Preview:     preview,
	}, nil
}

// ModuleInputs ensures the module locally and introspects its declared
// input channels using a short-lived session that is destroyed before
// returning.
func (s *Service) ModuleInputs(ctx context.Context, moduleID, bundlePath string) ([]schema.ChannelSpec, error) {
	paths, err := s.Ensure(ctx, moduleID, false)
	if err != nil {
		return nil, err
	}

	rt, err := engine.EnsureStarted(engine.ResolveBundlePath(bundlePath), s.logger)
	if err != nil {
		return nil, err
	}
	session, err := rt.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if err := session.Init(paths.MainNF); err != nil {
		return nil, err
	}
	if err := session.Start(); err != nil {
		return nil, err
	}
	loader, err := session.NewLoader()
	if err != nil {
		return nil, err
	}
	if err := loader.Parse(paths.MainNF); err != nil {
		return nil, err
	}
	return schema.InputChannels(loader, s.logger)
}

// RunModule ensures the module locally and executes its main.nf with the
// given request. The request's ScriptPath is replaced with the module's.
func (s *Service) RunModule(ctx context.Context, moduleID string, req execution.Request, force bool) (*result.Result, error) {
	paths, err := s.Ensure(ctx, moduleID, force)
	if err != nil {
		return nil, err
	}
	req.ScriptPath = paths.MainNF
	return execution.Execute(ctx, req)
}

func directoryNames(entries []github.Entry) []string {
	var names []string
	for _, entry := range entries {
		if entry.Type == "dir" {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)
	return names
}

func readModuleFiles(paths ModulePaths) (metaRaw, mainNF string, err error) {
	meta, err := readFile(paths.MetaYML)
	if err != nil {
		return "", "", err
	}
	main, err := readFile(paths.MainNF)
	if err != nil {
		return "", "", err
	}
	return meta, main, nil
}
