package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sdejongh/skiff/internal/platform"
	"github.com/sdejongh/skiff/pkg/models"
)

// ErrNotFound is returned when a site or profile lookup misses
var ErrNotFound = errors.New("not found")

// Store persists sites and sync profiles as YAML files in the
// configuration directory
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a store rooted at dir. An empty dir selects the
// platform configuration directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = platform.ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store
func (s *Store) Dir() string {
	return s.dir
}

// SitesPath returns the path of the sites file
func (s *Store) SitesPath() string {
	return filepath.Join(s.dir, "sites.yaml")
}

// ProfilesPath returns the path of the sync profiles file
func (s *Store) ProfilesPath() string {
	return filepath.Join(s.dir, "profiles.yaml")
}

type sitesFile struct {
	Sites []*models.Site `yaml:"sites"`
}

type profilesFile struct {
	Profiles []*models.SyncProfile `yaml:"profiles"`
}

// LoadSites returns all saved sites. A missing file yields an empty
// list.
func (s *Store) LoadSites() ([]*models.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSites()
}

func (s *Store) loadSites() ([]*models.Site, error) {
	data, err := os.ReadFile(s.SitesPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}

	var f sitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}
	return f.Sites, nil
}

// SaveSites writes the full site list
func (s *Store) SaveSites(sites []*models.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSites(sites)
}

func (s *Store) saveSites(sites []*models.Site) error {
	data, err := yaml.Marshal(&sitesFile{Sites: sites})
	if err != nil {
		return fmt.Errorf("failed to marshal sites: %w", err)
	}
	// Sites may carry passwords, keep the file private
	if err := os.WriteFile(s.SitesPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write sites file: %w", err)
	}
	return nil
}

// AddSite validates and appends a new site. Names must be unique.
func (s *Store) AddSite(site *models.Site) error {
	if err := site.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sites, err := s.loadSites()
	if err != nil {
		return err
	}

	for _, existing := range sites {
		if existing.ID == site.ID {
			return fmt.Errorf("site id %s already exists", site.ID)
		}
		if strings.EqualFold(existing.Name, site.Name) {
			return fmt.Errorf("site name %q already exists", site.Name)
		}
	}

	return s.saveSites(append(sites, site))
}

// FindSite looks a site up by id or name (case-insensitive)
func (s *Store) FindSite(nameOrID string) (*models.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sites, err := s.loadSites()
	if err != nil {
		return nil, err
	}

	for _, site := range sites {
		if site.ID == nameOrID || strings.EqualFold(site.Name, nameOrID) {
			return site, nil
		}
	}
	return nil, fmt.Errorf("site %q: %w", nameOrID, ErrNotFound)
}

// UpdateSite replaces the stored site with the same id
func (s *Store) UpdateSite(site *models.Site) error {
	if err := site.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sites, err := s.loadSites()
	if err != nil {
		return err
	}

	for i, existing := range sites {
		if existing.ID == site.ID {
			sites[i] = site
			return s.saveSites(sites)
		}
	}
	return fmt.Errorf("site %s: %w", site.ID, ErrNotFound)
}

// RemoveSite deletes a site by id or name
func (s *Store) RemoveSite(nameOrID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sites, err := s.loadSites()
	if err != nil {
		return err
	}

	for i, site := range sites {
		if site.ID == nameOrID || strings.EqualFold(site.Name, nameOrID) {
			sites = append(sites[:i], sites[i+1:]...)
			return s.saveSites(sites)
		}
	}
	return fmt.Errorf("site %q: %w", nameOrID, ErrNotFound)
}

// SitesByFolder returns the sites filed under the given folder
func (s *Store) SitesByFolder(folder string) ([]*models.Site, error) {
	sites, err := s.LoadSites()
	if err != nil {
		return nil, err
	}

	var matched []*models.Site
	for _, site := range sites {
		if site.Folder == folder {
			matched = append(matched, site)
		}
	}
	return matched, nil
}

// ExportSites writes sites to path. Unless includeCredentials is set,
// passwords, passphrases and environment references are stripped and
// only username, auth method and agent flag survive.
func (s *Store) ExportSites(path string, includeCredentials bool) error {
	sites, err := s.LoadSites()
	if err != nil {
		return err
	}

	out := make([]*models.Site, 0, len(sites))
	for _, site := range sites {
		if includeCredentials {
			out = append(out, site)
			continue
		}
		clone := *site
		clone.Credential = models.Credential{
			Username:   site.Credential.Username,
			AuthMethod: site.Credential.AuthMethod,
			UseAgent:   site.Credential.UseAgent,
		}
		out = append(out, &clone)
	}

	data, err := yaml.Marshal(&sitesFile{Sites: out})
	if err != nil {
		return fmt.Errorf("failed to marshal sites: %w", err)
	}

	mode := os.FileMode(0644)
	if includeCredentials {
		mode = 0600
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// ImportSites reads sites from path and upserts them by id, skipping
// entries that fail validation. Returns the number imported.
func (s *Store) ImportSites(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read import file: %w", err)
	}

	var f sitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("failed to parse import file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sites, err := s.loadSites()
	if err != nil {
		return 0, err
	}

	byID := make(map[string]int, len(sites))
	for i, site := range sites {
		byID[site.ID] = i
	}

	imported := 0
	for _, site := range f.Sites {
		if site.Validate() != nil {
			continue
		}
		if i, ok := byID[site.ID]; ok {
			sites[i] = site
		} else {
			byID[site.ID] = len(sites)
			sites = append(sites, site)
		}
		imported++
	}

	if err := s.saveSites(sites); err != nil {
		return 0, err
	}
	return imported, nil
}

// LoadProfiles returns all saved sync profiles. A missing file yields
// an empty list.
func (s *Store) LoadProfiles() ([]*models.SyncProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadProfiles()
}

func (s *Store) loadProfiles() ([]*models.SyncProfile, error) {
	data, err := os.ReadFile(s.ProfilesPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}
	return f.Profiles, nil
}

// SaveProfiles writes the full profile list
func (s *Store) SaveProfiles(profiles []*models.SyncProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveProfiles(profiles)
}

func (s *Store) saveProfiles(profiles []*models.SyncProfile) error {
	data, err := yaml.Marshal(&profilesFile{Profiles: profiles})
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	if err := os.WriteFile(s.ProfilesPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

// AddProfile validates and appends a new sync profile
func (s *Store) AddProfile(profile *models.SyncProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.loadProfiles()
	if err != nil {
		return err
	}

	for _, existing := range profiles {
		if existing.ID == profile.ID {
			return fmt.Errorf("profile id %s already exists", profile.ID)
		}
		if strings.EqualFold(existing.Name, profile.Name) {
			return fmt.Errorf("profile name %q already exists", profile.Name)
		}
	}

	return s.saveProfiles(append(profiles, profile))
}

// FindProfile looks a profile up by id or name (case-insensitive)
func (s *Store) FindProfile(nameOrID string) (*models.SyncProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.loadProfiles()
	if err != nil {
		return nil, err
	}

	for _, profile := range profiles {
		if profile.ID == nameOrID || strings.EqualFold(profile.Name, nameOrID) {
			return profile, nil
		}
	}
	return nil, fmt.Errorf("profile %q: %w", nameOrID, ErrNotFound)
}

// UpdateProfile replaces the stored profile with the same id
func (s *Store) UpdateProfile(profile *models.SyncProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.loadProfiles()
	if err != nil {
		return err
	}

	for i, existing := range profiles {
		if existing.ID == profile.ID {
			profiles[i] = profile
			return s.saveProfiles(profiles)
		}
	}
	return fmt.Errorf("profile %s: %w", profile.ID, ErrNotFound)
}

// RemoveProfile deletes a profile by id or name
func (s *Store) RemoveProfile(nameOrID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.loadProfiles()
	if err != nil {
		return err
	}

	for i, profile := range profiles {
		if profile.ID == nameOrID || strings.EqualFold(profile.Name, nameOrID) {
			profiles = append(profiles[:i], profiles[i+1:]...)
			return s.saveProfiles(profiles)
		}
	}
	return fmt.Errorf("profile %q: %w", nameOrID, ErrNotFound)
}
