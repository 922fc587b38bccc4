package protocol

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sdejongh/skiff/pkg/models"
)

// Factory builds an unconnected session for one site
type Factory func(site *models.Site, opts Options) Session

var (
	registryMu sync.RWMutex
	registry   = make(map[models.Protocol]Factory)
)

// Register makes a protocol backend available under its name.
// Backends call this from their init function.
func Register(p models.Protocol, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p] = f
}

// Create builds a session for the site using the registered backend.
// The session is not connected yet.
func Create(site *models.Site, opts Options) (Session, error) {
	registryMu.RLock()
	f, ok := registry[site.Protocol]
	registryMu.RUnlock()

	if !ok {
		return nil, &models.ValidationError{
			Field:   "Protocol",
			Message: fmt.Sprintf("unsupported protocol %q", site.Protocol),
		}
	}
	return f(site, opts), nil
}

// Supported returns the registered protocol names, sorted
func Supported() []models.Protocol {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]models.Protocol, 0, len(registry))
	for p := range registry {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
