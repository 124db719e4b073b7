package lifecycle

import (
	"reflect"
	"sort"

	"go.uber.org/zap"
)

// DiscoveryService enumerates managers from registered sources and dedupes
// them into an ordered descriptor list.
type DiscoveryService struct {
	logger  *zap.Logger
	sources []Source
}

// NewDiscoveryService creates a discovery service over the given sources.
func NewDiscoveryService(logger *zap.Logger, sources ...Source) *DiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryService{logger: logger, sources: sources}
}

// AddSource appends another manager source. Sources are scanned in
// registration order on the next Discover call.
func (d *DiscoveryService) AddSource(src Source) {
	d.sources = append(d.sources, src)
}

// Discover scans every source, keeps the first manager seen per concrete
// type, and returns descriptors sorted by priority then name. The result is
// rebuilt from scratch on every call.
func (d *DiscoveryService) Discover() []*Descriptor {
	seen := make(map[reflect.Type]bool)
	var descriptors []*Descriptor

	for _, src := range d.sources {
		for _, m := range src.Managers() {
			if m == nil {
				continue
			}
			typ := reflect.TypeOf(m)
			if seen[typ] {
				d.logger.Debug("duplicate manager type skipped",
					zap.String("manager", m.Name()),
					zap.String("type", typ.String()))
				continue
			}
			seen[typ] = true
			descriptors = append(descriptors, &Descriptor{
				Type:        typ,
				Manager:     m,
				Priority:    m.Priority(),
				Category:    m.Category(),
				Initialized: m.IsInitialized(),
			})
		}
	}

	sort.SliceStable(descriptors, func(i, j int) bool {
		if descriptors[i].Priority != descriptors[j].Priority {
			return descriptors[i].Priority < descriptors[j].Priority
		}
		return descriptors[i].Manager.Name() < descriptors[j].Manager.Name()
	})

	d.logger.Info("manager discovery completed",
		zap.Int("managers", len(descriptors)),
		zap.Int("sources", len(d.sources)))
	return descriptors
}

// byCategory filters an ordered descriptor list down to one category,
// preserving the discovery ordering.
func byCategory(descriptors []*Descriptor, cat Category) []*Descriptor {
	var out []*Descriptor
	for _, d := range descriptors {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}
