// Package source selects the site extractor for a run.
package source

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/JakeFAU/archive-crawler/internal/crawler"
	"github.com/JakeFAU/archive-crawler/internal/source/kommersant"
	"github.com/JakeFAU/archive-crawler/internal/source/lenta"
)

// ErrUnknownSource is returned by Lookup for unregistered names.
var ErrUnknownSource = errors.New("unknown source")

var registry = map[string]func() crawler.Extractor{
	lenta.Name:      func() crawler.Extractor { return lenta.New() },
	kommersant.Name: func() crawler.Extractor { return kommersant.New() },
}

// Lookup returns a fresh extractor for name (case-insensitive).
func Lookup(name string) (crawler.Extractor, error) {
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownSource, name, strings.Join(Names(), ", "))
	}
	return factory(), nil
}

// Names lists the registered sources in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
