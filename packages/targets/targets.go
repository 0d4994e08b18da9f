package targets

import (
	"sort"

	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
)

// Target is a named suite constructor with a default base URL.
type Target struct {
	Name        string
	Description string
	BaseURL     string
	build       func(baseURL string) *suite.Suite
}

// Suite builds the target's suite against baseURL, or against the public
// API when baseURL is empty.
func (t Target) Suite(baseURL string) *suite.Suite {
	if baseURL == "" {
		baseURL = t.BaseURL
	}
	return t.build(baseURL)
}

var registry = map[string]Target{
	"brewery": {
		Name:        "brewery",
		Description: "Open Brewery DB: lookup by id, filter by type, page size",
		BaseURL:     BreweryBaseURL,
		build:       Brewery,
	},
	"dogs": {
		Name:        "dogs",
		Description: "Dog CEO: breeds, random images, sub-breed images",
		BaseURL:     DogsBaseURL,
		build:       Dogs,
	},
	"jsonplaceholder": {
		Name:        "jsonplaceholder",
		Description: "JSONPlaceholder posts: list, get, create, update",
		BaseURL:     PlaceholderBaseURL,
		build:       Placeholder,
	},
}

// All returns every catalog target sorted by name.
func All() []Target {
	out := make([]Target, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func Lookup(name string) (Target, bool) {
	t, ok := registry[name]
	return t, ok
}

// Names lists the registered target names.
func Names() []string {
	var names []string
	for _, t := range All() {
		names = append(names, t.Name)
	}
	return names
}
