package twins

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// BreweryTypes are the brewery_type values the brewery API accepts.
var BreweryTypes = []string{
	"micro", "nano", "regional", "brewpub", "large",
	"planning", "bar", "contract", "proprietor", "closed",
}

const (
	breweryCount          = 260
	breweryDefaultPerPage = 50
	breweryMaxPerPage     = 200
)

type brewery struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	BreweryType   string  `json:"brewery_type"`
	Address1      *string `json:"address_1"`
	Address2      *string `json:"address_2"`
	Address3      *string `json:"address_3"`
	City          string  `json:"city"`
	StateProvince string  `json:"state_province"`
	PostalCode    string  `json:"postal_code"`
	Country       string  `json:"country"`
	Longitude     *string `json:"longitude"`
	Latitude      *string `json:"latitude"`
	Phone         *string `json:"phone"`
	WebsiteURL    *string `json:"website_url"`
	State         string  `json:"state"`
	Street        *string `json:"street"`
}

type breweryTwin struct {
	breweries []brewery
	byID      map[string]int
}

func newBreweryTwin() *breweryTwin {
	t := &breweryTwin{byID: make(map[string]int, breweryCount)}
	for i := 0; i < breweryCount; i++ {
		street := fmt.Sprintf("%d Main St", 100+i)
		b := brewery{
			ID:            uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("brewery/%d", i))).String(),
			Name:          fmt.Sprintf("Brewery %d", i),
			BreweryType:   BreweryTypes[i%len(BreweryTypes)],
			Address1:      &street,
			City:          "Portland",
			StateProvince: "Oregon",
			PostalCode:    fmt.Sprintf("97%03d", i),
			Country:       "United States",
			State:         "Oregon",
			Street:        &street,
		}
		if i%3 == 0 {
			lon, lat := "-122.67", "45.52"
			b.Longitude, b.Latitude = &lon, &lat
		}
		t.byID[b.ID] = len(t.breweries)
		t.breweries = append(t.breweries, b)
	}
	return t
}

// Brewery serves /breweries, /breweries/random and /breweries/{id}.
func Brewery() http.Handler {
	r := newRouter()
	newBreweryTwin().routes(r)
	return r
}

func (t *breweryTwin) routes(r chi.Router) {
	r.Get("/breweries", t.list)
	r.Get("/breweries/random", t.random)
	r.Get("/breweries/{id}", t.get)
}

func (t *breweryTwin) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	perPage := breweryDefaultPerPage
	if v := q.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			perPage = min(n, breweryMaxPerPage)
		}
	}
	page := 1
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	matches := t.breweries
	if kind := q.Get("by_type"); kind != "" {
		if !validBreweryType(kind) {
			JSON(w, http.StatusBadRequest, map[string]any{
				"errors": []string{fmt.Sprintf("Brewery type must include one of these types: %q", BreweryTypes)},
			})
			return
		}
		matches = nil
		for _, b := range t.breweries {
			if b.BreweryType == kind {
				matches = append(matches, b)
			}
		}
	}

	start := min((page-1)*perPage, len(matches))
	end := min(start+perPage, len(matches))
	out := matches[start:end]
	if out == nil {
		out = []brewery{}
	}
	JSON(w, http.StatusOK, out)
}

func (t *breweryTwin) random(w http.ResponseWriter, r *http.Request) {
	size := 1
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			size = min(n, 50)
		}
	}
	out := make([]brewery, 0, size)
	for _, i := range rand.Perm(len(t.breweries))[:size] {
		out = append(out, t.breweries[i])
	}
	JSON(w, http.StatusOK, out)
}

func (t *breweryTwin) get(w http.ResponseWriter, r *http.Request) {
	i, ok := t.byID[chi.URLParam(r, "id")]
	if !ok {
		JSON(w, http.StatusNotFound, map[string]string{"message": "Couldn't find Brewery"})
		return
	}
	JSON(w, http.StatusOK, t.breweries[i])
}

func validBreweryType(kind string) bool {
	for _, t := range BreweryTypes {
		if t == kind {
			return true
		}
	}
	return false
}
