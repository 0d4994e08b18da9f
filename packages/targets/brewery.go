package targets

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/endpoint"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"github.com/google/uuid"
)

const BreweryBaseURL = "https://api.openbrewerydb.org/v1"

// BreweryTypes are the documented brewery_type filter values.
var BreweryTypes = []string{
	"micro", "nano", "regional", "brewpub", "large",
	"planning", "bar", "contract", "proprietor", "closed",
}

const (
	BreweryDefaultPerPage = 50
	BreweryMaxPerPage     = 200
)

// BreweryRecord is one brewery record.
type BreweryRecord struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	BreweryType   string  `json:"brewery_type"`
	Address1      *string `json:"address_1"`
	Address2      *string `json:"address_2"`
	Address3      *string `json:"address_3"`
	City          *string `json:"city"`
	StateProvince *string `json:"state_province"`
	PostalCode    *string `json:"postal_code"`
	Country       *string `json:"country"`
	Longitude     *string `json:"longitude"`
	Latitude      *string `json:"latitude"`
	Phone         *string `json:"phone"`
	WebsiteURL    *string `json:"website_url"`
	State         *string `json:"state"`
	Street        *string `json:"street"`
}

// BrewerySchema is the descriptor table for BreweryRecord.
var BrewerySchema = schema.New("brewery",
	schema.Required("id", schema.String),
	schema.Required("name", schema.String),
	schema.Required("brewery_type", schema.String),
	schema.Optional("address_1", schema.String),
	schema.Optional("address_2", schema.String),
	schema.Optional("address_3", schema.String),
	schema.Optional("city", schema.String),
	schema.Optional("state_province", schema.String),
	schema.Optional("postal_code", schema.String),
	schema.Optional("country", schema.String),
	schema.Optional("longitude", schema.String),
	schema.Optional("latitude", schema.String),
	schema.Optional("phone", schema.String),
	schema.Optional("website_url", schema.String),
	schema.Optional("state", schema.String),
	schema.Optional("street", schema.String),
)

// Brewery builds the brewery API suite.
func Brewery(baseURL string) *suite.Suite {
	base := strings.TrimRight(baseURL, "/")
	s := suite.New("brewery")
	s.AddTemplate(&endpoint.Template{Name: "list_breweries", Method: "GET", URL: base + "/breweries"})
	s.AddTemplate(&endpoint.Template{Name: "random_brewery", Method: "GET", URL: base + "/breweries/random"})
	s.AddTemplate(&endpoint.Template{Name: "get_brewery", Method: "GET", URL: base + "/breweries/{id}"})
	s.AddSchema(BrewerySchema)
	s.AddLookup(&suite.Lookup{Name: "random_brewery_id", Template: "random_brewery", Path: "0.id"})

	tags := []string{"brewery"}
	s.AddCase(
		&suite.Case{
			ID:           "get_by_id[random valid id]",
			Description:  "an existing brewery is returned and matches the record schema",
			Template:     "get_brewery",
			Params:       map[string]string{"id": suite.BindingPrefix + "random_brewery_id"},
			ExpectStatus: 200,
			Schema:       BrewerySchema.Name,
			Tags:         append(tags, "smoke"),
		},
		&suite.Case{
			ID:           "get_by_id[random invalid id]",
			Description:  "a well-formed id that does not exist is not found",
			Template:     "get_brewery",
			Params:       map[string]string{"id": uuid.NewString()},
			ExpectStatus: 404,
			Tags:         tags,
		},
	)

	for _, kind := range BreweryTypes {
		s.AddCase(&suite.Case{
			ID:           fmt.Sprintf("by_type[%s]", kind),
			Description:  fmt.Sprintf("every brewery listed for type %s has that type", kind),
			Template:     "list_breweries",
			Query:        map[string]string{"by_type": kind},
			ExpectStatus: 200,
			Schema:       BrewerySchema.Name,
			Expect: []assertions.Expectation{
				assertions.FieldMatches("#.brewery_type", assertions.Each(assertions.Equals(kind))),
			},
			Tags: tags,
		})
	}
	s.AddCase(&suite.Case{
		ID:           "by_type[invalid_type_name]",
		Description:  "an unknown type is rejected",
		Template:     "list_breweries",
		Query:        map[string]string{"by_type": "invalid_type_name"},
		ExpectStatus: 400,
		Tags:         tags,
	})

	for _, n := range []int{50, 100, 200, 201, 500} {
		want := min(n, BreweryMaxPerPage)
		s.AddCase(&suite.Case{
			ID:           fmt.Sprintf("per_page[%d]", n),
			Description:  fmt.Sprintf("per_page=%d returns %d breweries", n, want),
			Template:     "list_breweries",
			Query:        map[string]string{"per_page": fmt.Sprint(n)},
			ExpectStatus: 200,
			Expect:       []assertions.Expectation{assertions.CollectionLengthEquals("", want)},
			Tags:         tags,
		})
	}
	s.AddCase(&suite.Case{
		ID:           "per_page[default]",
		Description:  fmt.Sprintf("an empty per_page returns the default %d breweries", BreweryDefaultPerPage),
		Template:     "list_breweries",
		Query:        map[string]string{"per_page": ""},
		ExpectStatus: 200,
		Expect:       []assertions.Expectation{assertions.CollectionLengthEquals("", BreweryDefaultPerPage)},
		Tags:         append(tags, "smoke"),
	})

	return s
}
