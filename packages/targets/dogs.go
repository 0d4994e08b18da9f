package targets

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/endpoint"
)

const DogsBaseURL = "https://dog.ceo/api"

var (
	dogBreeds    = []string{"bulldog", "greyhound", "hound"}
	dogSubBreeds = [][2]string{{"hound", "afghan"}, {"mastiff", "bull"}, {"sheepdog", "english"}}
	dogCounts    = []int{3, 10, 100}
)

// Dogs builds the dog image API suite.
func Dogs(baseURL string) *suite.Suite {
	base := strings.TrimRight(baseURL, "/")
	s := suite.New("dogs")
	s.AddTemplate(&endpoint.Template{Name: "list_breeds", Method: "GET", URL: base + "/breeds/list/all"})
	s.AddTemplate(&endpoint.Template{Name: "breed_images", Method: "GET", URL: base + "/breed/{breed}/images"})
	s.AddTemplate(&endpoint.Template{Name: "breed_random_image", Method: "GET", URL: base + "/breed/{breed}/images/random"})
	s.AddTemplate(&endpoint.Template{Name: "breed_random_images", Method: "GET", URL: base + "/breed/{breed}/images/random/{count}"})
	s.AddTemplate(&endpoint.Template{Name: "sub_breed_images", Method: "GET", URL: base + "/breed/{breed}/{sub_breed}/images"})

	tags := []string{"dogs"}
	s.AddCase(&suite.Case{
		ID:           "list_all_breeds",
		Template:     "list_breeds",
		ExpectStatus: 200,
		Expect: []assertions.Expectation{
			assertions.FieldEquals("status", "success"),
			assertions.FieldMatches("message", assertions.Type("object")),
		},
		Tags: append(tags, "smoke"),
	})

	for _, breed := range dogBreeds {
		s.AddCase(&suite.Case{
			ID:           fmt.Sprintf("random_image[%s]", breed),
			Description:  "a single image URL mentioning the breed",
			Template:     "breed_random_image",
			Params:       map[string]string{"breed": breed},
			ExpectStatus: 200,
			Expect: []assertions.Expectation{
				assertions.FieldMatches("message", assertions.Type("string")),
				assertions.FieldMatches("message", assertions.Contains(breed)),
			},
			Tags: tags,
		})
	}

	for _, breed := range dogBreeds {
		s.AddCase(&suite.Case{
			ID:           fmt.Sprintf("all_images[%s]", breed),
			Description:  "every image URL mentions the breed",
			Template:     "breed_images",
			Params:       map[string]string{"breed": breed},
			ExpectStatus: 200,
			Expect: []assertions.Expectation{
				assertions.FieldMatches("message", assertions.Each(assertions.Contains(breed))),
			},
			Tags: tags,
		})
	}
	s.AddCase(&suite.Case{
		ID:           "all_images[wrong_breed]",
		Template:     "breed_images",
		Params:       map[string]string{"breed": "big_dog"},
		ExpectStatus: 404,
		Tags:         tags,
	})

	for _, pair := range dogSubBreeds {
		dir := pair[0] + "-" + pair[1]
		s.AddCase(&suite.Case{
			ID:           fmt.Sprintf("sub_breed_images[%s]", dir),
			Description:  fmt.Sprintf("every image URL mentions %s", dir),
			Template:     "sub_breed_images",
			Params:       map[string]string{"breed": pair[0], "sub_breed": pair[1]},
			ExpectStatus: 200,
			Expect: []assertions.Expectation{
				assertions.FieldMatches("message", assertions.Each(assertions.Contains(dir))),
			},
			Tags: tags,
		})
	}

	for _, n := range dogCounts {
		s.AddCase(&suite.Case{
			ID:           fmt.Sprintf("random_images[%d]", n),
			Description:  fmt.Sprintf("%d random images are returned", n),
			Template:     "breed_random_images",
			Params:       map[string]string{"breed": "bulldog", "count": fmt.Sprint(n)},
			ExpectStatus: 200,
			Expect:       []assertions.Expectation{assertions.CollectionLengthEquals("message", n)},
			Tags:         tags,
		})
	}

	return s
}
