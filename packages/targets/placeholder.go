package targets

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/endpoint"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
)

const PlaceholderBaseURL = "https://jsonplaceholder.typicode.com"

// PostContentType is what the posts API expects on writes.
const PostContentType = "application/json; charset=UTF-8"

// Post is one post record. ID is absent on create requests.
type Post struct {
	ID     *int   `json:"id,omitempty"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

var PostSchema = schema.New("post",
	schema.Optional("id", schema.Integer),
	schema.Required("userId", schema.Integer),
	schema.Required("title", schema.String),
	schema.Required("body", schema.String),
)

var (
	existingPostIDs = []int{1, 20, 100}
	missingPostIDs  = []int{101, 200}
	samplePost      = Post{Title: "some title", Body: "some body", UserID: 1}
	updatedPostID   = 5
)

// Placeholder builds the JSONPlaceholder posts suite.
func Placeholder(baseURL string) *suite.Suite {
	base := strings.TrimRight(baseURL, "/")
	s := suite.New("jsonplaceholder")
	s.AddTemplate(&endpoint.Template{Name: "list_posts", Method: "GET", URL: base + "/posts"})
	s.AddTemplate(&endpoint.Template{Name: "get_post", Method: "GET", URL: base + "/posts/{id}"})
	s.AddTemplate(&endpoint.Template{Name: "create_post", Method: "POST", URL: base + "/posts"})
	s.AddTemplate(&endpoint.Template{Name: "update_post", Method: "PUT", URL: base + "/posts/{id}"})
	s.AddSchema(PostSchema)

	tags := []string{"jsonplaceholder"}
	s.AddCase(&suite.Case{
		ID:           "list_posts",
		Description:  "posts are listed and match the record schema",
		Template:     "list_posts",
		ExpectStatus: 200,
		Schema:       PostSchema.Name,
		Tags:         append(tags, "smoke"),
	})

	for _, id := range existingPostIDs {
		s.AddCase(&suite.Case{
			ID:           fmt.Sprintf("get_post[id=%d]", id),
			Template:     "get_post",
			Params:       map[string]string{"id": fmt.Sprint(id)},
			ExpectStatus: 200,
			Schema:       PostSchema.Name,
			Expect:       []assertions.Expectation{assertions.FieldEquals("id", id)},
			Tags:         tags,
		})
	}
	for _, id := range missingPostIDs {
		s.AddCase(&suite.Case{
			ID:           fmt.Sprintf("get_post[id=%d]", id),
			Description:  "a post id past the end is not found",
			Template:     "get_post",
			Params:       map[string]string{"id": fmt.Sprint(id)},
			ExpectStatus: 404,
			Tags:         tags,
		})
	}

	body := mustJSON(samplePost)
	s.AddCase(&suite.Case{
		ID:           "create_post",
		Description:  "a created post echoes the submitted fields",
		Template:     "create_post",
		Body:         body,
		ContentType:  PostContentType,
		ExpectStatus: 201,
		Schema:       PostSchema.Name,
		Expect:       echoes(samplePost),
		Tags:         tags,
	})
	s.AddCase(&suite.Case{
		ID:           fmt.Sprintf("update_post[id=%d]", updatedPostID),
		Description:  "an updated post echoes the submitted fields and keeps its id",
		Template:     "update_post",
		Params:       map[string]string{"id": fmt.Sprint(updatedPostID)},
		Body:         body,
		ContentType:  PostContentType,
		ExpectStatus: 200,
		Schema:       PostSchema.Name,
		Expect:       append(echoes(samplePost), assertions.FieldEquals("id", updatedPostID)),
		Tags:         tags,
	})

	return s
}

func echoes(p Post) []assertions.Expectation {
	return []assertions.Expectation{
		assertions.FieldEquals("userId", p.UserID),
		assertions.FieldEquals("title", p.Title),
		assertions.FieldEquals("body", p.Body),
	}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("targets: encoding %T: %v", v, err))
	}
	return data
}
