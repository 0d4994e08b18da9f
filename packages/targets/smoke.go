package targets

import (
	"fmt"

	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/endpoint"
)

const (
	SmokeURL    = "https://ya.ru"
	SmokeStatus = 200
)

// Smoke builds a one-case suite: GET url answers with status.
func Smoke(url string, status int) *suite.Suite {
	if url == "" {
		url = SmokeURL
	}
	if status == 0 {
		status = SmokeStatus
	}
	s := suite.New("smoke")
	s.AddTemplate(&endpoint.Template{Name: "smoke", Method: "GET", URL: url, Literal: true})
	s.AddCase(&suite.Case{
		ID:           "smoke",
		Description:  fmt.Sprintf("GET %s returns %d", url, status),
		Template:     "smoke",
		ExpectStatus: status,
		Tags:         []string{"smoke"},
	})
	return s
}
