package live_test

import (
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/abdul-hamid-achik/apicheck/packages/targets"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var twinPaths = map[string]string{
	"brewery":         "/v1",
	"dogs":            "/api",
	"jsonplaceholder": "",
}

func baseURL(name string) string {
	if u := os.Getenv("APICHECK_" + strings.ToUpper(name) + "_URL"); u != "" {
		return u
	}
	if live {
		return ""
	}
	return server.URL + twinPaths[name]
}

var _ = Describe("Target catalog", func() {
	for _, target := range targets.All() {
		Describe(target.Name, Ordered, func() {
			var report *runner.SuiteReport

			BeforeAll(func(ctx SpecContext) {
				cfg := &runner.Config{Timeout: 30 * time.Second}
				if live {
					cfg.Rate = 5
				}
				r := runner.NewRunner(cfg)
				var err error
				report, err = r.Run(ctx, target.Suite(baseURL(target.Name)))
				Expect(err).NotTo(HaveOccurred())
			})

			It("accounts for every case", func() {
				Expect(report.Total).To(Equal(len(report.Cases)))
				Expect(report.Skipped).To(BeZero())
			})

			for i, c := range target.Suite("").Cases {
				It(c.ID, func() {
					result := report.Cases[i]
					Expect(result.ID).To(Equal(c.ID))
					Expect(result.Passed).To(BeTrue(), "%s: %s", result.Reason, result.Message())
				})
			}
		})
	}

	Describe("smoke", func() {
		It("answers the expected status", func(ctx SpecContext) {
			url := os.Getenv("APICHECK_SMOKE_URL")
			if url == "" && !live {
				url = server.URL + "/posts"
			}
			report, err := runner.NewRunner(nil).Run(ctx, targets.Smoke(url, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(report.OK()).To(BeTrue(), report.Cases[0].Message())
		})
	})
})
