package bdd

import (
	"testing"

	"github.com/cucumber/godog"

	"github.com/retailcore/noos-go/test/bdd/steps"
)

// TestFeatures runs the ingestion and classification features against the
// real handlers backed by an in-memory database.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/ingestion", "features/classification"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	steps.InitializeIngestionScenario(sc)
	steps.InitializeClassificationScenario(sc)
}
