package campaign

import (
	"errors"
	"fmt"

	"github.com/chutney-testing/chutney-suite/pkg/persistence"
)

var (
	ErrCampaignAlreadyRunning = errors.New("campaign already running")
	ErrNoFailedScenario       = errors.New("no failed scenario to replay")
)

// ResolutionError reports a campaign, scenario or environment that could not
// be identified at all.
type ResolutionError struct {
	Kind string
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unknown %s '%s': %v", e.Kind, e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err belongs to the not-found class: unknown
// entities as well as replays with nothing to re-run.
func IsNotFound(err error) bool {
	var resolution *ResolutionError

	return persistence.IsNotFound(err) ||
		errors.Is(err, ErrNoFailedScenario) ||
		errors.As(err, &resolution)
}

func IsAlreadyRunning(err error) bool {
	return errors.Is(err, ErrCampaignAlreadyRunning)
}
