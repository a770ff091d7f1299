package output

import (
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/samber/lo"
)

// ciVars are set by common CI runners
var ciVars = []string{
	"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI",
	"JENKINS_URL", "BUILDKITE", "TRAVIS", "TEAMCITY_VERSION", "BITBUCKET_BUILD_NUMBER",
}

// IsCI reports whether output should be plain lines: on a CI runner or when
// stdout is not a terminal. STORYBOARD_CI_MODE=true|false overrides both.
func IsCI() bool {
	if v, ok := os.LookupEnv("STORYBOARD_CI_MODE"); ok {
		if forced, err := strconv.ParseBool(v); err == nil {
			return forced
		}
	}
	if lo.SomeBy(ciVars, func(k string) bool { return os.Getenv(k) != "" }) {
		return true
	}
	fd := os.Stdout.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// IsInteractive is the opposite of IsCI
func IsInteractive() bool {
	return !IsCI()
}
