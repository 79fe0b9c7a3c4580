package appconf

import (
	"fmt"
	"strings"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// EnvFlagToEnvironment converts the -env flag value into an Environment.
func EnvFlagToEnvironment(env string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "development", "dev":
		return Development, nil
	case "test":
		return Test, nil
	case "production", "prod":
		return Production, nil
	default:
		return Development, fmt.Errorf("unknown environment %q", env)
	}
}

// Config holds the process-level settings of the HTTP service.
type Config struct {
	Port    int
	Env     Environment
	Verbose bool
	// RateLimit is requests per second per client. Zero disables the limiter.
	RateLimit int
	// RateLimitExempt lists client addresses that bypass the limiter.
	RateLimitExempt []string
	CORSOrigins     []string
	LogFormat       string
	LogLevel        string
	LogFile         string
}

// ParseList splits a comma-separated flag value, trimming whitespace and dropping empty entries.
func ParseList(input string) []string {
	out := []string{}
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
