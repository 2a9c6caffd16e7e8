package config

import "context"

// SecretProvider resolves configuration values that are published to AWS SSM
// Parameter Store rather than set directly in the Lambda environment. The
// environment-variable implementation backs local runs and tests.
type SecretProvider interface {
	// GetParametersBatch resolves the given SSM parameter paths and returns
	// a map of path -> plaintext value for every parameter found. Missing
	// parameters are omitted from the map rather than reported as errors;
	// the caller decides whether absence is fatal.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
