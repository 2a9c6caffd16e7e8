package config

import (
	"context"
	"os"
)

// EnvVarProvider implements SecretProvider against the process environment.
// Local runs set the parameter values directly (or via .env) under the SSM
// path itself, so no AWS call is needed.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch looks each key up as an environment variable. Keys not
// present in the environment are omitted from the result.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}

var _ SecretProvider = (*EnvVarProvider)(nil)
