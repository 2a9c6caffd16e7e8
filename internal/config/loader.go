// loader.go implements the configuration loading lifecycle shared by the
// three Lambda entrypoints.
//
// The loading sequence is:
//  1. Enforce UTC timezone so day-of-year arithmetic never drifts.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Scan the environment for _SSM_PARAM suffix variables.
//  4. If APP_ENV != "local", resolve those SSM parameters via the
//     SecretProvider and inject the resolved values back into the environment.
//  5. Process envconfig struct tags to populate the config struct.
//  6. Canonicalize values (normalize) where the struct defines it.
//  7. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks environment variables that point at an SSM parameter
// instead of carrying the value directly. For example,
// LPDAAC_REQUEST_TOPIC_ARN_SSM_PARAM holds the SSM path whose value becomes
// LPDAAC_REQUEST_TOPIC_ARN.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// normalizer lets a config struct canonicalize parsed values before
// validation.
type normalizer interface {
	normalize()
}

// loaderDeps holds the injectable environment accessors, enabling tests
// without mutating global state.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// Load populates and validates one Lambda's config struct. spec must be a
// pointer to a struct carrying envconfig and validate tags.
//
// The provider is consulted only when the environment carries _SSM_PARAM
// variables and APP_ENV is not "local"; a nil provider is fine otherwise.
func Load(provider SecretProvider, spec any) error {
	return loadWithDeps(provider, spec, defaultDeps())
}

func loadWithDeps(provider SecretProvider, spec any, deps loaderDeps) error {
	// Step 1: Enforce UTC. Report windows and day-of-year keys are defined
	// in UTC; a host timezone must never leak into them.
	time.Local = time.UTC

	// Step 2: Overlay a .env file if present. godotenv never overrides
	// variables that are already set, preserving the priority chain.
	_ = godotenv.Load()

	// Steps 3-4: Resolve SSM-published parameters in non-local environments.
	if appEnv, _ := deps.lookupEnv("APP_ENV"); appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return err
		}
	}

	// Step 5: Process envconfig tags. The empty prefix makes envconfig use
	// the exact tag values (envconfig:"APP_ENV" reads APP_ENV directly).
	if err := envconfig.Process("", spec); err != nil {
		return &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 6: Canonicalize.
	if n, ok := spec.(normalizer); ok {
		n.normalize()
	}

	// Step 7: Validate.
	if err := validator.New().Struct(spec); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return nil
}

// LoadResponseWorker loads the response worker Lambda's configuration.
func LoadResponseWorker(provider SecretProvider) (*ResponseWorkerConfig, error) {
	var cfg ResponseWorkerConfig
	if err := Load(provider, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRequestForwarder loads the request forwarder Lambda's configuration.
func LoadRequestForwarder(provider SecretProvider) (*RequestForwarderConfig, error) {
	var cfg RequestForwarderConfig
	if err := Load(provider, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadReportGenerator loads the report generator Lambda's configuration.
func LoadReportGenerator(provider SecretProvider) (*ReportGeneratorConfig, error) {
	var cfg ReportGeneratorConfig
	if err := Load(provider, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveSSMParams scans the environment for variables ending in _SSM_PARAM,
// fetches the corresponding parameter values via the SecretProvider, and
// injects them back into the environment so envconfig can process them.
//
// A target variable that is already set (directly or via .env) wins over its
// SSM counterpart; resolution is skipped for it.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	type ssmBinding struct {
		targetEnvVar string // e.g. LPDAAC_REQUEST_TOPIC_ARN
		ssmPath      string // e.g. /prod/hls/lpdaac/request-topic-arn
	}

	var bindings []ssmBinding
	ssmPathToTarget := make(map[string]string)

	for _, entry := range deps.environ() {
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			continue
		}
		key := entry[:eq]
		if !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}

		targetEnvVar := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(targetEnvVar); exists {
			continue
		}

		ssmPath := entry[eq+1:]
		if ssmPath == "" {
			continue
		}

		bindings = append(bindings, ssmBinding{targetEnvVar: targetEnvVar, ssmPath: ssmPath})
		ssmPathToTarget[ssmPath] = targetEnvVar
	}

	if len(bindings) == 0 {
		return nil
	}

	if provider == nil {
		targets := make([]string, 0, len(bindings))
		for _, b := range bindings {
			targets = append(targets, b.targetEnvVar)
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required to resolve: %s", strings.Join(targets, ", ")),
		}
	}

	ssmPaths := make([]string, 0, len(bindings))
	for _, b := range bindings {
		ssmPaths = append(ssmPaths, b.ssmPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, ssmPaths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(ssmPaths)),
			Err:     err,
		}
	}

	for ssmPath, value := range resolved {
		targetEnvVar, ok := ssmPathToTarget[ssmPath]
		if !ok {
			continue
		}
		if err := deps.setEnv(targetEnvVar, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", targetEnvVar),
				Err:     err,
			}
		}
	}

	var missing []string
	for _, b := range bindings {
		if _, ok := resolved[b.ssmPath]; !ok {
			missing = append(missing, b.targetEnvVar)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
