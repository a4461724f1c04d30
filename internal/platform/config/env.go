// Package config reads GOVERNING_SPACE_* settings into tagged structs.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads tagged fields of target from the process environment.
func ParseEnv(target any) error {
	return parse(target, env.Options{})
}

// ParseEnvMap loads tagged fields of target from environ instead of the
// process environment.
func ParseEnvMap(target any, environ map[string]string) error {
	if environ == nil {
		environ = map[string]string{}
	}
	return parse(target, env.Options{Environment: environ})
}

func parse(target any, opts env.Options) error {
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
