package config

import (
	"regexp"
	"strings"
)

type ValidatorFn func(string) bool

type Validate map[string]ValidatorFn

var envName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var Validators = Validate{
	// plain file name, no folders
	"filename": func(s string) bool {
		return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
	},
	// usable as the start of an environment variable name
	"envprefix": func(s string) bool {
		return envName.MatchString(s)
	},
}
