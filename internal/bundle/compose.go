package bundle

import (
	"os"
	"regexp"

	fsops "partnerbundle/internal/fsops"

	errors "github.com/pkg/errors"
)

// Rewrite reports which keys were substituted in a composition file
type Rewrite struct {
	Replaced []string
	Missing  []string
}

func keyLine(key string) *regexp.Regexp {
	// KEY=value, KEY: "value" # comment, - "KEY=value"; CR stays out of every group
	return regexp.MustCompile(`(?m)^([ \t]*(?:-[ \t]*)?["']?` + regexp.QuoteMeta(key) + `[ \t]*[=:][ \t]*)` +
		`("[^"\r\n]*"|'[^'\r\n]*'|[^\r\n]*?)` +
		`(["']?(?:[ \t]+#[^\r\n]*)?[ \t]*)\r?$`)
}

// placeholder keeps the quoting of a quoted value
func placeholder(key, value string) string {
	p := "${" + key + "}"
	if n := len(value); n >= 2 && (value[0] == '"' || value[0] == '\'') && value[n-1] == value[0] {
		return value[:1] + p + value[:1]
	}
	return p
}

// RewriteContent points the first assignment of each key to ${KEY}
func RewriteContent(content string, keys []string) (string, *Rewrite) {
	r := &Rewrite{}
	for _, key := range keys {
		loc := keyLine(key).FindStringSubmatchIndex(content)
		if loc == nil {
			r.Missing = append(r.Missing, key)
			continue
		}
		// loc[4]:loc[5] is the current value
		content = content[:loc[4]] + placeholder(key, content[loc[4]:loc[5]]) + content[loc[5]:]
		r.Replaced = append(r.Replaced, key)
	}
	return content, r
}

// RewriteCompose rewrites the composition file at path in place
func RewriteCompose(path string, keys []string) (*Rewrite, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to read composition file '%s'", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to read composition file '%s'", path)
	}
	content, r := RewriteContent(string(data), keys)
	if err = fsops.WriteFile(content, path, info.Mode().Perm()); err != nil {
		return nil, err
	}
	return r, nil
}
