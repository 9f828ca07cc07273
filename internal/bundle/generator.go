package bundle

import (
	"bytes"
	"embed"
	"path/filepath"
	"strings"
	"text/template"

	config "partnerbundle/internal/config"
)

// EmbedTemplates holds the partner side artifacts
//go:embed templates/*.tmpl
var EmbedTemplates embed.FS

var templates = template.Must(template.New("bundle").Funcs(template.FuncMap{
	"join":       strings.Join,
	"shellquote": ShellQuote,
}).ParseFS(EmbedTemplates, "templates/*.tmpl"))

// ShellQuote returns s as a single quoted POSIX shell word
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Data is what the partner artifacts are rendered from
type Data struct {
	ImageRef string
	Archive  string
	Compose  string
	EnvFile  string
	Loader   string
	Binary   string
	UIURL    string
	Keys     []string
}

func NewData(c *config.Config) *Data {
	return &Data{
		ImageRef: c.Image.Ref(),
		Archive:  c.Bundle.Archive,
		Compose:  filepath.Base(c.Bundle.Compose),
		EnvFile:  config.EnvSampleFile,
		Loader:   config.LoaderScriptFile,
		Binary:   filepath.Base(c.Engine.Binary),
		UIURL:    c.Bundle.UIURL,
		Keys:     c.Bundle.Keys(),
	}
}

func render(name string, data *Data) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EnvSample returns the commented .env shipped to the partner
func EnvSample(data *Data) (string, error) {
	return render("env.tmpl", data)
}

// LoaderScript returns the script the partner runs to load the image
func LoaderScript(data *Data) (string, error) {
	return render("loader.sh.tmpl", data)
}
