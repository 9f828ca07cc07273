package log

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	logrus "github.com/sirupsen/logrus"
	writer "github.com/sirupsen/logrus/hooks/writer"
)

// Logger is what every component gets to report progress
type Logger = logrus.FieldLogger

const (
	OutputSplit  = "split"
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

// Formatter renders one line per entry as "[LEVL] message"
type Formatter struct{}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}
	fmt.Fprintf(b, "[%s] %s", Label(entry.Level), strings.TrimRight(entry.Message, "\n"))
	for k, v := range entry.Data {
		fmt.Fprintf(b, " %s=%v", k, v)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Label returns the four letters level label: INFO, WARN, ERRO ...
func Label(level logrus.Level) string {
	label := strings.ToUpper(level.String())
	if len(label) > 4 {
		label = label[:4]
	}
	return label
}

// New returns a logger sending info/debug to stdout and warnings/errors to stderr
func New() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&Formatter{})
	setOutput(l, os.Stdout, os.Stderr, OutputSplit)
	return l
}

// Configure applies level and output mode (split|stdout|stderr)
func Configure(l *logrus.Logger, level, output string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("Invalid log level '%s': %s", level, err.Error())
	}
	l.SetLevel(lvl)
	switch output {
	case OutputSplit, OutputStdout, OutputStderr:
		setOutput(l, os.Stdout, os.Stderr, output)
	default:
		return fmt.Errorf("Invalid log output '%s'", output)
	}
	return nil
}

func setOutput(l *logrus.Logger, stdout, stderr io.Writer, output string) {
	l.ReplaceHooks(make(logrus.LevelHooks))
	switch output {
	case OutputStdout:
		l.SetOutput(stdout)
	case OutputStderr:
		l.SetOutput(stderr)
	default:
		l.SetOutput(ioutil.Discard)
		l.AddHook(&writer.Hook{
			Writer: stderr,
			LogLevels: []logrus.Level{
				logrus.PanicLevel,
				logrus.FatalLevel,
				logrus.ErrorLevel,
				logrus.WarnLevel,
			},
		})
		l.AddHook(&writer.Hook{
			Writer: stdout,
			LogLevels: []logrus.Level{
				logrus.InfoLevel,
				logrus.DebugLevel,
				logrus.TraceLevel,
			},
		})
	}
}

var std = New()

// StandardLogger is the logger used by helpers called without one
func StandardLogger() Logger {
	return std
}
