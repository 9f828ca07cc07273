package pipeline

import (
	"fmt"
	"strings"
)

// Stage is one step of the bundle sequence, in execution order
type Stage int

const (
	Build Stage = iota
	Compose
	Save
	Archive
	Clean
	Done
)

func Stages() []Stage {
	return []Stage{Build, Compose, Save, Archive, Clean, Done}
}

func ParseStage(text string) (Stage, error) {
	for _, s := range Stages() {
		if strings.ToLower(text) == s.String() {
			return s, nil
		}
	}
	return Build, fmt.Errorf("Unknown stage '%s', valid stages: %s", text, StageNames())
}

func StageNames() string {
	names := []string{}
	for _, s := range Stages() {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

func (s Stage) String() string {
	names := [...]string{"build", "compose", "save", "archive", "clean", "done"}
	return names[int(s)]
}

// State is the name of the state reached once the stage succeeds
func (s Stage) State() string {
	states := [...]string{"ImageBuilt", "ComposePrepared", "ImageSaved", "PartnerArchiveWritten", "Cleaned", "Done"}
	return states[int(s)]
}
