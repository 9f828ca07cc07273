package git

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Info identifies the revision a folder was checked out at
type Info struct {
	Path     string
	Revision string
	Remote   string
}

// Describe opens the repository containing path (searching parent folders)
func Describe(path string) (*Info, error) {
	opts := git.PlainOpenOptions{
		DetectDotGit: true,
	}
	repo, err := git.PlainOpenWithOptions(path, &opts)
	if err != nil {
		return nil, fmt.Errorf("Unable to open git repository at '%s': %s", path, err.Error())
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("Unable to get git HEAD at '%s': %s", path, err.Error())
	}
	info := &Info{
		Path:     path,
		Revision: head.Hash().String(),
	}
	if remotes, err := repo.Remotes(); err == nil && len(remotes) > 0 {
		if urls := remotes[0].Config().URLs; len(urls) > 0 {
			info.Remote = urls[0]
		}
	}
	return info, nil
}
