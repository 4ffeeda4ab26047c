package codeindex

import "github.com/go-git/go-git/v5"

// headCommitHash returns the current HEAD commit hash of the
// repository at path, or "" if it is not a Git repository.
func headCommitHash(path string) string {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
