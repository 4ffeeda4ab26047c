package codeindex

import (
	"os"
	"path/filepath"
)

// scanFiles walks repositoryPath, skipping skipDirs, and returns every
// file whose language is recognized.
func scanFiles(repositoryPath string) ([]codeFile, error) {
	var files []codeFile

	err := filepath.Walk(repositoryPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != repositoryPath && skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		lang := detectLanguage(path)
		if lang == "" {
			return nil
		}

		rel, err := filepath.Rel(repositoryPath, path)
		if err != nil {
			rel = path
		}
		files = append(files, codeFile{RelPath: rel, FullPath: path, Language: lang})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
