package database

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"crmapi/internal/logger"
)

// RunMigrations executes all .sql files in dir in lexicographic order.
func RunMigrations(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		path := filepath.Join(dir, name)
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = DB.Exec(string(body))
		if err != nil {
			logger.Get().Error("migration failed", zap.String("file", name), zap.Error(err))
			return err
		}
		logger.Get().Info("migration applied", zap.String("file", name))
	}
	return nil
}
