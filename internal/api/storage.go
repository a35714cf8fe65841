package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type storageInfoResponse struct {
	DBName    string   `json:"db_name"`
	DBPath    string   `json:"db_path"`
	DataDir   string   `json:"data_dir"`
	Available []string `json:"available"`
}

// getStorageInfo reports which database file the server is running on and
// which other ledger files sit beside it.
func (h *handler) getStorageInfo(w http.ResponseWriter, r *http.Request) {
	dbPath := h.core.DBPath()
	if dbPath == "" {
		writeJSON(w, http.StatusOK, storageInfoResponse{Available: []string{}})
		return
	}
	dataDir := filepath.Dir(dbPath)
	available, err := listDBFiles(dataDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list storage files: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, storageInfoResponse{
		DBName:    filepath.Base(dbPath),
		DBPath:    dbPath,
		DataDir:   dataDir,
		Available: available,
	})
}

func listDBFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.EqualFold(filepath.Ext(name), ".db") {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}
