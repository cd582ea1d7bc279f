package api

import (
	"net/http"

	"github.com/dgallion1/factgest/internal/index"
)

type documentSummary struct {
	FileName  string `json:"file_name"`
	SourceURI string `json:"source_uri"`
	Pages     int    `json:"pages"`
	Chunks    int    `json:"chunks"`
}

// handleListDocuments lists indexed files with their page and chunk counts.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	metas, err := s.index.ListMetadata(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": summarize(metas)})
}

// summarize groups metadata sorted by file name.
func summarize(metas []index.Metadata) []documentSummary {
	docs := []documentSummary{}
	pages := map[int]struct{}{}
	for _, m := range metas {
		if len(docs) == 0 || docs[len(docs)-1].FileName != m.FileName {
			docs = append(docs, documentSummary{FileName: m.FileName, SourceURI: m.SourceURI})
			pages = map[int]struct{}{}
		}
		d := &docs[len(docs)-1]
		d.Chunks++
		if _, ok := pages[m.Page]; !ok {
			pages[m.Page] = struct{}{}
			d.Pages++
		}
	}
	return docs
}
