package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/docstore"
)

// loadDocumentsJSONL reads documents.jsonl from dataDir and loads it into
// store in one transaction. Lines that do not decode, name no document, or
// carry a body that is not an object are skipped. Unknown fields are
// ignored so files written by newer versions still load.
func loadDocumentsJSONL(ctx context.Context, store *docstore.Store, dataDir string) error {
	lines, err := readJSONL(filepath.Join(dataDir, documentsJSONL))
	if err != nil {
		return err
	}

	recs := make([]docstore.Record, 0, len(lines))
	skipped := 0
	for _, line := range lines {
		var d documentJSON
		if err := json.Unmarshal(line, &d); err != nil {
			skipped++
			continue
		}
		recs = append(recs, d.record())
	}

	n, err := store.Load(ctx, recs)
	if err != nil {
		return fmt.Errorf("loading %s: %w", documentsJSONL, err)
	}
	skipped += n
	if skipped > 0 {
		glog.Warningf("skipped %d malformed records in %s", skipped, documentsJSONL)
	}
	glog.V(1).Infof("loaded %d documents from %s", len(recs)-n, dataDir)
	return nil
}
