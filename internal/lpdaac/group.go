package lpdaac

import (
	"fmt"

	"hlsrecon/internal/hls"
)

// CollectionGroup is the grouped result for one collection: how many file
// entries the report listed, and the distinct granule ids needing
// reprocessing in the order the report first mentions them. The order is
// never sorted; LP DAAC emits related files adjacently and downstream
// triggering should follow that locality.
type CollectionGroup struct {
	FileCount  int
	GranuleIDs []string
}

// GroupGranuleIDs groups a reconciliation report by encoded collection id.
// Every file entry counts toward FileCount regardless of its status. The
// granule id for an entry comes from its explicit granuleId field when
// present, otherwise from parsing the filename. Later mentions of an
// already-seen granule are dropped.
//
// Collections listing zero files still appear in the result with a zero
// count. Any unparsable filename fails the whole call; there is no partial
// result.
func GroupGranuleIDs(report ReconciliationReport) (map[string]CollectionGroup, error) {
	groups := make(map[string]CollectionGroup)
	seen := make(map[string]map[string]struct{})

	for _, page := range report {
		for collectionID, rec := range page {
			group := groups[collectionID]
			if seen[collectionID] == nil {
				seen[collectionID] = make(map[string]struct{})
			}

			for _, entry := range rec.Report {
				group.FileCount++

				granuleID := entry.Status.GranuleID
				if granuleID == "" {
					var err error
					granuleID, err = hls.GranuleIDForFile(entry.Filename)
					if err != nil {
						return nil, fmt.Errorf("lpdaac: grouping collection %s: %w", collectionID, err)
					}
				}

				if _, dup := seen[collectionID][granuleID]; dup {
					continue
				}
				seen[collectionID][granuleID] = struct{}{}
				group.GranuleIDs = append(group.GranuleIDs, granuleID)
			}

			groups[collectionID] = group
		}
	}

	return groups, nil
}
