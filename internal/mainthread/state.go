package mainthread

import (
	"sort"

	"github.com/shopware/exthost/internal/protocol"
)

// Snapshot is the set of open documents and editors at one point in time.
type Snapshot struct {
	Documents    map[string]protocol.ModelAddedData
	Editors      map[string]protocol.TextEditorAddData
	ActiveEditor string
}

// ComputeDelta returns what the extension side must apply to go from
// before to after. Documents and editors are compared by key only; content
// changes travel as model change events.
func ComputeDelta(before, after Snapshot) protocol.DocumentsAndEditorsDelta {
	var delta protocol.DocumentsAndEditorsDelta

	for uri := range before.Documents {
		if _, ok := after.Documents[uri]; !ok {
			delta.RemovedDocuments = append(delta.RemovedDocuments, uri)
		}
	}
	for uri, data := range after.Documents {
		if _, ok := before.Documents[uri]; !ok {
			delta.AddedDocuments = append(delta.AddedDocuments, data)
		}
	}
	for id := range before.Editors {
		if _, ok := after.Editors[id]; !ok {
			delta.RemovedEditors = append(delta.RemovedEditors, id)
		}
	}
	for id, data := range after.Editors {
		if _, ok := before.Editors[id]; !ok {
			delta.AddedEditors = append(delta.AddedEditors, data)
		}
	}
	if before.ActiveEditor != after.ActiveEditor {
		delta.ActiveEditorChanged = true
		delta.NewActiveEditor = after.ActiveEditor
	}

	sort.Strings(delta.RemovedDocuments)
	sort.Strings(delta.RemovedEditors)
	sort.Slice(delta.AddedDocuments, func(i, j int) bool {
		return delta.AddedDocuments[i].URI < delta.AddedDocuments[j].URI
	})
	sort.Slice(delta.AddedEditors, func(i, j int) bool {
		return delta.AddedEditors[i].ID < delta.AddedEditors[j].ID
	})
	return delta
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Documents:    make(map[string]protocol.ModelAddedData, len(s.Models.models)),
		Editors:      make(map[string]protocol.TextEditorAddData, len(s.Editors.editors)),
		ActiveEditor: s.Editors.active,
	}
	for uri, m := range s.Models.models {
		if _, sent := s.sent.Documents[uri]; sent {
			// Already mirrored; only the key matters for the diff.
			snap.Documents[uri] = s.sent.Documents[uri]
			continue
		}
		snap.Documents[uri] = m.addedData()
	}
	for id, e := range s.Editors.editors {
		snap.Editors[id] = e.addData()
	}
	return snap
}
