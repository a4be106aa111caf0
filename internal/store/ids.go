package store

import "tareas-cli/internal/model"

// firstID is the first id each counter hands out. Scenario and project id 1 are reserved
// for the default fixtures.
func firstID(kind model.Kind) int {
	switch kind {
	case model.KindScenario, model.KindProject:
		return 2
	default:
		return 1
	}
}

// NextID allocates the next id of kind. Ids are never reused; the counter is persisted with
// the rest of the state in the same save.
func NextID(db *DB, kind model.Kind) int {
	if db.NextIDs == nil {
		db.NextIDs = map[model.Kind]int{}
	}
	next := db.NextIDs[kind]
	if lo := firstID(kind); next < lo {
		next = lo
	}
	db.NextIDs[kind] = next + 1
	return next
}

// PeekID returns the id NextID would hand out without consuming it.
func PeekID(db *DB, kind model.Kind) int {
	next := db.NextIDs[kind]
	if lo := firstID(kind); next < lo {
		return lo
	}
	return next
}

// syncCounters raises every counter above the largest id already in use, so a hand-edited
// or partially imported state cannot produce duplicates.
func (db *DB) syncCounters() bool {
	maxByKind := map[model.Kind]int{}
	bump := func(kind model.Kind, id int) {
		if id > maxByKind[kind] {
			maxByKind[kind] = id
		}
	}
	for _, sc := range db.Scenarios {
		bump(model.KindScenario, sc.ID)
		for _, p := range sc.Projects {
			bump(model.KindProject, p.ID)
			for _, t := range p.Tasks.Flatten() {
				bump(model.KindTask, t.ID)
				for _, tag := range t.Tags {
					bump(model.KindTag, tag.ID)
				}
				for _, a := range t.Alerts {
					bump(model.KindAlert, a.ID)
				}
			}
		}
	}
	changed := false
	for _, kind := range []model.Kind{model.KindTask, model.KindScenario, model.KindProject, model.KindTag, model.KindAlert} {
		want := PeekID(db, kind)
		if maxByKind[kind] >= want {
			want = maxByKind[kind] + 1
		}
		if db.NextIDs[kind] != want {
			db.NextIDs[kind] = want
			changed = true
		}
	}
	return changed
}
