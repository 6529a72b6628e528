package service

import (
	"sort"

	"shortsync/internal/domain"
)

// Merge deduplicates candidates across listing views, drops anything uploaded before
// afterDate, keeps only candidates newer than cursor and splits them into shorts and
// normals.
//
// Views are taken in the order given; for an id present in several views the
// instance from the earliest view wins. When cursor is empty or not among the
// candidates, every candidate counts as new.
func Merge(views []domain.ViewResult, afterDate, cursor string) domain.MergeResult {
	type ranked struct {
		candidate domain.VideoCandidate
		order     int
	}

	seen := make(map[string]struct{})
	var all []ranked
	for _, view := range views {
		for _, c := range view.Candidates {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			if c.UploadDate < afterDate {
				continue
			}
			all = append(all, ranked{candidate: c, order: len(all)})
		}
	}

	var result domain.MergeResult
	result.Unique = len(all)
	if len(all) == 0 {
		return result
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].candidate.UploadDate != all[j].candidate.UploadDate {
			return all[i].candidate.UploadDate > all[j].candidate.UploadDate
		}
		return all[i].order < all[j].order
	})

	fresh := all
	if cursor != "" {
		for i, r := range all {
			if r.candidate.ID == cursor {
				fresh = all[:i]
				break
			}
		}
	}
	if len(fresh) == 0 {
		return result
	}

	result.NewestID = fresh[0].candidate.ID
	result.NewestDate = fresh[0].candidate.UploadDate
	for _, r := range fresh {
		if r.candidate.IsShort() {
			result.Shorts = append(result.Shorts, r.candidate)
		} else {
			result.Normals = append(result.Normals, r.candidate)
		}
	}

	return result
}
