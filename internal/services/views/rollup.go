package views

import (
	"sort"
	"time"

	"github.com/computor-org/computor/pkg/ltree"
	"github.com/computor-org/computor/pkg/mmodel"
)

// ReduceGradingStatus combines descendant grading statuses into a single
// enclosing-node status:
//
//  1. any correction_necessary  → correction_necessary
//  2. else any improvement_possible → improvement_possible
//  3. else all corrected → corrected
//  4. else → not_reviewed
//
// Empty input yields "" (no status).
func ReduceGradingStatus(statuses []mmodel.GradingStatus) string {
	if len(statuses) == 0 {
		return ""
	}

	allCorrected := true

	var anyImprovement bool

	for _, s := range statuses {
		switch s {
		case mmodel.GradingStatusCorrectionNecessary:
			return mmodel.GradingStatusCorrectionNecessary.String()
		case mmodel.GradingStatusImprovementPossible:
			anyImprovement = true
			allCorrected = false
		case mmodel.GradingStatusCorrected:
		default:
			allCorrected = false
		}
	}

	if anyImprovement {
		return mmodel.GradingStatusImprovementPossible.String()
	}

	if allCorrected {
		return mmodel.GradingStatusCorrected.String()
	}

	return mmodel.GradingStatusNotReviewed.String()
}

// AggregateUnitStatuses back-fills units (contents without a submission
// group) with the status reduction and unreviewed-count sum of their
// submittable descendants present in the result set. Units whose descendants
// were filtered out of the result are resolved through fallback, one
// course-scoped query bounded by the caller.
func AggregateUnitStatuses(contents []*mmodel.CourseContentView, fallback func(unit *mmodel.CourseContentView) (string, int)) []*mmodel.CourseContentView {
	if len(contents) == 0 {
		return contents
	}

	for _, unit := range contents {
		if unit.SubmissionGroup != nil {
			continue
		}

		var (
			statuses        []mmodel.GradingStatus
			unreviewedTotal int
			found           bool
		)

		for _, cc := range contents {
			if cc.ID == unit.ID || !cc.Path.IsStrictDescendantOf(unit.Path) {
				continue
			}

			if cc.SubmissionGroup == nil {
				continue
			}

			found = true

			statuses = append(statuses, mmodel.ParseGradingStatus(cc.Status))
			unreviewedTotal += cc.UnreviewedCount
		}

		if found {
			unit.Status = ReduceGradingStatus(statuses)
			unit.UnreviewedCount = unreviewedTotal
		} else if fallback != nil {
			unit.Status, unit.UnreviewedCount = fallback(unit)
		}
	}

	return contents
}

// SubmittableContent is one submittable course content feeding a rollup.
type SubmittableContent struct {
	CourseContentID  string
	Path             ltree.Path
	ContentTypeID    string
	ContentTypeSlug  string
	ContentTypeTitle string
	ContentTypeColor string
}

// SubmittedContent is one submitted content of a member with its latest
// submission instant.
type SubmittedContent struct {
	CourseContentID    string
	CourseMemberID     string
	LatestSubmissionAt *time.Time
}

// GradedContent carries the latest grade per content for a member; missing
// contents contribute grade 0 and no status.
type GradedContent struct {
	CourseContentID string
	Grade           float64
	Status          *mmodel.GradingStatus
}

func laterOf(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}

	if current == nil || candidate.After(*current) {
		return candidate
	}

	return current
}

// CalculateGradingStats computes the hierarchical tree-path rollup: one node
// per path prefix of any submittable content up to maxDepth, each carrying
// counts, progress, latest submission, grading aggregates and the reduced
// status. Pure and deterministic: identical input rows yield byte-identical
// output.
func CalculateGradingStats(
	submittable []SubmittableContent,
	submitted []SubmittedContent,
	graded []GradedContent,
	pathTitles map[string]string,
	maxDepth int,
) ([]mmodel.GradingNode, []mmodel.ContentTypeGradingStats, *time.Time) {
	submittedByID := make(map[string]SubmittedContent, len(submitted))
	for _, s := range submitted {
		submittedByID[s.CourseContentID] = s
	}

	gradeByID := make(map[string]GradedContent, len(graded))
	for _, g := range graded {
		gradeByID[g.CourseContentID] = g
	}

	// Every prefix of every submittable path is a node.
	prefixSet := map[string]ltree.Path{}

	for _, c := range submittable {
		for _, prefix := range c.Path.Prefixes() {
			if maxDepth > 0 && prefix.Level() > maxDepth {
				continue
			}

			prefixSet[prefix.String()] = prefix
		}
	}

	sortedPrefixes := make([]string, 0, len(prefixSet))
	for p := range prefixSet {
		sortedPrefixes = append(sortedPrefixes, p)
	}

	sort.Slice(sortedPrefixes, func(i, j int) bool {
		li := prefixSet[sortedPrefixes[i]].Level()
		lj := prefixSet[sortedPrefixes[j]].Level()

		if li != lj {
			return li < lj
		}

		return sortedPrefixes[i] < sortedPrefixes[j]
	})

	nodes := make([]mmodel.GradingNode, 0, len(sortedPrefixes))

	for _, prefixStr := range sortedPrefixes {
		prefix := prefixSet[prefixStr]

		var under []SubmittableContent

		for _, c := range submittable {
			if c.Path.IsDescendantOf(prefix) {
				under = append(under, c)
			}
		}

		if len(under) == 0 {
			continue
		}

		node := aggregateNode(prefixStr, pathTitles[prefixStr], under, submittedByID, gradeByID)
		nodes = append(nodes, node)
	}

	courseTotals := aggregateNode("", "", submittable, submittedByID, gradeByID)

	var overallLatest *time.Time
	for _, s := range submitted {
		overallLatest = laterOf(overallLatest, s.LatestSubmissionAt)
	}

	return nodes, courseTotals.ByContentType, overallLatest
}

func aggregateNode(
	path, title string,
	under []SubmittableContent,
	submittedByID map[string]SubmittedContent,
	gradeByID map[string]GradedContent,
) mmodel.GradingNode {
	node := mmodel.GradingNode{
		Path:           path,
		Title:          title,
		MaxAssignments: len(under),
	}

	var (
		latest    *time.Time
		gradeSum  float64
		statuses  []mmodel.GradingStatus
		typeOrder []string
	)

	byType := map[string][]SubmittableContent{}
	typeInfo := map[string]SubmittableContent{}

	for _, c := range under {
		if sub, ok := submittedByID[c.CourseContentID]; ok {
			node.SubmittedAssignments++
			latest = laterOf(latest, sub.LatestSubmissionAt)
		}

		// Missing grades contribute 0 to the average; missing statuses reduce
		// as not_reviewed.
		if g, ok := gradeByID[c.CourseContentID]; ok {
			gradeSum += g.Grade

			if g.Status != nil {
				node.GradedAssignments++
				statuses = append(statuses, *g.Status)
			} else {
				statuses = append(statuses, mmodel.GradingStatusNotReviewed)
			}
		} else {
			statuses = append(statuses, mmodel.GradingStatusNotReviewed)
		}

		if _, ok := byType[c.ContentTypeID]; !ok {
			typeOrder = append(typeOrder, c.ContentTypeID)
			typeInfo[c.ContentTypeID] = c
		}

		byType[c.ContentTypeID] = append(byType[c.ContentTypeID], c)
	}

	node.LatestSubmissionAt = latest

	if node.MaxAssignments > 0 {
		node.ProgressPercentage = float64(node.SubmittedAssignments) / float64(node.MaxAssignments) * 100
		node.AverageGrading = gradeSum / float64(node.MaxAssignments)
	}

	node.GradingStatus = ReduceGradingStatus(statuses)

	sort.Slice(typeOrder, func(i, j int) bool {
		return typeInfo[typeOrder[i]].ContentTypeSlug < typeInfo[typeOrder[j]].ContentTypeSlug
	})

	node.ByContentType = make([]mmodel.ContentTypeGradingStats, 0, len(typeOrder))

	for _, typeID := range typeOrder {
		contents := byType[typeID]
		info := typeInfo[typeID]

		ct := mmodel.ContentTypeGradingStats{
			CourseContentTypeID:    info.ContentTypeID,
			CourseContentTypeSlug:  info.ContentTypeSlug,
			CourseContentTypeTitle: info.ContentTypeTitle,
			CourseContentTypeColor: info.ContentTypeColor,
			MaxAssignments:         len(contents),
		}

		var ctLatest *time.Time

		for _, c := range contents {
			if sub, ok := submittedByID[c.CourseContentID]; ok {
				ct.SubmittedAssignments++
				ctLatest = laterOf(ctLatest, sub.LatestSubmissionAt)
			}
		}

		ct.LatestSubmissionAt = ctLatest

		if ct.MaxAssignments > 0 {
			ct.ProgressPercentage = float64(ct.SubmittedAssignments) / float64(ct.MaxAssignments) * 100
		}

		node.ByContentType = append(node.ByContentType, ct)
	}

	return node
}

// MemberInfo identifies one enrolled student of a course-wide batch.
type MemberInfo struct {
	CourseMemberID string
	UserID         string
	Username       string
	GivenName      string
	FamilyName     string
}

// CalculateGradingStatsForAllMembers computes course-level stats for every
// member in one pass over the batched submitted-contents result set. Only
// totals and the per-content-type breakdown are produced (no hierarchy).
func CalculateGradingStatsForAllMembers(
	courseID string,
	submittable []SubmittableContent,
	allSubmitted []SubmittedContent,
	members []MemberInfo,
) []mmodel.CourseMemberGradingsRow {
	submittedByMember := map[string][]SubmittedContent{}
	for _, s := range allSubmitted {
		submittedByMember[s.CourseMemberID] = append(submittedByMember[s.CourseMemberID], s)
	}

	rows := make([]mmodel.CourseMemberGradingsRow, 0, len(members))

	for _, member := range members {
		memberSubmitted := submittedByMember[member.CourseMemberID]

		submittedByID := make(map[string]SubmittedContent, len(memberSubmitted))
		for _, s := range memberSubmitted {
			submittedByID[s.CourseContentID] = s
		}

		node := aggregateNode("", "", submittable, submittedByID, nil)

		rows = append(rows, mmodel.CourseMemberGradingsRow{
			CourseMemberID:            member.CourseMemberID,
			CourseID:                  courseID,
			UserID:                    member.UserID,
			Username:                  member.Username,
			GivenName:                 member.GivenName,
			FamilyName:                member.FamilyName,
			TotalMaxAssignments:       node.MaxAssignments,
			TotalSubmittedAssignments: node.SubmittedAssignments,
			OverallProgressPercentage: node.ProgressPercentage,
			LatestSubmissionAt:        node.LatestSubmissionAt,
			ByContentType:             node.ByContentType,
		})
	}

	return rows
}
