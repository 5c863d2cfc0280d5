package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUpsertIssue_ReplacesSameCode(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issues := UpsertIssue(nil, Issue{Code: IssueNoDNSRecords, Message: "first", At: t0})
	issues = UpsertIssue(issues, Issue{Code: IssueNoDNSRecords, Message: "second", At: t0.Add(time.Minute)})

	assert.Len(t, issues, 1)
	assert.Equal(t, "second", issues[0].Message)
}

func TestUpsertIssue_Bounded(t *testing.T) {
	var issues []Issue
	for i := 0; i < MaxIssues+5; i++ {
		issues = UpsertIssue(issues, Issue{Code: fmt.Sprintf("CODE_%d", i)})
	}
	assert.Len(t, issues, MaxIssues)
	assert.Equal(t, "CODE_5", issues[0].Code)
}

func TestRemoveIssues(t *testing.T) {
	issues := []Issue{{Code: "A"}, {Code: "B"}, {Code: "C"}}
	issues = RemoveIssues(issues, "A", "C")
	assert.Equal(t, []Issue{{Code: "B"}}, issues)
	assert.True(t, HasIssue(issues, "B"))
	assert.False(t, HasIssue(issues, "A"))
}
