package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kumon-analytics/internal/models"
	"github.com/noah-isme/kumon-analytics/pkg/config"
	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"
)

var ingestTime = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestNormalizer(strategy string) *Normalizer {
	return NewNormalizer(NormalizerOptions{
		Assigner:       &seqAssigner{prefix: "id"},
		StatusStrategy: strategy,
		Table:          "data_cleaned",
		Now:            fixedClock(ingestTime),
	})
}

func obs(row int, kumonID, subject, date string, status models.StatusCode) models.RawObservation {
	return models.RawObservation{
		Row:        row,
		KumonID:    kumonID,
		Name:       "Student " + kumonID,
		Subject:    subject,
		ReportDate: day(date),
		Stage:      "B",
		Status:     status,
	}
}

func TestNormalizeKeysTrimsAndUppercases(t *testing.T) {
	log := models.RawLog{Observations: []models.RawObservation{{KumonID: "  k-01 ", Subject: " math"}}}

	out := NormalizeKeys(log)

	assert.Equal(t, "K-01", out.Observations[0].KumonID)
	assert.Equal(t, "MATH", out.Observations[0].Subject)
	assert.Equal(t, "  k-01 ", log.Observations[0].KumonID, "input must not be mutated")
}

func TestNormalizeKeepsLatestObservationWithStatusColumn(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	log := models.RawLog{HasStatus: true, Observations: []models.RawObservation{
		obs(1, "k1", "math", "2024-02-01", models.StatusNew),
		obs(2, "K1 ", "MATH", "2024-03-01", models.StatusCurrent),
		obs(3, "k2", "math", "2024-01-01", models.StatusAbsent),
	}}
	log.Observations[1].Stage = "C"

	star, err := n.Normalize(log, false)
	require.NoError(t, err)

	require.Len(t, star.Students, 2)
	assert.Equal(t, "K1", star.Students[0].KumonID)
	assert.Equal(t, "C", star.Students[0].CurrentStage)
	assert.Equal(t, models.StatusCurrent, star.Students[0].Status)
	assert.Equal(t, models.StatusAbsent, star.Students[1].Status)
	assert.Equal(t, ingestTime, star.Students[0].IngestedAt)

	require.Len(t, star.Facts, 3)
	assert.Equal(t, star.Students[0].StudentID, star.Facts[0].StudentID)
	assert.Equal(t, star.Students[0].StudentID, star.Facts[1].StudentID)
	assert.Equal(t, star.Students[1].StudentID, star.Facts[2].StudentID)
	assert.Nil(t, star.Enrollments)
}

func TestNormalizeBreaksDateTiesByInputOrder(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	log := models.RawLog{HasStatus: true, Observations: []models.RawObservation{
		obs(1, "K1", "MATH", "2024-03-01", models.StatusNew),
		obs(2, "K1", "MATH", "2024-03-01", models.StatusAbsent),
	}}

	students, err := n.BuildStudentDimension(NormalizeKeys(log))
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, models.StatusAbsent, students[0].Status)
}

func TestNormalizeWithoutStatusColumnKeepsFirstAndUsesLatestReport(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	log := models.RawLog{HasStatus: false, Observations: []models.RawObservation{
		obs(1, "K1", "MATH", "2024-01-01", ""),
		obs(2, "K2", "MATH", "2024-03-01", ""),
		obs(3, "K1", "MATH", "2024-02-01", ""),
	}}
	log.Observations[2].Stage = "D"

	students, err := n.BuildStudentDimension(log)
	require.NoError(t, err)
	require.Len(t, students, 2)

	assert.Equal(t, "B", students[0].CurrentStage, "first observation wins without a status column")
	assert.Equal(t, models.StatusInactive, students[0].Status)
	assert.Equal(t, models.StatusActive, students[1].Status)
}

func TestNormalizeLatestReportStrategyIgnoresStatusColumn(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyLatestReport)
	log := models.RawLog{HasStatus: true, Observations: []models.RawObservation{
		obs(1, "K1", "MATH", "2024-03-01", models.StatusAbsent),
		obs(2, "K2", "MATH", "2024-02-01", models.StatusCurrent),
	}}

	students, err := n.BuildStudentDimension(log)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, students[0].Status)
	assert.Equal(t, models.StatusInactive, students[1].Status)
}

func TestNormalizeRejectsBlankKumonID(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	log := models.RawLog{HasStatus: true, Observations: []models.RawObservation{
		obs(1, "K1", "MATH", "2024-03-01", models.StatusCurrent),
		obs(2, "   ", "MATH", "2024-03-01", models.StatusCurrent),
	}}

	star, err := n.Normalize(log, false)
	require.Error(t, err)
	assert.Nil(t, star)

	var verr *appErrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "data_cleaned", verr.Table)
	assert.Contains(t, verr.Reason, "row 2")
}

func TestBuildFactTableRejectsOrphanObservation(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	students := []models.Student{{StudentID: "s-1", KumonID: "K1"}}
	log := models.RawLog{Observations: []models.RawObservation{obs(4, "K9", "MATH", "2024-03-01", "")}}

	_, err := n.BuildFactTable(log, students, nil)

	var verr *appErrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "build_facts", verr.Operation)
	assert.Equal(t, "K9", verr.Key)
}

func TestBuildFactTableRejectsDuplicateStudents(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	students := []models.Student{{StudentID: "s-1", KumonID: "K1"}, {StudentID: "s-2", KumonID: "k1"}}
	log := models.RawLog{Observations: []models.RawObservation{obs(1, "K1", "MATH", "2024-03-01", "")}}

	_, err := n.BuildFactTable(log, students, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 students share")
}

func TestBuildFactTableFillsCatalogIDsAndAge(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	students := []models.Student{{StudentID: "s-1", KumonID: "K1", BirthDate: dayPtr("2010-05-20")}}
	o := obs(1, "K1", "MATH", "2020-05-19", models.StatusCurrent)
	o.Stage = "A"
	o.Grade = "1EF"
	o.CurrentLesson = 60
	log := models.RawLog{Observations: []models.RawObservation{o}}

	facts, err := n.BuildFactTable(log, students, nil)
	require.NoError(t, err)
	require.Len(t, facts, 1)

	f := facts[0]
	assert.Equal(t, 6, f.StageID)
	assert.Equal(t, 6, f.GradeID)
	require.NotNil(t, f.AgeAtReport)
	assert.Equal(t, 9, *f.AgeAtReport)
	assert.Equal(t, 60, f.CurrentLesson)
	assert.NotEmpty(t, f.FactID)
}

func TestNormalizeRelationVariantLinksFactsToEnrollments(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	log := models.RawLog{HasStatus: true, Observations: []models.RawObservation{
		obs(1, "K1", "MATH", "2024-02-01", models.StatusCurrent),
		obs(2, "K1", "ENGLISH", "2024-02-01", models.StatusCurrent),
		obs(3, "K1", "MATH", "2024-03-01", models.StatusCurrent),
	}}

	star, err := n.Normalize(log, true)
	require.NoError(t, err)

	require.Len(t, star.Students, 1)
	require.Len(t, star.Enrollments, 2)
	bySubject := map[string]string{}
	for _, e := range star.Enrollments {
		assert.Equal(t, star.Students[0].StudentID, e.StudentID)
		bySubject[e.Subject] = e.SubjectID
	}
	require.Len(t, star.Facts, 3)
	assert.Equal(t, bySubject["MATH"], star.Facts[0].SubjectID)
	assert.Equal(t, bySubject["ENGLISH"], star.Facts[1].SubjectID)
	assert.Equal(t, bySubject["MATH"], star.Facts[2].SubjectID)
}

func TestBuildFactTableRequiresEnrollmentInRelationVariant(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	students := []models.Student{{StudentID: "s-1", KumonID: "K1"}}
	enrollments := []models.Enrollment{{SubjectID: "e-1", StudentID: "s-1", Subject: "MATH"}}
	log := models.RawLog{Observations: []models.RawObservation{obs(1, "K1", "ENGLISH", "2024-03-01", "")}}

	_, err := n.BuildFactTable(log, students, enrollments)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no enrollment")
}

func TestNormalizeReusesSeededIDs(t *testing.T) {
	n := newTestNormalizer(config.StatusStrategyStatusCode)
	n.SeedStudents([]models.Student{{StudentID: "old-1", KumonID: " k1"}})
	n.SeedEnrollments([]models.Enrollment{{SubjectID: "enr-1", StudentID: "old-1", Subject: "math"}})
	log := models.RawLog{HasStatus: true, Observations: []models.RawObservation{
		obs(1, "K1", "MATH", "2024-03-01", models.StatusCurrent),
		obs(2, "K2", "MATH", "2024-03-01", models.StatusCurrent),
	}}

	star, err := n.Normalize(log, true)
	require.NoError(t, err)

	assert.Equal(t, "old-1", star.Students[0].StudentID)
	assert.NotEqual(t, "old-1", star.Students[1].StudentID)
	assert.Equal(t, "enr-1", star.Enrollments[0].SubjectID)
	assert.Equal(t, "enr-1", star.Facts[0].SubjectID)
}

func TestNormalizeProducesUniqueIdentifiers(t *testing.T) {
	n := NewNormalizer(NormalizerOptions{})
	log := models.RawLog{HasStatus: true}
	for i, key := range []string{"A1", "A2", "A3", "A1", "A2"} {
		log.Observations = append(log.Observations, obs(i+1, key, "MATH", "2024-03-01", models.StatusCurrent))
	}

	star, err := n.Normalize(log, true)
	require.NoError(t, err)

	ids := map[string]struct{}{}
	for _, s := range star.Students {
		ids[s.StudentID] = struct{}{}
	}
	for _, e := range star.Enrollments {
		ids[e.SubjectID] = struct{}{}
	}
	for _, f := range star.Facts {
		ids[f.FactID] = struct{}{}
	}
	assert.Len(t, ids, len(star.Students)+len(star.Enrollments)+len(star.Facts))
	assert.Len(t, star.Facts, len(log.Observations))
}

func TestAgeAtHandlesUnknownAndFutureBirthDates(t *testing.T) {
	assert.Nil(t, ageAt(nil, day("2024-01-01")))
	assert.Nil(t, ageAt(dayPtr("2025-01-01"), day("2024-01-01")))
	age := ageAt(dayPtr("2014-01-01"), day("2024-01-01"))
	require.NotNil(t, age)
	assert.Equal(t, 10, *age)
}
