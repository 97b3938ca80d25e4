package models

// Subjects offered, in display order.
var Subjects = []string{"MATH", "PORTUGUESE", "ENGLISH", "JAPANESE"}

// Stages lists each subject's stages from entry level upwards. A stage's
// stage_id is its 1-based position.
var Stages = map[string][]string{
	"MATH": {
		"6A", "5A", "4A", "3A", "2A", "A", "B", "C", "D", "E",
		"F", "G", "H", "I", "J", "K", "L", "M", "N", "O",
	},
	"PORTUGUESE": {
		"7A", "6A", "5A", "4A", "3A", "2A", "AI", "AII", "BI", "BII",
		"CI", "CII", "DI", "DII", "EI", "EII", "FI", "FII", "GI", "GII",
		"HI", "HII", "II", "III", "J", "K", "L",
	},
	"ENGLISH": {
		"7A", "6A", "5A", "4A", "3A", "2A", "A", "B", "C", "D",
		"E", "F", "G", "H", "I", "J", "K", "L", "M", "N", "O",
	},
	"JAPANESE": {
		"4A", "3A", "2A", "A", "B", "C", "D", "E", "F", "G",
		"H", "I", "J", "K", "L",
	},
}

// Grades lists school grades from pre-school to adult. A grade's grade_id is
// its 1-based position.
var Grades = []string{
	"F5", "F4", "F3", "F2", "F1",
	"1EF", "2EF", "3EF", "4EF", "5EF", "6EF", "7EF", "8EF", "9EF",
	"1EM", "2EM", "3EM", "AD", "EE",
}

// Statuses are the codes an operator may submit on a monthly report.
var Statuses = []StatusCode{
	StatusCurrent, StatusNew, StatusNewMulti, StatusNewFormer,
	StatusAbsent, StatusAbsentGraduate, StatusAbsentTransfer,
}

// RegistrationStatuses are the codes allowed when registering a student.
var RegistrationStatuses = []StatusCode{StatusNew, StatusNewMulti, StatusNewFormer}

// StudyTypes are the delivery modes of a subject.
var StudyTypes = []string{"connect", "paper"}

// Lesson bounds and step accepted by the editor.
const (
	LessonMin  = 10
	LessonMax  = 200
	LessonStep = 10
)

// Catalog is the static reference data served to the editor.
type Catalog struct {
	Subjects     []string            `json:"subjects"`
	Stages       map[string][]string `json:"stages"`
	Grades       []string            `json:"grades"`
	Statuses     []StatusCode        `json:"statuses"`
	Registration []StatusCode        `json:"registration_statuses"`
	StudyTypes   []string            `json:"study_types"`
	Lessons      map[string]int      `json:"lessons"`
}

// DefaultCatalog returns the reference data.
func DefaultCatalog() Catalog {
	return Catalog{
		Subjects:     Subjects,
		Stages:       Stages,
		Grades:       Grades,
		Statuses:     Statuses,
		Registration: RegistrationStatuses,
		StudyTypes:   StudyTypes,
		Lessons:      map[string]int{"min": LessonMin, "max": LessonMax, "step": LessonStep},
	}
}

// StageID returns the 1-based position of stage within subject, or 0.
func StageID(subject, stage string) int {
	for i, s := range Stages[subject] {
		if s == stage {
			return i + 1
		}
	}
	return 0
}

// GradeID returns the 1-based position of grade, or 0.
func GradeID(grade string) int {
	for i, g := range Grades {
		if g == grade {
			return i + 1
		}
	}
	return 0
}

// IsSubject reports whether subject is offered.
func IsSubject(subject string) bool {
	_, ok := Stages[subject]
	return ok
}
