package main

import (
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Brownie44l1/classroom-http/internal/form"
	"github.com/Brownie44l1/classroom-http/internal/metrics"
	"github.com/Brownie44l1/classroom-http/internal/request"
	"github.com/Brownie44l1/classroom-http/internal/response"
	"github.com/Brownie44l1/classroom-http/internal/router"
)

type Assignment struct {
	ID          string    `json:"id"`
	ClassroomID string    `json:"classroom_id"`
	Title       string    `json:"title"`
	Due         time.Time `json:"due"`
}

type SubmittedFile struct {
	Field    string `json:"field"`
	Filename string `json:"filename"`
	Size     int    `json:"size"`
}

type Submission struct {
	ID           int64             `json:"id"`
	AssignmentID string            `json:"assignment_id"`
	Fields       map[string]string `json:"fields"`
	Files        []SubmittedFile   `json:"files"`
	ReceivedAt   time.Time         `json:"received_at"`
}

// classroom is the in-memory store behind the demo routes. Workers call into
// it concurrently.
type classroom struct {
	assignments *xsync.MapOf[string, Assignment]
	submissions *xsync.MapOf[string, []Submission]
	nextID      atomic.Int64
	metrics     func() metrics.Snapshot
}

func newClassroom(stats func() metrics.Snapshot) *classroom {
	return &classroom{
		assignments: xsync.NewMapOf[string, Assignment](),
		submissions: xsync.NewMapOf[string, []Submission](),
		metrics:     stats,
	}
}

func (c *classroom) addAssignment(a Assignment) {
	c.assignments.Store(a.ID, a)
}

func (c *classroom) routes(r *router.Router) {
	r.GET("/health", c.handleHealth)
	r.GET("/metrics", c.handleMetrics)
	r.GET("/classroom/{classroom_id}/assignment/all", c.handleListAssignments)
	r.GET("/assignment/{assignment_id}/get", c.handleGetAssignment)
	r.POST("/assignment/{assignment_id}/submit", c.handleSubmit)
}

func (c *classroom) handleHealth(req *request.Request) response.Result {
	return jsonResult(response.JSON, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *classroom) handleMetrics(req *request.Request) response.Result {
	if c.metrics == nil {
		return response.Error(response.NotImplemented)
	}
	return jsonResult(response.JSON, c.metrics())
}

// handleListAssignments lists a classroom's assignments ordered by due date.
// ?limit=N caps the result.
func (c *classroom) handleListAssignments(req *request.Request) response.Result {
	classroomID := req.Param("classroom_id")

	limit := -1
	if raw, ok := req.Parameters["limit"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return response.New(response.BadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	list := make([]Assignment, 0)
	c.assignments.Range(func(_ string, a Assignment) bool {
		if a.ClassroomID == classroomID {
			list = append(list, a)
		}
		return true
	})
	sortByDue(list)

	if limit >= 0 && limit < len(list) {
		list = list[:limit]
	}
	return jsonResult(response.JSON, list)
}

func (c *classroom) handleGetAssignment(req *request.Request) response.Result {
	a, ok := c.assignments.Load(req.Param("assignment_id"))
	if !ok {
		return response.New(response.NotFound, "no such assignment")
	}
	return jsonResult(response.JSON, a)
}

// handleSubmit accepts a multipart/form-data submission. At least one part
// must be a file.
func (c *classroom) handleSubmit(req *request.Request) response.Result {
	if auth, ok := req.Headers.Lookup("Authorization"); !ok || strings.TrimSpace(auth) == "" {
		return response.Error(response.NotAuthorized)
	}

	assignmentID := req.Param("assignment_id")
	if _, ok := c.assignments.Load(assignmentID); !ok {
		return response.New(response.NotFound, "no such assignment")
	}

	dec, err := form.New(req)
	if err != nil {
		return response.New(response.BadRequest, err.Error())
	}
	fields, err := dec.Parse()
	if err != nil {
		if errors.Is(err, form.ErrMissingFieldName) || errors.Is(err, form.ErrUnterminatedMultipartPart) {
			return response.New(response.BadRequest, err.Error())
		}
		return response.Error(response.InternalError)
	}

	files := fields.Files()
	if len(files) == 0 {
		return response.New(response.BadRequest, "submission has no files")
	}

	sub := Submission{
		ID:           c.nextID.Add(1),
		AssignmentID: assignmentID,
		Fields:       make(map[string]string),
		Files:        make([]SubmittedFile, 0, len(files)),
		ReceivedAt:   time.Now().UTC(),
	}
	for _, f := range fields {
		if f.IsFile() {
			sub.Files = append(sub.Files, SubmittedFile{Field: f.Name, Filename: f.Filename, Size: len(f.Value)})
			continue
		}
		sub.Fields[f.Name] = string(f.Value)
	}

	c.submissions.Compute(assignmentID, func(old []Submission, _ bool) ([]Submission, bool) {
		return append(old, sub), false
	})

	return jsonResult(response.Created, sub)
}

// Submissions returns what has been accepted for an assignment.
func (c *classroom) Submissions(assignmentID string) []Submission {
	subs, _ := c.submissions.Load(assignmentID)
	return subs
}

func jsonResult(t response.Type, v any) response.Result {
	body, err := json.Marshal(v)
	if err != nil {
		return response.Error(response.InternalError)
	}
	return response.New(t, string(body), "Content-Type: application/json")
}

func sortByDue(list []Assignment) {
	slices.SortFunc(list, func(a, b Assignment) int {
		if c := a.Due.Compare(b.Due); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
