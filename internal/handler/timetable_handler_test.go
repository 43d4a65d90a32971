package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableServiceMock struct {
	generateResp *dto.GenerateTimetableResponse
	generateErr  error
	createErr    error
	lastSection  string
	lastGenerate dto.GenerateTimetableRequest
	lastCreate   dto.CreateTimetableEntryRequest
	lastUpdate   dto.UpdateTimetableEntryRequest
	lastCancel   dto.CancelTimetableEntryRequest
	lastQuery    dto.SlotAvailabilityQuery
	lastTeacher  string
	lastEntryID  string
}

func (m *timetableServiceMock) GenerateTimetable(_ context.Context, sectionID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.lastSection = sectionID
	m.lastGenerate = req
	return m.generateResp, m.generateErr
}

func (m *timetableServiceMock) CreateEntry(_ context.Context, req dto.CreateTimetableEntryRequest) (*models.TimeTableEntry, error) {
	m.lastCreate = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	day, err := req.DayOfWeek.Parse()
	if err != nil {
		return nil, err
	}
	return &models.TimeTableEntry{ID: "entry-1", SectionID: req.SectionID, DayOfWeek: day, Status: models.EntryStatusActive}, nil
}

func (m *timetableServiceMock) UpdateEntry(_ context.Context, id string, req dto.UpdateTimetableEntryRequest) (*models.TimeTableEntry, error) {
	m.lastEntryID = id
	m.lastUpdate = req
	return &models.TimeTableEntry{ID: id, TeacherID: req.TeacherID, Status: models.EntryStatusActive}, nil
}

func (m *timetableServiceMock) CancelEntry(_ context.Context, id string, req dto.CancelTimetableEntryRequest) (*models.TimeTableEntry, error) {
	m.lastEntryID = id
	m.lastCancel = req
	return &models.TimeTableEntry{ID: id, Status: models.EntryStatusCancelled, CancelReason: &req.Reason}, nil
}

func (m *timetableServiceMock) CheckSlotAvailability(_ context.Context, query dto.SlotAvailabilityQuery) (*models.SlotAvailabilityResult, error) {
	m.lastQuery = query
	return &models.SlotAvailabilityResult{IsAvailable: true, Conflicts: []models.ConflictDetail{}}, nil
}

func (m *timetableServiceMock) SectionTimetable(_ context.Context, sectionID string) (*dto.SectionTimetableResponse, error) {
	m.lastSection = sectionID
	return &dto.SectionTimetableResponse{SectionID: sectionID, Entries: []models.TimeTableEntry{{ID: "e1"}, {ID: "e2"}}}, nil
}

func (m *timetableServiceMock) TeacherTimetable(_ context.Context, teacherID string) (*dto.TeacherTimetableResponse, error) {
	m.lastTeacher = teacherID
	return &dto.TeacherTimetableResponse{TeacherID: teacherID, Entries: []models.TimeTableEntry{}}, nil
}

type exporterMock struct {
	lastFormat dto.ExportFormat
}

func (m *exporterMock) Export(_ context.Context, sectionID string, format dto.ExportFormat) (*dto.ExportedFile, error) {
	m.lastFormat = format
	return &dto.ExportedFile{FileName: "timetable-" + sectionID + ".csv", ContentType: "text/csv", Content: []byte("Period,MONDAY\n")}, nil
}

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var testTokens = tokenTable{
	"admin":   {UserID: "admin-1", Role: models.RoleAdmin},
	"teacher": {UserID: "t1", Role: models.RoleTeacher},
	"student": {UserID: "stu-1", Role: models.RoleStudent},
}

func newTimetableRouter(svc *timetableServiceMock, exporter *exporterMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterTimetableRoutes(r.Group("/api/v1"), NewTimetableHandler(svc, exporter), testTokens)
	return r
}

func doRequest(r http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data    json.RawMessage        `json:"data"`
	Message string                 `json:"message"`
	Meta    map[string]interface{} `json:"meta"`
	Error   *appErrors.Error       `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestTimetableRoutesAccessControl(t *testing.T) {
	r := newTimetableRouter(&timetableServiceMock{generateResp: &dto.GenerateTimetableResponse{}}, &exporterMock{})

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"no token", http.MethodGet, "/api/v1/sections/s1/timetable", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/v1/sections/s1/timetable", "forged", http.StatusUnauthorized},
		{"student reads section", http.MethodGet, "/api/v1/sections/s1/timetable", "student", http.StatusOK},
		{"teacher cannot generate", http.MethodPost, "/api/v1/sections/s1/timetable/generate", "teacher", http.StatusForbidden},
		{"student cannot cancel", http.MethodPost, "/api/v1/timetable/entries/e1/cancel", "student", http.StatusForbidden},
		{"teacher reads own week", http.MethodGet, "/api/v1/teachers/t1/timetable", "teacher", http.StatusOK},
		{"teacher cannot read colleague", http.MethodGet, "/api/v1/teachers/t2/timetable", "teacher", http.StatusForbidden},
		{"admin reads any week", http.MethodGet, "/api/v1/teachers/t2/timetable", "admin", http.StatusOK},
		{"teacher cannot probe availability", http.MethodGet, "/api/v1/timetable/availability", "teacher", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(r, tc.method, tc.path, tc.token, nil)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestTimetableHandlerGenerate(t *testing.T) {
	svc := &timetableServiceMock{generateResp: &dto.GenerateTimetableResponse{SectionID: "s1", EntriesCreated: 7, Message: "created 7 entries"}}
	r := newTimetableRouter(svc, &exporterMock{})

	w := doRequest(r, http.MethodPost, "/api/v1/sections/s1/timetable/generate", "admin", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "s1", svc.lastSection)
	assert.Nil(t, svc.lastGenerate.WorkingDays)
	assert.Equal(t, "created 7 entries", decode(t, w).Message)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	body := []byte(`{"overwriteExisting":true,"workingDays":["MONDAY","wed"],"periodsPerDay":5}`)
	svc.generateResp = &dto.GenerateTimetableResponse{SectionID: "s1", Message: "created 0 entries"}
	w = doRequest(r, http.MethodPost, "/api/v1/sections/s1/timetable/generate", "admin", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.lastGenerate.OverwriteExisting)
	assert.Equal(t, []dto.Day{"MONDAY", "wed"}, svc.lastGenerate.WorkingDays)
	require.NotNil(t, svc.lastGenerate.PeriodsPerDay)
	assert.Equal(t, 5, *svc.lastGenerate.PeriodsPerDay)
}

func TestTimetableHandlerGenerateErrors(t *testing.T) {
	svc := &timetableServiceMock{generateErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "section already has 3 active entries")}
	r := newTimetableRouter(svc, &exporterMock{})

	w := doRequest(r, http.MethodPost, "/api/v1/sections/s1/timetable/generate", "admin", nil)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PRECONDITION_FAILED", env.Error.Code)

	w = doRequest(r, http.MethodPost, "/api/v1/sections/s1/timetable/generate", "admin", []byte(`{"workingDays":[true]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)
}

func TestTimetableHandlerCreateEntry(t *testing.T) {
	svc := &timetableServiceMock{}
	r := newTimetableRouter(svc, &exporterMock{})
	body := []byte(`{"sectionId":"s1","subjectId":"math","teacherId":"t1","dayOfWeek":"MONDAY","periodNumber":1,"startTime":"09:00","endTime":"09:40","roomNumber":"R1"}`)

	w := doRequest(r, http.MethodPost, "/api/v1/timetable/entries", "admin", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, dto.Day("MONDAY"), svc.lastCreate.DayOfWeek)
	assert.Equal(t, "R1", svc.lastCreate.RoomNumber)

	var entry models.TimeTableEntry
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &entry))
	assert.Equal(t, "entry-1", entry.ID)
	assert.Equal(t, models.Monday, entry.DayOfWeek)

	w = doRequest(r, http.MethodPost, "/api/v1/timetable/entries", "admin", []byte(`{"sectionId":"s1","subjectId":"math","dayOfWeek":3,"periodNumber":2,"startTime":"09:40","endTime":"10:20"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, dto.Day("3"), svc.lastCreate.DayOfWeek)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &entry))
	assert.Equal(t, models.Wednesday, entry.DayOfWeek)

	w = doRequest(r, http.MethodPost, "/api/v1/timetable/entries", "admin", []byte(`{"dayOfWeek":{"name":"MONDAY"}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)
}

func TestTimetableHandlerRejectsNonTeachingDays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := service.NewTimetableService(service.TimetableServiceDeps{Rules: models.SlotRules{MaxPeriodsPerDay: 10}})
	RegisterTimetableRoutes(r.Group("/api/v1"), NewTimetableHandler(svc, &exporterMock{}), testTokens)

	cases := []struct {
		name string
		path string
		body string
	}{
		{"weekend name", "/api/v1/timetable/entries", `{"sectionId":"s1","subjectId":"math","dayOfWeek":"SATURDAY","periodNumber":1,"startTime":"09:00","endTime":"09:40"}`},
		{"weekend number", "/api/v1/timetable/entries", `{"sectionId":"s1","subjectId":"math","dayOfWeek":7,"periodNumber":1,"startTime":"09:00","endTime":"09:40"}`},
		{"weekend working day", "/api/v1/sections/s1/timetable/generate", `{"workingDays":["MONDAY","SATURDAY"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, tc.path, "admin", []byte(tc.body))
			require.Equal(t, http.StatusBadRequest, w.Code)
			env := decode(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, "INVALID_DAY_OF_WEEK", env.Error.Code)
		})
	}
}

func TestTimetableHandlerCreateEntryConflict(t *testing.T) {
	conflict := &models.TimeTableConflictError{ConflictingEntryID: "entry-0", DayOfWeek: models.Monday, PeriodNumber: 1}
	svc := &timetableServiceMock{createErr: appErrors.Wrap(conflict, appErrors.ErrTimeTableConflict.Code, appErrors.ErrTimeTableConflict.Status, conflict.Error()).WithDetails(conflict)}
	r := newTimetableRouter(svc, &exporterMock{})
	body := []byte(`{"sectionId":"s1","subjectId":"math","dayOfWeek":"1","periodNumber":1,"startTime":"09:00","endTime":"09:40"}`)

	w := doRequest(r, http.MethodPost, "/api/v1/timetable/entries", "admin", body)
	require.Equal(t, http.StatusConflict, w.Code)

	var raw struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				ConflictingEntryID string `json:"conflictingEntryId"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "TIMETABLE_CONFLICT", raw.Error.Code)
	assert.Equal(t, "entry-0", raw.Error.Details.ConflictingEntryID)
}

func TestTimetableHandlerUpdateAndCancel(t *testing.T) {
	svc := &timetableServiceMock{}
	r := newTimetableRouter(svc, &exporterMock{})

	body := []byte(`{"subjectId":"math","teacherId":"t2","startTime":"09:00","endTime":"09:40"}`)
	w := doRequest(r, http.MethodPut, "/api/v1/timetable/entries/e1", "admin", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "e1", svc.lastEntryID)
	assert.Equal(t, "t2", svc.lastUpdate.TeacherID)

	w = doRequest(r, http.MethodPost, "/api/v1/timetable/entries/e1/cancel", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled by admin-1", svc.lastCancel.Reason)

	w = doRequest(r, http.MethodPost, "/api/v1/timetable/entries/e1/cancel", "admin", []byte(`{"reason":"exam week"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "exam week", svc.lastCancel.Reason)
}

func TestTimetableHandlerAvailability(t *testing.T) {
	svc := &timetableServiceMock{}
	r := newTimetableRouter(svc, &exporterMock{})

	w := doRequest(r, http.MethodGet, "/api/v1/timetable/availability?sectionId=s1&teacherId=t1&roomNumber=R1&dayOfWeek=TUESDAY&periodNumber=3", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, svc.lastQuery.PeriodNumber)
	assert.Equal(t, "TUESDAY", svc.lastQuery.DayOfWeek)

	var result models.SlotAvailabilityResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.True(t, result.IsAvailable)

	w = doRequest(r, http.MethodGet, "/api/v1/timetable/availability?periodNumber=abc", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerReads(t *testing.T) {
	svc := &timetableServiceMock{}
	r := newTimetableRouter(svc, &exporterMock{})

	w := doRequest(r, http.MethodGet, "/api/v1/sections/s1/timetable", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w).Meta["entries"])

	w = doRequest(r, http.MethodGet, "/api/v1/teachers/t1/timetable", "teacher", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", svc.lastTeacher)
}

func TestTimetableHandlerExport(t *testing.T) {
	exporter := &exporterMock{}
	r := newTimetableRouter(&timetableServiceMock{}, exporter)

	w := doRequest(r, http.MethodGet, "/api/v1/sections/s1/timetable/export?format=csv", "student", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportFormatCSV, exporter.lastFormat)
	assert.Equal(t, `attachment; filename="timetable-s1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "Period,MONDAY\n", w.Body.String())
}

func TestMetricsHandlerReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterOpsRoutes(r, NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}))

	w := doRequest(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])

	w = doRequest(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
