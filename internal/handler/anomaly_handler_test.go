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
	"go.uber.org/zap"

	"github.com/noah-isme/sma-rewards-api/internal/models"
	"github.com/noah-isme/sma-rewards-api/internal/service"
)

type flagStoreMock struct {
	flags      []models.AnomalyFlag
	resolveErr error
	resolved   []string
}

func (m *flagStoreMock) List(ctx context.Context, filter models.AnomalyFlagFilter) ([]models.AnomalyFlag, int, error) {
	return m.flags, len(m.flags), nil
}

func (m *flagStoreMock) Resolve(ctx context.Context, id string) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	m.resolved = append(m.resolved, id)
	return nil
}

func newAnomalyHandler(flags *flagStoreMock) *AnomalyHandler {
	detector := service.NewAnomalyService(service.AnomalyConfig{}, nil, zap.NewNop())
	return NewAnomalyHandler(detector, flags)
}

func TestAnomalyHandlerCheckInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnomalyHandler(&flagStoreMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/anomalies/check", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Check(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnomalyHandlerCheckMissingStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnomalyHandler(&flagStoreMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(models.PointEarningEvent{Amount: 10})
	req, _ := http.NewRequest(http.MethodPost, "/anomalies/check", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Check(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnomalyHandlerCheckCleanEvent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnomalyHandler(&flagStoreMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(models.PointEarningEvent{StudentID: "s1", Source: "quiz", Amount: 20})
	req, _ := http.NewRequest(http.MethodPost, "/anomalies/check", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Check(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.AnomalyDetectionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.IsAnomaly)
}

func TestAnomalyHandlerListReturnsFlags(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &flagStoreMock{flags: []models.AnomalyFlag{{ID: "f1", StudentID: "s1", AnomalyType: models.AnomalyOutlier}}}
	handler := newAnomalyHandler(store)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/anomalies?student_id=s1", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data       []models.AnomalyFlag `json:"data"`
		Pagination *models.Pagination   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestAnomalyHandlerResolve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &flagStoreMock{}
	handler := newAnomalyHandler(store)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/anomalies/f1/resolve", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "f1"}}

	handler.Resolve(c)
	// gin buffers the status until the engine flushes it; calling the
	// handler directly means we must flush before reading the recorder.
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"f1"}, store.resolved)
}

func TestAnomalyHandlerResolveNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnomalyHandler(&flagStoreMock{resolveErr: errors.New("not found")})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/anomalies/missing/resolve", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Resolve(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
