package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"calendar-service/pkg/auth"
)

// MockRepository is a mock of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SaveEvent(ctx context.Context, event *Event) (*Event, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockRepository) GetEventById(ctx context.Context, userId string, id string) (*Event, error) {
	args := m.Called(ctx, userId, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockRepository) ListEvents(ctx context.Context, userId string) ([]Event, error) {
	args := m.Called(ctx, userId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]Event), args.Error(1)
}

func (m *MockRepository) UpdateEvent(ctx context.Context, event *Event) (*Event, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*Event), args.Error(1)
}

func (m *MockRepository) DeleteEvent(ctx context.Context, userId string, id string) error {
	args := m.Called(ctx, userId, id)
	return args.Error(0)
}

func (m *MockRepository) CancelOccurrence(ctx context.Context, userId string, eventId string, occurrenceDate time.Time) (*EventException, error) {
	args := m.Called(ctx, userId, eventId, occurrenceDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*EventException), args.Error(1)
}

func testContext(t *testing.T, method string, path string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	c.Set(auth.IdentityKey, "user-1")

	return c, w
}

func TestHandlers_PostEvents(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	now := time.Now().Truncate(time.Second).UTC()
	nowJSON, _ := json.Marshal(now)

	validBody := `{"title":"Standup","description":"Daily sync","start_datetime":` + string(nowJSON) +
		`,"end_datetime":` + string(nowJSON) + `,"is_recurring":true`

	tests := []struct {
		name           string
		body           string
		mockReturn     *Event
		mockErr        error
		expectRepo     bool
		expectedStatus int
	}{
		{
			name:           "success with weekly rule",
			body:           validBody + `,"recurrence_rule":{"frequency":"WEEKLY","interval":1,"weekdays":["TU","TH"]}}`,
			mockReturn:     &Event{Id: "event-1", Title: "Standup"},
			expectRepo:     true,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "success without rule",
			body:           validBody + `}`,
			mockReturn:     &Event{Id: "event-1", Title: "Standup"},
			expectRepo:     true,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing title",
			body:           `{"title":"","description":""}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "rule validation failure",
			body:           validBody + `,"recurrence_rule":{"frequency":"DAILY","nth":2}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "explicit null rule rejected",
			body:           validBody + `,"recurrence_rule":null}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "count and until conflict",
			body:           validBody + `,"recurrence_rule":{"frequency":"DAILY","count":3,"until":"2024-12-31"}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "repository failure",
			body:           validBody + `}`,
			mockErr:        errors.New("db error"),
			expectRepo:     true,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid json",
			body:           "invalid",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockRepo := new(MockRepository)
			if tt.expectRepo {
				mockRepo.On("SaveEvent", mock.Anything, mock.Anything).Return(tt.mockReturn, tt.mockErr)
			}

			h := NewHandlers(mockRepo)
			c, w := testContext(t, http.MethodPost, "/events", tt.body)

			h.PostEvents(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestHandlers_PostEvents_OwnerFromContext(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockRepository)
	mockRepo.On("SaveEvent", mock.Anything, mock.MatchedBy(func(event *Event) bool {
		return event.UserId == "user-1"
	})).Return(&Event{Id: "event-1"}, nil)

	h := NewHandlers(mockRepo)
	c, w := testContext(t, http.MethodPost, "/events", `{"title":"Standup"}`)

	h.PostEvents(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestHandlers_PutEvents(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	t.Run("omitting the rule key asks the repository to remove the rule", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("UpdateEvent", mock.Anything, mock.MatchedBy(func(event *Event) bool {
			return event.Id == "event-1" && event.RecurrenceRule == nil
		})).Return(&Event{Id: "event-1", Title: "Standup"}, nil)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodPut, "/events/event-1", `{"title":"Standup"}`)
		c.Params = gin.Params{{Key: "id", Value: "event-1"}}

		h.PutEvents(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("rule payload is validated and passed along", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("UpdateEvent", mock.Anything, mock.MatchedBy(func(event *Event) bool {
			return event.RecurrenceRule != nil &&
				event.RecurrenceRule.Frequency == "WEEKLY" &&
				event.RecurrenceRule.WeekdaysCSV == "MO,WE"
		})).Return(&Event{Id: "event-1"}, nil)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodPut, "/events/event-1",
			`{"title":"Standup","recurrence_rule":{"frequency":"WEEKLY","weekdays":["MO","WE"]}}`)
		c.Params = gin.Params{{Key: "id", Value: "event-1"}}

		h.PutEvents(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("invalid rule never reaches the repository", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodPut, "/events/event-1",
			`{"title":"Standup","recurrence_rule":{"frequency":"YEARLY"}}`)
		c.Params = gin.Params{{Key: "id", Value: "event-1"}}

		h.PutEvents(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("unknown event returns 404", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("UpdateEvent", mock.Anything, mock.Anything).Return(nil, ErrEventNotFound)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodPut, "/events/event-9", `{"title":"Standup"}`)
		c.Params = gin.Params{{Key: "id", Value: "event-9"}}

		h.PutEvents(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestHandlers_GetEventById(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("GetEventById", mock.Anything, "user-1", "event-1").
			Return(&Event{Id: "event-1", Title: "Standup"}, nil)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodGet, "/events/event-1", "")
		c.Params = gin.Params{{Key: "id", Value: "event-1"}}

		h.GetEventById(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("GetEventById", mock.Anything, "user-1", "event-9").
			Return(nil, ErrEventNotFound)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodGet, "/events/event-9", "")
		c.Params = gin.Params{{Key: "id", Value: "event-9"}}

		h.GetEventById(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestHandlers_DeleteEvents(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("DeleteEvent", mock.Anything, "user-1", "event-1").Return(nil)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodDelete, "/events/event-1", "")
		c.Params = gin.Params{{Key: "id", Value: "event-1"}}

		h.DeleteEvents(c)

		// gctx.Status defers the header write until the response flushes.
		c.Writer.WriteHeaderNow()

		assert.Equal(t, http.StatusNoContent, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("DeleteEvent", mock.Anything, "user-1", "event-9").Return(ErrEventNotFound)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodDelete, "/events/event-9", "")
		c.Params = gin.Params{{Key: "id", Value: "event-9"}}

		h.DeleteEvents(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestHandlers_PostCancelOccurrence(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	occurrence := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("CancelOccurrence", mock.Anything, "user-1", "event-1", occurrence).
			Return(&EventException{Id: "exception-1", EventId: "event-1", OccurrenceDate: "2024-03-05", IsCancelled: true}, nil)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodPost, "/events/event-1/cancel-occurrence",
			`{"occurrence_date":"2024-03-05"}`)
		c.Params = gin.Params{{Key: "id", Value: "event-1"}}

		h.PostCancelOccurrence(c)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"is_cancelled":true`)
		mockRepo.AssertExpectations(t)
	})

	t.Run("wrong date format is a validation error, not a 404", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodPost, "/events/event-1/cancel-occurrence",
			`{"occurrence_date":"03-05-2024"}`)
		c.Params = gin.Params{{Key: "id", Value: "event-1"}}

		h.PostCancelOccurrence(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("missing date", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodPost, "/events/event-1/cancel-occurrence", `{}`)
		c.Params = gin.Params{{Key: "id", Value: "event-1"}}

		h.PostCancelOccurrence(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("unknown or non-owned event returns 404", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("CancelOccurrence", mock.Anything, "user-1", "event-9", occurrence).
			Return(nil, ErrEventNotFound)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodPost, "/events/event-9/cancel-occurrence",
			`{"occurrence_date":"2024-03-05"}`)
		c.Params = gin.Params{{Key: "id", Value: "event-9"}}

		h.PostCancelOccurrence(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestHandlers_GetEvents(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("ListEvents", mock.Anything, "user-1").
			Return([]Event{{Id: "event-1"}, {Id: "event-2"}}, nil)

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodGet, "/events", "")

		h.GetEvents(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("repository failure", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockRepository)
		mockRepo.On("ListEvents", mock.Anything, "user-1").
			Return(nil, errors.New("db error"))

		h := NewHandlers(mockRepo)
		c, w := testContext(t, http.MethodGet, "/events", "")

		h.GetEvents(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		mockRepo.AssertExpectations(t)
	})
}
