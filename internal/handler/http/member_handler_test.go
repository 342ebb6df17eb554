package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	shopHandler "github.com/vasiliy-maslov/shop-service/internal/handler/http"
	"github.com/vasiliy-maslov/shop-service/internal/member"
)

type MockMemberService struct {
	mock.Mock
}

func (m *MockMemberService) Join(ctx context.Context, mem *member.Member) (uuid.UUID, error) {
	args := m.Called(ctx, mem)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockMemberService) FindMembers(ctx context.Context) ([]*member.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*member.Member), args.Error(1)
}

func (m *MockMemberService) FindOne(ctx context.Context, id uuid.UUID) (*member.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*member.Member), args.Error(1)
}

func (m *MockMemberService) Update(ctx context.Context, id uuid.UUID, name string) (*member.Member, error) {
	args := m.Called(ctx, id, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*member.Member), args.Error(1)
}

// serve routes req through a fresh chi router carrying h's routes.
func serve(h interface{ RegisterRoutes(chi.Router) }, req *http.Request) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	msg, _ := body["error"].(string)
	return msg
}

func TestMemberHandler_CreateMember_Success(t *testing.T) {
	// Arrange
	mockService := new(MockMemberService)
	handler := shopHandler.NewMemberHandler(mockService)
	newID := uuid.Must(uuid.NewV4())

	mockService.On("Join", mock.Anything, mock.MatchedBy(func(m *member.Member) bool {
		return m.Name == "userA" && m.Address == member.Address{City: "Seoul", Street: "1", Zipcode: "1111"}
	})).Return(newID, nil).Once()

	req := jsonRequest(t, http.MethodPost, "/api/v2/members", shopHandler.CreateMemberRequest{
		Name: "userA", City: "Seoul", Street: "1", Zipcode: "1111",
	})

	// Act
	rr := serve(handler, req)

	// Assert
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp shopHandler.IDResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, newID, resp.ID)
	mockService.AssertExpectations(t)
}

func TestMemberHandler_CreateMember_ValidationFailed(t *testing.T) {
	mockService := new(MockMemberService)
	handler := shopHandler.NewMemberHandler(mockService)

	rr := serve(handler, jsonRequest(t, http.MethodPost, "/api/v2/members", shopHandler.CreateMemberRequest{City: "Seoul"}))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp shopHandler.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Equal(t, "required", resp.Details["Name"])
	mockService.AssertNotCalled(t, "Join", mock.Anything, mock.Anything)
}

func TestMemberHandler_CreateMember_UnknownField(t *testing.T) {
	mockService := new(MockMemberService)
	handler := shopHandler.NewMemberHandler(mockService)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/members", bytes.NewBufferString(`{"name":"a","age":3}`))
	rr := serve(handler, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockService.AssertNotCalled(t, "Join", mock.Anything, mock.Anything)
}

func TestMemberHandler_CreateMember_DuplicateName(t *testing.T) {
	mockService := new(MockMemberService)
	handler := shopHandler.NewMemberHandler(mockService)
	mockService.On("Join", mock.Anything, mock.AnythingOfType("*member.Member")).
		Return(uuid.Nil, member.ErrDuplicateName).
		Once()

	rr := serve(handler, jsonRequest(t, http.MethodPost, "/api/v2/members", shopHandler.CreateMemberRequest{Name: "userA"}))

	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, member.ErrDuplicateName.Error(), decodeError(t, rr))
	mockService.AssertExpectations(t)
}

func TestMemberHandler_ListMembers(t *testing.T) {
	mockService := new(MockMemberService)
	handler := shopHandler.NewMemberHandler(mockService)
	mockService.On("FindMembers", mock.Anything).Return([]*member.Member{
		{ID: uuid.Must(uuid.NewV4()), Name: "userA"},
		{ID: uuid.Must(uuid.NewV4()), Name: "userB"},
	}, nil).Once()

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/v2/members", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count":2,"data":[{"name":"userA"},{"name":"userB"}]}`, rr.Body.String())
	mockService.AssertExpectations(t)
}

func TestMemberHandler_ListMembers_InternalError(t *testing.T) {
	mockService := new(MockMemberService)
	handler := shopHandler.NewMemberHandler(mockService)
	mockService.On("FindMembers", mock.Anything).Return(nil, errors.New("connection reset")).Once()

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/v2/members", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to list members", decodeError(t, rr))
}

func TestMemberHandler_UpdateMember(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		target     string
		serviceErr error
		wantStatus int
	}{
		{name: "updated", target: "/api/v2/members/" + id.String(), wantStatus: http.StatusOK},
		{name: "not found", target: "/api/v2/members/" + id.String(), serviceErr: member.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid id", target: "/api/v2/members/not-a-uuid", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockMemberService)
			handler := shopHandler.NewMemberHandler(mockService)
			if tt.serviceErr != nil {
				mockService.On("Update", mock.Anything, id, "userB").Return(nil, tt.serviceErr).Once()
			} else {
				mockService.On("Update", mock.Anything, id, "userB").Return(&member.Member{ID: id, Name: "userB"}, nil).Maybe()
			}

			rr := serve(handler, jsonRequest(t, http.MethodPut, tt.target, shopHandler.UpdateMemberRequest{Name: "userB"}))

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"id":"`+id.String()+`","name":"userB"}`, rr.Body.String())
			}
		})
	}
}
