package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campus-chat/internal/mocks"
	"campus-chat/internal/models"
)

func setupUserRouter(handler *UserHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/users/search", handler.Search)
	return r
}

func TestSearchRejectsShortQuery(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupUserRouter(NewUserHandler(userRepo))

	req := httptest.NewRequest(http.MethodGet, "/users/search?q=a", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	userRepo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSearchReturnsSummaries(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	router := setupUserRouter(NewUserHandler(userRepo))

	userRepo.On("Search", mock.Anything, "ali", "", 1, 20).
		Return([]models.User{{ID: 2, Name: "alice", Email: "alice@state.edu"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/search?q=ali", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["users"], 1)
	userRepo.AssertExpectations(t)
}
