package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-monitor/internal/model"
	"parking-status-monitor/internal/store"
)

func setupSubscriptionRouter(t *testing.T, st store.Store) *gin.Engine {
	t.Helper()
	h := NewHandler(st, nil, nil, nil, &webpush.Options{VAPIDPublicKey: "test-public-key"})
	r := gin.New()
	r.PUT("/api/subscriptions", h.PutSubscription)
	r.GET("/api/subscriptions", h.GetSubscription)
	r.DELETE("/api/subscriptions", h.DeleteSubscription)
	r.GET("/api/vapid_public_key", h.GetVAPIDPublicKey)
	return r
}

func TestPutSubscriptionBadRequest(t *testing.T) {
	router := setupSubscriptionRouter(t, newTestStore(t))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", bytes.NewReader([]byte(`{"endpoint":"x"}`)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestSubscriptionLifecycle(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.DB().Create(&model.Branch{ID: 7, Name: "Main Street"}).Error)
	require.NoError(t, st.DB().Create(&model.Branch{ID: 9, Name: "Harbor"}).Error)

	router := setupSubscriptionRouter(t, st)

	body := `{"endpoint":"https://push.example/abc","p256dh":"key","auth":"secret","subscribed_branches":[7,9]}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", bytes.NewReader([]byte(body)))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/subscriptions?endpoint=https://push.example/abc", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_branches":[7,9]}`, w.Body.String())

	// Replacing the branch set drops the old mapping.
	body = `{"endpoint":"https://push.example/abc","p256dh":"key","auth":"secret","subscribed_branches":[9]}`
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("PUT", "/api/subscriptions", bytes.NewReader([]byte(body)))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/subscriptions?endpoint=https://push.example/abc", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscribed_branches":[9]}`, w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/subscriptions", bytes.NewReader([]byte(`{"endpoint":"https://push.example/abc"}`)))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	var count int64
	require.NoError(t, st.DB().WithContext(context.Background()).Model(&model.PushSubscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetSubscriptionNotFound(t *testing.T) {
	router := setupSubscriptionRouter(t, newTestStore(t))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/subscriptions?endpoint=https://push.example/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router := setupSubscriptionRouter(t, newTestStore(t))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/vapid_public_key", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public-key"}`, w.Body.String())
}

func TestGetVAPIDPublicKeyUnconfigured(t *testing.T) {
	h := NewHandler(newTestStore(t), nil, nil, nil, nil)
	r := gin.New()
	r.GET("/api/vapid_public_key", h.GetVAPIDPublicKey)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/vapid_public_key", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
