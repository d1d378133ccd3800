package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDMiddleware(t *testing.T) {
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("mints an ID when the caller sends none", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		id := w.Header().Get("X-Request-ID")
		if id == "" {
			t.Fatal("Expected a generated X-Request-ID header")
		}
		// ksuid strings are 27 characters
		if len(id) != 27 {
			t.Errorf("Expected a 27-character ksuid, got %q", id)
		}
		// The inbound request carries the same ID for downstream handlers
		if req.Header.Get("X-Request-ID") != id {
			t.Errorf("Expected request header to match response header %q", id)
		}
	})

	t.Run("echoes a caller-supplied ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "caller-chosen-id")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if id := w.Header().Get("X-Request-ID"); id != "caller-chosen-id" {
			t.Errorf("Expected caller-chosen-id, got %q", id)
		}
	})

	t.Run("distinct requests get distinct IDs", func(t *testing.T) {
		ids := make(map[string]bool)
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
			ids[w.Header().Get("X-Request-ID")] = true
		}
		if len(ids) != 3 {
			t.Errorf("Expected 3 distinct IDs, got %d", len(ids))
		}
	})
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		apiKey         string
		requestHeader  string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "valid API key",
			apiKey:         "test-key",
			requestHeader:  "test-key",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing API key header",
			apiKey:         "test-key",
			requestHeader:  "",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Missing X-API-Key header",
		},
		{
			name:           "invalid API key",
			apiKey:         "test-key",
			requestHeader:  "wrong-key",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid API key",
		},
		{
			name:           "key of the right length but wrong bytes",
			apiKey:         "test-key",
			requestHeader:  "test-kez",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid API key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create a test handler that just returns 200
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			// Apply the middleware
			middleware := apiKeyMiddleware(tt.apiKey)
			handler := middleware(testHandler)

			// Create request
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.requestHeader != "" {
				req.Header.Set("X-API-Key", tt.requestHeader)
			}

			// Create response recorder
			w := httptest.NewRecorder()

			// Execute request
			handler.ServeHTTP(w, req)

			// Check status
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			// Rejections carry the reason in the standard envelope
			if tt.expectedError != "" {
				var response APIResponse
				if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if response.Success {
					t.Error("Expected success to be false")
				}
				if response.Error != tt.expectedError {
					t.Errorf("Expected error %q, got %q", tt.expectedError, response.Error)
				}
			}
		})
	}
}

func TestResponseHelpers(t *testing.T) {
	t.Run("success envelope", func(t *testing.T) {
		w := httptest.NewRecorder()

		sendSuccess(w, map[string]string{"message": "test"})

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if contentType := w.Header().Get("Content-Type"); contentType != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", contentType)
		}

		var response APIResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if !response.Success {
			t.Error("Expected success to be true")
		}
		data, ok := response.Data.(map[string]interface{})
		if !ok {
			t.Fatal("Expected data to be a map")
		}
		if data["message"] != "test" {
			t.Errorf("Expected message 'test', got %v", data["message"])
		}
	})

	t.Run("error envelope", func(t *testing.T) {
		statuses := []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		}

		for _, status := range statuses {
			w := httptest.NewRecorder()

			sendError(w, "something broke", status)

			if w.Code != status {
				t.Errorf("Expected status %d, got %d", status, w.Code)
			}
			if contentType := w.Header().Get("Content-Type"); contentType != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %s", contentType)
			}

			var response APIResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Success {
				t.Error("Expected success to be false")
			}
			if response.Error != "something broke" {
				t.Errorf("Expected error message, got %q", response.Error)
			}
		}
	})
}
