package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, RequestTimeout: 2 * time.Second}, nil)
}

func TestProcessMessageRequiresUserID(t *testing.T) {
	t.Parallel()

	c := NewClient(ClientConfig{BaseURL: "http://localhost:0"}, nil)
	_, err := c.ProcessMessage(context.Background(), "hello", "")
	if err == nil {
		t.Fatal("expected error for empty user ID")
	}
	if KindOf(err) != KindAuthRequired {
		t.Fatalf("KindOf = %v, want KindAuthRequired", KindOf(err))
	}
}

func TestProcessMessageSuccess(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process-chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"hi there","taskCreated":false}`))
	})

	res, err := c.ProcessMessage(context.Background(), "hello", "user-1")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if res.Response != "hi there" {
		t.Errorf("Response = %q, want %q", res.Response, "hi there")
	}
}

func TestProcessMessageCoercesTaskCreatedWithoutTask(t *testing.T) {
	t.Parallel()

	// A backend that claims taskCreated but omits the task violates its
	// contract; the client must treat it as taskCreated=false.
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"done","taskCreated":true}`))
	})

	res, err := c.ProcessMessage(context.Background(), "buy milk", "user-1")
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if res.TaskCreated {
		t.Error("TaskCreated = true for payload without a task")
	}
}

func TestProcessMessageNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused from here on

	c := NewClient(ClientConfig{BaseURL: url, RequestTimeout: time.Second}, nil)
	_, err := c.ProcessMessage(context.Background(), "set a 5 min timer", "user-1")
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if KindOf(err) != KindNetwork {
		t.Fatalf("KindOf = %v, want KindNetwork", KindOf(err))
	}
}

func TestProcessMessageBackendError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model overloaded"}`))
	})

	_, err := c.ProcessMessage(context.Background(), "hello", "user-1")
	if err == nil {
		t.Fatal("expected error from 500 response")
	}
	if KindOf(err) != KindBackend {
		t.Fatalf("KindOf = %v, want KindBackend", KindOf(err))
	}

	var be *Error
	if !errors.As(err, &be) {
		t.Fatal("error is not a *backend.Error")
	}
}

func TestProcessTaskSuccessWithoutTaskIsCoerced(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process-task" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"response":"ok"}`))
	})

	res, err := c.ProcessTask(context.Background(), "buy milk", "user-1")
	if err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if res.Success {
		t.Error("Success = true for payload without a task")
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"task":{"id":"t1","title":"buy milk"},"response":"I've created a task for \"buy milk\"."}`))
	})

	res, err := c.ProcessTask(context.Background(), "buy milk tomorrow", "user-1")
	if err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if !res.Success || res.Task == nil || res.Task.Title != "buy milk" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
