// Package testutil provides mocks and helpers shared by package tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockMainThread is a mock implementation of urls.MainThread.
type MockMainThread struct {
	mock.Mock
}

// RegisterURIHandler mocks the RegisterURIHandler method.
func (m *MockMainThread) RegisterURIHandler(handle int, extensionID string) {
	m.Called(handle, extensionID)
}

// UnregisterURIHandler mocks the UnregisterURIHandler method.
func (m *MockMainThread) UnregisterURIHandler(handle int) {
	m.Called(handle)
}

// NewMockMainThread creates a mock that accepts any notification.
func NewMockMainThread(t *testing.T) *MockMainThread {
	t.Helper()
	m := new(MockMainThread)
	m.On("RegisterURIHandler", mock.Anything, mock.Anything).Return().Maybe()
	m.On("UnregisterURIHandler", mock.Anything).Return().Maybe()
	return m
}

// Notification is one call recorded by RecordingMainThread.
type Notification struct {
	Method      string
	Handle      int
	ExtensionID string
}

// RecordingMainThread records notifications in call order.
type RecordingMainThread struct {
	mu    sync.Mutex
	calls []Notification
}

// RegisterURIHandler records a register notification.
func (r *RecordingMainThread) RegisterURIHandler(handle int, extensionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Notification{Method: "register", Handle: handle, ExtensionID: extensionID})
}

// UnregisterURIHandler records an unregister notification.
func (r *RecordingMainThread) UnregisterURIHandler(handle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Notification{Method: "unregister", Handle: handle})
}

// Calls returns a copy of the recorded notifications.
func (r *RecordingMainThread) Calls() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.calls...)
}

// RecordingReporter collects reported errors.
type RecordingReporter struct {
	mu     sync.Mutex
	errors []error
	notify chan struct{}
}

// NewRecordingReporter creates an empty reporter.
func NewRecordingReporter() *RecordingReporter {
	return &RecordingReporter{notify: make(chan struct{}, 64)}
}

// Report records err.
func (r *RecordingReporter) Report(err error) {
	r.mu.Lock()
	r.errors = append(r.errors, err)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Errors returns a copy of the reported errors.
func (r *RecordingReporter) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// WaitFor blocks until at least n errors were reported or the timeout passes.
func (r *RecordingReporter) WaitFor(t *testing.T, n int, timeout time.Duration) []error {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if errs := r.Errors(); len(errs) >= n {
			return errs
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d reported errors, got %d", n, len(r.Errors()))
			return nil
		}
	}
}
