package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

func (e *TestEnv) signup(name string, email string, pass string, role string) error {
	body := map[string]string{
		"name":     name,
		"email":    email,
		"role":     role,
		"password": pass,
	}

	w, err := e.postJSON("/auth/signup", body)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		return fmt.Errorf("signing up %s: status code %s", email, w.Status)
	}

	return nil
}

func (e *TestEnv) Login(email string, pass string) error {
	body := map[string]string{
		"email":    email,
		"password": pass,
	}

	w, err := e.postJSON("/auth/login", body)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("logging in %s: status code %s", email, w.Status)
	}

	return nil
}

func (e *TestEnv) Logout() error {
	w, err := e.postJSON("/auth/logout", nil)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logging out: status code %s", w.Status)
	}

	return nil
}

func (e *TestEnv) postJSON(path string, body any) (*http.Response, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(b)
	}

	r, err := http.NewRequest(http.MethodPost, e.URL+path, buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	return e.client.Do(r)
}

func (e *TestEnv) getJSON(path string, out any) (*http.Response, error) {
	r, err := http.NewRequest(http.MethodGet, e.URL+path, nil)
	if err != nil {
		return nil, err
	}

	w, err := e.client.Do(r)
	if err != nil {
		return nil, err
	}
	defer w.Body.Close()

	if out != nil && w.StatusCode < 300 {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decoding response of %s: %w", path, err)
		}
	}

	return w, nil
}

func mustRequest(t testingT, method string, url string, body any) *http.Request {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		buf = bytes.NewBuffer(b)
	}

	r, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	return r
}

type testingT interface {
	Fatal(args ...any)
}

// decodeBody reads a response body into out and closes it.
func decodeBody(w *http.Response, out any) error {
	defer w.Body.Close()
	return json.NewDecoder(w.Body).Decode(out)
}

// mailRecorder stands in for the smtp mailer, never failing.
type mailRecorder struct {
	mu   sync.Mutex
	sent []string
}

func (m *mailRecorder) Send(to string, subject string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+": "+subject)
	return nil
}
