package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Envelope is a decoded response body. Every REST endpoint answers with a
// JSON object carrying at least an "ok" field.
type Envelope map[string]json.RawMessage

// OK reports the envelope's ok flag.
func (e Envelope) OK() bool {
	var ok bool
	if raw, found := e["ok"]; found {
		json.Unmarshal(raw, &ok)
	}
	return ok
}

// Field unmarshals one envelope field into out.
func (e Envelope) Field(name string, out any) error {
	raw, found := e[name]
	if !found {
		return fmt.Errorf("envelope has no %q field", name)
	}
	return json.Unmarshal(raw, out)
}

// Do issues a request against the test server and decodes the envelope.
func (s *TestServer) Do(method, path string, body any) (int, Envelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, envelope, nil
}
