package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPistonRunnerRun(t *testing.T) {
	var got pistonRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"run": map[string]string{"stdout": "hello\n", "stderr": ""},
		})
	}))
	defer srv.Close()

	r := NewPistonRunner(srv.URL, time.Second)
	res, err := r.Run(context.Background(), "print('hello')", "python", "")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "", res.Stderr)
	assert.Equal(t, "python", got.Language)
	assert.Equal(t, "*", got.Version)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "print('hello')", got.Files[0].Content)
}

func TestPistonRunnerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "runtime unknown"})
	}))
	defer srv.Close()

	r := NewPistonRunner(srv.URL, time.Second)
	_, err := r.Run(context.Background(), "x", "brainfuck", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime unknown")
}

func TestPistonRunnerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	r := NewPistonRunner(srv.URL, 50*time.Millisecond)
	_, err := r.Run(context.Background(), "x", "python", "")
	assert.Error(t, err)
}
