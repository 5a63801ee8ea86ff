package integration

import (
	"net/http"
	"os"
	"testing"
	"time"
)

// BaseURL is the running API server under test.
var BaseURL = "http://localhost:8080"

func TestMain(m *testing.M) {
	if url := os.Getenv("API_BASE_URL"); url != "" {
		BaseURL = url
	}
	os.Exit(m.Run())
}

// requireServer skips the test when no API server is reachable, so the
// suite stays runnable without the full stack.
func requireServer(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(BaseURL + "/health")
	if err != nil {
		t.Skipf("API server not reachable at %s: %v", BaseURL, err)
	}
	resp.Body.Close()
}
