package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Project struct {
	ID                uint   `json:"id"`
	CreatorID         string `json:"creator_id"`
	Title             string `json:"title"`
	Category          string `json:"category"`
	TargetAmount      int64  `json:"target_amount"`
	FundsInEscrow     int64  `json:"funds_in_escrow"`
	TreasuryBalance   int64  `json:"treasury_balance"`
	TreasuryAccountID string `json:"treasury_account_id"`
}

type ProjectListResponse struct {
	Data       []Project `json:"data"`
	Pagination struct {
		CurrentPage int   `json:"current_page"`
		TotalCount  int64 `json:"total_count"`
	} `json:"pagination"`
}

func TestProjectAPI(t *testing.T) {
	requireServer(t)

	var projectID uint

	t.Run("Create Project", func(t *testing.T) {
		request := map[string]interface{}{
			"creator_id":          "it-creator",
			"creator_name":        "Integration Creator",
			"title":               fmt.Sprintf("IT Project %d", time.Now().UnixNano()),
			"category":            "hardware",
			"target_amount":       1000,
			"deadline":            time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339),
			"treasury_account_id": "0.0.5005",
		}

		payload, err := json.Marshal(request)
		require.NoError(t, err)

		resp, err := http.Post(BaseURL+"/projects", "application/json", bytes.NewBuffer(payload))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var project Project
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&project))
		assert.NotZero(t, project.ID)
		assert.Equal(t, int64(0), project.FundsInEscrow)
		assert.Equal(t, int64(0), project.TreasuryBalance)
		projectID = project.ID
	})

	t.Run("List Projects", func(t *testing.T) {
		resp, err := http.Get(BaseURL + "/projects?creator_id=it-creator")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var response ProjectListResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
		assert.NotEmpty(t, response.Data)
	})

	t.Run("Get Project", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("%s/projects/%d", BaseURL, projectID))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var project Project
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&project))
		assert.Equal(t, projectID, project.ID)
	})

	t.Run("Update Project", func(t *testing.T) {
		request := map[string]interface{}{"category": "audio"}
		payload, err := json.Marshal(request)
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPut,
			fmt.Sprintf("%s/projects/%d", BaseURL, projectID), bytes.NewBuffer(payload))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var project Project
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&project))
		assert.Equal(t, "audio", project.Category)
	})

	t.Run("Release Requires Identity", func(t *testing.T) {
		resp, err := http.Post(
			fmt.Sprintf("%s/projects/%d/milestones/1/release", BaseURL, projectID),
			"application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Delete Project", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete,
			fmt.Sprintf("%s/projects/%d", BaseURL, projectID), nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestInvestmentValidationAPI(t *testing.T) {
	requireServer(t)

	t.Run("Rejects Missing Fields", func(t *testing.T) {
		payload := []byte(`{"project_id": 1}`)
		resp, err := http.Post(BaseURL+"/investments", "application/json", bytes.NewBuffer(payload))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Pending Settlements Listing", func(t *testing.T) {
		resp, err := http.Get(BaseURL + "/settlements/pending")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
