package ghapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// apiURL is overridden in tests.
var apiURL = "https://api.github.com/"

// InstallIDForRepo returns the installation ID for a given repository.
// The client must authenticate as the GitHub App.
func InstallIDForRepo(
	ctx context.Context,
	client *http.Client,
	owner, repo string,
) (int64, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		apiURL+"repos/"+owner+"/"+repo+"/installation", nil,
	)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get installation for %s/%s: status %d", owner, repo, resp.StatusCode)
	}

	var data struct {
		ID int64 `json:"id"`
	}

	err = json.NewDecoder(resp.Body).Decode(&data)
	if err != nil {
		return 0, err
	}

	return data.ID, nil
}
