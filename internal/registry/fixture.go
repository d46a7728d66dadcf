package registry

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-miner/internal/model"
)

// LoadProfilesFromFile reads a JSON array of model.ICPProfile from the given
// path. Used for local development without a Notion token.
func LoadProfilesFromFile(path string) ([]model.ICPProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read profiles fixture")
	}

	var profiles []model.ICPProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal profiles fixture")
	}

	return profiles, nil
}
