package profile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/agora-sim/agora/pkg/models"
	"github.com/agora-sim/agora/pkg/store"
)

// twitterHeader is the fixed column order the external Twitter simulation
// expects.
var twitterHeader = []string{"user_id", "name", "username", "user_char", "description"}

// WriteRedditProfiles writes the profile list as a JSON array. Every object
// carries user_id; the external Reddit simulation indexes agents by it.
func WriteRedditProfiles(path string, profiles []models.AgentProfile) error {
	if profiles == nil {
		profiles = []models.AgentProfile{}
	}
	return store.WriteJSON(path, profiles)
}

// WriteTwitterProfiles writes the CSV the external Twitter simulation
// consumes: user_char holds the persona, description the short bio.
func WriteTwitterProfiles(path string, profiles []models.AgentProfile) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(twitterHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, p := range profiles {
		record := []string{
			strconv.Itoa(p.UserID),
			p.Name,
			p.UserName,
			p.Persona,
			p.Bio,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing csv record for user %d: %w", p.UserID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return store.WriteFileAtomic(path, buf.Bytes())
}
