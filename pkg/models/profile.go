package models

// AgentProfile is one synthesized persona. UserID equals the profile's index
// in the ordered profile list; the external simulation addresses agents by it.
type AgentProfile struct {
	UserID      int      `json:"user_id"`
	UserName    string   `json:"username"`
	Name        string   `json:"name"`
	Bio         string   `json:"bio"`     // short bio, at most 200 chars
	Persona     string   `json:"persona"` // long persona text
	Age         int      `json:"age"`
	Gender      string   `json:"gender"` // male, female, other
	MBTI        string   `json:"mbti"`
	Country     string   `json:"country"`
	Profession  string   `json:"profession"`
	Topics      []string `json:"interested_topics,omitempty"`
	EntityUUID  string   `json:"entity_uuid,omitempty"`
	EntityType  string   `json:"entity_type,omitempty"`
}
