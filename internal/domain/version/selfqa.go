package version

// SelfQAChecklist is the developer's own pre-submission verification.
type SelfQAChecklist struct {
	TestedDevices    bool   `json:"testedDevices"`
	TestedAudio      bool   `json:"testedAudio"`
	GameplayComplete bool   `json:"gameplayComplete"`
	ContentVerified  bool   `json:"contentVerified"`
	Note             string `json:"note,omitempty"`
}

// ValidateSelfQA is true iff every check is ticked. Note is ignored.
func ValidateSelfQA(c SelfQAChecklist) bool {
	return c.TestedDevices && c.TestedAudio && c.GameplayComplete && c.ContentVerified
}

// MissingItems names the unticked checks in checklist order.
func (c SelfQAChecklist) MissingItems() []string {
	var missing []string
	if !c.TestedDevices {
		missing = append(missing, "testedDevices")
	}
	if !c.TestedAudio {
		missing = append(missing, "testedAudio")
	}
	if !c.GameplayComplete {
		missing = append(missing, "gameplayComplete")
	}
	if !c.ContentVerified {
		missing = append(missing, "contentVerified")
	}
	return missing
}
