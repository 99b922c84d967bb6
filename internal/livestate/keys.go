package livestate

// Key schema shared with every instance reading the same Redis
func codeKey(sessionID string) string         { return "session:" + sessionID + ":code" }
func languageKey(sessionID string) string     { return "session:" + sessionID + ":language" }
func participantsKey(sessionID string) string { return "session:" + sessionID + ":participants" }
func cursorsKey(sessionID string) string      { return "session:" + sessionID + ":cursors" }
func usersKey(sessionID string) string        { return "session:" + sessionID + ":users" }
func userSessionKey(connID string) string     { return "user:" + connID + ":session" }

func sessionKeys(sessionID string) []string {
	return []string{
		codeKey(sessionID),
		languageKey(sessionID),
		participantsKey(sessionID),
		cursorsKey(sessionID),
		usersKey(sessionID),
	}
}
