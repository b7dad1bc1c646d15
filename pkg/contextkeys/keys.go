package contextkeys

type contextKey string

const (
	UserIDKey contextKey = "UserID"
	RunIDKey  contextKey = "RunID"
)
