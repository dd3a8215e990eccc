package identity

// Level is the authentication tier an endpoint requires.
type Level int

const (
	// LevelNone skips all identity checks
	LevelNone Level = iota
	// LevelAuth requires a valid identity assertion
	LevelAuth
	// LevelVerified additionally requires an email- or phone-verified flag
	LevelVerified
	// LevelOnboarded additionally requires a completed profile
	LevelOnboarded
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelAuth:
		return "auth"
	case LevelVerified:
		return "verified"
	case LevelOnboarded:
		return "onboarded"
	default:
		return "unknown"
	}
}

// Identity is the resolved caller: a stable subject id plus the session id
// and provider-asserted flags carried by the assertion.
type Identity struct {
	Subject   string
	SessionID string

	// Provider-asserted verification flags. Either satisfies the verified
	// tier; the profile document is consulted when both are false.
	EmailVerified bool
	PhoneVerified bool
}
