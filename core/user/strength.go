package user

import "regexp"

var (
	lowerRegex   = regexp.MustCompile(`[a-z]`)
	upperRegex   = regexp.MustCompile(`[A-Z]`)
	digitRegex   = regexp.MustCompile(`\d`)
	specialRegex = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)

	strengthLabels = [6]string{"", "Very weak", "Weak", "Fair", "Good", "Strong"}
)

// Strength is an advisory password strength score. It never blocks a
// submission; the minimum length is enforced separately by validation.
type Strength struct {
	Score    int    `json:"score"`    // 0..5, one point per satisfied check
	Label    string `json:"label"`    // "" | Very weak | Weak | Fair | Good | Strong
	Progress int    `json:"progress"` // 0..100
}

// PasswordStrength scores a candidate password: length >= 8 and presence of
// lowercase / uppercase / digit / special characters are each worth one point.
func PasswordStrength(pwd string) Strength {
	if pwd == "" {
		return Strength{}
	}

	var score int
	for _, ok := range []bool{
		len(pwd) >= 8,
		lowerRegex.MatchString(pwd),
		upperRegex.MatchString(pwd),
		digitRegex.MatchString(pwd),
		specialRegex.MatchString(pwd),
	} {
		if ok {
			score++
		}
	}

	return Strength{
		Score:    score,
		Label:    strengthLabels[score],
		Progress: score * 20,
	}
}
