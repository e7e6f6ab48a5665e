package entity

import "fmt"

// AlertLevel classifies how urgent a monitor alert is. Lower notification
// priority values are delivered first.
type AlertLevel int

const (
	AlertLevelMild AlertLevel = iota
	AlertLevelModerate
	AlertLevelSevere
	AlertLevelCritical
)

// AlertLevelForOverdue maps whole days overdue to a severity level:
// <3 mild, 3-9 moderate, 10-29 severe, >=30 critical.
func AlertLevelForOverdue(daysOverdue int) AlertLevel {
	switch {
	case daysOverdue >= 30:
		return AlertLevelCritical
	case daysOverdue >= 10:
		return AlertLevelSevere
	case daysOverdue >= 3:
		return AlertLevelModerate
	default:
		return AlertLevelMild
	}
}

func (l AlertLevel) String() string {
	switch l {
	case AlertLevelModerate:
		return "moderate"
	case AlertLevelSevere:
		return "severe"
	case AlertLevelCritical:
		return "critical"
	default:
		return "mild"
	}
}

// Priority returns the notification priority for this level (1 is highest).
func (l AlertLevel) Priority() int {
	switch l {
	case AlertLevelModerate:
		return 3
	case AlertLevelSevere, AlertLevelCritical:
		return 1
	default:
		return 5
	}
}

// RequiresSMS reports whether alerts at this level should also go out over
// the SMS channel when the user has a phone number.
func (l AlertLevel) RequiresSMS() bool {
	return l >= AlertLevelSevere
}

// Tag prefixes a message with the upper-cased level label.
func (l AlertLevel) Tag(message string) string {
	switch l {
	case AlertLevelModerate:
		return fmt.Sprintf("[WARNING] %s", message)
	case AlertLevelSevere:
		return fmt.Sprintf("[URGENT] %s", message)
	case AlertLevelCritical:
		return fmt.Sprintf("[CRITICAL] %s", message)
	default:
		return fmt.Sprintf("[NOTICE] %s", message)
	}
}
