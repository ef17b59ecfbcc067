package meter

import "github.com/xraph/perk/types"

// CounterKey returns the key of counter name on day.
func CounterKey(name string, day types.Day) string {
	return "m:" + name + ":" + day.String()
}

// DAUKey returns the key of the unique-user set of day.
func DAUKey(day types.Day) string {
	return "dau:" + day.String()
}

// RefKey returns the key of the referral score table of day.
func RefKey(day types.Day) string {
	return "ref:" + day.String()
}
