package capfriends

import "time"

const indiaTimeZoneName = "Asia/Kolkata"

var indiaLocation = loadIndiaLocation()

func loadIndiaLocation() *time.Location {
	location, err := time.LoadLocation(indiaTimeZoneName)
	if err != nil {
		return time.FixedZone(indiaTimeZoneName, 5*60*60+30*60)
	}
	return location
}

// NowInIndia returns current time in Asia/Kolkata.
func NowInIndia() time.Time {
	return time.Now().In(indiaLocation)
}

// TodayISOInIndia returns current date using YYYY-MM-DD in Asia/Kolkata.
func TodayISOInIndia() string {
	return NowInIndia().Format("2006-01-02")
}
