// Package templates renders the HTML pages served by the application.
// Pages are written as .templ sources; run `templ generate` after editing them.
package templates

import (
	"strconv"
	"time"
)

// FeedStatus summarizes one realtime feed.
type FeedStatus struct {
	Name     string
	Entities int
	Updated  time.Time // zero when no snapshot has been committed
}

// StatusData is the data for the status page.
type StatusData struct {
	Title    string
	Timezone string
	Now      time.Time
	Routes   int
	Stops    int
	Trips    int
	Feeds    []FeedStatus
}

func updatedLabel(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func count(n int) string {
	return strconv.Itoa(n)
}
