package timeline

import (
	"sort"
	"time"

	"github.com/gigboard/gigchat/internal/chat"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"
	// DateLayout formats buckets older than yesterday.
	DateLayout = "Mon, Jan 2 2006"
)

// Bucket is one calendar day of a timeline.
type Bucket struct {
	Label    string
	Day      time.Time // midnight in the viewer's location
	Messages []chat.Message
}

// GroupByDay splits newest-first messages into day buckets in loc.
// Buckets come out as Today, Yesterday, then older days newest first;
// messages keep their relative order inside a bucket.
func GroupByDay(msgs []chat.Message, now time.Time, loc *time.Location) []Bucket {
	if loc == nil {
		loc = time.Local
	}
	today := midnight(now, loc)
	yesterday := today.AddDate(0, 0, -1)

	index := make(map[time.Time]int)
	var buckets []Bucket
	for _, m := range msgs {
		day := midnight(m.CreatedAt, loc)
		i, ok := index[day]
		if !ok {
			i = len(buckets)
			index[day] = i
			buckets = append(buckets, Bucket{Label: label(day, today, yesterday), Day: day})
		}
		buckets[i].Messages = append(buckets[i].Messages, m)
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		ri, rj := rank(buckets[i].Day, today, yesterday), rank(buckets[j].Day, today, yesterday)
		if ri != rj {
			return ri < rj
		}
		return buckets[i].Day.After(buckets[j].Day)
	})
	return buckets
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func rank(day, today, yesterday time.Time) int {
	switch {
	case day.Equal(today):
		return 0
	case day.Equal(yesterday):
		return 1
	default:
		return 2
	}
}

func label(day, today, yesterday time.Time) string {
	switch rank(day, today, yesterday) {
	case 0:
		return LabelToday
	case 1:
		return LabelYesterday
	default:
		return day.Format(DateLayout)
	}
}
