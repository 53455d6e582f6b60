package monitor

import "strings"

// Bucket is the coarse equivalence class a status string belongs to.
// Statuses in the same bucket are treated as the same state: a change within
// a bucket (e.g. stopped→dead) is flapping noise, not a transition.
type Bucket int

const (
	// BucketNone means the status is not recognized by any bucket.
	BucketNone Bucket = iota
	BucketOnline
	BucketOffline
	BucketUnreachable
)

func (b Bucket) String() string {
	switch b {
	case BucketOnline:
		return "online"
	case BucketOffline:
		return "offline"
	case BucketUnreachable:
		return "unreachable"
	default:
		return "none"
	}
}

// Transition is the kind of bucket-to-bucket change an observation produced.
type Transition string

const (
	TransitionNone        Transition = ""
	TransitionOffline     Transition = "offline"
	TransitionOnline      Transition = "online"
	TransitionUnreachable Transition = "unreachable"
)

// statusBuckets is the membership table. Matching is case-insensitive; it is
// kept as data, not comparisons, so membership is testable on its own.
var statusBuckets = map[string]Bucket{
	"running": BucketOnline,
	"online":  BucketOnline,

	"exited":  BucketOffline,
	"offline": BucketOffline,
	"stopped": BucketOffline,
	"dead":    BucketOffline,

	"unknown":     BucketUnreachable,
	"unreachable": BucketUnreachable,
	"paused":      BucketUnreachable,
}

// transitionInto maps the bucket an observation lands in to the transition
// kind that fires when the previous observation was outside that bucket.
var transitionInto = map[Bucket]Transition{
	BucketOnline:      TransitionOnline,
	BucketOffline:     TransitionOffline,
	BucketUnreachable: TransitionUnreachable,
}

// BucketOf returns the bucket for a status string, or BucketNone for
// statuses outside the table (e.g. "restarting").
func BucketOf(status string) Bucket {
	return statusBuckets[strings.ToLower(status)]
}

// Classify returns the transition fired by observing newStatus after
// oldStatus, or TransitionNone.
//
// A transition fires iff the new status entered a bucket the old status was
// not in. Same-bucket pairs never fire, which absorbs equivalent-state
// flapping. An empty oldStatus means there is no prior observation; the
// first observation never fires.
func Classify(newStatus, oldStatus string) Transition {
	if oldStatus == "" {
		return TransitionNone
	}
	newBucket := BucketOf(newStatus)
	if newBucket == BucketOf(oldStatus) {
		return TransitionNone
	}
	return transitionInto[newBucket]
}
