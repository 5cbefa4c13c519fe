package thumb

import (
	"strconv"
	"strings"
	"time"
)

const (
	userKeyPrefix = "thumb:user:"
	tempKeyPrefix   = "thumb:temp:"
	repairKeyPrefix = "thumb:repair:"
	cursorKey       = "thumb:sync:cursor"

	// likedValue is stored for a liked item. The durable row id is not known when the
	// like is acknowledged.
	likedValue = "1"
	// placeholder marks an item as known not liked in the local tier.
	placeholder = "0"
)

// UserKey is the per-actor hash holding one field per liked item.
func UserKey(actor int64) string {
	return userKeyPrefix + strconv.FormatInt(actor, 10)
}

// TempKey is the bucket of the time slice starting at start.
func TempKey(start time.Time) string {
	return tempKeyPrefix + strconv.FormatInt(start.Unix(), 10)
}

// RepairKey is the hash of reconcile repairs queued for the time slice starting
// at start. It is applied before the slice bucket.
func RepairKey(start time.Time) string {
	return repairKeyPrefix + strconv.FormatInt(start.Unix(), 10)
}

// SliceStart truncates t to the slice interval.
func SliceStart(t time.Time, interval time.Duration) time.Time {
	return t.Truncate(interval)
}

func itemField(item int64) string {
	return strconv.FormatInt(item, 10)
}

func parseUserKey(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, userKeyPrefix)
	if !ok {
		return 0, false
	}
	actor, err := strconv.ParseInt(rest, 10, 64)
	return actor, err == nil
}

func parseTempKey(key string) (time.Time, bool) {
	return parseSliceKey(key, tempKeyPrefix)
}

func parseRepairKey(key string) (time.Time, bool) {
	return parseSliceKey(key, repairKeyPrefix)
}

func parseSliceKey(key, prefix string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
