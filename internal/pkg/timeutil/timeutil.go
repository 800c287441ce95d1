package timeutil

import "time"

func NowUnix() int64 {
	return time.Now().Unix()
}

func NowMillis() int64 {
	return time.Now().UnixMilli()
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
