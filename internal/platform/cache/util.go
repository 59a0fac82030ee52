package cache

import (
	"time"
)

// TimeUntilNext8AM は loc における次の午前8時までの期間を返します。
// loc が nil の場合は UTC を使用します。
func TimeUntilNext8AM(loc *time.Location) time.Duration {
	return untilNext8AM(time.Now(), loc)
}

func untilNext8AM(now time.Time, loc *time.Location) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	// 次の午前8時を計算
	next8am := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, loc)

	// 今日の午前8時が既に過ぎている場合は明日の午前8時を使用
	if !now.Before(next8am) {
		next8am = time.Date(now.Year(), now.Month(), now.Day()+1, 8, 0, 0, 0, loc)
	}

	return next8am.Sub(now)
}
