package cache

import (
	"testing"
	"time"
)

func TestTimeUntilNext8AM(t *testing.T) {
	t.Parallel()

	duration := TimeUntilNext8AM(time.UTC)

	// Duration should always be positive and at most 24 hours
	if duration <= 0 {
		t.Errorf("expected positive duration, got %v", duration)
	}
	if duration > 24*time.Hour {
		t.Errorf("expected duration less than 24 hours, got %v", duration)
	}
}

func TestUntilNext8AM(t *testing.T) {
	t.Parallel()

	taipei := time.FixedZone("Asia/Taipei", 8*60*60)

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want time.Duration
	}{
		{
			name: "before 8am today",
			now:  time.Date(2024, 6, 10, 6, 30, 0, 0, taipei),
			loc:  taipei,
			want: 90 * time.Minute,
		},
		{
			name: "after 8am rolls to tomorrow",
			now:  time.Date(2024, 6, 10, 9, 0, 0, 0, taipei),
			loc:  taipei,
			want: 23 * time.Hour,
		},
		{
			name: "exactly 8am waits a full day",
			now:  time.Date(2024, 6, 10, 8, 0, 0, 0, taipei),
			loc:  taipei,
			want: 24 * time.Hour,
		},
		{
			name: "now in another zone is converted",
			now:  time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC), // 07:00 in Taipei
			loc:  taipei,
			want: time.Hour,
		},
		{
			name: "nil location uses UTC",
			now:  time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC),
			loc:  nil,
			want: time.Hour,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := untilNext8AM(tt.now, tt.loc); got != tt.want {
				t.Errorf("untilNext8AM() = %v, want %v", got, tt.want)
			}
		})
	}
}
